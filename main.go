package main

import (
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"banter-server/chat"
	"banter-server/gifs"
	"banter-server/handlers"
	"banter-server/middleware"
	"banter-server/notify"
	"banter-server/rtc"
	"banter-server/rtdb"
	"banter-server/store"
)

func main() {
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	// Relational user directory
	dbPath := envOr("DB_PATH", "./banter.db")
	s, err := store.New(dbPath)
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer s.Close()

	// Realtime tree store (conversations, messages, presence, typing)
	db, err := rtdb.Open(envOr("RTDB_PATH", "./data/rtdb"))
	if err != nil {
		log.Fatal("Failed to open realtime store:", err)
	}
	defer db.Close()

	// Chat domain
	relay := notify.NewRelay(os.Getenv("PUSH_ENDPOINT"), os.Getenv("PUSH_API_KEY"))
	presence := chat.NewPresence(db)
	typing := chat.NewTyping(db)
	engine := chat.NewEngine(db, s, relay)
	contacts := chat.NewContacts(db, s)
	groups := chat.NewGroups(db)

	// WebSocket hub
	hub := handlers.NewHub(db, s, presence, typing, engine)
	go hub.Run()

	// Handlers
	authHandler := handlers.NewAuthHandler(s)
	userHandler := handlers.NewUserHandler(s)
	contactHandler := handlers.NewContactHandler(contacts)
	messageHandler := handlers.NewMessageHandler(engine, typing, s)
	reactionHandler := handlers.NewReactionHandler(engine)
	groupHandler := handlers.NewGroupHandler(groups)
	gifHandler := handlers.NewGifHandler(gifs.NewClient(os.Getenv("TENOR_KEY")))
	rtcHandler := handlers.NewRTCHandler(rtc.NewIssuer(
		envOr("RTC_APP_ID", "banter"),
		envOr("RTC_SECRET", "dev-rtc-secret"),
		time.Hour,
	))
	fileHandler := handlers.NewFileHandler(envOr("UPLOAD_DIR", "./uploads"))

	mux := http.NewServeMux()

	// Public routes (no auth required)
	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("GET /api/ws", hub.HandleWebSocket)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	// Auth
	mux.HandleFunc("GET /api/auth/me", withAuth(authHandler.Me))

	// Users
	mux.HandleFunc("GET /api/users/{id}", withAuth(userHandler.Get))
	mux.HandleFunc("PUT /api/users/me", withAuth(userHandler.UpdateProfile))

	// Contacts
	mux.HandleFunc("GET /api/contacts", withAuth(contactHandler.List))
	mux.HandleFunc("POST /api/contacts", withAuth(contactHandler.Add))
	mux.HandleFunc("DELETE /api/contacts/{id}", withAuth(contactHandler.Remove))

	// Conversations
	mux.HandleFunc("DELETE /api/conversations/{id}", withAuth(contactHandler.Hide))
	mux.HandleFunc("POST /api/conversations/{id}/read", withAuth(messageHandler.MarkRead))

	// Messages
	mux.HandleFunc("POST /api/messages", withAuth(messageHandler.Send))
	mux.HandleFunc("GET /api/conversations/{id}/messages", withAuth(messageHandler.List))
	mux.HandleFunc("DELETE /api/messages/{id}", withAuth(messageHandler.Delete))

	// Reactions
	mux.HandleFunc("POST /api/reactions", withAuth(reactionHandler.Toggle))

	// Groups
	mux.HandleFunc("POST /api/groups", withAuth(groupHandler.Create))
	mux.HandleFunc("GET /api/groups/{id}", withAuth(groupHandler.Get))
	mux.HandleFunc("POST /api/groups/{id}/members", withAuth(groupHandler.AddMember))
	mux.HandleFunc("DELETE /api/groups/{id}/members/{userId}", withAuth(groupHandler.RemoveMember))
	mux.HandleFunc("PUT /api/groups/{id}/members/role", withAuth(groupHandler.SetRole))
	mux.HandleFunc("POST /api/groups/{id}/leave", withAuth(groupHandler.Leave))
	mux.HandleFunc("POST /api/groups/{id}/channels", withAuth(groupHandler.CreateChannel))
	mux.HandleFunc("DELETE /api/groups/{id}/channels/{channelId}", withAuth(groupHandler.DeleteChannel))

	// Files
	mux.HandleFunc("POST /api/files/upload", withAuth(fileHandler.Upload))
	mux.HandleFunc("GET /api/files/{filename}", fileHandler.Serve)

	// GIFs
	mux.HandleFunc("GET /api/gifs/trending", withAuth(gifHandler.Trending))
	mux.HandleFunc("GET /api/gifs/search", withAuth(gifHandler.Search))

	// Calls
	mux.HandleFunc("GET /api/rtc/token", withAuth(rtcHandler.Token))

	handler := corsMiddleware(mux)

	port := envOr("PORT", "8080")
	log.Printf("Banter server starting on :%s", port)
	log.Fatal(http.ListenAndServe(":"+port, handler))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// withAuth wraps a handler with authentication
func withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			http.Error(w, "Invalid authorization format", http.StatusUnauthorized)
			return
		}

		claims, err := middleware.ValidateToken(tokenString)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := r.Context()
		ctx = middleware.SetUserID(ctx, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
