package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"banter-server/chat"
	"banter-server/middleware"
	"banter-server/models"
	"banter-server/rtdb"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 * 1024
)

// Client is one WebSocket connection: it owns an rtdb session (for the
// disconnect-deferred presence write), one conversation-list aggregator,
// and whatever message/typing subscriptions the client opened.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID string
	sess   *rtdb.Session
	agg    *chat.Aggregator

	subsMu sync.Mutex
	subs   map[string]func()
}

type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex

	db       *rtdb.Store
	dir      chat.Directory
	presence *chat.Presence
	typing   *chat.Typing
	engine   *chat.Engine
}

func NewHub(db *rtdb.Store, dir chat.Directory, presence *chat.Presence, typing *chat.Typing, engine *chat.Engine) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client, 16),
		unregister: make(chan *Client, 16),
		db:         db,
		dir:        dir,
		presence:   presence,
		typing:     typing,
		engine:     engine,
	}
}

func (h *Hub) Run() {
	log.Printf("[WS HUB] Hub started and running")
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			first := !h.hasConnectionLocked(client.userID)
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()

			log.Printf("[WS HUB] Client registered: %s (total clients: %d, first=%v)", client.userID, count, first)

			// Arm the deferred offline write on every session; a
			// stale registration from a previous connection is
			// never trusted.
			if err := h.presence.Connected(client.sess, client.userID); err != nil {
				log.Printf("[WS HUB] Presence online failed for %s: %v", client.userID, err)
			}

		case client := <-h.unregister:
			h.mu.Lock()
			wasPresent := false
			if _, ok := h.clients[client]; ok {
				wasPresent = true
				delete(h.clients, client)
				close(client.send)
			}
			last := wasPresent && !h.hasConnectionLocked(client.userID)
			count := len(h.clients)
			h.mu.Unlock()

			if !wasPresent {
				continue
			}
			log.Printf("[WS HUB] Client unregistered: %s (total clients: %d, last=%v)", client.userID, count, last)

			client.teardown()
			if last {
				// Session close applies the armed offline write.
				client.sess.Close()
			} else {
				// Another device is still online; disarm this
				// session's writes before discarding it.
				h.presence.SignOffOther(client.sess, client.userID)
				client.sess.Close()
			}
		}
	}
}

func (h *Hub) hasConnectionLocked(userID string) bool {
	for c := range h.clients {
		if c.userID == userID {
			return true
		}
	}
	return false
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "Token required", http.StatusUnauthorized)
		return
	}

	claims, err := middleware.ValidateToken(token)
	if err != nil {
		log.Printf("[WS] Connection rejected - invalid token from %s: %v", r.RemoteAddr, err)
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WS] Upgrade error for user %s: %v", claims.UserID, err)
		return
	}

	client := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, 256),
		userID: claims.UserID,
		sess:   h.db.NewSession(),
		subs:   make(map[string]func()),
	}
	client.agg = chat.NewAggregator(h.db, h.dir, h.presence, claims.UserID, func(list []chat.Conversation) {
		client.sendMsg(models.WSMessage{Type: models.WSTypeConversationList, Payload: list})
	})

	go client.writePump()
	go client.readPump()

	h.register <- client

	if err := client.agg.Start(); err != nil {
		log.Printf("[WS] Aggregator start failed for %s: %v", claims.UserID, err)
	}
}

// sendMsg queues a frame; a client that can't keep up gets dropped by
// the hub once its buffer fills.
func (c *Client) sendMsg(msg models.WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[WS] marshal error for type '%s': %v", msg.Type, err)
		return
	}
	select {
	case c.send <- data:
	default:
		log.Printf("[WS] Client %s buffer full, dropping frame type '%s'", c.userID, msg.Type)
	}
}

// teardown releases every live subscription exactly once.
func (c *Client) teardown() {
	c.agg.Close()
	c.subsMu.Lock()
	subs := c.subs
	c.subs = make(map[string]func())
	c.subsMu.Unlock()
	for _, dispose := range subs {
		dispose()
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[WS] Unexpected close error for client %s: %v", c.userID, err)
			}
			break
		}

		var wsMsg models.WSMessage
		if err := json.Unmarshal(message, &wsMsg); err != nil {
			log.Printf("[WS] Failed to unmarshal message from client %s: %v", c.userID, err)
			continue
		}

		payload, _ := wsMsg.Payload.(map[string]interface{})
		c.handle(wsMsg.Type, payload)
	}
}

func (c *Client) handle(msgType string, payload map[string]interface{}) {
	str := func(key string) string {
		s, _ := payload[key].(string)
		return s
	}
	convID := str("conversation_id")
	convType := models.ConversationType(str("conversation_type"))
	if convType == "" {
		convType = models.ConversationDM
	}
	channelID := str("channel_id")

	switch msgType {
	case models.WSTypeTyping:
		if convID == "" {
			return
		}
		if active, _ := payload["typing"].(bool); active {
			_ = c.hub.typing.Start(convID, c.userID)
		} else {
			_ = c.hub.typing.Stop(convID, c.userID)
		}

	case "subscribe_messages":
		if convID == "" {
			return
		}
		key := "msg:" + convID + ":" + channelID
		dispose, err := c.hub.engine.Listen(convID, convType, channelID, func(msgs []models.Message) {
			c.sendMsg(models.WSMessage{Type: models.WSTypeMessages, Payload: map[string]interface{}{
				"conversation_id": convID,
				"channel_id":      channelID,
				"messages":        msgs,
			}})
		})
		if err != nil {
			return
		}
		c.addSub(key, dispose)

	case "unsubscribe_messages":
		c.dropSub("msg:" + convID + ":" + channelID)

	case "subscribe_typing":
		if convID == "" {
			return
		}
		key := "typing:" + convID
		dispose, err := c.hub.typing.Listen(convID, c.userID, func(uids []string) {
			c.sendMsg(models.WSMessage{Type: models.WSTypeTyping, Payload: map[string]interface{}{
				"conversation_id": convID,
				"users":           uids,
			}})
		})
		if err != nil {
			return
		}
		c.addSub(key, dispose)

	case "unsubscribe_typing":
		c.dropSub("typing:" + convID)

	default:
		log.Printf("[WS] Unknown message type '%s' from client %s", msgType, c.userID)
	}
}

// addSub registers a disposer under key; subscribing twice for the
// same key keeps the first watcher and discards the new one.
func (c *Client) addSub(key string, dispose func()) {
	c.subsMu.Lock()
	_, exists := c.subs[key]
	if !exists {
		c.subs[key] = dispose
	}
	c.subsMu.Unlock()
	if exists {
		dispose()
	}
}

func (c *Client) dropSub(key string) {
	c.subsMu.Lock()
	dispose, ok := c.subs[key]
	delete(c.subs, key)
	c.subsMu.Unlock()
	if ok {
		dispose()
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("[WS] Write error for client %s: %v", c.userID, err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
