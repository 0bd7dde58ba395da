// Package store is the relational user directory: accounts, password
// hashes and public profiles, keyed by uid and by the unique
// (username, tag) handle. Realtime conversation state lives in rtdb,
// not here.
package store

import (
	"database/sql"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"

	"banter-server/models"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	store := &Store{db: db}
	if err := store.init(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *Store) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		tag TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		avatar_url TEXT,
		status_text TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(username, tag)
	);

	CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// CreateUser registers an account, picking a random 4-digit tag and
// retrying on (username, tag) collisions until one is free.
func (s *Store) CreateUser(username, password, avatarURL string) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: string(hash),
		AvatarURL:    avatarURL,
		CreatedAt:    time.Now().UTC(),
	}

	for attempt := 0; attempt < 50; attempt++ {
		user.Tag = fmt.Sprintf("%04d", rand.Intn(10000))
		_, err = s.db.Exec(
			`INSERT INTO users (id, username, tag, password_hash, avatar_url, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			user.ID, user.Username, user.Tag, user.PasswordHash, user.AvatarURL, user.CreatedAt,
		)
		if err == nil {
			return user, nil
		}
	}
	return nil, fmt.Errorf("no free tag for username %q: %w", username, err)
}

func (s *Store) GetUserByID(id string) (*models.User, error) {
	return s.scanUser(s.db.QueryRow(
		`SELECT id, username, tag, password_hash, avatar_url, status_text, created_at FROM users WHERE id = ?`, id))
}

func (s *Store) GetUserByHandle(username, tag string) (*models.User, error) {
	return s.scanUser(s.db.QueryRow(
		`SELECT id, username, tag, password_hash, avatar_url, status_text, created_at FROM users WHERE username = ? AND tag = ?`,
		username, tag))
}

func (s *Store) scanUser(row *sql.Row) (*models.User, error) {
	var user models.User
	var avatar, status sql.NullString
	err := row.Scan(&user.ID, &user.Username, &user.Tag, &user.PasswordHash, &avatar, &status, &user.CreatedAt)
	if err != nil {
		return nil, err
	}
	user.AvatarURL = avatar.String
	user.StatusText = status.String
	return &user, nil
}

func (s *Store) UpdateAvatar(userID, avatarURL string) error {
	_, err := s.db.Exec(`UPDATE users SET avatar_url = ? WHERE id = ?`, avatarURL, userID)
	return err
}

func (s *Store) UpdateStatusText(userID, statusText string) error {
	_, err := s.db.Exec(`UPDATE users SET status_text = ? WHERE id = ?`, statusText, userID)
	return err
}

func (s *Store) ValidatePassword(user *models.User, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password))
	return err == nil
}

// Profile implements chat.Directory.
func (s *Store) Profile(uid string) (*models.UserResponse, error) {
	user, err := s.GetUserByID(uid)
	if err != nil {
		return nil, err
	}
	resp := user.ToResponse()
	return &resp, nil
}

// ProfileByHandle implements chat.Directory.
func (s *Store) ProfileByHandle(username, tag string) (*models.UserResponse, error) {
	user, err := s.GetUserByHandle(username, tag)
	if err != nil {
		return nil, err
	}
	resp := user.ToResponse()
	return &resp, nil
}
