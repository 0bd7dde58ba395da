package models

import (
	"fmt"
	"time"
)

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Tag          string    `json:"tag"`
	PasswordHash string    `json:"-"`
	AvatarURL    string    `json:"avatar_url,omitempty"`
	StatusText   string    `json:"status_text,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type UserResponse struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	Tag        string `json:"tag"`
	AvatarURL  string `json:"avatar_url,omitempty"`
	StatusText string `json:"status_text,omitempty"`
}

func (u *User) ToResponse() UserResponse {
	return UserResponse{
		ID:         u.ID,
		Username:   u.Username,
		Tag:        u.Tag,
		AvatarURL:  u.AvatarURL,
		StatusText: u.StatusText,
	}
}

// Handle is the globally unique username#tag pair used for contact lookup.
func (u *UserResponse) Handle() string {
	return fmt.Sprintf("%s#%s", u.Username, u.Tag)
}

type RegisterRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Tag      string `json:"tag"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type UpdateProfileRequest struct {
	AvatarURL  *string `json:"avatar_url,omitempty"`
	StatusText *string `json:"status_text,omitempty"`
}

type AddContactRequest struct {
	Username string `json:"username"`
	Tag      string `json:"tag"`
}
