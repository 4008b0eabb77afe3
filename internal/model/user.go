package model

import (
	"io"
	"time"
)

// User is the authenticated account as returned by /user/auth.
type User struct {
	ID       ID     `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

// UserProfile is the public profile of a user.
type UserProfile struct {
	UserID    ID        `json:"user_id"`
	Username  string    `json:"username"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	Bio       string    `json:"bio,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ProfileUpdate carries the optional fields of a profile edit.
// Empty fields are left unchanged by the backend.
type ProfileUpdate struct {
	Username       string
	Bio            string
	AvatarFilename string
	Avatar         io.Reader
}

// LoginCredentials is the login request body. The backend names the
// password field "data".
type LoginCredentials struct {
	Username string `json:"username"`
	Password string `json:"data"`
}

// RegisterCredentials is the registration request body.
type RegisterCredentials struct {
	LoginCredentials
	Email string `json:"email"`
}
