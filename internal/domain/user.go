package domain

import (
	"encoding/json"
	"time"
)

type User struct {
	ID            string
	Email         string
	Name          string
	PasswordHash  string
	IsActive      bool
	IsVerified    bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
	LastLogin     *time.Time
	Preferences   map[string]any
	OAuthProvider string
	OAuthID       string
}

// PreferencesJSON encodes preferences for storage, never returning null.
func (u *User) PreferencesJSON() ([]byte, error) {
	if u.Preferences == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(u.Preferences)
}

// Session is the server-side record created on each login.
type Session struct {
	Token        string    `json:"token"`
	UserID       string    `json:"user_id"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	IPAddress    string    `json:"ip_address,omitempty"`
	UserAgent    string    `json:"user_agent,omitempty"`
}
