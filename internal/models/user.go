// ABOUTME: User model with notification preference and API key identity
// ABOUTME: Auth UI is out of scope; users are resolved from an API key header

package models

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// User represents an account that owns subscriptions and listened marks.
type User struct {
	ID                  string
	Email               string
	Name                string
	APIKey              string
	NotifyOnNewEpisodes bool
	CreatedAt           time.Time
}

// NewUser creates a new User with a generated ID and API key.
func NewUser(email, name string) *User {
	return &User{
		ID:        uuid.New().String(),
		Email:     email,
		Name:      name,
		APIKey:    newAPIKey(),
		CreatedAt: time.Now(),
	}
}

func newAPIKey() string {
	buf := make([]byte, 24)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
