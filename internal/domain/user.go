package domain

import (
	"time"

	"golang.org/x/text/cases"
)

// User is a registered account. Username is the case-sensitive primary key.
type User struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Age          *int      `json:"age,omitempty"`
	Gender       *string   `json:"gender,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewUser creates a User stamped with the current UTC time
func NewUser(username, passwordHash string) *User {
	return &User{
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
}

// Contact is another registered user as seen from the contact list
type Contact struct {
	Username string `json:"username"`
	Online   bool   `json:"online"`
}

// FoldUsername is the case-insensitive search key of a username. It uses full
// Unicode case folding, so "Émile" and "ÉMILE" share a key.
func FoldUsername(username string) string {
	return cases.Fold().String(username)
}
