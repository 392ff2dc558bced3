package domain

import "errors"

var (
	// Store-level errors.
	ErrNotFound = errors.New("not found")

	// Account errors.
	ErrUnauthenticated    = errors.New("authentication required")
	ErrDuplicateUsername  = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidInput       = errors.New("username and password are required")

	// Messaging errors.
	ErrInvalidMessage = errors.New("invalid message")
)
