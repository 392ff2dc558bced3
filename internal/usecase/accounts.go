package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mmuslimabdulj/goat-dm/internal/auth"
	"github.com/mmuslimabdulj/goat-dm/internal/domain"
	"github.com/mmuslimabdulj/goat-dm/internal/store"
)

// Registration is the input of Accounts.Register
type Registration struct {
	Username string
	Password string
	Age      *int
	Gender   *string
}

// Accounts registers and authenticates users
type Accounts struct {
	users store.Users
	log   *slog.Logger
}

// NewAccounts creates an Accounts service over users
func NewAccounts(users store.Users, log *slog.Logger) *Accounts {
	return &Accounts{users: users, log: log}
}

// Register creates a new account. An existing username yields
// domain.ErrDuplicateUsername and leaves the stored account untouched.
func (a *Accounts) Register(ctx context.Context, reg Registration) (*domain.User, error) {
	username := strings.TrimSpace(reg.Username)
	if username == "" || reg.Password == "" {
		return nil, domain.ErrInvalidInput
	}

	// Pre-check; the unique index catches the concurrent case.
	_, err := a.users.GetUser(ctx, username)
	switch {
	case err == nil:
		return nil, domain.ErrDuplicateUsername
	case !errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("failed to check username: %w", err)
	}

	hash, err := auth.HashPassword(reg.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := domain.NewUser(username, hash)
	user.Age = reg.Age
	user.Gender = reg.Gender

	if err := a.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	a.log.InfoContext(ctx, "user registered", "user", username)
	return user, nil
}

// Authenticate checks credentials. Unknown users and wrong passwords both
// yield domain.ErrInvalidCredentials.
func (a *Accounts) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	user, err := a.users.GetUser(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}
	return user, nil
}
