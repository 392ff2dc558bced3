// Package store persists accounts and direct messages. SQLStore serves SQLite
// and PostgreSQL through database/sql; MongoStore serves MongoDB. Misses are
// reported as domain.ErrNotFound and unique-username violations as
// domain.ErrDuplicateUsername, so callers match with errors.Is.
package store

import (
	"context"
	"fmt"

	"github.com/mmuslimabdulj/goat-dm/internal/config"
	"github.com/mmuslimabdulj/goat-dm/internal/domain"
)

// Users is the account store
type Users interface {
	CreateUser(ctx context.Context, u *domain.User) error
	GetUser(ctx context.Context, username string) (*domain.User, error)
	// FindUserFold matches username case-insensitively. An exact-case match
	// wins over other case variants.
	FindUserFold(ctx context.Context, query string) (*domain.User, error)
	// ListOtherUsernames returns every username except exclude, sorted.
	ListOtherUsernames(ctx context.Context, exclude string) ([]string, error)
}

// Messages is the append-only direct-message log
type Messages interface {
	SaveMessage(ctx context.Context, m *domain.Message) error
	// Conversation returns the messages exchanged between a and b in either
	// direction, oldest first.
	Conversation(ctx context.Context, a, b string) ([]domain.Message, error)
}

// Store bundles both collections with a shutdown hook
type Store interface {
	Users
	Messages
	Close(ctx context.Context) error
}

// Open connects to the backend selected by cfg.StoreDriver and applies
// migrations where the backend needs them.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite, "":
		return NewSQLiteStore(ctx, cfg.DatabaseURL)
	case config.DriverPostgres:
		return NewPostgresStore(ctx, cfg.DatabaseURL)
	case config.DriverMongo:
		return NewMongoStore(ctx, cfg.DatabaseURL, cfg.MongoDatabase)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
