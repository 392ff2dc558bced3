package usecase

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"

	"github.com/mmuslimabdulj/goat-dm/internal/domain"
	"github.com/mmuslimabdulj/goat-dm/internal/store"
)

// Presence reports which usernames currently hold a live connection
type Presence interface {
	Online(usernames []string) map[string]bool
}

// Contacts derives the contact list. There is no friend graph: every other
// registered user is a contact.
type Contacts struct {
	users    store.Users
	presence Presence
	shuffle  func(n int, swap func(i, j int))
}

// NewContacts creates a Contacts service. presence may be nil.
func NewContacts(users store.Users, presence Presence) *Contacts {
	return &Contacts{users: users, presence: presence, shuffle: rand.Shuffle}
}

// List returns every registered username except current, sorted
func (c *Contacts) List(ctx context.Context, current string) ([]string, error) {
	return c.users.ListOtherUsernames(ctx, current)
}

// ListWithPresence is List annotated with online state
func (c *Contacts) ListWithPresence(ctx context.Context, current string) ([]domain.Contact, error) {
	names, err := c.List(ctx, current)
	if err != nil {
		return nil, err
	}

	var online map[string]bool
	if c.presence != nil {
		online = c.presence.Online(names)
	}

	contacts := make([]domain.Contact, 0, len(names))
	for _, name := range names {
		contacts = append(contacts, domain.Contact{Username: name, Online: online[name]})
	}
	return contacts, nil
}

// Find resolves query to a registered username, ignoring case
func (c *Contacts) Find(ctx context.Context, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", domain.ErrUserNotFound
	}

	user, err := c.users.FindUserFold(ctx, query)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", domain.ErrUserNotFound
		}
		return "", err
	}
	return user.Username, nil
}

// Suggest draws min(n, |others|) distinct usernames uniformly at random
func (c *Contacts) Suggest(ctx context.Context, current string, n int) ([]string, error) {
	names, err := c.List(ctx, current)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return []string{}, nil
	}

	c.shuffle(len(names), func(i, j int) { names[i], names[j] = names[j], names[i] })
	if n < len(names) {
		names = names[:n]
	}
	return names, nil
}
