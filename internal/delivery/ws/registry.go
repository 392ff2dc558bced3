package ws

import (
	"context"
	"log/slog"

	"github.com/mmuslimabdulj/goat-dm/internal/domain"
)

// Registry maps each username to its live connection. The maps are owned by
// the Run goroutine; every other goroutine talks to it over channels.
//
// At most one connection is routable per username: a newer connection replaces
// the older one, which stays open but no longer receives pushes. A replaced
// connection disconnecting later does not unbind its successor.
type Registry struct {
	register   chan *Client
	unregister chan *Client
	resolve    chan resolveRequest
	online     chan onlineRequest
	count      chan chan int
	done       chan struct{}

	byUser   map[string]*Client
	byClient map[*Client]string

	log *slog.Logger
}

type resolveRequest struct {
	username string
	reply    chan *Client
}

type onlineRequest struct {
	usernames []string
	reply     chan map[string]bool
}

// NewRegistry creates a Registry. Call Run before using it.
func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		resolve:    make(chan resolveRequest),
		online:     make(chan onlineRequest),
		count:      make(chan chan int),
		done:       make(chan struct{}),
		byUser:     make(map[string]*Client),
		byClient:   make(map[*Client]string),
		log:        log,
	}
}

// Run serves registry requests until ctx is cancelled, then closes every
// connection it still tracks.
func (r *Registry) Run(ctx context.Context) {
	defer func() {
		for c := range r.byClient {
			c.close()
		}
		r.byClient = nil
		r.byUser = nil
		close(r.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-r.register:
			if prev, ok := r.byUser[c.Username]; ok && prev != c {
				r.log.Debug("connection replaced", "user", c.Username, "old", prev.ID, "new", c.ID)
			}
			r.byUser[c.Username] = c
			r.byClient[c] = c.Username

		case c := <-r.unregister:
			username, ok := r.byClient[c]
			if !ok {
				continue
			}
			delete(r.byClient, c)
			if r.byUser[username] == c {
				delete(r.byUser, username)
			}
			c.close()

		case req := <-r.resolve:
			req.reply <- r.byUser[req.username]

		case req := <-r.online:
			out := make(map[string]bool, len(req.usernames))
			for _, u := range req.usernames {
				if _, ok := r.byUser[u]; ok {
					out[u] = true
				}
			}
			req.reply <- out

		case reply := <-r.count:
			reply <- len(r.byUser)
		}
	}
}

// Connect binds c as the live connection of c.Username
func (r *Registry) Connect(c *Client) {
	select {
	case r.register <- c:
	case <-r.done:
		c.close()
	}
}

// Disconnect forgets c. Unknown connections are ignored.
func (r *Registry) Disconnect(c *Client) {
	select {
	case r.unregister <- c:
	case <-r.done:
	}
}

// Resolve returns the live connection of username
func (r *Registry) Resolve(username string) (domain.Endpoint, bool) {
	c := r.lookup(username)
	if c == nil {
		return nil, false
	}
	return c, true
}

func (r *Registry) lookup(username string) *Client {
	reply := make(chan *Client, 1)
	select {
	case r.resolve <- resolveRequest{username: username, reply: reply}:
		return <-reply
	case <-r.done:
		return nil
	}
}

// Online reports which of usernames are connected
func (r *Registry) Online(usernames []string) map[string]bool {
	reply := make(chan map[string]bool, 1)
	select {
	case r.online <- onlineRequest{usernames: usernames, reply: reply}:
		return <-reply
	case <-r.done:
		return map[string]bool{}
	}
}

// Count returns the number of routable usernames
func (r *Registry) Count() int {
	reply := make(chan int, 1)
	select {
	case r.count <- reply:
		return <-reply
	case <-r.done:
		return 0
	}
}
