package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/mmuslimabdulj/goat-dm/internal/domain"
	"github.com/mmuslimabdulj/goat-dm/internal/store"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	dsn := fmt.Sprintf("file:uc_%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	s, err := store.NewSQLiteStore(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func seedUsers(t *testing.T, s store.Users, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, s.CreateUser(context.Background(), domain.NewUser(name, "hash")))
	}
}

// recordingEndpoint captures pushed frames
type recordingEndpoint struct {
	mu     sync.Mutex
	frames [][]byte
}

func (e *recordingEndpoint) Send(msg []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.frames = append(e.frames, msg)
}

func (e *recordingEndpoint) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.frames)
}

func (e *recordingEndpoint) payloads(t *testing.T) []domain.NewPrivateMessagePayload {
	t.Helper()
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]domain.NewPrivateMessagePayload, 0, len(e.frames))
	for _, f := range e.frames {
		var env domain.Envelope
		require.NoError(t, json.Unmarshal(f, &env))
		if env.Type != domain.EventNewPrivateMessage {
			continue
		}
		var p domain.NewPrivateMessagePayload
		require.NoError(t, json.Unmarshal(env.Payload, &p))
		out = append(out, p)
	}
	return out
}

// mapDirectory is a static username -> endpoint table
type mapDirectory map[string]domain.Endpoint

func (d mapDirectory) Resolve(username string) (domain.Endpoint, bool) {
	ep, ok := d[username]
	return ep, ok
}

func (d mapDirectory) Online(usernames []string) map[string]bool {
	out := make(map[string]bool, len(usernames))
	for _, u := range usernames {
		if _, ok := d[u]; ok {
			out[u] = true
		}
	}
	return out
}

// stubTranslator returns out or err
type stubTranslator struct {
	out    string
	err    error
	calls  int
	source string
	target string
}

func (s *stubTranslator) Translate(_ context.Context, text, source, target string) (string, error) {
	s.calls++
	s.source = source
	s.target = target
	if s.err != nil {
		return "", s.err
	}
	return s.out, nil
}
