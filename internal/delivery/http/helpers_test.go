package http

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/mmuslimabdulj/goat-dm/internal/auth"
	"github.com/mmuslimabdulj/goat-dm/internal/config"
	"github.com/mmuslimabdulj/goat-dm/internal/delivery/ws"
	"github.com/mmuslimabdulj/goat-dm/internal/domain"
	"github.com/mmuslimabdulj/goat-dm/internal/logging"
	"github.com/mmuslimabdulj/goat-dm/internal/middleware"
	"github.com/mmuslimabdulj/goat-dm/internal/store"
	"github.com/mmuslimabdulj/goat-dm/internal/translate"
	"github.com/mmuslimabdulj/goat-dm/internal/usecase"
)

type testApp struct {
	server   *httptest.Server
	registry *ws.Registry
	store    store.Store
	sessions *auth.Sessions
}

type upperTranslator struct{}

func (upperTranslator) Translate(_ context.Context, text, _, _ string) (string, error) {
	return strings.ToUpper(text), nil
}

func setupTestApp(t *testing.T, translator translate.Translator) *testApp {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := config.DefaultConfig()
	cfg.SessionSecret = strings.Repeat("k", auth.MinSecretLength)
	// Tests fire requests faster than any real client
	cfg.RateLimitAPI = 1000
	cfg.RateLimitWS = 1000
	cfg.RateLimitStrict = 1000
	log := logging.Discard()

	dsn := fmt.Sprintf("file:http_%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	st, err := store.NewSQLiteStore(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close(context.Background()) })

	registry := ws.NewRegistry(log)
	go registry.Run(ctx)

	sessions := auth.NewSessions(cfg.SessionSecret, cfg.SessionTTL, false)
	svc := Services{
		Sessions:  sessions,
		Accounts:  usecase.NewAccounts(st, log),
		Contacts:  usecase.NewContacts(st, registry),
		Messenger: usecase.NewMessenger(st, translator, registry, cfg.TranslateTarget, time.Second, log),
		Registry:  registry,
	}
	h := NewHandler(ctx, cfg, svc, log)
	srv := httptest.NewServer(NewRouter(h, middleware.NewLimiters(ctx, cfg), log))
	t.Cleanup(srv.Close)

	return &testApp{server: srv, registry: registry, store: st, sessions: sessions}
}

// browser returns a client with its own cookie jar that does not follow
// redirects
func (a *testApp) browser(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (a *testApp) postForm(t *testing.T, c *http.Client, path string, form url.Values) *http.Response {
	t.Helper()
	resp, err := c.PostForm(a.server.URL+path, form)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (a *testApp) get(t *testing.T, c *http.Client, path string) *http.Response {
	t.Helper()
	resp, err := c.Get(a.server.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// signUp registers username and returns a signed-in client
func (a *testApp) signUp(t *testing.T, username string) *http.Client {
	t.Helper()
	c := a.browser(t)
	creds := url.Values{"username": {username}, "password": {"pw-" + username}}
	resp := a.postForm(t, c, "/register", creds)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	resp = a.postForm(t, c, "/login", creds)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/chat", resp.Header.Get("Location"))
	return c
}

// dial opens a websocket as the user signed in on c
func (a *testApp) dial(t *testing.T, c *http.Client) *websocket.Conn {
	t.Helper()
	u, err := url.Parse(a.server.URL)
	require.NoError(t, err)

	header := http.Header{}
	for _, ck := range c.Jar.Cookies(u) {
		header.Add("Cookie", ck.Name+"="+ck.Value)
	}

	wsURL := "ws" + strings.TrimPrefix(a.server.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

// waitOnline blocks until every username is routable
func (a *testApp) waitOnline(t *testing.T, usernames ...string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(a.registry.Online(usernames)) == len(usernames)
	}, 2*time.Second, 10*time.Millisecond)
}

func readEvent(t *testing.T, conn *websocket.Conn) domain.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env domain.Envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func readMessage(t *testing.T, conn *websocket.Conn) domain.NewPrivateMessagePayload {
	t.Helper()
	env := readEvent(t, conn)
	require.Equal(t, domain.EventNewPrivateMessage, env.Type)
	var p domain.NewPrivateMessagePayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	return p
}

func sendPrivate(t *testing.T, conn *websocket.Conn, receiver, body string) {
	t.Helper()
	payload, err := json.Marshal(domain.PrivateMessagePayload{Receiver: receiver, Message: body})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(domain.Envelope{Type: domain.EventPrivateMessage, Payload: payload}))
}

func flashOf(resp *http.Response) string {
	for _, c := range resp.Cookies() {
		if c.Name == flashCookie && c.MaxAge >= 0 {
			raw, _ := base64.RawURLEncoding.DecodeString(c.Value)
			return string(raw)
		}
	}
	return ""
}
