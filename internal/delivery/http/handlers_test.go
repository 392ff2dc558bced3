package http

import (
	"encoding/json"
	"html"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmuslimabdulj/goat-dm/internal/config"
	"github.com/mmuslimabdulj/goat-dm/internal/domain"
	"github.com/mmuslimabdulj/goat-dm/internal/logging"
)

// === SECURITY TESTS ===

func TestCheckOrigin(t *testing.T) {
	cfg := config.DefaultConfig()
	h := NewHandler(t.Context(), cfg, Services{}, logging.Discard())

	tests := []struct {
		origin   string
		host     string
		expected bool
	}{
		{"http://localhost:8080", "localhost:8080", true},
		{"http://localhost:3000", "localhost:8080", true},
		{"", "localhost:8080", true},
		{"https://chat.example.com", "chat.example.com", true},
		{"http://evil.com", "localhost:8080", false},
		{"https://attacker.com", "chat.example.com", false},
	}

	for _, tc := range tests {
		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		req.Host = tc.host
		if tc.origin != "" {
			req.Header.Set("Origin", tc.origin)
		}
		assert.Equal(t, tc.expected, h.checkOrigin(req), "origin %q host %q", tc.origin, tc.host)
	}
}

func TestGuards_RedirectPagesRejectAPI(t *testing.T) {
	app := setupTestApp(t, nil)
	anon := app.browser(t)

	for _, path := range []string{"/chat", "/chat/bob", "/search_user?query=bob"} {
		resp := app.get(t, anon, path)
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode, path)
		assert.Equal(t, "/login", resp.Header.Get("Location"), path)
	}

	for _, path := range []string{"/api/contacts", "/api/messages/bob", "/ws"} {
		resp := app.get(t, anon, path)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
	}
}

func TestGuards_ForgedSession(t *testing.T) {
	app := setupTestApp(t, nil)
	c := app.browser(t)

	req, err := http.NewRequest(http.MethodGet, app.server.URL+"/api/contacts", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: "session", Value: "not-a-token"})
	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebSocket_RejectedWithoutSession(t *testing.T) {
	app := setupTestApp(t, nil)

	wsURL := "ws" + app.server.URL[len("http"):] + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 0, app.registry.Count())
}

func TestSecurityHeadersApplied(t *testing.T) {
	app := setupTestApp(t, nil)
	resp := app.get(t, app.browser(t), "/login")

	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
}

// === AUTH FLOW TESTS ===

func TestIndex(t *testing.T) {
	app := setupTestApp(t, nil)

	resp := app.get(t, app.browser(t), "/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `action="/login"`)

	alice := app.signUp(t, "alice")
	resp = app.get(t, alice, "/")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/chat", resp.Header.Get("Location"))
}

func TestRegister(t *testing.T) {
	app := setupTestApp(t, nil)
	c := app.browser(t)

	resp := app.postForm(t, c, "/register", url.Values{
		"username": {"alice"}, "password": {"pw"}, "age": {"30"}, "gender": {"female"},
	})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
	assert.Equal(t, flashRegistered, flashOf(resp))

	u, err := app.store.GetUser(t.Context(), "alice")
	require.NoError(t, err)
	require.NotNil(t, u.Age)
	assert.Equal(t, 30, *u.Age)
	require.NotNil(t, u.Gender)
	assert.Equal(t, "female", *u.Gender)
	assert.NotEqual(t, "pw", u.PasswordHash)
}

func TestRegister_Duplicate(t *testing.T) {
	app := setupTestApp(t, nil)
	c := app.browser(t)

	app.postForm(t, c, "/register", url.Values{"username": {"alice"}, "password": {"first"}})
	resp := app.postForm(t, c, "/register", url.Values{"username": {"alice"}, "password": {"second"}})

	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/register", resp.Header.Get("Location"))
	assert.Equal(t, flashDuplicate, flashOf(resp))

	// The original password still works
	resp = app.postForm(t, c, "/login", url.Values{"username": {"alice"}, "password": {"first"}})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
}

func TestRegister_LongPassword(t *testing.T) {
	app := setupTestApp(t, nil)
	c := app.browser(t)
	long := strings.Repeat("secret-", 12)

	resp := app.postForm(t, c, "/register", url.Values{"username": {"alice"}, "password": {long}})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	resp = app.postForm(t, c, "/login", url.Values{"username": {"alice"}, "password": {long}})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/chat", resp.Header.Get("Location"))

	resp = app.postForm(t, app.browser(t), "/login", url.Values{"username": {"alice"}, "password": {long[:72]}})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRegister_MissingFields(t *testing.T) {
	app := setupTestApp(t, nil)

	resp := app.postForm(t, app.browser(t), "/register", url.Values{"username": {"  "}, "password": {"pw"}})

	assert.Equal(t, "/register", resp.Header.Get("Location"))
	assert.Equal(t, flashMissing, flashOf(resp))
}

func TestRegisterPage_ShowsFlashOnce(t *testing.T) {
	app := setupTestApp(t, nil)
	c := app.browser(t)

	app.postForm(t, c, "/register", url.Values{"username": {"alice"}, "password": {"pw"}})
	app.postForm(t, c, "/register", url.Values{"username": {"alice"}, "password": {"pw"}})

	resp := app.get(t, c, "/register")
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), flashDuplicate)

	resp = app.get(t, c, "/register")
	body, _ = io.ReadAll(resp.Body)
	assert.NotContains(t, string(body), flashDuplicate)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	app := setupTestApp(t, nil)
	app.signUp(t, "alice")
	c := app.browser(t)

	for _, form := range []url.Values{
		{"username": {"alice"}, "password": {"wrong"}},
		{"username": {"nobody"}, "password": {"pw"}},
	} {
		resp := app.postForm(t, c, "/login", form)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		body, _ := io.ReadAll(resp.Body)
		assert.Contains(t, string(body), flashBadLogin)
		assert.Empty(t, resp.Cookies(), "no session on failure")
	}
}

func TestLogout(t *testing.T) {
	app := setupTestApp(t, nil)
	alice := app.signUp(t, "alice")

	resp := app.postForm(t, alice, "/logout", nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	resp = app.get(t, alice, "/chat")
	assert.Equal(t, "/login", resp.Header.Get("Location"))
}

// === CHAT PAGES ===

func TestChatPage(t *testing.T) {
	app := setupTestApp(t, nil)
	alice := app.signUp(t, "alice")
	app.signUp(t, "bob")
	app.signUp(t, "<carol>")

	resp := app.get(t, alice, "/chat")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	page := string(body)

	assert.Contains(t, page, `href="/chat/bob"`)
	assert.Contains(t, page, "&lt;carol&gt;")
	assert.NotContains(t, page, "<carol>")
	assert.NotContains(t, page, `href="/chat/alice"`)
}

func TestConversationPage(t *testing.T) {
	app := setupTestApp(t, nil)
	alice := app.signUp(t, "alice")
	app.signUp(t, "bob")

	resp := app.get(t, alice, "/chat/bob")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `data-peer="bob"`)

	// Case variants redirect to the registered spelling
	resp = app.get(t, alice, "/chat/BOB")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/chat/bob", resp.Header.Get("Location"))

	resp = app.get(t, alice, "/chat/nobody")
	assert.Equal(t, "/chat", resp.Header.Get("Location"))
	assert.Equal(t, flashUserNotFound, flashOf(resp))
}

func TestConversationPage_EscapedUsernames(t *testing.T) {
	app := setupTestApp(t, nil)
	alice := app.signUp(t, "alice")

	for _, name := range []string{"a/b", "100%", "x/y%z", "Émile"} {
		app.signUp(t, name)

		resp := app.get(t, alice, "/search_user?query="+url.QueryEscape(name))
		require.Equal(t, http.StatusSeeOther, resp.StatusCode, name)
		location := resp.Header.Get("Location")
		assert.Equal(t, "/chat/"+url.PathEscape(name), location, name)

		resp = app.get(t, alice, location)
		require.Equal(t, http.StatusOK, resp.StatusCode, name)
		body, _ := io.ReadAll(resp.Body)
		assert.Contains(t, string(body), `data-peer="`+html.EscapeString(name)+`"`, name)
	}
}

func TestAPIMessages_EscapedUsername(t *testing.T) {
	app := setupTestApp(t, nil)
	alice := app.signUp(t, "alice")
	ab := app.signUp(t, "a/b")

	conn := app.dial(t, ab)
	app.waitOnline(t, "a/b")
	sendPrivate(t, conn, "alice", "hi from a/b")
	readMessage(t, conn)

	resp := app.get(t, alice, "/api/messages/"+url.PathEscape("a/b"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var msgs []domain.Message
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&msgs))
	require.Len(t, msgs, 1)
	assert.Equal(t, "a/b", msgs[0].Sender)
}

func TestSearchUser_Unicode(t *testing.T) {
	app := setupTestApp(t, nil)
	alice := app.signUp(t, "alice")
	app.signUp(t, "Émile")

	resp := app.get(t, alice, "/search_user?query="+url.QueryEscape("émile"))
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/chat/"+url.PathEscape("Émile"), resp.Header.Get("Location"))
}

func TestSearchUser(t *testing.T) {
	app := setupTestApp(t, nil)
	alice := app.signUp(t, "alice")
	app.signUp(t, "Bob")

	resp := app.get(t, alice, "/search_user?query=bob")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/chat/Bob", resp.Header.Get("Location"))

	resp = app.get(t, alice, "/search_user?query=b.b")
	assert.Equal(t, "/chat", resp.Header.Get("Location"))
	assert.Equal(t, flashUserNotFound, flashOf(resp))
}

// === API ===

func TestAPIContacts(t *testing.T) {
	app := setupTestApp(t, nil)
	alice := app.signUp(t, "alice")
	bob := app.signUp(t, "bob")
	app.signUp(t, "carol")

	app.dial(t, bob)
	app.waitOnline(t, "bob")

	resp := app.get(t, alice, "/api/contacts")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var got contactsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, []domain.Contact{
		{Username: "bob", Online: true},
		{Username: "carol", Online: false},
	}, got.Contacts)
	assert.ElementsMatch(t, []string{"bob", "carol"}, got.Suggestions)
}

func TestAPIMessages_Empty(t *testing.T) {
	app := setupTestApp(t, nil)
	alice := app.signUp(t, "alice")

	resp := app.get(t, alice, "/api/messages/bob")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `[]`, string(body))
}

func TestHealth(t *testing.T) {
	app := setupTestApp(t, nil)

	resp := app.get(t, app.browser(t), "/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"status":"ok","connections":0}`, string(body))
}

// === LIVE MESSAGING ===

func TestLiveMessaging_OnlineReceiver(t *testing.T) {
	app := setupTestApp(t, upperTranslator{})
	alice := app.signUp(t, "alice")
	bob := app.signUp(t, "bob")

	aliceConn := app.dial(t, alice)
	bobConn := app.dial(t, bob)
	app.waitOnline(t, "alice", "bob")

	sendPrivate(t, aliceConn, "bob", "hola")

	got := readMessage(t, bobConn)
	assert.Equal(t, "alice", got.Sender)
	assert.Equal(t, "bob", got.Receiver)
	assert.Equal(t, "HOLA", got.Message)
	assert.Equal(t, "hola", got.OriginalMessage)
	assert.True(t, got.Translated)

	echo := readMessage(t, aliceConn)
	assert.Equal(t, got.ID, echo.ID)

	// Persisted and visible to both sides
	for _, c := range []*http.Client{alice, bob} {
		peer := "bob"
		if c == bob {
			peer = "alice"
		}
		resp := app.get(t, c, "/api/messages/"+peer)
		var msgs []domain.Message
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&msgs))
		require.Len(t, msgs, 1)
		assert.Equal(t, "hola", msgs[0].Body)
		require.NotNil(t, msgs[0].Translated)
		assert.Equal(t, "HOLA", *msgs[0].Translated)
	}
}

func TestLiveMessaging_OfflineReceiver(t *testing.T) {
	app := setupTestApp(t, nil)
	alice := app.signUp(t, "alice")
	bob := app.signUp(t, "bob")

	aliceConn := app.dial(t, alice)
	app.waitOnline(t, "alice")

	sendPrivate(t, aliceConn, "bob", "are you there?")

	echo := readMessage(t, aliceConn)
	assert.Equal(t, "are you there?", echo.Message)
	assert.False(t, echo.Translated)

	// Bob finds it in his history later
	resp := app.get(t, bob, "/chat/alice")
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "are you there?")
}

func TestLiveMessaging_Typing(t *testing.T) {
	app := setupTestApp(t, nil)
	alice := app.signUp(t, "alice")
	bob := app.signUp(t, "bob")

	aliceConn := app.dial(t, alice)
	bobConn := app.dial(t, bob)
	app.waitOnline(t, "alice", "bob")

	payload, _ := json.Marshal(domain.TypingPayload{Receiver: "bob"})
	require.NoError(t, aliceConn.WriteJSON(domain.Envelope{Type: domain.EventTyping, Payload: payload}))

	env := readEvent(t, bobConn)
	require.Equal(t, domain.EventTyping, env.Type)
	var p domain.TypingPayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Equal(t, "alice", p.Sender)
}

func TestLiveMessaging_Reconnect(t *testing.T) {
	app := setupTestApp(t, nil)
	alice := app.signUp(t, "alice")
	bob := app.signUp(t, "bob")

	aliceConn := app.dial(t, alice)
	oldBob := app.dial(t, bob)
	app.waitOnline(t, "alice", "bob")
	first, _ := app.registry.Resolve("bob")

	newBob := app.dial(t, bob)
	var second domain.Endpoint
	require.Eventually(t, func() bool {
		second, _ = app.registry.Resolve("bob")
		return second != first
	}, 2*time.Second, 10*time.Millisecond)

	sendPrivate(t, aliceConn, "bob", "ping")
	readMessage(t, aliceConn)
	assert.Equal(t, "ping", readMessage(t, newBob).Message)

	// Closing the replaced connection leaves the new binding alone
	oldBob.Close()
	time.Sleep(100 * time.Millisecond)
	ep, ok := app.registry.Resolve("bob")
	require.True(t, ok)
	assert.Equal(t, second, ep)

	sendPrivate(t, aliceConn, "bob", "still there?")
	readMessage(t, aliceConn)
	assert.Equal(t, "still there?", readMessage(t, newBob).Message)
}
