package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/mmuslimabdulj/goat-dm/internal/auth"
	"github.com/mmuslimabdulj/goat-dm/internal/config"
	"github.com/mmuslimabdulj/goat-dm/internal/delivery/ws"
	"github.com/mmuslimabdulj/goat-dm/internal/domain"
	"github.com/mmuslimabdulj/goat-dm/internal/usecase"
	"github.com/mmuslimabdulj/goat-dm/view/pages"
)

// Flash texts shown to users
const (
	flashDuplicate    = "Username already exists!"
	flashMissing      = "Username and password are required."
	flashRegistered   = "Registration successful! Please log in."
	flashBadLogin     = "Invalid credentials"
	flashUserNotFound = "User not found."
)

// Services are the use cases behind the HTTP surface
type Services struct {
	Sessions  *auth.Sessions
	Accounts  *usecase.Accounts
	Contacts  *usecase.Contacts
	Messenger *usecase.Messenger
	Registry  *ws.Registry
}

type Handler struct {
	cfg      *config.Config
	svc      Services
	upgrader websocket.Upgrader
	// base outlives individual requests; websocket pumps run under it
	base context.Context
	log  *slog.Logger
}

// NewHandler creates the HTTP handlers. Websocket connections are bound to
// ctx and end when it is cancelled.
func NewHandler(ctx context.Context, cfg *config.Config, svc Services, log *slog.Logger) *Handler {
	h := &Handler{cfg: cfg, svc: svc, base: ctx, log: log}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// checkOrigin accepts configured origins and same-host pages
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if h.cfg.IsOriginAllowed(origin) {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && u.Host == r.Host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// pathParam returns the decoded route parameter key. chi matches on the raw
// path when the request carries escapes such as %2F, leaving them in the
// parameter.
func pathParam(r *http.Request, key string) (string, error) {
	v := chi.URLParam(r, key)
	if r.URL.RawPath == "" {
		return v, nil
	}
	return url.PathUnescape(v)
}

func redirect(w http.ResponseWriter, r *http.Request, to string) {
	http.Redirect(w, r, to, http.StatusSeeOther)
}

// HandleIndex sends signed-in users to their chats and everyone else to the
// login form
func (h *Handler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	if _, err := h.svc.Sessions.CurrentUser(r); err == nil {
		redirect(w, r, "/chat")
		return
	}
	h.page(w, r, http.StatusOK, pages.Login(popFlash(w, r)))
}

// HandleRegisterPage serves the registration form
func (h *Handler) HandleRegisterPage(w http.ResponseWriter, r *http.Request) {
	h.page(w, r, http.StatusOK, pages.Register(popFlash(w, r)))
}

// HandleRegister creates an account from the submitted form
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	reg := usecase.Registration{
		Username: r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
	}
	if age, err := strconv.Atoi(strings.TrimSpace(r.PostFormValue("age"))); err == nil && age > 0 {
		reg.Age = &age
	}
	if gender := strings.TrimSpace(r.PostFormValue("gender")); gender != "" {
		reg.Gender = &gender
	}

	_, err := h.svc.Accounts.Register(r.Context(), reg)
	switch {
	case err == nil:
		setFlash(w, flashRegistered)
		redirect(w, r, "/login")
	case errors.Is(err, domain.ErrDuplicateUsername):
		setFlash(w, flashDuplicate)
		redirect(w, r, "/register")
	case errors.Is(err, domain.ErrInvalidInput):
		setFlash(w, flashMissing)
		redirect(w, r, "/register")
	default:
		h.log.ErrorContext(r.Context(), "registration failed", "err", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// HandleLoginPage serves the login form
func (h *Handler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	h.page(w, r, http.StatusOK, pages.Login(popFlash(w, r)))
}

// HandleLogin checks credentials and starts a session
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	user, err := h.svc.Accounts.Authenticate(r.Context(), r.PostFormValue("username"), r.PostFormValue("password"))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			h.page(w, r, http.StatusUnauthorized, pages.Login(flashBadLogin))
			return
		}
		h.log.ErrorContext(r.Context(), "login failed", "err", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if err := h.svc.Sessions.Login(w, user.Username); err != nil {
		h.log.ErrorContext(r.Context(), "session issue failed", "err", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	redirect(w, r, "/chat")
}

// HandleLogout ends the session
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.svc.Sessions.Logout(w)
	redirect(w, r, "/login")
}

// HandleChat serves the contact overview
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	h.chatPage(w, r, "")
}

// HandleConversation serves the conversation with the user named in the path.
// A differently-cased name is redirected to the registered spelling.
func (h *Handler) HandleConversation(w http.ResponseWriter, r *http.Request) {
	peer, err := pathParam(r, "username")
	if err != nil {
		http.Error(w, "Invalid username", http.StatusBadRequest)
		return
	}
	canonical, err := h.svc.Contacts.Find(r.Context(), peer)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			setFlash(w, flashUserNotFound)
			redirect(w, r, "/chat")
			return
		}
		h.internalError(w, r, err)
		return
	}
	if canonical != peer {
		redirect(w, r, "/chat/"+url.PathEscape(canonical))
		return
	}
	h.chatPage(w, r, canonical)
}

func (h *Handler) chatPage(w http.ResponseWriter, r *http.Request, peer string) {
	ctx := r.Context()
	current := userFrom(ctx)

	contacts, err := h.svc.Contacts.ListWithPresence(ctx, current)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	suggestions, err := h.svc.Contacts.Suggest(ctx, current, h.cfg.SuggestCount)
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	view := pages.ChatView{
		Current:     current,
		Contacts:    contacts,
		Suggestions: suggestions,
		Peer:        peer,
		Flash:       popFlash(w, r),
	}
	if peer != "" {
		view.Messages, err = h.svc.Messenger.History(ctx, current, peer)
		if err != nil {
			h.internalError(w, r, err)
			return
		}
	}
	h.page(w, r, http.StatusOK, pages.Chat(view))
}

// HandleSearchUser opens the conversation with the user matching query
func (h *Handler) HandleSearchUser(w http.ResponseWriter, r *http.Request) {
	username, err := h.svc.Contacts.Find(r.Context(), r.URL.Query().Get("query"))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			setFlash(w, flashUserNotFound)
			redirect(w, r, "/chat")
			return
		}
		h.internalError(w, r, err)
		return
	}
	redirect(w, r, "/chat/"+url.PathEscape(username))
}

type contactsResponse struct {
	Contacts    []domain.Contact `json:"contacts"`
	Suggestions []string         `json:"suggestions"`
}

// HandleContacts returns the contact list with presence and suggestions
func (h *Handler) HandleContacts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	current := userFrom(ctx)

	contacts, err := h.svc.Contacts.ListWithPresence(ctx, current)
	if err != nil {
		h.apiError(w, r, err)
		return
	}
	suggestions, err := h.svc.Contacts.Suggest(ctx, current, h.cfg.SuggestCount)
	if err != nil {
		h.apiError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, contactsResponse{Contacts: contacts, Suggestions: suggestions})
}

// HandleMessages returns the conversation between the session user and the
// user named in the path
func (h *Handler) HandleMessages(w http.ResponseWriter, r *http.Request) {
	peer, err := pathParam(r, "username")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid username")
		return
	}
	msgs, err := h.svc.Messenger.History(r.Context(), userFrom(r.Context()), peer)
	if err != nil {
		h.apiError(w, r, err)
		return
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

// HandleWebSocket upgrades an authenticated request and binds the connection
// to the session user
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	username := userFrom(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.DebugContext(r.Context(), "websocket upgrade failed", "err", err)
		return
	}

	client := ws.NewClient(h.svc.Registry, h.svc.Messenger, conn, username, h.cfg.MaxMessageSize, h.log)
	h.svc.Registry.Connect(client)

	go client.WritePump()
	go client.ReadPump(h.base)
}

// HandleHealth reports liveness
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"connections": h.svc.Registry.Count(),
	})
}

// page renders c fully before writing so a render error can still become a 500
func (h *Handler) page(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	var buf bytes.Buffer
	if err := c.Render(r.Context(), &buf); err != nil {
		h.internalError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, err error) {
	h.log.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "err", err)
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}

func (h *Handler) apiError(w http.ResponseWriter, r *http.Request, err error) {
	h.log.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "err", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}
