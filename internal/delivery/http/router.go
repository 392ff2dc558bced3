package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/mmuslimabdulj/goat-dm/internal/middleware"
)

// NewRouter mounts every route on a chi router
func NewRouter(h *Handler, limits *middleware.Limiters, log *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(log))
	r.Use(chimw.Recoverer)
	r.Use(middleware.SecurityHeaders)

	r.Get("/health", h.HandleHealth)

	// Pages
	r.Group(func(r chi.Router) {
		r.Use(middleware.NoStore)
		r.Use(middleware.RateLimitMiddleware(limits.API))

		r.Get("/", h.HandleIndex)
		r.Get("/register", h.HandleRegisterPage)
		r.Get("/login", h.HandleLoginPage)
		r.Post("/logout", h.HandleLogout)

		r.Group(func(r chi.Router) {
			r.Use(requirePage(h.svc.Sessions))
			r.Get("/chat", h.HandleChat)
			r.Get("/chat/{username}", h.HandleConversation)
			r.Get("/search_user", h.HandleSearchUser)
		})
	})

	// Credential forms
	r.Group(func(r chi.Router) {
		r.Use(middleware.NoStore)
		r.Use(middleware.RateLimitMiddleware(limits.Strict))
		r.Post("/register", h.HandleRegister)
		r.Post("/login", h.HandleLogin)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.NoStore)
		r.Use(middleware.RateLimitMiddleware(limits.API))
		r.Use(requireAPI(h.svc.Sessions))
		r.Get("/contacts", h.HandleContacts)
		r.Get("/messages/{username}", h.HandleMessages)
	})

	r.With(
		middleware.RateLimitMiddleware(limits.WebSocket),
		requireAPI(h.svc.Sessions),
	).Get("/ws", h.HandleWebSocket)

	return r
}
