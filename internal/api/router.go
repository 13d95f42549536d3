package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func NewRouter(h *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	r.Get("/health", h.HealthHandler)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.RegisterHandler)
		r.Post("/login", h.LoginHandler)

		r.Group(func(r chi.Router) {
			r.Use(h.JWTAuthMiddleware)
			r.Get("/me", h.MeHandler)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(h.JWTAuthMiddleware)

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", h.ListConversationsHandler)
			r.Post("/", h.CreateConversationHandler)
			r.Get("/{conversationID}", h.GetConversationHandler)
			r.Put("/{conversationID}", h.UpdateConversationHandler)
			r.Delete("/{conversationID}", h.DeleteConversationHandler)
		})

		r.Post("/chat", h.ChatHandler)
	})

	return r
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("elapsed", time.Since(start)))
		})
	}
}
