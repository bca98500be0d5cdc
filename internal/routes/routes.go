package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AnshRaj112/spokies-backend/internal/blob"
	"github.com/AnshRaj112/spokies-backend/internal/handlers"
	"github.com/AnshRaj112/spokies-backend/internal/middleware"
)

type Options struct {
	Limiter   *middleware.IPRateLimiter // applied to write endpoints when set
	UploadDir string                    // served under /uploads/ when set
	Gatherer  prometheus.Gatherer       // exposed at /metrics when set
}

func SetupRoutes(r chi.Router, h *handlers.Handler, o Options) {
	r.Get("/api/health", h.Health)

	if o.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(o.Gatherer, promhttp.HandlerOpts{}))
	}
	if o.UploadDir != "" {
		files := http.StripPrefix(blob.URLPrefix, http.FileServer(http.Dir(o.UploadDir)))
		r.Handle(blob.URLPrefix+"*", files)
	}

	// Reads
	r.Get("/api/profile/{telegram_id}", h.GetProfile)
	r.Get("/api/search/users", h.SearchUsers)
	r.Get("/api/likes/received/{telegram_id}", h.ReceivedLikes)
	r.Get("/api/chats/{telegram_id}", h.ListChats)
	r.Get("/api/chats/{chat_id}/messages", h.GetMessages)

	// Writes are rate limited per client IP
	r.Group(func(r chi.Router) {
		if o.Limiter != nil {
			r.Use(o.Limiter.Middleware)
		}
		r.Post("/api/auth/register", h.Register)
		r.Put("/api/profile/{telegram_id}", h.UpdateProfile)
		r.Post("/api/like", h.Like)
		r.Post("/api/chats/{chat_id}/messages", h.SendMessage)
		r.Post("/api/chats/{chat_id}/read", h.MarkRead)
	})

	// WebSocket endpoint for live chat rooms
	r.Get("/ws/chats/{chat_id}", h.ChatWebSocket)
}
