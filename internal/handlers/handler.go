// Package handlers exposes the profile, matching and chat services over HTTP.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/AnshRaj112/spokies-backend/internal/logger"
	"github.com/AnshRaj112/spokies-backend/internal/metrics"
	"github.com/AnshRaj112/spokies-backend/internal/services"
)

const defaultTimeout = 5 * time.Second

type Deps struct {
	Users   *services.UserService
	Search  *services.SearchService
	Matches *services.MatchService
	Chats   *services.ChatService
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Timeout time.Duration // per-request deadline for store calls
}

type Handler struct {
	users   *services.UserService
	search  *services.SearchService
	matches *services.MatchService
	chats   *services.ChatService
	log     *slog.Logger
	metrics *metrics.Metrics
	timeout time.Duration
}

func New(d Deps) *Handler {
	h := &Handler{
		users:   d.Users,
		search:  d.Search,
		matches: d.Matches,
		chats:   d.Chats,
		log:     d.Logger,
		metrics: d.Metrics,
		timeout: d.Timeout,
	}
	if h.log == nil {
		h.log = logger.L()
	}
	if h.timeout <= 0 {
		h.timeout = defaultTimeout
	}
	return h
}

func (h *Handler) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), h.timeout)
}
