package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/AnshRaj112/spokies-backend/internal/apperrors"
	"github.com/AnshRaj112/spokies-backend/internal/models"
)

type likeRequest struct {
	TargetUserID string `json:"target_user_id"`
	Action       string `json:"action"`
}

type likeResponse struct {
	Success bool   `json:"success"`
	IsMatch bool   `json:"is_match"`
	Action  string `json:"action"`
	ChatID  string `json:"chat_id,omitempty"`
}

type receivedLikesResponse struct {
	Likes []models.UserSummary `json:"likes"`
}

// Like records a like, dislike or super like from ?telegram_id.
func (h *Handler) Like(w http.ResponseWriter, r *http.Request) {
	id, err := callerID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req likeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	res, err := h.matches.RecordInteraction(ctx, id, strings.TrimSpace(req.TargetUserID), req.Action)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	action, _ := models.ParseAction(req.Action)
	writeJSON(w, http.StatusOK, likeResponse{
		Success: true,
		IsMatch: res.IsMatch,
		Action:  string(action),
		ChatID:  res.ChatID,
	})
}

// ReceivedLikes lists who liked the user. ?action=like or ?action=super_like
// narrows the list to that action.
func (h *Handler) ReceivedLikes(w http.ResponseWriter, r *http.Request) {
	var action models.Action
	switch raw := strings.TrimSpace(r.URL.Query().Get("action")); raw {
	case "", "all":
	default:
		parsed, ok := models.ParseAction(raw)
		if !ok || !parsed.IsPositive() {
			h.writeError(w, r, apperrors.BadInput("action must be like or super_like"))
			return
		}
		action = parsed
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	likes, err := h.matches.ReceivedLikes(ctx, chi.URLParam(r, "telegram_id"), action)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, receivedLikesResponse{Likes: likes})
}
