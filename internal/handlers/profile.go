package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/AnshRaj112/spokies-backend/internal/models"
)

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	u, err := h.users.GetProfile(ctx, chi.URLParam(r, "telegram_id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// UpdateProfile applies a partial update; absent fields keep their values.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var upd models.ProfileUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		h.writeError(w, r, err)
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	changed, err := h.users.UpdateProfile(ctx, chi.URLParam(r, "telegram_id"), upd)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	msg := "No changes made"
	if changed {
		msg = "Profile updated successfully"
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: msg})
}
