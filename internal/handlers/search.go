package handlers

import (
	"net/http"

	"github.com/AnshRaj112/spokies-backend/internal/models"
)

type searchResponse struct {
	Users []models.UserSummary `json:"users"`
}

// SearchUsers lists candidates for ?telegram_id, paged by skip and limit.
func (h *Handler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	id, err := callerID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	skip, limit, err := paging(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	users, err := h.search.SearchCandidates(ctx, id, skip, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{Users: users})
}
