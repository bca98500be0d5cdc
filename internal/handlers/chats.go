package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/AnshRaj112/spokies-backend/internal/models"
)

type chatsResponse struct {
	Chats []models.ChatSummary `json:"chats"`
}

type messagesResponse struct {
	Messages []models.Message `json:"messages"`
}

type sendMessageRequest struct {
	Message string `json:"message"`
}

type sendMessageResponse struct {
	Message   string `json:"message"`
	MessageID string `json:"message_id"`
}

type markReadResponse struct {
	Success bool  `json:"success"`
	Updated int64 `json:"updated"`
}

func (h *Handler) ListChats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	chats, err := h.chats.ListChats(ctx, chi.URLParam(r, "telegram_id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chatsResponse{Chats: chats})
}

// GetMessages returns a page of room history, oldest first.
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	skip, limit, err := paging(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	msgs, err := h.chats.GetMessages(ctx, chi.URLParam(r, "chat_id"), skip, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messagesResponse{Messages: msgs})
}

func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	id, err := callerID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req sendMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	msg, err := h.chats.SendMessage(ctx, chi.URLParam(r, "chat_id"), id, req.Message)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sendMessageResponse{
		Message:   "Message sent successfully",
		MessageID: msg.MessageID,
	})
}

// MarkRead marks every message the caller received in the room as read.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := callerID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	n, err := h.chats.MarkRead(ctx, chi.URLParam(r, "chat_id"), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, markReadResponse{Success: true, Updated: n})
}
