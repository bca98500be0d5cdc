package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/AnshRaj112/spokies-backend/internal/apperrors"
	"github.com/AnshRaj112/spokies-backend/internal/services"
)

const (
	wsWriteWait   = 10 * time.Second
	wsPongWait    = 90 * time.Second
	wsPingPeriod  = wsPongWait * 9 / 10
	wsMaxFrame    = 64 * 1024
	wsReplyBuffer = 8
)

var chatUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CORS is enforced on the HTTP routes; the Telegram web view sends no stable Origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsClientMessage is a frame sent by the client: {"type":"message","message":"hi"},
// {"type":"read"} or {"type":"ping"}.
type wsClientMessage struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

type wsReply struct {
	Type      string `json:"type"`
	MessageID string `json:"message_id,omitempty"`
	Updated   int64  `json:"updated,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// ChatWebSocket streams room events to a participant and accepts messages
// from it. The caller is identified by ?telegram_id and must be a participant.
func (h *Handler) ChatWebSocket(w http.ResponseWriter, r *http.Request) {
	id, err := callerID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	chatID := chi.URLParam(r, "chat_id")

	ctx, cancel := h.requestContext(r)
	_, err = h.chats.Authorize(ctx, chatID, id)
	cancel()
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	// subscribe before the upgrade so nothing sent after the handshake is missed
	events, unsubscribe := h.chats.Subscribe(chatID)
	defer unsubscribe()

	conn, err := chatUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	h.metrics.WSConnected()
	defer h.metrics.WSDisconnected()
	log := h.log.With("chat_id", chatID)
	log.Debug("chat socket opened")

	done := make(chan struct{})
	replies := make(chan wsReply, wsReplyBuffer)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.writeLoop(conn, events, replies, done)
	}()

	h.readLoop(conn, chatID, id, replies, done)
	close(done)
	wg.Wait()
	log.Debug("chat socket closed")
}

// writeLoop owns all writes to conn.
func (h *Handler) writeLoop(conn *websocket.Conn, events <-chan services.ChatEvent, replies <-chan wsReply, done <-chan struct{}) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	// a failed write unblocks the reader
	defer conn.Close()

	for {
		var payload any
		select {
		case <-done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(wsWriteWait))
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			payload = ev
		case rep := <-replies:
			payload = rep
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			continue
		}
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(payload); err != nil {
			return
		}
	}
}

func (h *Handler) readLoop(conn *websocket.Conn, chatID, telegramID string, replies chan<- wsReply, done <-chan struct{}) {
	conn.SetReadLimit(wsMaxFrame)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	reply := func(rep wsReply) {
		select {
		case replies <- rep:
		case <-done:
		}
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debug("chat socket read failed", "chat_id", chatID, "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))

		var msg wsClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			reply(wsReply{Type: "error", Detail: "Invalid JSON frame"})
			continue
		}

		switch msg.Type {
		case "message":
			ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
			saved, err := h.chats.SendMessage(ctx, chatID, telegramID, msg.Message)
			cancel()
			if err != nil {
				h.logSocketError(chatID, err)
				reply(wsReply{Type: "error", Detail: apperrors.PublicMessage(err)})
				continue
			}
			reply(wsReply{Type: "ack", MessageID: saved.MessageID})
		case "read":
			ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
			n, err := h.chats.MarkRead(ctx, chatID, telegramID)
			cancel()
			if err != nil {
				h.logSocketError(chatID, err)
				reply(wsReply{Type: "error", Detail: apperrors.PublicMessage(err)})
				continue
			}
			reply(wsReply{Type: "read_ack", Updated: n})
		case "ping":
			reply(wsReply{Type: "pong"})
		default:
			reply(wsReply{Type: "error", Detail: "Unknown frame type"})
		}
	}
}

func (h *Handler) logSocketError(chatID string, err error) {
	if apperrors.CodeOf(err) == apperrors.CodeInternal {
		h.log.Error("chat socket operation failed", "chat_id", chatID, "error", err)
	}
}
