package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	EventMessage = "message"
	EventRead    = "read"

	chatChannelPrefix = "chat:room:"
	subscriberBuffer  = 32
)

// ChatEvent is the payload fanned out to websocket subscribers of a room.
type ChatEvent struct {
	Type      string    `json:"type"`
	ChatID    string    `json:"chat_id"`
	MessageID string    `json:"message_id,omitempty"`
	SenderID  string    `json:"sender_id,omitempty"`
	Message   string    `json:"message,omitempty"`
	ReaderID  string    `json:"reader_id,omitempty"`
	Updated   int64     `json:"updated,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// EventBus delivers chat events to every subscriber of a room.
type EventBus interface {
	Publish(ctx context.Context, ev ChatEvent) error
	Subscribe(chatID string) (events <-chan ChatEvent, cancel func())
}

// Hub fans events out to the subscribers connected to this instance.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[chan ChatEvent]struct{}
	log   *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{rooms: make(map[string]map[chan ChatEvent]struct{}), log: log}
}

func (h *Hub) Subscribe(chatID string) (<-chan ChatEvent, func()) {
	ch := make(chan ChatEvent, subscriberBuffer)

	h.mu.Lock()
	subs, ok := h.rooms[chatID]
	if !ok {
		subs = make(map[chan ChatEvent]struct{})
		h.rooms[chatID] = subs
	}
	subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.rooms[chatID], ch)
			if len(h.rooms[chatID]) == 0 {
				delete(h.rooms, chatID)
			}
			close(ch)
		})
	}
}

// Broadcast never blocks; a subscriber whose buffer is full misses the event.
func (h *Hub) Broadcast(ev ChatEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.rooms[ev.ChatID] {
		select {
		case ch <- ev:
		default:
			h.log.Warn("dropping chat event for slow subscriber", "chat_id", ev.ChatID, "type", ev.Type)
		}
	}
}

// Subscribers returns the number of local subscribers of chatID.
func (h *Hub) Subscribers(chatID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[chatID])
}

// LocalBus delivers events in-process only.
type LocalBus struct {
	*Hub
}

func NewLocalBus(log *slog.Logger) *LocalBus {
	return &LocalBus{Hub: NewHub(log)}
}

func (b *LocalBus) Publish(_ context.Context, ev ChatEvent) error {
	b.Broadcast(ev)
	return nil
}

// RedisBus publishes on chat:room:<id> and relays every room channel back into
// the local hub, so subscribers on any instance see every event.
type RedisBus struct {
	*Hub
	client  *redis.Client
	started sync.Once
}

func NewRedisBus(client *redis.Client, log *slog.Logger) *RedisBus {
	return &RedisBus{Hub: NewHub(log), client: client}
}

func (b *RedisBus) Publish(ctx context.Context, ev ChatEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, chatChannelPrefix+ev.ChatID, data).Err()
}

// Start runs a single shared subscriber until ctx is cancelled.
func (b *RedisBus) Start(ctx context.Context) {
	b.started.Do(func() {
		go b.run(ctx)
	})
}

func (b *RedisBus) run(ctx context.Context) {
	backoff := time.Second
	for ctx.Err() == nil {
		err := b.receive(ctx, func() { backoff = time.Second })
		if ctx.Err() != nil {
			return
		}
		b.log.Warn("chat subscriber disconnected", "error", err, "retry_in", backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, 30*time.Second)
	}
}

func (b *RedisBus) receive(ctx context.Context, onMessage func()) error {
	pubsub := b.client.PSubscribe(ctx, chatChannelPrefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	b.log.Info("chat subscriber started", "pattern", chatChannelPrefix+"*")

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			return err
		}
		onMessage()

		var ev ChatEvent
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			b.log.Warn("failed to decode chat event", "channel", msg.Channel, "error", err)
			continue
		}
		b.Broadcast(ev)
	}
}
