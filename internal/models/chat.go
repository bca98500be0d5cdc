package models

import (
	"slices"
	"time"
)

// ChatRoom is created once per mutually liking pair. PairKey is the sorted
// participant pair and is unique in every store.
type ChatRoom struct {
	ChatID          string    `bson:"chat_id" json:"chat_id"`
	Participants    []string  `bson:"participants" json:"participants"`
	PairKey         string    `bson:"pair_key" json:"-"`
	CreatedAt       time.Time `bson:"created_at" json:"created_at"`
	LastMessage     *string   `bson:"last_message" json:"last_message"`
	LastMessageTime time.Time `bson:"last_message_time" json:"last_message_time"`
}

// PairKey orders the two ids so {a,b} and {b,a} map to the same key.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}

func (c *ChatRoom) HasParticipant(userID string) bool {
	return slices.Contains(c.Participants, userID)
}

// OtherParticipant returns the participant that is not userID.
func (c *ChatRoom) OtherParticipant(userID string) string {
	for _, p := range c.Participants {
		if p != userID {
			return p
		}
	}
	return ""
}

func (c ChatRoom) Clone() ChatRoom {
	c.Participants = slices.Clone(c.Participants)
	if c.LastMessage != nil {
		m := *c.LastMessage
		c.LastMessage = &m
	}
	return c
}

// Message belongs to exactly one chat room.
type Message struct {
	MessageID string    `bson:"message_id" json:"message_id"`
	ChatID    string    `bson:"chat_id" json:"chat_id"`
	SenderID  string    `bson:"sender_id" json:"sender_id"`
	Body      string    `bson:"message" json:"message"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
	IsRead    bool      `bson:"is_read" json:"is_read"`
}

// ChatSummary is a room enriched with the other participant for chat lists.
type ChatSummary struct {
	ChatRoom
	ParticipantID    string  `json:"participant_id"`
	ParticipantName  string  `json:"participant_name,omitempty"`
	ParticipantPhoto *string `json:"participant_photo"`
	UnreadCount      int64   `json:"unread_count"`
}
