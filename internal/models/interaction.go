package models

import (
	"strings"
	"time"
)

type Action string

const (
	ActionLike      Action = "like"
	ActionDislike   Action = "dislike"
	ActionSuperLike Action = "super_like"
)

// PositiveActions are the actions that count towards a match.
var PositiveActions = []Action{ActionLike, ActionSuperLike}

// ParseAction accepts the three action names; "superlike" is the spelling
// older clients send.
func ParseAction(s string) (Action, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "like":
		return ActionLike, true
	case "dislike":
		return ActionDislike, true
	case "super_like", "superlike":
		return ActionSuperLike, true
	}
	return "", false
}

func (a Action) IsPositive() bool {
	return a == ActionLike || a == ActionSuperLike
}

// Interaction is one append-only entry of the interaction log.
type Interaction struct {
	InteractionID string    `bson:"interaction_id" json:"interaction_id"`
	UserID        string    `bson:"user_id" json:"user_id"`
	TargetUserID  string    `bson:"target_user_id" json:"target_user_id"`
	Action        Action    `bson:"action" json:"action"`
	Timestamp     time.Time `bson:"timestamp" json:"timestamp"`
}

type MatchResult struct {
	IsMatch bool
	ChatID  string
}
