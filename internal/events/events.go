package events

import (
	"encoding/json"
	"fmt"
)

// Pub/Sub channel constants
const (
	EventsChannel = "channel:session-events"
)

// Event types
const (
	TypeSessionStarted = "session_started"
	TypeMoveApplied    = "move_applied"
	TypeGameFinished   = "game_finished"
	TypeSessionReset   = "session_reset"
	TypeSessionClosed  = "session_closed"
)

// Event represents a global message published via Pub/Sub.
type Event struct {
	Type    string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// New wraps payload in an Event of the given type.
func New(eventType string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return Event{Type: eventType, Payload: data}, nil
}

// SessionStartedPayload is the payload for the "session_started" event.
type SessionStartedPayload struct {
	SessionID      string `json:"session_id"`
	Owner          string `json:"owner"`
	StartingPlayer string `json:"starting_player"`
	Difficulty     string `json:"difficulty"`
}

// MoveAppliedPayload is the payload for the "move_applied" event.
type MoveAppliedPayload struct {
	SessionID string `json:"session_id"`
	Mark      string `json:"mark"`
	Row       int    `json:"row"`
	Col       int    `json:"col"`
}

// GameFinishedPayload is the payload for the "game_finished" event.
type GameFinishedPayload struct {
	SessionID    string `json:"session_id"`
	Owner        string `json:"owner"`
	Result       string `json:"result"`
	Winner       string `json:"winner,omitempty"`
	HumanWins    int    `json:"human_wins"`
	ComputerWins int    `json:"computer_wins"`
	Draws        int    `json:"draws"`
}

// SessionResetPayload is the payload for the "session_reset" and "session_closed" events.
type SessionResetPayload struct {
	SessionID string `json:"session_id"`
}
