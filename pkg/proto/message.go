package proto

import (
	"ctchen222/tictactoe-engine/internal/game"
	"ctchen222/tictactoe-engine/internal/score"
	"ctchen222/tictactoe-engine/internal/session"
	"ctchen222/tictactoe-engine/internal/validator"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Client message types.
const (
	TypeMove       = "move"
	TypeStart      = "start"
	TypeReset      = "reset"
	TypeDifficulty = "difficulty"
)

// Server message types.
const (
	TypeSnapshot = "snapshot"
	TypeError    = "error"
)

// ClientToServerMessage represents a message from the client to the server.
type ClientToServerMessage struct {
	Type       string `json:"type" validate:"required,oneof=move start reset difficulty"`
	Position   []int  `json:"position,omitempty" validate:"required_if=Type move,omitempty,len=2"`
	Player     string `json:"player,omitempty" validate:"required_if=Type start,omitempty,mark"`
	Difficulty string `json:"difficulty,omitempty" validate:"required_if=Type difficulty,omitempty,difficulty"`
}

// ServerToClientMessage represents a message from the server to the client.
type ServerToClientMessage struct {
	Type             string              `json:"type"`
	Reason           string              `json:"reason,omitempty"`
	SessionID        string              `json:"session_id,omitempty"`
	Board            [][]game.PlayerMark `json:"board,omitempty"`
	Next             game.PlayerMark     `json:"next,omitempty"`
	Winner           game.PlayerMark     `json:"winner,omitempty"`
	Result           game.Outcome        `json:"result,omitempty"`
	State            session.State       `json:"state,omitempty"`
	Started          bool                `json:"started"`
	Starter          game.PlayerMark     `json:"starter,omitempty"`
	Game             uint64              `json:"game,omitempty"`
	Difficulty       string              `json:"difficulty,omitempty"`
	Score            *score.Score        `json:"score,omitempty"`
	LastComputerMove []int               `json:"last_computer_move,omitempty"`
	Version          uint64              `json:"version,omitempty"`
}

// SnapshotMessage renders a session snapshot as a "snapshot" frame.
func SnapshotMessage(snap session.Snapshot) *ServerToClientMessage {
	msg := &ServerToClientMessage{
		Type:       TypeSnapshot,
		SessionID:  snap.ID,
		Board:      snap.Board.Rows(),
		Next:       snap.WhoseTurn,
		Winner:     snap.Result.Winner,
		Result:     snap.Result.Outcome,
		State:      snap.State,
		Started:    snap.Started,
		Starter:    snap.Starter,
		Game:       snap.Game,
		Difficulty: string(snap.Difficulty),
		Score:      &snap.Score,
		Version:    snap.Version,
	}
	if m := snap.LastComputerMove; m != nil {
		msg.LastComputerMove = []int{m.Row, m.Col}
	}
	return msg
}

// ErrorMessage builds an "error" frame.
func ErrorMessage(reason string) *ServerToClientMessage {
	return &ServerToClientMessage{Type: TypeError, Reason: reason}
}

// Encode serializes any frame.
func Encode(msg any) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	return data, nil
}

// DecodeClientMessage parses and validates one inbound frame.
func DecodeClientMessage(data []byte) (*ClientToServerMessage, error) {
	var msg ClientToServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message: %w", err)
	}
	if err := validator.GetValidator().Struct(msg); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}
	return &msg, nil
}
