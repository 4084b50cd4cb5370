package session

import "errors"

var (
	// ErrIllegalMove is returned for a human move outside AwaitingHuman or on
	// a cell the board rejects. Board errors are wrapped alongside it.
	ErrIllegalMove   = errors.New("illegal move")
	ErrInvalidPlayer = errors.New("invalid starting player")
)
