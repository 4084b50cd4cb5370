package hub

import (
	"ctchen222/tictactoe-engine/internal/events"
	"ctchen222/tictactoe-engine/internal/game"
	"ctchen222/tictactoe-engine/internal/session"
)

// deriveEvents turns the difference between two snapshots of the same
// session into the events that explain it.
func deriveEvents(owner string, prev, cur session.Snapshot) []events.Event {
	var out []events.Event
	add := func(eventType string, payload any) {
		if ev, err := events.New(eventType, payload); err == nil {
			out = append(out, ev)
		}
	}

	fresh := cur.Game != prev.Game && cur.State != session.NotStarted

	switch {
	case cur.State == session.NotStarted && prev.State != session.NotStarted:
		add(events.TypeSessionReset, events.SessionResetPayload{SessionID: cur.ID})
	case fresh:
		add(events.TypeSessionStarted, events.SessionStartedPayload{
			SessionID:      cur.ID,
			Owner:          owner,
			StartingPlayer: string(cur.Starter),
			Difficulty:     string(cur.Difficulty),
		})
	}

	if cur.State != session.NotStarted {
		base := prev.Board
		if fresh {
			base = game.EmptyBoard()
		}
		for r := range game.Size {
			for c := range game.Size {
				if mark := cur.Board[r][c]; mark != game.None && base[r][c] == game.None {
					add(events.TypeMoveApplied, events.MoveAppliedPayload{
						SessionID: cur.ID,
						Mark:      string(mark),
						Row:       r,
						Col:       c,
					})
				}
			}
		}
	}

	if cur.State == session.Finished && prev.State != session.Finished {
		add(events.TypeGameFinished, events.GameFinishedPayload{
			SessionID:    cur.ID,
			Owner:        owner,
			Result:       string(cur.Result.Outcome),
			Winner:       string(cur.Result.Winner),
			HumanWins:    cur.Score.HumanWins,
			ComputerWins: cur.Score.ComputerWins,
			Draws:        cur.Score.Draws,
		})
	}
	return out
}
