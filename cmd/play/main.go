package main

import (
	"bufio"
	"context"
	"ctchen222/tictactoe-engine/internal/bot"
	"ctchen222/tictactoe-engine/internal/game"
	"ctchen222/tictactoe-engine/internal/session"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/muesli/termenv"
	"github.com/pkg/errors"
)

func main() {
	difficulty := flag.String("difficulty", "easy", "easy, medium or hard")
	first := flag.String("first", "X", "who moves first: X (you) or O (computer)")
	seed := flag.Uint64("seed", uint64(time.Now().UnixNano()), "random seed for easy and medium")
	delay := flag.Duration("delay", session.DefaultThinkDelay, "computer thinking time")
	flag.Parse()

	d, err := bot.ParseDifficulty(*difficulty)
	if err != nil {
		log.Fatal(err)
	}
	starter := game.PlayerMark(strings.ToUpper(*first))
	if !starter.Valid() {
		log.Fatalf("invalid -first %q", *first)
	}

	p := newPlayer(os.Stdin, termenv.NewOutput(os.Stdout))
	sess, err := session.New(d,
		session.WithID("terminal"),
		session.WithThinkDelay(*delay),
		session.WithRand(bot.NewRand(*seed)),
		session.WithObserver(p),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer sess.Close()

	if err := p.play(context.Background(), sess, starter); err != nil && !errors.Is(err, io.EOF) {
		log.Fatal(err)
	}
}

// player drives a session from a line-oriented terminal.
type player struct {
	scanner *bufio.Scanner
	out     *termenv.Output
	updates chan session.Snapshot
}

func newPlayer(in io.Reader, out *termenv.Output) *player {
	return &player{
		scanner: bufio.NewScanner(in),
		out:     out,
		updates: make(chan session.Snapshot, 16),
	}
}

func (p *player) SessionChanged(_ context.Context, snap session.Snapshot) {
	select {
	case p.updates <- snap:
	default:
	}
}

// waitForHuman blocks until the computer has answered.
func (p *player) waitForHuman(snap session.Snapshot) session.Snapshot {
	for snap.State == session.AwaitingComputer {
		fmt.Fprintln(p.out, p.out.String("computer is thinking...").Faint())
		for next := range p.updates {
			if next.Version > snap.Version {
				snap = next
				break
			}
		}
	}
	return snap
}

func (p *player) play(ctx context.Context, sess *session.Session, starter game.PlayerMark) error {
	snap, err := sess.ChooseStartingPlayer(ctx, starter)
	if err != nil {
		return errors.WithMessage(err, "start game")
	}

	for {
		snap = p.waitForHuman(snap)
		p.render(snap)

		if snap.State == session.Finished {
			cmd, err := p.prompt("again? [y/n/clear] ")
			if err != nil {
				return err
			}
			switch cmd {
			case "y", "yes":
				snap, err = sess.ChooseStartingPlayer(ctx, starter)
			case "clear":
				sess.ClearScore(ctx)
				snap, err = sess.ChooseStartingPlayer(ctx, starter)
			default:
				return nil
			}
			if err != nil {
				return errors.WithMessage(err, "restart game")
			}
			continue
		}

		line, err := p.prompt("your move (row col), or 'reset' / 'easy' / 'medium' / 'hard': ")
		if err != nil {
			return err
		}
		if d, err := bot.ParseDifficulty(line); err == nil {
			if snap, err = sess.SetDifficulty(ctx, d); err != nil {
				return err
			}
			continue
		}
		if line == "reset" {
			sess.Reset(ctx)
			if snap, err = sess.ChooseStartingPlayer(ctx, starter); err != nil {
				return errors.WithMessage(err, "restart game")
			}
			continue
		}

		row, col, err := parseMove(line)
		if err != nil {
			fmt.Fprintln(p.out, p.out.String(err.Error()).Foreground(p.out.Color("1")))
			continue
		}
		next, err := sess.MakeHumanMove(ctx, row, col)
		if err != nil {
			fmt.Fprintln(p.out, p.out.String(err.Error()).Foreground(p.out.Color("1")))
			continue
		}
		snap = next
	}
}

func (p *player) prompt(text string) (string, error) {
	fmt.Fprint(p.out, text)
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", errors.WithMessage(err, "read input")
		}
		return "", io.EOF
	}
	return strings.ToLower(strings.TrimSpace(p.scanner.Text())), nil
}

func parseMove(line string) (int, int, error) {
	fields := strings.Fields(strings.ReplaceAll(line, ",", " "))
	if len(fields) != 2 {
		return 0, 0, errors.Errorf("expected two numbers, got %q", line)
	}
	row, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, errors.Wrap(err, "row")
	}
	col, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, errors.Wrap(err, "col")
	}
	return row, col, nil
}

func (p *player) render(snap session.Snapshot) {
	fmt.Fprintln(p.out)
	for r, row := range snap.Board {
		cells := make([]string, len(row))
		for c, mark := range row {
			cells[c] = p.cell(snap, r, c, mark)
		}
		fmt.Fprintln(p.out, " "+strings.Join(cells, " | "))
		if r < game.BorderMax {
			fmt.Fprintln(p.out, "---+---+---")
		}
	}
	fmt.Fprintln(p.out)

	status := "your turn"
	if snap.State == session.Finished {
		status = snap.Result.String()
	}
	fmt.Fprintf(p.out, "%s  [%s]  you %d : %d computer, %d draws\n",
		p.out.String(status).Bold(), snap.Difficulty,
		snap.Score.HumanWins, snap.Score.ComputerWins, snap.Score.Draws)
}

func (p *player) cell(snap session.Snapshot, r, c int, mark game.PlayerMark) string {
	switch mark {
	case game.PlayerX:
		return p.out.String("X").Foreground(p.out.Color("4")).Bold().String()
	case game.PlayerO:
		s := p.out.String("O").Foreground(p.out.Color("1"))
		if m := snap.LastComputerMove; m != nil && m.Row == r && m.Col == c {
			s = s.Underline()
		}
		return s.Bold().String()
	default:
		return p.out.String(".").Faint().String()
	}
}
