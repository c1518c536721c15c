// internal/game/types.go
//
// Core type definitions for the match engine.
// Defines:
//   - Token: opaque symbol that appears exactly twice in a deck.
//   - Cell: one board position holding one Token.
//   - Phase / Outcome: coarse game state and comparison result.
//   - RevealResult: what a single reveal did.
//   - Snapshot / CellView: read-only view handed to renderers.

package game

import "fmt"

// Token is an opaque pair symbol. Two tokens are equal when their NFC
// normalised forms are equal.
type Token string

// Cell is one placed instance of a Token at a fixed board position.
// Invariant: Matched implies FaceUp.
type Cell struct {
	ID      int
	Token   Token
	FaceUp  bool
	Matched bool
}

// Phase is the coarse state of a game.
type Phase int

const (
	PhaseIdle       Phase = iota // reset, no reveals yet
	PhaseInProgress              // timer running, 0 or 1 card selected
	PhaseResolving               // two cards up, waiting for FinalizeComparison
	PhaseWon                     // terminal
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseInProgress:
		return "in_progress"
	case PhaseResolving:
		return "resolving"
	case PhaseWon:
		return "won"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// MarshalText renders the phase as its string name in JSON.
func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText parses a phase name produced by MarshalText.
func (p *Phase) UnmarshalText(b []byte) error {
	for _, v := range []Phase{PhaseIdle, PhaseInProgress, PhaseResolving, PhaseWon} {
		if v.String() == string(b) {
			*p = v
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", b)
}

// Outcome is the result of comparing the two selected cards.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeMatch
	OutcomeMismatch
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNone:
		return "none"
	case OutcomeMatch:
		return "match"
	case OutcomeMismatch:
		return "mismatch"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// MarshalText renders the outcome as its string name in JSON.
func (o Outcome) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

// UnmarshalText parses an outcome name produced by MarshalText.
func (o *Outcome) UnmarshalText(b []byte) error {
	for _, v := range []Outcome{OutcomeNone, OutcomeMatch, OutcomeMismatch} {
		if v.String() == string(b) {
			*o = v
			return nil
		}
	}
	return fmt.Errorf("unknown outcome %q", b)
}

// RevealResult reports what Reveal did.
//
//   - Accepted is false when the reveal was a silent no-op.
//   - TimerStarted is set on the first accepted reveal of a game; the caller
//     should begin calling Tick once per second.
//   - Pending is the outcome the next FinalizeComparison will apply, or
//     OutcomeNone if only one card is selected.
type RevealResult struct {
	Accepted     bool    `json:"accepted"`
	TimerStarted bool    `json:"timerStarted"`
	Pending      Outcome `json:"pending"`
}

// CellView is the renderer-facing representation of a cell.
// Token is empty unless the cell is face up or matched.
type CellView struct {
	ID      int   `json:"id"`
	Token   Token `json:"token,omitempty"`
	FaceUp  bool  `json:"faceUp"`
	Matched bool  `json:"matched"`
}

// Snapshot is a detached copy of the observable game state.
type Snapshot struct {
	Cells            []CellView `json:"cells"`
	Selection        []int      `json:"selection"`
	MoveCount        int        `json:"moves"`
	MatchedPairCount int        `json:"matchedPairs"`
	PairCount        int        `json:"pairCount"`
	ElapsedSeconds   int        `json:"elapsedSeconds"`
	Won              bool       `json:"won"`
	Locked           bool       `json:"locked"`
	TimerRunning     bool       `json:"timerRunning"`
	Phase            Phase      `json:"phase"`
}
