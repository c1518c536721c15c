// internal/game/engine.go
//
// Match engine for a single memory-match game.
// Responsibilities:
//   - Build a deck of paired tokens and shuffle it (Fisher–Yates).
//   - Apply reveals, lock the board while two cards are up.
//   - Resolve comparisons (match or revert) when the caller says so.
//   - Count moves, matched pairs and elapsed seconds; detect the win.
//
// Notes:
//   - The engine never sleeps or schedules. Callers own the presentation
//     delay before FinalizeComparison and the once-per-second Tick.
//   - Illegal reveals, finalizes and ticks are silent no-ops so that late or
//     duplicated callbacks cannot corrupt state.
//   - An Engine is not safe for concurrent use; serialise calls.

package game

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"golang.org/x/text/unicode/norm"
)

const (
	// MinPairs is the smallest playable board.
	MinPairs = 2
	// DefaultPairs is the board size of the classic game (4x4).
	DefaultPairs = 8
)

// ErrInvalidConfiguration is returned by Reset for a bad pair count or token list.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// Rand is the randomness source for shuffling. *rand.Rand from math/rand/v2
// satisfies it.
type Rand interface {
	IntN(n int) int
}

// globalRand delegates to the auto-seeded math/rand/v2 source.
type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// Engine holds the complete state of one game.
type Engine struct {
	rng Rand

	cells        []Cell
	selection    []int
	pairCount    int
	matchedPairs int
	moves        int
	elapsed      int
	timerStarted bool
	locked       bool
	won          bool
}

// NewEngine returns an engine with an empty board. Call Reset to deal.
// A nil rng uses the package-level math/rand/v2 source.
func NewEngine(rng Rand) *Engine {
	if rng == nil {
		rng = globalRand{}
	}
	return &Engine{rng: rng, selection: make([]int, 0, 2)}
}

// Reset deals a fresh shuffled deck of pairCount pairs.
// On error the previous game is left untouched.
func (e *Engine) Reset(pairCount int, tokens []Token) error {
	distinct, err := validate(pairCount, tokens)
	if err != nil {
		return err
	}

	deck := make([]Token, 0, 2*pairCount)
	deck = append(deck, distinct...)
	deck = append(deck, distinct...)
	shuffle(deck, e.rng)

	cells := make([]Cell, len(deck))
	for i, t := range deck {
		cells[i] = Cell{ID: i, Token: t}
	}

	e.cells = cells
	e.selection = make([]int, 0, 2)
	e.pairCount = pairCount
	e.matchedPairs = 0
	e.moves = 0
	e.elapsed = 0
	e.timerStarted = false
	e.locked = false
	e.won = false
	return nil
}

// Reveal turns cellID face up if the move is legal; otherwise it does nothing.
//
// Legal means: not locked, not won, cellID on the board, the cell neither
// matched nor already face up, and fewer than two cards selected.
// The second card of a selection counts a move and locks the board.
func (e *Engine) Reveal(cellID int) RevealResult {
	if e.locked || e.won || len(e.selection) >= 2 {
		return RevealResult{}
	}
	if cellID < 0 || cellID >= len(e.cells) {
		return RevealResult{}
	}
	c := &e.cells[cellID]
	if c.Matched || c.FaceUp {
		return RevealResult{}
	}

	res := RevealResult{Accepted: true}
	if e.moves == 0 && !e.timerStarted {
		e.timerStarted = true
		res.TimerStarted = true
	}

	c.FaceUp = true
	e.selection = append(e.selection, cellID)

	if len(e.selection) == 2 {
		e.moves++
		e.locked = true
		res.Pending = e.PendingOutcome()
	}
	return res
}

// PendingOutcome reports what FinalizeComparison would do right now.
func (e *Engine) PendingOutcome() Outcome {
	if !e.locked || len(e.selection) != 2 {
		return OutcomeNone
	}
	if e.cells[e.selection[0]].Token == e.cells[e.selection[1]].Token {
		return OutcomeMatch
	}
	return OutcomeMismatch
}

// FinalizeComparison resolves a locked two-card selection: equal tokens are
// marked matched, unequal ones are turned back face down. The selection is
// cleared and the board unlocked. Without a pending comparison it returns
// OutcomeNone and changes nothing.
func (e *Engine) FinalizeComparison() Outcome {
	outcome := e.PendingOutcome()
	if outcome == OutcomeNone {
		return OutcomeNone
	}

	a := &e.cells[e.selection[0]]
	b := &e.cells[e.selection[1]]
	if outcome == OutcomeMatch {
		a.Matched, b.Matched = true, true
		e.matchedPairs++
		if e.matchedPairs == e.pairCount {
			e.won = true
		}
	} else {
		a.FaceUp, b.FaceUp = false, false
	}

	e.selection = e.selection[:0]
	e.locked = false
	return outcome
}

// Tick advances the elapsed-time counter by one second while the game is
// running. It reports whether the counter moved.
func (e *Engine) Tick() bool {
	if !e.timerStarted || e.won {
		return false
	}
	e.elapsed++
	return true
}

// Phase reports the coarse state of the game.
func (e *Engine) Phase() Phase {
	switch {
	case e.won:
		return PhaseWon
	case e.locked:
		return PhaseResolving
	case e.timerStarted:
		return PhaseInProgress
	default:
		return PhaseIdle
	}
}

// Won reports whether every pair has been matched.
func (e *Engine) Won() bool { return e.won }

// Snapshot returns a copy of the observable state. Tokens of face-down,
// unmatched cells are withheld.
func (e *Engine) Snapshot() Snapshot {
	views := make([]CellView, len(e.cells))
	for i, c := range e.cells {
		v := CellView{ID: c.ID, FaceUp: c.FaceUp, Matched: c.Matched}
		if c.FaceUp || c.Matched {
			v.Token = c.Token
		}
		views[i] = v
	}
	return Snapshot{
		Cells:            views,
		Selection:        append([]int{}, e.selection...),
		MoveCount:        e.moves,
		MatchedPairCount: e.matchedPairs,
		PairCount:        e.pairCount,
		ElapsedSeconds:   e.elapsed,
		Won:              e.won,
		Locked:           e.locked,
		TimerRunning:     e.timerStarted && !e.won,
		Phase:            e.Phase(),
	}
}

// Normalize returns the canonical (NFC) form of t.
func Normalize(t Token) Token { return Token(norm.NFC.String(string(t))) }

// FormatElapsed renders seconds as m:ss.
func FormatElapsed(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// validate checks the configuration and returns the normalised tokens.
func validate(pairCount int, tokens []Token) ([]Token, error) {
	if pairCount < MinPairs {
		return nil, fmt.Errorf("%w: pair count %d is below %d", ErrInvalidConfiguration, pairCount, MinPairs)
	}
	if len(tokens) != pairCount {
		return nil, fmt.Errorf("%w: got %d tokens for %d pairs", ErrInvalidConfiguration, len(tokens), pairCount)
	}
	seen := make(map[Token]struct{}, len(tokens))
	out := make([]Token, len(tokens))
	for i, t := range tokens {
		n := Normalize(t)
		if n == "" {
			return nil, fmt.Errorf("%w: empty token at position %d", ErrInvalidConfiguration, i)
		}
		if _, dup := seen[n]; dup {
			return nil, fmt.Errorf("%w: duplicate token %q", ErrInvalidConfiguration, n)
		}
		seen[n] = struct{}{}
		out[i] = n
	}
	return out, nil
}

// shuffle is an in-place Fisher–Yates permutation; every ordering is equally
// likely given a uniform rng.
func shuffle(deck []Token, rng Rand) {
	for i := len(deck) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		deck[i], deck[j] = deck[j], deck[i]
	}
}
