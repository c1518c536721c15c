package game

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func newTestEngine(t *testing.T, seed uint64, tokens ...Token) *Engine {
	t.Helper()
	e := NewEngine(seeded(seed))
	require.NoError(t, e.Reset(len(tokens), tokens))
	return e
}

// positions returns the two cells holding tok.
func positions(e *Engine, tok Token) []int {
	var out []int
	for _, c := range e.cells {
		if c.Token == tok {
			out = append(out, c.ID)
		}
	}
	return out
}

// firstMismatch returns two cells with different tokens.
func firstMismatch(e *Engine) (int, int) {
	for i := 1; i < len(e.cells); i++ {
		if e.cells[i].Token != e.cells[0].Token {
			return 0, i
		}
	}
	panic("board has no mismatch")
}

// state is a deep copy of every engine field used for before/after checks.
type state struct {
	Cells                              []Cell
	Selection                          []int
	PairCount, Matched, Moves, Elapsed int
	TimerStarted, Locked, Won          bool
}

func capture(e *Engine) state {
	return state{
		Cells:        append([]Cell{}, e.cells...),
		Selection:    append([]int{}, e.selection...),
		PairCount:    e.pairCount,
		Matched:      e.matchedPairs,
		Moves:        e.moves,
		Elapsed:      e.elapsed,
		TimerStarted: e.timerStarted,
		Locked:       e.locked,
		Won:          e.won,
	}
}

func TestResetDeckHasEveryTokenTwice(t *testing.T) {
	for pairs := MinPairs; pairs <= 16; pairs++ {
		tokens := make([]Token, pairs)
		for i := range tokens {
			tokens[i] = Token(string(rune('A' + i)))
		}
		e := newTestEngine(t, uint64(pairs), tokens...)

		require.Len(t, e.cells, 2*pairs)
		counts := map[Token]int{}
		for i, c := range e.cells {
			assert.Equal(t, i, c.ID)
			assert.False(t, c.FaceUp)
			assert.False(t, c.Matched)
			counts[c.Token]++
		}
		assert.Len(t, counts, pairs)
		for tok, n := range counts {
			assert.Equal(t, 2, n, "token %q with %d pairs", tok, pairs)
		}
	}
}

func TestResetClearsState(t *testing.T) {
	e := newTestEngine(t, 1, "A", "B")
	p := positions(e, "A")
	e.Reveal(p[0])
	e.Reveal(p[1])
	e.FinalizeComparison()
	e.Tick()

	require.NoError(t, e.Reset(3, []Token{"x", "y", "z"}))
	snap := e.Snapshot()
	assert.Len(t, snap.Cells, 6)
	assert.Empty(t, snap.Selection)
	assert.Zero(t, snap.MoveCount)
	assert.Zero(t, snap.MatchedPairCount)
	assert.Zero(t, snap.ElapsedSeconds)
	assert.Equal(t, 3, snap.PairCount)
	assert.False(t, snap.Won)
	assert.False(t, snap.Locked)
	assert.False(t, snap.TimerRunning)
	assert.Equal(t, PhaseIdle, snap.Phase)
}

func TestResetInvalidConfiguration(t *testing.T) {
	cases := []struct {
		name   string
		pairs  int
		tokens []Token
	}{
		{"too few pairs", 1, []Token{"A"}},
		{"zero pairs", 0, nil},
		{"short token list", 3, []Token{"A", "B"}},
		{"long token list", 2, []Token{"A", "B", "C"}},
		{"duplicate", 2, []Token{"A", "A"}},
		{"duplicate after normalisation", 2, []Token{"\u00e9", "e\u0301"}},
		{"empty token", 2, []Token{"A", ""}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newTestEngine(t, 7, "P", "Q")
			e.Reveal(0)
			before := capture(e)

			err := e.Reset(tc.pairs, tc.tokens)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfiguration))
			assert.Equal(t, before, capture(e), "prior game must be unchanged")
		})
	}
}

func TestShuffleIsUnbiased(t *testing.T) {
	// A 2-pair deck has 4!/(2!2!) = 6 distinct arrangements.
	const runs = 60000
	e := NewEngine(seeded(2024))
	counts := map[string]int{}
	for i := 0; i < runs; i++ {
		require.NoError(t, e.Reset(2, []Token{"A", "B"}))
		key := ""
		for _, c := range e.cells {
			key += string(c.Token)
		}
		counts[key]++
	}
	require.Len(t, counts, 6)

	expected := float64(runs) / 6
	chi2 := 0.0
	for _, n := range counts {
		d := float64(n) - expected
		chi2 += d * d / expected
	}
	// 5 degrees of freedom; 40 is far beyond any plausible unbiased result.
	assert.Less(t, chi2, 40.0, "arrangement counts %v", counts)
}

func TestShuffleEveryPositionUniform(t *testing.T) {
	const runs = 40000
	e := NewEngine(seeded(99))
	tokens := []Token{"A", "B", "C", "D"}
	hits := make([]int, 8)
	for i := 0; i < runs; i++ {
		require.NoError(t, e.Reset(4, tokens))
		for _, c := range e.cells {
			if c.Token == "A" {
				hits[c.ID]++
			}
		}
	}
	// "A" occupies 2 of 8 cells per deal.
	expected := float64(runs) * 2 / 8
	for pos, n := range hits {
		assert.InDelta(t, expected, float64(n), expected*0.05, "position %d", pos)
	}
}

func TestRevealFaceUpCellIsNoop(t *testing.T) {
	e := newTestEngine(t, 3, "A", "B", "C")
	res := e.Reveal(4)
	require.True(t, res.Accepted)
	before := capture(e)

	res = e.Reveal(4)
	assert.False(t, res.Accepted)
	assert.Equal(t, before, capture(e))
	assert.Equal(t, []int{4}, e.Snapshot().Selection)
	assert.Zero(t, e.Snapshot().MoveCount)
}

func TestRevealOutOfRangeIsNoop(t *testing.T) {
	e := newTestEngine(t, 3, "A", "B")
	before := capture(e)
	for _, id := range []int{-1, 4, 100} {
		assert.False(t, e.Reveal(id).Accepted)
	}
	assert.Equal(t, before, capture(e))
}

func TestRevealBeforeResetIsNoop(t *testing.T) {
	e := NewEngine(nil)
	assert.False(t, e.Reveal(0).Accepted)
	assert.False(t, e.Tick())
	assert.Equal(t, OutcomeNone, e.FinalizeComparison())
	assert.Equal(t, PhaseIdle, e.Phase())
}

func TestFirstRevealStartsTimerOnce(t *testing.T) {
	e := newTestEngine(t, 5, "A", "B", "C")
	assert.False(t, e.Tick(), "tick before the first reveal is a no-op")

	i, j := firstMismatch(e)
	res := e.Reveal(i)
	assert.True(t, res.TimerStarted)
	assert.Equal(t, PhaseInProgress, e.Phase())

	res = e.Reveal(j)
	assert.False(t, res.TimerStarted)
	assert.Equal(t, OutcomeMismatch, res.Pending)
	e.FinalizeComparison()

	res = e.Reveal(i)
	assert.True(t, res.Accepted)
	assert.False(t, res.TimerStarted)
}

func TestMoveCountPerPair(t *testing.T) {
	e := newTestEngine(t, 11, "A", "B", "C")
	i, j := firstMismatch(e)

	e.Reveal(i)
	assert.Zero(t, e.Snapshot().MoveCount, "single reveal is not a move")
	e.Reveal(j)
	assert.Equal(t, 1, e.Snapshot().MoveCount)
	e.FinalizeComparison()
	assert.Equal(t, 1, e.Snapshot().MoveCount, "finalize does not count a move")

	e.Reveal(i)
	e.Reveal(j)
	e.FinalizeComparison()
	assert.Equal(t, 2, e.Snapshot().MoveCount)
}

func TestSnapshotHidesFaceDownTokens(t *testing.T) {
	e := newTestEngine(t, 13, "A", "B", "C", "D")
	a := positions(e, "A")
	i, j := firstMismatch(e)

	check := func() {
		for _, v := range e.Snapshot().Cells {
			if v.FaceUp || v.Matched {
				assert.NotEmpty(t, v.Token, "cell %d", v.ID)
			} else {
				assert.Empty(t, v.Token, "cell %d leaks its token", v.ID)
			}
		}
	}

	check()
	e.Reveal(a[0])
	check()
	e.Reveal(a[1])
	check()
	e.FinalizeComparison()
	check()
	if !e.cells[i].Matched && !e.cells[j].Matched {
		e.Reveal(i)
		e.Reveal(j)
		check()
		e.FinalizeComparison()
		check()
	}
}

func TestSnapshotIsDetached(t *testing.T) {
	e := newTestEngine(t, 17, "A", "B")
	e.Reveal(0)
	snap := e.Snapshot()
	snap.Cells[1].FaceUp = true
	snap.Selection[0] = 3

	again := e.Snapshot()
	assert.False(t, again.Cells[1].FaceUp)
	assert.Equal(t, []int{0}, again.Selection)
}

func TestWonGameIgnoresRevealAndTick(t *testing.T) {
	e := newTestEngine(t, 19, "A", "B")
	for _, tok := range []Token{"A", "B"} {
		p := positions(e, tok)
		e.Reveal(p[0])
		e.Reveal(p[1])
		e.Tick()
		e.FinalizeComparison()
	}
	require.True(t, e.Won())
	before := capture(e)

	for id := -1; id <= 4; id++ {
		assert.False(t, e.Reveal(id).Accepted)
	}
	assert.False(t, e.Tick())
	assert.Equal(t, OutcomeNone, e.FinalizeComparison())
	assert.Equal(t, before, capture(e))
	assert.Equal(t, PhaseWon, e.Phase())
	assert.False(t, e.Snapshot().TimerRunning)
}

func TestFinalizeIsIdempotent(t *testing.T) {
	e := newTestEngine(t, 23, "A", "B", "C")
	a := positions(e, "A")
	e.Reveal(a[0])
	e.Reveal(a[1])
	require.Equal(t, OutcomeMatch, e.FinalizeComparison())
	after := capture(e)

	assert.Equal(t, OutcomeNone, e.FinalizeComparison())
	assert.Equal(t, OutcomeNone, e.FinalizeComparison())
	assert.Equal(t, after, capture(e))
	assert.Equal(t, 1, e.Snapshot().MatchedPairCount)
}

func TestFinalizeWithOneCardIsNoop(t *testing.T) {
	e := newTestEngine(t, 29, "A", "B")
	e.Reveal(2)
	before := capture(e)
	assert.Equal(t, OutcomeNone, e.FinalizeComparison())
	assert.Equal(t, before, capture(e))
}

func TestTickCountsOnlyWhileRunning(t *testing.T) {
	e := newTestEngine(t, 31, "A", "B")
	e.Reveal(0)
	for i := 0; i < 5; i++ {
		assert.True(t, e.Tick())
	}
	assert.Equal(t, 5, e.Snapshot().ElapsedSeconds)

	e.Reveal(1)
	assert.True(t, e.Tick(), "the clock keeps running while resolving")
	assert.Equal(t, 6, e.Snapshot().ElapsedSeconds)
}

func TestMatchedCellCannotBeRevealed(t *testing.T) {
	e := newTestEngine(t, 37, "A", "B", "C")
	a := positions(e, "A")
	e.Reveal(a[0])
	e.Reveal(a[1])
	e.FinalizeComparison()
	before := capture(e)

	assert.False(t, e.Reveal(a[0]).Accepted)
	assert.False(t, e.Reveal(a[1]).Accepted)
	assert.Equal(t, before, capture(e))
	for _, id := range a {
		assert.True(t, e.cells[id].Matched)
		assert.True(t, e.cells[id].FaceUp)
	}
}

func TestScenarioMatchThenWin(t *testing.T) {
	e := newTestEngine(t, 41, "A", "B")

	// Scenario A: match the first pair.
	a := positions(e, "A")
	require.Len(t, a, 2)
	first := e.Reveal(a[0])
	assert.True(t, first.Accepted)
	assert.True(t, first.TimerStarted)
	second := e.Reveal(a[1])
	assert.Equal(t, OutcomeMatch, second.Pending)
	assert.Equal(t, PhaseResolving, e.Phase())

	assert.Equal(t, OutcomeMatch, e.FinalizeComparison())
	snap := e.Snapshot()
	assert.True(t, snap.Cells[a[0]].Matched)
	assert.True(t, snap.Cells[a[1]].Matched)
	assert.Equal(t, 1, snap.MatchedPairCount)
	assert.Equal(t, 1, snap.MoveCount)
	assert.False(t, snap.Won)

	// Scenario B: match the second pair.
	b := positions(e, "B")
	e.Reveal(b[0])
	e.Reveal(b[1])
	assert.Equal(t, OutcomeMatch, e.FinalizeComparison())
	snap = e.Snapshot()
	assert.Equal(t, 2, snap.MatchedPairCount)
	assert.Equal(t, 2, snap.MoveCount)
	assert.True(t, snap.Won)
	assert.Equal(t, PhaseWon, snap.Phase)
}

func TestScenarioMismatchReverts(t *testing.T) {
	// Scenario C.
	e := newTestEngine(t, 43, "A", "B")
	a := positions(e, "A")[0]
	b := positions(e, "B")[0]

	e.Reveal(a)
	res := e.Reveal(b)
	assert.Equal(t, OutcomeMismatch, res.Pending)
	assert.Equal(t, OutcomeMismatch, e.FinalizeComparison())

	snap := e.Snapshot()
	for _, id := range []int{a, b} {
		assert.False(t, snap.Cells[id].FaceUp)
		assert.False(t, snap.Cells[id].Matched)
		assert.Empty(t, snap.Cells[id].Token)
	}
	assert.Empty(t, snap.Selection)
	assert.Equal(t, 1, snap.MoveCount)
	assert.False(t, snap.Won)
	assert.False(t, snap.Locked)
	assert.Equal(t, PhaseInProgress, snap.Phase)
}

func TestScenarioRevealWhileLocked(t *testing.T) {
	// Scenario D.
	e := newTestEngine(t, 47, "A", "B", "C")
	i, j := firstMismatch(e)
	e.Reveal(i)
	e.Reveal(j)
	require.True(t, e.Snapshot().Locked)
	before := capture(e)

	for id := range e.cells {
		assert.False(t, e.Reveal(id).Accepted)
	}
	assert.Equal(t, before, capture(e))
}

func TestDefaultRandDeals(t *testing.T) {
	e := NewEngine(nil)
	require.NoError(t, e.Reset(DefaultPairs, []Token{"🎮", "🎯", "🎨", "🎭", "🎪", "🎸", "🎹", "🎺"}))
	assert.Len(t, e.Snapshot().Cells, 16)
}

func TestFormatElapsed(t *testing.T) {
	assert.Equal(t, "0:00", FormatElapsed(0))
	assert.Equal(t, "0:09", FormatElapsed(9))
	assert.Equal(t, "1:05", FormatElapsed(65))
	assert.Equal(t, "12:00", FormatElapsed(720))
	assert.Equal(t, "0:00", FormatElapsed(-3))
}

func TestPhaseAndOutcomeText(t *testing.T) {
	b, err := PhaseResolving.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "resolving", string(b))
	b, err = OutcomeMismatch.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "mismatch", string(b))
}

func TestPhaseAndOutcomeParse(t *testing.T) {
	var p Phase
	require.NoError(t, p.UnmarshalText([]byte("won")))
	assert.Equal(t, PhaseWon, p)
	assert.Error(t, p.UnmarshalText([]byte("lost")))

	var o Outcome
	require.NoError(t, o.UnmarshalText([]byte("match")))
	assert.Equal(t, OutcomeMatch, o)
	assert.Error(t, o.UnmarshalText([]byte("")))
}
