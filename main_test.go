package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/pairs/internal/config"
	"github.com/robalobadob/pairs/internal/game"
)

// inOrder leaves the deck unshuffled: A B C A B C.
type inOrder struct{}

func (inOrder) IntN(n int) int { return n - 1 }

func dealInOrder(t *testing.T, tokens ...game.Token) *game.Engine {
	t.Helper()
	eng := game.NewEngine(inOrder{})
	require.NoError(t, eng.Reset(len(tokens), tokens))
	return eng
}

// stepClock advances by step on every call.
func stepClock(step time.Duration) func() time.Time {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(step)
		return now
	}
}

func TestCommandPresence(t *testing.T) {
	cmd := newRootCommand()
	assert.Equal(t, "pairs", cmd.Use)
	for _, name := range []string{"serve", "migrate", "play"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	flag := cmd.PersistentFlags().Lookup("log-level")
	require.NotNil(t, flag)
	assert.Equal(t, "", flag.DefValue)

	play, _, err := cmd.Find([]string{"play"})
	require.NoError(t, err)
	for _, name := range []string{"theme", "pairs", "seed"} {
		assert.NotNil(t, play.Flags().Lookup(name), name)
	}
}

func TestSetupLoggingRejectsUnknownLevel(t *testing.T) {
	assert.NoError(t, setupLogging("debug", false))
	assert.Error(t, setupLogging("loud", false))
	assert.NoError(t, setupLogging("info", false))
}

func TestLoadThemesChecksDefault(t *testing.T) {
	_, err := loadThemes(config.Config{DefaultTheme: "classic"})
	assert.NoError(t, err)
	_, err = loadThemes(config.Config{DefaultTheme: "planets"})
	assert.Error(t, err)
}

func TestMigrateCommand(t *testing.T) {
	t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "data", "pairs.db"))
	t.Setenv("APP_ENV", "")
	t.Setenv("JWT_SECRET", "")
	cmd := newRootCommand()
	cmd.SetArgs([]string{"migrate", "--log-level", "warn"})
	require.NoError(t, cmd.Execute())
}

func TestPlayCommandWithSeed(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("JWT_SECRET", "")
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetIn(strings.NewReader("q\n"))
	cmd.SetArgs([]string{"play", "--theme", "letters", "--pairs", "2", "--seed", "7", "--log-level", "warn"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "Matches: 0/2")
	assert.Contains(t, out.String(), "Bye.")

	cmd = newRootCommand()
	cmd.SetOut(&out)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs([]string{"play", "--pairs", "1", "--log-level", "warn"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.ErrorIs(t, err, game.ErrInvalidConfiguration)
}

func TestRunPlayToVictory(t *testing.T) {
	eng := dealInOrder(t, "A", "B", "C")
	in := strings.NewReader("0\n1\n0\n3\n1\n4\n2\n5\n")
	var out bytes.Buffer

	require.NoError(t, runPlay(in, &out, eng, stepClock(time.Second)))
	text := out.String()

	assert.Contains(t, text, " 0:??  ")
	assert.Contains(t, text, " 0:A    1:B ")
	assert.Contains(t, text, "No match.")
	assert.Equal(t, 3, strings.Count(text, "Match!"))
	assert.Contains(t, text, "Matches: 3/3")
	assert.Regexp(t, `You won in 4 moves and \d+:\d\d!`, text)
	assert.True(t, eng.Won())
}

func TestRunPlayRejectsBadInput(t *testing.T) {
	eng := dealInOrder(t, "A", "B")
	in := strings.NewReader("x\n9\n0\n0\nq\n")
	var out bytes.Buffer

	require.NoError(t, runPlay(in, &out, eng, stepClock(time.Second)))
	text := out.String()
	assert.Contains(t, text, `Not a card number: "x"`)
	assert.Contains(t, text, "Card 9 cannot be revealed.")
	assert.Contains(t, text, "Card 0 cannot be revealed.")
	assert.Contains(t, text, "Bye.")
	assert.False(t, eng.Won())
}

func TestRunPlayClockFollowsWallTime(t *testing.T) {
	eng := dealInOrder(t, "A", "B")
	// Each clock read is 30s later than the last.
	in := strings.NewReader("0\n2\n")
	var out bytes.Buffer
	require.NoError(t, runPlay(in, &out, eng, stepClock(30*time.Second)))

	snap := eng.Snapshot()
	assert.Equal(t, 1, snap.MatchedPairCount)
	assert.GreaterOrEqual(t, snap.ElapsedSeconds, 30)
	assert.Contains(t, out.String(), "Time: 0:00")
}

func TestCatchUp(t *testing.T) {
	eng := dealInOrder(t, "A", "B")
	catchUp(eng, 5)
	assert.Zero(t, eng.Snapshot().ElapsedSeconds, "clock waits for the first reveal")

	eng.Reveal(0)
	catchUp(eng, 3)
	assert.Equal(t, 3, eng.Snapshot().ElapsedSeconds)
	catchUp(eng, 2)
	assert.Equal(t, 3, eng.Snapshot().ElapsedSeconds)
}
