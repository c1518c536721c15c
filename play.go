// play.go
//
// `pairs play`: one game in the terminal. The board is a 4-column grid of
// cell numbers; face-down cards show as ??. Both cards of a move are shown
// before the comparison settles, the clock follows wall time from the first
// reveal, and a win prints the move count and time.

package main

import (
	"bufio"
	"fmt"
	"io"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/robalobadob/pairs/internal/game"
)

const gridColumns = 4

func newPlayCommand(opts *rootOptions) *cobra.Command {
	var (
		theme string
		pairs int
		seed  uint64
	)
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play a game in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			if theme == "" {
				theme = cfg.DefaultTheme
			}
			if pairs == 0 {
				pairs = cfg.DefaultPairs
			}
			themes, err := loadThemes(cfg)
			if err != nil {
				return err
			}
			toks, err := themes.Pick(theme, pairs)
			if err != nil {
				return err
			}

			var rng game.Rand
			if seed != 0 {
				rng = rand.New(rand.NewPCG(seed, seed))
			}
			eng := game.NewEngine(rng)
			if err := eng.Reset(pairs, toks); err != nil {
				return err
			}
			return runPlay(cmd.InOrStdin(), cmd.OutOrStdout(), eng, time.Now)
		},
	}
	cmd.Flags().StringVar(&theme, "theme", "", "token theme (default DEFAULT_THEME)")
	cmd.Flags().IntVar(&pairs, "pairs", 0, "number of pairs (default DEFAULT_PAIRS)")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "shuffle seed for a repeatable deck (0 = random)")
	return cmd
}

// runPlay drives eng from line-based input until the game is won, the
// player types q, or input ends.
func runPlay(in io.Reader, out io.Writer, eng *game.Engine, now func() time.Time) error {
	var started time.Time
	syncClock := func() {
		if !started.IsZero() {
			catchUp(eng, int(now().Sub(started)/time.Second))
		}
	}

	sc := bufio.NewScanner(in)
	for {
		syncClock()
		snap := eng.Snapshot()
		render(out, snap)
		fmt.Fprintf(out, "Reveal a card (0-%d, q to quit): ", len(snap.Cells)-1)
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}

		line := strings.TrimSpace(sc.Text())
		if strings.EqualFold(line, "q") {
			fmt.Fprintln(out, "Bye.")
			return nil
		}
		cell, err := strconv.Atoi(line)
		if err != nil {
			fmt.Fprintf(out, "Not a card number: %q\n", line)
			continue
		}

		res := eng.Reveal(cell)
		if !res.Accepted {
			fmt.Fprintf(out, "Card %d cannot be revealed.\n", cell)
			continue
		}
		if res.TimerStarted {
			started = now()
		}
		if res.Pending == game.OutcomeNone {
			continue
		}

		syncClock()
		render(out, eng.Snapshot())
		if eng.FinalizeComparison() == game.OutcomeMatch {
			fmt.Fprintln(out, "Match!")
		} else {
			fmt.Fprintln(out, "No match.")
		}

		if eng.Won() {
			final := eng.Snapshot()
			render(out, final)
			fmt.Fprintf(out, "You won in %d moves and %s!\n", final.MoveCount, game.FormatElapsed(final.ElapsedSeconds))
			return nil
		}
	}
}

// catchUp ticks eng until its clock shows elapsed seconds.
func catchUp(eng *game.Engine, elapsed int) {
	for eng.Snapshot().ElapsedSeconds < elapsed {
		if !eng.Tick() {
			return
		}
	}
}

// render prints the board and the status line.
func render(out io.Writer, snap game.Snapshot) {
	fmt.Fprintln(out)
	for i, c := range snap.Cells {
		label := "??"
		if c.Token != "" {
			label = string(c.Token)
		}
		fmt.Fprintf(out, "%2d:%-4s", c.ID, label)
		if (i+1)%gridColumns == 0 || i == len(snap.Cells)-1 {
			fmt.Fprintln(out)
		}
	}
	fmt.Fprintf(out, "Moves: %d  Matches: %d/%d  Time: %s\n",
		snap.MoveCount, snap.MatchedPairCount, snap.PairCount, game.FormatElapsed(snap.ElapsedSeconds))
}
