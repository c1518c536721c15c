// internal/session/session.go
//
// A Session wraps one match engine with the scheduling the engine leaves to
// its caller:
//   - a ticker that calls Tick every Policy.TickInterval once the first card
//     is revealed, until the game is won, reset or closed;
//   - a one-shot timer that calls FinalizeComparison after the match or
//     mismatch presentation delay.
//
// All engine calls go through Session.mu, so the engine only ever sees one
// caller at a time. Timers carry the generation they were armed in; a Reset
// or Close bumps the generation and any late callback becomes a no-op.
//
// Every state change is published to subscribers (latest snapshot wins).

package session

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/pairs/internal/game"
)

// Mode distinguishes free play from the daily challenge.
type Mode string

const (
	ModeNormal Mode = "normal"
	ModeDaily  Mode = "daily"
)

// Policy is the presentation timing applied around the engine.
type Policy struct {
	MatchDelay    time.Duration
	MismatchDelay time.Duration
	TickInterval  time.Duration
}

// DefaultPolicy mirrors the classic browser game: a match settles after
// 600ms, a mismatch stays visible for a second, the clock ticks every second.
func DefaultPolicy() Policy {
	return Policy{
		MatchDelay:    600 * time.Millisecond,
		MismatchDelay: time.Second,
		TickInterval:  time.Second,
	}
}

// WinFunc is called once per won game, outside the session lock. deal is
// the value of Deal when the winning game was dealt.
type WinFunc func(s *Session, deal int, final game.Snapshot)

// Options describe a new session.
type Options struct {
	ID     string
	Owner  string // user id or anonymous id
	UserID string // empty for guests
	Mode   Mode
	Date   string // daily date key, ModeDaily only
	Theme  string
	Policy Policy
	Rand   game.Rand
	OnWin  WinFunc
}

// Session is one live game.
type Session struct {
	ID     string
	Owner  string
	UserID string
	Mode   Mode
	Date   string

	policy Policy
	onWin  WinFunc

	mu         sync.Mutex
	engine     *game.Engine
	theme      string
	deal       int
	gen        uint64
	stopTick   chan struct{}
	finalize   *time.Timer
	winFired   bool
	closed     bool
	lastActive time.Time
	subs       map[int]chan game.Snapshot
	nextSub    int
}

// New deals the first game of a session.
func New(opts Options, pairs int, tokens []game.Token) (*Session, error) {
	eng := game.NewEngine(opts.Rand)
	if err := eng.Reset(pairs, tokens); err != nil {
		return nil, err
	}
	if opts.Mode == "" {
		opts.Mode = ModeNormal
	}
	p := opts.Policy
	if p.TickInterval <= 0 {
		p.TickInterval = DefaultPolicy().TickInterval
	}
	return &Session{
		ID:         opts.ID,
		Owner:      opts.Owner,
		UserID:     opts.UserID,
		Mode:       opts.Mode,
		Date:       opts.Date,
		policy:     p,
		onWin:      opts.OnWin,
		engine:     eng,
		theme:      opts.Theme,
		lastActive: time.Now(),
		subs:       make(map[int]chan game.Snapshot),
	}, nil
}

// Theme is the theme the current deck was dealt from.
func (s *Session) Theme() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.theme
}

// Snapshot returns the current observable state.
func (s *Session) Snapshot() game.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Snapshot()
}

// Deal counts successful resets; the first game is deal 0.
func (s *Session) Deal() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deal
}

// LastActive is the time of the last player command.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Reveal forwards a reveal to the engine and arms the clock and the
// comparison timer as needed. Rejected reveals change nothing.
func (s *Session) Reveal(cellID int) (game.RevealResult, game.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastActive = time.Now()
	if s.closed {
		return game.RevealResult{}, s.engine.Snapshot()
	}

	res := s.engine.Reveal(cellID)
	if !res.Accepted {
		return res, s.engine.Snapshot()
	}
	if res.TimerStarted {
		s.startTickerLocked()
	}
	if res.Pending != game.OutcomeNone {
		s.scheduleFinalizeLocked(res.Pending)
	}

	snap := s.engine.Snapshot()
	s.publishLocked(snap)
	return res, snap
}

// Reset deals a new game in place. On invalid configuration the running
// game, its clock and any pending comparison are left alone.
func (s *Session) Reset(theme string, pairs int, tokens []game.Token) (game.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastActive = time.Now()
	if err := s.engine.Reset(pairs, tokens); err != nil {
		return s.engine.Snapshot(), err
	}
	s.gen++
	s.stopTimersLocked()
	s.theme = theme
	s.deal++
	s.winFired = false

	snap := s.engine.Snapshot()
	s.publishLocked(snap)
	log.Debug().Str("session", s.ID).Int("pairs", pairs).Msg("session reset")
	return snap, nil
}

// Subscribe returns a channel that receives the current snapshot and then
// every change. Slow readers only see the latest state. The returned func
// unsubscribes; the channel is closed on unsubscribe or Close.
func (s *Session) Subscribe() (<-chan game.Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan game.Snapshot, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.engine.Snapshot()

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

// Close stops the clock and pending timers and releases subscribers.
// Further commands are ignored.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.gen++
	s.stopTimersLocked()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

// ---------------------------------------------------------------------------
// scheduling

func (s *Session) scheduleFinalizeLocked(pending game.Outcome) {
	delay := s.policy.MismatchDelay
	if pending == game.OutcomeMatch {
		delay = s.policy.MatchDelay
	}
	gen := s.gen
	s.finalize = time.AfterFunc(delay, func() { s.finalizeComparison(gen) })
}

func (s *Session) finalizeComparison(gen uint64) {
	s.mu.Lock()
	if s.closed || gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.finalize = nil
	if s.engine.FinalizeComparison() == game.OutcomeNone {
		s.mu.Unlock()
		return
	}
	snap := s.engine.Snapshot()
	s.publishLocked(snap)

	var fire WinFunc
	deal := s.deal
	if snap.Won && !s.winFired {
		s.winFired = true
		s.stopTickerLocked()
		fire = s.onWin
		log.Info().Str("session", s.ID).Int("moves", snap.MoveCount).
			Int("seconds", snap.ElapsedSeconds).Msg("game won")
	}
	s.mu.Unlock()

	if fire != nil {
		fire(s, deal, snap)
	}
}

func (s *Session) startTickerLocked() {
	s.stopTickerLocked()
	stop := make(chan struct{})
	s.stopTick = stop
	go s.runTicker(s.gen, stop)
}

func (s *Session) runTicker(gen uint64, stop <-chan struct{}) {
	t := time.NewTicker(s.policy.TickInterval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			s.mu.Lock()
			if s.closed || gen != s.gen || !s.engine.Tick() {
				s.mu.Unlock()
				return
			}
			s.publishLocked(s.engine.Snapshot())
			s.mu.Unlock()
		}
	}
}

func (s *Session) stopTickerLocked() {
	if s.stopTick != nil {
		close(s.stopTick)
		s.stopTick = nil
	}
}

func (s *Session) stopTimersLocked() {
	s.stopTickerLocked()
	if s.finalize != nil {
		s.finalize.Stop()
		s.finalize = nil
	}
}

// publishLocked hands snap to every subscriber, replacing any unread value.
func (s *Session) publishLocked(snap game.Snapshot) {
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}
