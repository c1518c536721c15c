// internal/httpserver/server.go
//
// HTTP server wiring for the Pairs backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs, access log).
//   - Public endpoints: "/", "/health", "/themes".
//   - Game endpoints (optional auth): POST /game/new, GET /game/{id},
//     POST /game/{id}/reveal, POST /game/{id}/reset, GET /game/{id}/ws.
//   - Daily Challenge endpoints (optional auth): mounted under /daily.
//   - Auth + profile/stat endpoints: /auth/*, /stats/me, /games/mine (auth.go).
//   - Database persistence for finished games and user stats.
//
// Notes:
//   - Sessions are owner-bound: a game is visible only to the user or
//     anonymous cookie that started it. Everyone else gets 404.
//   - Reveals answer immediately; comparisons settle on the session's timers
//     and are pushed over the websocket stream (or seen on the next GET).

package httpserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/pairs/internal/config"
	"github.com/robalobadob/pairs/internal/daily"
	"github.com/robalobadob/pairs/internal/game"
	"github.com/robalobadob/pairs/internal/session"
	"github.com/robalobadob/pairs/internal/store"
	"github.com/robalobadob/pairs/internal/tokens"
)

// Server bundles router, live session store, DB handle and theme catalog.
type Server struct {
	r      *chi.Mux
	cfg    config.Config
	store  store.Store
	db     *sql.DB
	themes *tokens.Catalog
	daily  *dailyServer
}

// New constructs a Server, installs middleware, and registers routes.
func New(cfg config.Config, st store.Store, db *sql.DB, themes *tokens.Catalog) *Server {
	s := &Server{r: chi.NewRouter(), cfg: cfg, store: st, db: db, themes: themes}

	// --- middleware ---
	s.r.Use(chimw.RequestID) // add X-Request-ID
	s.r.Use(chimw.RealIP)    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(chimw.Recoverer) // recover from panics
	s.r.Use(s.cors)          // credentials-friendly CORS

	// Websocket streams are long-lived: no handler timeout, no wrapped writer.
	s.r.With(s.withOptionalAuth()).Get("/game/{id}/ws", s.handleWatch)

	s.r.Group(func(r chi.Router) {
		r.Use(hlog.NewHandler(log.Logger))
		r.Use(accessLog)
		r.Use(chimw.Timeout(10 * time.Second)) // bound handler time
		r.Use(jsonContentType)                 // default JSON responses

		// --- diagnostics ---
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"service":"pairs","endpoints":["/health","/themes","POST /game/new","/game/{id}","/daily/*","/auth/*"]}`))
		})
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"ok":true}`))
		})
		r.Get("/themes", s.handleThemes)

		// Game endpoints: optional auth (guests can play)
		r.Group(func(r chi.Router) {
			r.Use(s.withOptionalAuth())
			r.Post("/game/new", s.handleNewGame)
			r.Get("/game/{id}", s.handleGetGame)
			r.Post("/game/{id}/reveal", s.handleReveal)
			r.Post("/game/{id}/reset", s.handleReset)
		})

		// Daily Challenge: optional auth (guests can play; results persisted on win)
		s.mountDaily(r.With(s.withOptionalAuth()))

		// Auth + profile/stats
		s.mountAuthRoutes(r)

		// JSON 404 for easier debugging
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			writeErr(w, http.StatusNotFound, "not_found")
		})
	})

	return s
}

// Start serves HTTP on addr until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.r, ReadHeaderTimeout: 10 * time.Second}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("starting pairs server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// accessLog writes one debug line per request through the request logger.
var accessLog = hlog.AccessHandler(func(r *http.Request, status, size int, d time.Duration) {
	hlog.FromRequest(r).Debug().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("request_id", chimw.GetReqID(r.Context())).
		Int("status", status).
		Dur("took", d).
		Msg("request")
})

// cors enables credentialed CORS for the configured client origin.
func (s *Server) cors(next http.Handler) http.Handler {
	origin := s.cfg.ClientOrigin
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeErr writes {"error": code} with status.
func writeErr(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code})
}

// configErr maps a deal failure to a 400 body, or reports false for errors
// that are not the caller's fault.
func configErr(w http.ResponseWriter, err error) bool {
	switch {
	case errors.Is(err, tokens.ErrUnknownTheme):
		writeErr(w, http.StatusBadRequest, "unknown_theme")
	case errors.Is(err, game.ErrInvalidConfiguration), errors.Is(err, tokens.ErrThemeTooSmall):
		writeErr(w, http.StatusBadRequest, "invalid_configuration")
	default:
		return false
	}
	return true
}

// ------------------------------ THEMES -------------------------------------

type themeInfo struct {
	Name     string `json:"name"`
	MaxPairs int    `json:"maxPairs"`
}

func (s *Server) handleThemes(w http.ResponseWriter, r *http.Request) {
	out := []themeInfo{}
	for _, name := range s.themes.Names() {
		n, _ := s.themes.Size(name)
		out = append(out, themeInfo{Name: name, MaxPairs: n})
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"themes":       out,
		"defaultTheme": s.cfg.DefaultTheme,
		"defaultPairs": s.cfg.DefaultPairs,
		"minPairs":     game.MinPairs,
	})
}

// ------------------------------ GAME ---------------------------------------

// dealReq is the payload for POST /game/new and POST /game/{id}/reset.
// Missing fields fall back to the configured defaults.
type dealReq struct {
	Pairs *int   `json:"pairs"`
	Theme string `json:"theme"`
}

func (s *Server) decodeDeal(r *http.Request) (theme string, pairs int, err error) {
	var req dealReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return "", 0, err
	}
	theme, pairs = req.Theme, s.cfg.DefaultPairs
	if theme == "" {
		theme = s.cfg.DefaultTheme
	}
	if req.Pairs != nil {
		pairs = *req.Pairs
	}
	return theme, pairs, nil
}

type gameRes struct {
	GameID string        `json:"gameId"`
	Mode   session.Mode  `json:"mode"`
	Theme  string        `json:"theme"`
	State  game.Snapshot `json:"state"`
}

func (s *Server) policy() session.Policy {
	return session.Policy{
		MatchDelay:    s.cfg.MatchDelay,
		MismatchDelay: s.cfg.MismatchDelay,
		TickInterval:  s.cfg.TickInterval,
	}
}

// handleNewGame deals a new session and records a "playing" games row
// owned by the user or the anonymous cookie.
func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	theme, pairs, err := s.decodeDeal(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "bad_json")
		return
	}
	toks, err := s.themes.Pick(theme, pairs)
	if err != nil {
		if !configErr(w, err) {
			writeErr(w, http.StatusInternalServerError, "deal_failed")
		}
		return
	}

	owner, userID := s.owner(w, r)
	sess, err := session.New(session.Options{
		ID:     uuid.NewString(),
		Owner:  owner,
		UserID: userID,
		Mode:   session.ModeNormal,
		Theme:  theme,
		Policy: s.policy(),
		OnWin:  s.recordWin,
	}, pairs, toks)
	if err != nil {
		if !configErr(w, err) {
			writeErr(w, http.StatusInternalServerError, "deal_failed")
		}
		return
	}
	if err := s.store.Save(r.Context(), sess); err != nil {
		log.Error().Err(err).Msg("save session")
		writeErr(w, http.StatusInternalServerError, "save_failed")
		return
	}
	s.insertGameRow(r.Context(), sess, 0, pairs)

	_ = json.NewEncoder(w).Encode(gameRes{GameID: sess.ID, Mode: sess.Mode, Theme: theme, State: sess.Snapshot()})
}

// handleGetGame returns the current snapshot.
func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	_ = json.NewEncoder(w).Encode(gameRes{GameID: sess.ID, Mode: sess.Mode, Theme: sess.Theme(), State: sess.Snapshot()})
}

type revealReq struct {
	Cell *int `json:"cell"`
}

type revealRes struct {
	game.RevealResult
	State game.Snapshot `json:"state"`
}

// handleReveal turns one card face up. Illegal reveals are not errors:
// they answer accepted=false with the unchanged state.
func (s *Server) handleReveal(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req revealReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Cell == nil {
		writeErr(w, http.StatusBadRequest, "bad_json")
		return
	}
	res, snap := sess.Reveal(*req.Cell)
	_ = json.NewEncoder(w).Encode(revealRes{RevealResult: res, State: snap})
}

// handleReset deals a new game in the same session. Daily sessions cannot be
// re-dealt.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if sess.Mode == session.ModeDaily {
		writeErr(w, http.StatusConflict, "daily_no_reset")
		return
	}
	theme, pairs, err := s.decodeDeal(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "bad_json")
		return
	}
	toks, err := s.themes.Pick(theme, pairs)
	if err != nil {
		if !configErr(w, err) {
			writeErr(w, http.StatusInternalServerError, "deal_failed")
		}
		return
	}
	snap, err := sess.Reset(theme, pairs, toks)
	if err != nil {
		if !configErr(w, err) {
			writeErr(w, http.StatusInternalServerError, "deal_failed")
		}
		return
	}
	s.insertGameRow(r.Context(), sess, sess.Deal(), pairs)

	_ = json.NewEncoder(w).Encode(gameRes{GameID: sess.ID, Mode: sess.Mode, Theme: theme, State: snap})
}

// lookup finds the session named in the URL and checks the caller owns it.
// It writes the 404 itself.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil || !s.owns(r, sess) {
		writeErr(w, http.StatusNotFound, "not_found")
		return nil, false
	}
	return sess, true
}

// owns reports whether the request comes from the session's owner: the
// logged-in user, or the anonymous cookie that started it.
func (s *Server) owns(r *http.Request, sess *session.Session) bool {
	if me := currentUser(r); me != nil && me.ID == sess.Owner {
		return true
	}
	if c, err := r.Cookie(anonCookieName); err == nil && c.Value != "" {
		return c.Value == sess.Owner
	}
	return false
}

// owner returns the owner id for a new session and the user id (empty for guests).
func (s *Server) owner(w http.ResponseWriter, r *http.Request) (string, string) {
	if me := currentUser(r); me != nil {
		return me.ID, me.ID
	}
	return s.ensureAnonID(w, r), ""
}

// ---------------------------- persistence ----------------------------------

// gameRowID names the games row of one deal of a session.
func gameRowID(sessionID string, deal int) string {
	if deal == 0 {
		return sessionID
	}
	return sessionID + "-" + strconv.Itoa(deal)
}

// insertGameRow records a freshly dealt game (best effort). Logged-in
// players get games_played bumped here; wins are counted in recordWin.
func (s *Server) insertGameRow(ctx context.Context, sess *session.Session, deal, pairs int) {
	now := time.Now().UTC().Format(time.RFC3339)
	var userID, anonID any
	if sess.UserID != "" {
		userID = sess.UserID
	} else {
		anonID = sess.Owner
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO games (id, user_id, anonymous_id, mode, theme, pairs, status, started_at)
	                                 VALUES (?,?,?,?,?,?,'playing',?)`,
		gameRowID(sess.ID, deal), userID, anonID, string(sess.Mode), sess.Theme(), pairs, now)
	if err != nil {
		log.Warn().Err(err).Str("gameId", sess.ID).Msg("insert game row")
		return
	}
	if sess.UserID != "" {
		if _, err := s.db.ExecContext(ctx, `UPDATE users SET games_played = games_played + 1 WHERE id=?`, sess.UserID); err != nil {
			log.Warn().Err(err).Str("user", sess.UserID).Msg("bump games played")
		}
	}
}

// recordWin is the sessions' OnWin hook: it closes the games row, updates
// the winner's stats in one transaction, and files daily results.
func (s *Server) recordWin(sess *session.Session, deal int, final game.Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		log.Warn().Err(err).Msg("record win: begin")
		return
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `UPDATE games SET status='won', moves=?, elapsed_seconds=?, finished_at=? WHERE id=?`,
		final.MoveCount, final.ElapsedSeconds, time.Now().UTC().Format(time.RFC3339), gameRowID(sess.ID, deal)); err != nil {
		log.Warn().Err(err).Str("gameId", sess.ID).Msg("finish game")
	}
	if sess.UserID != "" {
		if err := bumpWin(ctx, tx, sess.UserID, final.MoveCount, final.ElapsedSeconds); err != nil {
			log.Warn().Err(err).Str("user", sess.UserID).Msg("bump stats")
		}
	}
	if err := tx.Commit(); err != nil {
		log.Warn().Err(err).Msg("record win: commit")
	}

	if sess.Mode == session.ModeDaily {
		err := s.daily.store.InsertResult(ctx, daily.Result{
			UserID: sess.Owner, Date: sess.Date, Moves: final.MoveCount, ElapsedSeconds: final.ElapsedSeconds,
		})
		if err != nil {
			log.Warn().Err(err).Str("user", sess.Owner).Msg("insert daily result")
		}
	}
}

// bumpWin increments wins and keeps the best move count and time (within tx).
func bumpWin(ctx context.Context, tx *sql.Tx, userID string, moves, seconds int) error {
	var wins int
	var bestMoves, bestSeconds sql.NullInt64
	row := tx.QueryRowContext(ctx, `SELECT wins, best_moves, best_seconds FROM users WHERE id=?`, userID)
	if err := row.Scan(&wins, &bestMoves, &bestSeconds); err != nil {
		return err
	}
	wins++
	if !bestMoves.Valid || int64(moves) < bestMoves.Int64 {
		bestMoves = sql.NullInt64{Int64: int64(moves), Valid: true}
	}
	if !bestSeconds.Valid || int64(seconds) < bestSeconds.Int64 {
		bestSeconds = sql.NullInt64{Int64: int64(seconds), Valid: true}
	}
	_, err := tx.ExecContext(ctx, `UPDATE users SET wins=?, best_moves=?, best_seconds=? WHERE id=?`,
		wins, bestMoves, bestSeconds, userID)
	return err
}
