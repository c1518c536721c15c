// internal/httpserver/routes_daily.go
//
// HTTP routes for the "Daily Challenge" mode.
// Exposes two endpoints under /daily:
//   - POST /daily/new         → start a daily game (creates or reuses session)
//   - GET  /daily/leaderboard → fetch top 20 results for today (or a given date)
//
// Play goes through the regular /game/{id} endpoints; daily sessions refuse
// reset. Each player can finish once per day (enforced by DB + in-memory
// session). Everyone gets the same deck on a given UTC date: the shuffle is
// seeded from date + salt.

package httpserver

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/pairs/internal/daily"
	"github.com/robalobadob/pairs/internal/game"
	"github.com/robalobadob/pairs/internal/session"
)

// dailyServer wraps dependencies for /daily endpoints.
type dailyServer struct {
	srv      *Server
	store    *daily.Store
	salt     string
	now      func() time.Time
	sessions map[string]string // session IDs keyed by owner|date
	mu       sync.Mutex        // guards sessions
}

// mountDaily registers all /daily routes.
func (s *Server) mountDaily(r chi.Router) {
	s.daily = &dailyServer{
		srv:      s,
		store:    daily.NewStore(s.db),
		salt:     s.cfg.DailySalt,
		now:      time.Now,
		sessions: make(map[string]string),
	}
	r.Route("/daily", func(r chi.Router) {
		r.Post("/new", s.daily.handleNew)
		r.Get("/leaderboard", s.daily.handleLeaderboard)
	})
}

// -----------------------------------------------------------------------------
// /daily/new

// newRes is returned by /daily/new.
type newRes struct {
	GameID string         `json:"gameId"`
	Date   string         `json:"date"`
	Played bool           `json:"played"`
	Theme  string         `json:"theme,omitempty"`
	State  *game.Snapshot `json:"state,omitempty"`
}

// handleNew creates or reuses the caller's daily session for today.
//   - If the player already has a DB row for today → Played=true.
//   - Otherwise reuse the live session (unless it was swept) or deal a new one.
func (d *dailyServer) handleNew(w http.ResponseWriter, r *http.Request) {
	owner, userID := d.srv.owner(w, r)
	now := d.now()
	date := daily.DateKey(now)

	played, err := d.store.AlreadyPlayed(r.Context(), owner, date)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "db_error")
		return
	}
	if played {
		_ = json.NewEncoder(w).Encode(newRes{Date: date, Played: true})
		return
	}

	key := owner + "|" + date
	d.mu.Lock()
	defer d.mu.Unlock()

	if id, ok := d.sessions[key]; ok {
		if sess, err := d.srv.store.Get(r.Context(), id); err == nil {
			snap := sess.Snapshot()
			_ = json.NewEncoder(w).Encode(newRes{GameID: sess.ID, Date: date, Theme: sess.Theme(), State: &snap})
			return
		}
		delete(d.sessions, key)
	}

	cfg := d.srv.cfg
	toks, err := d.srv.themes.Pick(cfg.DefaultTheme, cfg.DefaultPairs)
	if err != nil {
		if !configErr(w, err) {
			writeErr(w, http.StatusInternalServerError, "deal_failed")
		}
		return
	}
	sess, err := session.New(session.Options{
		ID:     uuid.NewString(),
		Owner:  owner,
		UserID: userID,
		Mode:   session.ModeDaily,
		Date:   date,
		Theme:  cfg.DefaultTheme,
		Policy: d.srv.policy(),
		Rand:   daily.Rand(now, d.salt),
		OnWin:  d.srv.recordWin,
	}, cfg.DefaultPairs, toks)
	if err != nil {
		if !configErr(w, err) {
			writeErr(w, http.StatusInternalServerError, "deal_failed")
		}
		return
	}
	if err := d.srv.store.Save(r.Context(), sess); err != nil {
		log.Error().Err(err).Msg("save daily session")
		writeErr(w, http.StatusInternalServerError, "save_failed")
		return
	}
	d.sessions[key] = sess.ID
	d.srv.insertGameRow(r.Context(), sess, 0, cfg.DefaultPairs)

	snap := sess.Snapshot()
	_ = json.NewEncoder(w).Encode(newRes{GameID: sess.ID, Date: date, Theme: sess.Theme(), State: &snap})
}

// -----------------------------------------------------------------------------
// /daily/leaderboard

// lbRes is returned by /daily/leaderboard.
type lbRes struct {
	Date string        `json:"date"`
	Top  []daily.LBRow `json:"top"`
}

// handleLeaderboard returns the leaderboard for the given date (default today).
func (d *dailyServer) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = daily.DateKey(d.now())
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		writeErr(w, http.StatusBadRequest, "bad_date")
		return
	}
	rows, err := d.store.Leaderboard(r.Context(), date, 20)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "db_error")
		return
	}
	_ = json.NewEncoder(w).Encode(lbRes{Date: date, Top: rows})
}
