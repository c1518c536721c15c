package daily

import (
	"context"
	"database/sql"
)

// Result is one finished daily game. UserID is a user id or an anonymous id.
type Result struct {
	UserID         string `json:"userId"`
	Date           string `json:"date"`
	Moves          int    `json:"moves"`
	ElapsedSeconds int    `json:"elapsedSeconds"`
}

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) AlreadyPlayed(ctx context.Context, userID, date string) (bool, error) {
	var cnt int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM daily_results WHERE user_id=? AND date=?",
		userID, date,
	).Scan(&cnt)
	return cnt > 0, err
}

// InsertResult records r; a second result for the same user and date is ignored.
func (s *Store) InsertResult(ctx context.Context, r Result) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO daily_results(user_id, date, moves, elapsed_seconds)
		 VALUES(?,?,?,?)`, r.UserID, r.Date, r.Moves, r.ElapsedSeconds,
	)
	return err
}

type LBRow struct {
	UserID         string `json:"userId"`
	Username       string `json:"username"`
	Moves          int    `json:"moves"`
	ElapsedSeconds int    `json:"elapsedSeconds"`
}

// Leaderboard returns the fastest results for date, ties broken by fewer
// moves and then by who finished first. limit <= 0 means 20.
func (s *Store) Leaderboard(ctx context.Context, date string, limit int) ([]LBRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT d.user_id, COALESCE(u.username, 'guest'), d.moves, d.elapsed_seconds
		 FROM daily_results d
		 LEFT JOIN users u ON u.id = d.user_id
		 WHERE d.date=?
		 ORDER BY d.elapsed_seconds ASC, d.moves ASC, d.created_at ASC
		 LIMIT ?`, date, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]LBRow, 0, limit)
	for rows.Next() {
		var r LBRow
		if err := rows.Scan(&r.UserID, &r.Username, &r.Moves, &r.ElapsedSeconds); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
