package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// CreateSession inserts a session together with its court windows and the
// allocation rows linking them.
func (s *Store) CreateSession(ctx context.Context, sess Session, windows []CourtWindow) (string, error) {
	if sess.ID == "" {
		sess.ID = NewID()
	}
	b := &pgx.Batch{}
	b.Queue(`INSERT INTO sessions (id, session_date, start_datetime, end_datetime) VALUES ($1,$2,$3,$4)`,
		sess.ID, pgtype.Date{Time: sess.SessionDate, Valid: true}, timeParam(sess.StartDatetime), timeParam(sess.EndDatetime))
	for _, w := range windows {
		if w.ID == "" {
			w.ID = NewID()
		}
		b.Queue(`INSERT INTO session_court_windows (id, start_time, end_time, active_courts) VALUES ($1,$2,$3,$4)`,
			w.ID, w.StartTime, w.EndTime, w.ActiveCourts)
		b.Queue(`INSERT INTO session_court_allocation (id, session_id, window_id) VALUES ($1,$2,$3)`,
			NewID(), sess.ID, w.ID)
	}
	if err := s.sendBatch(ctx, b); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return sess.ID, nil
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	row := s.Pool.QueryRow(ctx, `
SELECT s.id, s.session_date, s.start_datetime, s.end_datetime, s.created_at,
       COALESCE(array_agg(a.window_id ORDER BY a.id) FILTER (WHERE a.window_id IS NOT NULL), '{}')
FROM sessions s
LEFT JOIN session_court_allocation a ON a.session_id = s.id
WHERE s.id = $1
GROUP BY s.id`, sessionID)
	var (
		out      Session
		date     pgtype.Date
		start    pgtype.Timestamptz
		end      pgtype.Timestamptz
		created  pgtype.Timestamptz
		windowID []string
	)
	if err := row.Scan(&out.ID, &date, &start, &end, &created, &windowID); err != nil {
		return nil, mapNotFound(err)
	}
	out.SessionDate = datePtrVal(date)
	out.StartDatetime = timePtrVal(start)
	out.EndDatetime = timePtrVal(end)
	out.CreatedAt = created.Time
	out.CourtAllocation = windowID
	return &out, nil
}

func (s *Store) ListSessionWindows(ctx context.Context, sessionID string) ([]CourtWindow, error) {
	rows, err := s.Pool.Query(ctx, `
SELECT w.id, w.start_time, w.end_time, w.active_courts
FROM session_court_windows w
JOIN session_court_allocation a ON a.window_id = w.id
WHERE a.session_id = $1
ORDER BY a.id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []CourtWindow{}
	for rows.Next() {
		var w CourtWindow
		if err := rows.Scan(&w.ID, &w.StartTime, &w.EndTime, &w.ActiveCourts); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}
