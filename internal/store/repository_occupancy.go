package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// ListOccupancy returns every interval of the session, open and closed,
// newest first. Closed intervals are kept for last-played lookups.
func (s *Store) ListOccupancy(ctx context.Context, sessionID string) ([]IntervalRecord, error) {
	rows, err := s.Pool.Query(ctx, `
SELECT id, session_id, court, player_id, is_captain, created_at, closed_at
FROM occupancy_log
WHERE session_id = $1
ORDER BY created_at DESC, id DESC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []IntervalRecord{}
	for rows.Next() {
		var (
			r       IntervalRecord
			created pgtype.Timestamptz
			closed  pgtype.Timestamptz
		)
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Court, &r.PlayerID, &r.IsCaptain, &created, &closed); err != nil {
			return nil, err
		}
		r.CreatedAt = created.Time
		r.ClosedAt = timePtrVal(closed)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) InsertOccupancy(ctx context.Context, recs []IntervalRecord) error {
	b := &pgx.Batch{}
	for _, r := range recs {
		if r.ID == "" {
			r.ID = NewIDAt(r.CreatedAt)
		}
		b.Queue(`INSERT INTO occupancy_log (id, session_id, court, player_id, is_captain, created_at, closed_at) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			r.ID, r.SessionID, r.Court, r.PlayerID, r.IsCaptain, timestamptzParam(r.CreatedAt), timeParam(r.ClosedAt))
	}
	if err := s.sendBatch(ctx, b); err != nil {
		return fmt.Errorf("insert occupancy: %w", err)
	}
	return nil
}

// CloseOccupancy stamps closed_at on the given open records. Records that
// were already closed by another device are left untouched.
func (s *Store) CloseOccupancy(ctx context.Context, ids []string, at time.Time) error {
	b := &pgx.Batch{}
	for _, id := range ids {
		b.Queue(`UPDATE occupancy_log SET closed_at = $2 WHERE id = $1 AND closed_at IS NULL`, id, timestamptzParam(at))
	}
	if err := s.sendBatch(ctx, b); err != nil {
		return fmt.Errorf("close occupancy: %w", err)
	}
	return nil
}

// ReassignOccupancy moves an open record to another player without closing
// it, so the interval keeps its id and start time.
func (s *Store) ReassignOccupancy(ctx context.Context, id, playerID string) error {
	b := &pgx.Batch{}
	b.Queue(`UPDATE occupancy_log SET player_id = $2, closed_at = NULL WHERE id = $1`, id, playerID).
		Exec(func(ct pgconn.CommandTag) error {
			if ct.RowsAffected() == 0 {
				return ErrNotFound
			}
			return nil
		})
	if err := s.sendBatch(ctx, b); err != nil {
		return fmt.Errorf("reassign occupancy %s: %w", id, err)
	}
	return nil
}
