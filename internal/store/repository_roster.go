package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

const rosterColumns = `id, session_id, player_id, attended, paused, queued_at, created_at, updated_at`

func scanRoster(rows pgx.Rows) ([]RosterEntry, error) {
	defer rows.Close()
	out := []RosterEntry{}
	for rows.Next() {
		var (
			e       RosterEntry
			queued  pgtype.Timestamptz
			created pgtype.Timestamptz
			updated pgtype.Timestamptz
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &e.PlayerID, &e.Attended, &e.Paused, &queued, &created, &updated); err != nil {
			return nil, err
		}
		e.QueuedAt = timePtrVal(queued)
		e.CreatedAt = created.Time
		e.UpdatedAt = timePtrVal(updated)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) ListRoster(ctx context.Context, sessionID string) ([]RosterEntry, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+rosterColumns+` FROM session_roster WHERE session_id = $1 ORDER BY created_at, id`, sessionID)
	if err != nil {
		return nil, err
	}
	return scanRoster(rows)
}

func (s *Store) FindRosterEntries(ctx context.Context, sessionID, playerID string, limit int) ([]RosterEntry, error) {
	if limit <= 0 {
		limit = 1
	}
	rows, err := s.Pool.Query(ctx, `SELECT `+rosterColumns+` FROM session_roster WHERE session_id = $1 AND player_id = $2 ORDER BY created_at, id LIMIT $3`,
		sessionID, playerID, limit)
	if err != nil {
		return nil, err
	}
	return scanRoster(rows)
}

func (s *Store) InsertRoster(ctx context.Context, entries []RosterEntry) error {
	b := &pgx.Batch{}
	for _, e := range entries {
		if e.ID == "" {
			e.ID = NewID()
		}
		b.Queue(`INSERT INTO session_roster (id, session_id, player_id, attended, paused, queued_at, created_at) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			e.ID, e.SessionID, e.PlayerID, e.Attended, e.Paused, timeParam(e.QueuedAt), timestamptzParam(e.CreatedAt))
	}
	if err := s.sendBatch(ctx, b); err != nil {
		return fmt.Errorf("insert roster: %w", err)
	}
	return nil
}

func (s *Store) PatchRosterAttendance(ctx context.Context, patches []AttendancePatch, at time.Time) error {
	b := &pgx.Batch{}
	for _, p := range patches {
		b.Queue(`UPDATE session_roster SET attended = $2, paused = FALSE, updated_at = $3 WHERE id = $1`,
			p.ID, p.Attended, timestamptzParam(at)).Exec(requireRow)
	}
	if err := s.sendBatch(ctx, b); err != nil {
		return fmt.Errorf("patch roster attendance: %w", err)
	}
	return nil
}

// PatchRosterQueue applies the patches in slice order.
func (s *Store) PatchRosterQueue(ctx context.Context, patches []QueuePatch, at time.Time) error {
	b := &pgx.Batch{}
	for _, p := range patches {
		b.Queue(`UPDATE session_roster SET queued_at = $2, updated_at = $3 WHERE id = $1`,
			p.ID, timeParam(p.QueuedAt), timestamptzParam(at)).Exec(requireRow)
	}
	if err := s.sendBatch(ctx, b); err != nil {
		return fmt.Errorf("patch roster queue: %w", err)
	}
	return nil
}

func (s *Store) PatchRosterPaused(ctx context.Context, id string, paused bool, at time.Time) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE session_roster SET paused = $2, updated_at = $3 WHERE id = $1`, id, paused, timestamptzParam(at))
	if err != nil {
		return fmt.Errorf("patch roster paused: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func requireRow(ct pgconn.CommandTag) error {
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
