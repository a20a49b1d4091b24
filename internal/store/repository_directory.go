package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

func (s *Store) ListDirectory(ctx context.Context) ([]DirectoryPlayer, error) {
	rows, err := s.Pool.Query(ctx, `SELECT id, first_name, last_name, level, membership_expiry FROM directory ORDER BY last_name, first_name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []DirectoryPlayer{}
	for rows.Next() {
		var (
			p      DirectoryPlayer
			expiry pgtype.Timestamptz
		)
		if err := rows.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Level, &expiry); err != nil {
			return nil, err
		}
		p.MembershipExpiry = timePtrVal(expiry)
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpsertDirectory seeds or refreshes directory rows keyed by id.
func (s *Store) UpsertDirectory(ctx context.Context, players []DirectoryPlayer) error {
	b := &pgx.Batch{}
	for _, p := range players {
		if p.ID == "" {
			p.ID = NewID()
		}
		b.Queue(`
INSERT INTO directory (id, first_name, last_name, level, membership_expiry) VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (id) DO UPDATE SET first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name,
  level = EXCLUDED.level, membership_expiry = EXCLUDED.membership_expiry`,
			p.ID, p.FirstName, p.LastName, p.Level, timeParam(p.MembershipExpiry))
	}
	if err := s.sendBatch(ctx, b); err != nil {
		return fmt.Errorf("upsert directory: %w", err)
	}
	return nil
}
