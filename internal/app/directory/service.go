package directory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"court-rotation/internal/rotation"
	"court-rotation/internal/store"
)

type Store interface {
	ListDirectory(ctx context.Context) ([]store.DirectoryPlayer, error)
	UpsertDirectory(ctx context.Context, players []store.DirectoryPlayer) error
}

// Service maintains the player directory the rotation engine reads from.
type Service struct {
	store Store
	now   func() time.Time
}

func NewService(st Store) *Service {
	return &Service{store: st, now: time.Now}
}

func (s *Service) Players(ctx context.Context) (*PlayersResponse, error) {
	items, err := s.store.ListDirectory(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]PlayerItem, 0, len(items))
	for _, it := range items {
		out = append(out, PlayerItem{
			ID:        it.ID,
			FirstName: it.FirstName,
			LastName:  it.LastName,
			FullName:  it.FirstName + " " + it.LastName,
			Level:     it.Level,
			Member:    it.CurrentMember(now),
		})
	}
	return &PlayersResponse{Items: out}, nil
}

func (s *Service) Upsert(ctx context.Context, in []PlayerInput) (*UpsertResponse, error) {
	if len(in) == 0 {
		return nil, ErrInvalidRequest
	}
	players := make([]store.DirectoryPlayer, 0, len(in))
	for _, p := range in {
		if strings.TrimSpace(p.ID) == "" || strings.TrimSpace(p.FirstName) == "" {
			return nil, ErrInvalidRequest
		}
		if err := validateLevel(p.Level); err != nil {
			return nil, fmt.Errorf("player %s: %w", p.ID, err)
		}
		players = append(players, store.DirectoryPlayer{
			ID:               strings.TrimSpace(p.ID),
			FirstName:        strings.TrimSpace(p.FirstName),
			LastName:         strings.TrimSpace(p.LastName),
			Level:            p.Level,
			MembershipExpiry: p.MembershipExpiry,
		})
	}
	if err := s.store.UpsertDirectory(ctx, players); err != nil {
		return nil, err
	}
	return &UpsertResponse{Upserted: len(players)}, nil
}

func validateLevel(level int) error {
	if level < rotation.MinLevel || level > rotation.MaxLevel {
		return ErrInvalidLevel
	}
	return nil
}
