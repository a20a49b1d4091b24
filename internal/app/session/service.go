package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"court-rotation/internal/rotation"
	"court-rotation/internal/store"
)

// Service holds the engine of the currently selected session. Selecting a
// different session tears the previous engine down.
type Service struct {
	st   rotation.RecordStore
	opts rotation.Options

	mu      sync.Mutex
	current *rotation.Engine
}

func NewService(st rotation.RecordStore, opts rotation.Options) *Service {
	return &Service{st: st, opts: opts}
}

// Select makes sessionID current. Reselecting the current session reloads
// its layout and snapshots.
func (s *Service) Select(ctx context.Context, sessionID string) (*rotation.Engine, error) {
	if sessionID == "" {
		return nil, ErrInvalidRequest
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil && s.current.SessionID() == sessionID {
		if err := s.current.Reload(ctx); err != nil {
			return s.current, err
		}
		return s.current, nil
	}
	eng, err := rotation.Open(ctx, s.st, sessionID, s.opts)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", sessionID, ErrSessionNotFound)
		}
		return nil, err
	}
	if s.current != nil {
		s.current.Close()
	}
	s.current = eng
	return eng, nil
}

// Engine returns the engine for sessionID if it is the selected session.
func (s *Service) Engine(sessionID string) (*rotation.Engine, error) {
	if sessionID == "" {
		return nil, ErrInvalidRequest
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || s.current.SessionID() != sessionID {
		return nil, rotation.ErrSessionNotSelected
	}
	return s.current, nil
}

func (s *Service) Current() (*rotation.Engine, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.current != nil
}

func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		s.current.Close()
		s.current = nil
	}
}
