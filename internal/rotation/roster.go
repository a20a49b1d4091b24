package rotation

import (
	"context"
	"errors"
	"fmt"

	"court-rotation/internal/store"
)

// CommitAttendance patches existing roster entries and inserts entries for
// players seen for the first time, each as a single batch.
func (e *Engine) CommitAttendance(ctx context.Context, updates []AttendanceUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	e.syncMu.Lock()
	defer e.syncMu.Unlock()
	if err := e.ensureOpen(); err != nil {
		return err
	}

	now := e.now()
	want := map[string]bool{}
	var ordered []AttendanceUpdate
	for _, u := range updates {
		if _, dup := want[u.PlayerID]; dup || u.PlayerID == "" {
			continue
		}
		want[u.PlayerID] = u.Attending
		ordered = append(ordered, u)
	}

	e.mu.RLock()
	existing := map[string]bool{}
	var patches []store.AttendancePatch
	for _, entry := range e.roster {
		if attending, ok := want[entry.PlayerID]; ok {
			patches = append(patches, store.AttendancePatch{ID: entry.ID, Attended: attending})
			existing[entry.PlayerID] = true
		}
	}
	e.mu.RUnlock()

	var inserts []store.RosterEntry
	for _, u := range ordered {
		if existing[u.PlayerID] {
			continue
		}
		inserts = append(inserts, store.RosterEntry{
			ID:        store.NewIDAt(now),
			SessionID: e.sessionID,
			PlayerID:  u.PlayerID,
			Attended:  u.Attending,
			CreatedAt: now,
		})
	}

	if len(patches) > 0 {
		if err := e.st.PatchRosterAttendance(ctx, patches, now); err != nil {
			return fmt.Errorf("patch attendance: %w", err)
		}
	}
	if len(inserts) > 0 {
		if err := e.st.InsertRoster(ctx, inserts); err != nil {
			err = fmt.Errorf("insert roster: %w", err)
			if len(patches) > 0 {
				return errors.Join(err, e.resyncRosterLocked(ctx))
			}
			return err
		}
	}
	err := e.resyncRosterLocked(ctx)
	e.emit(EventPlayerAttendanceChanged, map[string]any{"updates": ordered})
	return err
}

// TogglePaused flips a player's pause flag. The local flag flips at once and
// is reverted if the write fails; the event goes out only after the roster
// has been reloaded.
func (e *Engine) TogglePaused(ctx context.Context, playerID string) (bool, error) {
	e.syncMu.Lock()
	defer e.syncMu.Unlock()
	if err := e.ensureOpen(); err != nil {
		return false, err
	}

	e.mu.Lock()
	current := false
	if entry, ok := e.rosterEntryLocked(playerID); ok {
		current = entry.Paused
	}
	for _, w := range e.waitList {
		if w.ID == playerID {
			current = w.Paused
			break
		}
	}
	next := !current
	e.setPausedLocked(playerID, next)
	e.mu.Unlock()

	revert := func() {
		e.mu.Lock()
		e.setPausedLocked(playerID, current)
		e.mu.Unlock()
	}
	found, err := e.st.FindRosterEntries(ctx, e.sessionID, playerID, 1)
	if err != nil {
		revert()
		return current, fmt.Errorf("find roster entry: %w", err)
	}
	if len(found) == 0 {
		revert()
		return current, fmt.Errorf("player %s: %w", playerID, store.ErrNotFound)
	}
	if err := e.st.PatchRosterPaused(ctx, found[0].ID, next, e.now()); err != nil {
		revert()
		return current, fmt.Errorf("patch paused: %w", err)
	}
	if err := e.resyncRosterLocked(ctx); err != nil {
		return next, err
	}
	e.emit(EventPlayerPauseStateChanged, map[string]any{"player_id": playerID, "paused": next})
	return next, nil
}

func (e *Engine) setPausedLocked(playerID string, paused bool) {
	for i := range e.waitList {
		if e.waitList[i].ID == playerID {
			e.waitList[i].Paused = paused
		}
	}
	for _, c := range e.courts {
		for i := range c.Players {
			if c.Players[i].ID == playerID {
				c.Players[i].Paused = paused
			}
		}
	}
}
