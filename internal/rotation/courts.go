package rotation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"court-rotation/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

func placeholder() Player {
	return Player{ID: uuid.NewString(), Placeholder: true}
}

func placeholders() []Player {
	out := make([]Player, MaxPlayer)
	for i := range out {
		out[i] = placeholder()
	}
	return out
}

func padSlots(players []Player) []Player {
	for len(players) < MaxPlayer {
		players = append(players, placeholder())
	}
	return players
}

// sortByLastActive orders longest-idle first; never-seen players go last.
// Ties keep the incoming order, so callers pass slots in seating order.
func sortByLastActive(players []Player) {
	sort.SliceStable(players, func(i, j int) bool {
		a, b := players[i].LastActive, players[j].LastActive
		switch {
		case a.IsZero():
			return false
		case b.IsZero():
			return true
		}
		return a.Before(b)
	})
}

// sortBySeating orders open records by created_at, then id. The captain
// stagger makes this the order players were assigned in.
func sortBySeating(recs []store.IntervalRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.Before(recs[j].CreatedAt)
		}
		return recs[i].ID < recs[j].ID
	})
}

func (e *Engine) playerLocked(id string) Player {
	last := e.lastActiveLocked(id)
	entry, hasEntry := e.rosterEntryLocked(id)
	p, ok := e.directory[id]
	if !ok {
		return Player{
			ID:         id,
			FirstName:  "Unknown",
			LastName:   "Player",
			FullName:   "Unknown Player",
			Level:      unknownPlayerLevel,
			Paused:     true,
			LastActive: last,
		}
	}
	return Player{
		ID:         p.ID,
		FirstName:  p.FirstName,
		LastName:   p.LastName,
		FullName:   p.FirstName + " " + p.LastName,
		Level:      p.Level,
		Paused:     hasEntry && entry.Paused,
		Member:     p.CurrentMember(e.now()),
		LastActive: last,
	}
}

func (e *Engine) courtInSelectModeLocked() (int, bool) {
	for _, n := range e.courtNumbersLocked() {
		if e.courts[n].State == CourtSelectingPlayers {
			return n, true
		}
	}
	return 0, false
}

// CourtInSelectMode returns the lowest-numbered court currently selecting
// players.
func (e *Engine) CourtInSelectMode() (int, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.courtInSelectModeLocked()
}

// SetCourtState tags a court. While any court is selecting players or
// confirming completion the periodic court refresh is held off.
func (e *Engine) SetCourtState(court int, state CourtState) error {
	if _, ok := ParseCourtState(string(state)); !ok {
		return fmt.Errorf("%q: %w", state, ErrInvalidCourtState)
	}
	if err := e.ensureOpen(); err != nil {
		return err
	}
	e.mu.Lock()
	c, ok := e.courts[court]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("court %d: %w", court, ErrCourtNotInitialized)
	}
	c.State = state
	transition := false
	for _, other := range e.courts {
		if other.State.inTransition() {
			transition = true
			break
		}
	}
	if transition {
		e.paused[RefreshCourts] = true
	} else {
		delete(e.paused, RefreshCourts)
	}
	e.mu.Unlock()

	e.emit(EventCourtStateChanged, map[string]any{"court": court, "state": state})
	e.scheduleWaitList()
	return nil
}

// Assign opens one interval record per player on court; the first player is
// captain. When a court is selecting players the assignment lands there
// instead. Assigning to an occupied court is a no-op.
func (e *Engine) Assign(ctx context.Context, court int, playerIDs []string) error {
	if len(playerIDs) > MaxPlayer {
		return fmt.Errorf("%d players: %w", len(playerIDs), ErrTooManyPlayers)
	}
	seen := map[string]bool{}
	for _, id := range playerIDs {
		if seen[id] {
			return fmt.Errorf("player %s: %w", id, ErrDuplicatePlayer)
		}
		seen[id] = true
	}
	e.syncMu.Lock()
	defer e.syncMu.Unlock()
	if err := e.ensureOpen(); err != nil {
		return err
	}
	return e.assignLocked(ctx, court, playerIDs)
}

func (e *Engine) assignLocked(ctx context.Context, court int, playerIDs []string) error {
	if len(playerIDs) == 0 {
		return nil
	}
	e.mu.RLock()
	target := court
	if n, ok := e.courtInSelectModeLocked(); ok {
		target = n
	}
	_, known := e.courts[target]
	active := e.active[target]
	existing := openRecords(e.occupancy, target)
	onCourt := openPlayerCourts(e.occupancy)
	e.mu.RUnlock()

	if !known {
		return fmt.Errorf("court %d: %w", target, ErrCourtNotInitialized)
	}
	if !active {
		return fmt.Errorf("court %d: %w", target, ErrCourtInactive)
	}
	if len(existing) > 0 {
		log.Info().Str("session_id", e.sessionID).Int("court", target).Int("open_records", len(existing)).Msg("court occupied, assign skipped")
		return nil
	}
	for _, id := range playerIDs {
		if c, ok := onCourt[id]; ok {
			return fmt.Errorf("player %s on court %d: %w", id, c, ErrPlayerAlreadyOnCourt)
		}
	}

	if err := e.commitQueueLocked(ctx, playerIDs, false); err != nil {
		return err
	}

	now := e.now()
	recs := make([]store.IntervalRecord, 0, len(playerIDs))
	for i, id := range playerIDs {
		created := now.Add(time.Duration(i) * captainStagger)
		recs = append(recs, store.IntervalRecord{
			ID:        store.NewIDAt(created),
			SessionID: e.sessionID,
			Court:     target,
			PlayerID:  id,
			IsCaptain: i == 0,
			CreatedAt: created,
		})
	}
	if err := e.st.InsertOccupancy(ctx, recs); err != nil {
		return fmt.Errorf("assign court %d: %w", target, err)
	}
	syncErr := e.resyncOccupancyLocked(ctx)
	e.emit(EventAddedPlayersToCourt, map[string]any{"court": target, "player_ids": playerIDs})

	e.mu.Lock()
	if c, ok := e.courts[target]; ok && syncErr == nil && e.active[target] {
		slots := make([]Player, 0, MaxPlayer)
		for i, id := range playerIDs {
			p := e.playerLocked(id)
			p.Captain = i == 0
			slots = append(slots, p)
		}
		c.Players = padSlots(slots)
	}
	e.dropFromWaitListLocked(playerIDs)
	e.mu.Unlock()
	e.scheduleWaitList()
	log.Info().Str("session_id", e.sessionID).Int("court", target).Strs("player_ids", playerIDs).Msg("players assigned")
	return syncErr
}

// Unassign closes every open record on court. Repeating it is a no-op.
func (e *Engine) Unassign(ctx context.Context, court int) error {
	e.syncMu.Lock()
	defer e.syncMu.Unlock()
	if err := e.ensureOpen(); err != nil {
		return err
	}
	e.mu.RLock()
	_, known := e.courts[court]
	e.mu.RUnlock()
	if !known {
		return fmt.Errorf("court %d: %w", court, ErrCourtNotInitialized)
	}
	return e.unassignLocked(ctx, court)
}

func (e *Engine) unassignLocked(ctx context.Context, court int) error {
	e.mu.RLock()
	open := openRecords(e.occupancy, court)
	e.mu.RUnlock()
	if len(open) == 0 {
		return nil
	}
	ids := make([]string, len(open))
	for i, r := range open {
		ids[i] = r.ID
	}
	if err := e.st.CloseOccupancy(ctx, ids, e.now()); err != nil {
		return fmt.Errorf("unassign court %d: %w", court, err)
	}
	e.mu.Lock()
	if c, ok := e.courts[court]; ok {
		c.Players = placeholders()
	}
	e.mu.Unlock()
	err := e.resyncOccupancyLocked(ctx)
	e.emit(EventRemovedPlayersFromCourt, map[string]any{"court": court})
	log.Info().Str("session_id", e.sessionID).Int("court", court).Int("closed", len(ids)).Msg("court unassigned")
	return err
}

// Swap moves outID's open record on court to inID, keeping the record's id
// and start time.
func (e *Engine) Swap(ctx context.Context, court int, outID, inID string) error {
	e.syncMu.Lock()
	defer e.syncMu.Unlock()
	if err := e.ensureOpen(); err != nil {
		return err
	}

	e.mu.RLock()
	_, known := e.courts[court]
	_, inKnown := e.directory[inID]
	var rec *store.IntervalRecord
	for _, r := range openRecords(e.occupancy, court) {
		if r.PlayerID == outID {
			r := r
			rec = &r
			break
		}
	}
	inCourt, inPlaying := openPlayerCourts(e.occupancy)[inID]
	e.mu.RUnlock()

	switch {
	case !known:
		return fmt.Errorf("court %d: %w", court, ErrCourtNotInitialized)
	case rec == nil:
		return fmt.Errorf("player %s on court %d: %w", outID, court, ErrPlayerNotOnCourt)
	case outID == inID:
		return nil
	case !inKnown:
		return fmt.Errorf("player %s: %w", inID, ErrUnknownPlayer)
	case inPlaying:
		return fmt.Errorf("player %s on court %d: %w", inID, inCourt, ErrPlayerAlreadyOnCourt)
	}

	if err := e.commitQueueLocked(ctx, []string{inID}, false); err != nil {
		return err
	}
	if err := e.st.ReassignOccupancy(ctx, rec.ID, inID); err != nil {
		return fmt.Errorf("swap on court %d: %w", court, err)
	}
	e.mu.Lock()
	if c, ok := e.courts[court]; ok {
		for i, p := range c.Players {
			if p.ID == outID {
				np := e.playerLocked(inID)
				np.Captain = rec.IsCaptain
				c.Players[i] = np
				break
			}
		}
	}
	e.dropFromWaitListLocked([]string{inID})
	e.mu.Unlock()
	err := e.resyncOccupancyLocked(ctx)
	e.emit(EventPlayersSwapped, map[string]any{"court": court, "player_out": outID, "player_in": inID})
	return err
}

// recomputeRostersLocked rederives every court's slots from the occupancy
// snapshot. Over-capacity courts are force-unassigned and reported.
func (e *Engine) recomputeRostersLocked(ctx context.Context) error {
	var violations []*InvariantViolation
	e.mu.Lock()
	for _, n := range e.courtNumbersLocked() {
		c := e.courts[n]
		open := openRecords(e.occupancy, n)
		switch {
		case !e.active[n] || len(open) == 0:
			c.Players = placeholders()
		case len(open) > MaxPlayer:
			c.Players = placeholders()
			violations = append(violations, &InvariantViolation{Court: n, Open: len(open)})
		default:
			sortBySeating(open)
			slots := make([]Player, 0, MaxPlayer)
			for _, r := range open {
				p := e.playerLocked(r.PlayerID)
				p.Captain = r.IsCaptain
				slots = append(slots, p)
			}
			slots = padSlots(slots)
			sortByLastActive(slots)
			c.Players = slots
		}
	}
	e.mu.Unlock()

	var errs []error
	for _, v := range violations {
		log.Error().Str("session_id", e.sessionID).Int("court", v.Court).Int("open_records", v.Open).Msg("court over capacity, force-unassigning")
		if err := e.unassignLocked(ctx, v.Court); err != nil {
			var inv *InvariantViolation
			if !errors.As(err, &inv) {
				errs = append(errs, err)
			}
		}
		errs = append(errs, v)
	}
	return errors.Join(errs...)
}
