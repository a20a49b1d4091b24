package rotation

import (
	"sort"
	"time"

	"court-rotation/internal/store"
)

func openRecords(log []store.IntervalRecord, court int) []store.IntervalRecord {
	var out []store.IntervalRecord
	for _, r := range log {
		if r.Court == court && r.Open() {
			out = append(out, r)
		}
	}
	return out
}

// openPlayerCourts maps every player holding an open record to its court.
func openPlayerCourts(log []store.IntervalRecord) map[string]int {
	out := map[string]int{}
	for _, r := range log {
		if r.Open() {
			out[r.PlayerID] = r.Court
		}
	}
	return out
}

// OpenRecords lists the open interval records of one court.
func (e *Engine) OpenRecords(court int) []store.IntervalRecord {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return openRecords(e.occupancy, court)
}

// ClosedRecords lists a player's closed records, most recently closed first.
func (e *Engine) ClosedRecords(playerID string) []store.IntervalRecord {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []store.IntervalRecord
	for _, r := range e.occupancy {
		if r.PlayerID == playerID && !r.Open() {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ClosedAt.After(*out[j].ClosedAt) })
	return out
}

// LastActive is when the player last came off court, falling back to the
// last write of their roster entry. Zero means never.
func (e *Engine) LastActive(playerID string) time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastActiveLocked(playerID)
}

func (e *Engine) lastActiveLocked(playerID string) time.Time {
	var latest time.Time
	for _, r := range e.occupancy {
		if r.PlayerID == playerID && r.ClosedAt != nil && r.ClosedAt.After(latest) {
			latest = *r.ClosedAt
		}
	}
	if !latest.IsZero() {
		return latest
	}
	if entry, ok := e.rosterEntryLocked(playerID); ok {
		return entry.Touched()
	}
	return time.Time{}
}

func (e *Engine) rosterEntryLocked(playerID string) (store.RosterEntry, bool) {
	for _, entry := range e.roster {
		if entry.PlayerID == playerID {
			return entry, true
		}
	}
	return store.RosterEntry{}, false
}
