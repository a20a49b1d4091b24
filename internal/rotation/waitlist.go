package rotation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"court-rotation/internal/store"

	"github.com/rs/zerolog/log"
)

// scheduleWaitList coalesces recompute requests. Callers must not hold e.mu.
func (e *Engine) scheduleWaitList() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.waitScheduled {
		return
	}
	e.waitScheduled = true
	e.waitTimer = time.AfterFunc(e.opts.WaitListDebounce, e.runWaitList)
}

func (e *Engine) runWaitList() {
	e.mu.Lock()
	e.waitScheduled = false
	if e.closed {
		e.mu.Unlock()
		return
	}
	changed := e.recomputeWaitListLocked()
	e.mu.Unlock()
	if changed {
		e.emit(EventViewsChanged, nil)
	}
}

// recomputeWaitListLocked rebuilds the wait list from the roster snapshot and
// regroups queued players. Published groups are replaced only when their
// membership actually changed.
func (e *Engine) recomputeWaitListLocked() bool {
	if len(e.directory) == 0 {
		return false
	}
	onCourt := openPlayerCourts(e.occupancy)
	// slots run ahead of the snapshot between a write and its resync
	for n, c := range e.courts {
		for _, p := range c.Players {
			if !p.Placeholder {
				onCourt[p.ID] = n
			}
		}
	}
	seen := map[string]bool{}
	list := make([]WaitListPlayer, 0, len(e.roster))
	for _, entry := range e.roster {
		if !entry.Attended || seen[entry.PlayerID] {
			continue
		}
		if _, ok := e.directory[entry.PlayerID]; !ok {
			continue
		}
		if _, playing := onCourt[entry.PlayerID]; playing {
			continue
		}
		seen[entry.PlayerID] = true
		p := e.playerLocked(entry.PlayerID)
		p.Paused = entry.Paused
		list = append(list, WaitListPlayer{Player: p, QueuedAt: copyTime(entry.QueuedAt)})
	}

	changed := !sameWaitList(e.waitList, list)
	e.waitList = list
	if groups := groupQueued(list); !sameGroups(e.groups, groups) {
		e.groups = groups
		changed = true
	}
	return changed
}

// groupQueued chunks queued players by queue time into full groups. A
// trailing partial group is held back until it fills.
func groupQueued(list []WaitListPlayer) []QueuedGroup {
	var queued []WaitListPlayer
	for _, p := range list {
		if p.QueuedAt != nil {
			queued = append(queued, p)
		}
	}
	sort.SliceStable(queued, func(i, j int) bool { return queued[i].QueuedAt.Before(*queued[j].QueuedAt) })
	groups := make([]QueuedGroup, 0, len(queued)/MaxPlayer)
	for i := 0; i+MaxPlayer <= len(queued); i += MaxPlayer {
		groups = append(groups, append(QueuedGroup(nil), queued[i:i+MaxPlayer]...))
	}
	return groups
}

func sameGroups(a, b []QueuedGroup) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if len(a[i]) != len(b[i]) {
			return false
		}
		for j := range a[i] {
			if a[i][j].ID != b[i][j].ID {
				return false
			}
		}
	}
	return true
}

func sameWaitList(a, b []WaitListPlayer) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Paused != b[i].Paused || !sameTime(a[i].QueuedAt, b[i].QueuedAt) {
			return false
		}
	}
	return true
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// candidates ranks unqueued, unpaused waiting players by how long they have
// been off court.
func candidates(list []WaitListPlayer, limit int) []WaitListPlayer {
	out := make([]WaitListPlayer, 0, len(list))
	for _, p := range list {
		if !p.Paused && p.QueuedAt == nil {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].LastActive, out[j].LastActive
		switch {
		case a.IsZero():
			return false
		case b.IsZero():
			return true
		}
		return a.Before(b)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (e *Engine) dropFromWaitListLocked(ids []string) {
	drop := map[string]bool{}
	for _, id := range ids {
		drop[id] = true
	}
	kept := e.waitList[:0:0]
	for _, p := range e.waitList {
		if !drop[p.ID] {
			kept = append(kept, p)
		}
	}
	e.waitList = kept
}

// CommitQueue stamps queued_at on the attended roster entries of playerIDs,
// or clears it when enqueue is false. Groups update optimistically and are
// restored if the write fails.
func (e *Engine) CommitQueue(ctx context.Context, playerIDs []string, enqueue bool) error {
	e.syncMu.Lock()
	defer e.syncMu.Unlock()
	if err := e.ensureOpen(); err != nil {
		return err
	}
	return e.commitQueueLocked(ctx, playerIDs, enqueue)
}

func (e *Engine) commitQueueLocked(ctx context.Context, playerIDs []string, enqueue bool) error {
	if len(playerIDs) == 0 {
		return nil
	}
	now := e.now()
	want := map[string]bool{}
	for _, id := range playerIDs {
		want[id] = true
	}

	e.mu.Lock()
	prev := e.groups
	if enqueue {
		group := make(QueuedGroup, 0, len(playerIDs))
		for _, id := range playerIDs {
			wp := WaitListPlayer{Player: e.playerLocked(id)}
			for _, w := range e.waitList {
				if w.ID == id {
					wp = w
					break
				}
			}
			t := now
			wp.QueuedAt = &t
			group = append(group, wp)
		}
		e.groups = append(copyGroups(prev), group)
	} else {
		for i, g := range prev {
			if groupWithin(g, want) {
				next := copyGroups(prev)
				e.groups = append(next[:i], next[i+1:]...)
				break
			}
		}
	}
	var entries []store.RosterEntry
	for _, entry := range e.roster {
		if want[entry.PlayerID] && entry.Attended {
			entries = append(entries, entry)
		}
	}
	e.mu.Unlock()

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Touched().Before(entries[j].Touched()) })
	patches := make([]store.QueuePatch, 0, len(entries))
	for i, entry := range entries {
		patch := store.QueuePatch{ID: entry.ID}
		if enqueue {
			t := now.Add(time.Duration(i) * queueStagger)
			patch.QueuedAt = &t
		}
		patches = append(patches, patch)
	}
	if len(patches) > 0 {
		if err := e.st.PatchRosterQueue(ctx, patches, now); err != nil {
			e.mu.Lock()
			e.groups = prev
			e.mu.Unlock()
			return fmt.Errorf("commit queue: %w", err)
		}
	}
	err := e.resyncRosterLocked(ctx)
	e.emit(EventPlayerQueueStateChanged, map[string]any{"player_ids": playerIDs, "queued": enqueue})
	log.Debug().Str("session_id", e.sessionID).Strs("player_ids", playerIDs).Bool("queued", enqueue).Msg("queue committed")
	return err
}

func groupWithin(g QueuedGroup, ids map[string]bool) bool {
	for _, p := range g {
		if !ids[p.ID] {
			return false
		}
	}
	return len(g) > 0
}
