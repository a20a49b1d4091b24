package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"court-rotation/internal/store"
)

// MemStore is an in-memory stand-in for *store.Store with per-operation
// failure injection and call counting.
type MemStore struct {
	mu        sync.Mutex
	sessions  map[string]store.Session
	windows   map[string][]store.CourtWindow
	occupancy []store.IntervalRecord
	roster    []store.RosterEntry
	directory map[string]store.DirectoryPlayer

	calls map[string]int
	fail  map[string]error
	// OnCall runs after every operation, with the store unlocked.
	OnCall func(op string)
}

func NewMemStore() *MemStore {
	return &MemStore{
		sessions:  map[string]store.Session{},
		windows:   map[string][]store.CourtWindow{},
		directory: map[string]store.DirectoryPlayer{},
		calls:     map[string]int{},
		fail:      map[string]error{},
	}
}

// FailNext makes the next call to op return err.
func (m *MemStore) FailNext(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[op] = err
}

func (m *MemStore) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *MemStore) enter(op string) error {
	m.mu.Lock()
	m.calls[op]++
	err := m.fail[op]
	delete(m.fail, op)
	return err
}

func (m *MemStore) leave(op string) {
	m.mu.Unlock()
	if m.OnCall != nil {
		m.OnCall(op)
	}
}

func (m *MemStore) AddSession(sess store.Session, windows ...store.CourtWindow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.ID] = sess
	m.windows[sess.ID] = append([]store.CourtWindow(nil), windows...)
}

func (m *MemStore) AddDirectory(players ...store.DirectoryPlayer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range players {
		m.directory[p.ID] = p
	}
}

func (m *MemStore) AddRoster(entries ...store.RosterEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roster = append(m.roster, entries...)
}

func (m *MemStore) AddOccupancy(recs ...store.IntervalRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.occupancy = append(m.occupancy, recs...)
}

// Occupancy returns every stored record in insertion order.
func (m *MemStore) Occupancy() []store.IntervalRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]store.IntervalRecord(nil), m.occupancy...)
}

func (m *MemStore) Roster() []store.RosterEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]store.RosterEntry(nil), m.roster...)
}

func (m *MemStore) Ping(ctx context.Context) error {
	if err := m.enter("Ping"); err != nil {
		m.leave("Ping")
		return err
	}
	m.leave("Ping")
	return nil
}

func (m *MemStore) GetSession(ctx context.Context, sessionID string) (*store.Session, error) {
	if err := m.enter("GetSession"); err != nil {
		m.leave("GetSession")
		return nil, err
	}
	defer m.leave("GetSession")
	sess, ok := m.sessions[sessionID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &sess, nil
}

func (m *MemStore) ListSessionWindows(ctx context.Context, sessionID string) ([]store.CourtWindow, error) {
	if err := m.enter("ListSessionWindows"); err != nil {
		m.leave("ListSessionWindows")
		return nil, err
	}
	defer m.leave("ListSessionWindows")
	return append([]store.CourtWindow(nil), m.windows[sessionID]...), nil
}

func (m *MemStore) ListOccupancy(ctx context.Context, sessionID string) ([]store.IntervalRecord, error) {
	if err := m.enter("ListOccupancy"); err != nil {
		m.leave("ListOccupancy")
		return nil, err
	}
	defer m.leave("ListOccupancy")
	var out []store.IntervalRecord
	for _, r := range m.occupancy {
		if r.SessionID == sessionID {
			r.ClosedAt = copyTime(r.ClosedAt)
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *MemStore) InsertOccupancy(ctx context.Context, recs []store.IntervalRecord) error {
	if err := m.enter("InsertOccupancy"); err != nil {
		m.leave("InsertOccupancy")
		return err
	}
	defer m.leave("InsertOccupancy")
	for _, r := range recs {
		if r.ID == "" {
			r.ID = store.NewIDAt(r.CreatedAt)
		}
		m.occupancy = append(m.occupancy, r)
	}
	return nil
}

func (m *MemStore) CloseOccupancy(ctx context.Context, ids []string, at time.Time) error {
	if err := m.enter("CloseOccupancy"); err != nil {
		m.leave("CloseOccupancy")
		return err
	}
	defer m.leave("CloseOccupancy")
	want := toSet(ids)
	for i := range m.occupancy {
		if want[m.occupancy[i].ID] && m.occupancy[i].ClosedAt == nil {
			t := at
			m.occupancy[i].ClosedAt = &t
		}
	}
	return nil
}

func (m *MemStore) ReassignOccupancy(ctx context.Context, id, playerID string) error {
	if err := m.enter("ReassignOccupancy"); err != nil {
		m.leave("ReassignOccupancy")
		return err
	}
	defer m.leave("ReassignOccupancy")
	for i := range m.occupancy {
		if m.occupancy[i].ID == id {
			m.occupancy[i].PlayerID = playerID
			m.occupancy[i].ClosedAt = nil
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *MemStore) ListRoster(ctx context.Context, sessionID string) ([]store.RosterEntry, error) {
	if err := m.enter("ListRoster"); err != nil {
		m.leave("ListRoster")
		return nil, err
	}
	defer m.leave("ListRoster")
	return m.rosterFor(sessionID, "", 0), nil
}

func (m *MemStore) FindRosterEntries(ctx context.Context, sessionID, playerID string, limit int) ([]store.RosterEntry, error) {
	if err := m.enter("FindRosterEntries"); err != nil {
		m.leave("FindRosterEntries")
		return nil, err
	}
	defer m.leave("FindRosterEntries")
	return m.rosterFor(sessionID, playerID, limit), nil
}

func (m *MemStore) rosterFor(sessionID, playerID string, limit int) []store.RosterEntry {
	var out []store.RosterEntry
	for _, e := range m.roster {
		if e.SessionID != sessionID || (playerID != "" && e.PlayerID != playerID) {
			continue
		}
		e.QueuedAt = copyTime(e.QueuedAt)
		e.UpdatedAt = copyTime(e.UpdatedAt)
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (m *MemStore) InsertRoster(ctx context.Context, entries []store.RosterEntry) error {
	if err := m.enter("InsertRoster"); err != nil {
		m.leave("InsertRoster")
		return err
	}
	defer m.leave("InsertRoster")
	for _, e := range entries {
		if e.ID == "" {
			e.ID = store.NewIDAt(e.CreatedAt)
		}
		m.roster = append(m.roster, e)
	}
	return nil
}

func (m *MemStore) PatchRosterAttendance(ctx context.Context, patches []store.AttendancePatch, at time.Time) error {
	if err := m.enter("PatchRosterAttendance"); err != nil {
		m.leave("PatchRosterAttendance")
		return err
	}
	defer m.leave("PatchRosterAttendance")
	idx, err := m.rosterIndex(len(patches), func(i int) string { return patches[i].ID })
	if err != nil {
		return err
	}
	for i, p := range patches {
		e := &m.roster[idx[i]]
		e.Attended = p.Attended
		e.Paused = false
		e.UpdatedAt = timePtr(at)
	}
	return nil
}

func (m *MemStore) PatchRosterQueue(ctx context.Context, patches []store.QueuePatch, at time.Time) error {
	if err := m.enter("PatchRosterQueue"); err != nil {
		m.leave("PatchRosterQueue")
		return err
	}
	defer m.leave("PatchRosterQueue")
	idx, err := m.rosterIndex(len(patches), func(i int) string { return patches[i].ID })
	if err != nil {
		return err
	}
	for i, p := range patches {
		e := &m.roster[idx[i]]
		e.QueuedAt = copyTime(p.QueuedAt)
		e.UpdatedAt = timePtr(at)
	}
	return nil
}

func (m *MemStore) PatchRosterPaused(ctx context.Context, id string, paused bool, at time.Time) error {
	if err := m.enter("PatchRosterPaused"); err != nil {
		m.leave("PatchRosterPaused")
		return err
	}
	defer m.leave("PatchRosterPaused")
	idx, err := m.rosterIndex(1, func(int) string { return id })
	if err != nil {
		return err
	}
	m.roster[idx[0]].Paused = paused
	m.roster[idx[0]].UpdatedAt = timePtr(at)
	return nil
}

// rosterIndex resolves every id up front so a patch batch applies whole or
// not at all.
func (m *MemStore) rosterIndex(n int, id func(int) string) ([]int, error) {
	out := make([]int, n)
	for i := 0; i < n; i++ {
		found := -1
		for j, e := range m.roster {
			if e.ID == id(i) {
				found = j
				break
			}
		}
		if found < 0 {
			return nil, store.ErrNotFound
		}
		out[i] = found
	}
	return out, nil
}

func (m *MemStore) ListDirectory(ctx context.Context) ([]store.DirectoryPlayer, error) {
	if err := m.enter("ListDirectory"); err != nil {
		m.leave("ListDirectory")
		return nil, err
	}
	defer m.leave("ListDirectory")
	out := make([]store.DirectoryPlayer, 0, len(m.directory))
	for _, p := range m.directory {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemStore) UpsertDirectory(ctx context.Context, players []store.DirectoryPlayer) error {
	if err := m.enter("UpsertDirectory"); err != nil {
		m.leave("UpsertDirectory")
		return err
	}
	defer m.leave("UpsertDirectory")
	for _, p := range players {
		m.directory[p.ID] = p
	}
	return nil
}

func toSet(ids []string) map[string]bool {
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func timePtr(t time.Time) *time.Time {
	return &t
}
