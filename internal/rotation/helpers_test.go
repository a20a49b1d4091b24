package rotation

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"court-rotation/internal/store"
	"court-rotation/internal/testutil"
)

const testSession = "sess-1"

var sessionDay = time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock(h, m int) *fakeClock {
	return &fakeClock{t: time.Date(2026, 10, 17, h, m, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func at(h, m int) time.Time {
	return time.Date(2026, 10, 17, h, m, 0, 0, time.UTC)
}

// seedStore builds a session with courts 1 and 2 open 18:00-22:00, eight
// directory players p1..p8 and attended roster entries for each, created a
// minute apart from 17:01.
func seedStore() *testutil.MemStore {
	ms := testutil.NewMemStore()
	ms.AddSession(store.Session{ID: testSession, SessionDate: sessionDay},
		store.CourtWindow{ID: "w1", StartTime: "18:00:00", EndTime: "22:00:00", ActiveCourts: []string{"1", "2"}})
	for i := 1; i <= 8; i++ {
		id := fmt.Sprintf("p%d", i)
		ms.AddDirectory(store.DirectoryPlayer{ID: id, FirstName: "First" + id, LastName: "Last", Level: 3})
		ms.AddRoster(store.RosterEntry{
			ID:        "r-" + id,
			SessionID: testSession,
			PlayerID:  id,
			Attended:  true,
			CreatedAt: at(17, i),
		})
	}
	return ms
}

func openEngine(t *testing.T, ms *testutil.MemStore, clock *fakeClock) *Engine {
	t.Helper()
	e, err := Open(context.Background(), ms, testSession, Options{
		RefreshInterval:  -1,
		WaitListDebounce: time.Millisecond,
		Location:         time.UTC,
		Now:              clock.Now,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(e.Close)
	return e
}

// flushWaitList runs the debounced recompute synchronously.
func flushWaitList(e *Engine) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.recomputeWaitListLocked()
}

func eventNames(e *Engine) []string {
	var out []string
	for _, ev := range e.Events().ReplayAfter("") {
		out = append(out, ev.Event)
	}
	return out
}

func hasEvent(e *Engine, name string) bool {
	for _, n := range eventNames(e) {
		if n == name {
			return true
		}
	}
	return false
}

func playerIDs(players []Player) []string {
	out := make([]string, 0, len(players))
	for _, p := range players {
		if !p.Placeholder {
			out = append(out, p.ID)
		}
	}
	return out
}

func openOn(recs []store.IntervalRecord, court int) []store.IntervalRecord {
	var out []store.IntervalRecord
	for _, r := range recs {
		if r.Court == court && r.Open() {
			out = append(out, r)
		}
	}
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func dirPlayer(id string) store.DirectoryPlayer {
	return store.DirectoryPlayer{ID: id, FirstName: "First" + id, LastName: "Last", Level: 3}
}
