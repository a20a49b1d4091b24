package rotation

import (
	"context"
	"errors"
	"testing"
	"time"

	"court-rotation/internal/store"
)

func TestAssignOpensRecordsWithCaptainStagger(t *testing.T) {
	ms := seedStore()
	clock := newClock(19, 0)
	e := openEngine(t, ms, clock)

	if err := e.Assign(context.Background(), 1, []string{"p1", "p2", "p3", "p4"}); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	recs := openOn(ms.Occupancy(), 1)
	if len(recs) != 4 {
		t.Fatalf("open records = %d, want 4", len(recs))
	}
	for i, r := range recs {
		want := clock.Now().Add(time.Duration(i) * 100 * time.Millisecond)
		if !r.CreatedAt.Equal(want) {
			t.Fatalf("record %d created_at = %v, want %v", i, r.CreatedAt, want)
		}
		if r.IsCaptain != (i == 0) {
			t.Fatalf("record %d captain = %v", i, r.IsCaptain)
		}
	}

	court, err := e.Court(1)
	if err != nil {
		t.Fatalf("Court() error = %v", err)
	}
	if len(court.Players) != MaxPlayer {
		t.Fatalf("slots = %d, want %d", len(court.Players), MaxPlayer)
	}
	if court.Players[0].ID != "p1" || !court.Players[0].Captain {
		t.Fatalf("first slot = %+v, want captain p1", court.Players[0])
	}
	if !hasEvent(e, EventAddedPlayersToCourt) {
		t.Fatalf("events = %v, want %s", eventNames(e), EventAddedPlayersToCourt)
	}
}

func TestAssignIsIdempotent(t *testing.T) {
	ms := seedStore()
	e := openEngine(t, ms, newClock(19, 0))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := e.Assign(ctx, 1, []string{"p1", "p2"}); err != nil {
			t.Fatalf("Assign() #%d error = %v", i, err)
		}
	}
	if got := ms.Calls("InsertOccupancy"); got != 1 {
		t.Fatalf("InsertOccupancy calls = %d, want 1", got)
	}
	if got := len(openOn(ms.Occupancy(), 1)); got != 2 {
		t.Fatalf("open records = %d, want 2", got)
	}
}

func TestAssignRejections(t *testing.T) {
	ms := seedStore()
	e := openEngine(t, ms, newClock(19, 0))
	ctx := context.Background()

	if err := e.Assign(ctx, 1, []string{"p1", "p2", "p3", "p4", "p5"}); !errors.Is(err, ErrTooManyPlayers) {
		t.Fatalf("5 players error = %v, want ErrTooManyPlayers", err)
	}
	if err := e.Assign(ctx, 1, []string{"p1", "p1"}); !errors.Is(err, ErrDuplicatePlayer) {
		t.Fatalf("duplicate error = %v, want ErrDuplicatePlayer", err)
	}
	if err := e.Assign(ctx, 99, []string{"p1"}); !errors.Is(err, ErrCourtNotInitialized) {
		t.Fatalf("unknown court error = %v, want ErrCourtNotInitialized", err)
	}
	if err := e.Assign(ctx, 1, []string{"p1"}); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	if err := e.Assign(ctx, 2, []string{"p2", "p1"}); !errors.Is(err, ErrPlayerAlreadyOnCourt) {
		t.Fatalf("busy player error = %v, want ErrPlayerAlreadyOnCourt", err)
	}
	if got := len(openOn(ms.Occupancy(), 2)); got != 0 {
		t.Fatalf("court 2 open records = %d, want 0", got)
	}
	if err := e.Assign(ctx, 2, nil); err != nil {
		t.Fatalf("empty assign error = %v", err)
	}
}

func TestAssignRedirectsToSelectingCourt(t *testing.T) {
	ms := seedStore()
	e := openEngine(t, ms, newClock(19, 0))

	if err := e.SetCourtState(2, CourtSelectingPlayers); err != nil {
		t.Fatalf("SetCourtState() error = %v", err)
	}
	if n, ok := e.CourtInSelectMode(); !ok || n != 2 {
		t.Fatalf("CourtInSelectMode() = %d, %v", n, ok)
	}
	if err := e.Assign(context.Background(), 1, []string{"p1", "p2"}); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	if got := len(openOn(ms.Occupancy(), 2)); got != 2 {
		t.Fatalf("court 2 open records = %d, want 2", got)
	}
	if got := len(openOn(ms.Occupancy(), 1)); got != 0 {
		t.Fatalf("court 1 open records = %d, want 0", got)
	}
}

func TestAssignDequeuesPlayers(t *testing.T) {
	ms := seedStore()
	e := openEngine(t, ms, newClock(19, 0))
	ctx := context.Background()

	if err := e.CommitQueue(ctx, []string{"p1", "p2", "p3", "p4"}, true); err != nil {
		t.Fatalf("CommitQueue() error = %v", err)
	}
	if err := e.Assign(ctx, 1, []string{"p1", "p2", "p3", "p4"}); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	for _, entry := range ms.Roster() {
		if entry.QueuedAt != nil {
			t.Fatalf("%s still queued after assign", entry.PlayerID)
		}
	}
	flushWaitList(e)
	if got := len(e.QueuedGroups()); got != 0 {
		t.Fatalf("queued groups = %d, want 0", got)
	}
}

func TestUnassignTwiceIsNoop(t *testing.T) {
	ms := seedStore()
	clock := newClock(19, 0)
	e := openEngine(t, ms, clock)
	ctx := context.Background()

	if err := e.Assign(ctx, 1, []string{"p1", "p2", "p3"}); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	clock.Set(at(19, 30))
	for i := 0; i < 2; i++ {
		if err := e.Unassign(ctx, 1); err != nil {
			t.Fatalf("Unassign() #%d error = %v", i, err)
		}
	}
	if got := ms.Calls("CloseOccupancy"); got != 1 {
		t.Fatalf("CloseOccupancy calls = %d, want 1", got)
	}
	for _, r := range ms.Occupancy() {
		if r.ClosedAt == nil || !r.ClosedAt.Equal(at(19, 30)) {
			t.Fatalf("record %s closed_at = %v, want 19:30", r.ID, r.ClosedAt)
		}
	}
	court, _ := e.Court(1)
	if ids := playerIDs(court.Players); len(ids) != 0 || len(court.Players) != MaxPlayer {
		t.Fatalf("slots after unassign = %+v", court.Players)
	}
	if err := e.Unassign(ctx, 42); !errors.Is(err, ErrCourtNotInitialized) {
		t.Fatalf("unknown court error = %v", err)
	}
}

func TestSwapKeepsRecordIdentity(t *testing.T) {
	ms := seedStore()
	e := openEngine(t, ms, newClock(19, 0))
	ctx := context.Background()

	if err := e.Assign(ctx, 1, []string{"p1", "p2", "p3", "p4"}); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	var before store.IntervalRecord
	for _, r := range ms.Occupancy() {
		if r.PlayerID == "p2" {
			before = r
		}
	}
	if err := e.Swap(ctx, 1, "p2", "p5"); err != nil {
		t.Fatalf("Swap() error = %v", err)
	}
	var after store.IntervalRecord
	for _, r := range ms.Occupancy() {
		if r.ID == before.ID {
			after = r
		}
	}
	if after.PlayerID != "p5" || !after.CreatedAt.Equal(before.CreatedAt) || after.ClosedAt != nil {
		t.Fatalf("swapped record = %+v, want p5 with created_at %v", after, before.CreatedAt)
	}
	court, _ := e.Court(1)
	ids := playerIDs(court.Players)
	for _, id := range ids {
		if id == "p2" {
			t.Fatalf("p2 still on court: %v", ids)
		}
	}
	if len(ids) != 4 {
		t.Fatalf("players on court = %v, want 4", ids)
	}
	assertSeating(t, e, 1, "p1", "p5", "p3", "p4")

	// a full resync derives the same seating from the log
	if err := e.Reload(ctx); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	assertSeating(t, e, 1, "p1", "p5", "p3", "p4")
}

func TestAssignSeatingSurvivesResync(t *testing.T) {
	ms := seedStore()
	e := openEngine(t, ms, newClock(19, 0))
	ctx := context.Background()

	if err := e.Assign(ctx, 1, []string{"p3", "p1", "p4", "p2"}); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	assertSeating(t, e, 1, "p3", "p1", "p4", "p2")
	if err := e.Reload(ctx); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	assertSeating(t, e, 1, "p3", "p1", "p4", "p2")
	court, _ := e.Court(1)
	if !court.Players[0].Captain {
		t.Fatalf("captain = %+v, want p3", court.Players[0])
	}
}

func TestSwapLeavesNoPlayerInTwoPlaces(t *testing.T) {
	ms := seedStore()
	clock := newClock(19, 0)
	e, err := Open(context.Background(), ms, testSession, Options{
		RefreshInterval:  -1,
		WaitListDebounce: time.Hour,
		Location:         time.UTC,
		Now:              clock.Now,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(e.Close)
	ctx := context.Background()

	if err := e.Assign(ctx, 1, []string{"p1", "p2", "p3", "p4"}); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	flushWaitList(e)
	if !waiting(e.View(), "p5") {
		t.Fatal("p5 should be waiting before the swap")
	}

	if err := e.Swap(ctx, 1, "p2", "p5"); err != nil {
		t.Fatalf("Swap() error = %v", err)
	}
	view := e.View()
	if waiting(view, "p5") {
		t.Fatal("p5 is on court 1 and still on the wait list")
	}
	onCourt := map[string]bool{}
	for _, c := range view.Courts {
		for _, id := range playerIDs(c.Players) {
			onCourt[id] = true
		}
	}
	if !onCourt["p5"] {
		t.Fatalf("p5 missing from courts: %+v", view.Courts)
	}
	for _, w := range view.WaitList {
		if onCourt[w.ID] {
			t.Fatalf("%s both on court and waiting", w.ID)
		}
	}

	// the debounced recompute brings the swapped-out player back
	flushWaitList(e)
	if view := e.View(); !waiting(view, "p2") || waiting(view, "p5") {
		t.Fatalf("wait list after recompute = %+v", view.WaitList)
	}
}

func TestAssignRejectsInactiveCourt(t *testing.T) {
	ms := seedStore()
	e := openEngine(t, ms, newClock(19, 0))
	ctx := context.Background()

	if err := e.Assign(ctx, 3, []string{"p1", "p2"}); !errors.Is(err, ErrCourtInactive) {
		t.Fatalf("Assign(3) error = %v, want ErrCourtInactive", err)
	}
	if got := ms.Calls("InsertOccupancy"); got != 0 {
		t.Fatalf("InsertOccupancy calls = %d, want 0", got)
	}
	if got := ms.Calls("PatchRosterQueue"); got != 0 {
		t.Fatalf("PatchRosterQueue calls = %d, want 0", got)
	}
}

func waiting(v View, id string) bool {
	for _, w := range v.WaitList {
		if w.ID == id {
			return true
		}
	}
	return false
}

func assertSeating(t *testing.T, e *Engine, court int, want ...string) {
	t.Helper()
	c, err := e.Court(court)
	if err != nil {
		t.Fatalf("Court(%d) error = %v", court, err)
	}
	got := playerIDs(c.Players)
	if len(got) != len(want) {
		t.Fatalf("court %d seating = %v, want %v", court, got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("court %d seating = %v, want %v", court, got, want)
		}
	}
}

func TestSwapRejections(t *testing.T) {
	ms := seedStore()
	e := openEngine(t, ms, newClock(19, 0))
	ctx := context.Background()

	if err := e.Assign(ctx, 1, []string{"p1", "p2"}); err != nil {
		t.Fatalf("Assign(1) error = %v", err)
	}
	if err := e.Assign(ctx, 2, []string{"p6"}); err != nil {
		t.Fatalf("Assign(2) error = %v", err)
	}
	if err := e.Swap(ctx, 1, "p1", "ghost"); !errors.Is(err, ErrUnknownPlayer) {
		t.Fatalf("unknown player error = %v", err)
	}
	if err := e.Swap(ctx, 1, "p3", "p4"); !errors.Is(err, ErrPlayerNotOnCourt) {
		t.Fatalf("not on court error = %v", err)
	}
	if err := e.Swap(ctx, 1, "p1", "p6"); !errors.Is(err, ErrPlayerAlreadyOnCourt) {
		t.Fatalf("busy player error = %v", err)
	}
	if got := ms.Calls("ReassignOccupancy"); got != 0 {
		t.Fatalf("ReassignOccupancy calls = %d, want 0", got)
	}
}

func TestRosterOrderedByLastActive(t *testing.T) {
	ms := seedStore()
	closed := func(t time.Time) *time.Time { return &t }
	ms.AddOccupancy(
		store.IntervalRecord{ID: "old-p2", SessionID: testSession, Court: 2, PlayerID: "p2", CreatedAt: at(18, 0), ClosedAt: closed(at(18, 10))},
		store.IntervalRecord{ID: "old-p3", SessionID: testSession, Court: 2, PlayerID: "p3", CreatedAt: at(18, 0), ClosedAt: closed(at(18, 5))},
		store.IntervalRecord{ID: "c1-p2", SessionID: testSession, Court: 1, PlayerID: "p2", IsCaptain: true, CreatedAt: at(18, 30)},
		store.IntervalRecord{ID: "c1-p3", SessionID: testSession, Court: 1, PlayerID: "p3", CreatedAt: at(18, 30)},
		store.IntervalRecord{ID: "c1-p1", SessionID: testSession, Court: 1, PlayerID: "p1", CreatedAt: at(18, 30)},
		store.IntervalRecord{ID: "c1-p4", SessionID: testSession, Court: 1, PlayerID: "p4", CreatedAt: at(18, 30)},
		store.IntervalRecord{ID: "c2-ghost", SessionID: testSession, Court: 2, PlayerID: "ghost", CreatedAt: at(18, 30)},
	)
	e := openEngine(t, ms, newClock(19, 0))

	court, _ := e.Court(1)
	got := playerIDs(court.Players)
	want := []string{"p1", "p4", "p3", "p2"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("court 1 order = %v, want %v", got, want)
		}
	}
	if !court.Players[3].Captain {
		t.Fatalf("captain flag lost: %+v", court.Players[3])
	}
	if la := e.LastActive("p2"); !la.Equal(at(18, 10)) {
		t.Fatalf("LastActive(p2) = %v, want 18:10", la)
	}
	if la := e.LastActive("p1"); !la.Equal(at(17, 1)) {
		t.Fatalf("LastActive(p1) = %v, want roster fallback 17:01", la)
	}
	if la := e.LastActive("nobody"); !la.IsZero() {
		t.Fatalf("LastActive(nobody) = %v, want zero", la)
	}
	if closedRecs := e.ClosedRecords("p2"); len(closedRecs) != 1 || closedRecs[0].ID != "old-p2" {
		t.Fatalf("ClosedRecords(p2) = %+v", closedRecs)
	}

	court2, _ := e.Court(2)
	if len(court2.Players) != MaxPlayer {
		t.Fatalf("court 2 slots = %d", len(court2.Players))
	}
	ghost := court2.Players[0]
	if ghost.FullName != "Unknown Player" || !ghost.Paused || ghost.Level != 5 {
		t.Fatalf("unknown player slot = %+v", ghost)
	}
}

func TestInactiveCourtShowsPlaceholders(t *testing.T) {
	ms := seedStore()
	ms.AddOccupancy(store.IntervalRecord{ID: "c3-p1", SessionID: testSession, Court: 3, PlayerID: "p1", CreatedAt: at(18, 0)})
	e := openEngine(t, ms, newClock(19, 0))

	court, _ := e.Court(3)
	if court.Active {
		t.Fatal("court 3 should be inactive")
	}
	if ids := playerIDs(court.Players); len(ids) != 0 {
		t.Fatalf("inactive court players = %v, want placeholders", ids)
	}
}

func TestOverCapacityCourtIsForceUnassigned(t *testing.T) {
	ms := seedStore()
	for _, id := range []string{"p1", "p2", "p3", "p4", "p5"} {
		ms.AddOccupancy(store.IntervalRecord{ID: "c1-" + id, SessionID: testSession, Court: 1, PlayerID: id, CreatedAt: at(18, 0)})
	}
	e := openEngine(t, ms, newClock(19, 0))

	if got := len(openOn(ms.Occupancy(), 1)); got != 0 {
		t.Fatalf("open records after heal = %d, want 0", got)
	}
	court, _ := e.Court(1)
	if ids := playerIDs(court.Players); len(ids) != 0 {
		t.Fatalf("healed court players = %v", ids)
	}

	for _, id := range []string{"p1", "p2", "p3", "p4", "p5"} {
		ms.AddOccupancy(store.IntervalRecord{ID: "again-" + id, SessionID: testSession, Court: 2, PlayerID: id, CreatedAt: at(18, 50)})
	}
	err := e.Reload(context.Background())
	var inv *InvariantViolation
	if !errors.As(err, &inv) || inv.Court != 2 || inv.Open != 5 {
		t.Fatalf("Reload() error = %v, want InvariantViolation on court 2", err)
	}
	if got := len(openOn(ms.Occupancy(), 2)); got != 0 {
		t.Fatalf("court 2 open records = %d, want 0", got)
	}
}

func TestSetCourtStatePausesCourtRefresh(t *testing.T) {
	e := openEngine(t, seedStore(), newClock(19, 0))

	if err := e.SetCourtState(1, CourtConfirmComplete); err != nil {
		t.Fatalf("SetCourtState() error = %v", err)
	}
	if v := e.View(); len(v.PausedRefresh) != 1 || v.PausedRefresh[0] != RefreshCourts {
		t.Fatalf("paused refresh = %v, want [courts]", v.PausedRefresh)
	}
	if err := e.SetCourtState(1, CourtInProgress); err != nil {
		t.Fatalf("SetCourtState() error = %v", err)
	}
	if v := e.View(); len(v.PausedRefresh) != 0 {
		t.Fatalf("paused refresh = %v, want none", v.PausedRefresh)
	}
	if err := e.SetCourtState(1, CourtState("Warming-Up")); !errors.Is(err, ErrInvalidCourtState) {
		t.Fatalf("invalid state error = %v", err)
	}
	if err := e.SetCourtState(77, CourtInProgress); !errors.Is(err, ErrCourtNotInitialized) {
		t.Fatalf("unknown court error = %v", err)
	}
}

func TestClosedEngineRejectsMutations(t *testing.T) {
	ms := seedStore()
	e := openEngine(t, ms, newClock(19, 0))
	e.Close()

	if err := e.Assign(context.Background(), 1, []string{"p1"}); !errors.Is(err, ErrEngineClosed) {
		t.Fatalf("Assign() after close error = %v", err)
	}
	if _, err := e.TogglePaused(context.Background(), "p1"); !errors.Is(err, ErrEngineClosed) {
		t.Fatalf("TogglePaused() after close error = %v", err)
	}
}
