package rotation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"court-rotation/internal/store"
	"court-rotation/internal/stream"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Engine owns the derived state of one selected session: court rosters, the
// active-court set, the wait list and queued groups. The occupancy log and
// roster in the store stay authoritative; every write is followed by a resync.
//
// syncMu serializes anything that talks to the store and then swaps
// snapshots. mu guards the in-memory state and is never held across I/O.
type Engine struct {
	st        RecordStore
	sessionID string
	opts      Options
	now       func() time.Time

	syncMu sync.Mutex

	mu        sync.RWMutex
	session   *store.Session
	occupancy []store.IntervalRecord
	roster    []store.RosterEntry
	directory map[string]store.DirectoryPlayer

	courts map[int]*Court
	active map[int]bool

	waitList []WaitListPlayer
	groups   []QueuedGroup

	paused map[RefreshItem]bool

	windowTimer   *time.Timer
	waitTimer     *time.Timer
	waitScheduled bool
	closed        bool

	events *stream.EventBuffer
	cancel context.CancelFunc
	done   chan struct{}
}

// Open loads sessionID from st, materializes its court windows and starts
// the periodic refresh. The engine must be closed by the caller.
func Open(ctx context.Context, st RecordStore, sessionID string, opts Options) (*Engine, error) {
	if sessionID == "" {
		return nil, ErrSessionNotSelected
	}
	opts = opts.withDefaults()
	e := &Engine{
		st:        st,
		sessionID: sessionID,
		opts:      opts,
		now:       opts.Now,
		directory: map[string]store.DirectoryPlayer{},
		courts:    map[int]*Court{},
		active:    map[int]bool{},
		paused:    map[RefreshItem]bool{},
		events:    stream.NewEventBuffer(opts.BufferSize, opts.Now),
	}
	now := e.now()
	for n := 1; n <= MaxCourts; n++ {
		e.courts[n] = newCourt(n, now)
	}

	e.syncMu.Lock()
	err := e.loadLocked(ctx)
	e.syncMu.Unlock()
	if err != nil {
		var inv *InvariantViolation
		if !errors.As(err, &inv) {
			e.Close()
			return nil, err
		}
		// over-capacity courts were healed during load; keep the session
		log.Warn().Err(err).Str("session_id", sessionID).Msg("session loaded with healed courts")
	}

	if opts.RefreshInterval > 0 {
		runCtx, cancel := context.WithCancel(context.Background())
		e.mu.Lock()
		e.cancel = cancel
		e.done = make(chan struct{})
		e.mu.Unlock()
		go e.run(runCtx)
	}
	log.Info().Str("session_id", sessionID).Int("active_courts", len(e.ActiveCourts())).Msg("session selected")
	return e, nil
}

func newCourt(n int, now time.Time) *Court {
	return &Court{
		Number:    n,
		State:     CourtInactive,
		Players:   placeholders(),
		StartTime: now,
		EndTime:   now,
	}
}

func (e *Engine) SessionID() string { return e.sessionID }

func (e *Engine) Events() *stream.EventBuffer { return e.events }

// Reload re-reads the session layout and every snapshot.
func (e *Engine) Reload(ctx context.Context) error {
	e.syncMu.Lock()
	defer e.syncMu.Unlock()
	if err := e.ensureOpen(); err != nil {
		return err
	}
	return e.loadLocked(ctx)
}

func (e *Engine) loadLocked(ctx context.Context) error {
	sess, err := e.st.GetSession(ctx, e.sessionID)
	if err != nil {
		return fmt.Errorf("load session %s: %w", e.sessionID, err)
	}
	windows, err := e.st.ListSessionWindows(ctx, e.sessionID)
	if err != nil {
		return fmt.Errorf("load court windows: %w", err)
	}
	layout, err := materializeWindows(sess.SessionDate, windows, e.opts.Location)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.session = sess
	e.applyLayoutLocked(layout)
	e.mu.Unlock()

	if err := e.fetchLocked(ctx, refreshItems...); err != nil {
		return err
	}
	return e.recomputeActiveLocked(ctx)
}

// Close stops every timer and the refresh loop, then closes the event buffer.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	if e.windowTimer != nil {
		e.windowTimer.Stop()
	}
	if e.waitTimer != nil {
		e.waitTimer.Stop()
	}
	cancel, done := e.cancel, e.done
	e.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	e.events.Close()
	log.Info().Str("session_id", e.sessionID).Msg("session closed")
}

func (e *Engine) ensureOpen() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrEngineClosed
	}
	return nil
}

func (e *Engine) run(ctx context.Context) {
	defer close(e.done)
	ticker := time.NewTicker(e.opts.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.pollOnce(ctx)
		}
	}
}

func (e *Engine) pollOnce(ctx context.Context) {
	items := e.refreshDue()
	if len(items) == 0 {
		return
	}
	e.syncMu.Lock()
	defer e.syncMu.Unlock()
	if ctx.Err() != nil {
		return
	}
	if err := e.fetchLocked(ctx, items...); err != nil && ctx.Err() == nil {
		log.Warn().Err(err).Str("session_id", e.sessionID).Msg("periodic refresh failed")
	}
}

func (e *Engine) refreshDue() []RefreshItem {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]RefreshItem, 0, len(refreshItems))
	for _, it := range refreshItems {
		if !e.paused[it] {
			out = append(out, it)
		}
	}
	return out
}

// PauseRefresh stops the periodic refresh of one snapshot until resumed.
func (e *Engine) PauseRefresh(item RefreshItem) {
	e.mu.Lock()
	e.paused[item] = true
	e.mu.Unlock()
}

func (e *Engine) ResumeRefresh(item RefreshItem) {
	e.mu.Lock()
	delete(e.paused, item)
	e.mu.Unlock()
}

// fetchLocked reloads the requested snapshots in parallel and swaps them in.
// Rosters are rederived only when the occupancy log was reloaded.
func (e *Engine) fetchLocked(ctx context.Context, items ...RefreshItem) error {
	var (
		want      = map[RefreshItem]bool{}
		occupancy []store.IntervalRecord
		roster    []store.RosterEntry
		directory []store.DirectoryPlayer
	)
	for _, it := range items {
		want[it] = true
	}
	g, gctx := errgroup.WithContext(ctx)
	if want[RefreshCourts] {
		g.Go(func() error {
			var err error
			occupancy, err = e.st.ListOccupancy(gctx, e.sessionID)
			return err
		})
	}
	if want[RefreshPlayers] {
		g.Go(func() error {
			var err error
			roster, err = e.st.ListRoster(gctx, e.sessionID)
			return err
		})
	}
	if want[RefreshDirectory] {
		g.Go(func() error {
			var err error
			directory, err = e.st.ListDirectory(gctx)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("refresh %v: %w", items, err)
	}

	e.mu.Lock()
	if want[RefreshCourts] {
		e.occupancy = occupancy
	}
	if want[RefreshPlayers] {
		e.roster = roster
	}
	if want[RefreshDirectory] {
		e.directory = make(map[string]store.DirectoryPlayer, len(directory))
		for _, p := range directory {
			e.directory[p.ID] = p
		}
	}
	e.mu.Unlock()

	var err error
	if want[RefreshCourts] {
		err = e.recomputeRostersLocked(ctx)
	}
	e.scheduleWaitList()
	return err
}

func (e *Engine) resyncOccupancyLocked(ctx context.Context) error {
	return e.fetchLocked(ctx, RefreshCourts)
}

func (e *Engine) resyncRosterLocked(ctx context.Context) error {
	return e.fetchLocked(ctx, RefreshPlayers)
}

func (e *Engine) emit(event string, data any) {
	ev := e.events.Append(event, e.sessionID, data)
	if ev.EventID == "" {
		return
	}
	for _, sink := range e.opts.Sinks {
		sink.Publish(ev)
	}
}

// Courts returns every known court ordered by number.
func (e *Engine) Courts() []Court {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.courtsLocked()
}

func (e *Engine) courtsLocked() []Court {
	out := make([]Court, 0, len(e.courts))
	for _, n := range e.courtNumbersLocked() {
		out = append(out, e.courts[n].clone())
	}
	return out
}

func (e *Engine) courtNumbersLocked() []int {
	out := make([]int, 0, len(e.courts))
	for n := range e.courts {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

func (e *Engine) Court(n int) (Court, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	c, ok := e.courts[n]
	if !ok {
		return Court{}, fmt.Errorf("court %d: %w", n, ErrCourtNotInitialized)
	}
	return c.clone(), nil
}

func (e *Engine) ActiveCourts() []int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.activeCourtsLocked()
}

func (e *Engine) activeCourtsLocked() []int {
	out := make([]int, 0, len(e.active))
	for n := range e.active {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

func (e *Engine) WaitList() []WaitListPlayer {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return copyWaitList(e.waitList)
}

func (e *Engine) QueuedGroups() []QueuedGroup {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return copyGroups(e.groups)
}

func (e *Engine) View() View {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v := View{
		SessionID:    e.sessionID,
		Courts:       e.courtsLocked(),
		ActiveCourts: e.activeCourtsLocked(),
		WaitList:     copyWaitList(e.waitList),
		Candidates:   candidates(e.waitList, SelectableWaitListCount),
		QueuedGroups: copyGroups(e.groups),
	}
	if n, ok := e.courtInSelectModeLocked(); ok {
		v.SelectingCourt = &n
	}
	for _, it := range refreshItems {
		if e.paused[it] {
			v.PausedRefresh = append(v.PausedRefresh, it)
		}
	}
	return v
}

func copyWaitList(in []WaitListPlayer) []WaitListPlayer {
	out := make([]WaitListPlayer, len(in))
	for i, p := range in {
		p.QueuedAt = copyTime(p.QueuedAt)
		out[i] = p
	}
	return out
}

func copyGroups(in []QueuedGroup) []QueuedGroup {
	out := make([]QueuedGroup, len(in))
	for i, g := range in {
		out[i] = QueuedGroup(copyWaitList(g))
	}
	return out
}
