package rotation

import (
	"context"
	"time"

	"court-rotation/internal/store"
	"court-rotation/internal/stream"
)

const (
	MaxPlayer               = 4
	MaxCourts               = 12
	MinLevel                = 1
	MaxLevel                = 10
	SelectableWaitListCount = 16

	unknownPlayerLevel = 5
	captainStagger     = 100 * time.Millisecond
	queueStagger       = time.Microsecond

	defaultRefreshInterval  = 5 * time.Second
	defaultWaitListDebounce = 100 * time.Millisecond
	defaultEventBuffer      = 500
	callbackTimeout         = 10 * time.Second
)

type CourtState string

const (
	CourtInactive          CourtState = "Inactive"
	CourtInProgress        CourtState = "In-Progress"
	CourtConfirmComplete   CourtState = "Confirm-Complete"
	CourtAwaitingSelection CourtState = "Awaiting-Selection"
	CourtSelectingPlayers  CourtState = "Selecting-Players"
)

func ParseCourtState(s string) (CourtState, bool) {
	switch st := CourtState(s); st {
	case CourtInactive, CourtInProgress, CourtConfirmComplete, CourtAwaitingSelection, CourtSelectingPlayers:
		return st, true
	}
	return "", false
}

// inTransition reports states during which background court refreshes must
// not overwrite what the operator is looking at.
func (s CourtState) inTransition() bool {
	return s == CourtSelectingPlayers || s == CourtConfirmComplete
}

// Player is one roster slot. Placeholders fill empty slots; a zero LastActive
// means the player has never been seen and sorts after everyone else.
type Player struct {
	ID          string    `json:"id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	FullName    string    `json:"full_name"`
	Level       int       `json:"level"`
	Paused      bool      `json:"paused"`
	Member      bool      `json:"member"`
	Captain     bool      `json:"captain"`
	Placeholder bool      `json:"placeholder"`
	LastActive  time.Time `json:"last_active"`
}

type WaitListPlayer struct {
	Player
	QueuedAt *time.Time `json:"queued_at"`
}

type QueuedGroup []WaitListPlayer

func (g QueuedGroup) ids() []string {
	out := make([]string, len(g))
	for i, p := range g {
		out[i] = p.ID
	}
	return out
}

type Court struct {
	Number    int        `json:"number"`
	State     CourtState `json:"state"`
	Players   []Player   `json:"players"`
	Active    bool       `json:"active"`
	StartTime time.Time  `json:"start_time"`
	EndTime   time.Time  `json:"end_time"`
}

func (c *Court) clone() Court {
	out := *c
	out.Players = append([]Player(nil), c.Players...)
	return out
}

// RefreshItem names one of the snapshots the periodic refresh keeps current.
type RefreshItem string

const (
	RefreshDirectory RefreshItem = "directory"
	RefreshCourts    RefreshItem = "courts"
	RefreshPlayers   RefreshItem = "players"
)

var refreshItems = []RefreshItem{RefreshDirectory, RefreshCourts, RefreshPlayers}

func ParseRefreshItem(s string) (RefreshItem, bool) {
	for _, it := range refreshItems {
		if string(it) == s {
			return it, true
		}
	}
	return "", false
}

type AttendanceUpdate struct {
	PlayerID  string `json:"player_id"`
	Attending bool   `json:"attending"`
}

// View is a point-in-time copy of everything a client renders.
type View struct {
	SessionID      string           `json:"session_id"`
	Courts         []Court          `json:"courts"`
	ActiveCourts   []int            `json:"active_courts"`
	WaitList       []WaitListPlayer `json:"wait_list"`
	Candidates     []WaitListPlayer `json:"candidates"`
	QueuedGroups   []QueuedGroup    `json:"queued_groups"`
	SelectingCourt *int             `json:"selecting_court"`
	PausedRefresh  []RefreshItem    `json:"paused_refresh"`
}

// RecordStore is the persistence the engine runs against. *store.Store
// satisfies it.
type RecordStore interface {
	GetSession(ctx context.Context, sessionID string) (*store.Session, error)
	ListSessionWindows(ctx context.Context, sessionID string) ([]store.CourtWindow, error)

	ListOccupancy(ctx context.Context, sessionID string) ([]store.IntervalRecord, error)
	InsertOccupancy(ctx context.Context, recs []store.IntervalRecord) error
	CloseOccupancy(ctx context.Context, ids []string, at time.Time) error
	ReassignOccupancy(ctx context.Context, id, playerID string) error

	ListRoster(ctx context.Context, sessionID string) ([]store.RosterEntry, error)
	FindRosterEntries(ctx context.Context, sessionID, playerID string, limit int) ([]store.RosterEntry, error)
	InsertRoster(ctx context.Context, entries []store.RosterEntry) error
	PatchRosterAttendance(ctx context.Context, patches []store.AttendancePatch, at time.Time) error
	PatchRosterQueue(ctx context.Context, patches []store.QueuePatch, at time.Time) error
	PatchRosterPaused(ctx context.Context, id string, paused bool, at time.Time) error

	ListDirectory(ctx context.Context) ([]store.DirectoryPlayer, error)
}

// EventSink receives every emitted event after it lands in the engine's
// buffer. Publish must not block.
type EventSink interface {
	Publish(ev stream.StreamEvent)
}

type Options struct {
	RefreshInterval  time.Duration
	WaitListDebounce time.Duration
	// Location anchors window clock times to the session date.
	Location   *time.Location
	Now        func() time.Time
	Sinks      []EventSink
	BufferSize int
}

func (o Options) withDefaults() Options {
	if o.RefreshInterval == 0 {
		o.RefreshInterval = defaultRefreshInterval
	}
	if o.WaitListDebounce <= 0 {
		o.WaitListDebounce = defaultWaitListDebounce
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.BufferSize <= 0 {
		o.BufferSize = defaultEventBuffer
	}
	return o
}
