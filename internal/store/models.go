package store

import "time"

type Session struct {
	ID              string     `json:"id"`
	SessionDate     time.Time  `json:"session_date"`
	StartDatetime   *time.Time `json:"start_datetime"`
	EndDatetime     *time.Time `json:"end_datetime"`
	CourtAllocation []string   `json:"court_allocation"`
	CreatedAt       time.Time  `json:"created_at"`
}

// CourtWindow is a block of courts that are open between StartTime and
// EndTime (both "HH:MM:SS", relative to the owning session's date).
type CourtWindow struct {
	ID           string   `json:"id"`
	StartTime    string   `json:"start_time"`
	EndTime      string   `json:"end_time"`
	ActiveCourts []string `json:"active_courts"`
}

// IntervalRecord is one row of the occupancy log. A nil ClosedAt means the
// player is still on court.
type IntervalRecord struct {
	ID        string     `json:"id"`
	SessionID string     `json:"session_id"`
	Court     int        `json:"court"`
	PlayerID  string     `json:"player_id"`
	IsCaptain bool       `json:"is_captain"`
	CreatedAt time.Time  `json:"created_at"`
	ClosedAt  *time.Time `json:"closed_at"`
}

func (r IntervalRecord) Open() bool {
	return r.ClosedAt == nil
}

type RosterEntry struct {
	ID        string     `json:"id"`
	SessionID string     `json:"session_id"`
	PlayerID  string     `json:"player_id"`
	Attended  bool       `json:"attended"`
	Paused    bool       `json:"paused"`
	QueuedAt  *time.Time `json:"queued_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

// Touched is the last time the entry was written.
func (e RosterEntry) Touched() time.Time {
	if e.UpdatedAt != nil {
		return *e.UpdatedAt
	}
	return e.CreatedAt
}

type DirectoryPlayer struct {
	ID               string     `json:"id"`
	FirstName        string     `json:"first_name"`
	LastName         string     `json:"last_name"`
	Level            int        `json:"level"`
	MembershipExpiry *time.Time `json:"membership_expiry"`
}

// CurrentMember reports whether the membership is still valid at now.
func (p DirectoryPlayer) CurrentMember(now time.Time) bool {
	return p.MembershipExpiry != nil && p.MembershipExpiry.After(now)
}

// AttendancePatch updates an existing roster entry; paused is always reset.
type AttendancePatch struct {
	ID       string
	Attended bool
}

type QueuePatch struct {
	ID       string
	QueuedAt *time.Time
}
