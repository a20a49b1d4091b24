package stream

import (
	"strconv"
	"sync"
	"time"
)

// StreamEvent is one session change as clients receive it. EventID is a
// per-session sequence number starting at 1.
type StreamEvent struct {
	EventID   string `json:"event_id"`
	Event     string `json:"event"`
	SessionID string `json:"session_id"`
	ServerTS  int64  `json:"server_ts"`
	Data      any    `json:"data"`
}

// EventBuffer holds the recent court and queue events of one session.
//
// A reconnecting board sends its Last-Event-ID and gets the events it missed.
// Once the buffer has trimmed past that ID the missed court moves cannot be
// rebuilt from events alone, and Covers reports false so the caller can send
// the client back to a full view fetch. Live subscribers that fall behind
// drop events instead of stalling the engine.
type EventBuffer struct {
	mu       sync.Mutex
	now      func() time.Time
	nextID   int64
	max      int
	events   []StreamEvent
	watchers map[chan StreamEvent]struct{}
	closed   bool
}

// NewEventBuffer keeps the last max events (500 when max <= 0) and stamps
// them with now (time.Now when nil).
func NewEventBuffer(max int, now func() time.Time) *EventBuffer {
	if max <= 0 {
		max = 500
	}
	if now == nil {
		now = time.Now
	}
	return &EventBuffer{
		now:      now,
		max:      max,
		watchers: map[chan StreamEvent]struct{}{},
	}
}

func (b *EventBuffer) Append(event, sessionID string, data any) StreamEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return StreamEvent{}
	}
	b.nextID++
	ev := StreamEvent{
		EventID:   strconv.FormatInt(b.nextID, 10),
		Event:     event,
		SessionID: sessionID,
		ServerTS:  b.now().UnixMilli(),
		Data:      data,
	}
	b.events = append(b.events, ev)
	if len(b.events) > b.max {
		b.events = b.events[len(b.events)-b.max:]
	}
	for ch := range b.watchers {
		select {
		case ch <- ev:
		default:
		}
	}
	return ev
}

// ReplayAfter returns the retained events newer than lastEventID, oldest
// first. An empty or unparsable ID replays everything retained.
func (b *EventBuffer) ReplayAfter(lastEventID string) []StreamEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.events) == 0 {
		return nil
	}
	last, ok := parseEventID(lastEventID)
	if !ok {
		out := make([]StreamEvent, len(b.events))
		copy(out, b.events)
		return out
	}
	out := make([]StreamEvent, 0, len(b.events))
	for _, ev := range b.events {
		if id, _ := parseEventID(ev.EventID); id > last {
			out = append(out, ev)
		}
	}
	return out
}

// Covers reports whether ReplayAfter(lastEventID) is gap free: every event
// issued after lastEventID is still retained. An empty ID has nothing to
// resume. A malformed ID, or one from a buffer of an earlier engine, is
// never covered.
func (b *EventBuffer) Covers(lastEventID string) bool {
	if lastEventID == "" {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	last, ok := parseEventID(lastEventID)
	if !ok {
		return false
	}
	if last > b.nextID {
		return false
	}
	oldest := b.nextID - int64(len(b.events)) + 1
	return last+1 >= oldest
}

func parseEventID(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(s, 10, 64)
	return id, err == nil
}

func (b *EventBuffer) Subscribe() chan StreamEvent {
	ch := make(chan StreamEvent, 32)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.watchers[ch] = struct{}{}
	return ch
}

func (b *EventBuffer) Unsubscribe(ch chan StreamEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.watchers[ch]; ok {
		delete(b.watchers, ch)
		close(ch)
	}
}

// Close ends every subscription. Appends after Close are dropped.
func (b *EventBuffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.watchers {
		close(ch)
		delete(b.watchers, ch)
	}
}
