package rotation

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"court-rotation/internal/store"

	"github.com/rs/zerolog/log"
)

var clockPattern = regexp.MustCompile(`^(\d{2}):(\d{2}):(\d{2})$`)

type courtWindow struct {
	start time.Time
	end   time.Time
}

// parseClock anchors an "HH:MM:SS" string to the calendar date of day.
func parseClock(s string, day time.Time, loc *time.Location) (time.Time, error) {
	m := clockPattern.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, &ConfigurationError{Field: "window time", Value: s, Reason: "want HH:MM:SS"}
	}
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	sec, _ := strconv.Atoi(m[3])
	if h > 23 || min > 59 || sec > 59 {
		return time.Time{}, &ConfigurationError{Field: "window time", Value: s, Reason: "out of range"}
	}
	y, mo, d := day.Date()
	return time.Date(y, mo, d, h, min, sec, 0, loc), nil
}

func parseCourtNumber(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 || n > MaxCourts {
		return 0, &ConfigurationError{Field: "court number", Value: raw, Reason: fmt.Sprintf("want 1..%d", MaxCourts)}
	}
	return n, nil
}

// materializeWindows resolves every window to absolute times. A court listed
// by more than one window takes the last one.
func materializeWindows(day time.Time, windows []store.CourtWindow, loc *time.Location) (map[int]courtWindow, error) {
	out := map[int]courtWindow{}
	for _, w := range windows {
		start, err := parseClock(w.StartTime, day, loc)
		if err != nil {
			return nil, err
		}
		end, err := parseClock(w.EndTime, day, loc)
		if err != nil {
			return nil, err
		}
		for _, raw := range w.ActiveCourts {
			n, err := parseCourtNumber(raw)
			if err != nil {
				return nil, err
			}
			out[n] = courtWindow{start: start, end: end}
		}
	}
	return out, nil
}

// applyLayoutLocked resets every court to inactive before applying layout so
// courts dropped from the layout do not keep a stale flag.
func (e *Engine) applyLayoutLocked(layout map[int]courtWindow) {
	now := e.now()
	for _, c := range e.courts {
		c.Active = false
	}
	for n, w := range layout {
		c, ok := e.courts[n]
		if !ok {
			c = newCourt(n, now)
			e.courts[n] = c
		}
		c.Active = true
		c.StartTime = w.start
		c.EndTime = w.end
	}
}

// recomputeActiveLocked rebuilds the active set, unassigns every court that
// just left it and re-arms the minute timer.
func (e *Engine) recomputeActiveLocked(ctx context.Context) error {
	now := e.now()
	e.mu.Lock()
	next := map[int]bool{}
	for n, c := range e.courts {
		if c.Active && c.EndTime.After(now) {
			next[n] = true
		}
	}
	var lapsed []int
	for n := range e.active {
		if !next[n] {
			lapsed = append(lapsed, n)
		}
	}
	sort.Ints(lapsed)
	e.active = next
	e.armWindowTimerLocked(now)
	e.mu.Unlock()

	var errs []error
	for _, n := range lapsed {
		log.Info().Str("session_id", e.sessionID).Int("court", n).Msg("court window ended")
		e.emit(EventCourtBecameInactive, map[string]any{"court": n})
		if err := e.unassignLocked(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("unassign lapsed court %d: %w", n, err))
		}
	}
	if err := e.recomputeRostersLocked(ctx); err != nil {
		errs = append(errs, err)
	}
	e.scheduleWaitList()
	return errors.Join(errs...)
}

func nextMinute(now time.Time) time.Time {
	return now.Truncate(time.Minute).Add(time.Minute)
}

func (e *Engine) armWindowTimerLocked(now time.Time) {
	if e.closed {
		return
	}
	if e.windowTimer != nil {
		e.windowTimer.Stop()
	}
	e.windowTimer = time.AfterFunc(nextMinute(now).Sub(now), e.onWindowTick)
}

func (e *Engine) onWindowTick() {
	ctx, cancel := context.WithTimeout(context.Background(), callbackTimeout)
	defer cancel()
	e.syncMu.Lock()
	defer e.syncMu.Unlock()
	if e.ensureOpen() != nil {
		return
	}
	if err := e.recomputeActiveLocked(ctx); err != nil {
		log.Error().Err(err).Str("session_id", e.sessionID).Msg("active court recompute failed")
	}
}
