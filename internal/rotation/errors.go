package rotation

import (
	"errors"
	"fmt"
	"net/http"

	"court-rotation/internal/store"
)

var (
	ErrSessionNotSelected   = errors.New("session_not_selected")
	ErrCourtNotInitialized  = errors.New("court_not_initialized")
	ErrCourtInactive        = errors.New("court_inactive")
	ErrTooManyPlayers       = errors.New("too_many_players")
	ErrDuplicatePlayer      = errors.New("duplicate_player")
	ErrPlayerAlreadyOnCourt = errors.New("player_already_on_court")
	ErrPlayerNotOnCourt     = errors.New("player_not_on_court")
	ErrUnknownPlayer        = errors.New("unknown_player")
	ErrInvalidCourtState    = errors.New("invalid_court_state")
	ErrEngineClosed         = errors.New("engine_closed")
)

// ConfigurationError is a malformed session layout. It is fatal to session
// selection.
type ConfigurationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// InvariantViolation reports a court holding more open records than it has
// slots. The court has already been force-unassigned when this is returned.
type InvariantViolation struct {
	Court int
	Open  int
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("court %d has %d open records, max %d", e.Court, e.Open, MaxPlayer)
}

func MapError(err error) (int, string) {
	var cfgErr *ConfigurationError
	var inv *InvariantViolation
	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.As(err, &cfgErr):
		return http.StatusUnprocessableEntity, "configuration_error"
	case errors.As(err, &inv):
		return http.StatusConflict, "invariant_violation"
	case errors.Is(err, ErrSessionNotSelected):
		return http.StatusConflict, "session_not_selected"
	case errors.Is(err, ErrCourtNotInitialized):
		return http.StatusNotFound, "court_not_initialized"
	case errors.Is(err, ErrCourtInactive):
		return http.StatusConflict, "court_inactive"
	case errors.Is(err, ErrTooManyPlayers):
		return http.StatusBadRequest, "too_many_players"
	case errors.Is(err, ErrDuplicatePlayer):
		return http.StatusBadRequest, "duplicate_player"
	case errors.Is(err, ErrPlayerAlreadyOnCourt):
		return http.StatusConflict, "player_already_on_court"
	case errors.Is(err, ErrPlayerNotOnCourt):
		return http.StatusConflict, "player_not_on_court"
	case errors.Is(err, ErrUnknownPlayer):
		return http.StatusNotFound, "unknown_player"
	case errors.Is(err, ErrInvalidCourtState):
		return http.StatusBadRequest, "invalid_court_state"
	case errors.Is(err, ErrEngineClosed):
		return http.StatusGone, "session_closed"
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not_found"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
