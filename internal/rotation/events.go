package rotation

const (
	EventAddedPlayersToCourt     = "added_players_to_court"
	EventRemovedPlayersFromCourt = "removed_players_from_court"
	EventPlayerAttendanceChanged = "player_attendance_changed"
	EventPlayerQueueStateChanged = "player_queue_state_changed"
	EventPlayerPauseStateChanged = "player_pause_state_changed"
	EventPlayersSwapped          = "players_swapped"
	EventCourtStateChanged       = "court_state_changed"
	EventCourtBecameInactive     = "court_became_inactive"
	EventViewsChanged            = "views_changed"
)
