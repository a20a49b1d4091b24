package directory

import "time"

type PlayerInput struct {
	ID               string     `json:"id"`
	FirstName        string     `json:"first_name"`
	LastName         string     `json:"last_name"`
	Level            int        `json:"level"`
	MembershipExpiry *time.Time `json:"membership_expiry"`
}

type PlayerItem struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	FullName  string `json:"full_name"`
	Level     int    `json:"level"`
	Member    bool   `json:"member"`
}

type PlayersResponse struct {
	Items []PlayerItem `json:"items"`
}

type UpsertResponse struct {
	Upserted int `json:"upserted"`
}
