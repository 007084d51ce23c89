package model

import "time"

type RoomPhase = string

const (
	PhaseLobby    RoomPhase = "lobby"
	PhasePlanning RoomPhase = "planning"
)

const (
	RoomCodeLen      = 6
	RoomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	RoomCapacity     = 4
)

// Room mirrors one row of the shared rooms table. SelectedCountry and the
// coordinate pair are never both set: picking one clears the other.
type Room struct {
	Code            string   `json:"code"`
	MasterID        string   `json:"master_id"`
	IsPublic        bool     `json:"is_public"`
	PlanningStarted bool     `json:"planning_started"`
	SelectedCountry *string  `json:"selected_country"`
	SelectedLat     *float64 `json:"selected_opportunity_lat"`
	SelectedLng     *float64 `json:"selected_opportunity_lng"`

	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

func (r Room) Phase() RoomPhase {
	if r.PlanningStarted {
		return PhasePlanning
	}
	return PhaseLobby
}

// Selection is the room-wide shared focus: a country, a single point, or none.
type Selection struct {
	Country *string
	Lat     *float64
	Lng     *float64
}

func SelectionNone() Selection {
	return Selection{}
}

func SelectionCountry(country string) Selection {
	return Selection{Country: &country}
}

func SelectionPoint(lat, lng float64) Selection {
	return Selection{Lat: &lat, Lng: &lng}
}

// RoomChange is one change-feed event: the room row before and after a
// committed update. Delivered at-least-once, in commit order per row.
type RoomChange struct {
	Previous Room `json:"previous"`
	New      Room `json:"new"`
}
