package model

// Participant is a (room, user) pair. IsMaster is set once at insertion for
// the creator and never updated.
type Participant struct {
	RoomCode string `json:"room_code"`
	UserID   string `json:"user_id"`
	IsMaster bool   `json:"is_master"`
}
