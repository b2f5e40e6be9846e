package domain

import "time"

// Room is the time-boxed pairing of a provider (party A) and a client (party B).
type Room struct {
	ID        string    `db:"id" json:"id"`
	PartyAID  int64     `db:"party_a_id" json:"partyAId"`
	PartyBID  int64     `db:"party_b_id" json:"partyBId"`
	StartTime time.Time `db:"start_time" json:"startTime"`
	EndTime   time.Time `db:"end_time" json:"endTime"`
}

func (r *Room) HasParty(userID int64) bool {
	return userID == r.PartyAID || userID == r.PartyBID
}

// RoleOf returns the role userID plays in the room, or "" for strangers.
func (r *Room) RoleOf(userID int64) Role {
	switch userID {
	case r.PartyAID:
		return RoleProvider
	case r.PartyBID:
		return RoleClient
	default:
		return ""
	}
}

// Window reports where t falls relative to [StartTime, EndTime]:
// -1 before start, 0 inside (bounds included), 1 after end.
func (r *Room) Window(t time.Time) int {
	switch {
	case t.Before(r.StartTime):
		return -1
	case t.After(r.EndTime):
		return 1
	default:
		return 0
	}
}
