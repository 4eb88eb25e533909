package entity

import (
	"sort"
	"strings"
	"time"
)

// Room is a two-party conversation. Its id is derived from the participant
// pair, so at most one room can exist per pair of users.
type Room struct {
	Id           string               `bson:"_id" json:"id"`
	Participants []string             `bson:"participants" json:"participants"`
	CreatedAt    time.Time            `bson:"createdAt" json:"createdAt"`
	LastMessage  LastMessage          `bson:"lastMessage" json:"lastMessage"`
	LastRead     map[string]time.Time `bson:"lastRead" json:"lastRead"`
}

// LastMessage is a denormalized preview of the room's most recent message,
// kept on the room document so the room list renders without a join.
type LastMessage struct {
	Text      string    `bson:"text" json:"text"`
	SenderId  string    `bson:"senderId" json:"senderId"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}

// RoomSummary is one entry of a user's room list.
type RoomSummary struct {
	Room        Room   `json:"room"`
	OtherUserId string `json:"otherUserId"`
	UnreadCount int64  `json:"unreadCount"`
}

// RoomID returns the canonical room id for an unordered user pair:
// the two ids sorted and joined with "_". RoomID(a, b) == RoomID(b, a).
func RoomID(userId1, userId2 string) string {
	pair := []string{userId1, userId2}
	sort.Strings(pair)
	return strings.Join(pair, "_")
}

// Other returns the participant that is not userId, or "" if userId is not
// a participant of the room.
func (r Room) Other(userId string) string {
	for _, p := range r.Participants {
		if p != userId {
			return p
		}
	}
	return ""
}

// HasParticipant reports whether userId is one of the room's two participants.
func (r Room) HasParticipant(userId string) bool {
	for _, p := range r.Participants {
		if p == userId {
			return true
		}
	}
	return false
}

// ReadUpTo returns the user's last-read time, or the zero time if the user
// has never marked the room read.
func (r Room) ReadUpTo(userId string) time.Time {
	if r.LastRead == nil {
		return time.Time{}
	}
	return r.LastRead[userId]
}
