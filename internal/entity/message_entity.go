package entity

import "time"

// DeletedText replaces the text of a soft-deleted message. The original
// text is not recoverable once replaced.
const DeletedText = "This message was deleted"

type Message struct {
	Id         string    `bson:"_id" json:"id"`
	RoomId     string    `bson:"roomId" json:"roomId"`
	SenderId   string    `bson:"senderId" json:"senderId"`
	SenderName string    `bson:"senderName" json:"senderName"`
	Text       string    `bson:"text" json:"text"`
	Timestamp  time.Time `bson:"timestamp" json:"timestamp"`
	Edited     bool      `bson:"edited" json:"edited"`
	Deleted    bool      `bson:"deleted" json:"deleted"`
}

// MessageCursor is a position in a room's descending message order:
// the (timestamp, id) pair of the last message already loaded. The id
// disambiguates messages sharing an exact timestamp, so a page boundary
// between them loses nothing. A cursor with only a timestamp is still
// accepted and cuts on timestamp alone.
type MessageCursor struct {
	Timestamp time.Time `json:"timestamp"`
	Id        string    `json:"id,omitempty"`
}

func (c MessageCursor) IsZero() bool {
	return c.Timestamp.IsZero() && c.Id == ""
}

// MessagePageFilter selects one descending page of a room's messages.
// Limit is the page size; Before, when non-zero, is the cursor: only
// messages strictly older than that position are returned.
type MessagePageFilter struct {
	RoomId string
	Limit  int
	Before MessageCursor
}

// PageInfo describes whether older messages exist beyond a returned page
// and where the next page starts.
type PageInfo struct {
	HasMore    bool          `json:"hasMore"`
	NextCursor MessageCursor `json:"nextCursor"`
}
