package websocket

import "time"

// Command types a client may send over the socket.
const (
	CmdSubscribeRooms    = "subscribe_rooms"
	CmdSubscribeMessages = "subscribe_messages"
	CmdUnsubscribe       = "unsubscribe"
	CmdSend              = "send"
	CmdMarkRead          = "mark_read"
	CmdEdit              = "edit"
	CmdDelete            = "delete"
)

// Command is the envelope for every client frame; which fields matter
// depends on Type.
type Command struct {
	Type      string    `json:"type"`
	SubId     string    `json:"subId,omitempty"`
	RoomId    string    `json:"roomId,omitempty"`
	ToUserId  string    `json:"toUserId,omitempty"`
	MessageId string    `json:"messageId,omitempty"`
	Text      string    `json:"text,omitempty"`
	PageSize  int       `json:"pageSize,omitempty"`
	Cursor    time.Time `json:"cursor,omitempty"`
	CursorId  string    `json:"cursorId,omitempty"`
}
