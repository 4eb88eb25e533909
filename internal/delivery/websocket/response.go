package websocket

import "medichat/internal/entity"

type RoomsEvent struct {
	Type  string               `json:"type"` // "rooms"
	SubId string               `json:"subId"`
	Rooms []entity.RoomSummary `json:"rooms"`
}

type MessagesEvent struct {
	Type     string           `json:"type"` // "messages"
	SubId    string           `json:"subId"`
	RoomId   string           `json:"roomId"`
	Messages []entity.Message `json:"messages"`
}

type PageEvent struct {
	Type     string          `json:"type"` // "page"
	SubId    string          `json:"subId"`
	RoomId   string          `json:"roomId"`
	PageInfo entity.PageInfo `json:"pageInfo"`
}

type AckEvent struct {
	Type  string `json:"type"` // "ack"
	Of    string `json:"of"`
	SubId string `json:"subId,omitempty"`
}

type NewMessageEvent struct {
	Type    string         `json:"type"` // "message:new"
	Message entity.Message `json:"message"`
}

type ErrorEvent struct {
	Type    string `json:"type"` // "error"
	Of      string `json:"of,omitempty"`
	Message string `json:"message"`
}
