package sdk

import "encoding/json"

// Response represents the standard API response
type Response struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Room is a conversation as returned by the IM server's room list.
// Participants are either user objects or bare, unresolved user ids.
type Room struct {
	Id           string            `json:"_id"`
	Name         string            `json:"name"`
	Type         string            `json:"type"`
	Avatar       string            `json:"avatar,omitempty"`
	Participants []json.RawMessage `json:"participants"`
	LastMsgData  json.RawMessage   `json:"lastMsgData,omitempty"`
	NotSeenCount int64             `json:"notSeenCount"`
	CreatedAt    json.RawMessage   `json:"createdAt,omitempty"`
}

// RoomUser is a resolved participant
type RoomUser struct {
	Id     string `json:"_id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}
