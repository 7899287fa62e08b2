package transport

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/mbeoliero/convsync/internal/entity"
	"github.com/mbeoliero/convsync/pkg/constant"
	"github.com/mbeoliero/convsync/pkg/errcode"
	"github.com/tidwall/gjson"
)

// Frame is the wire envelope shared by inbound events and outbound commands
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Decode validates a wire frame and narrows it to one of the closed event variants.
// Malformed frames return ErrInvalidEvent, unsupported event names ErrUnknownEvent.
func Decode(frame []byte) (entity.Event, error) {
	if !gjson.ValidBytes(frame) {
		return nil, errcode.ErrInvalidEvent.Wrap(errcode.ErrInvalidProtocol)
	}

	name := gjson.GetBytes(frame, "event")
	if name.Type != gjson.String || name.Str == "" {
		return nil, errcode.ErrInvalidEvent
	}
	data := gjson.GetBytes(frame, "data")

	switch name.Str {
	case constant.EventNewMessage:
		return decodeNewMessage(data)
	case constant.EventUpdateLastMsgData:
		return decodeLastMessageUpdate(data)
	case constant.EventSeenMsg:
		return decodeSeenAck(data)
	case constant.EventOnlineUsers:
		return decodeOnlineUsers(data)
	default:
		return nil, errcode.ErrUnknownEvent.Wrap(fmt.Errorf("event %q", name.Str))
	}
}

// EncodeJoining builds the outbound frame announcing that the user opened a conversation.
// The payload is the bare conversation id.
func EncodeJoining(conversationId string) ([]byte, error) {
	data, err := json.Marshal(conversationId)
	if err != nil {
		return nil, err
	}
	return json.Marshal(&Frame{Event: constant.EventJoining, Data: data})
}

func decodeNewMessage(data gjson.Result) (entity.Event, error) {
	roomId, err := requireRoomId(data)
	if err != nil {
		return nil, err
	}

	createdAt, _ := parseTime(data.Get("createdAt"))
	return &entity.NewMessage{
		ConvId:    roomId,
		SenderId:  narrowUserId(data.Get("sender")),
		CreatedAt: createdAt,
		MessageId: data.Get("_id").String(),
	}, nil
}

func decodeLastMessageUpdate(data gjson.Result) (entity.Event, error) {
	roomId, err := requireRoomId(data)
	if err != nil {
		return nil, err
	}

	last, err := decodeMessage(data.Get("msgData"))
	if err != nil {
		return nil, err
	}

	return &entity.LastMessageUpdate{ConvId: roomId, Message: last}, nil
}

// DecodeMessage parses a message object as carried by updateLastMsgData and by the
// initial room list
func DecodeMessage(raw []byte) (*entity.LastMessage, error) {
	if !gjson.ValidBytes(raw) {
		return nil, errcode.ErrInvalidEvent.Wrap(errcode.ErrInvalidProtocol)
	}
	return decodeMessage(gjson.ParseBytes(raw))
}

// ParseTime reads unix milliseconds from a raw JSON number or string
func ParseTime(raw []byte) (int64, bool) {
	return parseTime(gjson.ParseBytes(raw))
}

func decodeMessage(msg gjson.Result) (*entity.LastMessage, error) {
	if !msg.IsObject() {
		return nil, errcode.ErrInvalidEvent
	}
	createdAt, ok := parseTime(msg.Get("createdAt"))
	if !ok {
		return nil, errcode.ErrInvalidEvent
	}

	last := &entity.LastMessage{
		Id:        msg.Get("_id").String(),
		SenderId:  narrowUserId(msg.Get("sender")),
		HasVoice:  hasVoice(msg.Get("voiceData")),
		CreatedAt: createdAt,
	}
	if text := msg.Get("message"); text.Type == gjson.String {
		s := text.Str
		last.Text = &s
	}
	for _, seen := range msg.Get("seen").Array() {
		if id := narrowUserId(seen); id != "" {
			last.SeenBy = append(last.SeenBy, id)
		}
	}
	if pinnedAt, ok := parseTime(msg.Get("pinnedAt")); ok {
		last.PinnedAt = &pinnedAt
	}
	return last, nil
}

func decodeSeenAck(data gjson.Result) (entity.Event, error) {
	roomId, err := requireRoomId(data)
	if err != nil {
		return nil, err
	}
	return &entity.SeenAck{ConvId: roomId}, nil
}

func decodeOnlineUsers(data gjson.Result) (entity.Event, error) {
	if !data.IsArray() {
		return nil, errcode.ErrInvalidEvent
	}

	users := data.Array()
	ids := make([]string, 0, len(users))
	for _, u := range users {
		var id string
		if u.IsObject() {
			id = u.Get("userID").String()
		} else if u.Type == gjson.String {
			id = u.Str
		}
		if id != "" {
			ids = append(ids, id)
		}
	}
	return &entity.PresenceSnapshot{UserIds: ids}, nil
}

func requireRoomId(data gjson.Result) (string, error) {
	if !data.IsObject() {
		return "", errcode.ErrInvalidEvent
	}
	roomId := data.Get("roomID")
	if roomId.Type != gjson.String || roomId.Str == "" {
		return "", errcode.ErrInvalidEvent
	}
	return roomId.Str, nil
}

// narrowUserId accepts a bare user id or a user object carrying _id
func narrowUserId(v gjson.Result) string {
	switch {
	case v.Type == gjson.String:
		return v.Str
	case v.IsObject():
		return v.Get("_id").String()
	default:
		return ""
	}
}

func hasVoice(v gjson.Result) bool {
	switch {
	case v.IsObject():
		return true
	case v.Type == gjson.String:
		return v.Str != ""
	default:
		return false
	}
}

// parseTime reads unix milliseconds from a number, a numeric string or an RFC3339 string
func parseTime(v gjson.Result) (int64, bool) {
	switch v.Type {
	case gjson.Number:
		return v.Int(), true
	case gjson.String:
		if ms, err := strconv.ParseInt(v.Str, 10, 64); err == nil {
			return ms, true
		}
		t, err := time.Parse(time.RFC3339Nano, v.Str)
		if err != nil {
			return 0, false
		}
		return t.UnixMilli(), true
	default:
		return 0, false
	}
}
