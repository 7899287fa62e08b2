package entity

// Event is an inbound transport or local event. The set of implementations is closed:
// events are validated once by the transport codec and never re-inferred downstream.
type Event interface {
	// ConversationId returns the conversation the event is scoped to, empty for global events
	ConversationId() string
	isEvent()
}

// NewMessage announces a message; it drives the unseen counter only
type NewMessage struct {
	ConvId    string `json:"conversation_id"`
	SenderId  string `json:"sender_id"`
	CreatedAt int64  `json:"created_at"`
	MessageId string `json:"message_id"`
}

// LastMessageUpdate carries the message that may replace the card's last message
type LastMessageUpdate struct {
	ConvId  string       `json:"conversation_id"`
	Message *LastMessage `json:"message"`
}

// SeenAck is the transport acknowledgement that a message was seen
type SeenAck struct {
	ConvId string `json:"conversation_id"`
}

// ManualCountReset is the local "user viewed conversation" signal
type ManualCountReset struct {
	ConvId string `json:"conversation_id"`
}

// PresenceSnapshot replaces the online user set wholesale
type PresenceSnapshot struct {
	UserIds []string `json:"user_ids"`
}

func (e *NewMessage) ConversationId() string        { return e.ConvId }
func (e *LastMessageUpdate) ConversationId() string { return e.ConvId }
func (e *SeenAck) ConversationId() string           { return e.ConvId }
func (e *ManualCountReset) ConversationId() string  { return e.ConvId }
func (e *PresenceSnapshot) ConversationId() string  { return "" }

func (*NewMessage) isEvent()        {}
func (*LastMessageUpdate) isEvent() {}
func (*SeenAck) isEvent()           {}
func (*ManualCountReset) isEvent()  {}
func (*PresenceSnapshot) isEvent()  {}

// IsNil reports whether ev is nil or a nil pointer of one of the event variants
func IsNil(ev Event) bool {
	switch e := ev.(type) {
	case nil:
		return true
	case *NewMessage:
		return e == nil
	case *LastMessageUpdate:
		return e == nil
	case *SeenAck:
		return e == nil
	case *ManualCountReset:
		return e == nil
	case *PresenceSnapshot:
		return e == nil
	default:
		return false
	}
}

// EventName returns a short name for logging
func EventName(ev Event) string {
	switch ev.(type) {
	case *NewMessage:
		return "new_message"
	case *LastMessageUpdate:
		return "last_message_update"
	case *SeenAck:
		return "seen_ack"
	case *ManualCountReset:
		return "manual_count_reset"
	case *PresenceSnapshot:
		return "presence_snapshot"
	default:
		return "unknown"
	}
}
