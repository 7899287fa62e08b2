package entity

import "github.com/mbeoliero/convsync/pkg/constant"

// ConversationSeed is the initial load payload a summary is created from
type ConversationSeed struct {
	Id           string           `json:"id"`
	Kind         ConversationKind `json:"kind"`
	Name         string           `json:"name"`
	Avatar       string           `json:"avatar,omitempty"`
	Participants []*Participant   `json:"participants,omitempty"`
	LastMessage  *LastMessage     `json:"last_message,omitempty"`
	UnseenCount  int64            `json:"unseen_count"`
	CreatedAt    int64            `json:"created_at"`
}

// ConversationSummary is the live state of one conversation in the visible list
type ConversationSummary struct {
	Id           string           `json:"id"`
	Kind         ConversationKind `json:"kind"`
	DisplayName  string           `json:"display_name"`
	AvatarRef    string           `json:"avatar_ref,omitempty"`
	PeerId       string           `json:"peer_id,omitempty"`
	Participants []*Participant   `json:"participants,omitempty"`
	LastMessage  *LastMessage     `json:"last_message,omitempty"`
	UnseenCount  int64            `json:"unseen_count"`
	IsOnline     bool             `json:"is_online"`
	IsActive     bool             `json:"is_active"`
	DraftText    string           `json:"draft_text"`
	ColorBucket  string           `json:"color_bucket,omitempty"`
	CreatedAt    int64            `json:"created_at"`
	Version      uint64           `json:"version"`
}

// NewConversationSummary builds a summary from its seed, resolving the display identity
func NewConversationSummary(seed *ConversationSeed, selfId string) *ConversationSummary {
	ident := ResolveIdentity(seed.Kind, seed.Id, seed.Name, seed.Avatar, seed.Participants, selfId)

	participants := make([]*Participant, len(seed.Participants))
	for i, p := range seed.Participants {
		if p != nil {
			cp := *p
			participants[i] = &cp
		}
	}

	unseen := seed.UnseenCount
	if unseen < 0 {
		unseen = 0
	}

	return &ConversationSummary{
		Id:           seed.Id,
		Kind:         seed.Kind,
		DisplayName:  ident.Name,
		AvatarRef:    ident.Avatar,
		PeerId:       ident.Id,
		Participants: participants,
		LastMessage:  seed.LastMessage.Clone(),
		UnseenCount:  unseen,
		CreatedAt:    seed.CreatedAt,
	}
}

// Clone returns a deep copy safe to hand to readers
func (s *ConversationSummary) Clone() *ConversationSummary {
	if s == nil {
		return nil
	}
	c := *s
	c.LastMessage = s.LastMessage.Clone()
	if s.Participants != nil {
		c.Participants = make([]*Participant, len(s.Participants))
		for i, p := range s.Participants {
			if p != nil {
				cp := *p
				c.Participants[i] = &cp
			}
		}
	}
	return &c
}

// IsSavedMessages checks if this is the current user's conversation with themself
func (s *ConversationSummary) IsSavedMessages(selfId string) bool {
	return s.Kind.IsPrivate() && (s.PeerId == "" || s.PeerId == selfId)
}

// Title returns the name shown on the card
func (s *ConversationSummary) Title(selfId string) string {
	if s.IsSavedMessages(selfId) {
		return constant.SavedMessagesName
	}
	return s.DisplayName
}

// CardText returns the preview line for the last message
func (s *ConversationSummary) CardText() string {
	if s.LastMessage == nil {
		return ""
	}
	if s.LastMessage.Text != nil && *s.LastMessage.Text != "" {
		return *s.LastMessage.Text
	}
	if s.LastMessage.HasVoice {
		return constant.VoiceMessageText
	}
	return ""
}

// DeliveryStatus returns sent/seen for the user's own last message, empty otherwise
func (s *ConversationSummary) DeliveryStatus(selfId string) string {
	if s.LastMessage == nil || s.LastMessage.SenderId != selfId {
		return ""
	}
	if s.LastMessage.IsSeen() {
		return constant.DeliverySeen
	}
	return constant.DeliverySent
}

// LastActivity returns the time used to order the list
func (s *ConversationSummary) LastActivity() int64 {
	if s.LastMessage != nil && s.LastMessage.CreatedAt > 0 {
		return s.LastMessage.CreatedAt
	}
	return s.CreatedAt
}

// ColorKey returns the identifier the conversation's identity color is assigned on
func (s *ConversationSummary) ColorKey() string {
	return s.Id
}
