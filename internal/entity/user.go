package entity

import "github.com/mbeoliero/convsync/pkg/constant"

// Participant represents a conversation member as delivered by the initial load.
// A nil *Participant in a participant list is an entry the server could not resolve.
type Participant struct {
	Id     string `json:"_id"`
	Name   string `json:"name,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

// Identity is the name/avatar pair a conversation is displayed with
type Identity struct {
	Id     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// ResolveIdentity resolves the display identity of a conversation.
//
// Private conversations show the other participant. When no other participant
// resolves, the current user's own entry is used (self-conversation), and when even
// that is missing the identity falls back to the saved-messages name.
// Group and channel conversations show the room's own name and avatar.
func ResolveIdentity(kind ConversationKind, roomId, roomName, roomAvatar string, participants []*Participant, selfId string) Identity {
	if !kind.IsPrivate() {
		return Identity{Id: roomId, Name: roomName, Avatar: roomAvatar}
	}

	for _, p := range participants {
		if p != nil && p.Id != "" && p.Id != selfId {
			return Identity{Id: p.Id, Name: p.Name, Avatar: p.Avatar}
		}
	}

	for _, p := range participants {
		if p != nil && p.Id == selfId {
			name := p.Name
			if name == "" {
				name = constant.SavedMessagesName
			}
			return Identity{Id: p.Id, Name: name, Avatar: p.Avatar}
		}
	}

	return Identity{Name: constant.SavedMessagesName}
}
