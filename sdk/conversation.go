package sdk

import (
	"context"
	"encoding/json"

	"github.com/mbeoliero/convsync/internal/entity"
	"github.com/mbeoliero/convsync/internal/transport"
)

// GetRoomList gets all rooms of the current user
func (c *Client) GetRoomList(ctx context.Context) ([]*Room, error) {
	var result []*Room
	if err := c.get(ctx, "/room/list", nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// GetRoom gets a specific room
func (c *Client) GetRoom(ctx context.Context, roomId string) (*Room, error) {
	params := map[string]string{"room_id": roomId}
	var result Room
	if err := c.get(ctx, "/room/info", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetConversationSeeds fetches the room list and converts it into seeds.
// Rooms with an unknown type or no id are skipped.
func (c *Client) GetConversationSeeds(ctx context.Context) ([]*entity.ConversationSeed, error) {
	rooms, err := c.GetRoomList(ctx)
	if err != nil {
		return nil, err
	}

	seeds := make([]*entity.ConversationSeed, 0, len(rooms))
	for _, room := range rooms {
		if seed, ok := room.ToSeed(); ok {
			seeds = append(seeds, seed)
		}
	}
	return seeds, nil
}

// ToSeed converts the room into the initial load payload of a conversation.
// Unresolved participants become nil entries; a malformed last message is dropped.
func (r *Room) ToSeed() (*entity.ConversationSeed, bool) {
	if r == nil || r.Id == "" {
		return nil, false
	}
	kind, ok := entity.ParseConversationKind(r.Type)
	if !ok {
		return nil, false
	}

	seed := &entity.ConversationSeed{
		Id:           r.Id,
		Kind:         kind,
		Name:         r.Name,
		Avatar:       r.Avatar,
		Participants: make([]*entity.Participant, len(r.Participants)),
		UnseenCount:  r.NotSeenCount,
	}

	for i, raw := range r.Participants {
		var user RoomUser
		if err := json.Unmarshal(raw, &user); err != nil || user.Id == "" {
			continue
		}
		seed.Participants[i] = &entity.Participant{Id: user.Id, Name: user.Name, Avatar: user.Avatar}
	}

	if len(r.LastMsgData) > 0 && string(r.LastMsgData) != "null" {
		if last, err := transport.DecodeMessage(r.LastMsgData); err == nil {
			seed.LastMessage = last
		}
	}
	if len(r.CreatedAt) > 0 {
		seed.CreatedAt, _ = transport.ParseTime(r.CreatedAt)
	}

	return seed, true
}
