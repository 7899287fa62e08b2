package sdk

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mbeoliero/convsync/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const roomListBody = `{"code":0,"msg":"success","data":[
	{"_id":"r1","name":"","type":"private","participants":[{"_id":"u_me","name":"Me"},{"_id":"u2","name":"Ann","avatar":"ann.png"}],
	 "lastMsgData":{"_id":"m1","sender":{"_id":"u2"},"message":"hi","createdAt":"2024-01-01T00:00:00Z","seen":[]},
	 "notSeenCount":2,"createdAt":"2023-12-01T00:00:00Z"},
	{"_id":"r2","name":"Team","type":"group","avatar":"team.png","participants":["u_me","u3"],"lastMsgData":null,"notSeenCount":0,"createdAt":1700000000000},
	{"_id":"r3","name":"Odd","type":"broadcast","participants":[]},
	{"_id":"r4","type":"private","participants":[{"_id":"u_me","name":"Me"},"u9"],"lastMsgData":{"_id":"bad"}}
]}`

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL, WithToken("tok"))
	require.NoError(t, err)
	return c
}

func TestGetConversationSeeds(t *testing.T) {
	var auth string
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.Equal(t, "/room/list", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(roomListBody))
	})

	seeds, err := c.GetConversationSeeds(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", auth)
	require.Len(t, seeds, 3)

	private := seeds[0]
	assert.Equal(t, "r1", private.Id)
	assert.Equal(t, entity.KindPrivate, private.Kind)
	require.Len(t, private.Participants, 2)
	assert.Equal(t, "Ann", private.Participants[1].Name)
	require.NotNil(t, private.LastMessage)
	assert.Equal(t, "u2", private.LastMessage.SenderId)
	assert.Equal(t, int64(1704067200000), private.LastMessage.CreatedAt)
	assert.Equal(t, int64(2), private.UnseenCount)
	assert.Equal(t, int64(1701388800000), private.CreatedAt)

	group := seeds[1]
	assert.Equal(t, entity.KindGroup, group.Kind)
	assert.Equal(t, []*entity.Participant{nil, nil}, group.Participants)
	assert.Nil(t, group.LastMessage)
	assert.Equal(t, int64(1700000000000), group.CreatedAt)

	unresolved := seeds[2]
	assert.Equal(t, "r4", unresolved.Id)
	assert.NotNil(t, unresolved.Participants[0])
	assert.Nil(t, unresolved.Participants[1])
	assert.Nil(t, unresolved.LastMessage)
}

func TestGetRoom(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/room/info", r.URL.Path)
		assert.Equal(t, "r2", r.URL.Query().Get("room_id"))
		_, _ = w.Write([]byte(`{"code":0,"msg":"success","data":{"_id":"r2","name":"Team","type":"group"}}`))
	})

	room, err := c.GetRoom(context.Background(), "r2")
	require.NoError(t, err)
	assert.Equal(t, "Team", room.Name)
}

func TestGetRoomList_APIError(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":2001,"msg":"token invalid"}`))
	})

	_, err := c.GetRoomList(context.Background())
	require.Error(t, err)
	assert.True(t, IsErrorCode(err, CodeTokenInvalid))
	assert.True(t, IsUnauthorized(err))
}

func TestGetRoomList_BadBody(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`<html>bad gateway</html>`))
	})

	_, err := c.GetRoomList(context.Background())
	assert.Error(t, err)
}
