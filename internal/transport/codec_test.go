package transport

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/mbeoliero/convsync/internal/entity"
	"github.com/mbeoliero/convsync/pkg/errcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_NewMessageSenderShapes(t *testing.T) {
	tests := []struct {
		name  string
		frame string
	}{
		{"string sender", `{"event":"newMessage","data":{"roomID":"r1","sender":"u1","createdAt":1700000000000,"_id":"m1"}}`},
		{"object sender", `{"event":"newMessage","data":{"roomID":"r1","sender":{"_id":"u1","name":"Ann"},"createdAt":1700000000000,"_id":"m1"}}`},
		{"rfc3339 time", `{"event":"newMessage","data":{"roomID":"r1","sender":"u1","createdAt":"2023-11-14T22:13:20Z","_id":"m1"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := Decode([]byte(tt.frame))
			require.NoError(t, err)

			msg, ok := ev.(*entity.NewMessage)
			require.True(t, ok)
			assert.Equal(t, "r1", msg.ConvId)
			assert.Equal(t, "u1", msg.SenderId)
			assert.Equal(t, "m1", msg.MessageId)
			assert.Equal(t, int64(1700000000000), msg.CreatedAt)
		})
	}
}

func TestDecode_LastMessageUpdate(t *testing.T) {
	frame := `{"event":"updateLastMsgData","data":{"roomID":"r1","msgData":{
		"_id":"m9","sender":{"_id":"u2"},"message":"hello","voiceData":null,
		"createdAt":1700000000123,"seen":["u1",{"_id":"u3"}],"pinnedAt":1700000000999}}}`

	ev, err := Decode([]byte(frame))
	require.NoError(t, err)

	upd, ok := ev.(*entity.LastMessageUpdate)
	require.True(t, ok)
	assert.Equal(t, "r1", upd.ConversationId())
	require.NotNil(t, upd.Message)
	assert.Equal(t, "m9", upd.Message.Id)
	assert.Equal(t, "u2", upd.Message.SenderId)
	require.NotNil(t, upd.Message.Text)
	assert.Equal(t, "hello", *upd.Message.Text)
	assert.False(t, upd.Message.HasVoice)
	assert.Equal(t, int64(1700000000123), upd.Message.CreatedAt)
	assert.Equal(t, []string{"u1", "u3"}, upd.Message.SeenBy)
	require.NotNil(t, upd.Message.PinnedAt)
	assert.Equal(t, int64(1700000000999), *upd.Message.PinnedAt)
}

func TestDecode_VoiceOnlyMessage(t *testing.T) {
	frame := `{"event":"updateLastMsgData","data":{"roomID":"r1","msgData":{
		"_id":"m1","sender":"u2","voiceData":{"src":"voice.ogg","duration":3},"createdAt":5}}}`

	ev, err := Decode([]byte(frame))
	require.NoError(t, err)

	upd := ev.(*entity.LastMessageUpdate)
	assert.Nil(t, upd.Message.Text)
	assert.True(t, upd.Message.HasVoice)
	assert.Nil(t, upd.Message.PinnedAt)
	assert.Empty(t, upd.Message.SeenBy)
}

func TestDecode_SeenAndPresence(t *testing.T) {
	ev, err := Decode([]byte(`{"event":"seenMsg","data":{"roomID":"r1","seenBy":"u2"}}`))
	require.NoError(t, err)
	assert.Equal(t, &entity.SeenAck{ConvId: "r1"}, ev)

	ev, err = Decode([]byte(`{"event":"onlineUsers","data":[{"userID":"u1"},{"userID":""},{"other":1},"u2"]}`))
	require.NoError(t, err)
	assert.Equal(t, &entity.PresenceSnapshot{UserIds: []string{"u1", "u2"}}, ev)

	ev, err = Decode([]byte(`{"event":"onlineUsers","data":[]}`))
	require.NoError(t, err)
	assert.Empty(t, ev.(*entity.PresenceSnapshot).UserIds)
}

func TestDecode_Rejects(t *testing.T) {
	invalid := []string{
		`not json`,
		`{"data":{"roomID":"r1"}}`,
		`{"event":42}`,
		`{"event":"newMessage","data":{"sender":"u1"}}`,
		`{"event":"newMessage","data":{"roomID":7}}`,
		`{"event":"seenMsg","data":"r1"}`,
		`{"event":"updateLastMsgData","data":{"roomID":"r1"}}`,
		`{"event":"updateLastMsgData","data":{"roomID":"r1","msgData":{"_id":"m1","createdAt":"yesterday"}}}`,
		`{"event":"onlineUsers","data":{"userID":"u1"}}`,
	}
	for _, frame := range invalid {
		_, err := Decode([]byte(frame))
		assert.True(t, errors.Is(err, errcode.ErrInvalidEvent), "frame %s: %v", frame, err)
	}

	_, err := Decode([]byte(`{"event":"typing","data":{"roomID":"r1"}}`))
	assert.True(t, errors.Is(err, errcode.ErrUnknownEvent))
}

func TestEncodeJoining(t *testing.T) {
	frame, err := EncodeJoining("r1")
	require.NoError(t, err)

	var got Frame
	require.NoError(t, json.Unmarshal(frame, &got))
	assert.Equal(t, "joining", got.Event)
	assert.JSONEq(t, `"r1"`, string(got.Data))
}

func TestParseTime_RFC3339Nano(t *testing.T) {
	ev, err := Decode([]byte(`{"event":"newMessage","data":{"roomID":"r1","sender":"u1","createdAt":"2024-01-02T03:04:05.678+01:00"}}`))
	require.NoError(t, err)

	want := time.Date(2024, 1, 2, 2, 4, 5, 678000000, time.UTC).UnixMilli()
	assert.Equal(t, want, ev.(*entity.NewMessage).CreatedAt)
}
