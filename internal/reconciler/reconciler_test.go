package reconciler

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/mbeoliero/convsync/internal/entity"
	"github.com/mbeoliero/convsync/internal/presence"
	"github.com/mbeoliero/convsync/internal/store"
	"github.com/mbeoliero/convsync/pkg/errcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	selfId  = "u_me"
	otherId = "u_other"
)

func newTestReconciler(t *testing.T, window int) (*Reconciler, *store.Store) {
	t.Helper()
	st := store.NewStore(selfId)
	return New(st, presence.NewIndex(), window), st
}

func seedGroup(t *testing.T, r *Reconciler, id string, unseen int64) {
	t.Helper()
	_, err := r.Seed(context.Background(), &entity.ConversationSeed{
		Id:          id,
		Kind:        entity.KindGroup,
		Name:        id,
		UnseenCount: unseen,
	})
	require.NoError(t, err)
}

func seedPrivate(t *testing.T, r *Reconciler, id, peerId string) {
	t.Helper()
	_, err := r.Seed(context.Background(), &entity.ConversationSeed{
		Id:   id,
		Kind: entity.KindPrivate,
		Participants: []*entity.Participant{
			{Id: selfId, Name: "me"},
			{Id: peerId, Name: peerId},
		},
	})
	require.NoError(t, err)
}

func text(s string) *string { return &s }

func TestReconciler_ScenarioA(t *testing.T) {
	ctx := context.Background()
	r, st := newTestReconciler(t, 256)
	seedGroup(t, r, "c1", 0)

	unseen := func() int64 { return st.Get("c1").UnseenCount }

	require.NoError(t, r.Apply(ctx, &entity.NewMessage{ConvId: "c1", SenderId: otherId, MessageId: "m1"}))
	assert.Equal(t, int64(1), unseen())

	require.NoError(t, r.Apply(ctx, &entity.NewMessage{ConvId: "c1", SenderId: selfId, MessageId: "m2"}))
	assert.Equal(t, int64(1), unseen())

	require.NoError(t, r.Apply(ctx, &entity.SeenAck{ConvId: "c1"}))
	assert.Equal(t, int64(0), unseen())

	require.NoError(t, r.Apply(ctx, &entity.SeenAck{ConvId: "c1"}))
	assert.Equal(t, int64(0), unseen())
}

func TestReconciler_NewMessageDoesNotTouchLastMessage(t *testing.T) {
	ctx := context.Background()
	r, st := newTestReconciler(t, 256)
	seedGroup(t, r, "c1", 0)

	require.NoError(t, r.Apply(ctx, &entity.NewMessage{ConvId: "c1", SenderId: otherId, CreatedAt: 500, MessageId: "m1"}))
	assert.Nil(t, st.Get("c1").LastMessage)
}

func TestReconciler_ManualCountResetFloors(t *testing.T) {
	ctx := context.Background()
	r, st := newTestReconciler(t, 256)
	seedGroup(t, r, "c1", 2)

	for i := 0; i < 4; i++ {
		require.NoError(t, r.Apply(ctx, &entity.ManualCountReset{ConvId: "c1"}))
	}
	assert.Equal(t, int64(0), st.Get("c1").UnseenCount)
}

func TestReconciler_DuplicateMessageCountedOnce(t *testing.T) {
	ctx := context.Background()
	r, st := newTestReconciler(t, 2)
	seedGroup(t, r, "c1", 0)

	ev := &entity.NewMessage{ConvId: "c1", SenderId: otherId, MessageId: "m1"}
	require.NoError(t, r.Apply(ctx, ev))
	require.NoError(t, r.Apply(ctx, ev))
	assert.Equal(t, int64(1), st.Get("c1").UnseenCount)

	// once m1 falls out of the window a replay counts again
	require.NoError(t, r.Apply(ctx, &entity.NewMessage{ConvId: "c1", SenderId: otherId, MessageId: "m2"}))
	require.NoError(t, r.Apply(ctx, &entity.NewMessage{ConvId: "c1", SenderId: otherId, MessageId: "m3"}))
	require.NoError(t, r.Apply(ctx, ev))
	assert.Equal(t, int64(4), st.Get("c1").UnseenCount)
}

func TestReconciler_DedupDisabled(t *testing.T) {
	ctx := context.Background()
	r, st := newTestReconciler(t, 0)
	seedGroup(t, r, "c1", 0)

	ev := &entity.NewMessage{ConvId: "c1", SenderId: otherId, MessageId: "m1"}
	require.NoError(t, r.Apply(ctx, ev))
	require.NoError(t, r.Apply(ctx, ev))
	assert.Equal(t, int64(2), st.Get("c1").UnseenCount)
}

func TestReconciler_DedupIsPerConversation(t *testing.T) {
	ctx := context.Background()
	r, st := newTestReconciler(t, 16)
	seedGroup(t, r, "c1", 0)
	seedGroup(t, r, "c2", 0)

	require.NoError(t, r.Apply(ctx, &entity.NewMessage{ConvId: "c1", SenderId: otherId, MessageId: "m1"}))
	require.NoError(t, r.Apply(ctx, &entity.NewMessage{ConvId: "c2", SenderId: otherId, MessageId: "m1"}))
	assert.Equal(t, int64(1), st.Get("c1").UnseenCount)
	assert.Equal(t, int64(1), st.Get("c2").UnseenCount)

	r.Forget("c1")
	require.NoError(t, r.Apply(ctx, &entity.NewMessage{ConvId: "c1", SenderId: otherId, MessageId: "m1"}))
	assert.Equal(t, int64(2), st.Get("c1").UnseenCount)
}

func TestReconciler_LastMessageOrdering(t *testing.T) {
	ctx := context.Background()
	r, st := newTestReconciler(t, 256)
	seedGroup(t, r, "c1", 0)

	apply := func(id string, createdAt int64) {
		require.NoError(t, r.Apply(ctx, &entity.LastMessageUpdate{
			ConvId:  "c1",
			Message: &entity.LastMessage{Id: id, SenderId: otherId, Text: text(id), CreatedAt: createdAt},
		}))
	}

	apply("m2", 200)
	assert.Equal(t, "m2", st.Get("c1").LastMessage.Id)

	apply("m1", 100)
	assert.Equal(t, "m2", st.Get("c1").LastMessage.Id)

	// ties keep the existing message
	apply("m2b", 200)
	assert.Equal(t, "m2", st.Get("c1").LastMessage.Id)

	apply("m3", 300)
	assert.Equal(t, "m3", st.Get("c1").LastMessage.Id)
}

func TestReconciler_LastMessageCommutes(t *testing.T) {
	ctx := context.Background()
	a := &entity.LastMessageUpdate{ConvId: "c1", Message: &entity.LastMessage{Id: "a", CreatedAt: 100}}
	b := &entity.LastMessageUpdate{ConvId: "c1", Message: &entity.LastMessage{Id: "b", CreatedAt: 200}}

	r1, st1 := newTestReconciler(t, 256)
	seedGroup(t, r1, "c1", 0)
	require.NoError(t, r1.Apply(ctx, a))
	require.NoError(t, r1.Apply(ctx, b))

	r2, st2 := newTestReconciler(t, 256)
	seedGroup(t, r2, "c1", 0)
	require.NoError(t, r2.Apply(ctx, b))
	require.NoError(t, r2.Apply(ctx, a))

	assert.Equal(t, "b", st1.Get("c1").LastMessage.Id)
	assert.Equal(t, st1.Get("c1").LastMessage.Id, st2.Get("c1").LastMessage.Id)
}

func TestReconciler_LastMessageNonDecreasing(t *testing.T) {
	ctx := context.Background()
	r, st := newTestReconciler(t, 256)
	seedGroup(t, r, "c1", 0)

	rng := rand.New(rand.NewSource(42))
	var prev int64
	for i := 0; i < 500; i++ {
		createdAt := rng.Int63n(10000)
		require.NoError(t, r.Apply(ctx, &entity.LastMessageUpdate{
			ConvId:  "c1",
			Message: &entity.LastMessage{Id: "m", CreatedAt: createdAt},
		}))
		cur := st.Get("c1").LastMessage.CreatedAt
		assert.GreaterOrEqual(t, cur, prev)
		prev = cur
	}
}

func TestReconciler_CounterNeverNegative(t *testing.T) {
	ctx := context.Background()
	r, st := newTestReconciler(t, 0)
	seedGroup(t, r, "c1", 0)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 2000; i++ {
		var ev entity.Event
		switch rng.Intn(4) {
		case 0:
			ev = &entity.NewMessage{ConvId: "c1", SenderId: otherId}
		case 1:
			ev = &entity.NewMessage{ConvId: "c1", SenderId: selfId}
		case 2:
			ev = &entity.SeenAck{ConvId: "c1"}
		default:
			ev = &entity.ManualCountReset{ConvId: "c1"}
		}
		require.NoError(t, r.Apply(ctx, ev))
		require.GreaterOrEqual(t, st.Get("c1").UnseenCount, int64(0))
	}
}

func TestReconciler_PresenceSnapshot(t *testing.T) {
	ctx := context.Background()
	idx := presence.NewIndex()
	st := store.NewStore(selfId)
	r := New(st, idx, 256)
	seedPrivate(t, r, "p1", "u1")
	seedPrivate(t, r, "p2", "u2")
	seedGroup(t, r, "g1", 0)

	require.NoError(t, r.Apply(ctx, &entity.PresenceSnapshot{UserIds: []string{"u1"}}))
	assert.True(t, idx.IsOnline("u1"))
	assert.False(t, idx.IsOnline("u2"))
	assert.True(t, st.Get("p1").IsOnline)
	assert.False(t, st.Get("p2").IsOnline)
	assert.False(t, st.Get("g1").IsOnline)

	require.NoError(t, r.Apply(ctx, &entity.PresenceSnapshot{UserIds: []string{"u2"}}))
	assert.False(t, st.Get("p1").IsOnline)
	assert.True(t, st.Get("p2").IsOnline)
}

func TestReconciler_SeedUsesCurrentPresence(t *testing.T) {
	ctx := context.Background()
	r, st := newTestReconciler(t, 256)
	require.NoError(t, r.Apply(ctx, &entity.PresenceSnapshot{UserIds: []string{"u1"}}))

	seedPrivate(t, r, "p1", "u1")
	assert.True(t, st.Get("p1").IsOnline)
}

func TestReconciler_ReseedResetsBaseline(t *testing.T) {
	ctx := context.Background()
	r, st := newTestReconciler(t, 256)
	seedGroup(t, r, "c1", 3)
	require.NoError(t, r.Apply(ctx, &entity.NewMessage{ConvId: "c1", SenderId: otherId}))
	assert.Equal(t, int64(4), st.Get("c1").UnseenCount)

	seedGroup(t, r, "c1", 1)
	assert.Equal(t, int64(1), st.Get("c1").UnseenCount)
}

func TestReconciler_UnknownConversationAndEvents(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestReconciler(t, 256)

	err := r.Apply(ctx, &entity.NewMessage{ConvId: "missing", SenderId: otherId})
	assert.True(t, errors.Is(err, errcode.ErrConvNotFound))

	err = r.Apply(ctx, &entity.SeenAck{ConvId: "missing"})
	assert.True(t, errors.Is(err, errcode.ErrConvNotFound))

	err = r.Apply(ctx, &entity.LastMessageUpdate{ConvId: "missing"})
	assert.True(t, errors.Is(err, errcode.ErrInvalidEvent))

	err = r.Apply(ctx, nil)
	assert.True(t, errors.Is(err, errcode.ErrInvalidEvent))
}

func TestReconciler_NilVariantsRejected(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestReconciler(t, 256)
	seedGroup(t, r, "c1", 0)

	events := []entity.Event{
		(*entity.NewMessage)(nil),
		(*entity.LastMessageUpdate)(nil),
		(*entity.SeenAck)(nil),
		(*entity.ManualCountReset)(nil),
		(*entity.PresenceSnapshot)(nil),
	}
	for _, ev := range events {
		assert.NotPanics(t, func() {
			err := r.Apply(ctx, ev)
			assert.True(t, errors.Is(err, errcode.ErrInvalidEvent), "event %T", ev)
		})
	}
}

func TestReconciler_ForgetAfterRemoveLeavesNoWindow(t *testing.T) {
	ctx := context.Background()
	for round := 0; round < 50; round++ {
		r, st := newTestReconciler(t, 8)
		seedGroup(t, r, "c1", 0)

		stop := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; ; i++ {
				select {
				case <-stop:
					return
				default:
				}
				_ = r.Apply(ctx, &entity.NewMessage{ConvId: "c1", SenderId: otherId, MessageId: fmt.Sprintf("m%d", i)})
			}
		}()

		require.True(t, st.Remove(ctx, "c1"))
		r.Forget("c1")
		close(stop)
		wg.Wait()

		r.mu.Lock()
		_, leaked := r.recent["c1"]
		r.mu.Unlock()
		require.False(t, leaked, "round %d", round)
	}
}

func TestReconciler_SubscribersSeeEveryChange(t *testing.T) {
	ctx := context.Background()
	r, st := newTestReconciler(t, 256)
	seedGroup(t, r, "c1", 0)

	var versions []uint64
	sub, err := st.Subscribe(ctx, "c1", func(s *entity.ConversationSummary) {
		versions = append(versions, s.Version)
	})
	require.NoError(t, err)
	defer sub.Release()

	require.NoError(t, r.Apply(ctx, &entity.NewMessage{ConvId: "c1", SenderId: otherId, MessageId: "m1"}))
	require.NoError(t, r.Apply(ctx, &entity.NewMessage{ConvId: "c1", SenderId: selfId, MessageId: "m2"}))
	require.NoError(t, r.Apply(ctx, &entity.SeenAck{ConvId: "c1"}))

	// the self-sent message changes nothing and is not delivered
	require.Len(t, versions, 2)
	assert.Less(t, versions[0], versions[1])
}
