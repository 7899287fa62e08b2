package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/mbeoliero/convsync/internal/counter"
	"github.com/mbeoliero/convsync/internal/entity"
	"github.com/mbeoliero/convsync/pkg/errcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const selfId = "u_me"

func groupSeed(id string, unseen, createdAt int64) *entity.ConversationSeed {
	return &entity.ConversationSeed{
		Id:          id,
		Kind:        entity.KindGroup,
		Name:        "room " + id,
		UnseenCount: unseen,
		CreatedAt:   createdAt,
	}
}

func increment(summary *entity.ConversationSummary, unseen *counter.Unseen) bool {
	unseen.Increment()
	return true
}

func TestStore_GetOrCreateIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewStore(selfId)

	first, created, err := s.GetOrCreate(ctx, groupSeed("c1", 2, 100))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(2), first.UnseenCount)

	second, created, err := s.GetOrCreate(ctx, groupSeed("c1", 9, 500))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, int64(2), second.UnseenCount)
	assert.Equal(t, int64(100), second.CreatedAt)
	assert.Equal(t, 1, s.Len())
}

func TestStore_GetOrCreateInvalid(t *testing.T) {
	s := NewStore(selfId)
	_, _, err := s.GetOrCreate(context.Background(), nil)
	assert.True(t, errors.Is(err, errcode.ErrInvalidParam))

	_, _, err = s.GetOrCreate(context.Background(), &entity.ConversationSeed{})
	assert.True(t, errors.Is(err, errcode.ErrInvalidParam))
}

func TestStore_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewStore(selfId)
	_, _, err := s.GetOrCreate(ctx, groupSeed("c1", 0, 100))
	require.NoError(t, err)

	got := s.Get("c1")
	got.DisplayName = "mutated"
	assert.Equal(t, "room c1", s.Get("c1").DisplayName)
	assert.Nil(t, s.Get("missing"))
}

func TestStore_ListOrderedByActivity(t *testing.T) {
	ctx := context.Background()
	s := NewStore(selfId)

	_, _, _ = s.GetOrCreate(ctx, groupSeed("old", 0, 100))
	_, _, _ = s.GetOrCreate(ctx, groupSeed("new", 0, 300))
	seed := groupSeed("msg", 0, 50)
	seed.LastMessage = &entity.LastMessage{Id: "m1", SenderId: "u_other", CreatedAt: 200}
	_, _, _ = s.GetOrCreate(ctx, seed)

	list := s.List()
	require.Len(t, list, 3)
	assert.Equal(t, "new", list[0].Id)
	assert.Equal(t, "msg", list[1].Id)
	assert.Equal(t, "old", list[2].Id)
	assert.Equal(t, []string{"msg", "new", "old"}, s.Ids())
}

func TestStore_UpdateBumpsVersionAndNotifies(t *testing.T) {
	ctx := context.Background()
	s := NewStore(selfId)
	_, _, err := s.GetOrCreate(ctx, groupSeed("c1", 0, 100))
	require.NoError(t, err)

	var got []*entity.ConversationSummary
	sub, err := s.Subscribe(ctx, "c1", func(summary *entity.ConversationSummary) {
		got = append(got, summary)
	})
	require.NoError(t, err)
	defer sub.Release()

	snapshot, changed, err := s.Update("c1", increment)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, int64(1), snapshot.UnseenCount)
	assert.Equal(t, uint64(1), snapshot.Version)

	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].UnseenCount)
	assert.Equal(t, uint64(1), got[0].Version)
}

func TestStore_UpdateWithoutChangeDoesNotNotify(t *testing.T) {
	ctx := context.Background()
	s := NewStore(selfId)
	_, _, _ = s.GetOrCreate(ctx, groupSeed("c1", 0, 100))

	calls := 0
	sub, err := s.Subscribe(ctx, "c1", func(*entity.ConversationSummary) { calls++ })
	require.NoError(t, err)
	defer sub.Release()

	snapshot, changed, err := s.Update("c1", func(*entity.ConversationSummary, *counter.Unseen) bool { return false })
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, uint64(0), snapshot.Version)
	assert.Equal(t, 0, calls)
}

func TestStore_UpdateUnknownConversation(t *testing.T) {
	s := NewStore(selfId)
	_, _, err := s.Update("missing", increment)
	assert.True(t, errors.Is(err, errcode.ErrConvNotFound))
}

func TestStore_ReleaseStopsDelivery(t *testing.T) {
	ctx := context.Background()
	s := NewStore(selfId)
	_, _, _ = s.GetOrCreate(ctx, groupSeed("c1", 0, 100))

	calls := 0
	sub, err := s.Subscribe(ctx, "c1", func(*entity.ConversationSummary) { calls++ })
	require.NoError(t, err)
	assert.Equal(t, 1, s.SubscriberCount("c1"))

	_, _, _ = s.Update("c1", increment)
	sub.Release()
	sub.Release()
	_, _, _ = s.Update("c1", increment)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, s.SubscriberCount("c1"))
}

func TestStore_MultipleSubscribersReconcileOnce(t *testing.T) {
	ctx := context.Background()
	s := NewStore(selfId)
	_, _, _ = s.GetOrCreate(ctx, groupSeed("c1", 0, 100))

	var a, b int
	subA, err := s.Subscribe(ctx, "c1", func(*entity.ConversationSummary) { a++ })
	require.NoError(t, err)
	subB, err := s.Subscribe(ctx, "c1", func(*entity.ConversationSummary) { b++ })
	require.NoError(t, err)
	defer subA.Release()
	defer subB.Release()
	assert.NotEqual(t, subA.Id(), subB.Id())

	snapshot, _, err := s.Update("c1", increment)
	require.NoError(t, err)

	assert.Equal(t, 1, a)
	assert.Equal(t, 1, b)
	assert.Equal(t, int64(1), snapshot.UnseenCount)
}

func TestStore_SubscribeErrors(t *testing.T) {
	ctx := context.Background()
	s := NewStore(selfId)

	_, err := s.Subscribe(ctx, "missing", func(*entity.ConversationSummary) {})
	assert.True(t, errors.Is(err, errcode.ErrConvNotFound))

	_, _, _ = s.GetOrCreate(ctx, groupSeed("c1", 0, 100))
	_, err = s.Subscribe(ctx, "c1", nil)
	assert.True(t, errors.Is(err, errcode.ErrInvalidParam))
}

func TestStore_RemoveDropsSubscriptions(t *testing.T) {
	ctx := context.Background()
	s := NewStore(selfId)
	_, _, _ = s.GetOrCreate(ctx, groupSeed("c1", 0, 100))

	sub, err := s.Subscribe(ctx, "c1", func(*entity.ConversationSummary) {})
	require.NoError(t, err)

	assert.True(t, s.Remove(ctx, "c1"))
	assert.False(t, s.Remove(ctx, "c1"))
	assert.Nil(t, s.Get("c1"))
	assert.Equal(t, 0, s.SubscriberCount("c1"))

	// releasing after removal must not panic
	sub.Release()
}

func TestStore_ConcurrentUpdates(t *testing.T) {
	ctx := context.Background()
	s := NewStore(selfId)
	_, _, _ = s.GetOrCreate(ctx, groupSeed("c1", 0, 100))

	var notified atomic.Int64
	sub, err := s.Subscribe(ctx, "c1", func(*entity.ConversationSummary) { notified.Add(1) })
	require.NoError(t, err)
	defer sub.Release()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = s.Update("c1", increment)
			_ = s.List()
		}()
	}
	wg.Wait()

	got := s.Get("c1")
	assert.Equal(t, int64(50), got.UnseenCount)
	assert.Equal(t, uint64(50), got.Version)
	assert.Equal(t, int64(50), notified.Load())
}
