package reconciler

import (
	"context"
	"sync"

	"github.com/mbeoliero/convsync/internal/counter"
	"github.com/mbeoliero/convsync/internal/entity"
	"github.com/mbeoliero/convsync/internal/presence"
	"github.com/mbeoliero/convsync/internal/store"
	"github.com/mbeoliero/convsync/pkg/errcode"
	"github.com/mbeoliero/kit/log"
)

// Reconciler applies inbound events to the conversation store.
//
// Apply is synchronous. Callers must not apply two events for the same conversation
// concurrently; the Dispatcher guarantees that by sharding on conversation id.
type Reconciler struct {
	store       *store.Store
	presence    *presence.Index
	selfId      string
	dedupWindow int

	mu     sync.Mutex
	recent map[string]*recentIds // conversationId -> recently seen message ids
}

// New creates a Reconciler. dedupWindow is the number of message ids remembered per
// conversation for NewMessage deduplication; zero or less disables deduplication.
func New(st *store.Store, idx *presence.Index, dedupWindow int) *Reconciler {
	return &Reconciler{
		store:       st,
		presence:    idx,
		selfId:      st.SelfId(),
		dedupWindow: dedupWindow,
		recent:      make(map[string]*recentIds),
	}
}

// Seed adds a conversation to the list from its initial load payload and syncs its
// online flag with the current presence snapshot. Seeding an existing conversation
// resets its unseen counter to the seeded baseline.
func (r *Reconciler) Seed(ctx context.Context, seed *entity.ConversationSeed) (*entity.ConversationSummary, error) {
	_, created, err := r.store.GetOrCreate(ctx, seed)
	if err != nil {
		return nil, err
	}

	summary, _, err := r.store.Update(seed.Id, func(s *entity.ConversationSummary, unseen *counter.Unseen) bool {
		changed := r.syncOnline(s)
		if !created && unseen.Value() != seed.UnseenCount {
			unseen.Reset(seed.UnseenCount)
			changed = true
		}
		return changed
	})
	return summary, err
}

// Apply reconciles one event. Events for conversations outside the list return
// ErrConvNotFound; callers log and drop them.
func (r *Reconciler) Apply(ctx context.Context, ev entity.Event) error {
	if entity.IsNil(ev) {
		return errcode.ErrInvalidEvent
	}

	switch e := ev.(type) {
	case *entity.NewMessage:
		return r.applyNewMessage(ctx, e)
	case *entity.LastMessageUpdate:
		return r.applyLastMessageUpdate(ctx, e)
	case *entity.SeenAck:
		return r.decrement(ctx, e.ConvId, "seen_ack")
	case *entity.ManualCountReset:
		return r.decrement(ctx, e.ConvId, "manual_count_reset")
	case *entity.PresenceSnapshot:
		r.applyPresenceSnapshot(ctx, e)
		return nil
	default:
		return errcode.ErrUnknownEvent
	}
}

// Forget drops deduplication state for a conversation that left the list.
// Call it after the conversation was removed from the store.
func (r *Reconciler) Forget(conversationId string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.recent, conversationId)
}

func (r *Reconciler) applyNewMessage(ctx context.Context, e *entity.NewMessage) error {
	// remember runs under the conversation lock so a concurrent Remove+Forget cannot
	// leave a window behind for a conversation that already left the list
	duplicate := false
	summary, _, err := r.store.Update(e.ConvId, func(_ *entity.ConversationSummary, unseen *counter.Unseen) bool {
		if e.MessageId != "" && !r.remember(e.ConvId, e.MessageId) {
			duplicate = true
			return false
		}
		if e.SenderId == r.selfId {
			return false
		}
		unseen.Increment()
		return true
	})
	if err != nil {
		return err
	}
	if duplicate {
		log.CtxDebug(ctx, "duplicate message dropped: conversation_id=%s, message_id=%s", e.ConvId, e.MessageId)
		return nil
	}

	log.CtxDebug(ctx, "new message applied: conversation_id=%s, sender_id=%s, unseen=%d", e.ConvId, e.SenderId, summary.UnseenCount)
	return nil
}

func (r *Reconciler) applyLastMessageUpdate(ctx context.Context, e *entity.LastMessageUpdate) error {
	if e.Message == nil {
		return errcode.ErrInvalidEvent
	}

	_, changed, err := r.store.Update(e.ConvId, func(s *entity.ConversationSummary, _ *counter.Unseen) bool {
		if !e.Message.IsNewerThan(s.LastMessage) {
			return false
		}
		s.LastMessage = e.Message.Clone()
		return true
	})
	if err != nil {
		return err
	}

	if !changed {
		log.CtxDebug(ctx, "stale last message ignored: conversation_id=%s, message_id=%s, created_at=%d",
			e.ConvId, e.Message.Id, e.Message.CreatedAt)
	}
	return nil
}

func (r *Reconciler) decrement(ctx context.Context, conversationId, source string) error {
	summary, _, err := r.store.Update(conversationId, func(_ *entity.ConversationSummary, unseen *counter.Unseen) bool {
		before := unseen.Value()
		return unseen.Decrement() != before
	})
	if err != nil {
		return err
	}

	log.CtxDebug(ctx, "unseen decremented: conversation_id=%s, source=%s, unseen=%d", conversationId, source, summary.UnseenCount)
	return nil
}

func (r *Reconciler) applyPresenceSnapshot(ctx context.Context, e *entity.PresenceSnapshot) {
	r.presence.Replace(e.UserIds)

	updated := 0
	for _, id := range r.store.Ids() {
		_, changed, err := r.store.Update(id, func(s *entity.ConversationSummary, _ *counter.Unseen) bool {
			return r.syncOnline(s)
		})
		if err == nil && changed {
			updated++
		}
	}

	log.CtxDebug(ctx, "presence snapshot applied: online_users=%d, conversations_updated=%d", r.presence.Count(), updated)
}

// syncOnline recomputes the online flag of a private conversation
func (r *Reconciler) syncOnline(s *entity.ConversationSummary) bool {
	if !s.Kind.IsPrivate() {
		return false
	}
	online := s.PeerId != "" && r.presence.IsOnline(s.PeerId)
	if online == s.IsOnline {
		return false
	}
	s.IsOnline = online
	return true
}

// remember records messageId and reports whether it was new
func (r *Reconciler) remember(conversationId, messageId string) bool {
	if r.dedupWindow <= 0 {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ids, ok := r.recent[conversationId]
	if !ok {
		ids = newRecentIds(r.dedupWindow)
		r.recent[conversationId] = ids
	}
	return ids.add(messageId)
}

// recentIds is a fixed-size FIFO set of message ids
type recentIds struct {
	set  map[string]struct{}
	ring []string
	next int
}

func newRecentIds(size int) *recentIds {
	return &recentIds{
		set:  make(map[string]struct{}, size),
		ring: make([]string, size),
	}
}

func (x *recentIds) add(id string) bool {
	if _, ok := x.set[id]; ok {
		return false
	}
	if old := x.ring[x.next]; old != "" {
		delete(x.set, old)
	}
	x.ring[x.next] = id
	x.set[id] = struct{}{}
	x.next = (x.next + 1) % len(x.ring)
	return true
}
