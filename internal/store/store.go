package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/mbeoliero/convsync/internal/counter"
	"github.com/mbeoliero/convsync/internal/entity"
	"github.com/mbeoliero/convsync/pkg/errcode"
	"github.com/mbeoliero/kit/log"
)

// OnChange receives a copy of the summary after every committed mutation.
// Callbacks may run concurrently for different conversations; use Version to drop stale copies.
type OnChange func(summary *entity.ConversationSummary)

// Mutation changes a summary in place and reports whether anything changed.
// It runs under the conversation's lock and must not call back into the Store.
type Mutation func(summary *entity.ConversationSummary, unseen *counter.Unseen) bool

type entry struct {
	mu          sync.Mutex
	summary     *entity.ConversationSummary
	unseen      *counter.Unseen
	subscribers map[string]OnChange
	removed     bool
}

// Store holds exactly one summary per conversation in the visible list
type Store struct {
	mu      sync.RWMutex
	selfId  string
	entries map[string]*entry
}

// NewStore creates an empty Store for the given current user
func NewStore(selfId string) *Store {
	return &Store{
		selfId:  selfId,
		entries: make(map[string]*entry),
	}
}

// SelfId returns the current user's id
func (s *Store) SelfId() string {
	return s.selfId
}

// GetOrCreate returns the summary for seed.Id, creating it from the seed on first use.
// A second call for the same id returns the existing summary and ignores the seed.
func (s *Store) GetOrCreate(ctx context.Context, seed *entity.ConversationSeed) (*entity.ConversationSummary, bool, error) {
	if seed == nil || seed.Id == "" {
		return nil, false, errcode.ErrInvalidParam
	}

	s.mu.Lock()
	e, exists := s.entries[seed.Id]
	if !exists {
		summary := entity.NewConversationSummary(seed, s.selfId)
		e = &entry{
			summary:     summary,
			unseen:      counter.NewUnseen(summary.UnseenCount),
			subscribers: make(map[string]OnChange),
		}
		s.entries[seed.Id] = e
	}
	s.mu.Unlock()

	if !exists {
		log.CtxDebug(ctx, "conversation created: conversation_id=%s, kind=%s", seed.Id, seed.Kind)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.summary.Clone(), !exists, nil
}

// Get returns a copy of the summary, or nil if the conversation is not in the list
func (s *Store) Get(id string) *entity.ConversationSummary {
	e := s.lookup(id)
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.summary.Clone()
}

// List returns copies of all summaries, most recent activity first
func (s *Store) List() []*entity.ConversationSummary {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	result := make([]*entity.ConversationSummary, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		result = append(result, e.summary.Clone())
		e.mu.Unlock()
	}

	sort.SliceStable(result, func(i, j int) bool {
		ai, aj := result[i].LastActivity(), result[j].LastActivity()
		if ai != aj {
			return ai > aj
		}
		return result[i].Id < result[j].Id
	})
	return result
}

// Ids returns the ids of all conversations in the list
func (s *Store) Ids() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of conversations in the list
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Remove discards a conversation and all its subscriptions
func (s *Store) Remove(ctx context.Context, id string) bool {
	s.mu.Lock()
	e, ok := s.entries[id]
	if ok {
		delete(s.entries, id)
	}
	s.mu.Unlock()

	if !ok {
		return false
	}

	e.mu.Lock()
	e.removed = true
	dropped := len(e.subscribers)
	e.subscribers = make(map[string]OnChange)
	e.mu.Unlock()

	log.CtxDebug(ctx, "conversation removed: conversation_id=%s, dropped_subscribers=%d", id, dropped)
	return true
}

// Update applies fn to the conversation under its lock. When fn reports a change the
// summary version is bumped and every subscriber is notified with a copy after the lock
// is released. Returns ErrConvNotFound if the conversation is not in the list, and fn
// never runs once Remove has returned for the conversation.
func (s *Store) Update(id string, fn Mutation) (*entity.ConversationSummary, bool, error) {
	e := s.lookup(id)
	if e == nil {
		return nil, false, errcode.ErrConvNotFound
	}

	e.mu.Lock()
	if e.removed {
		e.mu.Unlock()
		return nil, false, errcode.ErrConvNotFound
	}
	changed := fn(e.summary, e.unseen)
	e.summary.UnseenCount = e.unseen.Value()
	if !changed {
		snapshot := e.summary.Clone()
		e.mu.Unlock()
		return snapshot, false, nil
	}
	e.summary.Version++
	snapshot := e.summary.Clone()
	callbacks := make([]OnChange, 0, len(e.subscribers))
	for _, cb := range e.subscribers {
		callbacks = append(callbacks, cb)
	}
	e.mu.Unlock()

	for _, cb := range callbacks {
		cb(snapshot.Clone())
	}
	return snapshot, true, nil
}

// Subscribe registers onChange for a conversation. Delivery continues until the
// returned Subscription is released or the conversation is removed.
func (s *Store) Subscribe(ctx context.Context, id string, onChange OnChange) (*Subscription, error) {
	if onChange == nil {
		return nil, errcode.ErrInvalidParam
	}
	e := s.lookup(id)
	if e == nil {
		return nil, errcode.ErrConvNotFound
	}

	subId := uuid.NewString()
	e.mu.Lock()
	if e.removed {
		e.mu.Unlock()
		return nil, errcode.ErrConvNotFound
	}
	e.subscribers[subId] = onChange
	e.mu.Unlock()

	log.CtxDebug(ctx, "subscribed: conversation_id=%s, subscription_id=%s", id, subId)
	return &Subscription{entry: e, convId: id, id: subId}, nil
}

// SubscriberCount returns the number of live subscriptions for a conversation
func (s *Store) SubscriberCount(id string) int {
	e := s.lookup(id)
	if e == nil {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subscribers)
}

func (s *Store) lookup(id string) *entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[id]
}

// Subscription is the handle returned by Subscribe
type Subscription struct {
	entry  *entry
	convId string
	id     string
	once   sync.Once
}

// Id returns the subscription id
func (sub *Subscription) Id() string {
	return sub.id
}

// ConversationId returns the conversation the subscription observes
func (sub *Subscription) ConversationId() string {
	return sub.convId
}

// Release stops delivery. It is safe to call more than once.
func (sub *Subscription) Release() {
	sub.once.Do(func() {
		sub.entry.mu.Lock()
		delete(sub.entry.subscribers, sub.id)
		sub.entry.mu.Unlock()
		log.Debug("subscription released: conversation_id=%s, subscription_id=%s", sub.convId, sub.id)
	})
}
