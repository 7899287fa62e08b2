package service

import (
	"context"
	"sync"

	"github.com/mbeoliero/convsync/internal/counter"
	"github.com/mbeoliero/convsync/internal/draft"
	"github.com/mbeoliero/convsync/internal/entity"
	"github.com/mbeoliero/convsync/internal/identity"
	"github.com/mbeoliero/convsync/internal/presence"
	"github.com/mbeoliero/convsync/internal/reconciler"
	"github.com/mbeoliero/convsync/internal/store"
	"github.com/mbeoliero/convsync/pkg/errcode"
	"github.com/mbeoliero/kit/log"
)

// EventApplier applies an event and waits for the result
type EventApplier interface {
	Apply(ctx context.Context, ev entity.Event) error
}

// Joiner tells the IM server which conversation the user opened
type Joiner interface {
	Join(ctx context.Context, conversationId string) error
}

// SeedFetcher loads the initial conversation list
type SeedFetcher interface {
	GetConversationSeeds(ctx context.Context) ([]*entity.ConversationSeed, error)
}

// ConversationView is a summary decorated for rendering
type ConversationView struct {
	*entity.ConversationSummary
	Title           string `json:"title"`
	CardText        string `json:"card_text"`
	DeliveryStatus  string `json:"delivery_status,omitempty"`
	IsSavedMessages bool   `json:"is_saved_messages"`
}

// ConversationService is the command surface the rendering layer talks to
type ConversationService struct {
	selfId     string
	store      *store.Store
	reconciler *reconciler.Reconciler
	events     EventApplier
	drafts     *draft.Cache
	colors     *identity.ColorAssigner
	presence   *presence.Index
	joiner     Joiner
	upstream   SeedFetcher

	mu       sync.Mutex
	activeId string
}

// Deps holds the collaborators of ConversationService
type Deps struct {
	Store      *store.Store
	Reconciler *reconciler.Reconciler
	Events     EventApplier
	Drafts     *draft.Cache
	Colors     *identity.ColorAssigner
	Presence   *presence.Index
	Joiner     Joiner
	Upstream   SeedFetcher
}

// NewConversationService creates a new ConversationService
func NewConversationService(deps Deps) *ConversationService {
	return &ConversationService{
		selfId:     deps.Store.SelfId(),
		store:      deps.Store,
		reconciler: deps.Reconciler,
		events:     deps.Events,
		drafts:     deps.Drafts,
		colors:     deps.Colors,
		presence:   deps.Presence,
		joiner:     deps.Joiner,
		upstream:   deps.Upstream,
	}
}

// Load replaces the visible list with seeds. Conversations missing from seeds leave the list.
func (s *ConversationService) Load(ctx context.Context, seeds []*entity.ConversationSeed) error {
	keep := make(map[string]struct{}, len(seeds))
	for _, seed := range seeds {
		if seed == nil || seed.Id == "" {
			log.CtxWarn(ctx, "skip invalid seed")
			continue
		}
		if _, err := s.reconciler.Seed(ctx, seed); err != nil {
			log.CtxError(ctx, "seed conversation failed: conversation_id=%s, error=%v", seed.Id, err)
			return errcode.ErrLoadFailed.Wrap(err)
		}
		keep[seed.Id] = struct{}{}
	}

	removed := 0
	for _, id := range s.store.Ids() {
		if _, ok := keep[id]; ok {
			continue
		}
		if s.store.Remove(ctx, id) {
			s.reconciler.Forget(id)
			removed++
		}
	}

	log.CtxInfo(ctx, "conversations loaded: count=%d, removed=%d", len(keep), removed)
	return nil
}

// LoadFromUpstream fetches the initial list from the IM server and loads it
func (s *ConversationService) LoadFromUpstream(ctx context.Context) error {
	if s.upstream == nil {
		return errcode.ErrLoadFailed
	}
	seeds, err := s.upstream.GetConversationSeeds(ctx)
	if err != nil {
		log.CtxError(ctx, "fetch conversations failed: error=%v", err)
		return errcode.ErrLoadFailed.Wrap(err)
	}
	return s.Load(ctx, seeds)
}

// List returns every conversation, most recent activity first
func (s *ConversationService) List(ctx context.Context) []*ConversationView {
	summaries := s.store.List()
	views := make([]*ConversationView, 0, len(summaries))
	for _, summary := range summaries {
		views = append(views, s.decorate(ctx, summary))
	}
	return views
}

// Info returns one conversation
func (s *ConversationService) Info(ctx context.Context, conversationId string) (*ConversationView, error) {
	summary := s.store.Get(conversationId)
	if summary == nil {
		return nil, errcode.ErrConvNotFound
	}
	return s.decorate(ctx, summary), nil
}

// Join subscribes onChange to a conversation, marks it active and notifies the IM server.
// The caller owns the returned subscription and must release it.
func (s *ConversationService) Join(ctx context.Context, conversationId string, onChange store.OnChange) (*store.Subscription, error) {
	sub, err := s.store.Subscribe(ctx, conversationId, onChange)
	if err != nil {
		return nil, err
	}

	s.setActive(ctx, conversationId)

	if s.joiner != nil {
		if err := s.joiner.Join(ctx, conversationId); err != nil {
			log.CtxWarn(ctx, "send joining failed: conversation_id=%s, error=%v", conversationId, err)
		}
	}
	return sub, nil
}

// Leave releases a subscription obtained from Join. The conversation stops being
// active once its last subscription is gone.
func (s *ConversationService) Leave(ctx context.Context, sub *store.Subscription) {
	sub.Release()

	conversationId := sub.ConversationId()
	if s.store.SubscriberCount(conversationId) > 0 {
		return
	}

	s.mu.Lock()
	if s.activeId != conversationId {
		s.mu.Unlock()
		return
	}
	s.activeId = ""
	s.mu.Unlock()

	_, _, err := s.store.Update(conversationId, func(summary *entity.ConversationSummary, _ *counter.Unseen) bool {
		changed := summary.IsActive
		summary.IsActive = false
		return changed
	})
	if err != nil {
		log.CtxDebug(ctx, "unmark active failed: conversation_id=%s, error=%v", conversationId, err)
	}
}

// ActiveId returns the id of the currently selected conversation
func (s *ConversationService) ActiveId() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeId
}

// View decorates a summary the way List and Info do
func (s *ConversationService) View(ctx context.Context, summary *entity.ConversationSummary) *ConversationView {
	return s.decorate(ctx, summary)
}

// Viewed records that the user looked at a conversation
func (s *ConversationService) Viewed(ctx context.Context, conversationId string) (*ConversationView, error) {
	if err := s.events.Apply(ctx, &entity.ManualCountReset{ConvId: conversationId}); err != nil {
		return nil, err
	}
	return s.Info(ctx, conversationId)
}

// Draft returns the saved draft of a conversation
func (s *ConversationService) Draft(ctx context.Context, conversationId string) (string, error) {
	return s.drafts.Get(ctx, conversationId)
}

// SaveDraft persists the draft of a conversation; empty text clears it
func (s *ConversationService) SaveDraft(ctx context.Context, conversationId, text string) error {
	if conversationId == "" {
		return errcode.ErrInvalidParam
	}
	if text == "" {
		return s.drafts.Clear(ctx, conversationId)
	}
	return s.drafts.Set(ctx, conversationId, text)
}

// ClearDraft removes the draft of a conversation
func (s *ConversationService) ClearDraft(ctx context.Context, conversationId string) error {
	return s.drafts.Clear(ctx, conversationId)
}

// IsOnline checks a user against the latest presence snapshot
func (s *ConversationService) IsOnline(userId string) bool {
	return s.presence.IsOnline(userId)
}

func (s *ConversationService) setActive(ctx context.Context, conversationId string) {
	s.mu.Lock()
	prev := s.activeId
	s.activeId = conversationId
	s.mu.Unlock()

	if prev != "" && prev != conversationId {
		_, _, _ = s.store.Update(prev, func(summary *entity.ConversationSummary, _ *counter.Unseen) bool {
			changed := summary.IsActive
			summary.IsActive = false
			return changed
		})
	}
	_, _, err := s.store.Update(conversationId, func(summary *entity.ConversationSummary, _ *counter.Unseen) bool {
		changed := !summary.IsActive
		summary.IsActive = true
		return changed
	})
	if err != nil {
		log.CtxDebug(ctx, "mark active failed: conversation_id=%s, error=%v", conversationId, err)
	}
}

func (s *ConversationService) decorate(ctx context.Context, summary *entity.ConversationSummary) *ConversationView {
	text, err := s.drafts.Get(ctx, summary.Id)
	if err != nil {
		log.CtxWarn(ctx, "read draft failed: conversation_id=%s, error=%v", summary.Id, err)
	}
	summary.DraftText = text
	summary.ColorBucket = s.colors.Assign(summary.ColorKey())

	return &ConversationView{
		ConversationSummary: summary,
		Title:               summary.Title(s.selfId),
		CardText:            summary.CardText(),
		DeliveryStatus:      summary.DeliveryStatus(s.selfId),
		IsSavedMessages:     summary.IsSavedMessages(s.selfId),
	}
}
