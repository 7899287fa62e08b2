package draft

import (
	"context"

	"github.com/mbeoliero/convsync/pkg/errcode"
)

// Storage is durable keyed storage for drafts
type Storage interface {
	Get(ctx context.Context, conversationId string) (string, bool, error)
	Set(ctx context.Context, conversationId, text string) error
	Delete(ctx context.Context, conversationId string) error
}

// Cache reads and writes conversation drafts.
//
// It keeps no copy in memory: every Get goes to storage, so several UI instances
// sharing the same storage always see the latest draft.
type Cache struct {
	storage Storage
}

// NewCache creates a Cache over storage
func NewCache(storage Storage) *Cache {
	return &Cache{storage: storage}
}

// Get returns the draft for a conversation, or "" if there is none
func (c *Cache) Get(ctx context.Context, conversationId string) (string, error) {
	text, ok, err := c.storage.Get(ctx, conversationId)
	if err != nil {
		return "", errcode.ErrDraftRead.Wrap(err)
	}
	if !ok {
		return "", nil
	}
	return text, nil
}

// Set persists text for a conversation, replacing any previous draft
func (c *Cache) Set(ctx context.Context, conversationId, text string) error {
	if conversationId == "" {
		return errcode.ErrInvalidParam
	}
	if err := c.storage.Set(ctx, conversationId, text); err != nil {
		return errcode.ErrDraftWrite.Wrap(err)
	}
	return nil
}

// Clear removes the draft for a conversation
func (c *Cache) Clear(ctx context.Context, conversationId string) error {
	if err := c.storage.Delete(ctx, conversationId); err != nil {
		return errcode.ErrDraftWrite.Wrap(err)
	}
	return nil
}
