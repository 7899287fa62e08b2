package repository

import (
	"context"
	"sync"
)

// MemoryDraftRepo keeps drafts in process memory. It is durable only for as long as
// the value itself is kept alive, which makes it suitable for tests and embedding.
type MemoryDraftRepo struct {
	mu     sync.RWMutex
	drafts map[string]string
}

// NewMemoryDraftRepo creates an empty MemoryDraftRepo
func NewMemoryDraftRepo() *MemoryDraftRepo {
	return &MemoryDraftRepo{drafts: make(map[string]string)}
}

// Get gets the draft for a conversation
func (r *MemoryDraftRepo) Get(_ context.Context, conversationId string) (string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	text, ok := r.drafts[conversationId]
	return text, ok, nil
}

// Set overwrites the draft for a conversation
func (r *MemoryDraftRepo) Set(_ context.Context, conversationId, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drafts[conversationId] = text
	return nil
}

// Delete removes the draft for a conversation
func (r *MemoryDraftRepo) Delete(_ context.Context, conversationId string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.drafts, conversationId)
	return nil
}

// Ping always succeeds
func (r *MemoryDraftRepo) Ping(context.Context) error { return nil }

// Close is a no-op
func (r *MemoryDraftRepo) Close() error { return nil }
