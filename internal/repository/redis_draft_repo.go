package repository

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisDraftRepo stores drafts in Redis so several UI instances share them
type RedisDraftRepo struct {
	rdb *redis.Client
}

// NewRedisDraftRepo creates a new RedisDraftRepo
func NewRedisDraftRepo(rdb *redis.Client) *RedisDraftRepo {
	return &RedisDraftRepo{rdb: rdb}
}

// Get gets the draft for a conversation
func (r *RedisDraftRepo) Get(ctx context.Context, conversationId string) (string, bool, error) {
	text, err := r.rdb.Get(ctx, draftKey(conversationId)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	return text, true, nil
}

// Set overwrites the draft for a conversation; drafts never expire
func (r *RedisDraftRepo) Set(ctx context.Context, conversationId, text string) error {
	return r.rdb.Set(ctx, draftKey(conversationId), text, 0).Err()
}

// Delete removes the draft for a conversation
func (r *RedisDraftRepo) Delete(ctx context.Context, conversationId string) error {
	return r.rdb.Del(ctx, draftKey(conversationId)).Err()
}

// Ping checks the Redis connection
func (r *RedisDraftRepo) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

// Close closes the Redis client
func (r *RedisDraftRepo) Close() error {
	return r.rdb.Close()
}
