package presence

import (
	"sort"
	"sync"
	"time"
)

// Index holds the most recent presence snapshot
type Index struct {
	mu        sync.RWMutex
	online    map[string]struct{} // userId -> present
	updatedAt time.Time
}

// NewIndex creates an empty Index
func NewIndex() *Index {
	return &Index{
		online: make(map[string]struct{}),
	}
}

// Replace swaps the whole online set for the ids in the snapshot.
// Empty ids are ignored; duplicates collapse.
func (x *Index) Replace(userIds []string) {
	online := make(map[string]struct{}, len(userIds))
	for _, id := range userIds {
		if id == "" {
			continue
		}
		online[id] = struct{}{}
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	x.online = online
	x.updatedAt = time.Now()
}

// IsOnline checks if user is present in the latest snapshot
func (x *Index) IsOnline(userId string) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()

	_, ok := x.online[userId]
	return ok
}

// Count returns the number of online users
func (x *Index) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.online)
}

// OnlineUserIds returns all online user ids, sorted
func (x *Index) OnlineUserIds() []string {
	x.mu.RLock()
	defer x.mu.RUnlock()

	userIds := make([]string, 0, len(x.online))
	for userId := range x.online {
		userIds = append(userIds, userId)
	}
	sort.Strings(userIds)
	return userIds
}

// UpdatedAt returns when the last snapshot was applied
func (x *Index) UpdatedAt() time.Time {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.updatedAt
}
