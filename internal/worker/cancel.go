package worker

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/redis/go-redis/v9"
)

// CancelList records cancelled job and series IDs.
type CancelList interface {
	Cancel(ctx context.Context, id string) error
	// IsCancelled reports whether any of ids was cancelled.
	IsCancelled(ctx context.Context, ids ...string) (bool, error)
}

type RedisCancelList struct {
	client *redis.Client
	key    string
}

var _ CancelList = (*RedisCancelList)(nil)

func NewRedisCancelList(client *redis.Client, key string) *RedisCancelList {
	return &RedisCancelList{client: client, key: key}
}

func (l *RedisCancelList) Cancel(ctx context.Context, id string) error {
	if err := l.client.SAdd(ctx, l.key, id).Err(); err != nil {
		return fmt.Errorf("failed to cancel %s: %w", id, err)
	}
	return nil
}

func (l *RedisCancelList) IsCancelled(ctx context.Context, ids ...string) (bool, error) {
	members := make([]any, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			members = append(members, id)
		}
	}
	if len(members) == 0 {
		return false, nil
	}
	found, err := l.client.SMIsMember(ctx, l.key, members...).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check cancellation: %w", err)
	}
	return slices.Contains(found, true), nil
}

type MemoryCancelList struct {
	mu        sync.RWMutex
	cancelled map[string]struct{}
}

var _ CancelList = (*MemoryCancelList)(nil)

func NewMemoryCancelList() *MemoryCancelList {
	return &MemoryCancelList{cancelled: make(map[string]struct{})}
}

func (l *MemoryCancelList) Cancel(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cancelled[id] = struct{}{}
	return nil
}

func (l *MemoryCancelList) IsCancelled(ctx context.Context, ids ...string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, id := range ids {
		if _, ok := l.cancelled[id]; ok && id != "" {
			return true, nil
		}
	}
	return false, nil
}
