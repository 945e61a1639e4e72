package poller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tiplinehq/tipline/pkg/infra"
)

// Poller is the interface implemented by both poller kinds.
type Poller interface {
	Start()
	Stop()
	Name() string
	Stats() StatsSnapshot
}

// Stats tracks one poller's counters for the health endpoint.
type Stats struct {
	mu         sync.Mutex
	lastPollAt time.Time
	cycles     uint64
	processed  uint64
	errors     uint64
}

type StatsSnapshot struct {
	LastPollAt time.Time `json:"last_poll_at"`
	Cycles     uint64    `json:"cycles"`
	Processed  uint64    `json:"processed"`
	Errors     uint64    `json:"errors"`
}

func (s *Stats) cycleDone(processed int, failed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastPollAt = time.Now().UTC()
	s.cycles++
	s.processed += uint64(processed)
	if failed {
		s.errors++
	}
}

func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StatsSnapshot{
		LastPollAt: s.lastPollAt,
		Cycles:     s.cycles,
		Processed:  s.processed,
		Errors:     s.errors,
	}
}

// FailureQueue captures events that hit infrastructure failures, for ops
// inspection and manual rescan. Event-level outcomes never land here; they
// are ledger rows.
type FailureQueue interface {
	EnqueueFailedEvent(ctx context.Context, pollerName string, eventID string) error
}

type redisFailureQueue struct {
	client infra.RedisClient
}

// NewRedisFailureQueue returns nil when no client is configured; callers
// treat a nil queue as disabled.
func NewRedisFailureQueue(client infra.RedisClient) FailureQueue {
	if client == nil {
		return nil
	}
	return &redisFailureQueue{client: client}
}

func (q *redisFailureQueue) EnqueueFailedEvent(ctx context.Context, pollerName string, eventID string) error {
	key := fmt.Sprintf("failed_events:%s", pollerName)
	return q.client.GetClient().LPush(ctx, key, eventID).Err()
}
