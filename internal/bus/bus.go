package bus

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/madhavipuliraju/teams-outbound-handler/internal/domain"
)

const publishTimeout = 10 * time.Second

// Handler processes one inbound event.
type Handler func(ctx context.Context, ev domain.Event)

// Queue is a sharded in-memory queue of inbound events. Events with the same
// auth id always land on the same shard and are handled one at a time, which
// keeps transcript appends for a conversation in arrival order.
type Queue struct {
	shards []chan domain.Event
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	logger *slog.Logger
}

// New creates a Queue with the given number of shards, each buffering up to
// bufferSize events.
func New(shards, bufferSize int, logger *slog.Logger) *Queue {
	if shards <= 0 {
		shards = 1
	}
	if bufferSize <= 0 {
		bufferSize = 100
	}
	q := &Queue{
		shards: make([]chan domain.Event, shards),
		logger: logger,
	}
	for i := range q.shards {
		q.shards[i] = make(chan domain.Event, bufferSize)
	}
	return q
}

// Publish blocks up to 10 seconds if the shard is full instead of dropping.
// It reports whether the event was accepted.
func (q *Queue) Publish(ev domain.Event) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.logger.Warn("attempted to publish to closed queue")
		return false
	}

	shard := q.shards[q.shardFor(ev.AuthID)]
	select {
	case shard <- ev:
		return true
	default:
		q.logger.Warn("event shard full, waiting...", "user", ev.AuthID)
		timer := time.NewTimer(publishTimeout)
		defer timer.Stop()
		select {
		case shard <- ev:
			q.logger.Info("event delivered after wait", "user", ev.AuthID)
			return true
		case <-timer.C:
			q.logger.Error("event dropped: shard full for 10s", "user", ev.AuthID, "event_name", ev.Body.EventName)
			return false
		}
	}
}

// Run starts one worker per shard and blocks until the queue is closed and
// drained.
func (q *Queue) Run(ctx context.Context, handle Handler) {
	for _, shard := range q.shards {
		q.wg.Add(1)
		go func(ch <-chan domain.Event) {
			defer q.wg.Done()
			for ev := range ch {
				handle(ctx, ev)
			}
		}(shard)
	}
	q.wg.Wait()
}

// Close stops accepting events. Workers finish what is already queued.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		for _, ch := range q.shards {
			close(ch)
		}
	}
}

func (q *Queue) shardFor(key string) int {
	if len(q.shards) == 1 {
		return 0
	}
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(q.shards)))
}
