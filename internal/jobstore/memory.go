// Package jobstore provides ResultStore implementations for finished job
// results: an in-memory map with TTL eviction, a SQLite store that survives
// restarts, and a Redis store with native expiry. All stores are safe for
// concurrent use and make Put atomic per key.
package jobstore

import (
	"context"
	"sync"
	"time"

	"github.com/verimedia/verimedia/internal/interfaces"
	"github.com/verimedia/verimedia/internal/logging"
	"github.com/verimedia/verimedia/internal/model"
)

var (
	_ interfaces.ResultStore = (*MemoryStore)(nil)
	_ interfaces.ResultStore = (*SQLiteStore)(nil)
	_ interfaces.ResultStore = (*RedisStore)(nil)
)

type memoryEntry struct {
	result   *model.JobResult
	storedAt time.Time
}

// MemoryStore keeps results in process memory. A background janitor evicts
// entries older than the TTL; a zero TTL disables eviction and keeps results
// until process restart.
type MemoryStore struct {
	ttl    time.Duration
	logger logging.Logger

	mu      sync.Mutex
	results map[string]memoryEntry

	stop     chan struct{}
	stopOnce sync.Once
}

// NewMemoryStore builds the store and starts its janitor when ttl > 0.
func NewMemoryStore(ttl time.Duration, logger logging.Logger) *MemoryStore {
	s := &MemoryStore{
		ttl:     ttl,
		logger:  logger.With(logging.Field{Key: "component", Value: "memory-store"}),
		results: make(map[string]memoryEntry),
		stop:    make(chan struct{}),
	}
	if ttl > 0 {
		go s.janitor()
	}
	return s
}

func (s *MemoryStore) janitor() {
	interval := s.ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.evictExpired()
		}
	}
}

func (s *MemoryStore) evictExpired() {
	cutoff := time.Now().Add(-s.ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for id, entry := range s.results {
		if entry.storedAt.Before(cutoff) {
			delete(s.results, id)
			evicted++
		}
	}
	if evicted > 0 {
		s.logger.Debug("evicted expired job results",
			logging.Field{Key: "count", Value: evicted})
	}
}

func (s *MemoryStore) Put(ctx context.Context, result *model.JobResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[result.JobID] = memoryEntry{result: result, storedAt: time.Now()}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, jobID string) (*model.JobResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.results[jobID]
	if !ok {
		return nil, interfaces.ErrResultNotFound
	}
	return entry.result, nil
}

// Close stops the janitor. Stored results are discarded with the process.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}
