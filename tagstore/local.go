package tagstore

import (
	"context"
	"sync"
	"time"
)

type localTag struct {
	Gen      uint64
	BumpedAt time.Time
}

// Local keeps tag generations in-process.
// An optional sweep loop forgets tags that were not bumped within retention;
// retention must comfortably exceed the longest entry TTL, since a forgotten
// tag reads as generation 0 again.
type Local struct {
	mu     sync.RWMutex
	tags   map[string]localTag
	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

var _ TagStore = (*Local)(nil)

func NewLocal(cleanupInterval, retention time.Duration) *Local {
	s := &Local{tags: make(map[string]localTag)}
	if cleanupInterval > 0 && retention > 0 {
		s.ticker = time.NewTicker(cleanupInterval)
		s.stopCh = make(chan struct{})
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for {
				select {
				case <-s.ticker.C:
					s.Cleanup(retention)
				case <-s.stopCh:
					return
				}
			}
		}()
	}
	return s
}

func (s *Local) Snapshot(_ context.Context, tag string) (uint64, error) {
	s.mu.RLock()
	e, ok := s.tags[tag]
	s.mu.RUnlock()
	if !ok {
		return 0, nil
	}
	return e.Gen, nil
}

// SnapshotMany takes the read lock once for the whole batch.
func (s *Local) SnapshotMany(_ context.Context, tags []string) (map[string]uint64, error) {
	out := make(map[string]uint64, len(tags))
	s.mu.RLock()
	for _, t := range tags {
		out[t] = s.tags[t].Gen
	}
	s.mu.RUnlock()
	return out, nil
}

func (s *Local) Bump(_ context.Context, tag string) (uint64, error) {
	now := time.Now()
	s.mu.Lock()
	e := s.tags[tag]
	e.Gen++
	e.BumpedAt = now
	s.tags[tag] = e
	s.mu.Unlock()
	return e.Gen, nil
}

func (s *Local) Cleanup(retention time.Duration) {
	if retention <= 0 {
		return
	}
	cutoff := time.Now().Add(-retention)

	s.mu.Lock()
	for t, e := range s.tags {
		if e.BumpedAt.Before(cutoff) {
			delete(s.tags, t)
		}
	}
	s.mu.Unlock()
}

// Close stops the sweep loop. Safe to call more than once.
func (s *Local) Close(_ context.Context) error {
	s.once.Do(func() {
		if s.stopCh != nil {
			s.ticker.Stop()
			close(s.stopCh)
			s.wg.Wait()
		}
	})
	return nil
}
