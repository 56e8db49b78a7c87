// Package asynchook moves hook work off the request path.
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{DiscardEvery: 10})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker, queue 1000 events
//	defer hooks.Close()
//
//	oc, _ := variantcache.New(variantcache.Options{..., Hooks: hooks})
//
// Events are dropped, never blocked on, when the queue is full.
package asynchook

import (
	"sync"
	"sync/atomic"

	vc "github.com/unkn0wn-root/variantcache"
)

type Hooks struct {
	inner   vc.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex // guards q against send after close
	closed  bool
	dropped atomic.Uint64
}

var _ vc.Hooks = (*Hooks)(nil)

func New(inner vc.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Later events are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

// Dropped reports how many events were discarded.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) LookupResolved(o vc.Outcome, r vc.Reason) {
	h.try(func() { h.inner.LookupResolved(o, r) })
}
func (h *Hooks) UnrecognizedPointer(k, tag string) {
	h.try(func() { h.inner.UnrecognizedPointer(k, tag) })
}
func (h *Hooks) AssignmentPersisted(test string, excluded bool) {
	h.try(func() { h.inner.AssignmentPersisted(test, excluded) })
}
func (h *Hooks) EntryDiscarded(k, reason string) { h.try(func() { h.inner.EntryDiscarded(k, reason) }) }
func (h *Hooks) ProviderSetRejected(k string, pointer bool) {
	h.try(func() { h.inner.ProviderSetRejected(k, pointer) })
}
func (h *Hooks) TagSnapshotError(n int, err error) {
	h.try(func() { h.inner.TagSnapshotError(n, err) })
}
func (h *Hooks) TagBumpError(tag string, err error) { h.try(func() { h.inner.TagBumpError(tag, err) }) }
