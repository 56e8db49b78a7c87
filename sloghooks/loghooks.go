// Package sloghooks logs cache events through log/slog.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	vc "github.com/unkn0wn-root/variantcache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	LookupEvery  uint64
	DiscardEvery uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	lookupCtr  atomic.Uint64
	discardCtr atomic.Uint64
}

var _ vc.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) LookupResolved(o vc.Outcome, r vc.Reason) {
	if h.l == nil || !sample(h.opts.LookupEvery, &h.lookupCtr) {
		return
	}
	h.l.Debug("variantcache.lookup",
		"outcome", o.String(),
		"reason", r.String())
}

func (h *Hooks) UnrecognizedPointer(storageKey, tag string) {
	if h.l == nil {
		return
	}
	h.l.Warn("variantcache.unrecognized_pointer",
		"key", h.redact(storageKey),
		"tag", tag)
}

func (h *Hooks) AssignmentPersisted(test string, excluded bool) {
	if h.l == nil {
		return
	}
	h.l.Debug("variantcache.assignment_persisted",
		"test", test,
		"excluded", excluded)
}

func (h *Hooks) EntryDiscarded(storageKey, reason string) {
	if h.l == nil || !sample(h.opts.DiscardEvery, &h.discardCtr) {
		return
	}
	h.l.Debug("variantcache.entry_discarded",
		"key", h.redact(storageKey),
		"reason", reason)
}

func (h *Hooks) ProviderSetRejected(storageKey string, pointer bool) {
	if h.l == nil {
		return
	}
	h.l.Warn("variantcache.provider_set_rejected",
		"key", h.redact(storageKey),
		"pointer", pointer)
}

func (h *Hooks) TagSnapshotError(count int, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("variantcache.tag_snapshot_error",
		"count", count,
		"err", err)
}

func (h *Hooks) TagBumpError(tag string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("variantcache.tag_bump_error",
		"tag", tag,
		"err", err)
}
