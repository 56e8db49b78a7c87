// Package promhooks exports cache events as Prometheus counters.
package promhooks

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	vc "github.com/unkn0wn-root/variantcache"
)

const metricsNamespace = "variantcache"

// Hooks counts events. Construct with New; register once per registry.
type Hooks struct {
	Lookups      *prometheus.CounterVec
	Unrecognized prometheus.Counter
	Assignments  *prometheus.CounterVec
	Discarded    *prometheus.CounterVec
	SetRejected  *prometheus.CounterVec
	TagErrors    *prometheus.CounterVec
}

var _ vc.Hooks = (*Hooks)(nil)

// New registers the counters with reg (prometheus.DefaultRegisterer if nil).
// cache is a constant label telling several caches in one process apart.
func New(reg prometheus.Registerer, cache string) *Hooks {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	labels := prometheus.Labels{"cache": cache}
	return &Hooks{
		Lookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "lookups_total",
			Help:        "Cache lookups by outcome and reason",
			ConstLabels: labels,
		}, []string{"outcome", "reason"}),
		Unrecognized: f.NewCounter(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "unrecognized_pointer_total",
			Help:        "Pointer entries whose tag has an unknown kind prefix",
			ConstLabels: labels,
		}),
		Assignments: f.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "assignments_total",
			Help:        "Sticky decisions recorded by lookups",
			ConstLabels: labels,
		}, []string{"decision"}),
		Discarded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "entries_discarded_total",
			Help:        "Entries deleted on read",
			ConstLabels: labels,
		}, []string{"reason"}),
		SetRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "provider_set_rejected_total",
			Help:        "Writes the provider refused",
			ConstLabels: labels,
		}, []string{"entry"}),
		TagErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "tag_store_errors_total",
			Help:        "Tag store failures by operation",
			ConstLabels: labels,
		}, []string{"op"}),
	}
}

func (h *Hooks) LookupResolved(o vc.Outcome, r vc.Reason) {
	h.Lookups.WithLabelValues(o.String(), r.String()).Inc()
}

func (h *Hooks) UnrecognizedPointer(string, string) { h.Unrecognized.Inc() }

// Test names are not labels; their cardinality is unbounded.
func (h *Hooks) AssignmentPersisted(_ string, excluded bool) {
	d := "variant"
	if excluded {
		d = "excluded"
	}
	h.Assignments.WithLabelValues(d).Inc()
}

func (h *Hooks) EntryDiscarded(_, reason string) { h.Discarded.WithLabelValues(reason).Inc() }

func (h *Hooks) ProviderSetRejected(_ string, pointer bool) {
	e := "content"
	if pointer {
		e = "pointer"
	}
	h.SetRejected.WithLabelValues(e).Inc()
}

func (h *Hooks) TagSnapshotError(int, error) { h.TagErrors.WithLabelValues("snapshot").Inc() }
func (h *Hooks) TagBumpError(string, error)  { h.TagErrors.WithLabelValues("bump").Inc() }
