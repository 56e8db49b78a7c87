package variantcache

// Hooks are lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking; they run on the request path.
// See sloghooks, promhooks and hooks/async.
type Hooks interface {
	// A lookup finished. Called exactly once per TryServeFromCache.
	LookupResolved(outcome Outcome, reason Reason)

	// A base entry carried a pointer tag with no known kind prefix.
	UnrecognizedPointer(storageKey, tag string)

	// The resolver recorded a sticky decision for the current visitor.
	AssignmentPersisted(test string, excluded bool)

	// An entry was deleted on read.
	// reason ∈ {"corrupt", "dependency_changed"}
	EntryDiscarded(storageKey, reason string)

	// Provider returned ok=false on Set (backpressure/eviction).
	ProviderSetRejected(storageKey string, pointer bool)

	// TagStore errors. count is the number of tags involved.
	TagSnapshotError(count int, err error)
	TagBumpError(tag string, err error)
}

// NopHooks is the default no-op.
type NopHooks struct{}

func (NopHooks) LookupResolved(Outcome, Reason)     {}
func (NopHooks) UnrecognizedPointer(string, string) {}
func (NopHooks) AssignmentPersisted(string, bool)   {}
func (NopHooks) EntryDiscarded(string, string)      {}
func (NopHooks) ProviderSetRejected(string, bool)   {}
func (NopHooks) TagSnapshotError(int, error)        {}
func (NopHooks) TagBumpError(string, error)         {}
