package metrics

import "sync/atomic"

// ID identifies a single counter.
type ID uint8

const (
	// ValidateAccepted counts remote validations answered "accepted".
	ValidateAccepted ID = iota
	// ValidateRejected counts remote validations answered 401/403.
	ValidateRejected
	// ValidateUnavailable counts validations that failed transiently.
	ValidateUnavailable
	// RenewalStarted counts renewal exchanges actually sent to the authority.
	RenewalStarted
	// RenewalCoalesced counts callers that attached to an in-flight renewal.
	RenewalCoalesced
	// RenewalSuccess counts renewals that produced a fresh credential.
	RenewalSuccess
	// RenewalFailure counts terminal renewal failures (store cleared).
	RenewalFailure
	// RequestRetried counts wrapped requests retried after a renewal.
	RequestRetried
	// SessionExpired counts wrapped requests that ended a session terminally.
	SessionExpired
	// Logout counts explicit logouts.
	Logout
	// StatePublished counts session-state publications.
	StatePublished

	// IDCount is the number of defined counters.
	IDCount
)

type paddedCounter struct {
	value atomic.Uint64
	_     [56]byte
}

// Config controls whether counting is active at all.
type Config struct {
	Enabled bool
}

// Metrics holds the counter slots. A nil or disabled Metrics is a no-op on
// every method.
type Metrics struct {
	enabled  bool
	counters [IDCount]paddedCounter
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	Counters map[ID]uint64
}

// New creates a Metrics instance; when cfg.Enabled is false all operations
// are no-ops.
func New(cfg Config) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Inc adds one to the counter at id.
func (m *Metrics) Inc(id ID) {
	if m == nil || !m.enabled || id >= IDCount {
		return
	}
	m.counters[id].value.Add(1)
}

// Get reads a single counter.
func (m *Metrics) Get(id ID) uint64 {
	if m == nil || !m.enabled || id >= IDCount {
		return 0
	}
	return m.counters[id].value.Load()
}

// Snapshot deep-copies every counter.
func (m *Metrics) Snapshot() Snapshot {
	snap := Snapshot{Counters: make(map[ID]uint64, IDCount)}
	if m == nil || !m.enabled {
		return snap
	}
	for id := ID(0); id < IDCount; id++ {
		snap.Counters[id] = m.counters[id].value.Load()
	}
	return snap
}
