package sessionkit

import (
	"context"

	"github.com/pressline/sessionkit/authority"
	internalmetrics "github.com/pressline/sessionkit/internal/metrics"
	"github.com/pressline/sessionkit/store"
)

// User is the denormalized profile snapshot published with an authenticated
// session.
type User = store.User

// Credentials is the stored credential record: access token, optional
// renewal token, user summary.
type Credentials = store.Record

// RegisterRequest is the signup payload forwarded to the authority.
type RegisterRequest = authority.RegisterRequest

// Phase is the Manager's lifecycle state.
type Phase uint8

const (
	// PhaseUnknown is the initial state before Start has run a cycle.
	PhaseUnknown Phase = iota
	// PhaseValidating means a remote validation is in flight.
	PhaseValidating
	// PhaseAuthenticated means the stored credential was accepted.
	PhaseAuthenticated
	// PhaseRefreshing means a renewal exchange is in flight.
	PhaseRefreshing
	// PhaseUnauthenticated means no usable credential is held.
	PhaseUnauthenticated
)

func (p Phase) String() string {
	switch p {
	case PhaseUnknown:
		return "unknown"
	case PhaseValidating:
		return "validating"
	case PhaseAuthenticated:
		return "authenticated"
	case PhaseRefreshing:
		return "refreshing"
	case PhaseUnauthenticated:
		return "unauthenticated"
	}
	return "invalid"
}

// SessionState is the published read model. Authenticated implies User is
// non-nil; Loading is true only before the first cycle completes, the one
// window in which Authenticated may be stale.
type SessionState struct {
	Authenticated bool
	User          *User
	Loading       bool
}

// Authority is the remote-authority contract the Manager consumes.
// [authority.Client] is the production implementation; tests substitute
// in-memory fakes.
type Authority interface {
	Login(ctx context.Context, email, password string) (*store.Record, error)
	Register(ctx context.Context, req RegisterRequest) (*store.Record, error)
	Validate(ctx context.Context, accessToken string) error
	Renew(ctx context.Context, renewalToken string) (*store.Record, error)
	Profile(ctx context.Context, accessToken string) (*store.User, error)
	UpdateProfile(ctx context.Context, accessToken string, user store.User) (*store.User, error)
	RequestPasswordReset(ctx context.Context, email string) error
}

// MetricID identifies a sessionkit counter.
type MetricID = internalmetrics.ID

const (
	// MetricValidateAccepted counts validations the authority accepted.
	MetricValidateAccepted = internalmetrics.ValidateAccepted
	// MetricValidateRejected counts validations the authority rejected.
	MetricValidateRejected = internalmetrics.ValidateRejected
	// MetricValidateUnavailable counts transiently failed validations.
	MetricValidateUnavailable = internalmetrics.ValidateUnavailable
	// MetricRenewalStarted counts renewal exchanges sent to the authority.
	MetricRenewalStarted = internalmetrics.RenewalStarted
	// MetricRenewalCoalesced counts callers attached to an in-flight renewal.
	MetricRenewalCoalesced = internalmetrics.RenewalCoalesced
	// MetricRenewalSuccess counts renewals that produced fresh credentials.
	MetricRenewalSuccess = internalmetrics.RenewalSuccess
	// MetricRenewalFailure counts terminal renewal failures.
	MetricRenewalFailure = internalmetrics.RenewalFailure
	// MetricRequestRetried counts wrapped requests retried after renewal.
	MetricRequestRetried = internalmetrics.RequestRetried
	// MetricSessionExpired counts terminal wrapped-request failures.
	MetricSessionExpired = internalmetrics.SessionExpired
	// MetricLogout counts explicit logouts.
	MetricLogout = internalmetrics.Logout
	// MetricStatePublished counts session-state publications.
	MetricStatePublished = internalmetrics.StatePublished
)

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot = internalmetrics.Snapshot
