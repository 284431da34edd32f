package sessionkit

import (
	"context"
	"errors"
	"fmt"

	"github.com/pressline/sessionkit/authority"
	internalmetrics "github.com/pressline/sessionkit/internal/metrics"
	"github.com/pressline/sessionkit/store"
)

// RequestFunc issues one attempt of an authenticated request with the given
// access token. Returning an error for which [authority.IsRejected] holds
// marks the credential as rejected; any other error passes through Do
// unchanged.
type RequestFunc func(ctx context.Context, accessToken string) error

// Do runs fn with the stored access token. On rejection it renews once
// (single-flight, shared with every other caller and with the revalidation
// loop) and retries exactly once with the fresh token; fn therefore runs at
// most twice. A rejection after renewal — or a terminal renewal failure —
// ends the session for all consumers and returns [ErrSessionExpired].
func (m *Manager) Do(ctx context.Context, fn RequestFunc) error {
	if m.isClosed() {
		return ErrManagerClosed
	}

	rec, err := m.store.Get(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNoCredentials
		}
		return err
	}

	err = fn(ctx, rec.AccessToken)
	if err == nil || !authority.IsRejected(err) {
		return err
	}

	renewed, rerr := m.renewer.renew(ctx)
	if rerr != nil {
		if authority.IsUnavailable(rerr) {
			// Transient renewal failure: the session survives, the
			// caller retries on its own schedule.
			return rerr
		}
		m.expireSession(ctx)
		return fmt.Errorf("%w: %v", ErrSessionExpired, rerr)
	}
	m.toAuthenticated(ctx, renewed.User)

	m.metrics.Inc(internalmetrics.RequestRetried)
	err = fn(ctx, renewed.AccessToken)
	if err != nil && authority.IsRejected(err) {
		m.expireSession(ctx)
		return fmt.Errorf("%w: credential rejected after renewal", ErrSessionExpired)
	}
	return err
}
