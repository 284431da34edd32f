package sessionkit

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/pressline/sessionkit/authority"
	internalmetrics "github.com/pressline/sessionkit/internal/metrics"
	"github.com/pressline/sessionkit/store"
)

// renewer exchanges the stored renewal token for fresh credentials with
// single-flight semantics: while one exchange is in flight, concurrent
// callers attach to it and share its outcome instead of starting a second
// exchange that the authority would reject after the first rotates the
// token. Once an exchange resolves, the next call starts a fresh one.
//
// The renewer also owns every store write that can race an exchange:
// invalidate (logout, session expiry) and updateUser (summary refresh) go
// through the same mutex as the exchange's persist step, so a session ended
// mid-exchange stays ended and a stale summary write cannot drag old tokens
// back.
type renewer struct {
	store     store.Store
	authority Authority
	metrics   *internalmetrics.Metrics
	log       logrus.FieldLogger

	group singleflight.Group

	mu    sync.Mutex
	epoch uint64
}

const renewalKey = "renewal"

// renew returns fresh credentials, already persisted before any caller
// observes them. Terminal failures ([ErrRenewalFailed]) have cleared the
// store before they are returned; transient failures leave it untouched.
func (r *renewer) renew(ctx context.Context) (*store.Record, error) {
	v, err, shared := r.group.Do(renewalKey, func() (interface{}, error) {
		// The exchange must not die with the first caller's context:
		// attached waiters share this one execution. The authority
		// client's request timeout still bounds it.
		return r.exchange(context.WithoutCancel(ctx))
	})
	if shared {
		r.metrics.Inc(internalmetrics.RenewalCoalesced)
	}
	if err != nil {
		return nil, err
	}
	return v.(*store.Record).Clone(), nil
}

func (r *renewer) exchange(ctx context.Context) (*store.Record, error) {
	start := r.generation()

	rec, err := r.store.Get(ctx)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if rec == nil || rec.RenewalToken == "" {
		// No renewal credential: terminal. A bare access token that the
		// authority already rejected is useless, so drop the record.
		r.fail(ctx)
		return nil, fmt.Errorf("%w: no renewal credential", ErrRenewalFailed)
	}

	r.metrics.Inc(internalmetrics.RenewalStarted)
	fresh, err := r.authority.Renew(ctx, rec.RenewalToken)
	if err != nil {
		if authority.IsUnavailable(err) {
			// Transient: keep the record, the next cycle retries.
			return nil, err
		}
		r.log.WithError(err).Warn("credential renewal rejected")
		r.fail(ctx)
		return nil, fmt.Errorf("%w: %v", ErrRenewalFailed, err)
	}

	// Carry over what the authority did not rotate or resend.
	merged := rec.Clone()
	merged.AccessToken = fresh.AccessToken
	if fresh.RenewalToken != "" {
		merged.RenewalToken = fresh.RenewalToken
	}
	if fresh.User != (store.User{}) {
		merged.User = fresh.User
	}

	// Persist before resolving so no waiter can observe the pre-renewal
	// token through the store. The generation check keeps a logout that
	// landed during the exchange terminal: its cleared store must not be
	// repopulated with the renewed record.
	r.mu.Lock()
	if r.epoch != start {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: session ended during renewal", ErrRenewalFailed)
	}
	err = r.store.Put(ctx, merged)
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if r.generation() != start {
		// invalidate won the race after the write and already cleared it.
		return nil, fmt.Errorf("%w: session ended during renewal", ErrRenewalFailed)
	}
	r.metrics.Inc(internalmetrics.RenewalSuccess)
	return merged, nil
}

// invalidate ends the stored session: the store is cleared and any in-flight
// exchange resolves as failed instead of resurrecting the record.
func (r *renewer) invalidate(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.epoch++
	return r.store.Clear(ctx)
}

func (r *renewer) generation() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.epoch
}

// updateUser refreshes the stored user summary in place. The write is
// skipped when the record's access token no longer matches accessToken: a
// renewal finished in between, and the summary must not carry the old
// tokens back into the store.
func (r *renewer) updateUser(ctx context.Context, accessToken string, user store.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.store.Get(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	if rec.AccessToken != accessToken {
		return nil
	}
	rec.User = user
	return r.store.Put(ctx, rec)
}

func (r *renewer) fail(ctx context.Context) {
	if err := r.store.Clear(ctx); err != nil {
		r.log.WithError(err).Warn("clearing credential store after failed renewal")
	}
	r.metrics.Inc(internalmetrics.RenewalFailure)
}
