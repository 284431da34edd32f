package sessionkit

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/pressline/sessionkit/authority"
	internalmetrics "github.com/pressline/sessionkit/internal/metrics"
	"github.com/pressline/sessionkit/store"
	"github.com/pressline/sessionkit/token"
)

// Manager is the session coordinator. It owns the credential store and the
// published session state, drives the Unknown → Validating →
// {Authenticated, Refreshing, Unauthenticated} lifecycle, and runs the
// periodic revalidation loop while authenticated.
type Manager struct {
	config    Config
	store     store.Store
	authority Authority
	renewer   *renewer
	states    *broadcaster
	metrics   *internalmetrics.Metrics
	clock     clockwork.Clock
	log       logrus.FieldLogger

	mu         sync.Mutex // guards phase and loop lifecycle
	phase      Phase
	closed     bool
	loopCancel context.CancelFunc
	loopDone   chan struct{}
}

// Phase returns the current lifecycle phase.
func (m *Manager) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

func (m *Manager) setPhase(p Phase) {
	m.mu.Lock()
	m.phase = p
	m.mu.Unlock()
}

// State returns the current published session state.
func (m *Manager) State() SessionState {
	return m.states.Current()
}

// Subscribe registers a consumer for session-state updates. The
// subscription is seeded with the current state.
func (m *Manager) Subscribe() *Subscription {
	return m.states.subscribe()
}

// Unsubscribe releases a subscription and closes its channel.
func (m *Manager) Unsubscribe(sub *Subscription) {
	m.states.unsubscribe(sub)
}

// MetricsSnapshot returns a copy of all counters. Empty when metrics are
// disabled.
func (m *Manager) MetricsSnapshot() MetricsSnapshot {
	return m.metrics.Snapshot()
}

func (m *Manager) publish(s SessionState) {
	m.metrics.Inc(internalmetrics.StatePublished)
	m.states.publish(s)
}

// Start runs the initial lifecycle cycle: read the store, short-circuit on
// absence or definite local expiry, otherwise validate remotely and renew if
// rejected. It returns the resulting session state; while authenticated the
// periodic revalidation loop is running. Safe to call again after a
// fail-open cycle.
func (m *Manager) Start(ctx context.Context) (SessionState, error) {
	if m.isClosed() {
		return m.states.Current(), ErrManagerClosed
	}

	rec, err := m.store.Get(ctx)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		m.stopLoop()
		m.toUnauthenticated()
		return m.states.Current(), err
	}
	if rec == nil {
		// Nothing stored: no network call at all.
		m.stopLoop()
		m.toUnauthenticated()
		return m.states.Current(), nil
	}
	if token.Expired(rec.AccessToken, m.clock.Now(), m.config.Token.ExpirySkew) {
		m.stopLoop()
		m.toUnauthenticated()
		return m.states.Current(), nil
	}

	m.revalidate(ctx)
	// A cycle that ended anywhere but authenticated must not leave a timer
	// armed from a previous session.
	if m.Phase() != PhaseAuthenticated {
		m.stopLoop()
	}
	return m.states.Current(), nil
}

// revalidate runs one Validating cycle against the stored credential. It is
// entered from Start and from the periodic loop.
func (m *Manager) revalidate(ctx context.Context) {
	rec, err := m.store.Get(ctx)
	if err != nil || rec == nil {
		// Logged out underneath us, or the store is unreadable. Either
		// way there is nothing to validate.
		m.toUnauthenticated()
		return
	}

	m.setPhase(PhaseValidating)
	err = m.authority.Validate(ctx, rec.AccessToken)
	switch {
	case err == nil:
		m.metrics.Inc(internalmetrics.ValidateAccepted)
		m.toAuthenticated(ctx, rec.User)
	case authority.IsRejected(err):
		m.metrics.Inc(internalmetrics.ValidateRejected)
		m.refresh(ctx)
	default:
		m.metrics.Inc(internalmetrics.ValidateUnavailable)
		if m.config.Revalidate.FailOpen {
			m.log.WithError(err).Debug("validation unavailable, keeping prior session state")
			m.failOpen(ctx)
			return
		}
		m.refresh(ctx)
	}
}

// refresh runs the Refreshing state: one single-flight renewal attempt.
func (m *Manager) refresh(ctx context.Context) {
	m.setPhase(PhaseRefreshing)
	renewed, err := m.renewer.renew(ctx)
	switch {
	case err == nil:
		m.toAuthenticated(ctx, renewed.User)
	case authority.IsUnavailable(err) && m.config.Revalidate.FailOpen:
		m.log.WithError(err).Debug("renewal unavailable, keeping prior session state")
		m.failOpen(ctx)
	default:
		// Terminal: the renewer has already cleared the store.
		m.toUnauthenticated()
	}
}

func (m *Manager) toAuthenticated(ctx context.Context, user User) {
	m.setPhase(PhaseAuthenticated)
	m.publish(SessionState{Authenticated: true, User: &user})
	m.ensureLoop(ctx)
}

func (m *Manager) toUnauthenticated() {
	m.setPhase(PhaseUnauthenticated)
	m.publish(SessionState{})
}

// failOpen re-publishes the previously published state with Loading cleared,
// leaving the stored record untouched for the next cycle.
func (m *Manager) failOpen(ctx context.Context) {
	s := m.states.Current()
	s.Loading = false
	if s.Authenticated {
		m.setPhase(PhaseAuthenticated)
		m.publish(s)
		m.ensureLoop(ctx)
		return
	}
	m.setPhase(PhaseUnauthenticated)
	m.publish(s)
}

// Login exchanges credentials for a session, persists it, and publishes the
// authenticated state. Malformed input is rejected before any network
// activity; authority failures pass through unchanged.
func (m *Manager) Login(ctx context.Context, email, password string) (SessionState, error) {
	if m.isClosed() {
		return m.states.Current(), ErrManagerClosed
	}
	if !validEmail(email) || password == "" {
		return m.states.Current(), ErrInvalidInput
	}

	rec, err := m.authority.Login(ctx, email, password)
	if err != nil {
		return m.states.Current(), err
	}
	if err := m.store.Put(ctx, rec); err != nil {
		return m.states.Current(), err
	}
	m.toAuthenticated(ctx, rec.User)
	return m.states.Current(), nil
}

// Register creates an account. When the authority issues tokens right away
// the session starts as with Login; otherwise the published state is left
// unchanged and the returned state reflects that.
func (m *Manager) Register(ctx context.Context, req RegisterRequest) (SessionState, error) {
	if m.isClosed() {
		return m.states.Current(), ErrManagerClosed
	}
	if !validEmail(req.Email) || req.Password == "" {
		return m.states.Current(), ErrInvalidInput
	}

	rec, err := m.authority.Register(ctx, req)
	if err != nil {
		return m.states.Current(), err
	}
	if rec.AccessToken == "" {
		// Account created but tokens deferred (e.g. pending verification).
		return m.states.Current(), nil
	}
	if err := m.store.Put(ctx, rec); err != nil {
		return m.states.Current(), err
	}
	m.toAuthenticated(ctx, rec.User)
	return m.states.Current(), nil
}

// RequestPasswordReset forwards a reset request for email to the authority.
func (m *Manager) RequestPasswordReset(ctx context.Context, email string) error {
	if m.isClosed() {
		return ErrManagerClosed
	}
	if !validEmail(email) {
		return ErrInvalidInput
	}
	return m.authority.RequestPasswordReset(ctx, email)
}

// Logout tears the session down synchronously: the revalidation loop is
// stopped before the store is cleared and the unauthenticated state
// published, so no timer can fire afterwards.
func (m *Manager) Logout(ctx context.Context) error {
	if m.isClosed() {
		return ErrManagerClosed
	}

	m.stopLoop()
	err := m.renewer.invalidate(ctx)
	m.metrics.Inc(internalmetrics.Logout)
	m.toUnauthenticated()
	return err
}

// Close stops the revalidation loop and closes all subscriptions. The
// stored credential record is left in place for the next process.
func (m *Manager) Close() {
	if m == nil {
		return
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	m.stopLoop()
	m.states.close()
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// expireSession is the terminal path of a wrapped request: renewal is
// hopeless, so the session ends for every consumer, not just the caller.
func (m *Manager) expireSession(ctx context.Context) {
	m.stopLoop()
	if err := m.renewer.invalidate(ctx); err != nil {
		m.log.WithError(err).Warn("clearing credential store on session expiry")
	}
	m.metrics.Inc(internalmetrics.SessionExpired)
	m.toUnauthenticated()
}

// ensureLoop starts the periodic revalidation loop if it is not running.
// The caller's context gates the start: a cycle whose context was cancelled
// by stopLoop must not re-register a loop behind the teardown's back.
func (m *Manager) ensureLoop(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.loopCancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	m.loopCancel = cancel
	m.loopDone = done
	go m.loop(ctx, done)
}

// stopLoop cancels the loop and waits for it to exit. Never called from the
// loop goroutine itself.
func (m *Manager) stopLoop() {
	m.mu.Lock()
	cancel, done := m.loopCancel, m.loopDone
	m.loopCancel, m.loopDone = nil, nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// releaseLoop clears the loop registration when the loop exits on its own,
// so a later authenticated transition can start a new one.
func (m *Manager) releaseLoop(done chan struct{}) {
	m.mu.Lock()
	if m.loopDone == done {
		m.loopCancel = nil
		m.loopDone = nil
	}
	m.mu.Unlock()
}

// loop revalidates at a fixed interval while authenticated. The timer
// pattern (single timer, Reset after each cycle) follows the usual
// rotated-credential refresh loop shape.
func (m *Manager) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	interval := m.config.Revalidate.Interval
	timer := m.clock.NewTimer(interval)
	defer timer.Stop()
	m.log.Debugf("revalidation loop started, interval %s", interval)

	for {
		select {
		case <-ctx.Done():
			m.log.Debug("revalidation loop stopped")
			return
		case <-timer.Chan():
			m.revalidate(ctx)
			if m.Phase() != PhaseAuthenticated {
				m.log.Debug("revalidation loop leaving authenticated state")
				m.releaseLoop(done)
				return
			}
			timer.Reset(interval)
		}
	}
}

func validEmail(email string) bool {
	email = strings.TrimSpace(email)
	at := strings.Index(email, "@")
	return at > 0 && at < len(email)-1
}
