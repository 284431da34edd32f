package sessionkit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pressline/sessionkit/authority"
	"github.com/pressline/sessionkit/store"
)

func rejectedErr() error {
	return fmt.Errorf("%w (status 401)", authority.ErrRejected)
}

func TestDoWithoutCredentials(t *testing.T) {
	fake := newFakeAuthority("access-0", "renew-0")
	m, _, _ := newTestManager(t, fake)

	err := m.Do(context.Background(), func(context.Context, string) error {
		t.Fatal("request ran without credentials")
		return nil
	})
	if !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("want ErrNoCredentials, got %v", err)
	}
}

func TestDoSuccessFirstAttempt(t *testing.T) {
	fake := newFakeAuthority("access-0", "renew-0")
	m, mem, clock := newTestManager(t, fake)
	rec := seedStore(t, m, mem, fake, clock)

	var attempts int
	err := m.Do(context.Background(), func(_ context.Context, tok string) error {
		attempts++
		if tok != rec.AccessToken {
			t.Fatalf("unexpected token: %q", tok)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected one attempt, got %d", attempts)
	}
}

func TestDoRetriesOnceWithRenewedToken(t *testing.T) {
	fake := newFakeAuthority("access-0", "renew-0")
	m, mem, clock := newTestManager(t, fake)
	old := seedStore(t, m, mem, fake, clock)
	fake.setAccessToken("rotated-elsewhere")

	var tokens []string
	err := m.Do(context.Background(), func(_ context.Context, tok string) error {
		tokens = append(tokens, tok)
		if tok == old.AccessToken {
			return rejectedErr()
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if len(tokens) != 2 {
		t.Fatalf("expected two attempts, got %d", len(tokens))
	}
	if tokens[0] != old.AccessToken || tokens[1] == old.AccessToken {
		t.Fatalf("unexpected token sequence: %v", tokens)
	}
	if fake.renewCalls.Load() != 1 {
		t.Fatalf("expected one renewal, got %d", fake.renewCalls.Load())
	}
}

func TestDoAtMostTwoAttempts(t *testing.T) {
	fake := newFakeAuthority("access-0", "renew-0")
	m, mem, clock := newTestManager(t, fake)
	seedStore(t, m, mem, fake, clock)

	// The request keeps answering 401 no matter the token.
	var attempts int
	err := m.Do(context.Background(), func(context.Context, string) error {
		attempts++
		return rejectedErr()
	})
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("want ErrSessionExpired, got %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected exactly two attempts, got %d", attempts)
	}

	// Terminal failure is visible to every consumer.
	if m.State().Authenticated {
		t.Fatal("authenticated state survived session expiry")
	}
	if _, err := mem.Get(context.Background()); !errors.Is(err, store.ErrNotFound) {
		t.Fatal("store not cleared on session expiry")
	}
}

func TestDoNonAuthErrorsPassThrough(t *testing.T) {
	fake := newFakeAuthority("access-0", "renew-0")
	m, mem, clock := newTestManager(t, fake)
	seedStore(t, m, mem, fake, clock)

	sentinel := &authority.StatusError{Code: 422, Message: "title required"}
	var attempts int
	err := m.Do(context.Background(), func(context.Context, string) error {
		attempts++
		return sentinel
	})
	var status *authority.StatusError
	if !errors.As(err, &status) || status != sentinel {
		t.Fatalf("error not passed through unchanged: %v", err)
	}
	if attempts != 1 {
		t.Fatalf("non-auth error triggered a retry: %d attempts", attempts)
	}
	if fake.renewCalls.Load() != 0 {
		t.Fatal("non-auth error triggered a renewal")
	}
}

func TestDoTerminalWhenRenewalFails(t *testing.T) {
	fake := newFakeAuthority("access-0", "renew-0")
	m, mem, clock := newTestManager(t, fake)
	rec := seedStore(t, m, mem, fake, clock)

	rec.RenewalToken = ""
	if err := mem.Put(context.Background(), rec); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	err := m.Do(context.Background(), func(context.Context, string) error {
		return rejectedErr()
	})
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("want ErrSessionExpired, got %v", err)
	}
	if _, err := mem.Get(context.Background()); !errors.Is(err, store.ErrNotFound) {
		t.Fatal("store not cleared")
	}
	if m.State().Authenticated {
		t.Fatal("authenticated state survived terminal renewal failure")
	}
}

func TestDoTransientRenewalFailureIsRetryable(t *testing.T) {
	fake := newFakeAuthority("access-0", "renew-0")
	m, mem, clock := newTestManager(t, fake)
	seedStore(t, m, mem, fake, clock)

	var attempts int
	err := m.Do(context.Background(), func(context.Context, string) error {
		attempts++
		// First attempt rejected; by then the authority is down.
		fake.setUnavailable(true)
		return rejectedErr()
	})
	if !authority.IsUnavailable(err) {
		t.Fatalf("want ErrUnavailable, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected one attempt, got %d", attempts)
	}
	// Session survives: nothing cleared, nothing published as terminal.
	if _, err := mem.Get(context.Background()); err != nil {
		t.Fatalf("record destroyed by transient failure: %v", err)
	}
}

// Two wrapped requests race into a 401; the renewal happens once and both
// retries run with the fresh token.
func TestDoConcurrentRejectionsShareOneRenewal(t *testing.T) {
	fake := newFakeAuthority("access-0", "renew-0")
	m, mem, clock := newTestManager(t, fake)
	old := seedStore(t, m, mem, fake, clock)
	fake.setAccessToken("rotated-elsewhere")

	gate := make(chan struct{})
	fake.mu.Lock()
	fake.renewGate = gate
	fake.mu.Unlock()

	var retriesWithFresh atomic.Int64
	request := func(_ context.Context, tok string) error {
		if tok == old.AccessToken {
			return rejectedErr()
		}
		retriesWithFresh.Add(1)
		return nil
	}

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- m.Do(context.Background(), request)
		}()
	}

	deadline := time.Now().Add(2 * time.Second)
	for fake.renewCalls.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("renewal never started")
		}
		time.Sleep(time.Millisecond)
	}
	time.Sleep(100 * time.Millisecond)
	close(gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("Do failed: %v", err)
		}
	}
	if fake.renewCalls.Load() != 1 {
		t.Fatalf("expected one renewal, got %d", fake.renewCalls.Load())
	}
	if retriesWithFresh.Load() != 2 {
		t.Fatalf("expected both retries with fresh token, got %d", retriesWithFresh.Load())
	}
}

func TestProfileThroughWrapper(t *testing.T) {
	fake := newFakeAuthority("access-0", "renew-0")
	m, mem, clock := newTestManager(t, fake)
	seedStore(t, m, mem, fake, clock)

	user, err := m.Profile(context.Background())
	if err != nil {
		t.Fatalf("Profile failed: %v", err)
	}
	if user.DisplayName != "Alice" {
		t.Fatalf("unexpected profile: %+v", user)
	}

	// A stale stored token renews transparently inside the wrapper.
	fake.setAccessToken("rotated-elsewhere")
	if _, err := m.Profile(context.Background()); err != nil {
		t.Fatalf("Profile with stale token failed: %v", err)
	}
	if fake.renewCalls.Load() != 1 {
		t.Fatalf("expected one renewal, got %d", fake.renewCalls.Load())
	}
}

func TestUpdateProfileRefreshesSummary(t *testing.T) {
	fake := newFakeAuthority("access-0", "renew-0")
	m, mem, clock := newTestManager(t, fake)
	seedStore(t, m, mem, fake, clock)

	if _, err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	updated, err := m.UpdateProfile(context.Background(), User{DisplayName: "Alice B"})
	if err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	if updated.DisplayName != "Alice B" {
		t.Fatalf("update not applied: %+v", updated)
	}

	stored, err := mem.Get(context.Background())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored.User.DisplayName != "Alice B" {
		t.Fatalf("stored summary not refreshed: %+v", stored.User)
	}
	if s := m.State(); s.User == nil || s.User.DisplayName != "Alice B" {
		t.Fatalf("published state not refreshed: %+v", s)
	}
}
