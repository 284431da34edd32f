package sessionkit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pressline/sessionkit/authority"
	"github.com/pressline/sessionkit/store"
	"github.com/pressline/sessionkit/token"
)

func testUser() store.User {
	return store.User{ID: "u1", DisplayName: "Alice", Email: "alice@example.com", Role: "editor"}
}

func mintToken(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := token.Claims{
		UserID: "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("minting test token failed: %v", err)
	}
	return raw
}

// fakeAuthority is an in-memory Authority. It accepts exactly one access
// token and one renewal token at a time and rotates both on renewal.
type fakeAuthority struct {
	mu sync.Mutex

	accessToken  string
	renewalToken string
	user         store.User

	// unavailable makes every call fail transiently.
	unavailable bool
	// renewGate, when set, blocks the renewal exchange until closed.
	renewGate chan struct{}

	validateCalls atomic.Int64
	renewCalls    atomic.Int64
}

func newFakeAuthority(access, renewal string) *fakeAuthority {
	return &fakeAuthority{
		accessToken:  access,
		renewalToken: renewal,
		user:         testUser(),
	}
}

func (f *fakeAuthority) setUnavailable(v bool) {
	f.mu.Lock()
	f.unavailable = v
	f.mu.Unlock()
}

func (f *fakeAuthority) setAccessToken(tok string) {
	f.mu.Lock()
	f.accessToken = tok
	f.mu.Unlock()
}

func (f *fakeAuthority) Login(_ context.Context, email, password string) (*store.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unavailable {
		return nil, fmt.Errorf("%w: fake down", authority.ErrUnavailable)
	}
	if email != "alice@example.com" || password != "correct-password-123" {
		return nil, authority.ErrInvalidCredentials
	}
	return &store.Record{AccessToken: f.accessToken, RenewalToken: f.renewalToken, User: f.user}, nil
}

func (f *fakeAuthority) Register(_ context.Context, req RegisterRequest) (*store.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unavailable {
		return nil, fmt.Errorf("%w: fake down", authority.ErrUnavailable)
	}
	if req.Email == "alice@example.com" {
		return nil, authority.ErrAccountExists
	}
	return &store.Record{User: store.User{ID: "u2", Email: req.Email, DisplayName: req.DisplayName}}, nil
}

func (f *fakeAuthority) Validate(_ context.Context, accessToken string) error {
	f.validateCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unavailable {
		return fmt.Errorf("%w: fake down", authority.ErrUnavailable)
	}
	if accessToken != f.accessToken {
		return fmt.Errorf("%w (status 401)", authority.ErrRejected)
	}
	return nil
}

func (f *fakeAuthority) Renew(_ context.Context, renewalToken string) (*store.Record, error) {
	f.renewCalls.Add(1)

	f.mu.Lock()
	gate := f.renewGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unavailable {
		return nil, fmt.Errorf("%w: fake down", authority.ErrUnavailable)
	}
	if renewalToken != f.renewalToken {
		return nil, fmt.Errorf("%w (status 401)", authority.ErrRejected)
	}
	f.accessToken = f.accessToken + "+"
	f.renewalToken = f.renewalToken + "+"
	return &store.Record{AccessToken: f.accessToken, RenewalToken: f.renewalToken, User: f.user}, nil
}

func (f *fakeAuthority) Profile(_ context.Context, accessToken string) (*store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unavailable {
		return nil, fmt.Errorf("%w: fake down", authority.ErrUnavailable)
	}
	if accessToken != f.accessToken {
		return nil, fmt.Errorf("%w (status 401)", authority.ErrRejected)
	}
	user := f.user
	return &user, nil
}

func (f *fakeAuthority) UpdateProfile(_ context.Context, accessToken string, user store.User) (*store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unavailable {
		return nil, fmt.Errorf("%w: fake down", authority.ErrUnavailable)
	}
	if accessToken != f.accessToken {
		return nil, fmt.Errorf("%w (status 401)", authority.ErrRejected)
	}
	f.user.DisplayName = user.DisplayName
	updated := f.user
	return &updated, nil
}

func (f *fakeAuthority) RequestPasswordReset(_ context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unavailable {
		return fmt.Errorf("%w: fake down", authority.ErrUnavailable)
	}
	return nil
}

// waitForState receives published states until cond holds or the deadline
// passes.
func waitForState(t *testing.T, sub *Subscription, cond func(SessionState) bool) SessionState {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case s, ok := <-sub.States():
			if !ok {
				t.Fatal("subscription closed while waiting for state")
			}
			if cond(s) {
				return s
			}
		case <-deadline:
			t.Fatal("timed out waiting for session state")
		}
	}
}
