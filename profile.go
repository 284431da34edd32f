package sessionkit

import (
	"context"

	"github.com/pressline/sessionkit/store"
)

// Profile reads the authenticated user's profile through the request
// wrapper, so a stale token is renewed transparently.
func (m *Manager) Profile(ctx context.Context) (*User, error) {
	var profile *store.User
	err := m.Do(ctx, func(ctx context.Context, accessToken string) error {
		p, err := m.authority.Profile(ctx, accessToken)
		if err != nil {
			return err
		}
		profile = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// UpdateProfile writes profile fields and refreshes the stored user summary
// and the published state with the authority's copy.
func (m *Manager) UpdateProfile(ctx context.Context, user User) (*User, error) {
	var (
		updated   *store.User
		usedToken string
	)
	err := m.Do(ctx, func(ctx context.Context, accessToken string) error {
		u, err := m.authority.UpdateProfile(ctx, accessToken, user)
		if err != nil {
			return err
		}
		usedToken = accessToken
		updated = u
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Refresh the denormalized summary through the renewal-serialized write
	// path; the write is dropped when the record was replaced in between.
	if err := m.renewer.updateUser(ctx, usedToken, *updated); err != nil {
		m.log.WithError(err).Warn("refreshing stored user summary")
	}
	if m.State().Authenticated {
		m.publish(SessionState{Authenticated: true, User: updated})
	}
	return updated, nil
}
