package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by [Store.Get] when no credential record is held.
var ErrNotFound = errors.New("no credential record")

// User is the denormalized profile snapshot carried alongside the tokens.
// It is refreshed opportunistically whenever the authority returns a newer
// copy (login, renewal, profile update).
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	Role        string `json:"role"`
}

// Record is the single credential unit held by a [Store].
//
// AccessToken is the opaque bearer value presented on authenticated requests;
// its expiry claim is decoded on demand and deliberately not cached here.
// RenewalToken may be empty when the authority did not issue one.
type Record struct {
	AccessToken  string `json:"access_token"`
	RenewalToken string `json:"renewal_token,omitempty"`
	User         User   `json:"user"`
}

// Clone returns a deep copy so callers can never alias stored state.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	cp := *r
	return &cp
}

// Store is the persistence contract for the credential record. Implementations
// must be safe for concurrent use; Get returns [ErrNotFound] when empty, Put
// replaces any existing record wholesale, and Clear is idempotent.
type Store interface {
	Get(ctx context.Context) (*Record, error)
	Put(ctx context.Context, rec *Record) error
	Clear(ctx context.Context) error
}

// ErrNilRecord is returned by Put when called with a nil record.
var ErrNilRecord = errors.New("nil credential record")
