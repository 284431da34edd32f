package sessionkit

import "errors"

var (
	// ErrNoCredentials is returned by operations that need a stored
	// credential record when the store is empty.
	ErrNoCredentials = errors.New("no stored credentials")
	// ErrSessionExpired is the terminal outcome of a wrapped request whose
	// renewal path failed. The store has been cleared and Unauthenticated
	// published by the time it is returned.
	ErrSessionExpired = errors.New("session expired")
	// ErrRenewalFailed is the terminal renewal outcome: the authority
	// rejected the renewal token or none existed. The store is cleared
	// before any waiter observes it.
	ErrRenewalFailed = errors.New("credential renewal failed")
	// ErrManagerClosed is returned by operations on a closed Manager.
	ErrManagerClosed = errors.New("session manager closed")
	// ErrInvalidInput is returned for malformed login/signup fields, before
	// any coordinator or network activity.
	ErrInvalidInput = errors.New("invalid input")
)
