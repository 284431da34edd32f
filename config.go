package sessionkit

import (
	"errors"
	"time"

	"github.com/pressline/sessionkit/token"
)

// Config defines the tunable behavior of a [Manager]. Zero values are filled
// with defaults by [New]; Build validates the result.
type Config struct {
	Revalidate RevalidateConfig
	Token      TokenConfig
	HTTP       HTTPConfig
	Metrics    MetricsConfig
}

// RevalidateConfig controls the periodic revalidation loop.
type RevalidateConfig struct {
	// Interval between revalidation ticks while authenticated. Default
	// five minutes.
	Interval time.Duration
	// FailOpen keeps the previously published state when a validation or
	// renewal attempt fails transiently. Fail-closed treats a transient
	// validation failure like a rejection and enters the renewal path,
	// which on flaky connectivity can log users out spuriously. Default
	// true.
	FailOpen bool
}

// TokenConfig controls local expiry decisions.
type TokenConfig struct {
	// ExpirySkew treats tokens expiring within this window as already
	// expired, so a request never races the expiry boundary in flight.
	// Default [token.DefaultSkew].
	ExpirySkew time.Duration
}

// HTTPConfig configures the built-in authority client; ignored when an
// Authority is injected directly.
type HTTPConfig struct {
	BaseURL   string
	Timeout   time.Duration
	MaxConns  int
	UserAgent string
}

// MetricsConfig enables the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

func defaultConfig() Config {
	return Config{
		Revalidate: RevalidateConfig{
			Interval: 5 * time.Minute,
			FailOpen: true,
		},
		Token: TokenConfig{
			ExpirySkew: token.DefaultSkew,
		},
	}
}

func (c Config) validate() error {
	if c.Revalidate.Interval <= 0 {
		return errors.New("invalid revalidation interval")
	}
	if c.Revalidate.Interval < time.Second {
		return errors.New("revalidation interval below one second")
	}
	if c.Token.ExpirySkew < 0 || c.Token.ExpirySkew > 2*time.Minute {
		return errors.New("invalid expiry skew")
	}
	if c.HTTP.Timeout < 0 {
		return errors.New("invalid HTTP timeout")
	}
	return nil
}
