package sessionkit

import (
	"errors"
	"io"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/pressline/sessionkit/authority"
	internalmetrics "github.com/pressline/sessionkit/internal/metrics"
	"github.com/pressline/sessionkit/store"
)

// Builder assembles a [Manager]. Construction is allocation-only; no I/O
// happens until the first Manager operation.
type Builder struct {
	config Config

	store     store.Store
	authority Authority
	clock     clockwork.Clock
	log       logrus.FieldLogger

	built bool
}

// New creates a Builder with default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration. Zero sub-values are not
// re-defaulted; start from [New]'s defaults and override fields instead when
// in doubt.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithStore sets the credential store backend. Required.
func (b *Builder) WithStore(s store.Store) *Builder {
	b.store = s
	return b
}

// WithAuthority injects a remote-authority implementation, bypassing the
// built-in HTTP client. Tests use this for in-memory fakes.
func (b *Builder) WithAuthority(a Authority) *Builder {
	b.authority = a
	return b
}

// WithBaseURL points the built-in HTTP client at the authority root.
// Ignored when WithAuthority is used.
func (b *Builder) WithBaseURL(url string) *Builder {
	b.config.HTTP.BaseURL = url
	return b
}

// WithClock overrides the wall clock; tests pass a fake.
func (b *Builder) WithClock(clock clockwork.Clock) *Builder {
	b.clock = clock
	return b
}

// WithLogger sets the logger. Default discards everything.
func (b *Builder) WithLogger(log logrus.FieldLogger) *Builder {
	b.log = log
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithRevalidateInterval overrides the periodic revalidation interval.
func (b *Builder) WithRevalidateInterval(interval time.Duration) *Builder {
	b.config.Revalidate.Interval = interval
	return b
}

// Build validates the configuration and wiring and returns a ready Manager.
// A Builder is single-use.
func (b *Builder) Build() (*Manager, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if err := b.config.validate(); err != nil {
		return nil, err
	}
	if b.store == nil {
		return nil, errors.New("credential store is required")
	}

	auth := b.authority
	if auth == nil {
		client, err := authority.NewClient(authority.Config{
			BaseURL:   b.config.HTTP.BaseURL,
			Timeout:   b.config.HTTP.Timeout,
			MaxConns:  b.config.HTTP.MaxConns,
			UserAgent: b.config.HTTP.UserAgent,
		})
		if err != nil {
			return nil, err
		}
		auth = client
	}

	clock := b.clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	log := b.log
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		log = discard
	}

	metrics := internalmetrics.New(internalmetrics.Config{Enabled: b.config.Metrics.Enabled})

	m := &Manager{
		config:    b.config,
		store:     b.store,
		authority: auth,
		states:    newBroadcaster(),
		metrics:   metrics,
		clock:     clock,
		log:       log,
		phase:     PhaseUnknown,
	}
	m.renewer = &renewer{
		store:     b.store,
		authority: auth,
		metrics:   metrics,
		log:       log,
	}

	b.built = true
	return m, nil
}
