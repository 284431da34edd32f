package authority

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/pressline/sessionkit/store"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultMaxConns = 100
	defaultAgent    = "sessionkit"
)

var (
	// ErrRejected signals a 401/403 answer: the presented credential is not
	// accepted by the authority.
	ErrRejected = errors.New("credential rejected by authority")
	// ErrUnavailable signals a transport failure or 5xx answer. Transient;
	// stored credentials must survive it.
	ErrUnavailable = errors.New("authority unavailable")
	// ErrInvalidCredentials is returned by Login on a bad email/password pair.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountExists is returned by Register on a duplicate identity.
	ErrAccountExists = errors.New("account already exists")
)

// IsRejected reports whether err means the credential was rejected.
func IsRejected(err error) bool { return errors.Is(err, ErrRejected) }

// IsUnavailable reports whether err is a transient authority failure.
func IsUnavailable(err error) bool { return errors.Is(err, ErrUnavailable) }

// StatusError carries a non-auth failure status unchanged to the caller
// (validation errors, not-found, conflicts outside login/register).
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("authority returned status %d", e.Code)
	}
	return fmt.Sprintf("authority returned status %d: %s", e.Code, e.Message)
}

// RegisterRequest is the profile payload for account creation.
type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

// Config configures the HTTP client.
type Config struct {
	// BaseURL is the authority root, e.g. "https://api.example.com".
	BaseURL string
	// Timeout bounds every request; it is the mechanism that turns a hung
	// connection into ErrUnavailable. Default 10s.
	Timeout time.Duration
	// MaxConns caps connections per host. Default 100.
	MaxConns int
	// UserAgent overrides the default "sessionkit" agent string.
	UserAgent string
}

// Client talks to the remote authority. Safe for concurrent use.
type Client struct {
	http *resty.Client
}

// NewClient validates conf and builds a client. The only hard requirement is
// a non-empty BaseURL.
func NewClient(conf Config) (*Client, error) {
	if strings.TrimSpace(conf.BaseURL) == "" {
		return nil, errors.New("authority: empty base URL")
	}
	if conf.Timeout < 0 {
		return nil, errors.New("authority: negative timeout")
	}
	if conf.Timeout == 0 {
		conf.Timeout = defaultTimeout
	}
	if conf.MaxConns <= 0 {
		conf.MaxConns = defaultMaxConns
	}
	if conf.UserAgent == "" {
		conf.UserAgent = defaultAgent
	}

	client := resty.
		NewWithClient(&http.Client{
			Timeout: conf.Timeout,
			Transport: &http.Transport{
				MaxConnsPerHost:     conf.MaxConns,
				MaxIdleConnsPerHost: conf.MaxConns,
			},
		}).
		SetBaseURL(conf.BaseURL).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", conf.UserAgent)

	return &Client{http: client}, nil
}

type sessionPayload struct {
	AccessToken  string      `json:"accessToken"`
	RenewalToken string      `json:"renewalToken"`
	User         *store.User `json:"user"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func (p *sessionPayload) record() *store.Record {
	rec := &store.Record{
		AccessToken:  p.AccessToken,
		RenewalToken: p.RenewalToken,
	}
	if p.User != nil {
		rec.User = *p.User
	}
	return rec
}

func (c *Client) newRequest(ctx context.Context) *resty.Request {
	return c.http.NewRequest().
		SetContext(ctx).
		SetHeader("X-Request-Id", uuid.NewString())
}

// message extracts the user-facing message from an error body, if any.
func message(resp *resty.Response) string {
	var payload errorPayload
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return ""
	}
	return payload.Message
}

// classify maps a completed exchange onto the package error taxonomy.
// Success returns nil.
func classify(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.IsSuccess() {
		return nil
	}
	code := resp.StatusCode()
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w (status %d)", ErrRejected, code)
	case code >= http.StatusInternalServerError:
		return fmt.Errorf("%w (status %d)", ErrUnavailable, code)
	default:
		return &StatusError{Code: code, Message: message(resp)}
	}
}

// Login exchanges an email/password pair for a credential record.
func (c *Client) Login(ctx context.Context, email, password string) (*store.Record, error) {
	payload := &sessionPayload{}
	resp, err := c.newRequest(ctx).
		SetBody(map[string]string{"email": email, "password": password}).
		SetResult(payload).
		Post("/auth/login")
	if err := classify(resp, err); err != nil {
		if IsRejected(err) {
			// On login a 401 is a wrong password, not a stale session.
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if payload.AccessToken == "" {
		return nil, fmt.Errorf("%w: login response missing access token", ErrUnavailable)
	}
	return payload.record(), nil
}

// Register creates an account. The returned record may lack tokens when the
// authority defers issuing them (e.g. pending email verification).
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*store.Record, error) {
	payload := &sessionPayload{}
	resp, err := c.newRequest(ctx).
		SetBody(&req).
		SetResult(payload).
		Post("/auth/register")
	if err := classify(resp, err); err != nil {
		var status *StatusError
		if errors.As(err, &status) && status.Code == http.StatusConflict {
			return nil, ErrAccountExists
		}
		return nil, err
	}
	return payload.record(), nil
}

// Validate asks the authority whether accessToken is still accepted. nil
// means accepted; ErrRejected and ErrUnavailable are the only failures —
// any unexpected status is folded into ErrUnavailable so a misbehaving
// authority cannot force a logout.
func (c *Client) Validate(ctx context.Context, accessToken string) error {
	resp, err := c.newRequest(ctx).
		SetAuthToken(accessToken).
		Get("/auth/validate")
	err = classify(resp, err)
	if err == nil || IsRejected(err) || IsUnavailable(err) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// Renew exchanges renewalToken for a fresh credential record. Fields the
// authority omits (rotated renewal token, user summary) come back empty; the
// caller decides what to carry over.
func (c *Client) Renew(ctx context.Context, renewalToken string) (*store.Record, error) {
	payload := &sessionPayload{}
	resp, err := c.newRequest(ctx).
		SetAuthToken(renewalToken).
		SetResult(payload).
		Post("/auth/refresh")
	if err := classify(resp, err); err != nil {
		return nil, err
	}
	if payload.AccessToken == "" {
		return nil, fmt.Errorf("%w: refresh response missing access token", ErrUnavailable)
	}
	return payload.record(), nil
}

// Profile reads the authenticated user's profile.
func (c *Client) Profile(ctx context.Context, accessToken string) (*store.User, error) {
	user := &store.User{}
	resp, err := c.newRequest(ctx).
		SetAuthToken(accessToken).
		SetResult(user).
		Get("/auth/profile")
	if err := classify(resp, err); err != nil {
		return nil, err
	}
	return user, nil
}

// UpdateProfile writes profile fields and returns the authority's copy.
func (c *Client) UpdateProfile(ctx context.Context, accessToken string, user store.User) (*store.User, error) {
	updated := &store.User{}
	resp, err := c.newRequest(ctx).
		SetAuthToken(accessToken).
		SetBody(&user).
		SetResult(updated).
		Put("/auth/profile")
	if err := classify(resp, err); err != nil {
		return nil, err
	}
	return updated, nil
}

// RequestPasswordReset asks the authority to start a password-reset flow for
// email. The authority answers success even for unknown addresses.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	resp, err := c.newRequest(ctx).
		SetBody(map[string]string{"email": email}).
		Post("/auth/password-reset")
	return classify(resp, err)
}
