// Package familysearch is a client for the FamilySearch tree API. It logs in
// with account credentials, keeps the session cookie, and fetches GEDCOM X
// JSON with throttling, retries and a circuit breaker around the remote
// calls.
package familysearch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/awnumar/memguard"
	"github.com/cenkalti/backoff/v5"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultLoginURL     = "https://www.familysearch.org/auth/familysearch/login?ldsauth=false"
	DefaultAuthorizeURL = "https://ident.familysearch.org/cis-web/oauth2/v3/authorization"
	DefaultAPIBase      = "https://familysearch.org"

	sessionCookie = "fssessionid"
	paramsMarker  = `name="params" value="`
	badPassword   = "The username or password was incorrect"
	invalidOAuth  = "Invalid Oauth2 Request"
	tracerName    = "github.com/AllTales-Labs/getmyancestors/internal/familysearch"
)

var (
	// ErrLoginFailed means the service rejected the credentials.
	ErrLoginFailed = errors.New("familysearch: the username or password was incorrect")
	// ErrNotLoggedIn is returned by requests made before Login succeeded.
	ErrNotLoggedIn = errors.New("familysearch: not logged in")
)

// Cache stores raw response bodies by request path.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
}

// Observer receives request and cache events.
type Observer interface {
	ObserveRequest(endpoint string, status int, elapsed time.Duration)
	ObserveCache(hit bool)
}

// Config configures a Session. Zero values take the defaults noted.
type Config struct {
	Username string
	Password *memguard.Enclave

	LoginURL     string // DefaultLoginURL
	AuthorizeURL string // DefaultAuthorizeURL
	APIBase      string // DefaultAPIBase

	Timeout           time.Duration // per request, 60s
	RequestsPerSecond float64       // 10; negative disables throttling
	MaxTries          uint          // 5
	// NewBackOff builds the retry schedule of one request. Defaults to an
	// exponential schedule capped at Timeout.
	NewBackOff func() backoff.BackOff

	Logger   *zap.Logger
	Cache    Cache
	Observer Observer
}

// Session is a logged-in FamilySearch client. It is safe for concurrent use.
type Session struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	log     *zap.Logger
	tracer  trace.Tracer

	mu        sync.RWMutex
	sessionID string

	requests atomic.Int64
}

// New returns a Session that has not logged in yet.
func New(cfg Config) *Session {
	if cfg.LoginURL == "" {
		cfg.LoginURL = DefaultLoginURL
	}
	if cfg.AuthorizeURL == "" {
		cfg.AuthorizeURL = DefaultAuthorizeURL
	}
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultAPIBase
	}
	cfg.APIBase = strings.TrimRight(cfg.APIBase, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.RequestsPerSecond == 0 {
		cfg.RequestsPerSecond = 10
	}
	if cfg.MaxTries == 0 {
		cfg.MaxTries = 5
	}
	if cfg.NewBackOff == nil {
		maxInterval := cfg.Timeout
		cfg.NewBackOff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxInterval = maxInterval
			return b
		}
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	s := &Session{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		limiter: rate.NewLimiter(limit, 1),
		log:     log,
		tracer:  otel.Tracer(tracerName),
	}
	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "familysearch",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return s
}

// Requests returns the number of API requests sent over the network.
func (s *Session) Requests() int64 {
	return s.requests.Load()
}

// LoggedIn reports whether a session cookie is held.
func (s *Session) LoggedIn() bool {
	return s.currentSessionID() != ""
}

func (s *Session) currentSessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionID
}

// Login runs the browser login flow and keeps the resulting session cookie.
// Transient failures are retried; rejected credentials return
// ErrLoginFailed.
func (s *Session) Login(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loginLocked(ctx)
}

// relogin replaces a session that the API rejected. Callers racing on the
// same stale id log in only once.
func (s *Session) relogin(ctx context.Context, stale string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessionID != stale {
		return nil
	}
	return s.loginLocked(ctx)
}

func (s *Session) loginLocked(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "familysearch.login")
	defer span.End()

	s.log.Info("logging in", zap.String("username", s.cfg.Username), zap.Bool("password_present", s.cfg.Password != nil))
	id, err := backoff.Retry(ctx, func() (string, error) {
		return s.loginOnce(ctx)
	},
		backoff.WithBackOff(s.cfg.NewBackOff()),
		backoff.WithMaxTries(s.cfg.MaxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			s.log.Warn("login attempt failed", zap.Error(err), zap.Duration("retry_in", next))
		}),
	)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	s.sessionID = id
	s.log.Debug("logged in")
	return nil
}

func (s *Session) loginOnce(ctx context.Context) (string, error) {
	resp, err := s.send(ctx, http.MethodGet, s.cfg.LoginURL, nil, "")
	if err != nil {
		return "", err
	}
	location := resp.Header.Get("Location")
	drain(resp)
	if location == "" {
		return "", errors.New("login page did not redirect")
	}

	resp, err = s.send(ctx, http.MethodGet, location, nil, "")
	if err != nil {
		return "", err
	}
	body, err := readBody(resp)
	if err != nil {
		return "", err
	}
	params, ok := scrapeParams(body)
	if !ok {
		return "", errors.New("login form has no params field")
	}

	form, err := s.loginForm(params)
	if err != nil {
		return "", backoff.Permanent(err)
	}
	resp, err = s.send(ctx, http.MethodPost, s.cfg.AuthorizeURL, strings.NewReader(form), "application/x-www-form-urlencoded")
	if err != nil {
		return "", err
	}
	location = resp.Header.Get("Location")
	body, err = readBody(resp)
	if err != nil {
		return "", err
	}
	if strings.Contains(body, badPassword) {
		return "", backoff.Permanent(ErrLoginFailed)
	}
	if strings.Contains(body, invalidOAuth) {
		return "", errors.New("invalid oauth2 request")
	}
	if location == "" {
		return "", errors.New("authorization did not redirect")
	}

	resp, err = s.send(ctx, http.MethodGet, location, nil, "")
	if err != nil {
		return "", err
	}
	drain(resp)
	for _, c := range resp.Cookies() {
		if c.Name == sessionCookie && c.Value != "" {
			return c.Value, nil
		}
	}
	return "", errors.New("no session cookie after login")
}

// loginForm encodes the authorization form. The password enclave stays open
// only until the encoded body, which owns its own copy, is built.
func (s *Session) loginForm(params string) (string, error) {
	form := url.Values{
		"params":   {params},
		"userName": {s.cfg.Username},
		"password": {""},
	}
	if s.cfg.Password == nil {
		return form.Encode(), nil
	}
	buf, err := s.cfg.Password.Open()
	if err != nil {
		return "", fmt.Errorf("open password enclave: %w", err)
	}
	defer buf.Destroy()
	form.Set("password", buf.String())
	return form.Encode(), nil
}

func (s *Session) send(ctx context.Context, method, target string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	s.log.Debug("downloading", zap.String("method", method), zap.String("url", req.URL.Redacted()))
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, req.URL.Path, err)
	}
	return resp, nil
}

func scrapeParams(body string) (string, bool) {
	_, rest, ok := strings.Cut(body, paramsMarker)
	if !ok {
		return "", false
	}
	params, _, ok := strings.Cut(rest, `"`)
	return params, ok
}

func readBody(resp *http.Response) (string, error) {
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	return string(data), nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
