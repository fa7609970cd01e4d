package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// RetryPolicy controls how throttled or failing PostgREST calls are repeated.
// The delay starts at Backoff and doubles per attempt up to MaxBackoff.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
	MaxBackoff time.Duration
}

// DefaultRetryPolicy retries up to three times starting at 100ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, Backoff: 100 * time.Millisecond, MaxBackoff: 5 * time.Second}
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	if p.Backoff <= 0 {
		return 0
	}
	d := p.Backoff << (attempt - 1)
	if d <= 0 || (p.MaxBackoff > 0 && d > p.MaxBackoff) {
		return p.MaxBackoff
	}
	return d
}

// BreakerPolicy controls when the circuit opens and how long it stays open.
type BreakerPolicy struct {
	FailureThreshold int
	Cooldown         time.Duration
}

// DefaultBreakerPolicy opens after five consecutive failures for 30s.
func DefaultBreakerPolicy() BreakerPolicy {
	return BreakerPolicy{FailureThreshold: 5, Cooldown: 30 * time.Second}
}

// CircuitState is the state of the upstream circuit breaker.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned without calling Supabase while the circuit is open.
var ErrCircuitOpen = errors.New("supabase circuit breaker is open")

// breaker counts consecutive failures. After the cooldown a single trial
// request decides whether it closes again.
type breaker struct {
	mu       sync.Mutex
	policy   BreakerPolicy
	state    CircuitState
	failures int
	openedAt time.Time
	now      func() time.Time
}

func newBreaker(p BreakerPolicy) *breaker {
	if p.FailureThreshold <= 0 {
		p.FailureThreshold = 1
	}
	return &breaker{policy: p, now: time.Now}
}

func (b *breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case CircuitOpen:
		if b.now().Sub(b.openedAt) < b.policy.Cooldown {
			return ErrCircuitOpen
		}
		b.state = CircuitHalfOpen
	case CircuitHalfOpen:
		// one trial request at a time
		return ErrCircuitOpen
	}
	return nil
}

func (b *breaker) success() {
	b.mu.Lock()
	b.state = CircuitClosed
	b.failures = 0
	b.mu.Unlock()
}

func (b *breaker) failure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	if b.state == CircuitHalfOpen || b.failures >= b.policy.FailureThreshold {
		b.state = CircuitOpen
		b.openedAt = b.now()
	}
}

func (b *breaker) current() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Stats is a snapshot of ResilientClient counters.
type Stats struct {
	Total   int64 `json:"total_requests"`
	Success int64 `json:"success_requests"`
	Failed  int64 `json:"failed_requests"`
	Retried int64 `json:"retried_requests"`
}

// HTTPError is a retryable status the upstream kept returning.
type HTTPError struct {
	StatusCode int
}

func (e *HTTPError) Error() string {
	return http.StatusText(e.StatusCode)
}

// ResilientConfig configures a ResilientClient. A nil HTTPClient gets a
// pooled client with a 30s timeout.
type ResilientConfig struct {
	HTTPClient *http.Client
	Retry      RetryPolicy
	Breaker    BreakerPolicy
	// OnRetry runs before each repeated attempt.
	OnRetry func(req *http.Request, attempt int, err error)
}

// ResilientClient sends requests through a retry loop and a circuit breaker.
// It implements http.RoundTripper so it can sit under a Client.
type ResilientClient struct {
	http    *http.Client
	retry   RetryPolicy
	breaker *breaker
	onRetry func(req *http.Request, attempt int, err error)

	total, success, failed, retried atomic.Int64
}

// NewResilientClient builds a ResilientClient.
func NewResilientClient(cfg ResilientConfig) *ResilientClient {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	return &ResilientClient{
		http:    cfg.HTTPClient,
		retry:   cfg.Retry,
		breaker: newBreaker(cfg.Breaker),
		onRetry: cfg.OnRetry,
	}
}

// RoundTrip implements http.RoundTripper.
func (rc *ResilientClient) RoundTrip(req *http.Request) (*http.Response, error) {
	return rc.Do(req)
}

// Do sends req. A request body is only replayed when req.GetBody is set.
// When retries run out on a retryable status the last response is returned
// so the caller can read the PostgREST error body.
func (rc *ResilientClient) Do(req *http.Request) (*http.Response, error) {
	rc.total.Add(1)
	if err := rc.breaker.allow(); err != nil {
		rc.failed.Add(1)
		return nil, err
	}

	retries := rc.retry.MaxRetries
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		retries = 0
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			rc.retried.Add(1)
			if rc.onRetry != nil {
				rc.onRetry(req, attempt, lastErr)
			}
			if err := sleepCtx(req.Context(), rc.retry.delay(attempt)); err != nil {
				rc.breaker.failure()
				rc.failed.Add(1)
				return nil, err
			}
			next, err := rewind(req)
			if err != nil {
				rc.breaker.failure()
				rc.failed.Add(1)
				return nil, err
			}
			req = next
		}

		resp, err := rc.http.Do(req)
		switch {
		case err != nil:
			lastErr = err
			if attempt < retries && transientError(err) {
				continue
			}
			rc.breaker.failure()
			rc.failed.Add(1)
			return nil, err
		case retryableStatus(resp.StatusCode):
			lastErr = &HTTPError{StatusCode: resp.StatusCode}
			if attempt < retries {
				resp.Body.Close()
				continue
			}
			rc.breaker.failure()
			rc.failed.Add(1)
			return resp, nil
		default:
			rc.breaker.success()
			rc.success.Add(1)
			return resp, nil
		}
	}
}

// Stats returns the request counters.
func (rc *ResilientClient) Stats() Stats {
	return Stats{
		Total:   rc.total.Load(),
		Success: rc.success.Load(),
		Failed:  rc.failed.Load(),
		Retried: rc.retried.Load(),
	}
}

// CircuitState returns the breaker state.
func (rc *ResilientClient) CircuitState() CircuitState {
	return rc.breaker.current()
}

func rewind(req *http.Request) (*http.Request, error) {
	next := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("rewind request body: %w", err)
		}
		next.Body = body
	}
	return next, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func transientError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "connection reset") || strings.Contains(msg, "connection refused")
}

// EnhancedConfig is Config plus the retry and breaker policies.
type EnhancedConfig struct {
	Config
	Retry   RetryPolicy
	Breaker BreakerPolicy
	OnRetry func(req *http.Request, attempt int, err error)
}

// NewEnhanced returns a Client whose transport is a ResilientClient, and the
// ResilientClient itself for status reporting.
func NewEnhanced(cfg EnhancedConfig) (*Client, *ResilientClient, error) {
	rc := NewResilientClient(ResilientConfig{
		HTTPClient: cfg.HTTPClient,
		Retry:      cfg.Retry,
		Breaker:    cfg.Breaker,
		OnRetry:    cfg.OnRetry,
	})
	c, err := New(Config{
		URL:        cfg.URL,
		APIKey:     cfg.APIKey,
		HTTPClient: &http.Client{Transport: rc, Timeout: 60 * time.Second},
	})
	if err != nil {
		return nil, nil, err
	}
	return c, rc, nil
}
