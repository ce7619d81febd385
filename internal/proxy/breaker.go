package proxy

import (
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/agentfleet/conductor/internal/engineerr"
	"github.com/agentfleet/conductor/pkg/types"
)

// isCircuitOpen reports whether err is the kinded error breaker.do
// returns when it refuses a call outright.
func isCircuitOpen(err error) bool {
	return engineerr.KindOf(err) == types.ErrCircuitOpen
}

// roundTripper adapts breaker.do to http.RoundTripper so it can back an
// *http.Client handed to a generated SDK client (openai-go's option.
// WithHTTPClient) without that SDK needing to know about breakers at all.
type roundTripper struct {
	breaker *breaker
	next    http.RoundTripper
}

func (rt *roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return rt.breaker.do(func() (*http.Response, error) {
		if err := rewindBody(req); err != nil {
			return nil, err
		}
		return rt.next.RoundTrip(req)
	})
}

// rewindBody replaces req.Body with a fresh copy from req.GetBody, the
// snapshot http.NewRequest(WithContext) populates for in-memory bodies
// (bytes.Buffer/bytes.Reader/strings.Reader). http.Transport consumes
// req.Body to EOF on every attempt and never rewinds it itself, so a
// retried request without this would replay with an empty body. A
// request with no GetBody (a streaming body that can't be replayed) is
// left alone; only one attempt will ever succeed for it regardless.
func rewindBody(req *http.Request) error {
	if req.GetBody == nil {
		return nil
	}
	body, err := req.GetBody()
	if err != nil {
		return err
	}
	req.Body = body
	return nil
}

func (b *breaker) httpClient() *http.Client {
	return &http.Client{Transport: &roundTripper{breaker: b, next: http.DefaultTransport}}
}

// breakerState is the circuit breaker's three-state machine, matching
// spec.md §4.13: CLOSED -> OPEN after N consecutive failures; OPEN ->
// HALF_OPEN after a recovery timeout; HALF_OPEN -> CLOSED on a
// successful probe, or back to OPEN on any failure. No dedicated
// circuit-breaker library appears anywhere in the pack, so this is
// composed as a small explicit state machine over cenkalti/backoff/v4's
// retry loop rather than reaching for a third-party breaker package.
type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

// breaker guards one upstream HTTP client with a circuit breaker and a
// retry policy for transient failures.
type breaker struct {
	mu               sync.Mutex
	state            breakerState
	consecutiveFails int
	openedAt         time.Time

	failureThreshold int
	recoveryTimeout  time.Duration

	retryInitialInterval time.Duration
	retryMaxInterval     time.Duration
	retryMaxElapsedTime  time.Duration
}

func newBreaker(failureThreshold int, recoveryTimeout time.Duration) *breaker {
	return &breaker{
		failureThreshold:     failureThreshold,
		recoveryTimeout:      recoveryTimeout,
		retryInitialInterval: 200 * time.Millisecond,
		retryMaxInterval:     2 * time.Second,
		retryMaxElapsedTime:  10 * time.Second,
	}
}

// allow reports whether a request may proceed, transitioning
// OPEN -> HALF_OPEN once the recovery timeout has elapsed.
func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case breakerOpen:
		if time.Since(b.openedAt) >= b.recoveryTimeout {
			b.state = breakerHalfOpen
			return true
		}
		return false
	default:
		return true
	}
}

func (b *breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = breakerClosed
	b.consecutiveFails = 0
}

func (b *breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == breakerHalfOpen {
		b.state = breakerOpen
		b.openedAt = time.Now()
		return
	}
	b.consecutiveFails++
	if b.consecutiveFails >= b.failureThreshold {
		b.state = breakerOpen
		b.openedAt = time.Now()
	}
}

// retryableStatus reports whether status is one of the configured
// retryable codes: >=500, or 429.
func retryableStatus(status int) bool {
	return status >= 500 || status == http.StatusTooManyRequests
}

// do runs fn under the breaker and a bounded exponential backoff retry
// for retryable upstream failures (a nil error and a non-retryable
// status both stop retrying immediately). Returns engineerr.CircuitOpen
// when the breaker refuses the call outright.
func (b *breaker) do(fn func() (*http.Response, error)) (*http.Response, error) {
	if !b.allow() {
		return nil, engineerr.CircuitOpen()
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = b.retryInitialInterval
	bo.MaxInterval = b.retryMaxInterval
	bo.MaxElapsedTime = b.retryMaxElapsedTime

	var resp *http.Response
	var lastErr error
	err := backoff.Retry(func() error {
		r, err := fn()
		if err != nil {
			lastErr = err
			return err
		}
		if retryableStatus(r.StatusCode) {
			lastErr = engineerr.UpstreamError(r.StatusCode, "")
			resp = r
			return lastErr
		}
		resp = r
		return nil
	}, bo)

	if err != nil {
		b.recordFailure()
		if resp != nil {
			return resp, nil // retries on a retryable status exhausted: surface the last response, caller maps its status
		}
		return nil, engineerr.BackendError(lastErr)
	}
	b.recordSuccess()
	return resp, nil
}
