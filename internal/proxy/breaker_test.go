package proxy

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testBreaker builds a breaker with a fast retry policy so tests don't
// pay the production 10s MaxElapsedTime on every retryable failure.
func testBreaker(failureThreshold int, recoveryTimeout time.Duration) *breaker {
	b := newBreaker(failureThreshold, recoveryTimeout)
	b.retryInitialInterval = time.Millisecond
	b.retryMaxInterval = 5 * time.Millisecond
	b.retryMaxElapsedTime = 30 * time.Millisecond
	return b
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	b := testBreaker(3, time.Minute)

	for i := 0; i < 3; i++ {
		_, err := b.do(func() (*http.Response, error) {
			return &http.Response{StatusCode: http.StatusInternalServerError, Body: http.NoBody}, nil
		})
		require.NoError(t, err) // after retries on a 500 run out, the last response surfaces, not an error
	}

	_, err := b.do(func() (*http.Response, error) {
		t.Fatal("fn should not run while circuit is open")
		return nil, nil
	})
	require.Error(t, err)
	assert.True(t, isCircuitOpen(err))
}

func TestBreakerHalfOpenProbeRecoversOnSuccess(t *testing.T) {
	b := testBreaker(1, 10*time.Millisecond)

	_, err := b.do(func() (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusInternalServerError, Body: http.NoBody}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, breakerOpen, b.state)

	time.Sleep(20 * time.Millisecond)

	resp, err := b.do(func() (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, breakerClosed, b.state)
}

func TestBreakerHalfOpenProbeReopensOnFailure(t *testing.T) {
	b := testBreaker(1, 10*time.Millisecond)

	_, _ = b.do(func() (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusInternalServerError, Body: http.NoBody}, nil
	})
	time.Sleep(20 * time.Millisecond)
	b.mu.Lock()
	b.state = breakerHalfOpen
	b.mu.Unlock()

	b.recordFailure()
	assert.Equal(t, breakerOpen, b.state)
}

// TestBreakerRetryResendsFullBodyEachAttempt guards against a retried
// request replaying with an empty body: http.Transport consumes
// req.Body to EOF on the first attempt, so a retry must rewind it via
// req.GetBody before replaying, not reuse the already-drained reader.
func TestBreakerRetryResendsFullBodyEachAttempt(t *testing.T) {
	var gotBodies []string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBodies = append(gotBodies, string(body))
		if len(gotBodies) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	b := testBreaker(5, time.Minute)
	client := &http.Client{}
	req, err := http.NewRequest(http.MethodPost, upstream.URL, bytes.NewReader([]byte(`{"hello":"world"}`)))
	require.NoError(t, err)
	require.NotNil(t, req.GetBody, "http.NewRequest must snapshot GetBody for a bytes.Reader body")

	resp, err := b.do(func() (*http.Response, error) {
		if rerr := rewindBody(req); rerr != nil {
			return nil, rerr
		}
		return client.Do(req)
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.Len(t, gotBodies, 3)
	for _, body := range gotBodies {
		assert.Equal(t, `{"hello":"world"}`, body, "every retry attempt must replay the full original body")
	}
}

func TestRetryableStatus(t *testing.T) {
	assert.True(t, retryableStatus(http.StatusInternalServerError))
	assert.True(t, retryableStatus(http.StatusTooManyRequests))
	assert.False(t, retryableStatus(http.StatusOK))
	assert.False(t, retryableStatus(http.StatusBadRequest))
}
