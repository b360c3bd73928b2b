package service

import (
	"context"
	"sync"
	"time"

	"github.com/kjstillabower/disaster-alert/internal/models"
)

// inFlightRequest tracks a single acquisition that multiple callers may wait for.
type inFlightRequest struct {
	done   chan struct{}
	result models.WeatherSample
	err    error
}

// requestCoalescer lets concurrent callers for the same location share one upstream fetch.
type requestCoalescer struct {
	mu       sync.Mutex
	inFlight map[string]*inFlightRequest
	timeout  time.Duration
}

// newRequestCoalescer creates a new requestCoalescer. timeout bounds how long a caller waits.
func newRequestCoalescer(timeout time.Duration) *requestCoalescer {
	return &requestCoalescer{
		inFlight: make(map[string]*inFlightRequest),
		timeout:  timeout,
	}
}

// GetOrDo joins the in-flight request for key, or starts fn if there is none.
// fn runs in its own goroutine, so a caller leaving early does not abort it for the others.
// The bool reports whether the caller joined an existing request.
func (rc *requestCoalescer) GetOrDo(ctx context.Context, key string, fn func() (models.WeatherSample, error)) (models.WeatherSample, bool, error) {
	rc.mu.Lock()
	req, joined := rc.inFlight[key]
	if !joined {
		req = &inFlightRequest{done: make(chan struct{})}
		rc.inFlight[key] = req
		go func() {
			req.result, req.err = fn()
			rc.mu.Lock()
			delete(rc.inFlight, key)
			rc.mu.Unlock()
			close(req.done)
		}()
	}
	rc.mu.Unlock()

	waitCtx, cancel := context.WithTimeout(ctx, rc.timeout)
	defer cancel()
	select {
	case <-req.done:
		return req.result, joined, req.err
	case <-waitCtx.Done():
		return models.WeatherSample{}, joined, waitCtx.Err()
	}
}
