package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ytget/model-mirror/internal/model"
)

// ErrInterceptionTimeout is returned when no asset request shows up before
// the deadline
var ErrInterceptionTimeout = errors.New("no asset request observed before deadline")

// CookieSource reads the session cookie jar at capture time
type CookieSource func(ctx context.Context) ([]model.Cookie, error)

// Observer captures the first request whose URL matches and lets every other
// request through
type Observer struct {
	match   func(rawURL string) bool
	cookies CookieSource

	mu        sync.Mutex
	claimed   bool
	forwarded int
	dropped   int
	result    *model.CapturedRequest
	err       error
	done      chan struct{}
}

// NewObserver creates an observer. cookies may be nil, in which case the
// captured request carries no Cookie header.
func NewObserver(match func(rawURL string) bool, cookies CookieSource) *Observer {
	return &Observer{
		match:   match,
		cookies: cookies,
		done:    make(chan struct{}),
	}
}

// Handle is a RequestHandler. Matching requests are never forwarded: the
// first one is captured, later ones are dropped.
func (o *Observer) Handle(ctx context.Context, req PausedRequest) Decision {
	if !o.match(req.URL) {
		o.mu.Lock()
		o.forwarded++
		o.mu.Unlock()
		return DecisionContinue
	}

	o.mu.Lock()
	if o.claimed {
		o.dropped++
		o.mu.Unlock()
		return DecisionAbort
	}
	o.claimed = true
	o.mu.Unlock()

	captured := &model.CapturedRequest{
		URL:     req.URL,
		Method:  req.Method,
		Body:    append([]byte(nil), req.Body...),
		Headers: make(map[string]string, len(req.Headers)),
	}
	for k, v := range req.Headers {
		captured.Headers[k] = v
	}

	var err error
	if o.cookies != nil {
		cookies, cerr := o.cookies(ctx)
		if cerr != nil {
			err = fmt.Errorf("read session cookies: %w", cerr)
		} else {
			captured.Cookie = model.CookieHeader(cookies)
		}
	}

	o.mu.Lock()
	if err != nil {
		o.err = err
	} else {
		o.result = captured
	}
	o.mu.Unlock()
	close(o.done)

	return DecisionAbort
}

// Done is closed once a request has been captured
func (o *Observer) Done() <-chan struct{} {
	return o.done
}

// Wait blocks until a request is captured, timeout elapses or ctx ends
func (o *Observer) Wait(ctx context.Context, timeout time.Duration) (*model.CapturedRequest, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-o.done:
		o.mu.Lock()
		defer o.mu.Unlock()
		return o.result, o.err
	case <-timer.C:
		return nil, fmt.Errorf("%w (waited %s)", ErrInterceptionTimeout, timeout)
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrInterceptionTimeout, ctx.Err())
		}
		return nil, ctx.Err()
	}
}

// Stats returns how many requests were forwarded and how many extra matches
// were dropped after the capture
func (o *Observer) Stats() (forwarded, dropped int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.forwarded, o.dropped
}
