package browser

import (
	"context"

	"github.com/ytget/model-mirror/internal/model"
)

// Decision tells the browser what to do with a paused request
type Decision int

const (
	// DecisionContinue lets the request reach the network unmodified
	DecisionContinue Decision = iota

	// DecisionAbort fails the request inside the browser
	DecisionAbort
)

// String returns the string representation of Decision
func (d Decision) String() string {
	if d == DecisionAbort {
		return "abort"
	}
	return "continue"
}

// PausedRequest is an outbound request held by the browser until a decision
// is made
type PausedRequest struct {
	ID      string
	URL     string
	Method  string
	Body    []byte
	Headers map[string]string
}

// RequestHandler decides the fate of every paused request. It is called from
// its own goroutine per request and must be safe for concurrent use.
type RequestHandler func(ctx context.Context, req PausedRequest) Decision

// Session is one isolated browser instance owned by a single run
type Session interface {
	Navigate(ctx context.Context, url string) error
	// WaitReady blocks until an element matching selector is in the DOM.
	WaitReady(ctx context.Context, selector string) error
	SendKeys(ctx context.Context, selector, text string) error
	Click(ctx context.Context, selector string) error
	// ClickAndWaitNavigation clicks selector and blocks until the page
	// navigation it triggers has a response.
	ClickAndWaitNavigation(ctx context.Context, selector string) error
	// Intercept pauses every subsequent outbound request and hands it to
	// handler.
	Intercept(ctx context.Context, handler RequestHandler) error
	// Cookies returns the cookie jar of the current page.
	Cookies(ctx context.Context) ([]model.Cookie, error)
	// Close tears the browser down. Safe to call more than once.
	Close() error
}

// Launcher starts new sessions
type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}
