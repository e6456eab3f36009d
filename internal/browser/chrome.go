package browser

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/ytget/model-mirror/internal/model"
)

// LaunchOptions configures the Chrome process of each session
type LaunchOptions struct {
	Headless  bool
	NoSandbox bool
	ExecPath  string
	UserAgent string

	// SessionTimeout bounds the whole life of a session.
	SessionTimeout time.Duration
}

// ChromeLauncher starts one Chrome process per session
type ChromeLauncher struct {
	opts   LaunchOptions
	logger *zap.Logger
}

// NewChromeLauncher creates a launcher
func NewChromeLauncher(opts LaunchOptions, logger *zap.Logger) *ChromeLauncher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChromeLauncher{opts: opts, logger: logger.Named("chrome")}
}

// Launch starts a fresh browser with an empty profile
func (l *ChromeLauncher) Launch(ctx context.Context) (Session, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", l.opts.Headless),
		chromedp.Flag("disable-gpu", l.opts.Headless),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if l.opts.NoSandbox {
		allocOpts = append(allocOpts, chromedp.Flag("no-sandbox", true))
	}
	if l.opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(l.opts.ExecPath))
	}
	if l.opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(l.opts.UserAgent))
	}

	// The session outlives the launch call but not the caller's base context.
	base, baseCancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(ctx, baseCancel)
	if l.opts.SessionTimeout > 0 {
		var timeoutCancel context.CancelFunc
		base, timeoutCancel = context.WithTimeout(base, l.opts.SessionTimeout)
		prev := baseCancel
		baseCancel = func() { timeoutCancel(); prev() }
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(base, allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(l.logger.Sugar().Debugf),
	)

	cancel := func() {
		browserCancel()
		allocCancel()
		baseCancel()
		stop()
	}

	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	return &chromeSession{ctx: browserCtx, cancel: cancel, logger: l.logger}, nil
}

type chromeSession struct {
	ctx       context.Context
	cancel    context.CancelFunc
	logger    *zap.Logger
	closeOnce sync.Once
}

// run executes actions on the session tab, aborting when either the session
// or ctx ends
func (s *chromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ctx.Err(), err)
		}
		return err
	}
	return nil
}

func (s *chromeSession) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, chromedp.Navigate(url))
}

func (s *chromeSession) WaitReady(ctx context.Context, selector string) error {
	return s.run(ctx, chromedp.WaitReady(selector, chromedp.ByQuery))
}

func (s *chromeSession) SendKeys(ctx context.Context, selector, text string) error {
	return s.run(ctx, chromedp.SendKeys(selector, text, chromedp.ByQuery))
}

func (s *chromeSession) Click(ctx context.Context, selector string) error {
	return s.run(ctx, chromedp.Click(selector, chromedp.ByQuery))
}

func (s *chromeSession) ClickAndWaitNavigation(ctx context.Context, selector string) error {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if _, err := chromedp.RunResponse(runCtx, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ctx.Err(), err)
		}
		return err
	}
	return nil
}

func (s *chromeSession) Intercept(ctx context.Context, handler RequestHandler) error {
	chromedp.ListenTarget(s.ctx, func(ev interface{}) {
		paused, ok := ev.(*fetch.EventRequestPaused)
		if !ok {
			return
		}
		// Resolving a paused request issues a CDP call, which must not
		// happen on the event loop.
		go s.resolve(paused, handler)
	})

	return s.run(ctx, fetch.Enable().WithPatterns([]*fetch.RequestPattern{{URLPattern: "*"}}))
}

func (s *chromeSession) resolve(ev *fetch.EventRequestPaused, handler RequestHandler) {
	c := chromedp.FromContext(s.ctx)
	if c == nil || c.Target == nil {
		return
	}
	execCtx := cdp.WithExecutor(s.ctx, c.Target)

	var err error
	switch handler(s.ctx, toPausedRequest(ev)) {
	case DecisionAbort:
		err = fetch.FailRequest(ev.RequestID, network.ErrorReasonAborted).Do(execCtx)
	default:
		err = fetch.ContinueRequest(ev.RequestID).Do(execCtx)
	}
	if err != nil && s.ctx.Err() == nil {
		s.logger.Debug("Failed to resolve paused request",
			zap.String("request_id", string(ev.RequestID)),
			zap.Error(err),
		)
	}
}

func (s *chromeSession) Cookies(ctx context.Context) ([]model.Cookie, error) {
	var out []model.Cookie
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		cookies, err := network.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		out = make([]model.Cookie, 0, len(cookies))
		for _, c := range cookies {
			out = append(out, model.Cookie{Name: c.Name, Value: c.Value})
		}
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("get cookies: %w", err)
	}
	return out, nil
}

func (s *chromeSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.ctx.Err() == nil {
			err = chromedp.Cancel(s.ctx)
		}
		s.cancel()
	})
	return err
}

func toPausedRequest(ev *fetch.EventRequestPaused) PausedRequest {
	req := PausedRequest{ID: string(ev.RequestID)}
	if ev.Request == nil {
		return req
	}

	req.URL = ev.Request.URL + ev.Request.URLFragment
	req.Method = ev.Request.Method
	req.Headers = make(map[string]string, len(ev.Request.Headers))
	for k, v := range ev.Request.Headers {
		req.Headers[k] = fmt.Sprint(v)
	}
	for _, entry := range ev.Request.PostDataEntries {
		if entry == nil {
			continue
		}
		chunk, err := base64.StdEncoding.DecodeString(entry.Bytes)
		if err != nil {
			continue
		}
		req.Body = append(req.Body, chunk...)
	}
	return req
}
