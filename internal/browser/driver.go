package browser

import (
	"context"
	"errors"
	"fmt"

	"github.com/ytget/model-mirror/internal/site"
)

var (
	// ErrLoginFormMissing means a login form field never appeared
	ErrLoginFormMissing = errors.New("login form not found")

	// ErrLoginNoNavigation means submitting the login form did not navigate
	ErrLoginNoNavigation = errors.New("login submission did not navigate")

	// ErrAffordanceMissing means a download dialog element never appeared
	ErrAffordanceMissing = errors.New("download affordance not found")
)

// Authenticate logs the session in with creds
func Authenticate(ctx context.Context, sess Session, adapter site.Adapter, creds site.Credentials) error {
	form := adapter.LoginForm()

	if err := sess.Navigate(ctx, adapter.LoginURL()); err != nil {
		return fmt.Errorf("open login page: %w", err)
	}

	for _, sel := range []string{form.EmailSelector, form.PasswordSelector} {
		if err := sess.WaitReady(ctx, sel); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrLoginFormMissing, sel, err)
		}
	}

	if err := sess.SendKeys(ctx, form.EmailSelector, creds.Email); err != nil {
		return fmt.Errorf("fill email: %w", err)
	}
	if err := sess.SendKeys(ctx, form.PasswordSelector, creds.Password); err != nil {
		return fmt.Errorf("fill password: %w", err)
	}

	if err := sess.ClickAndWaitNavigation(ctx, form.SubmitSelector); err != nil {
		return fmt.Errorf("%w: %v", ErrLoginNoNavigation, err)
	}
	return nil
}

// Observe installs an interceptor that captures the first asset request the
// adapter recognises. It must be called before the download is triggered.
func Observe(ctx context.Context, sess Session, adapter site.Adapter) (*Observer, error) {
	obs := NewObserver(adapter.IsAssetRequest, sess.Cookies)
	if err := sess.Intercept(ctx, obs.Handle); err != nil {
		return nil, fmt.Errorf("enable interception: %w", err)
	}
	return obs, nil
}

// OpenDownload navigates to the model page and opens its download dialog
func OpenDownload(ctx context.Context, sess Session, adapter site.Adapter, pageURL string) error {
	flow := adapter.DownloadFlow()

	if err := sess.Navigate(ctx, pageURL); err != nil {
		return fmt.Errorf("open model page: %w", err)
	}
	if err := sess.WaitReady(ctx, flow.OpenSelector); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrAffordanceMissing, flow.OpenSelector, err)
	}
	if err := sess.Click(ctx, flow.OpenSelector); err != nil {
		return fmt.Errorf("open download dialog: %w", err)
	}
	return nil
}

// ConfirmDownload picks the archive format in the open dialog, which makes
// the page request the asset
func ConfirmDownload(ctx context.Context, sess Session, adapter site.Adapter) error {
	flow := adapter.DownloadFlow()

	if err := sess.WaitReady(ctx, flow.ConfirmSelector); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrAffordanceMissing, flow.ConfirmSelector, err)
	}
	if err := sess.Click(ctx, flow.ConfirmSelector); err != nil {
		return fmt.Errorf("confirm download: %w", err)
	}
	return nil
}
