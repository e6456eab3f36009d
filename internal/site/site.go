package site

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const maxURLLength = 2048

// Credentials is the fixed login pair used for every session
type Credentials struct {
	Email    string
	Password string
}

// LoginForm holds the selectors of the login page
type LoginForm struct {
	EmailSelector    string
	PasswordSelector string
	SubmitSelector   string
}

// DownloadFlow holds the selectors of the two-step download dialog
type DownloadFlow struct {
	OpenSelector    string // opens the download popup
	ConfirmSelector string // picks the format and starts the download
}

// Adapter describes one gallery site to the pipeline
type Adapter interface {
	Name() string
	LoginURL() string
	LoginForm() LoginForm
	DownloadFlow() DownloadFlow
	// IsAssetRequest reports whether an outbound request targets the asset
	// payload host.
	IsAssetRequest(rawURL string) bool
	// ValidatePageURL checks that a model page URL belongs to the site.
	ValidatePageURL(rawURL string) error
}

var (
	ErrURLTooLong         = errors.New("url too long")
	ErrUnsupportedScheme  = errors.New("unsupported scheme: only http and https are allowed")
	ErrEmbeddedCredential = errors.New("urls with embedded credentials are not allowed")
	ErrForeignHost        = errors.New("url does not belong to the site")
)

// ValidateHTTPURL performs the checks shared by every adapter and returns the
// parsed URL.
func ValidateHTTPURL(rawURL string) (*url.URL, error) {
	if len(rawURL) > maxURLLength {
		return nil, fmt.Errorf("%w (%d chars, max %d)", ErrURLTooLong, len(rawURL), maxURLLength)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w (%q)", ErrUnsupportedScheme, u.Scheme)
	}
	if u.User != nil {
		return nil, ErrEmbeddedCredential
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("URL has no hostname")
	}
	return u, nil
}

// hostOf returns the lower-cased host of rawURL, or "" if it does not parse
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
