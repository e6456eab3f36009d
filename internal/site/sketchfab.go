package site

import (
	"fmt"
	"strings"
)

// Sketchfab endpoints and markup
const (
	SketchfabLoginURL = "https://sketchfab.com/login"
	SketchfabHost     = "sketchfab.com"

	// Signed archives are served from the production media bucket
	SketchfabAssetHostPattern = "sketchfab-prod-media.s3"

	sketchfabEmailSelector    = `[name="email"]`
	sketchfabPasswordSelector = `[name="password"]`
	sketchfabSubmitSelector   = `[data-selenium="submit-button"]`
	sketchfabOpenSelector     = `[data-selenium="open-download-popup"]`
	sketchfabConfirmSelector  = `.button.btn-primary.btn-large.button-gltf`
)

// Sketchfab is the adapter for sketchfab.com
type Sketchfab struct{}

var _ Adapter = Sketchfab{}

// NewSketchfab returns the Sketchfab adapter
func NewSketchfab() Sketchfab {
	return Sketchfab{}
}

func (Sketchfab) Name() string {
	return "sketchfab"
}

func (Sketchfab) LoginURL() string {
	return SketchfabLoginURL
}

func (Sketchfab) LoginForm() LoginForm {
	return LoginForm{
		EmailSelector:    sketchfabEmailSelector,
		PasswordSelector: sketchfabPasswordSelector,
		SubmitSelector:   sketchfabSubmitSelector,
	}
}

func (Sketchfab) DownloadFlow() DownloadFlow {
	return DownloadFlow{
		OpenSelector:    sketchfabOpenSelector,
		ConfirmSelector: sketchfabConfirmSelector,
	}
}

// IsAssetRequest matches requests to the media bucket, e.g.
// https://sketchfab-prod-media.s3.amazonaws.com/archives/...
func (Sketchfab) IsAssetRequest(rawURL string) bool {
	host := hostOf(rawURL)
	if host == "" {
		return false
	}
	return strings.Contains(host, SketchfabAssetHostPattern)
}

func (Sketchfab) ValidatePageURL(rawURL string) error {
	u, err := ValidateHTTPURL(rawURL)
	if err != nil {
		return err
	}
	host := strings.ToLower(u.Hostname())
	if host != SketchfabHost && !strings.HasSuffix(host, "."+SketchfabHost) {
		return fmt.Errorf("%w: %s", ErrForeignHost, host)
	}
	return nil
}
