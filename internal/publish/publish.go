package publish

import (
	"context"
	"errors"
	"io"
	"strings"
)

// ErrNoURL is returned when a provider accepts an upload but reports no URL
var ErrNoURL = errors.New("storage returned no url")

// Result describes a stored object
type Result struct {
	URL      string
	Provider string
	Bytes    int64
}

// Publisher uploads a payload under folder as a resource of the given kind
type Publisher interface {
	Upload(ctx context.Context, r io.Reader, folder, kind string) (Result, error)
}

const (
	packedSuffix   = ".gltz"
	unpackedSuffix = ".gltf"
)

// NormalizeURL rewrites a trailing .gltz extension to .gltf. Any other URL is
// returned unchanged.
func NormalizeURL(rawURL string) string {
	if strings.HasSuffix(rawURL, packedSuffix) {
		return strings.TrimSuffix(rawURL, packedSuffix) + unpackedSuffix
	}
	return rawURL
}
