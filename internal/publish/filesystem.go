package publish

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"
)

// ProviderFilesystem names the local-disk provider in results
const ProviderFilesystem = "filesystem"

// Filesystem stores objects on local disk under content-addressed names. It
// is intended for development and testing.
type Filesystem struct {
	baseDir   string
	publicURL string
}

// NewFilesystem creates a store rooted at baseDir. Object URLs are publicURL
// joined with the object key.
func NewFilesystem(baseDir, publicURL string) (*Filesystem, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("filesystem store: base dir is empty")
	}
	if _, err := url.Parse(publicURL); err != nil {
		return nil, fmt.Errorf("parse public url: %w", err)
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create object dir: %w", err)
	}
	return &Filesystem{baseDir: baseDir, publicURL: publicURL}, nil
}

// Dir returns the root directory
func (s *Filesystem) Dir() string {
	return s.baseDir
}

// Upload writes r to <folder>/<sha256> and returns its public URL
func (s *Filesystem) Upload(ctx context.Context, r io.Reader, folder, _ string) (Result, error) {
	dir := filepath.Join(s.baseDir, filepath.FromSlash(folder))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{}, fmt.Errorf("ensure object dir: %w", err)
	}

	tmpPath := filepath.Join(dir, fmt.Sprintf("tmp-%d", time.Now().UnixNano()))
	f, err := os.Create(tmpPath)
	if err != nil {
		return Result{}, fmt.Errorf("create temp object: %w", err)
	}

	sum := sha256.New()
	n, err := io.Copy(f, io.TeeReader(&ctxReader{ctx: ctx, r: r}, sum))
	if err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return Result{}, fmt.Errorf("write object: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return Result{}, fmt.Errorf("close object: %w", err)
	}

	name := hex.EncodeToString(sum.Sum(nil))
	if err := os.Rename(tmpPath, filepath.Join(dir, name)); err != nil {
		_ = os.Remove(tmpPath)
		return Result{}, fmt.Errorf("rename object: %w", err)
	}

	u, err := s.objectURL(path.Join(folder, name))
	if err != nil {
		return Result{}, err
	}
	return Result{URL: u, Provider: ProviderFilesystem, Bytes: n}, nil
}

func (s *Filesystem) objectURL(key string) (string, error) {
	if s.publicURL == "" {
		abs, err := filepath.Abs(filepath.Join(s.baseDir, filepath.FromSlash(key)))
		if err != nil {
			return "", fmt.Errorf("resolve object path: %w", err)
		}
		return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), nil
	}

	u, err := url.Parse(s.publicURL)
	if err != nil {
		return "", fmt.Errorf("parse public url: %w", err)
	}
	u.Path = path.Join("/", u.Path, key)
	return u.String(), nil
}

// ctxReader stops reading once ctx is done
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
