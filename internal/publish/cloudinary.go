package publish

import (
	"context"
	"fmt"
	"io"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"go.uber.org/zap"
)

// ProviderCloudinary names the Cloudinary provider in results
const ProviderCloudinary = "cloudinary"

type uploadAPI interface {
	Upload(ctx context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error)
}

// Cloudinary publishes to a Cloudinary media library
type Cloudinary struct {
	api    uploadAPI
	logger *zap.Logger
}

// NewCloudinary creates a publisher from account credentials
func NewCloudinary(cloudName, apiKey, apiSecret string, logger *zap.Logger) (*Cloudinary, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("create cloudinary client: %w", err)
	}
	return newCloudinary(&cld.Upload, logger), nil
}

func newCloudinary(api uploadAPI, logger *zap.Logger) *Cloudinary {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cloudinary{api: api, logger: logger.Named("cloudinary")}
}

// Upload streams r to Cloudinary
func (c *Cloudinary) Upload(ctx context.Context, r io.Reader, folder, kind string) (Result, error) {
	counter := &countingReader{r: r}

	resp, err := c.api.Upload(ctx, counter, uploader.UploadParams{
		Folder:       folder,
		ResourceType: kind,
	})
	if err != nil {
		return Result{}, fmt.Errorf("cloudinary upload: %w", err)
	}
	if resp == nil {
		return Result{}, fmt.Errorf("cloudinary upload: %w", ErrNoURL)
	}
	if resp.Error.Message != "" {
		return Result{}, fmt.Errorf("cloudinary upload rejected: %s", resp.Error.Message)
	}

	url := resp.SecureURL
	if url == "" {
		url = resp.URL
	}
	if url == "" {
		return Result{}, fmt.Errorf("cloudinary upload: %w", ErrNoURL)
	}

	c.logger.Debug("Uploaded asset",
		zap.String("public_id", resp.PublicID),
		zap.String("format", resp.Format),
		zap.Int64("bytes", counter.n),
	)
	return Result{URL: url, Provider: ProviderCloudinary, Bytes: counter.n}, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
