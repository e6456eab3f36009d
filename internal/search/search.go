package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ytget/model-mirror/internal/model"
)

// Default values
const (
	DefaultAPIURL      = "https://api.sketchfab.com/v3/search"
	DefaultMaxFileSize = 10485760
	DefaultCacheTTL    = 5 * time.Minute
	DefaultRate        = 5
	PageSize           = 24

	defaultMessage = "Not uploaded to our server"
	maxBodyBytes   = 8 << 20
)

// RecordLookup reads stored records
type RecordLookup interface {
	GetMany(ctx context.Context, ids []string) (map[string]*model.Record, error)
}

// Options configure a Searcher
type Options struct {
	APIURL      string
	MaxFileSize int64
	CacheTTL    time.Duration
	Rate        float64 // outbound requests per second
	Client      *http.Client
}

// Query is one search request
type Query struct {
	Text   string
	Cursor int
}

func (q Query) cacheKey() string {
	return strconv.Itoa(q.Cursor) + "|" + q.Text
}

// Hit is a gallery model before merging with the store
type Hit struct {
	ID        string
	Name      string
	SourceURL string
	ImgSmall  string
	ImgLarge  string
}

// Searcher runs gallery searches
type Searcher struct {
	apiURL      string
	maxFileSize int64
	client      *http.Client
	lookup      RecordLookup
	cache       *ttlcache.Cache[string, []Hit]
	limiter     *rate.Limiter
	logger      *zap.Logger
}

// New creates a Searcher. Call Close to stop the cache janitor.
func New(opts Options, lookup RecordLookup, logger *zap.Logger) *Searcher {
	if opts.APIURL == "" {
		opts.APIURL = DefaultAPIURL
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.Rate <= 0 {
		opts.Rate = DefaultRate
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cache := ttlcache.New[string, []Hit](
		ttlcache.WithTTL[string, []Hit](opts.CacheTTL),
		ttlcache.WithDisableTouchOnHit[string, []Hit](),
	)
	go cache.Start()

	return &Searcher{
		apiURL:      opts.APIURL,
		maxFileSize: opts.MaxFileSize,
		client:      opts.Client,
		lookup:      lookup,
		cache:       cache,
		limiter:     rate.NewLimiter(rate.Limit(opts.Rate), int(opts.Rate)+1),
		logger:      logger.Named("search"),
	}
}

// Close stops the cache janitor
func (s *Searcher) Close() {
	s.cache.Stop()
}

// Search returns two gallery pages starting at q.Cursor, each hit merged with
// its stored status
func (s *Searcher) Search(ctx context.Context, q Query) ([]model.SearchResult, error) {
	if q.Cursor < 0 {
		q.Cursor = 0
	}

	hits, err := s.hits(ctx, q)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.ID)
	}
	records, err := s.lookup.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}

	results := make([]model.SearchResult, 0, len(hits))
	for _, h := range hits {
		res := model.SearchResult{
			ID:            h.ID,
			Name:          h.Name,
			SourceURL:     h.SourceURL,
			ImgSmall:      h.ImgSmall,
			ImgLarge:      h.ImgLarge,
			Status:        model.StatusNotUploaded,
			StatusMessage: defaultMessage,
		}
		if rec, ok := records[h.ID]; ok {
			res.Status = rec.Status
			res.StatusMessage = rec.StatusMessage
			res.ResultURL = rec.ResultURL
		}
		results = append(results, res)
	}
	return results, nil
}

// hits returns the filtered gallery hits for q, from cache when possible
func (s *Searcher) hits(ctx context.Context, q Query) ([]Hit, error) {
	key := q.cacheKey()
	if item := s.cache.Get(key); item != nil {
		return item.Value(), nil
	}

	var pages [2][]apiModel
	g, gctx := errgroup.WithContext(ctx)
	for i := range pages {
		i := i
		g.Go(func() error {
			page, err := s.fetchPage(gctx, q.Text, q.Cursor+i*PageSize)
			if err != nil {
				return err
			}
			pages[i] = page
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var hits []Hit
	for _, page := range pages {
		for _, m := range page {
			if m.UID == "" || seen[m.UID] {
				continue
			}
			if m.Archives.GLTF == nil || m.Archives.GLTF.Size >= s.maxFileSize {
				continue
			}
			seen[m.UID] = true
			small, large := pickThumbnails(m.Thumbnails.Images)
			hits = append(hits, Hit{
				ID:        m.UID,
				Name:      m.Name,
				SourceURL: m.ViewerURL,
				ImgSmall:  small,
				ImgLarge:  large,
			})
		}
	}

	s.cache.Set(key, hits, ttlcache.DefaultTTL)
	s.logger.Debug("Search completed",
		zap.String("query", q.Text),
		zap.Int("cursor", q.Cursor),
		zap.Int("hits", len(hits)),
	)
	return hits, nil
}

func (s *Searcher) fetchPage(ctx context.Context, text string, cursor int) ([]apiModel, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("type", "models")
	params.Set("downloadable", "true")
	params.Set("animated", "false")
	params.Set("sound", "false")
	params.Set("max_filesizes", fmt.Sprintf("gltf:%d", s.maxFileSize))
	params.Set("cursor", strconv.Itoa(cursor))
	if text != "" {
		params.Set("q", text)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search gallery: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search gallery: unexpected status %d", resp.StatusCode)
	}

	var body apiResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return body.Results, nil
}

// pickThumbnails takes the second and third images counting from the end of
// the list, which the gallery orders from largest to smallest
func pickThumbnails(images []apiImage) (small, large string) {
	n := len(images)
	if n >= 2 {
		small = images[n-2].URL
	}
	if n >= 3 {
		large = images[n-3].URL
	}
	return small, large
}
