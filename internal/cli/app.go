package cli

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/ytget/model-mirror/internal/browser"
	"github.com/ytget/model-mirror/internal/config"
	"github.com/ytget/model-mirror/internal/download"
	"github.com/ytget/model-mirror/internal/fetch"
	"github.com/ytget/model-mirror/internal/metrics"
	"github.com/ytget/model-mirror/internal/platform"
	"github.com/ytget/model-mirror/internal/publish"
	"github.com/ytget/model-mirror/internal/search"
	"github.com/ytget/model-mirror/internal/site"
	"github.com/ytget/model-mirror/internal/store"
	"github.com/ytget/model-mirror/internal/tracker"
)

// app is the wired service graph shared by serve and upload
type app struct {
	cfg        config.Config
	logger     *zap.Logger
	store      *store.Badger
	tracker    *tracker.Tracker
	service    *download.Service
	searcher   *search.Searcher
	objectsDir string // set for the filesystem provider
}

func newApp(cfg config.Config, logger *zap.Logger) (*app, error) {
	layout, err := platform.PrepareDataDir(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(layout.Records, logger)
	if err != nil {
		return nil, err
	}

	pub, objectsDir, err := newPublisher(cfg.Storage, logger)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	chromePath := cfg.Browser.ChromePath
	if chromePath == "" {
		chromePath = platform.FindChrome()
	}
	logger.Debug("Browser selected", zap.String("chromePath", chromePath))

	launcher := browser.NewChromeLauncher(browser.LaunchOptions{
		Headless:       cfg.Browser.Headless,
		NoSandbox:      cfg.Browser.NoSandbox,
		ExecPath:       chromePath,
		UserAgent:      cfg.Browser.UserAgent,
		SessionTimeout: cfg.Browser.SessionTimeout,
	}, logger)

	fetcher := fetch.New(
		fetch.WithClient(&http.Client{Timeout: cfg.Fetch.Timeout}),
		fetch.WithMaxBytes(cfg.Fetch.MaxBytes),
		fetch.WithLogger(logger.Named("fetch")),
	)

	track := tracker.New(st, logger)

	svc := download.NewService(download.Deps{
		Launcher:  launcher,
		Adapter:   site.NewSketchfab(),
		Fetcher:   fetcher,
		Publisher: pub,
		Tracker:   track,
		Store:     st,
		Recorder:  metrics.Pipeline{},
		Logger:    logger,
	}, download.Options{
		Credentials: site.Credentials{
			Email:    cfg.Sketchfab.Email,
			Password: cfg.Sketchfab.Password,
		},
		Folder:              cfg.Storage.Folder,
		ResourceKind:        cfg.Storage.ResourceKind,
		InterceptionTimeout: cfg.Browser.InterceptionTimeout,
		MaxParallel:         cfg.Pipeline.MaxParallel,
		LoginRate:           cfg.Pipeline.LoginRate,
		LoginBurst:          cfg.Pipeline.LoginBurst,
	})

	searcher := search.New(search.Options{
		APIURL:      cfg.Search.APIURL,
		MaxFileSize: cfg.Search.MaxFileSize,
		CacheTTL:    cfg.Search.CacheTTL,
		Rate:        cfg.Search.Rate,
	}, st, logger)

	return &app{
		cfg:        cfg,
		logger:     logger,
		store:      st,
		tracker:    track,
		service:    svc,
		searcher:   searcher,
		objectsDir: objectsDir,
	}, nil
}

func newPublisher(cfg config.Storage, logger *zap.Logger) (publish.Publisher, string, error) {
	switch cfg.Provider {
	case config.ProviderCloudinary:
		pub, err := publish.NewCloudinary(cfg.Cloudinary.CloudName, cfg.Cloudinary.APIKey, cfg.Cloudinary.APISecret, logger)
		if err != nil {
			return nil, "", err
		}
		return pub, "", nil
	case config.ProviderFilesystem:
		pub, err := publish.NewFilesystem(cfg.Filesystem.Dir, cfg.Filesystem.PublicURL)
		if err != nil {
			return nil, "", err
		}
		return pub, pub.Dir(), nil
	default:
		return nil, "", fmt.Errorf("%w: %q", config.ErrUnknownStorageProvider, cfg.Provider)
	}
}

// close releases the searcher and the store. The service must be shut down
// first.
func (a *app) close() {
	a.searcher.Close()
	if err := a.store.Close(); err != nil {
		a.logger.Warn("Failed to close record store", zap.Error(err))
	}
}
