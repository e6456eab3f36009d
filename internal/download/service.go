package download

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/ytget/model-mirror/internal/browser"
	"github.com/ytget/model-mirror/internal/model"
	"github.com/ytget/model-mirror/internal/publish"
	"github.com/ytget/model-mirror/internal/site"
	"github.com/ytget/model-mirror/internal/store"
)

// Default values
const (
	DefaultMaxParallel         = 2
	DefaultInterceptionTimeout = 90 * time.Second
	DefaultHistorySize         = 512
	DefaultFolder              = "proto3d-models"
	DefaultResourceKind        = "image"
)

// Deps are the collaborators of the service
type Deps struct {
	Launcher  browser.Launcher
	Adapter   site.Adapter
	Fetcher   Fetcher
	Publisher publish.Publisher
	Tracker   StatusTracker
	Store     store.Store
	Recorder  Recorder
	Logger    *zap.Logger
}

// Options tune the service
type Options struct {
	Credentials         site.Credentials
	Folder              string
	ResourceKind        string
	InterceptionTimeout time.Duration
	MaxParallel         int
	LoginRate           float64 // logins per second, zero disables pacing
	LoginBurst          int
	HistorySize         int // finished runs kept for lookups
}

// runEntry is an in-flight run with its bookkeeping
type runEntry struct {
	run        *model.UploadRun
	stageStart time.Time
	done       chan struct{}
}

// Service handles upload operations
type Service struct {
	launcher  browser.Launcher
	adapter   site.Adapter
	fetcher   Fetcher
	publisher publish.Publisher
	tracker   StatusTracker
	store     store.Store
	recorder  Recorder
	logger    *zap.Logger

	creds               site.Credentials
	folder              string
	resourceKind        string
	interceptionTimeout time.Duration
	maxParallel         int

	slots  *semaphore.Weighted
	logins *rate.Limiter

	runsMutex sync.RWMutex
	runs      map[string]*runEntry // in-flight, by run id
	active    map[string]string    // model id -> in-flight run id
	history   *lru.Cache[string, model.UploadRun]
	onUpdate  func(model.UploadRun) // callback for run updates
	closed    bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService creates a new upload service
func NewService(deps Deps, opts Options) *Service {
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = DefaultMaxParallel
	}
	if opts.InterceptionTimeout <= 0 {
		opts.InterceptionTimeout = DefaultInterceptionTimeout
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = DefaultHistorySize
	}
	if opts.Folder == "" {
		opts.Folder = DefaultFolder
	}
	if opts.ResourceKind == "" {
		opts.ResourceKind = DefaultResourceKind
	}
	if deps.Recorder == nil {
		deps.Recorder = nopRecorder{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	limit := rate.Inf
	if opts.LoginRate > 0 {
		limit = rate.Limit(opts.LoginRate)
	}
	if opts.LoginBurst <= 0 {
		opts.LoginBurst = 1
	}

	// lru.New only errors on a non-positive size, guarded above.
	history, _ := lru.New[string, model.UploadRun](opts.HistorySize)

	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		launcher:            deps.Launcher,
		adapter:             deps.Adapter,
		fetcher:             deps.Fetcher,
		publisher:           deps.Publisher,
		tracker:             deps.Tracker,
		store:               deps.Store,
		recorder:            deps.Recorder,
		logger:              deps.Logger.Named("download"),
		creds:               opts.Credentials,
		folder:              opts.Folder,
		resourceKind:        opts.ResourceKind,
		interceptionTimeout: opts.InterceptionTimeout,
		maxParallel:         opts.MaxParallel,
		slots:               semaphore.NewWeighted(int64(opts.MaxParallel)),
		logins:              rate.NewLimiter(limit, opts.LoginBurst),
		runs:                make(map[string]*runEntry),
		active:              make(map[string]string),
		history:             history,
		ctx:                 ctx,
		cancel:              cancel,
	}
}

// SetUpdateCallback sets the callback function for run updates
func (s *Service) SetUpdateCallback(callback func(model.UploadRun)) {
	s.runsMutex.Lock()
	defer s.runsMutex.Unlock()
	s.onUpdate = callback
}

// Submit checks the record, creates it when missing and starts a run
func (s *Service) Submit(ctx context.Context, req model.UploadRequest) (model.UploadRun, error) {
	if req.ID == "" {
		return model.UploadRun{}, fmt.Errorf("%w: id is required", ErrInvalidRequest)
	}

	rec, err := s.store.Get(ctx, req.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		if err := s.validateSource(req.SourceURL); err != nil {
			return model.UploadRun{}, err
		}
		if err := s.store.Create(ctx, model.NewRecord(req)); err != nil && !errors.Is(err, store.ErrExists) {
			return model.UploadRun{}, fmt.Errorf("create record %s: %w", req.ID, err)
		}
	case err != nil:
		return model.UploadRun{}, fmt.Errorf("load record %s: %w", req.ID, err)
	case !rec.Status.CanSubmit():
		return model.UploadRun{}, fmt.Errorf("%w: %s", ErrAlreadyUploaded, req.ID)
	default:
		// the stored source URL is immutable
		if req.SourceURL != "" && req.SourceURL != rec.SourceURL {
			s.logger.Debug("Ignoring source URL of resubmission",
				zap.String("modelID", req.ID),
				zap.String("requested", req.SourceURL),
				zap.String("stored", rec.SourceURL))
		}
		req.SourceURL = rec.SourceURL
	}

	return s.StartUpload(ctx, req)
}

// StartUpload marks the record uploading and runs the pipeline in the
// background
func (s *Service) StartUpload(ctx context.Context, req model.UploadRequest) (model.UploadRun, error) {
	if req.ID == "" {
		return model.UploadRun{}, fmt.Errorf("%w: id is required", ErrInvalidRequest)
	}
	if err := s.validateSource(req.SourceURL); err != nil {
		return model.UploadRun{}, err
	}

	entry, err := s.reserve(req)
	if err != nil {
		return model.UploadRun{}, err
	}

	if _, err := s.tracker.Begin(ctx, req.ID); err != nil {
		s.release(entry)
		if errors.Is(err, store.ErrStatusConflict) {
			return model.UploadRun{}, fmt.Errorf("%w: %s", ErrAlreadyUploaded, req.ID)
		}
		return model.UploadRun{}, err
	}

	s.recorder.RunStarted()
	s.logger.Info("Upload started",
		zap.String("modelID", req.ID),
		zap.String("runID", entry.run.ID),
	)

	s.runsMutex.RLock()
	snapshot := entry.run.Snapshot()
	s.runsMutex.RUnlock()
	s.notifyUpdate(snapshot)

	go s.startRun(entry)

	return snapshot, nil
}

// reserve registers a run for the model unless one is already in flight
func (s *Service) reserve(req model.UploadRequest) (*runEntry, error) {
	s.runsMutex.Lock()
	defer s.runsMutex.Unlock()

	if s.closed {
		return nil, ErrServiceClosed
	}
	if runID, exists := s.active[req.ID]; exists {
		return nil, fmt.Errorf("%w: %s (%s)", ErrRunInProgress, req.ID, runID)
	}

	now := time.Now()
	entry := &runEntry{
		run: &model.UploadRun{
			ID:        generateRunID(),
			ModelID:   req.ID,
			SourceURL: req.SourceURL,
			State:     model.RunStateIdle,
			StartedAt: now,
		},
		stageStart: now,
		done:       make(chan struct{}),
	}
	s.runs[entry.run.ID] = entry
	s.active[req.ID] = entry.run.ID
	s.wg.Add(1)
	s.recorder.ActiveRuns(len(s.active))

	return entry, nil
}

// release drops a reservation whose run never started
func (s *Service) release(entry *runEntry) {
	s.runsMutex.Lock()
	defer s.runsMutex.Unlock()

	delete(s.runs, entry.run.ID)
	delete(s.active, entry.run.ModelID)
	close(entry.done)
	s.wg.Done()
	s.recorder.ActiveRuns(len(s.active))
}

// GetRun returns a run by ID
func (s *Service) GetRun(id string) (model.UploadRun, bool) {
	s.runsMutex.RLock()
	defer s.runsMutex.RUnlock()

	if entry, exists := s.runs[id]; exists {
		return entry.run.Snapshot(), true
	}
	return s.history.Get(id)
}

// ActiveRun returns the in-flight run of a model
func (s *Service) ActiveRun(modelID string) (model.UploadRun, bool) {
	s.runsMutex.RLock()
	defer s.runsMutex.RUnlock()

	runID, exists := s.active[modelID]
	if !exists {
		return model.UploadRun{}, false
	}
	return s.runs[runID].run.Snapshot(), true
}

// GetAllRuns returns in-flight and remembered runs, newest first
func (s *Service) GetAllRuns() []model.UploadRun {
	s.runsMutex.RLock()
	runs := make([]model.UploadRun, 0, len(s.runs)+s.history.Len())
	for _, entry := range s.runs {
		runs = append(runs, entry.run.Snapshot())
	}
	runs = append(runs, s.history.Values()...)
	s.runsMutex.RUnlock()

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	return runs
}

// WaitRun blocks until the run finishes or ctx ends
func (s *Service) WaitRun(ctx context.Context, id string) (model.UploadRun, error) {
	s.runsMutex.RLock()
	entry, inFlight := s.runs[id]
	s.runsMutex.RUnlock()

	if !inFlight {
		if run, ok := s.GetRun(id); ok {
			return run, nil
		}
		return model.UploadRun{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}

	select {
	case <-entry.done:
	case <-ctx.Done():
		return model.UploadRun{}, ctx.Err()
	}

	s.runsMutex.RLock()
	defer s.runsMutex.RUnlock()
	return entry.run.Snapshot(), nil
}

// Shutdown stops accepting runs, cancels in-flight ones and waits for them
func (s *Service) Shutdown(ctx context.Context) error {
	s.runsMutex.Lock()
	s.closed = true
	s.runsMutex.Unlock()

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for runs: %w", ctx.Err())
	}
}

func (s *Service) validateSource(sourceURL string) error {
	if sourceURL == "" {
		return fmt.Errorf("%w: sourceUrl is required", ErrInvalidRequest)
	}
	if err := s.adapter.ValidatePageURL(sourceURL); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

// notifyUpdate calls the update callback if set
func (s *Service) notifyUpdate(run model.UploadRun) {
	s.runsMutex.RLock()
	callback := s.onUpdate
	s.runsMutex.RUnlock()

	if callback != nil {
		callback(run)
	}
}

// generateRunID generates a unique run ID
func generateRunID() string {
	return "run-" + uuid.NewString()
}
