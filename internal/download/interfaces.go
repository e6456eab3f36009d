package download

import (
	"context"
	"time"

	"github.com/ytget/model-mirror/internal/model"
)

// Uploader defines the interface for the upload service.
type Uploader interface {
	SetUpdateCallback(func(model.UploadRun))

	// Submit validates the request against the record store, creates the
	// record if needed and starts a run.
	Submit(ctx context.Context, req model.UploadRequest) (model.UploadRun, error)

	// StartUpload starts a run for an existing record. It returns once the
	// record is marked uploading.
	StartUpload(ctx context.Context, req model.UploadRequest) (model.UploadRun, error)

	GetRun(id string) (model.UploadRun, bool)
	GetAllRuns() []model.UploadRun
	ActiveRun(modelID string) (model.UploadRun, bool)
	WaitRun(ctx context.Context, id string) (model.UploadRun, error)
	Shutdown(ctx context.Context) error
}

// Fetcher replays a captured request and returns the payload
type Fetcher interface {
	Fetch(ctx context.Context, req *model.CapturedRequest) ([]byte, error)
}

// StatusTracker writes record status transitions
type StatusTracker interface {
	Begin(ctx context.Context, id string) (*model.Record, error)
	SetStatus(ctx context.Context, id string, status model.Status, message string) error
	MarkUploaded(ctx context.Context, id, resultURL string) error
	MarkFailed(ctx context.Context, id, kind string) error
}

// Recorder receives pipeline measurements
type Recorder interface {
	RunStarted()
	RunFinished(outcome, kind string, d time.Duration)
	StageCompleted(stage string, d time.Duration)
	PayloadFetched(bytes int)
	ActiveRuns(n int)
}

type nopRecorder struct{}

func (nopRecorder) RunStarted() {}
func (nopRecorder) RunFinished(string, string, time.Duration) {}
func (nopRecorder) StageCompleted(string, time.Duration) {}
func (nopRecorder) PayloadFetched(int) {}
func (nopRecorder) ActiveRuns(int) {}
