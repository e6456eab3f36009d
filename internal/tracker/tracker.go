package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ytget/model-mirror/internal/model"
	"github.com/ytget/model-mirror/internal/store"
)

// Status messages written at each phase
const (
	MessageLocating = "locating source asset"
	MessageFetched  = "fetched; uploading to storage"
	MessageStored   = "stored"
	MessageRetryFmt = "failed, retry later: %s"
)

const failureWriteWait = 10 * time.Second

// ErrEmptyResultURL is returned by MarkUploaded without a URL
var ErrEmptyResultURL = errors.New("uploaded record needs a result url")

// Tracker writes status transitions into the record store
type Tracker struct {
	store  store.Store
	logger *zap.Logger
}

// New creates a tracker
func New(st store.Store, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{store: st, logger: logger.Named("tracker")}
}

// Begin moves the record into uploading unless it is already uploaded.
// The check and the write happen atomically in the store.
func (t *Tracker) Begin(ctx context.Context, id string) (*model.Record, error) {
	from := []model.Status{model.StatusNotUploaded, model.StatusError, model.StatusUploading}
	rec, err := t.store.TransitionStatus(ctx, id, from, patch(model.StatusUploading, MessageLocating, ""))
	if err != nil {
		return nil, fmt.Errorf("begin %s: %w", id, err)
	}
	t.logger.Debug("Status changed", zap.String("modelID", id), zap.Stringer("status", rec.Status))
	return rec, nil
}

// SetStatus records a transition. resultUrl is cleared since only
// MarkUploaded may set it.
func (t *Tracker) SetStatus(ctx context.Context, id string, status model.Status, message string) error {
	if status == model.StatusUploaded {
		return fmt.Errorf("set status %s: %w", id, ErrEmptyResultURL)
	}
	if _, err := t.store.Update(ctx, id, patch(status, message, "")); err != nil {
		return fmt.Errorf("set status %s: %w", id, err)
	}
	t.logger.Debug("Status changed",
		zap.String("modelID", id),
		zap.Stringer("status", status),
		zap.String("message", message),
	)
	return nil
}

// MarkUploaded records success with the durable URL
func (t *Tracker) MarkUploaded(ctx context.Context, id, resultURL string) error {
	if resultURL == "" {
		return fmt.Errorf("mark uploaded %s: %w", id, ErrEmptyResultURL)
	}
	if _, err := t.store.Update(ctx, id, patch(model.StatusUploaded, MessageStored, resultURL)); err != nil {
		return fmt.Errorf("mark uploaded %s: %w", id, err)
	}
	t.logger.Info("Model uploaded", zap.String("modelID", id), zap.String("resultURL", resultURL))
	return nil
}

// MarkFailed records a failure of the given kind. The write is detached from
// ctx so a cancelled run still leaves a terminal status behind.
func (t *Tracker) MarkFailed(ctx context.Context, id, kind string) error {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureWriteWait)
	defer cancel()

	msg := FailureMessage(kind)
	if _, err := t.store.Update(writeCtx, id, patch(model.StatusError, msg, "")); err != nil {
		return fmt.Errorf("mark failed %s: %w", id, err)
	}
	t.logger.Info("Model upload failed", zap.String("modelID", id), zap.String("kind", kind))
	return nil
}

// FailureMessage returns the status message for a failure kind
func FailureMessage(kind string) string {
	return fmt.Sprintf(MessageRetryFmt, kind)
}

func patch(status model.Status, message, resultURL string) model.RecordPatch {
	return model.RecordPatch{
		Status:        &status,
		StatusMessage: &message,
		ResultURL:     &resultURL,
	}
}
