package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/ytget/model-mirror/internal/model"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrExists         = errors.New("record already exists")
	ErrStatusConflict = errors.New("record status does not allow this transition")
	ErrInvalidRecord  = errors.New("invalid record")
)

// ConflictError carries the status that blocked a conditional update
type ConflictError struct {
	ID      string
	Current model.Status
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("record %s is %s", e.ID, e.Current)
}

func (e *ConflictError) Unwrap() error {
	return ErrStatusConflict
}

// Store is the persistent record store keyed by model id
type Store interface {
	Get(ctx context.Context, id string) (*model.Record, error)
	Create(ctx context.Context, rec *model.Record) error
	Update(ctx context.Context, id string, patch model.RecordPatch) (*model.Record, error)
	// TransitionStatus applies patch only if the current status is one of
	// from, atomically with the check.
	TransitionStatus(ctx context.Context, id string, from []model.Status, patch model.RecordPatch) (*model.Record, error)
	// GetMany returns the records that exist, keyed by id.
	GetMany(ctx context.Context, ids []string) (map[string]*model.Record, error)
	List(ctx context.Context, offset, limit int) ([]*model.Record, error)
	Close() error
}
