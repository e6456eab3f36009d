package download

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure
type Kind string

const (
	KindAuthentication      Kind = "AuthenticationFailure"
	KindNavigation          Kind = "NavigationFailure"
	KindInterceptionTimeout Kind = "InterceptionTimeout"
	KindFetch               Kind = "FetchFailure"
	KindPublish             Kind = "PublishFailure"
	KindStore               Kind = "StoreFailure"
	KindCancelled           Kind = "Cancelled"
	KindInternal            Kind = "InternalFailure"
)

// String returns the string representation of Kind
func (k Kind) String() string {
	return string(k)
}

var (
	ErrAlreadyUploaded = errors.New("model is already uploaded")
	ErrRunInProgress   = errors.New("an upload for this model is already running")
	ErrInvalidRequest  = errors.New("invalid upload request")
	ErrServiceClosed   = errors.New("upload service is shut down")
	ErrRunNotFound     = errors.New("run not found")
)

// PipelineError is a stage failure tagged with its kind
type PipelineError struct {
	Kind Kind
	Err  error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

func stageErr(kind Kind, err error) error {
	return &PipelineError{Kind: kind, Err: err}
}

// KindOf returns the kind of the outermost PipelineError in err's chain
func KindOf(err error) (Kind, bool) {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return "", false
}
