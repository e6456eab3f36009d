package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ytget/model-mirror/internal/download"
	"github.com/ytget/model-mirror/internal/store"
)

// HTTPError is an error with the status code it maps to
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	return e.Message
}

type errorBody struct {
	Path      string `json:"path"`
	Timestamp string `json:"timestamp"`
	Message   string `json:"message"`
}

// toHTTPError maps service errors to status codes. Unknown errors become a
// 500 whose details stay in the log.
func toHTTPError(err error) *HTTPError {
	var httpErr *HTTPError
	switch {
	case errors.As(err, &httpErr):
		return httpErr
	case errors.Is(err, download.ErrAlreadyUploaded):
		return &HTTPError{Status: http.StatusBadRequest, Message: "This model is already uploaded"}
	case errors.Is(err, download.ErrInvalidRequest):
		return &HTTPError{Status: http.StatusBadRequest, Message: err.Error()}
	case errors.Is(err, download.ErrRunInProgress):
		return &HTTPError{Status: http.StatusConflict, Message: "This model is already being uploaded"}
	case errors.Is(err, download.ErrServiceClosed):
		return &HTTPError{Status: http.StatusServiceUnavailable, Message: "Service is shutting down"}
	case errors.Is(err, store.ErrNotFound), errors.Is(err, download.ErrRunNotFound):
		return &HTTPError{Status: http.StatusNotFound, Message: "Not found"}
	default:
		return &HTTPError{Status: http.StatusInternalServerError, Message: "Internal server error"}
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	httpErr := toHTTPError(err)
	if httpErr.Status >= http.StatusInternalServerError {
		s.logger.Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}

	writeJSON(w, httpErr.Status, errorBody{
		Path:      r.URL.Path,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Message:   httpErr.Message,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
