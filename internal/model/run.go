package model

import (
	"strings"
	"time"
)

// UploadRun represents a single pipeline execution for one model
type UploadRun struct {
	ID          string    `json:"id"`
	ModelID     string    `json:"modelId"`
	SourceURL   string    `json:"sourceUrl"`
	State       RunState  `json:"state"`
	FailureKind string    `json:"failureKind,omitempty"` // failure kind if the run failed
	LastError   string    `json:"lastError,omitempty"`   // last error message if any
	ResultURL   string    `json:"resultUrl,omitempty"`   // durable URL once published
	PayloadSize int       `json:"payloadSize,omitempty"` // fetched payload size in bytes
	StartedAt   time.Time `json:"startedAt"`             // when the run was accepted
	FinishedAt  time.Time `json:"finishedAt"`            // when the run reached a terminal state
}

// Snapshot returns a copy safe to hand out of the service lock
func (r *UploadRun) Snapshot() UploadRun {
	return *r
}

// Duration returns how long the run took, or has taken so far
func (r *UploadRun) Duration() time.Duration {
	if r.StartedAt.IsZero() {
		return 0
	}
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// CapturedRequest is the outbound request recovered from the browser session.
// It is created once per run and consumed by the fetcher.
type CapturedRequest struct {
	URL     string
	Method  string
	Body    []byte
	Headers map[string]string
	Cookie  string // serialized cookie jar, see CookieHeader
}

// Cookie is a name/value pair read from the browser cookie jar
type Cookie struct {
	Name  string
	Value string
}

// CookieHeader serializes cookies as name=value pairs joined with ";"
func CookieHeader(cookies []Cookie) string {
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		if c.Name == "" {
			continue
		}
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, ";")
}
