package model

import (
	"time"
)

// Record is the persisted state of a model tracked by the service
type Record struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	SourceURL     string    `json:"sourceUrl"`
	ImgSmall      string    `json:"imgSmall,omitempty"`
	ImgLarge      string    `json:"imgLarge,omitempty"`
	Status        Status    `json:"status"`
	StatusMessage string    `json:"statusMessage"`
	ResultURL     string    `json:"resultUrl,omitempty"` // set only when Status is uploaded
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// NewRecord creates a record for a model that was never submitted
func NewRecord(req UploadRequest) *Record {
	now := time.Now()
	return &Record{
		ID:            req.ID,
		Name:          req.Name,
		SourceURL:     req.SourceURL,
		ImgSmall:      req.ImgSmall,
		ImgLarge:      req.ImgLarge,
		Status:        StatusNotUploaded,
		StatusMessage: "Not uploaded to our server",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// RecordPatch is a partial update of the mutable record fields. Nil fields are
// left untouched.
type RecordPatch struct {
	Status        *Status
	StatusMessage *string
	ResultURL     *string
}

// Apply writes the non-nil patch fields into r and bumps UpdatedAt
func (p RecordPatch) Apply(r *Record) {
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.StatusMessage != nil {
		r.StatusMessage = *p.StatusMessage
	}
	if p.ResultURL != nil {
		r.ResultURL = *p.ResultURL
	}
	r.UpdatedAt = time.Now()
}

// IsEmpty reports whether the patch changes nothing
func (p RecordPatch) IsEmpty() bool {
	return p.Status == nil && p.StatusMessage == nil && p.ResultURL == nil
}

// UploadRequest is the inbound trigger for a pipeline run
type UploadRequest struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	SourceURL string `json:"sourceUrl"`
	ImgSmall  string `json:"imgSmall,omitempty"`
	ImgLarge  string `json:"imgLarge,omitempty"`
}

// SearchResult is a gallery hit merged with the stored record, if any
type SearchResult struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	SourceURL     string `json:"sourceUrl"`
	ImgSmall      string `json:"imgSmall,omitempty"`
	ImgLarge      string `json:"imgLarge,omitempty"`
	Status        Status `json:"status"`
	StatusMessage string `json:"statusMessage"`
	ResultURL     string `json:"resultUrl,omitempty"`
}
