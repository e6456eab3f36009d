package model

import (
	"testing"
	"time"
)

func TestNewRecord(t *testing.T) {
	req := UploadRequest{
		ID:        "abc",
		Name:      "Chair",
		SourceURL: "https://sketchfab.com/3d-models/chair-abc",
		ImgSmall:  "https://media.example/small.jpg",
	}

	rec := NewRecord(req)

	if rec.ID != "abc" || rec.Name != "Chair" || rec.SourceURL != req.SourceURL {
		t.Errorf("NewRecord() did not copy identity fields: %+v", rec)
	}
	if rec.Status != StatusNotUploaded {
		t.Errorf("Expected status %s, got %s", StatusNotUploaded, rec.Status)
	}
	if rec.ResultURL != "" {
		t.Errorf("Expected empty ResultURL, got %q", rec.ResultURL)
	}
	if rec.CreatedAt.IsZero() || !rec.CreatedAt.Equal(rec.UpdatedAt) {
		t.Errorf("Expected CreatedAt == UpdatedAt and non-zero, got %v / %v", rec.CreatedAt, rec.UpdatedAt)
	}
}

func TestRecordPatch_Apply(t *testing.T) {
	rec := &Record{
		ID:            "abc",
		Status:        StatusUploading,
		StatusMessage: "locating source asset",
		UpdatedAt:     time.Now().Add(-time.Hour),
	}
	before := rec.UpdatedAt

	msg := "fetched; uploading to storage"
	RecordPatch{StatusMessage: &msg}.Apply(rec)

	if rec.Status != StatusUploading {
		t.Errorf("Status changed unexpectedly to %s", rec.Status)
	}
	if rec.StatusMessage != msg {
		t.Errorf("Expected message %q, got %q", msg, rec.StatusMessage)
	}
	if !rec.UpdatedAt.After(before) {
		t.Error("Expected UpdatedAt to advance")
	}
}

func TestRecordPatch_IsEmpty(t *testing.T) {
	if !(RecordPatch{}).IsEmpty() {
		t.Error("Zero patch should be empty")
	}
	status := StatusUploaded
	if (RecordPatch{Status: &status}).IsEmpty() {
		t.Error("Patch with status should not be empty")
	}
}

func TestCookieHeader(t *testing.T) {
	tests := []struct {
		cookies  []Cookie
		expected string
	}{
		{nil, ""},
		{[]Cookie{{Name: "sid", Value: "1"}}, "sid=1"},
		{[]Cookie{{Name: "sid", Value: "1"}, {Name: "csrftoken", Value: "x y"}}, "sid=1;csrftoken=x y"},
		{[]Cookie{{Name: "", Value: "skip"}, {Name: "a", Value: ""}}, "a="},
	}

	for _, test := range tests {
		result := CookieHeader(test.cookies)
		if result != test.expected {
			t.Errorf("CookieHeader(%v) = %q, expected %q", test.cookies, result, test.expected)
		}
	}
}

func TestUploadRun_Duration(t *testing.T) {
	start := time.Now().Add(-3 * time.Second)
	run := &UploadRun{StartedAt: start, FinishedAt: start.Add(2 * time.Second)}

	if run.Duration() != 2*time.Second {
		t.Errorf("Expected 2s, got %v", run.Duration())
	}

	if (&UploadRun{}).Duration() != 0 {
		t.Error("Expected zero duration for a run that never started")
	}
}
