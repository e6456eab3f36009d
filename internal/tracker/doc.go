package tracker

// Package tracker is the only writer of record status during a pipeline run.
// It keeps resultUrl set exactly when a record is uploaded.
