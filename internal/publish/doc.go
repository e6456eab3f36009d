package publish

// Package publish pushes a fetched payload to durable object storage and
// returns its public URL.
