package download

// Package download implements the download-then-upload pipeline. A Service
// accepts upload requests, runs each one in its own goroutine through the
// browser capture, fetch and publish stages, and reports every state change
// through the status tracker and an optional update callback. Concurrency is
// bounded by a weighted semaphore and logins are paced by a token bucket.
