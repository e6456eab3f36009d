package server

// Package server exposes the upload service over HTTP. It validates inbound
// requests, reads records, starts runs without waiting for them and turns
// errors into JSON bodies of the form {path, timestamp, message}.
