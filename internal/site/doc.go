package site

// Package site isolates everything that depends on the gallery's markup and
// network layout: the login form, the two-step download dialog and the host
// that serves signed asset payloads. The pipeline only talks to Adapter.
