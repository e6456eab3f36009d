package model

// Package model defines domain data structures shared across the service: model
// records as persisted in the record store, upload runs tracked in memory, the
// captured request descriptor handed from the browser to the fetcher, and the
// status enums with their allowed transitions.
