package store

// Package store persists model records in an embedded badger database.
