package search

// Package search queries the Sketchfab gallery for downloadable glTF models
// and merges every hit with its stored record.
