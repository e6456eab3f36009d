package fetch

// Package fetch replays a captured browser request outside the browser and
// returns the response body. The body is held in memory and bounded by a
// configurable byte limit.
