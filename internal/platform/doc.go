package platform

// Package platform contains OS integration glue: the data directory layout
// and discovery of a local Chrome executable.
