package cli

// Package cli is the model-mirror command line: serve runs the HTTP service,
// upload mirrors one model in the foreground, status reads stored records and
// config init writes a starter config file.
