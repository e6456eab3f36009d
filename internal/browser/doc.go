package browser

// Package browser drives an interactive browser session on behalf of one
// pipeline run: logging in, opening the download dialog and intercepting the
// request that carries the signed asset URL. Session is the narrow surface the
// driver needs; ChromeLauncher implements it on top of chromedp.
