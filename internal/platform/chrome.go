package platform

import (
	"os"
	"os/exec"
	"runtime"
)

// Operating system constants
const (
	OSDarwin  = "darwin"
	OSWindows = "windows"
	OSLinux   = "linux"
)

// Chrome binaries looked up on PATH, in order
var (
	ChromeCommands = []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "chrome", "headless-shell"}
)

// Well-known install locations per OS
var (
	DarwinChromePaths = []string{
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
		"/Applications/Chromium.app/Contents/MacOS/Chromium",
	}
	WindowsChromePaths = []string{
		`C:\Program Files\Google\Chrome\Application\chrome.exe`,
		`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
	}
	LinuxChromePaths = []string{
		"/usr/bin/google-chrome",
		"/usr/bin/chromium",
		"/usr/bin/chromium-browser",
		"/headless-shell/headless-shell",
	}
)

// FindChrome returns the path of a Chrome or Chromium executable, or "" when
// none is found. An empty result lets the browser driver apply its own lookup.
func FindChrome() string {
	return findChrome(runtime.GOOS, exec.LookPath, fileExists)
}

func findChrome(goos string, lookPath func(string) (string, error), exists func(string) bool) string {
	var candidates []string
	switch goos {
	case OSDarwin:
		candidates = DarwinChromePaths
	case OSWindows:
		candidates = WindowsChromePaths
	case OSLinux:
		candidates = LinuxChromePaths
	}

	for _, p := range candidates {
		if exists(p) {
			return p
		}
	}

	for _, name := range ChromeCommands {
		if p, err := lookPath(name); err == nil {
			return p
		}
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
