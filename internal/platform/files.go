package platform

import (
	"fmt"
	"os"
	"path/filepath"
)

// File permissions
const (
	DefaultDirPermissions = 0755
)

// Data directory layout
const (
	RecordsDirName = "records"
	ObjectsDirName = "objects"
)

// Layout is the on-disk layout under the data directory
type Layout struct {
	Root    string
	Records string // badger record store
	Objects string // filesystem storage provider
}

// NewLayout resolves the layout under root without touching the disk
func NewLayout(root string) (Layout, error) {
	if root == "" {
		return Layout{}, fmt.Errorf("data directory is empty")
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return Layout{}, fmt.Errorf("failed to get absolute path: %w", err)
	}

	return Layout{
		Root:    abs,
		Records: filepath.Join(abs, RecordsDirName),
		Objects: filepath.Join(abs, ObjectsDirName),
	}, nil
}

// PrepareDataDir resolves the layout under root and creates its directories
func PrepareDataDir(root string) (Layout, error) {
	layout, err := NewLayout(root)
	if err != nil {
		return Layout{}, err
	}

	for _, dir := range []string{layout.Root, layout.Records} {
		if err := CreateDirectoryIfNotExists(dir); err != nil {
			return Layout{}, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return layout, nil
}

// CreateDirectoryIfNotExists creates directory if it doesn't exist
func CreateDirectoryIfNotExists(dirPath string) error {
	info, err := os.Stat(dirPath)
	if os.IsNotExist(err) {
		return os.MkdirAll(dirPath, DefaultDirPermissions)
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s exists and is not a directory", dirPath)
	}
	return nil
}
