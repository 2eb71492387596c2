package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrEmptyFile is returned by ImportFile when the file holds no model.
var ErrEmptyFile = errors.New("model file is empty")

// ExportFile writes blob to path. The file is written to a temporary sibling
// and renamed into place, so readers never see a partial model.
func ExportFile(path, blob string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".model-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(blob); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write model: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync model: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close model file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to move model into place: %w", err)
	}
	return nil
}

// ImportFile reads a model blob previously written by ExportFile.
func ImportFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read model file: %w", err)
	}

	blob := strings.TrimSpace(string(data))
	if blob == "" {
		return "", ErrEmptyFile
	}
	return blob, nil
}
