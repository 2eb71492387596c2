package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestExportImportFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models", "signs.json")
	blob := `{"Hello":[],"Yes":[]}`

	if err := ExportFile(path, blob); err != nil {
		t.Fatalf("ExportFile() error = %v", err)
	}

	got, err := ImportFile(path)
	if err != nil {
		t.Fatalf("ImportFile() error = %v", err)
	}
	if got != blob {
		t.Errorf("expected %s, got %s", blob, got)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("failed to read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the model file to remain, got %d entries", len(entries))
	}
}

func TestExportFile_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signs.json")

	if err := ExportFile(path, `{"Hello":[]}`); err != nil {
		t.Fatalf("ExportFile() error = %v", err)
	}
	if err := ExportFile(path, `{}`); err != nil {
		t.Fatalf("second ExportFile() error = %v", err)
	}

	got, err := ImportFile(path)
	if err != nil {
		t.Fatalf("ImportFile() error = %v", err)
	}
	if got != `{}` {
		t.Errorf("expected overwritten model, got %s", got)
	}
}

func TestImportFile_Errors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		_, err := ImportFile(filepath.Join(dir, "nope.json"))
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("expected os.ErrNotExist, got %v", err)
		}
	})

	t.Run("empty file", func(t *testing.T) {
		path := filepath.Join(dir, "empty.json")
		if err := os.WriteFile(path, []byte("  \n"), 0o644); err != nil {
			t.Fatalf("failed to write file: %v", err)
		}
		if _, err := ImportFile(path); !errors.Is(err, ErrEmptyFile) {
			t.Errorf("expected ErrEmptyFile, got %v", err)
		}
	})

	t.Run("trailing newline is trimmed", func(t *testing.T) {
		path := filepath.Join(dir, "newline.json")
		if err := os.WriteFile(path, []byte("{}\n"), 0o644); err != nil {
			t.Fatalf("failed to write file: %v", err)
		}
		got, err := ImportFile(path)
		if err != nil || got != "{}" {
			t.Errorf("expected {}, got %q (%v)", got, err)
		}
	})
}
