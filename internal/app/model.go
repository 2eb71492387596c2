package app

import (
	"errors"
	"fmt"

	"github.com/ayusman/mudra/internal/store"
)

// LoadModel restores the saved model from the store. A missing model leaves
// the classifier empty; a corrupt one is reported and also leaves it empty.
func (a *App) LoadModel() error {
	if a.config.Store == nil {
		return nil
	}

	m, err := a.config.Store.Models().Get(a.config.ModelName)
	if errors.Is(err, store.ErrNotFound) {
		a.logger.Infow("no saved model, starting empty", "model", a.config.ModelName)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read model %q: %w", a.config.ModelName, err)
	}

	if err := a.loadBlob(m.Data); err != nil {
		return fmt.Errorf("restore model %q: %w", a.config.ModelName, err)
	}

	a.logger.Infow("model restored",
		"model", a.config.ModelName,
		"examples", a.classifier.TotalExamples(),
		"updated_at", m.UpdatedAt,
	)
	return nil
}

// SaveModel writes the current dataset to the store.
func (a *App) SaveModel() error {
	if a.config.Store == nil {
		return ErrNoStore
	}

	blob, err := a.classifier.Save()
	if err != nil {
		return fmt.Errorf("serialize model: %w", err)
	}
	if err := a.config.Store.Models().Save(a.config.ModelName, blob, a.classifier.TotalExamples()); err != nil {
		return fmt.Errorf("save model %q: %w", a.config.ModelName, err)
	}

	a.logger.Debugw("model saved", "model", a.config.ModelName, "examples", a.classifier.TotalExamples())
	return nil
}

// ModelBlob returns the serialized dataset.
func (a *App) ModelBlob() (string, error) {
	return a.classifier.Save()
}

// ReplaceModel loads blob into the classifier and persists it when a store is
// configured. On any error, including a failed save, the previous dataset is
// kept.
func (a *App) ReplaceModel(blob string) error {
	prev, err := a.classifier.Save()
	if err != nil {
		return fmt.Errorf("serialize model: %w", err)
	}
	if err := a.loadBlob(blob); err != nil {
		return err
	}
	if a.config.Store == nil {
		return nil
	}

	if err := a.SaveModel(); err != nil {
		if rerr := a.classifier.Load(prev); rerr != nil {
			a.logger.Errorw("failed to restore previous model", "error", rerr)
		}
		return err
	}
	return nil
}

// ExportModel writes the serialized dataset to path.
func (a *App) ExportModel(path string) error {
	blob, err := a.classifier.Save()
	if err != nil {
		return fmt.Errorf("serialize model: %w", err)
	}
	if err := store.ExportFile(path, blob); err != nil {
		return err
	}

	a.logger.Infow("model exported", "path", path, "examples", a.classifier.TotalExamples())
	return nil
}

// ImportModel replaces the dataset with the one stored at path.
func (a *App) ImportModel(path string) error {
	blob, err := store.ImportFile(path)
	if err != nil {
		return err
	}
	if err := a.ReplaceModel(blob); err != nil {
		return err
	}

	a.logger.Infow("model imported", "path", path, "examples", a.classifier.TotalExamples())
	return nil
}

// ClearModel empties the dataset and removes the saved copy.
func (a *App) ClearModel() error {
	a.classifier.Clear()

	a.mu.Lock()
	a.captured = make(map[string]int)
	a.mu.Unlock()

	if a.config.Store == nil {
		return nil
	}
	if err := a.config.Store.Models().Delete(a.config.ModelName); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("delete model %q: %w", a.config.ModelName, err)
	}

	a.logger.Infow("model cleared", "model", a.config.ModelName)
	return nil
}

func (a *App) loadBlob(blob string) error {
	if err := a.classifier.Load(blob); err != nil {
		return err
	}

	for _, l := range a.classifier.Labels() {
		if !a.labels[l] {
			a.logger.Warnw("model contains a label outside the configured set", "label", l)
		}
	}
	return nil
}
