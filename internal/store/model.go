package store

import (
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// DefaultModelName is the slot the engine saves its live model under.
const DefaultModelName = "default"

// Model is a serialized classifier dataset.
type Model struct {
	Name      string    `json:"name"`
	Data      string    `json:"data"`
	Examples  int       `json:"examples"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ModelRepository stores model blobs by name.
type ModelRepository struct {
	db *sql.DB
}

// Models returns the model repository for this store.
func (s *Store) Models() *ModelRepository {
	return &ModelRepository{db: s.db}
}

// Save writes the blob under name, replacing any previous value.
func (r *ModelRepository) Save(name, data string, examples int) error {
	_, err := r.db.Exec(
		`INSERT INTO models (name, data, examples, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
			data = excluded.data,
			examples = excluded.examples,
			updated_at = excluded.updated_at`,
		name, data, examples, time.Now(),
	)
	return err
}

// Get retrieves the model saved under name.
func (r *ModelRepository) Get(name string) (*Model, error) {
	m := &Model{}

	err := r.db.QueryRow(
		`SELECT name, data, examples, updated_at FROM models WHERE name = ?`,
		name,
	).Scan(&m.Name, &m.Data, &m.Examples, &m.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return m, nil
}

// List retrieves every saved model without its data, newest first.
func (r *ModelRepository) List() ([]*Model, error) {
	rows, err := r.db.Query(
		`SELECT name, examples, updated_at FROM models ORDER BY updated_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var models []*Model
	for rows.Next() {
		m := &Model{}
		if err := rows.Scan(&m.Name, &m.Examples, &m.UpdatedAt); err != nil {
			return nil, err
		}
		models = append(models, m)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return models, nil
}

// Delete removes the model saved under name.
func (r *ModelRepository) Delete(name string) error {
	result, err := r.db.Exec(`DELETE FROM models WHERE name = ?`, name)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}
