/*
checkpoint.go Durable snapshots of a build session. One directory per
checkpoint name holding the instantiated component table and the stage
history. Saving over an existing name requires an explicit overwrite.
*/

package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/owalsh/gridstage/internal/pkg/catalog"
	"github.com/owalsh/gridstage/internal/pkg/stage"
)

var (
	// ErrNotFound reports a load of a name with no prior checkpoint.
	ErrNotFound = errors.New("checkpoint not found")
	// ErrConflict reports a save over an existing name without overwrite.
	ErrConflict = errors.New("checkpoint already exists")
)

const (
	componentsFile = "components.csv"
	historyFile    = "stage_history.json"
)

// Store persists checkpoints under one base directory.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir. The directory is created lazily on
// first save.
func NewStore(dir string) Store {
	return Store{dir: dir}
}

// Dir returns the store's base directory.
func (s Store) Dir() string {
	return s.dir
}

// Save writes the instantiated row set and stage log under name. When the
// name is already taken and overwrite is false, Save fails with ErrConflict
// and leaves the existing checkpoint unchanged.
func (s Store) Save(name string, rows []catalog.Row, log *stage.Log, overwrite bool) error {
	if name == "" {
		return fmt.Errorf("checkpoint save: empty name")
	}
	path := filepath.Join(s.dir, name)
	if _, err := os.Stat(path); err == nil && !overwrite {
		return fmt.Errorf("checkpoint %q: %w", name, ErrConflict)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("checkpoint %q: %w", name, err)
	}

	if err := catalog.WriteFile(filepath.Join(path, componentsFile), rows); err != nil {
		return fmt.Errorf("checkpoint %q: components: %w", name, err)
	}

	history, err := json.MarshalIndent(log.History(), "", "  ")
	if err != nil {
		return fmt.Errorf("checkpoint %q: history: %w", name, err)
	}
	if err := os.WriteFile(filepath.Join(path, historyFile), history, 0o644); err != nil {
		return fmt.Errorf("checkpoint %q: history: %w", name, err)
	}
	return nil
}

// Load restores the row set and stage log saved under name.
func (s Store) Load(name string) ([]catalog.Row, *stage.Log, error) {
	path := filepath.Join(s.dir, name)
	if _, err := os.Stat(path); err != nil {
		return nil, nil, fmt.Errorf("checkpoint %q: %w", name, ErrNotFound)
	}

	rows, err := catalog.ReadFile(filepath.Join(path, componentsFile))
	if err != nil {
		return nil, nil, fmt.Errorf("checkpoint %q: components: %w", name, err)
	}

	raw, err := os.ReadFile(filepath.Join(path, historyFile))
	if err != nil {
		return nil, nil, fmt.Errorf("checkpoint %q: history: %w", name, err)
	}
	var stages []stage.Stage
	if err := json.Unmarshal(raw, &stages); err != nil {
		return nil, nil, fmt.Errorf("checkpoint %q: history: %w", name, err)
	}
	return rows, stage.Restore(stages), nil
}

// List returns the checkpoint names present in the store, sorted.
func (s Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
