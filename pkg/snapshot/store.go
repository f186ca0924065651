// Package snapshot persists per-product stock readings as an append-only
// log of timestamped JSON files and derives stock increases between the two
// newest entries.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"stockwatch/pkg/models"
)

// filenameLayout sorts lexically in chronological order, so plain name
// sorting recovers the timeline.
const filenameLayout = "2006-01-02_15-04-05"

// Store writes and reads snapshot files. The directory is a pure log: files
// are never mutated or deleted here.
type Store struct {
	// Now stamps new snapshots; replaceable in tests.
	Now func() time.Time
}

func NewStore() *Store {
	return &Store{Now: time.Now}
}

// Save writes readings as a new timestamped snapshot file in dir and returns
// its path.
func (s *Store) Save(dir string, readings models.Snapshot) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	data, err := json.MarshalIndent(readings, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	path := filepath.Join(dir, s.Now().Format(filenameLayout)+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return path, nil
}

// LoadLastTwo returns the previous and latest snapshots in dir. It returns
// models.ErrNoHistory when fewer than two snapshots exist yet.
func (s *Store) LoadLastTwo(dir string) (previous, latest models.Snapshot, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("list snapshot dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	if len(names) < 2 {
		return nil, nil, models.ErrNoHistory
	}
	sort.Strings(names)

	previous, err = readSnapshot(filepath.Join(dir, names[len(names)-2]))
	if err != nil {
		return nil, nil, err
	}
	latest, err = readSnapshot(filepath.Join(dir, names[len(names)-1]))
	if err != nil {
		return nil, nil, err
	}
	return previous, latest, nil
}

func readSnapshot(path string) (models.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", path, err)
	}
	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	return snap, nil
}
