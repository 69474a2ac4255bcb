package merge

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// DiskStore persists evolution records as one JSON file per tracked path
// under <root>/.intentmerge/evolution/, so state survives across processes
// and agent sessions.
type DiskStore struct {
	dir string
	mu  sync.RWMutex
}

var _ EvolutionStore = (*DiskStore)(nil)

// NewDiskStore creates the storage directory under projectRoot if needed.
func NewDiskStore(projectRoot string) (*DiskStore, error) {
	dir := filepath.Join(projectRoot, ".intentmerge", "evolution")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("merge: create evolution dir: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

// Dir returns the storage directory.
func (s *DiskStore) Dir() string { return s.dir }

func (s *DiskStore) path(filePath string) string {
	return filepath.Join(s.dir, SanitizePath(filePath)+".json")
}

func (s *DiskStore) Load(filePath string) (*FileEvolution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.load(s.path(filePath))
}

func (s *DiskStore) load(path string) (*FileEvolution, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("merge: read evolution: %w", err)
	}
	var rec EvolutionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("merge: decode evolution %s: %w", path, err)
	}
	evo := EvolutionFromRecord(rec)
	return &evo, nil
}

func (s *DiskStore) Save(evo *FileEvolution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.MarshalIndent(evo.Record(), "", "  ")
	if err != nil {
		return fmt.Errorf("merge: encode evolution %s: %w", evo.FilePath, err)
	}
	tmp := s.path(evo.FilePath) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("merge: write evolution: %w", err)
	}
	if err := os.Rename(tmp, s.path(evo.FilePath)); err != nil {
		return fmt.Errorf("merge: commit evolution: %w", err)
	}
	return nil
}

func (s *DiskStore) Delete(filePath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path(filePath)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("merge: delete evolution: %w", err)
	}
	return nil
}

// List reads each record to recover original paths, since file names on
// disk are sanitized.
func (s *DiskStore) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("merge: list evolution dir: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		evo, err := s.load(filepath.Join(s.dir, e.Name()))
		if err != nil || evo == nil {
			continue
		}
		paths = append(paths, evo.FilePath)
	}
	sort.Strings(paths)
	return paths, nil
}

func (s *DiskStore) Close() error { return nil }
