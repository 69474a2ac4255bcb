package merge

import (
	"sort"
	"sync"
)

// MemStore is an in-memory EvolutionStore for tests and single-run merges.
type MemStore struct {
	mu   sync.RWMutex
	evos map[string]*FileEvolution
}

var _ EvolutionStore = (*MemStore)(nil)

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{evos: make(map[string]*FileEvolution)}
}

func (s *MemStore) Load(filePath string) (*FileEvolution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	evo, ok := s.evos[filePath]
	if !ok {
		return nil, nil
	}
	cp := *evo
	cp.Snapshots = append([]TaskSnapshot(nil), evo.Snapshots...)
	return &cp, nil
}

func (s *MemStore) Save(evo *FileEvolution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *evo
	cp.Snapshots = append([]TaskSnapshot(nil), evo.Snapshots...)
	s.evos[evo.FilePath] = &cp
	return nil
}

func (s *MemStore) Delete(filePath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.evos, filePath)
	return nil
}

func (s *MemStore) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	paths := make([]string, 0, len(s.evos))
	for p := range s.evos {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

func (s *MemStore) Close() error { return nil }
