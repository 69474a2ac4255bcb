package merge

// EvolutionStore persists per-file evolution records. Implementations must
// be safe for concurrent use; the tracker serializes writes per file but
// reads can arrive from any goroutine.
type EvolutionStore interface {
	// Load returns the evolution for a file path, or (nil, nil) when the
	// file is untracked.
	Load(filePath string) (*FileEvolution, error)

	// Save writes the evolution, replacing any previous record for the
	// same file path.
	Save(evo *FileEvolution) error

	// Delete removes the record for a file path. Deleting an untracked
	// path is not an error.
	Delete(filePath string) error

	// List returns the tracked file paths in lexical order.
	List() ([]string, error)

	// Close releases underlying resources.
	Close() error
}
