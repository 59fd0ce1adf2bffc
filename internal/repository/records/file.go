package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/oshokin/secpi-console/internal/config"
	"github.com/oshokin/secpi-console/internal/domain/entity"
)

// Snapshot is the complete persisted state of the record store.
type Snapshot struct {
	// Collections maps a collection name to its records in id order.
	Collections map[string][]entity.Entity `json:"collections"`
	// NextIDs maps a collection name to the last id it assigned.
	NextIDs map[string]int64 `json:"next_ids"`
	// Links maps a relation name, e.g. "setupszones", to its associations.
	Links map[string][]entity.Record `json:"links"`
}

// Repository defines persistence operations for the record store.
type Repository interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snapshot *Snapshot) error
}

// FileRepository persists the snapshot to a JSON file on disk.
type FileRepository struct {
	// path is the filesystem location of the JSON file.
	path string
	// mu protects concurrent access to the file.
	mu sync.Mutex
}

// ErrNotFound is returned when the records file does not exist yet.
var ErrNotFound = errors.New("records not found")

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads the snapshot from disk.
func (r *FileRepository) Load(_ context.Context) (*Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read records file: %w", err)
	}

	var snapshot Snapshot
	if err = json.Unmarshal(contents, &snapshot); err != nil {
		return nil, fmt.Errorf("decode records file: %w", err)
	}

	return &snapshot, nil
}

// Save writes the snapshot to disk. The file is replaced atomically.
func (r *FileRepository) Save(_ context.Context, snapshot *Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}

	tmp := r.path + ".tmp"
	if err = os.WriteFile(tmp, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write records file: %w", err)
	}

	if err = os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("replace records file: %w", err)
	}

	return nil
}
