package forecast

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/apperr"
)

var ErrModelNotFound = fmt.Errorf("model not found, train the model first: %w", apperr.ErrNotFound)

// ArtifactStore persists the trained forest as a JSON file. Saves replace the
// file atomically so readers see either the old or the new model.
type ArtifactStore struct {
	path string
	mu   sync.Mutex
}

func NewArtifactStore(path string) *ArtifactStore {
	return &ArtifactStore{path: path}
}

func (a *ArtifactStore) Path() string { return a.path }

// Save writes f to a temp file next to the artifact and renames it over the
// artifact.
func (a *ArtifactStore) Save(f *Forest) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode model: %w", err)
	}
	dir := filepath.Dir(a.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(a.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp model file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write model: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync model: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close model: %w", err)
	}
	if err := os.Rename(tmpName, a.path); err != nil {
		return fmt.Errorf("install model: %w", err)
	}
	return nil
}

// Load reads the artifact. A missing file yields ErrModelNotFound.
func (a *ArtifactStore) Load() (*Forest, error) {
	data, err := os.ReadFile(a.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w (%s)", ErrModelNotFound, a.path)
		}
		return nil, fmt.Errorf("read model: %w", err)
	}
	var f Forest
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode model %s: %w", a.path, apperr.ErrDataQuality)
	}
	if len(f.Trees) == 0 {
		return nil, fmt.Errorf("model %s has no trees: %w", a.path, apperr.ErrDataQuality)
	}
	return &f, nil
}
