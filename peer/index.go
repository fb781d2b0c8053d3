package peer

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"
)

// indexFile is hidden so directory listings skip it.
const indexFile = ".index.json"

// fileIndex maps the registry's global file ids to the filenames this
// node stores. It is the peer half of the single-identifier-space
// contract: downloads name files by global id only.
type fileIndex struct {
	mu      sync.RWMutex
	path    string
	entries map[string]string // file id (decimal string, for JSON) -> filename
}

func openIndex(dir string) (*fileIndex, error) {
	idx := &fileIndex{
		path:    filepath.Join(dir, indexFile),
		entries: make(map[string]string),
	}

	data, err := os.ReadFile(idx.path)
	if errors.Is(err, os.ErrNotExist) {
		return idx, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &idx.entries); err != nil {
		return nil, err
	}
	return idx, nil
}

// Set records the filename for a global file id and persists the index.
// Persistence is best effort; the in-memory mapping stays authoritative.
func (idx *fileIndex) Set(fileID uint64, filename string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.entries[strconv.FormatUint(fileID, 10)] = filename

	data, err := json.MarshalIndent(idx.entries, "", "  ")
	if err == nil {
		err = os.WriteFile(idx.path, data, 0o644)
	}
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Set",
			"path":     idx.path,
			"error":    err.Error(),
		}).Warn("Failed to persist file index")
	}
}

// Lookup resolves a global file id to a stored filename.
func (idx *fileIndex) Lookup(fileID uint64) (string, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	name, ok := idx.entries[strconv.FormatUint(fileID, 10)]
	return name, ok
}

// IDFor resolves a stored filename back to its global file id.
func (idx *fileIndex) IDFor(filename string) (uint64, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	for id, name := range idx.entries {
		if name == filename {
			parsed, err := strconv.ParseUint(id, 10, 64)
			if err == nil {
				return parsed, true
			}
		}
	}
	return 0, false
}
