package dedup

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// FileStore keeps the alerted-ID set as a sorted JSON array in a flat
// file, matching the alerted.json format of earlier deployments.
type FileStore struct {
	path string
	ids  map[string]struct{}
}

// NewFile creates a FileStore at the given path. Load must be called
// before use.
func NewFile(path string) *FileStore {
	return &FileStore{
		path: path,
		ids:  make(map[string]struct{}),
	}
}

// Load reads the JSON ID array. A missing file means a fresh deployment;
// a corrupt file is logged and treated as empty rather than failing the
// run.
func (s *FileStore) Load(ctx context.Context) error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		zap.L().Warn("dedup: cannot read state file, starting with empty set",
			zap.String("path", s.path),
			zap.Error(err),
		)
		return nil
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		zap.L().Warn("dedup: corrupt state file, starting with empty set",
			zap.String("path", s.path),
			zap.Error(err),
		)
		return nil
	}

	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return nil
}

func (s *FileStore) Contains(id string) bool {
	_, ok := s.ids[id]
	return ok
}

func (s *FileStore) Add(id string) {
	s.ids[id] = struct{}{}
}

func (s *FileStore) Len() int {
	return len(s.ids)
}

// Persist writes the sorted ID array atomically: write to a temp file in
// the same directory, then rename over the target. A crash mid-write
// never leaves a truncated state file behind.
func (s *FileStore) Persist(ctx context.Context) error {
	ids := make([]string, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	data, err := json.Marshal(ids)
	if err != nil {
		return eris.Wrap(err, "dedup: marshal state")
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".alerted-*.json")
	if err != nil {
		return eris.Wrapf(err, "dedup: create temp file in %s", dir)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return eris.Wrap(err, "dedup: write temp state")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return eris.Wrap(err, "dedup: close temp state")
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return eris.Wrapf(err, "dedup: rename state into %s", s.path)
	}
	return nil
}

func (s *FileStore) Close() error {
	return nil
}

// Reset removes the state file and clears the in-memory set.
func (s *FileStore) Reset(ctx context.Context) error {
	s.ids = make(map[string]struct{})
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return eris.Wrapf(err, "dedup: remove state file %s", s.path)
	}
	return nil
}
