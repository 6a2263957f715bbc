package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/jask/finledger/internal/category"
)

const expandFile = "expanded.json"

// FileStore keeps the expand state as a JSON list of open category ids.
type FileStore struct {
	Path string
}

// DefaultPath is expanded.json under the user config dir.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "finledger", expandFile), nil
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

func (s *FileStore) Load(_ context.Context) (category.ExpandState, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return category.ExpandState{}, nil
		}
		return nil, err
	}
	var ids []int64
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.Path, err)
	}
	state := make(category.ExpandState, len(ids))
	for _, id := range ids {
		state[id] = true
	}
	return state, nil
}

// Save writes atomically via a temp file and rename.
func (s *FileStore) Save(_ context.Context, state category.ExpandState) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return err
	}
	ids := open(state)
	slices.Sort(ids)
	if ids == nil {
		ids = []int64{}
	}
	data, err := json.MarshalIndent(ids, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.Path)
}
