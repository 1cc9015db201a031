// Defaulterr - Default Audio and Subtitle Track Synchronizer for Plex
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/defaulterr

// Package watermark persists the last processed updatedAt per library.
//
// The file is a flat JSON object of library name to Unix seconds:
//
//	{"Anime": 1700000250, "Movies": 1699990000}
//
// Save merges into the stored map and never lowers a stored value, so
// libraries missing from a run keep their watermark and concurrent runs
// cannot move a watermark backwards.
package watermark

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofrs/flock"
)

// lockRetryDelay is the polling interval while another process holds the lock.
const lockRetryDelay = 50 * time.Millisecond

// Store reads and writes the watermark file.
type Store struct {
	path string
	lock *flock.Flock
	mu   sync.Mutex
}

// NewStore returns a store for path. The lock file lives next to it.
func NewStore(path string) *Store {
	return &Store{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// Path returns the watermark file path.
func (s *Store) Path() string {
	return s.path
}

// Load returns the stored watermarks. A missing file is an empty map.
func (s *Store) Load() (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

// Save merges marks into the stored map, keeping the larger value per
// library, and writes it back atomically. It returns the merged map.
func (s *Store) Save(ctx context.Context, marks map[string]int64) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return nil, fmt.Errorf("create watermark directory: %w", err)
	}

	locked, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("lock watermark file: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("lock watermark file: not acquired")
	}
	defer func() { _ = s.lock.Unlock() }()

	current, err := s.read()
	if err != nil {
		return nil, err
	}

	merged := Merge(current, marks)

	data, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode watermarks: %w", err)
	}
	if err := writeFileAtomic(s.path, data, 0o640); err != nil {
		return nil, err
	}
	return merged, nil
}

// Merge returns a new map holding every key of both maps with the larger value.
func Merge(current, marks map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(current)+len(marks))
	for k, v := range current {
		out[k] = v
	}
	for k, v := range marks {
		if v > out[k] {
			out[k] = v
		}
	}
	return out
}

func (s *Store) read() (map[string]int64, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]int64{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read watermarks: %w", err)
	}
	if len(data) == 0 {
		return map[string]int64{}, nil
	}

	marks := map[string]int64{}
	if err := json.Unmarshal(data, &marks); err != nil {
		return nil, fmt.Errorf("decode watermarks %s: %w", s.path, err)
	}
	return marks, nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".watermarks-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
