package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileStore reads orders from a JSON object on disk.
// The file is re-read on every Load so edits made outside the process are
// picked up on the next lookup.
type FileStore struct {
	path     string
	autoSeed bool

	// seeded is set once the file is known to exist; a failed attempt
	// leaves it unset so the next call tries again.
	mu     sync.Mutex
	seeded bool
}

// FileOption configures a FileStore.
type FileOption func(*FileStore)

// WithAutoSeed controls whether the first Load creates the default seed
// file when it is missing. Enabled by default.
func WithAutoSeed(enabled bool) FileOption {
	return func(s *FileStore) {
		s.autoSeed = enabled
	}
}

// NewFileStore creates a store backed by the JSON file at path.
// Nothing is read or written until the first Load.
func NewFileStore(path string, opts ...FileOption) *FileStore {
	s := &FileStore{
		path:     path,
		autoSeed: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// EnsureSeed writes DefaultSeed to the backing file if it does not exist.
// It reports whether the file was created. After the first success it is a
// no-op, so a file deleted later is never re-created.
func (s *FileStore) EnsureSeed() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seeded {
		return false, nil
	}

	if _, err := os.Stat(s.path); err == nil {
		s.seeded = true
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("%w: stat %s: %v", ErrStoreUnavailable, s.path, err)
	}

	if err := writeJSON(s.path, DefaultSeed()); err != nil {
		return false, fmt.Errorf("%w: seed %s: %v", ErrStoreUnavailable, s.path, err)
	}
	s.seeded = true
	return true, nil
}

// Load reads the full mapping from disk.
//
// With auto-seed enabled, the default seed is materialized if the file is
// missing and has never been seen. A file that disappears after that is
// reported as ErrStoreUnavailable rather than silently re-created.
func (s *FileStore) Load(ctx context.Context) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if s.autoSeed {
		if _, err := s.EnsureSeed(); err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrStoreUnavailable, s.path, err)
	}

	var out map[string]string
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrStoreUnavailable, s.path, err)
	}
	if out == nil {
		// "null" decodes to a nil map; treat it as empty.
		out = map[string]string{}
	}
	return out, nil
}

// Lookup returns the stored status for id.
func (s *FileStore) Lookup(ctx context.Context, id string) (string, bool, error) {
	all, err := s.Load(ctx)
	if err != nil {
		return "", false, err
	}
	status, ok := all[id]
	return status, ok, nil
}

// writeJSON writes v to path via a temp file and rename.
func writeJSON(path string, v any) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

var _ Store = (*FileStore)(nil)
