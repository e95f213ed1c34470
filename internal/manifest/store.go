package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// manifestFileMode is used when replacing the manifest file.
const manifestFileMode os.FileMode = 0o644

// Store loads and persists the manifest at a fixed path.
type Store struct {
	// path is the filesystem location of the manifest file.
	path string
}

// NewStore creates a store bound to the provided manifest path.
func NewStore(path string) *Store {
	return &Store{
		path: filepath.Clean(path),
	}
}

// Path returns the manifest location.
func (s *Store) Path() string {
	return s.path
}

// Load reads and decodes the manifest. It fails when the file is missing,
// unreadable, not valid JSON or lacks a version field.
func (s *Store) Load() (*Record, error) {
	contents, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var record Record
	if err := json.Unmarshal(contents, &record); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", s.path, err)
	}

	return &record, nil
}

// Persist writes the record back with deterministic formatting: sorted keys,
// two-space indentation and a trailing newline, so re-running the pipeline
// with unchanged inputs produces byte-identical output. The write is a
// write-then-rename so a crash never leaves a half-written manifest.
func (s *Store) Persist(record *Record) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	data = append(data, '\n')

	temp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temporary manifest: %w", err)
	}

	tempName := temp.Name()

	if _, err = temp.Write(data); err != nil {
		_ = temp.Close()
		_ = os.Remove(tempName)

		return fmt.Errorf("write temporary manifest: %w", err)
	}

	if err = temp.Close(); err != nil {
		_ = os.Remove(tempName)

		return fmt.Errorf("close temporary manifest: %w", err)
	}

	if err = os.Chmod(tempName, manifestFileMode); err != nil {
		_ = os.Remove(tempName)

		return fmt.Errorf("chmod temporary manifest: %w", err)
	}

	if err = os.Rename(tempName, s.path); err != nil {
		_ = os.Remove(tempName)

		return fmt.Errorf("replace manifest: %w", err)
	}

	return nil
}
