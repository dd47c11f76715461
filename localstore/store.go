// Package localstore keeps small pieces of application state in a single JSON
// document on disk, addressed by top-level key.
package localstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// FileName is the default state file name inside the config directory.
const FileName = "state.json"

// CorruptSuffix is appended to a state file that could not be parsed when it
// is replaced by a fresh one.
const CorruptSuffix = ".corrupt"

// PersistenceError is returned when the state file cannot be read or written.
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Store is a key/value view over a JSON object file.
type Store struct {
	mu   sync.Mutex
	path string
}

// DefaultPath returns the state file location under the user config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve config directory: %w", err)
	}
	return filepath.Join(dir, "audioscribe", FileName), nil
}

// Open returns a Store backed by the file at path. The file itself is created
// lazily on the first write.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("state file path is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve state file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o750); err != nil {
		return nil, &PersistenceError{Op: "mkdir", Path: filepath.Dir(abs), Err: err}
	}
	return &Store{path: abs}, nil
}

// Path returns the absolute path of the backing file.
func (s *Store) Path() string { return s.path }

// Get returns the raw JSON value stored under key.
func (s *Store) Get(key string) (gjson.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return gjson.Result{}, err
	}
	return gjson.GetBytes(doc, escapeKey(key)), nil
}

// Load returns the raw JSON for key and whether it was present.
func (s *Store) Load(key string) ([]byte, bool, error) {
	res, err := s.Get(key)
	if err != nil {
		return nil, false, err
	}
	if !res.Exists() {
		return nil, false, nil
	}
	return []byte(res.Raw), true, nil
}

// Save stores raw JSON under key. The value must be valid JSON.
func (s *Store) Save(key string, raw []byte) error {
	return s.Set(key, raw)
}

// Set stores raw JSON under key.
func (s *Store) Set(key string, raw []byte) error {
	if !gjson.ValidBytes(raw) {
		return fmt.Errorf("value for %q is not valid JSON", key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readForWrite()
	if err != nil {
		return err
	}
	doc, err = sjson.SetRawBytes(doc, escapeKey(key), raw)
	if err != nil {
		return fmt.Errorf("failed to set %q: %w", key, err)
	}
	return s.write(doc)
}

// SetString stores a JSON string under key.
func (s *Store) SetString(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readForWrite()
	if err != nil {
		return err
	}
	doc, err = sjson.SetBytes(doc, escapeKey(key), value)
	if err != nil {
		return fmt.Errorf("failed to set %q: %w", key, err)
	}
	return s.write(doc)
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readForWrite()
	if err != nil {
		return err
	}
	if !gjson.GetBytes(doc, escapeKey(key)).Exists() {
		return nil
	}
	doc, err = sjson.DeleteBytes(doc, escapeKey(key))
	if err != nil {
		return fmt.Errorf("failed to delete %q: %w", key, err)
	}
	return s.write(doc)
}

// Keys returns the stored keys in sorted order.
func (s *Store) Keys() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	var keys []string
	gjson.ParseBytes(doc).ForEach(func(k, _ gjson.Result) bool {
		keys = append(keys, k.String())
		return true
	})
	sort.Strings(keys)
	return keys, nil
}

// read returns the current document. A missing or empty file reads as {}.
// A file that is not a JSON object is reported so callers can fail soft.
func (s *Store) read() ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return []byte("{}"), nil
	}
	if err != nil {
		return nil, &PersistenceError{Op: "read", Path: s.path, Err: err}
	}
	if len(data) == 0 {
		return []byte("{}"), nil
	}
	if !gjson.ValidBytes(data) || !gjson.ParseBytes(data).IsObject() {
		return nil, &PersistenceError{Op: "parse", Path: s.path, Err: fmt.Errorf("state file is not a JSON object")}
	}
	return data, nil
}

// readForWrite is read for mutations. A malformed file is moved aside to
// CorruptSuffix and the mutation starts from {}, so one bad write does not
// block every later one.
func (s *Store) readForWrite() ([]byte, error) {
	doc, err := s.read()
	var perr *PersistenceError
	if err == nil || !errors.As(err, &perr) || perr.Op != "parse" {
		return doc, err
	}
	if err := os.Rename(s.path, s.path+CorruptSuffix); err != nil {
		return nil, &PersistenceError{Op: "rename", Path: s.path, Err: err}
	}
	return []byte("{}"), nil
}

// write replaces the file atomically.
func (s *Store) write(doc []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".state-*.json")
	if err != nil {
		return &PersistenceError{Op: "write", Path: s.path, Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(doc); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &PersistenceError{Op: "write", Path: s.path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &PersistenceError{Op: "write", Path: s.path, Err: err}
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return &PersistenceError{Op: "rename", Path: s.path, Err: err}
	}
	return nil
}

// escapeKey makes a literal key safe for gjson/sjson path syntax.
func escapeKey(key string) string {
	var out []byte
	for i := 0; i < len(key); i++ {
		switch key[i] {
		case '.', '*', '?', '|', '#', '@', '\\', '!', '=', '<', '>', '%', '(', ')', ':', ',', '[', ']', '{', '}', '"':
			out = append(out, '\\')
		}
		out = append(out, key[i])
	}
	return string(out)
}
