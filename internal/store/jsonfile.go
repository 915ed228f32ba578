// Package store keeps small JSON documents on disk. Every mutation goes
// through load, mutate, write-to-temp, rename while holding an advisory
// lock, so concurrent invocations of the CLI serialize instead of
// clobbering each other.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// JSONFile is a single JSON document of type T stored at a fixed path.
type JSONFile[T any] struct {
	path string
	init func() T
	mu   sync.Mutex
}

// NewJSONFile returns a repository for path. init builds the document used
// when the file does not exist yet; nil means the zero value of T.
func NewJSONFile[T any](path string, init func() T) *JSONFile[T] {
	if init == nil {
		init = func() T {
			var zero T
			return zero
		}
	}
	return &JSONFile[T]{path: path, init: init}
}

func (f *JSONFile[T]) Path() string {
	return f.path
}

// Load reads the current document without taking the write lock.
func (f *JSONFile[T]) Load() (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.read()
}

// Update loads the document, applies fn and writes the result back
// atomically. If fn returns an error nothing is written.
func (f *JSONFile[T]) Update(fn func(doc *T) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	lock := flock.New(f.path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock %s: %w", filepath.Base(f.path), err)
	}
	defer lock.Unlock()

	doc, err := f.read()
	if err != nil {
		return err
	}
	if err := fn(&doc); err != nil {
		return err
	}
	return WriteJSONAtomic(f.path, doc)
}

func (f *JSONFile[T]) read() (T, error) {
	doc := f.init()
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return doc, nil
		}
		return doc, fmt.Errorf("read %s: %w", filepath.Base(f.path), err)
	}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("parse %s: %w", filepath.Base(f.path), err)
	}
	return doc, nil
}

// WriteJSONAtomic marshals v with indentation into path via a temp file
// in the same directory followed by a rename.
func WriteJSONAtomic(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
