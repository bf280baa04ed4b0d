// Package localstore persists state under string keys on the local machine.
package localstore

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/gosimple/slug"
	"github.com/pkg/errors"
)

var ErrNotFound = errors.New("key not found")

// Storage is a flat key/value namespace: one JSON document per key.
type Storage interface {
	// Get returns ErrNotFound for unknown keys.
	Get(key string) ([]byte, error)
	Set(key string, data []byte) error
	Remove(key string) error
}

var (
	_ Storage = (*FileStorage)(nil)
	_ Storage = (*MemoryStorage)(nil)
)

// FileStorage stores each key in its own file under a directory.
type FileStorage struct {
	dir string
	mu  sync.Mutex
}

func NewFileStorage(dir string) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.Wrap(err, "creating storage directory")
	}
	return &FileStorage{dir: dir}, nil
}

// Path returns the file holding key.
func (fs *FileStorage) Path(key string) string {
	return filepath.Join(fs.dir, slug.Make(key)+".json")
}

func (fs *FileStorage) Get(key string) ([]byte, error) {
	data, err := os.ReadFile(fs.Path(key))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	return data, errors.Wrapf(err, "reading %s", key)
}

// Set replaces the file atomically (write to a temp file, then rename).
func (fs *FileStorage) Set(key string, data []byte) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	path := fs.Path(key)
	tmp, err := os.CreateTemp(fs.dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrapf(err, "creating temp file for %s", key)
	}
	defer func() { _ = os.Remove(tmp.Name()) }() // no-op once renamed

	if _, err = tmp.Write(data); err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return errors.Wrapf(err, "writing %s", key)
	}
	return errors.Wrapf(os.Rename(tmp.Name(), path), "saving %s", key)
}

func (fs *FileStorage) Remove(key string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.Remove(fs.Path(key)); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "removing %s", key)
	}
	return nil
}

// MemoryStorage is a Storage for tests and ephemeral runs.
type MemoryStorage struct {
	data map[string][]byte
	mu   sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string][]byte)}
}

func (ms *MemoryStorage) Get(key string) ([]byte, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	data, ok := ms.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (ms *MemoryStorage) Set(key string, data []byte) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.data[key] = append([]byte(nil), data...)
	return nil
}

func (ms *MemoryStorage) Remove(key string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	delete(ms.data, key)
	return nil
}
