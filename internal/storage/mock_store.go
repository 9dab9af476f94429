package storage

import (
	"os"
	"path"
	"sort"
	"strings"
	"sync"
)

// MockStore provides an in-memory BlobStore for testing.
type MockStore struct {
	mu    sync.RWMutex
	files map[string][]byte
	dirs  map[string]bool

	// FailWrites makes every Write return this error when set.
	FailWrites error
}

// NewMockStore creates a mock blob store.
func NewMockStore() *MockStore {
	return &MockStore{
		files: make(map[string][]byte),
		dirs:  make(map[string]bool),
	}
}

// Write saves data to a file.
func (m *MockStore) Write(p string, data []byte, mode os.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWrites != nil {
		return m.FailWrites
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	m.files[path.Clean(p)] = buf
	return nil
}

// Read retrieves file contents.
func (m *MockStore) Read(p string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.files[path.Clean(p)]
	if !ok {
		return nil, os.ErrNotExist
	}

	result := make([]byte, len(data))
	copy(result, data)
	return result, nil
}

// Delete removes a file.
func (m *MockStore) Delete(p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.files, path.Clean(p))
	return nil
}

// Exists checks if a file exists.
func (m *MockStore) Exists(p string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.files[path.Clean(p)]
	return ok, nil
}

// List returns the file names directly under a directory.
func (m *MockStore) List(dir string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	prefix := path.Clean(dir) + "/"
	var names []string
	for p := range m.files {
		if strings.HasPrefix(p, prefix) && !strings.Contains(p[len(prefix):], "/") {
			names = append(names, p[len(prefix):])
		}
	}
	sort.Strings(names)
	return names, nil
}

// EnsureDir creates a directory if it doesn't exist.
func (m *MockStore) EnsureDir(p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.dirs[path.Clean(p)] = true
	return nil
}
