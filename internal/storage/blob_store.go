package storage

import "os"

// BlobStore is the path-addressable byte store the engine persists
// records through. Paths are relative to the store root.
type BlobStore interface {
	// Write saves data to a file atomically, replacing any previous
	// contents.
	Write(path string, data []byte, mode os.FileMode) error

	// Read retrieves file contents.
	Read(path string) ([]byte, error)

	// Delete removes a file. Deleting a missing file is not an error.
	Delete(path string) error

	// Exists checks if a file exists.
	Exists(path string) (bool, error)

	// List returns the file names directly under a directory.
	List(dir string) ([]string, error)

	// EnsureDir creates a directory if it doesn't exist.
	EnsureDir(path string) error
}
