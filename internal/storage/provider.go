// Package storage defines the repository file-system abstraction.
package storage

import "github.com/starford/workbench/internal/models"

// Provider is the interface for repository file operations.
type Provider interface {
	// List returns metadata for every .md file under dir (relative to repository root).
	List(dir string) ([]models.FileMeta, error)
	// Read returns the raw bytes of the file at path (relative to repository root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to repository root).
	Write(path string, content []byte) error
	// Delete removes the file at path (relative to repository root).
	Delete(path string) error
	// Move renames oldPath to newPath (both relative to repository root).
	Move(oldPath, newPath string) error
	// Exists reports whether a file exists at path.
	Exists(path string) bool
}
