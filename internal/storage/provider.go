// Package storage defines the project file-system abstraction.
package storage

import "github.com/starford/jera/internal/models"

// Provider is the interface for project file operations.
type Provider interface {
	// List returns metadata for every .wbs.md file under dir (relative to project root).
	List(dir string) ([]models.DocumentInfo, error)
	// Read returns the raw bytes of the file at path (relative to project root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to project root).
	Write(path string, content []byte) error
	// Delete removes the file at path (relative to project root).
	Delete(path string) error
	// Move renames oldPath to newPath (both relative to project root).
	Move(oldPath, newPath string) error
}
