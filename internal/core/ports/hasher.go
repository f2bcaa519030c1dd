package ports

import "go.trai.ch/anvil/internal/core/domain"

// FileHasher fingerprints files for change detection.
//
//go:generate go run go.uber.org/mock/mockgen -source=hasher.go -destination=mocks/mock_hasher.go -package=mocks
type FileHasher interface {
	// Stat returns the size and modification time of path without reading it.
	// A missing path yields a record with Missing set and no error.
	Stat(path string) (domain.FileRecord, error)

	// Fingerprint returns the stamp and content hash of path.
	// Directories are hashed over every file they contain.
	Fingerprint(path string) (domain.FileRecord, error)
}
