package fs

import (
	"encoding/binary"
	"errors"
	"io"
	iofs "io/fs"
	"os"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/anvil/internal/core/domain"
	"go.trai.ch/anvil/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.FileHasher = (*Hasher)(nil)

// Hasher fingerprints files with xxhash. Directories are treated as the
// aggregate of the files they contain.
type Hasher struct {
	walker *Walker
}

// NewHasher creates a new Hasher.
func NewHasher(walker *Walker) *Hasher {
	return &Hasher{walker: walker}
}

// Stat returns the stamp of path. For a directory the size is the total of
// its files and the modification time the newest among them.
func (h *Hasher) Stat(path string) (domain.FileRecord, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return domain.FileRecord{Missing: true}, nil
		}
		return domain.FileRecord{}, zerr.With(zerr.Wrap(err, "failed to stat path"), "path", path)
	}
	if !info.IsDir() {
		return domain.FileRecord{Size: info.Size(), ModTime: info.ModTime().UnixNano()}, nil
	}

	rec := domain.FileRecord{ModTime: info.ModTime().UnixNano()}
	for file := range h.walker.WalkFiles(path, nil) {
		fi, err := os.Stat(file)
		if err != nil {
			return domain.FileRecord{}, zerr.With(zerr.Wrap(err, "failed to stat path"), "path", file)
		}
		rec.Size += fi.Size() + 1
		rec.ModTime = max(rec.ModTime, fi.ModTime().UnixNano())
	}
	return rec, nil
}

// Fingerprint returns the stamp and content hash of path.
func (h *Hasher) Fingerprint(path string) (domain.FileRecord, error) {
	rec, err := h.Stat(path)
	if err != nil || rec.Missing {
		return rec, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return domain.FileRecord{}, zerr.With(zerr.Wrap(err, "failed to stat path"), "path", path)
	}
	if !info.IsDir() {
		rec.Hash, err = h.ComputeFileHash(path)
		return rec, err
	}

	digest := xxhash.New()
	var buf [8]byte
	for file := range h.walker.WalkFiles(path, nil) {
		sum, err := h.ComputeFileHash(file)
		if err != nil {
			return domain.FileRecord{}, err
		}
		_, _ = digest.WriteString(file)
		_, _ = digest.Write([]byte{0})
		binary.LittleEndian.PutUint64(buf[:], sum)
		_, _ = digest.Write(buf[:])
	}
	rec.Hash = digest.Sum64()
	return rec, nil
}

// ComputeFileHash computes the XXHash of a file's content.
func (h *Hasher) ComputeFileHash(path string) (uint64, error) {
	f, err := os.Open(path) //nolint:gosec // Path is controlled by caller
	if err != nil {
		return 0, zerr.With(zerr.Wrap(err, "failed to open file"), "path", path)
	}
	defer f.Close() //nolint:errcheck // Best effort close in defer

	hasher := xxhash.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return 0, zerr.With(zerr.Wrap(err, "failed to hash file content"), "path", path)
	}

	return hasher.Sum64(), nil
}
