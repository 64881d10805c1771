package persistence

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Store is the content-addressed object store. Finalized originals live in
// the images directory named by the SHA-256 of their bytes, thumbnails under
// the same name in the thumbs directory, and in-flight uploads in the
// staging directory. Stored objects are immutable by construction: two
// uploads with identical bytes map to the same file.
type Store struct {
	imagesDir  string
	thumbsDir  string
	stagingDir string
}

func NewStore(imagesDir, thumbsDir, stagingDir string) *Store {
	return &Store{
		imagesDir:  imagesDir,
		thumbsDir:  thumbsDir,
		stagingDir: stagingDir,
	}
}

// StagedFile is an upload written to the staging area but not yet
// committed. Callers must defer Discard as soon as they hold one, so the
// staging file cannot outlive a failed or abandoned upload on any exit
// path.
type StagedFile struct {
	path      string
	hash      string
	committed bool
}

// Hash returns the lowercase hex SHA-256 digest of the staged content.
func (f *StagedFile) Hash() string { return f.hash }

// Discard removes the staging file unless a commit took ownership of it.
// Safe to call more than once.
func (f *StagedFile) Discard() {
	if f.committed {
		return
	}
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Str("path", f.path).Msg("Failed to remove staging file")
	}
}

// Stage streams r into a uniquely named staging file while feeding the same
// bytes through a SHA-256 digest, then flushes the file to disk. A write
// failure cleans up the partial file before returning.
func (s *Store) Stage(r io.Reader) (*StagedFile, error) {
	path := filepath.Join(s.stagingDir, uuid.NewString())
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create staging file: %w", err)
	}

	digest := sha256.New()
	_, err = io.Copy(io.MultiWriter(file, digest), r)
	if err == nil {
		err = file.Sync()
	}
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		if rmErr := os.Remove(path); rmErr != nil {
			log.Warn().Err(rmErr).Str("path", path).Msg("Failed to remove staging file")
		}
		return nil, fmt.Errorf("failed to write staging file: %w", err)
	}

	return &StagedFile{path: path, hash: hex.EncodeToString(digest.Sum(nil))}, nil
}

// Commit moves a staged file into the images directory under its hash and
// reports whether this call placed a new object. A destination that already
// exists, whether found up front or reported by the rename, means identical
// bytes are already stored: the staged copy stays unowned and the caller's
// Discard reclaims it. Two commits racing on the same hash are resolved by
// the rename; the loser either fails into the dedup path or overwrites
// byte-identical content.
func (s *Store) Commit(staged *StagedFile) (bool, error) {
	target := s.ImagePath(staged.hash)
	if _, err := os.Stat(target); err == nil {
		return false, nil
	}
	if err := os.Rename(staged.path, target); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to commit %s: %w", staged.hash, err)
	}
	staged.committed = true
	return true, nil
}

// ImagePath returns the target path of an original for hash.
func (s *Store) ImagePath(hash string) string { return filepath.Join(s.imagesDir, hash) }

// ThumbPath returns the target path of a thumbnail for hash.
func (s *Store) ThumbPath(hash string) string { return filepath.Join(s.thumbsDir, hash) }

// Open returns a reader over the stored original, or the thumbnail when
// thumb is set. A thumbnail that was never derived is simply absent; there
// is no fallback to the original.
func (s *Store) Open(hash string, thumb bool) (io.ReadCloser, error) {
	path := s.ImagePath(hash)
	if thumb {
		path = s.ThumbPath(hash)
	}
	return os.Open(path)
}

// Remove deletes the original and thumbnail for hash. Cleanup is best
// effort: missing files are not an error.
func (s *Store) Remove(hash string) {
	for _, path := range []string{s.ImagePath(hash), s.ThumbPath(hash)} {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Warn().Err(err).Str("path", path).Msg("Failed to remove stored object")
		}
	}
}
