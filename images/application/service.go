package application

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lxl66566/img-server/images/domain"
	"github.com/lxl66566/img-server/images/persistence"
)

// ImageService orchestrates the upload pipeline and the retrieval, listing
// and deletion paths on top of the content store and the metadata index.
type ImageService struct {
	index  *persistence.Index
	store  *persistence.Store
	thumbs *Thumbnailer
}

func NewImageService(index *persistence.Index, store *persistence.Store) *ImageService {
	return &ImageService{
		index:  index,
		store:  store,
		thumbs: NewThumbnailer(),
	}
}

// Upload consumes a multipart stream carrying "name", optional "desc" and
// "file" parts. The file part is hashed while it streams into the staging
// area, then committed under its hash unless an identical object is already
// stored; a fresh commit triggers thumbnail derivation, whose failure never
// fails the upload. The record only counts as created once the index
// snapshot has been persisted.
func (s *ImageService) Upload(ctx context.Context, form *multipart.Reader) (*domain.ImageRecord, error) {
	var (
		name    string
		gotName bool
		desc    string
		staged  *persistence.StagedFile
	)

	for {
		part, err := form.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: malformed multipart body", domain.ErrBadRequest)
		}

		switch part.FormName() {
		case "name":
			value, err := readText(part)
			if err != nil {
				return nil, err
			}
			name, gotName = value, true
		case "desc":
			if desc, err = readText(part); err != nil {
				return nil, err
			}
		case "file":
			if staged, err = s.store.Stage(part); err != nil {
				return nil, fmt.Errorf("failed to stage upload: %w", err)
			}
			// Deletion guard: fires on every exit path until the
			// commit takes ownership of the file.
			defer staged.Discard()
		}
	}

	if !gotName {
		return nil, fmt.Errorf("%w: missing 'name' field", domain.ErrBadRequest)
	}
	if staged == nil {
		return nil, fmt.Errorf("%w: missing 'file' part", domain.ErrBadRequest)
	}

	fresh, err := s.store.Commit(staged)
	if err != nil {
		return nil, err
	}
	if fresh {
		if budget := s.index.ThumbnailPixels(); budget > 0 {
			src := s.store.ImagePath(staged.Hash())
			dst := s.store.ThumbPath(staged.Hash())
			if err := s.thumbs.Derive(ctx, src, dst, budget); err != nil {
				log.Error().Err(err).Str("hash", staged.Hash()).Msg("Thumbnail derivation failed")
			}
		}
	}

	rec := domain.ImageRecord{
		Name:        name,
		Description: desc,
		Hash:        staged.Hash(),
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.index.Append(rec); err != nil {
		return nil, err
	}

	log.Info().
		Str("action", "upload").
		Str("name", rec.Name).
		Str("hash", rec.Hash).
		Bool("dedup", !fresh).
		Msg("Image uploaded")
	return &rec, nil
}

// readText buffers a small text field from a multipart part.
func readText(part *multipart.Part) (string, error) {
	data, err := io.ReadAll(part)
	if err != nil {
		return "", fmt.Errorf("%w: unreadable field %q", domain.ErrBadRequest, part.FormName())
	}
	return string(data), nil
}

// Download resolves id (name first, then full-width hex digest) and opens
// the stored original, or the thumbnail when thumb is set. A thumbnail that
// was never derived is NotFound; there is no fallback to the original.
func (s *ImageService) Download(id string, thumb bool) (io.ReadCloser, string, error) {
	hash, ok := s.index.Resolve(id)
	if !ok {
		return nil, "", domain.ErrNotFound
	}
	file, err := s.store.Open(hash, thumb)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, "", domain.ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to open stored file: %w", err)
	}

	log.Info().
		Str("action", "download").
		Str("id", id).
		Bool("thumb", thumb).
		Msg("Image served")
	return file, hash, nil
}

// List returns one page of records, newest first.
func (s *ImageService) List(page, pageSize int) persistence.ListResult {
	res := s.index.Page(page, pageSize)
	log.Info().
		Str("action", "list").
		Int("page", res.Page).
		Msg("Images listed")
	return res
}

// Delete removes the record named name. The original and thumbnail are
// reclaimed only when no remaining record references the same hash.
func (s *ImageService) Delete(name string) error {
	rec, referenced, err := s.index.Remove(name)
	if err != nil {
		return err
	}
	if !referenced {
		s.store.Remove(rec.Hash)
	}

	log.Info().
		Str("action", "delete").
		Str("name", name).
		Bool("reclaimed", !referenced).
		Msg("Image deleted")
	return nil
}

const tokenChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// GenerateToken mints a 32-character admin token, adds it to the token set
// and persists the snapshot.
func (s *ImageService) GenerateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	for n, b := range buf {
		buf[n] = tokenChars[int(b)%len(tokenChars)]
	}
	token := string(buf)

	if err := s.index.AddToken(token); err != nil {
		return "", err
	}
	return token, nil
}
