package application

import (
	"context"
	"fmt"
	"image"
	"math"
	"os"
	"runtime"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/semaphore"
)

// Thumbnailer derives downscaled copies of committed originals. Decode and
// resize are CPU-bound, so concurrent derivations are bounded by a weighted
// semaphore instead of running unchecked on request goroutines. No index
// lock is ever held while a derivation runs.
type Thumbnailer struct {
	sem *semaphore.Weighted
}

func NewThumbnailer() *Thumbnailer {
	return &Thumbnailer{sem: semaphore.NewWeighted(int64(runtime.GOMAXPROCS(0)))}
}

// Derive writes a thumbnail of the original at src to dst, targeting
// pixelBudget as the output area. The aspect ratio is preserved; an image
// already within budget is re-encoded unscaled, never upscaled, so the
// thumbnail path is populated either way. The output keeps the source
// encoding, falling back to PNG when the format is unrecognized.
func (t *Thumbnailer) Derive(ctx context.Context, src, dst string, pixelBudget int) error {
	if err := t.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer t.sem.Release(1)

	file, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open original: %w", err)
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil {
		return fmt.Errorf("failed to decode original: %w", err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	scale := math.Sqrt(float64(pixelBudget) / float64(width*height))
	if scale < 1.0 {
		w := max(int(float64(width)*scale), 1)
		h := max(int(float64(height)*scale), 1)
		img = imaging.Resize(img, w, h, imaging.Lanczos)
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create thumbnail: %w", err)
	}
	if err := imaging.Encode(out, img, encodingFor(format)); err != nil {
		out.Close()
		return fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to flush thumbnail: %w", err)
	}
	return nil
}

// encodingFor maps an image.Decode format tag to an imaging encoder.
func encodingFor(format string) imaging.Format {
	switch format {
	case "jpeg":
		return imaging.JPEG
	case "gif":
		return imaging.GIF
	default:
		return imaging.PNG
	}
}
