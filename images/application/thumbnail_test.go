package application

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 64, A: 255})
		}
	}
	return img
}

func writePNG(t *testing.T, path string, width, height int) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testImage(width, height)))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func writeJPEG(t *testing.T, path string, width, height int) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, testImage(width, height), nil))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func decodeFile(t *testing.T, path string) (image.Image, string) {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, format, err := image.Decode(f)
	require.NoError(t, err)
	return img, format
}

func TestThumbnailer_DeriveDownscales(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	writePNG(t, src, 200, 100) // 20000 px

	th := NewThumbnailer()
	require.NoError(t, th.Derive(context.Background(), src, dst, 5000))

	img, format := decodeFile(t, dst)
	assert.Equal(t, "png", format)
	// scale = sqrt(5000/20000) = 0.5
	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, 50, img.Bounds().Dy())
}

func TestThumbnailer_NeverUpscales(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	writePNG(t, src, 10, 10)

	th := NewThumbnailer()
	require.NoError(t, th.Derive(context.Background(), src, dst, 50000))

	img, _ := decodeFile(t, dst)
	assert.Equal(t, 10, img.Bounds().Dx())
	assert.Equal(t, 10, img.Bounds().Dy())
}

func TestThumbnailer_PreservesFormat(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	writeJPEG(t, src, 80, 80)

	th := NewThumbnailer()
	require.NoError(t, th.Derive(context.Background(), src, dst, 1600))

	_, format := decodeFile(t, dst)
	assert.Equal(t, "jpeg", format)
}

func TestThumbnailer_MissingSource(t *testing.T) {
	dir := t.TempDir()

	th := NewThumbnailer()
	err := th.Derive(context.Background(), filepath.Join(dir, "nope"), filepath.Join(dir, "dst"), 100)
	assert.Error(t, err)
}

func TestThumbnailer_UndecodableSource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	require.NoError(t, os.WriteFile(src, []byte("not an image"), 0o644))

	th := NewThumbnailer()
	err := th.Derive(context.Background(), src, filepath.Join(dir, "dst"), 100)
	assert.Error(t, err)
}
