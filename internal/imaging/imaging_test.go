package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/omara/internal/model"
)

func createTestJPEG(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{255, 0, 0, 255})
		}
	}
	var buf bytes.Buffer
	jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	return buf.Bytes()
}

func createTestPNG(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{0, 0, 255, 255})
		}
	}
	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}

func createTestGIF(w, h int) []byte {
	img := image.NewPaletted(image.Rect(0, 0, w, h), color.Palette{color.Black, color.White})
	var buf bytes.Buffer
	gif.Encode(&buf, img, nil)
	return buf.Bytes()
}

func TestValidateSizeBoundary(t *testing.T) {
	mt, err := Validate("image/png", MaxUploadSize)
	require.NoError(t, err, "exactly 5 MiB is accepted")
	assert.Equal(t, "image/png", mt)

	_, err = Validate("image/png", MaxUploadSize+1)
	assert.True(t, errors.Is(err, model.ErrPayloadTooLarge))
}

func TestValidateRejectsBMPRegardlessOfSize(t *testing.T) {
	for _, size := range []int64{1, MaxUploadSize, MaxUploadSize + 1} {
		_, err := Validate("image/bmp", size)
		assert.True(t, errors.Is(err, model.ErrUnsupportedMediaType), "size %d", size)
	}
}

func TestValidateCanonicalizesTypes(t *testing.T) {
	for declared, want := range map[string]string{
		"image/jpg":                "image/jpeg",
		"IMAGE/JPEG":               "image/jpeg",
		"image/webp":               "image/webp",
		"image/gif":                "image/gif",
		"image/png; charset=utf-8": "image/png",
	} {
		got, err := Validate(declared, 10)
		require.NoError(t, err, declared)
		assert.Equal(t, want, got, declared)
	}
}

func TestCheckSniffsContent(t *testing.T) {
	mt, err := Check(createTestPNG(10, 10), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", mt)

	// Declared type is allowed but the bytes are not an image.
	_, err = Check([]byte("not an image"), "image/png")
	assert.True(t, errors.Is(err, model.ErrUnsupportedMediaType))

	// BMP magic bytes.
	_, err = Check([]byte("BM\x00\x00\x00\x00\x00\x00\x00\x00"), "image/jpeg")
	assert.True(t, errors.Is(err, model.ErrUnsupportedMediaType))
}

func TestToJPEGFromPNG(t *testing.T) {
	out, err := ToJPEG(createTestPNG(100, 100))
	require.NoError(t, err)

	_, format, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
}

func TestToJPEGFromGIF(t *testing.T) {
	out, err := ToJPEG(createTestGIF(20, 20))
	require.NoError(t, err)

	_, format, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
}

func TestToJPEGDownscale(t *testing.T) {
	out, err := ToJPEG(createTestJPEG(2048, 1024))
	require.NoError(t, err)

	cfg, _, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, MaxDimension, cfg.Width)
	assert.Equal(t, MaxDimension/2, cfg.Height)
}

func TestToJPEGSmallImageNotUpscaled(t *testing.T) {
	out, err := ToJPEG(createTestJPEG(50, 50))
	require.NoError(t, err)

	cfg, _, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Width)
	assert.Equal(t, 50, cfg.Height)
}

func TestJPEGOrOriginalFallsBack(t *testing.T) {
	garbage := []byte("\x89PNG\r\n\x1a\ncorrupt")
	assert.Equal(t, garbage, JPEGOrOriginal(garbage, nil))

	converted := JPEGOrOriginal(createTestPNG(8, 8), nil)
	_, format, err := image.DecodeConfig(bytes.NewReader(converted))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
}
