// Package imaging validates uploaded images and converts them to JPEG.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"mime"
	"strings"

	disimaging "github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/erazemk/omara/internal/model"
)

// MaxUploadSize is the largest accepted upload in bytes (5 MiB).
const MaxUploadSize = 5 << 20

// MaxDimension is the maximum width or height of converted images.
const MaxDimension = 1024

// JPEGQuality is the compression quality for JPEG output.
const JPEGQuality = 90

// AllowedMIME maps accepted MIME types to their canonical form.
var AllowedMIME = map[string]string{
	"image/jpeg": "image/jpeg",
	"image/jpg":  "image/jpeg",
	"image/png":  "image/png",
	"image/webp": "image/webp",
	"image/gif":  "image/gif",
}

// Extensions maps canonical MIME types to file extensions.
var Extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// Validate checks a declared MIME type and size. The type is checked first,
// so a disallowed type is rejected whatever its size. It returns the
// canonical MIME type.
func Validate(declared string, size int64) (string, error) {
	canonical, ok := AllowedMIME[baseType(declared)]
	if !ok {
		return "", fmt.Errorf("%w: %q (accepted: JPEG, PNG, WebP, GIF)", model.ErrUnsupportedMediaType, declared)
	}
	if size > MaxUploadSize {
		return "", fmt.Errorf("%w: %d bytes (limit %d)", model.ErrPayloadTooLarge, size, MaxUploadSize)
	}
	return canonical, nil
}

// Check validates an upload by its declared type, its size and the type
// sniffed from its bytes. It returns the canonical MIME type of the content.
func Check(data []byte, declared string) (string, error) {
	if _, err := Validate(declared, int64(len(data))); err != nil {
		return "", err
	}

	// Sniff actual MIME type from bytes (not trusting client headers).
	detected := mimetype.Detect(data).String()
	canonical, ok := AllowedMIME[baseType(detected)]
	if !ok {
		return "", fmt.Errorf("%w: content is %s", model.ErrUnsupportedMediaType, detected)
	}
	return canonical, nil
}

// ToJPEG decodes a JPEG, PNG, GIF or WebP image, downscales it to fit
// MaxDimension and re-encodes it as JPEG at JPEGQuality.
func ToJPEG(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	img = downscale(img, MaxDimension)

	var buf bytes.Buffer
	if err := disimaging.Encode(&buf, img, disimaging.JPEG, disimaging.JPEGQuality(JPEGQuality)); err != nil {
		return nil, fmt.Errorf("encoding JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

// JPEGOrOriginal converts data with ToJPEG. If conversion fails it logs a
// warning and returns the original bytes unchanged, so callers never fail
// on a conversion error alone.
func JPEGOrOriginal(data []byte, logger *slog.Logger) []byte {
	out, err := ToJPEG(data)
	if err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("image conversion failed, passing original bytes through", "error", err, "bytes", len(data))
		return data
	}
	return out
}

// downscale resizes the image so neither dimension exceeds maxDim.
// Uses high-quality Catmull-Rom interpolation.
// Returns the original image if already within bounds.
func downscale(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()

	if w <= maxDim && h <= maxDim {
		return img
	}

	// Calculate new dimensions preserving aspect ratio.
	newW, newH := w, h
	if w > h {
		newW = maxDim
		newH = int(float64(h) * float64(maxDim) / float64(w))
	} else {
		newH = maxDim
		newW = int(float64(w) * float64(maxDim) / float64(h))
	}

	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

// baseType lowercases a MIME type and strips its parameters.
func baseType(t string) string {
	if mt, _, err := mime.ParseMediaType(t); err == nil {
		return mt
	}
	return strings.ToLower(strings.TrimSpace(t))
}
