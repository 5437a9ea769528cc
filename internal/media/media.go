// Package media turns uploaded images into stored, retrievable references.
package media

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/erazemk/omara/internal/imaging"
)

// ErrUnknownReference is returned for references no store can read.
var ErrUnknownReference = errors.New("unknown image reference")

// Upload is a raw image as received from a client.
type Upload struct {
	Data []byte
	// MIME is the declared content type.
	MIME string
	// Size is the declared size. Zero means len(Data).
	Size int64
}

func (u Upload) size() int64 {
	if u.Size > int64(len(u.Data)) {
		return u.Size
	}
	return int64(len(u.Data))
}

// Store persists image bytes under a key and returns a reference to them.
type Store interface {
	Put(ctx context.Context, key string, data []byte, mimeType string) (string, error)
	Get(ctx context.Context, ref string) ([]byte, string, error)
	Delete(ctx context.Context, ref string) error
}

// Resolver validates uploads and writes them to a Store.
type Resolver struct {
	store Store
	log   *slog.Logger

	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// NewResolver returns a Resolver writing to store.
func NewResolver(store Store, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: store, log: logger, now: time.Now}
}

// Resolve validates up and stores it for the entity ownerID. Validation
// failures wrap model.ErrUnsupportedMediaType or model.ErrPayloadTooLarge
// and happen before anything is written.
func (r *Resolver) Resolve(ctx context.Context, ownerID string, up Upload) (string, error) {
	if _, err := imaging.Validate(up.MIME, up.size()); err != nil {
		return "", err
	}
	mimeType, err := imaging.Check(up.Data, up.MIME)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("%s-%d%s", ownerID, r.stamp(), imaging.Extensions[mimeType])
	ref, err := r.store.Put(ctx, key, up.Data, mimeType)
	if err != nil {
		return "", fmt.Errorf("storing image: %w", err)
	}
	r.log.Debug("image stored", "owner_id", ownerID, "mime", mimeType, "bytes", len(up.Data))
	return ref, nil
}

// Open reads the image behind ref. Inline data URLs are decoded directly,
// so references from any store mode can be read.
func (r *Resolver) Open(ctx context.Context, ref string) ([]byte, string, error) {
	if IsDataURL(ref) {
		return DecodeDataURL(ref)
	}
	return r.store.Get(ctx, ref)
}

// Remove deletes the image behind ref when Resolve stored it for ownerID.
// References minted for other owners, or set by hand, are left alone.
// Inline references need no cleanup.
func (r *Resolver) Remove(ctx context.Context, ownerID, ref string) error {
	if IsDataURL(ref) || !OwnedBy(ref, ownerID) {
		return nil
	}
	return r.store.Delete(ctx, ref)
}

// OwnedBy reports whether ref names an image Resolve stored for ownerID.
func OwnedBy(ref, ownerID string) bool {
	if ref == "" || ownerID == "" {
		return false
	}
	rest, ok := strings.CutPrefix(path.Base(ref), ownerID+"-")
	if !ok {
		return false
	}
	stamp, _, _ := strings.Cut(rest, ".")
	if stamp == "" {
		return false
	}
	for _, c := range stamp {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// stamp returns a strictly increasing nanosecond timestamp.
func (r *Resolver) stamp() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.now().UnixNano()
	if n <= r.last {
		n = r.last + 1
	}
	r.last = n
	return n
}

// IsDataURL reports whether ref is an inline base64 data URL.
func IsDataURL(ref string) bool {
	return strings.HasPrefix(ref, "data:")
}

// EncodeDataURL builds a base64 data URL.
func EncodeDataURL(data []byte, mimeType string) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURL parses a base64 data URL into bytes and MIME type.
func DecodeDataURL(ref string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(ref, "data:")
	if !ok {
		return nil, "", fmt.Errorf("%w: not a data URL", ErrUnknownReference)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", fmt.Errorf("%w: malformed data URL", ErrUnknownReference)
	}
	mimeType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return nil, "", fmt.Errorf("%w: data URL is not base64", ErrUnknownReference)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("decoding data URL: %w", err)
	}
	return data, mimeType, nil
}
