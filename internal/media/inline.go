package media

import (
	"context"
	"fmt"
)

// InlineStore embeds images in their references as base64 data URLs. It is
// used when no durable file system is available.
type InlineStore struct{}

// Put returns data encoded as a data URL.
func (InlineStore) Put(_ context.Context, _ string, data []byte, mimeType string) (string, error) {
	return EncodeDataURL(data, mimeType), nil
}

// Get decodes a data URL.
func (InlineStore) Get(_ context.Context, ref string) ([]byte, string, error) {
	if !IsDataURL(ref) {
		return nil, "", fmt.Errorf("%w: %s", ErrUnknownReference, ref)
	}
	return DecodeDataURL(ref)
}

// Delete is a no-op; the data lives in the reference.
func (InlineStore) Delete(context.Context, string) error {
	return nil
}
