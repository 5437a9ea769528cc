package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOConfig holds the settings for an S3-compatible object store.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinIOStore keeps images in an S3-compatible bucket under the "items/"
// prefix. References are object URLs.
type MinIOStore struct {
	client *minio.Client
	bucket string
	base   string
}

// NewMinIOStore connects to the endpoint and creates the bucket if needed.
func NewMinIOStore(ctx context.Context, cfg MinIOConfig) (*MinIOStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("checking bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("creating bucket: %w", err)
		}
	}

	return &MinIOStore{
		client: client,
		bucket: cfg.Bucket,
		base:   fmt.Sprintf("%s/%s/", strings.TrimSuffix(client.EndpointURL().String(), "/"), cfg.Bucket),
	}, nil
}

// Put uploads data as items/<key>.
func (s *MinIOStore) Put(ctx context.Context, key string, data []byte, mimeType string) (string, error) {
	object := "items/" + key
	_, err := s.client.PutObject(ctx, s.bucket, object, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: mimeType},
	)
	if err != nil {
		return "", fmt.Errorf("uploading to minio: %w", err)
	}
	return s.base + object, nil
}

// Get downloads the object behind ref.
func (s *MinIOStore) Get(ctx context.Context, ref string) ([]byte, string, error) {
	object, err := s.objectName(ref)
	if err != nil {
		return nil, "", err
	}

	obj, err := s.client.GetObject(ctx, s.bucket, object, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", fmt.Errorf("getting object: %w", err)
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		return nil, "", fmt.Errorf("stat object: %w", err)
	}
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, "", fmt.Errorf("reading object: %w", err)
	}
	return data, info.ContentType, nil
}

// Delete removes the object behind ref. References outside this bucket are
// ignored.
func (s *MinIOStore) Delete(ctx context.Context, ref string) error {
	object, err := s.objectName(ref)
	if err != nil {
		return nil
	}
	if err := s.client.RemoveObject(ctx, s.bucket, object, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("deleting object: %w", err)
	}
	return nil
}

func (s *MinIOStore) objectName(ref string) (string, error) {
	object, ok := strings.CutPrefix(ref, s.base)
	if !ok || object == "" {
		return "", fmt.Errorf("%w: %s", ErrUnknownReference, ref)
	}
	return object, nil
}
