package media

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// DiskStore keeps images as files under a root directory it owns and hands
// out references of the form <prefix><file>.
type DiskStore struct {
	root   string
	prefix string
}

// NewDiskStore creates root if needed. prefix is the URL path the files are
// served under, for example "/uploads/".
func NewDiskStore(root, prefix string) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &DiskStore{root: root, prefix: prefix}, nil
}

// Root returns the directory files are written to.
func (d *DiskStore) Root() string {
	return d.root
}

// Put writes data to a temporary file and renames it into place, so a
// reference never points at a partial file.
func (d *DiskStore) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	name, err := cleanName(key)
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(d.root, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("creating temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("writing image: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("syncing image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing image: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return "", fmt.Errorf("setting image permissions: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(d.root, name)); err != nil {
		return "", fmt.Errorf("renaming image: %w", err)
	}

	return d.prefix + name, nil
}

// Get reads the file behind ref.
func (d *DiskStore) Get(_ context.Context, ref string) ([]byte, string, error) {
	path, err := d.path(ref)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("reading image: %w", err)
	}
	return data, mime.TypeByExtension(filepath.Ext(path)), nil
}

// Delete removes the file behind ref. Missing files and references outside
// this store are ignored.
func (d *DiskStore) Delete(_ context.Context, ref string) error {
	path, err := d.path(ref)
	if err != nil {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing image: %w", err)
	}
	return nil
}

func (d *DiskStore) path(ref string) (string, error) {
	name, ok := strings.CutPrefix(ref, d.prefix)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownReference, ref)
	}
	name, err := cleanName(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(d.root, name), nil
}

// cleanName rejects keys that would escape the root directory.
func cleanName(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: invalid file name %q", ErrUnknownReference, name)
	}
	return name, nil
}
