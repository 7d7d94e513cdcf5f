// Package storage implements the media bucket: content-addressed image files on
// local disk and the transforms that produce them.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

// ErrInvalidPath is returned for hashes or file names outside the bucket layout.
var ErrInvalidPath = errors.New("invalid media path")

var fileNameRegex = regexp.MustCompile(`^(master|[0-9]{2,4})\.(jpg|webp)$`)

// Bucket stores files under <root>/<hash>/<name>.
type Bucket struct {
	root string
}

// NewBucket returns a bucket rooted at dir.
func NewBucket(dir string) *Bucket {
	return &Bucket{root: filepath.Clean(dir)}
}

// IsValidHash checks that the hash is strictly lowercase hex.
// This prevents path traversal via crafted hash parameters.
func IsValidHash(hash string) bool {
	if len(hash) == 0 || len(hash) > 128 {
		return false
	}
	for _, c := range hash {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// IsValidFileName reports whether name is one the bucket writes (master or a size variant).
func IsValidFileName(name string) bool {
	return fileNameRegex.MatchString(name)
}

// RelPath is the slash separated path stored in the database.
func RelPath(hash, name string) string {
	return hash + "/" + name
}

// Path resolves hash/name to an absolute file path inside the bucket.
func (b *Bucket) Path(hash, name string) (string, error) {
	if !IsValidHash(hash) || !IsValidFileName(name) {
		return "", ErrInvalidPath
	}
	return filepath.Join(b.root, hash, name), nil
}

// Write stores data as hash/name and returns the relative path.
func (b *Bucket) Write(hash, name string, data []byte) (string, error) {
	full, err := b.Path(hash, name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return "", fmt.Errorf("create media dir: %w", err)
	}
	if err := os.WriteFile(full, data, 0o600); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return RelPath(hash, name), nil
}

// Exists reports whether hash/name is present on disk.
func (b *Bucket) Exists(hash, name string) bool {
	full, err := b.Path(hash, name)
	if err != nil {
		return false
	}
	_, err = os.Stat(full)
	return err == nil
}

// RemoveAll deletes every file of hash.
func (b *Bucket) RemoveAll(hash string) error {
	if !IsValidHash(hash) {
		return ErrInvalidPath
	}
	return os.RemoveAll(filepath.Join(b.root, hash))
}
