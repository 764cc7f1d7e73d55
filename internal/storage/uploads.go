package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var videoExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".avi": true, ".mkv": true,
}

// IsVideoFile reports whether the filename carries a supported container
// extension (mp4, mov, avi, mkv).
func IsVideoFile(name string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(name))]
}

// SanitizeFilename strips everything except letters, digits, spaces, dots and
// underscores so an uploaded name can never escape the upload directory.
func SanitizeFilename(name string) string {
	var sb strings.Builder
	for _, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			sb.WriteRune(c)
		case c == ' ', c == '.', c == '_':
			sb.WriteRune(c)
		}
	}
	return strings.TrimSpace(sb.String())
}

// UploadStore owns the directory uploaded videos are staged in. Each upload
// gets its own subdirectory so concurrent sessions never collide.
type UploadStore struct {
	dir string
}

func NewUploadStore(dir string) (*UploadStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create upload directory")
	}
	return &UploadStore{dir: dir}, nil
}

// Save streams an upload to disk under a sanitized name and returns the
// stored path plus a content hash of the written bytes.
func (s *UploadStore) Save(r io.Reader, originalName string) (string, string, error) {
	name := SanitizeFilename(originalName)
	if name == "" {
		name = "upload" + strings.ToLower(filepath.Ext(originalName))
	}

	dir := filepath.Join(s.dir, uuid.New().String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", errors.Wrap(err, "create upload subdirectory")
	}

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", "", errors.Wrap(err, "create upload file")
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(f, h), r); err != nil {
		os.RemoveAll(dir)
		return "", "", errors.Wrap(err, "write upload")
	}

	return path, hex.EncodeToString(h.Sum(nil)), nil
}

// Remove deletes a stored upload and its per-upload subdirectory.
func (s *UploadStore) Remove(path string) error {
	dir := filepath.Dir(path)

	// Refuse to remove anything outside the store.
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	absBase, err := filepath.Abs(s.dir)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(absDir, absBase+string(filepath.Separator)) {
		return errors.Errorf("path %s is outside the upload store", path)
	}

	return os.RemoveAll(dir)
}
