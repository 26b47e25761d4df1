// Package storage keeps uploaded listing images. Listings only store the
// opaque reference returned by Save; the bytes are never interpreted.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrUnsupportedType is returned for file names outside the extension allowlist.
var ErrUnsupportedType = errors.New("unsupported image type")

var allowedExt = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".webp": {},
}

// ImageStore persists image blobs under a generated object name.
type ImageStore interface {
	// Save writes r under name and returns the reference to store on the listing.
	Save(ctx context.Context, name string, r io.Reader, contentType string) (ref string, err error)
	// Delete removes the object behind ref. Missing objects are not an error.
	Delete(ctx context.Context, ref string) error
}

// ObjectName validates the uploaded file name and returns the generated
// "<uuid>_<sanitised name>" object name.
func ObjectName(filename string) (string, error) {
	base := sanitize(filename)
	ext := strings.ToLower(filepath.Ext(base))
	if _, ok := allowedExt[ext]; !ok {
		return "", ErrUnsupportedType
	}
	if strings.TrimSuffix(base, filepath.Ext(base)) == "" {
		base = "image" + ext
	}
	return uuid.NewString() + "_" + base, nil
}

// sanitize keeps ASCII letters, digits, dot, dash and underscore from the
// final path element; whitespace becomes an underscore.
func sanitize(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '\t':
			b.WriteByte('_')
		}
	}
	return strings.TrimLeft(b.String(), "._")
}

// LocalImageStore writes images into Dir. References are URLPrefix + name,
// which the router serves as static files.
type LocalImageStore struct {
	Dir       string
	URLPrefix string
}

// NewLocalImageStore creates dir if needed.
func NewLocalImageStore(dir, urlPrefix string) (*LocalImageStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	if !strings.HasSuffix(urlPrefix, "/") {
		urlPrefix += "/"
	}
	return &LocalImageStore{Dir: dir, URLPrefix: urlPrefix}, nil
}

func (s *LocalImageStore) Save(_ context.Context, name string, r io.Reader, _ string) (string, error) {
	if name != filepath.Base(name) {
		return "", fmt.Errorf("invalid object name %q", name)
	}
	path := filepath.Join(s.Dir, name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return s.URLPrefix + name, nil
}

func (s *LocalImageStore) Delete(_ context.Context, ref string) error {
	name := filepath.Base(strings.TrimPrefix(ref, s.URLPrefix))
	err := os.Remove(filepath.Join(s.Dir, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
