package filestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

// DefaultMaxBytes is the proof image size limit (5 MiB).
const DefaultMaxBytes = 5 << 20

var (
	ErrTooLarge        = errors.New("file too large")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrIO              = errors.New("file storage failure")
)

var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
}

// Local stores proof images in a directory on disk.
type Local struct {
	dir      string
	maxBytes int64
	log      *zap.SugaredLogger
	now      func() time.Time
}

// NewLocal returns a Local store rooted at dir. maxBytes <= 0 means DefaultMaxBytes.
func NewLocal(dir string, maxBytes int64, logger *zap.SugaredLogger) *Local {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Local{dir: dir, maxBytes: maxBytes, log: logger, now: time.Now}
}

// StoreProof writes data and returns the stored file name. Both the declared
// content type and the sniffed one must be an allowed image type.
func (s *Local) StoreProof(ctx context.Context, depositID uint64, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if int64(len(data)) > s.maxBytes {
		return "", ErrTooLarge
	}
	if _, ok := allowedTypes[contentType]; !ok {
		return "", ErrUnsupportedType
	}
	detected := mimetype.Detect(data)
	ext, ok := allowedTypes[detected.String()]
	if !ok {
		return "", fmt.Errorf("%w: detected %s", ErrUnsupportedType, detected.String())
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", ErrIO, err)
	}
	name := fmt.Sprintf("proof_%d_%d%s", depositID, s.now().Unix(), ext)
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrIO, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("%w: %v", ErrIO, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrIO, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return "", fmt.Errorf("%w: %v", ErrIO, err)
	}
	s.log.Infof("stored proof %s for deposit %d (%d bytes)", name, depositID, len(data))
	return name, nil
}
