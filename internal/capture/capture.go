// Package capture models the local product photos an operator attaches to a
// scan before they are sent for background removal.
package capture

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrBatchFull        = errors.New("batch is full")
	ErrIndexOutOfRange  = errors.New("index out of range")
	ErrImageNotFound    = errors.New("image not found")
	ErrPermissionDenied = fmt.Errorf("permission denied: %w", fs.ErrPermission)
	ErrNotAnImage       = errors.New("not an image file")
)

// ImageRef points at one captured photo on local disk.
type ImageRef struct {
	ID       string `json:"id" yaml:"id"`
	Path     string `json:"path" yaml:"path"`
	Name     string `json:"name" yaml:"name"`
	MIMEType string `json:"mime_type" yaml:"mime_type"`
}

// MIMETypeFor derives the upload content type from a file extension. Anything
// that is not PNG or WebP is sent as JPEG.
func MIMETypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

func extensionFor(mime string) string {
	switch mime {
	case "image/png":
		return "png"
	case "image/webp":
		return "webp"
	default:
		return "jpg"
	}
}

// NewImageRef checks that path is a readable regular file and describes it.
func NewImageRef(path string) (ImageRef, error) {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return ImageRef{}, fmt.Errorf("%w: %s", ErrImageNotFound, path)
	case errors.Is(err, fs.ErrPermission):
		return ImageRef{}, fmt.Errorf("%w: %s", ErrPermissionDenied, path)
	case err != nil:
		return ImageRef{}, fmt.Errorf("failed to stat image %s: %w", path, err)
	}
	if info.IsDir() {
		return ImageRef{}, fmt.Errorf("%w: %s is a directory", ErrNotAnImage, path)
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return ImageRef{}, fmt.Errorf("%w: %s", ErrPermissionDenied, path)
		}
		return ImageRef{}, fmt.Errorf("failed to open image %s: %w", path, err)
	}
	f.Close()

	return newRef(path, filepath.Base(path)), nil
}

func newRef(path, name string) ImageRef {
	id := uuid.NewString()
	mime := MIMETypeFor(name)
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = fmt.Sprintf("image_%s.%s", id, extensionFor(mime))
	}
	return ImageRef{ID: id, Path: path, Name: name, MIMEType: mime}
}

// FileName is the multipart filename for the image, falling back to a
// generated image_<id>.<ext> when the ref carries no name.
func (r ImageRef) FileName() string {
	if r.Name != "" {
		return r.Name
	}
	id := r.ID
	if id == "" {
		id = uuid.NewString()
	}
	mime := r.MIMEType
	if mime == "" {
		mime = MIMETypeFor(r.Path)
	}
	return fmt.Sprintf("image_%s.%s", id, extensionFor(mime))
}

// ContentType returns the ref's MIME type, deriving it from the path when unset.
func (r ImageRef) ContentType() string {
	if r.MIMEType != "" {
		return r.MIMEType
	}
	return MIMETypeFor(r.Path)
}
