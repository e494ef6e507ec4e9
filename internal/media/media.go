// Package media stores offering images on the local filesystem.
package media

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/erazemk/foodmap/internal/imaging"
)

// OfferingsDir is the per-feature prefix under which offering images live.
const OfferingsDir = "offerings"

// URLPrefix is where stored files are served.
const URLPrefix = "/media/"

// Store is the image storage used by the offering store. Paths are relative,
// slash-separated, and stable for the lifetime of the file.
type Store interface {
	Save(data []byte) (string, error)
	Copy(p string) (string, error)
	Delete(p string) error
}

// Dir is a Store rooted at a directory.
type Dir struct {
	root string
}

// NewDir creates the media directory if needed and returns a store rooted
// there.
func NewDir(root string) (*Dir, error) {
	if err := os.MkdirAll(filepath.Join(root, OfferingsDir), 0o755); err != nil {
		return nil, fmt.Errorf("creating media directory: %w", err)
	}
	return &Dir{root: root}, nil
}

// Root returns the directory the store writes to.
func (d *Dir) Root() string { return d.root }

// Save normalises an uploaded image and writes it under OfferingsDir with a
// fresh name. It returns the stored path.
func (d *Dir) Save(data []byte) (string, error) {
	processed, err := imaging.Process(data)
	if err != nil {
		return "", err
	}
	return d.write(processed)
}

// Copy duplicates a stored file so that two records never share one file.
func (d *Dir) Copy(p string) (string, error) {
	src, err := d.abs(p)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", p, err)
	}
	return d.write(data)
}

// Delete removes a stored file. Deleting a file that is already gone is not
// an error.
func (d *Dir) Delete(p string) error {
	if p == "" {
		return nil
	}
	abs, err := d.abs(p)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting %s: %w", p, err)
	}
	return nil
}

// Open opens a stored file for reading.
func (d *Dir) Open(p string) (io.ReadSeekCloser, error) {
	abs, err := d.abs(p)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(abs)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Exists reports whether a stored file is present.
func (d *Dir) Exists(p string) bool {
	abs, err := d.abs(p)
	if err != nil {
		return false
	}
	_, err = os.Stat(abs)
	return err == nil
}

func (d *Dir) write(data []byte) (string, error) {
	p := path.Join(OfferingsDir, uuid.NewString()+".jpg")
	abs := filepath.Join(d.root, filepath.FromSlash(p))

	tmp, err := os.CreateTemp(filepath.Dir(abs), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("creating media file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("writing media file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("closing media file: %w", err)
	}
	if err := os.Rename(tmp.Name(), abs); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("moving media file into place: %w", err)
	}
	return p, nil
}

// abs resolves a stored path, refusing anything outside the root.
func (d *Dir) abs(p string) (string, error) {
	clean := path.Clean("/" + p)[1:]
	if clean == "" || clean != p || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("invalid media path %q", p)
	}
	return filepath.Join(d.root, filepath.FromSlash(clean)), nil
}

// URL returns the public URL for a stored path.
func URL(p string) string {
	if p == "" {
		return ""
	}
	return URLPrefix + p
}
