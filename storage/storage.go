package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// ErrNotLocal is returned by Path when the backend is not backed by the host
// file system and therefore cannot hand a file name to the engine.
var ErrNotLocal = errors.New("storage: backend has no local path")

// File is an open durable file.
type File interface {
	io.ReaderAt
	io.WriterAt
	io.Closer
	Sync() error
	Size() (int64, error)
}

// Backend provides durable page storage addressed by logical file names.
type Backend interface {
	// Open opens name according to mode.
	Open(name string, mode Mode) (File, error)
	// Path resolves name to a host path the engine can open directly.
	Path(name string) (string, error)
	Exists(name string) (bool, error)
	Remove(name string) error
	Size(name string) (int64, error)
}

// Dir is a Backend that maps logical names onto files below a root directory.
type Dir struct {
	fs    afero.Fs
	root  string
	local bool
}

// NewDir returns a Dir rooted at root on the host file system, creating the
// directory if needed.
func NewDir(root string) (*Dir, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root %q: %w", root, err)
	}
	osFs := afero.NewOsFs()
	if err := osFs.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create root %q: %w", abs, err)
	}
	return &Dir{fs: afero.NewBasePathFs(osFs, abs), root: abs, local: true}, nil
}

// NewFsDir returns a Dir over an arbitrary afero file system. Such a backend
// supports Open/Exists/Remove/Size, but Path fails with ErrNotLocal unless fs
// is the host file system.
func NewFsDir(fs afero.Fs) *Dir {
	_, local := fs.(*afero.OsFs)
	return &Dir{fs: fs, root: "/", local: local}
}

// Root returns the root directory of d.
func (d *Dir) Root() string { return d.root }

// Open implements Backend.
func (d *Dir) Open(name string, mode Mode) (File, error) {
	rel, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	if mode.Create {
		if dir := path.Dir(rel); dir != "." {
			if err := d.fs.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("storage: create dir for %q: %w", name, err)
			}
		}
	}
	f, err := d.fs.OpenFile(rel, mode.osFlags(), 0o644)
	if err != nil {
		return nil, fmt.Errorf("storage: open %q (%s): %w", name, mode, err)
	}
	return &file{File: f}, nil
}

// Path implements Backend.
func (d *Dir) Path(name string) (string, error) {
	if !d.local {
		return "", ErrNotLocal
	}
	rel, err := cleanName(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(d.root, filepath.FromSlash(rel)), nil
}

// Exists implements Backend.
func (d *Dir) Exists(name string) (bool, error) {
	rel, err := cleanName(name)
	if err != nil {
		return false, err
	}
	return afero.Exists(d.fs, rel)
}

// Remove implements Backend. Removing a missing file is not an error.
func (d *Dir) Remove(name string) error {
	rel, err := cleanName(name)
	if err != nil {
		return err
	}
	if err := d.fs.Remove(rel); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: remove %q: %w", name, err)
	}
	return nil
}

// Size implements Backend.
func (d *Dir) Size(name string) (int64, error) {
	rel, err := cleanName(name)
	if err != nil {
		return 0, err
	}
	fi, err := d.fs.Stat(rel)
	if err != nil {
		return 0, fmt.Errorf("storage: stat %q: %w", name, err)
	}
	return fi.Size(), nil
}

type file struct {
	afero.File
}

func (f *file) Size() (int64, error) {
	fi, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

// cleanName validates a logical name and returns it as a relative slash path.
// Names may contain sub directories but never escape the root.
func cleanName(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("storage: empty file name")
	}
	rel := path.Clean("/" + filepath.ToSlash(name))[1:]
	if rel == "" || rel != strings.TrimPrefix(filepath.ToSlash(name), "/") {
		return "", fmt.Errorf("storage: invalid file name %q", name)
	}
	return rel, nil
}
