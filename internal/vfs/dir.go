package vfs

import (
	"fmt"
	"os"
	"path/filepath"
)

// Dir serves entries from a plain directory tree.
type Dir struct {
	root string
	opts options
}

// OpenDir opens root, which must be an existing directory.
func OpenDir(root string, opts ...Option) (*Dir, error) {
	st, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFilesystemIO, err)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrFilesystemIO, root)
	}
	return &Dir{root: root, opts: buildOptions(opts)}, nil
}

// Root returns the directory the view is rooted at.
func (d *Dir) Root() string {
	return d.root
}

func (d *Dir) abs(name string) string {
	return filepath.Join(d.root, filepath.FromSlash(Clean(name)))
}

func (d *Dir) list(dir string, keep func(os.DirEntry) bool) ([]string, error) {
	entries, err := os.ReadDir(d.abs(dir))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFilesystemIO, err)
	}
	var names []string
	for _, e := range entries {
		if keep(e) {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func (d *Dir) Entries(dir string) ([]string, error) {
	return d.list(dir, func(os.DirEntry) bool { return true })
}

func (d *Dir) Dirs(dir string) ([]string, error) {
	return d.list(dir, func(e os.DirEntry) bool { return e.IsDir() })
}

func (d *Dir) Files(dir string) ([]string, error) {
	return d.list(dir, func(e os.DirEntry) bool { return !e.IsDir() })
}

func (d *Dir) ReadBytes(name string) ([]byte, error) {
	data, err := os.ReadFile(d.abs(name))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFilesystemIO, err)
	}
	return data, nil
}

func (d *Dir) ReadText(name string) (string, error) {
	data, err := d.ReadBytes(name)
	if err != nil {
		return "", err
	}
	text, err := decodeText(d.opts.enc, data)
	if err != nil {
		return "", fmt.Errorf("%w: decode %s: %w", ErrFilesystemIO, name, err)
	}
	return text, nil
}

// Close is a no-op; a directory holds no handles between calls.
func (d *Dir) Close() error {
	return nil
}
