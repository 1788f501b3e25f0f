package vfs

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"sync"
)

type member struct {
	offset int64
	size   int64
}

type child struct {
	name string
	dir  bool
}

// Tar serves entries from an uncompressed tar archive. The archive is
// indexed once on open; member data is read in place through the open file.
type Tar struct {
	path string
	opts options

	mu       sync.RWMutex
	f        *os.File
	members  map[string]member
	children map[string][]child
	seen     map[string]bool
}

// OpenTar opens and indexes the archive at name.
func OpenTar(name string, opts ...Option) (*Tar, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrArchiveRead, err)
	}
	t := &Tar{
		path:     name,
		opts:     buildOptions(opts),
		f:        f,
		members:  make(map[string]member),
		children: make(map[string][]child),
		seen:     map[string]bool{"": true},
	}
	if err := t.index(); err != nil {
		f.Close()
		return nil, err
	}
	return t, nil
}

// Path returns the archive file name.
func (t *Tar) Path() string {
	return t.path
}

func (t *Tar) index() error {
	tr := tar.NewReader(t.f)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrArchiveRead, t.path, err)
		}
		name := Clean(hdr.Name)
		if name == "" {
			continue
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			t.add(name, true)
		case tar.TypeReg:
			// the reader leaves the file positioned at the member data
			off, err := t.f.Seek(0, io.SeekCurrent)
			if err != nil {
				return fmt.Errorf("%w: %s: %w", ErrArchiveRead, t.path, err)
			}
			t.members[name] = member{offset: off, size: hdr.Size}
			t.add(name, false)
		}
	}
}

// add registers name and every missing parent directory, keeping archive order.
func (t *Tar) add(name string, dir bool) {
	if t.seen[name] {
		return
	}
	parent, base := path.Split(name)
	parent = Clean(parent)
	t.add(parent, true)
	t.seen[name] = true
	t.children[parent] = append(t.children[parent], child{name: base, dir: dir})
}

// Members returns all regular file names in archive order.
func (t *Tar) Members() []string {
	var names []string
	var walk func(dir string)
	walk = func(dir string) {
		for _, c := range t.children[dir] {
			full := Join(dir, c.name)
			if c.dir {
				walk(full)
			} else {
				names = append(names, full)
			}
		}
	}
	walk("")
	return names
}

func (t *Tar) list(dir string, keep func(child) bool) ([]string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.f == nil {
		return nil, ErrClosed
	}
	dir = Clean(dir)
	if !t.seen[dir] {
		return nil, fmt.Errorf("%w: %s: %s: %w", ErrArchiveRead, t.path, dir, fs.ErrNotExist)
	}
	var names []string
	for _, c := range t.children[dir] {
		if keep(c) {
			names = append(names, c.name)
		}
	}
	return names, nil
}

func (t *Tar) Entries(dir string) ([]string, error) {
	return t.list(dir, func(child) bool { return true })
}

func (t *Tar) Dirs(dir string) ([]string, error) {
	return t.list(dir, func(c child) bool { return c.dir })
}

func (t *Tar) Files(dir string) ([]string, error) {
	return t.list(dir, func(c child) bool { return !c.dir })
}

func (t *Tar) ReadBytes(name string) ([]byte, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.f == nil {
		return nil, ErrClosed
	}
	m, ok := t.members[Clean(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s: %s: %w", ErrArchiveRead, t.path, name, fs.ErrNotExist)
	}
	data := make([]byte, m.size)
	if _, err := io.ReadFull(io.NewSectionReader(t.f, m.offset, m.size), data); err != nil {
		return nil, fmt.Errorf("%w: %s: %s: %w", ErrArchiveRead, t.path, name, err)
	}
	return data, nil
}

func (t *Tar) ReadText(name string) (string, error) {
	data, err := t.ReadBytes(name)
	if err != nil {
		return "", err
	}
	text, err := decodeText(t.opts.enc, data)
	if err != nil {
		return "", fmt.Errorf("%w: decode %s: %w", ErrArchiveRead, name, err)
	}
	return text, nil
}

// Close releases the archive handle. Calling it again is a no-op.
func (t *Tar) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.f == nil {
		return nil
	}
	err := t.f.Close()
	t.f = nil
	if err != nil && !errors.Is(err, os.ErrClosed) {
		return fmt.Errorf("%w: %w", ErrArchiveRead, err)
	}
	return nil
}
