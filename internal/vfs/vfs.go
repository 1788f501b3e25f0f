// Package vfs provides a read-only view over the two storages Trekbuddy maps
// come in: plain directories and uncompressed tar archives.
//
// Names are always slash separated and relative to the root of the view.
// Directory listings return base names of the immediate children.
//
//	fsys, err := vfs.OpenTar("atlas.tar")
//	if err != nil {
//		return err
//	}
//	defer fsys.Close()
//
//	layers, _ := fsys.Dirs("")
//	text, _ := fsys.ReadText("layer/map/map.map")
package vfs

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
)

var (
	// ErrFilesystemIO wraps failures of the plain directory backend.
	ErrFilesystemIO = errors.New("filesystem i/o error")
	// ErrArchiveRead wraps failures of the tar backend.
	ErrArchiveRead = errors.New("archive read error")
	// ErrClosed is returned by reads after Close.
	ErrClosed = errors.New("file system closed")
)

// DefaultEncoding is the codepage used by ReadText unless overridden.
var DefaultEncoding encoding.Encoding = charmap.Windows1250

// FS is the storage contract shared by the directory and archive backends.
type FS interface {
	// Entries lists files and directories directly under dir.
	Entries(dir string) ([]string, error)
	// Dirs lists directories directly under dir.
	Dirs(dir string) ([]string, error)
	// Files lists regular files directly under dir.
	Files(dir string) ([]string, error)
	ReadBytes(name string) ([]byte, error)
	// ReadText reads name and decodes it from the legacy 8-bit codepage.
	ReadText(name string) (string, error)
	Close() error
}

type options struct {
	enc encoding.Encoding
}

// Option configures a backend.
type Option func(*options)

// WithEncoding sets the codepage used by ReadText.
func WithEncoding(enc encoding.Encoding) Option {
	return func(o *options) {
		if enc != nil {
			o.enc = enc
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{enc: DefaultEncoding}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// EncodingByName resolves an IANA codepage name such as "windows-1250".
func EncodingByName(name string) (encoding.Encoding, error) {
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("unknown codepage %q: %w", name, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("codepage %q is not supported", name)
	}
	return enc, nil
}

func decodeText(enc encoding.Encoding, data []byte) (string, error) {
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Clean normalizes a member or entry name: backslashes become slashes and
// leading "./" or "/" are dropped. The root is "".
func Clean(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = path.Clean("/" + name)
	return strings.TrimPrefix(name, "/")
}

// Join joins a directory and an entry name returned by a listing.
func Join(dir, name string) string {
	return Clean(path.Join(dir, name))
}
