// Package atlas opens Trekbuddy atlases and maps from directories and tar
// archives.
//
// An atlas is rooted at a .tba file (content "Atlas 1.0"). Every directory
// next to it is a layer and every directory inside a layer is a map holding
// a .map file and a set/ directory of tiles. A standalone .map file or map
// archive opens as a one-layer, one-map atlas.
package atlas

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/kbedkowski/tbviewer/internal/imaging"
	"github.com/kbedkowski/tbviewer/internal/vfs"
	"github.com/kbedkowski/tbviewer/pkg/mapfile"
)

var (
	// ErrUnresolvableFileType is returned for paths that are neither an atlas
	// nor a map.
	ErrUnresolvableFileType = errors.New("unresolvable file type")
	// ErrNotReady is returned by queries on a map that is closed.
	ErrNotReady = errors.New("map not ready")
	// ErrMissingMapFile is returned when a map directory has no .map file.
	ErrMissingMapFile = errors.New("missing .map file")
	// ErrNoImageSize is returned for a .map file without an IWH record.
	ErrNoImageSize = mapfile.ErrNoImageSize
)

// DefaultCacheSize is the number of decoded tiles kept per map.
const DefaultCacheSize = 128

type options struct {
	vfsOpts   []vfs.Option
	logger    *slog.Logger
	codec     imaging.Codec
	cacheSize int
}

// Option configures Open and OpenMap.
type Option func(*options)

// WithLogger sets the logger for load warnings and tile errors.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithCodec replaces the image codec used for scaled tiles.
func WithCodec(c imaging.Codec) Option {
	return func(o *options) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithCacheSize sets the number of decoded tiles cached per map.
func WithCacheSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.cacheSize = n
		}
	}
}

// WithStorage passes options to the storage backends, such as the .map
// codepage.
func WithStorage(opts ...vfs.Option) Option {
	return func(o *options) {
		o.vfsOpts = append(o.vfsOpts, opts...)
	}
}

func buildOptions(opts []Option) options {
	o := options{
		logger:    slog.New(slog.DiscardHandler),
		codec:     imaging.NewCodec(),
		cacheSize: DefaultCacheSize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// MapRef names a map of a layer. Path is relative to the atlas root, or the
// file path of a standalone map.
type MapRef struct {
	Name string
	Path string
}

// Layer is a named group of maps.
type Layer struct {
	Name string
	Maps []MapRef
}

// Atlas is an opened atlas or a standalone map wrapped as one.
type Atlas struct {
	Path   string
	Type   FileType
	Layers []Layer

	fs    vfs.FS
	owner io.Closer
	opts  []Option
	o     options
}

// Open resolves the file at name and lists its layers and maps.
func Open(name string, opts ...Option) (*Atlas, error) {
	ft, err := CheckFileType(name)
	if err != nil {
		return nil, err
	}
	a := &Atlas{Path: name, Type: ft, opts: opts, o: buildOptions(opts)}

	switch ft {
	case TypeAtlas:
		d, err := vfs.OpenDir(filepath.Dir(name), a.o.vfsOpts...)
		if err != nil {
			return nil, err
		}
		a.fs, a.owner = d, d
	case TypeTarAtlas:
		t, err := vfs.OpenTar(name, a.o.vfsOpts...)
		if err != nil {
			return nil, err
		}
		_, member, err := inspectTar(t)
		if err != nil {
			t.Close()
			return nil, err
		}
		a.fs, a.owner = subRoot(t, path.Dir(member)), t
	case TypeMap, TypeTarMap:
		base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
		a.Layers = []Layer{{Name: base, Maps: []MapRef{{Name: base, Path: name}}}}
		return a, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnresolvableFileType, name)
	}

	if err := a.scan(); err != nil {
		a.Close()
		return nil, err
	}
	a.o.logger.Info("atlas opened", "path", name, "type", ft.String(), "layers", len(a.Layers))
	return a, nil
}

func subRoot(fsys vfs.FS, dir string) vfs.FS {
	if dir = vfs.Clean(dir); dir == "" {
		return fsys
	}
	return vfs.NewSub(fsys, dir)
}

func (a *Atlas) scan() error {
	layers, err := a.fs.Dirs("")
	if err != nil {
		return err
	}
	slices.Sort(layers)
	for _, l := range layers {
		maps, err := a.fs.Dirs(l)
		if err != nil {
			return err
		}
		layer := Layer{Name: l}
		for _, m := range maps {
			layer.Maps = append(layer.Maps, MapRef{Name: m, Path: vfs.Join(l, m)})
		}
		a.Layers = append(a.Layers, layer)
	}
	return nil
}

// Standalone reports whether the atlas wraps a single map file.
func (a *Atlas) Standalone() bool {
	return a.fs == nil
}

// Lookup finds a map by layer and map name.
func (a *Atlas) Lookup(layer, name string) (MapRef, bool) {
	for _, l := range a.Layers {
		if l.Name != layer {
			continue
		}
		for _, m := range l.Maps {
			if m.Name == name {
				return m, true
			}
		}
	}
	return MapRef{}, false
}

// OpenMap loads a map of the atlas. Maps opened from an atlas share its
// storage and must not outlive it.
func (a *Atlas) OpenMap(ref MapRef) (*Map, error) {
	if a.Standalone() {
		return OpenMap(ref.Path, a.opts...)
	}
	return openMap(vfs.NewSub(a.fs, ref.Path), nil, ref.Name, "", a.o)
}

// Close releases the atlas storage. Calling it again is a no-op.
func (a *Atlas) Close() error {
	if a.owner == nil {
		return nil
	}
	err := a.owner.Close()
	a.owner = nil
	return err
}

// OpenMap opens a standalone .map file or a map tar archive.
func OpenMap(name string, opts ...Option) (*Map, error) {
	o := buildOptions(opts)
	ft, err := CheckFileType(name)
	if err != nil {
		return nil, err
	}
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))

	switch ft {
	case TypeMap:
		d, err := vfs.OpenDir(filepath.Dir(name), o.vfsOpts...)
		if err != nil {
			return nil, err
		}
		return openMap(d, d, base, filepath.Base(name), o)
	case TypeTarMap:
		t, err := vfs.OpenTar(name, o.vfsOpts...)
		if err != nil {
			return nil, err
		}
		_, member, err := inspectTar(t)
		if err != nil {
			t.Close()
			return nil, err
		}
		return openMap(subRoot(t, path.Dir(member)), t, base, path.Base(member), o)
	}
	return nil, fmt.Errorf("%w: %s is %s", ErrUnresolvableFileType, name, ft)
}
