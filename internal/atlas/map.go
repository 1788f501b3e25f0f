package atlas

import (
	"fmt"
	"image"
	"io"
	"log/slog"
	"path"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kbedkowski/tbviewer/internal/imaging"
	"github.com/kbedkowski/tbviewer/internal/tileset"
	"github.com/kbedkowski/tbviewer/internal/vfs"
	"github.com/kbedkowski/tbviewer/pkg/mapfile"
)

// SetDir is the tile directory of a map.
const SetDir = "set"

// State is the load stage of a Map.
type State int

const (
	Unopened State = iota
	FilesystemResolved
	MetaParsed
	TileGridResolved
	Ready
)

func (s State) String() string {
	switch s {
	case FilesystemResolved:
		return "filesystem-resolved"
	case MetaParsed:
		return "meta-parsed"
	case TileGridResolved:
		return "tile-grid-resolved"
	case Ready:
		return "ready"
	}
	return "unopened"
}

type cacheKey struct {
	col, row int
	scale    float64
}

// Map is a loaded map: its .map metadata, tile index and a cache of decoded
// tiles. It is safe for concurrent use.
type Map struct {
	Name string

	mu     sync.Mutex
	state  State
	fs     vfs.FS
	owner  io.Closer
	meta   *mapfile.Meta
	index  *tileset.Index
	codec  imaging.Codec
	cache  *lru.Cache[cacheKey, image.Image]
	scale  float64
	logger *slog.Logger
}

// openMap walks the load stages over fsys. On failure owner is closed and no
// Map is returned.
func openMap(fsys vfs.FS, owner io.Closer, name, mapFile string, o options) (*Map, error) {
	m := &Map{
		Name:   name,
		fs:     fsys,
		owner:  owner,
		codec:  o.codec,
		scale:  1,
		logger: o.logger.With("map", name),
		state:  FilesystemResolved,
	}
	if err := m.load(mapFile, o.cacheSize); err != nil {
		m.release()
		return nil, err
	}
	m.logger.Info("map opened", "width", m.meta.ImageWidth, "height", m.meta.ImageHeight,
		"tiles", m.index.Len(), "calibrated", m.meta.Calibrated())
	return m, nil
}

func (m *Map) load(mapFile string, cacheSize int) error {
	if mapFile == "" {
		var err error
		if mapFile, err = findMapFile(m.fs); err != nil {
			return fmt.Errorf("%s: %w", m.Name, err)
		}
	}

	text, err := m.fs.ReadText(mapFile)
	if err != nil {
		return err
	}
	meta, err := mapfile.Parse(text)
	if err != nil {
		return fmt.Errorf("%s: %w", mapFile, err)
	}
	if !meta.Valid() {
		return fmt.Errorf("%s: %w", mapFile, ErrNoImageSize)
	}
	m.meta = meta
	m.state = MetaParsed

	ix, err := tileset.Derive(m.fs, SetDir, meta.ImageWidth, meta.ImageHeight, m.logger)
	if err != nil {
		return fmt.Errorf("%s: %w", m.Name, err)
	}
	m.index = ix
	m.state = TileGridResolved

	cache, err := lru.New[cacheKey, image.Image](cacheSize)
	if err != nil {
		return err
	}
	m.cache = cache
	m.state = Ready
	return nil
}

func findMapFile(fsys vfs.FS) (string, error) {
	files, err := fsys.Files("")
	if err != nil {
		return "", err
	}
	for _, f := range files {
		if strings.EqualFold(path.Ext(f), ".map") {
			return f, nil
		}
	}
	return "", ErrMissingMapFile
}

func (m *Map) release() error {
	m.state = Unopened
	m.cache = nil
	if m.owner == nil {
		return nil
	}
	err := m.owner.Close()
	m.owner = nil
	return err
}

// State returns the load stage; a closed map is Unopened.
func (m *Map) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Meta returns the parsed .map content, or nil once the map is closed.
func (m *Map) Meta() *mapfile.Meta {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Ready {
		return nil
	}
	return m.meta
}

// Index returns the tile index, or nil once the map is closed.
func (m *Map) Index() *tileset.Index {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Ready {
		return nil
	}
	return m.index
}

// Tile returns the tile at pixel offset (col, row) scaled by scale. It
// returns nil, nil when the map has no such tile.
func (m *Map) Tile(col, row int, scale float64) (image.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Ready {
		return nil, ErrNotReady
	}
	if scale <= 0 {
		return nil, fmt.Errorf("invalid scale %v", scale)
	}
	if scale != m.scale {
		m.cache.Purge()
		m.scale = scale
	}

	key := cacheKey{col, row, scale}
	if img, ok := m.cache.Get(key); ok {
		return img, nil
	}

	data, err := m.tileBytes(col, row)
	if err != nil || data == nil {
		return nil, err
	}
	img, err := m.codec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode tile %d,%d: %w", col, row, err)
	}
	if scale != 1 {
		if img, err = imaging.Scale(m.codec, img, scale); err != nil {
			return nil, err
		}
	}
	m.cache.Add(key, img)
	return img, nil
}

// TileBytes returns the stored bytes of the tile at (col, row), or nil when
// the map has no such tile.
func (m *Map) TileBytes(col, row int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Ready {
		return nil, ErrNotReady
	}
	return m.tileBytes(col, row)
}

func (m *Map) tileBytes(col, row int) ([]byte, error) {
	p, ok := m.index.Lookup(col, row)
	if !ok {
		if m.index.InBounds(col, row) {
			m.logger.Error("tile missing inside map bounds", "col", col, "row", row)
		}
		return nil, nil
	}
	return m.fs.ReadBytes(p)
}

// CachedTiles returns the number of decoded tiles held in the cache.
func (m *Map) CachedTiles() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cache == nil {
		return 0
	}
	return m.cache.Len()
}

// LonLat maps an image pixel to geographic coordinates.
func (m *Map) LonLat(x, y float64) (float64, float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Ready {
		return 0, 0, ErrNotReady
	}
	return m.meta.LonLat(x, y)
}

// Close drops the tile cache and releases storage the map owns. Calling it
// again is a no-op.
func (m *Map) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.release()
}
