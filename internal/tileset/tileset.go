// Package tileset indexes the tile images of a Trekbuddy map set.
//
// Tiles live in a "set" directory and are named {base}_{col}_{row}.{ext},
// where col and row are the pixel offsets of the tile in the full image.
package tileset

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/kbedkowski/tbviewer/internal/vfs"
)

// ErrMissingSetFiles is returned when the set directory is absent or holds no
// files.
var ErrMissingSetFiles = errors.New("missing set files")

// Key addresses a tile by the pixel offset of its top-left corner.
type Key struct {
	Col, Row int
}

// Index maps tile offsets to storage paths.
type Index struct {
	Tiles map[Key]string

	TileWidth  int
	TileHeight int

	// Width and Height are the full image size the grid covers.
	Width  int
	Height int
}

// Lookup returns the storage path of the tile at (col, row).
func (ix *Index) Lookup(col, row int) (string, bool) {
	p, ok := ix.Tiles[Key{col, row}]
	return p, ok
}

func (ix *Index) Contains(col, row int) bool {
	_, ok := ix.Tiles[Key{col, row}]
	return ok
}

// InBounds reports whether (col, row) lies inside the image.
func (ix *Index) InBounds(col, row int) bool {
	return col >= 0 && row >= 0 && col < ix.Width && row < ix.Height
}

// Len returns the number of indexed tiles.
func (ix *Index) Len() int {
	return len(ix.Tiles)
}

// Keys returns tile keys ordered by row, then column.
func (ix *Index) Keys() []Key {
	keys := make([]Key, 0, len(ix.Tiles))
	for k := range ix.Tiles {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b Key) int {
		if a.Row != b.Row {
			return a.Row - b.Row
		}
		return a.Col - b.Col
	})
	return keys
}

func isTileExt(ext string) bool {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}

// ParseName extracts the tile offset from a file name such as
// "map_256_512.png". Everything before the last two numeric tokens is
// ignored.
func ParseName(name string) (Key, error) {
	stem := strings.TrimSuffix(path.Base(name), path.Ext(name))
	parts := strings.Split(stem, "_")
	if len(parts) < 3 {
		return Key{}, fmt.Errorf("tile name %q has no _col_row suffix", name)
	}
	col, err := strconv.Atoi(parts[len(parts)-2])
	if err != nil {
		return Key{}, fmt.Errorf("tile name %q: column: %w", name, err)
	}
	row, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return Key{}, fmt.Errorf("tile name %q: row: %w", name, err)
	}
	if col < 0 || row < 0 {
		return Key{}, fmt.Errorf("tile name %q: negative offset", name)
	}
	return Key{col, row}, nil
}

// Derive scans setDir of fsys and builds the tile index for an image of
// width x height pixels. Unusable file names are logged and skipped.
func Derive(fsys vfs.FS, setDir string, width, height int, logger *slog.Logger) (*Index, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	files, err := fsys.Files(setDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingSetFiles, setDir)
		}
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrMissingSetFiles, setDir)
	}

	ix := &Index{
		Tiles:  make(map[Key]string, len(files)),
		Width:  width,
		Height: height,
	}
	minCol, minRow := 0, 0
	for _, name := range files {
		if !isTileExt(path.Ext(name)) {
			logger.Warn("unexpected file in tile set", "dir", setDir, "file", name)
			continue
		}
		key, err := ParseName(name)
		if err != nil {
			logger.Warn("skipping malformed tile name", "dir", setDir, "error", err)
			continue
		}
		ix.Tiles[key] = vfs.Join(setDir, name)
		if key.Col > 0 && (minCol == 0 || key.Col < minCol) {
			minCol = key.Col
		}
		if key.Row > 0 && (minRow == 0 || key.Row < minRow) {
			minRow = key.Row
		}
	}

	ix.TileWidth, ix.TileHeight = minCol, minRow
	if ix.TileWidth == 0 {
		ix.TileWidth = width
	}
	if ix.TileHeight == 0 {
		ix.TileHeight = height
	}

	logger.Debug("tile set indexed", "dir", setDir, "tiles", len(ix.Tiles),
		"tile_width", ix.TileWidth, "tile_height", ix.TileHeight)
	return ix, nil
}
