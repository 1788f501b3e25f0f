// Package mapmaker cuts a map image into a Trekbuddy tile set and packs the
// result into a map directory or tar archive.
package mapmaker

import (
	"archive/tar"
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding"

	"github.com/kbedkowski/tbviewer/internal/imaging"
	"github.com/kbedkowski/tbviewer/internal/vfs"
	"github.com/kbedkowski/tbviewer/pkg/mapfile"
)

// Default tile geometry and JPEG quality.
const (
	DefaultTileSize = 256
	DefaultQuality  = 75
)

// Options contains all map creation parameters
type Options struct {
	TileWidth  int
	TileHeight int
	Quality    int

	// Force rewrites tiles that already exist in the set directory.
	Force bool
	// CreateTar packs the map, set listing and tiles into {name}.tar.
	CreateTar bool
	// WorldFile writes a {name}.jgw georeference next to the map.
	WorldFile bool

	// Workers bounds concurrent tile encoding; 0 means GOMAXPROCS.
	Workers int
	// Encoding is the codepage of the written .map file.
	Encoding encoding.Encoding
	Logger   *slog.Logger
}

// DefaultOptions returns options matching the classic Trekbuddy layout.
func DefaultOptions() *Options {
	return &Options{
		TileWidth:  DefaultTileSize,
		TileHeight: DefaultTileSize,
		Quality:    DefaultQuality,
		CreateTar:  true,
	}
}

func (o *Options) normalize() Options {
	out := Options{}
	if o != nil {
		out = *o
	}
	if out.TileWidth <= 0 {
		out.TileWidth = DefaultTileSize
	}
	if out.TileHeight <= 0 {
		out.TileHeight = DefaultTileSize
	}
	if out.Quality <= 0 {
		out.Quality = DefaultQuality
	}
	if out.Workers <= 0 {
		out.Workers = runtime.GOMAXPROCS(0)
	}
	if out.Encoding == nil {
		out.Encoding = vfs.DefaultEncoding
	}
	if out.Logger == nil {
		out.Logger = slog.New(slog.DiscardHandler)
	}
	return out
}

// Result describes the files written by Cut or Create.
type Result struct {
	SetFile string
	// Tiles lists every tile of the set, written or kept, by set-relative name.
	Tiles   []string
	Written int
	Skipped int

	MapFile   string
	WorldFile string
	TarFile   string
}

// TileName returns the set file name of the tile at pixel offset (x, y).
func TileName(name string, x, y int) string {
	return fmt.Sprintf("%s_%d_%d.jpg", name, x, y)
}

// Cut splits img into JPEG tiles under dstDir/set and writes the {name}.set
// listing. Tiles already present are kept unless opts.Force is set.
func Cut(ctx context.Context, img image.Image, dstDir, name string, opts *Options) (*Result, error) {
	o := opts.normalize()
	name = strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))

	setDir := filepath.Join(dstDir, "set")
	if err := os.MkdirAll(setDir, 0755); err != nil {
		return nil, fmt.Errorf("create set directory: %w", err)
	}

	existing := make(map[string]bool)
	if !o.Force {
		entries, err := os.ReadDir(setDir)
		if err != nil {
			return nil, fmt.Errorf("list set directory: %w", err)
		}
		for _, e := range entries {
			existing[e.Name()] = true
		}
	}

	res := &Result{SetFile: filepath.Join(dstDir, name+".set")}
	b := img.Bounds()

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.Workers)

	for x := 0; x < b.Dx(); x += o.TileWidth {
		for y := 0; y < b.Dy(); y += o.TileHeight {
			fname := TileName(name, x, y)
			res.Tiles = append(res.Tiles, fname)
			if existing[fname] {
				o.Logger.Debug("skipping existing tile", "file", fname)
				res.Skipped++
				continue
			}

			r := image.Rect(x, y, x+o.TileWidth, y+o.TileHeight).Add(b.Min)
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				data, err := imaging.EncodeJPEG(imaging.Crop(img, r), o.Quality)
				if err != nil {
					return fmt.Errorf("encode %s: %w", fname, err)
				}
				if err := os.WriteFile(filepath.Join(setDir, fname), data, 0644); err != nil {
					return fmt.Errorf("write %s: %w", fname, err)
				}
				o.Logger.Debug("tile created", "file", fname)
				mu.Lock()
				res.Written++
				mu.Unlock()
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	listing := strings.Join(res.Tiles, "\n") + "\n"
	if err := os.WriteFile(res.SetFile, []byte(listing), 0644); err != nil {
		return nil, fmt.Errorf("write set file: %w", err)
	}

	o.Logger.Info("tile set created", "dir", setDir, "tiles", len(res.Tiles),
		"written", res.Written, "skipped", res.Skipped)
	return res, nil
}

// Create cuts img next to dstFile (a .map path), writes meta as the .map
// content when it is non-nil, and optionally packs everything into a tar.
func Create(ctx context.Context, img image.Image, meta *mapfile.Meta, dstFile string, opts *Options) (*Result, error) {
	o := opts.normalize()
	dstDir := filepath.Dir(dstFile)
	base := strings.TrimSuffix(filepath.Base(dstFile), filepath.Ext(dstFile))

	res, err := Cut(ctx, img, dstDir, base, &o)
	if err != nil {
		return nil, err
	}

	if meta != nil {
		text, err := o.Encoding.NewEncoder().String(meta.Text())
		if err != nil {
			return nil, fmt.Errorf("encode map file: %w", err)
		}
		if err := os.WriteFile(dstFile, []byte(text), 0644); err != nil {
			return nil, fmt.Errorf("write map file: %w", err)
		}
		res.MapFile = dstFile

		if o.WorldFile {
			wf, err := WorldFile(meta)
			if err != nil {
				return nil, err
			}
			res.WorldFile = filepath.Join(dstDir, base+".jgw")
			if err := os.WriteFile(res.WorldFile, wf, 0644); err != nil {
				return nil, fmt.Errorf("write world file: %w", err)
			}
		}
	}

	if o.CreateTar {
		res.TarFile = filepath.Join(dstDir, base+".tar")
		o.Logger.Info("creating archive", "file", res.TarFile)
		if err := writeTar(res); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func writeTar(res *Result) (err error) {
	f, err := os.Create(res.TarFile)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close archive: %w", cerr)
		}
	}()

	tw := tar.NewWriter(f)
	if res.MapFile != "" {
		if err := addFile(tw, res.MapFile, filepath.Base(res.MapFile)); err != nil {
			return err
		}
	}
	if err := addFile(tw, res.SetFile, filepath.Base(res.SetFile)); err != nil {
		return err
	}

	setDir := filepath.Join(filepath.Dir(res.SetFile), "set")
	entries, err := os.ReadDir(setDir)
	if err != nil {
		return fmt.Errorf("list set directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	for _, n := range names {
		if err := addFile(tw, filepath.Join(setDir, n), "set/"+n); err != nil {
			return err
		}
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("finish archive: %w", err)
	}
	return nil
}

func addFile(tw *tar.Writer, src, name string) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	hdr, err := tar.FileInfoHeader(st, "")
	if err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	hdr.Name = name
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	if _, err := io.Copy(tw, f); err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	return nil
}
