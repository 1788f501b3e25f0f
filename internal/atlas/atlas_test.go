package atlas

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/kbedkowski/tbviewer/internal/mapmaker"
	"github.com/kbedkowski/tbviewer/internal/tileset"
	"github.com/kbedkowski/tbviewer/pkg/georef"
	"github.com/kbedkowski/tbviewer/pkg/mapfile"
)

const (
	testWidth  = 64
	testHeight = 48
)

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, testWidth, testHeight))
	for y := 0; y < testHeight; y++ {
		for x := 0; x < testWidth; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 4), uint8(y * 4), 64, 255})
		}
	}
	return img
}

func testMeta(t *testing.T) *mapfile.Meta {
	t.Helper()
	points := []georef.Point{
		{Index: 0, X: 0, Y: 0, Lon: 19, Lat: 51},
		{Index: 1, X: testWidth, Y: 0, Lon: 20, Lat: 51},
		{Index: 2, X: testWidth, Y: testHeight, Lon: 20, Lat: 50},
		{Index: 3, X: 0, Y: testHeight, Lon: 19, Lat: 50},
	}
	cal, err := georef.Calibrate(points, testWidth, testHeight)
	if err != nil {
		t.Fatalf("Calibrate failed: %v", err)
	}
	return mapfile.FromCalibration(points, cal, testWidth, testHeight)
}

// makeMap writes a map named name into dir and returns the .map path.
func makeMap(t *testing.T, dir, name string, createTar bool) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("Failed to create %s: %v", dir, err)
	}
	dst := filepath.Join(dir, name+".map")
	_, err := mapmaker.Create(context.Background(), testImage(), testMeta(t), dst, &mapmaker.Options{
		TileWidth:  32,
		TileHeight: 32,
		CreateTar:  createTar,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return dst
}

func makeAtlas(t *testing.T) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "atlas")
	makeMap(t, filepath.Join(root, "layerB", "north"), "north", false)
	makeMap(t, filepath.Join(root, "layerA", "west"), "west", false)
	makeMap(t, filepath.Join(root, "layerA", "east"), "east", false)
	tba := filepath.Join(root, "atlas.tba")
	if err := os.WriteFile(tba, []byte("Atlas 1.0\n"), 0644); err != nil {
		t.Fatalf("Failed to write tba: %v", err)
	}
	return tba
}

// tarDir packs the tree under root into an archive with slash names.
func tarDir(t *testing.T, root, dst string) string {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || p == root {
			return err
		}
		rel, _ := filepath.Rel(root, p)
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			return tw.WriteHeader(&tar.Header{Name: rel + "/", Typeflag: tar.TypeDir, Mode: 0755})
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		if err := tw.WriteHeader(&tar.Header{Name: rel, Typeflag: tar.TypeReg, Mode: 0644, Size: int64(len(data))}); err != nil {
			return err
		}
		_, err = tw.Write(data)
		return err
	})
	if err != nil {
		t.Fatalf("Failed to pack %s: %v", root, err)
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("Failed to close archive: %v", err)
	}
	if err := os.WriteFile(dst, buf.Bytes(), 0644); err != nil {
		t.Fatalf("Failed to write archive: %v", err)
	}
	return dst
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return p
}

func TestCheckFileType(t *testing.T) {
	dir := t.TempDir()
	mapPath := makeMap(t, filepath.Join(dir, "m"), "m", true)
	atlasTba := makeAtlas(t)

	badTarRoot := filepath.Join(dir, "badtar")
	os.MkdirAll(badTarRoot, 0755)
	writeFile(t, badTarRoot, "x.tba", "Atlas 2.0")
	writeFile(t, badTarRoot, "x.map", mapfile.Header+"\n")

	tests := []struct {
		name string
		path string
		want FileType
	}{
		{"atlas", writeFile(t, dir, "a.tba", "Atlas 1.0"), TypeAtlas},
		{"atlas with whitespace", writeFile(t, dir, "b.tba", "  Atlas 1.0\r\n\n"), TypeAtlas},
		{"atlas wrong version", writeFile(t, dir, "c.tba", "Atlas 2.0"), TypeUnknown},
		{"atlas extra content", writeFile(t, dir, "d.tba", "Atlas 1.0\nlayer"), TypeUnknown},
		{"map", mapPath, TypeMap},
		{"map wrong header", writeFile(t, dir, "e.map", "OziExplorer Map Data File Version 2.1\n"), TypeUnknown},
		{"map short", writeFile(t, dir, "f.map", "Ozi"), TypeUnknown},
		{"tar map", filepath.Join(dir, "m", "m.tar"), TypeTarMap},
		{"tar atlas", tarDir(t, filepath.Dir(atlasTba), filepath.Join(dir, "atlas.tar")), TypeTarAtlas},
		{"tar atlas invalid", tarDir(t, badTarRoot, filepath.Join(dir, "bad.tar")), TypeUnknown},
		{"other extension", writeFile(t, dir, "g.txt", "Atlas 1.0"), TypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CheckFileType(tt.path)
			if err != nil {
				t.Fatalf("CheckFileType failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("CheckFileType = %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := CheckFileType(filepath.Join(dir, "missing.tba")); err == nil {
		t.Error("expected error for missing file")
	}
}

func checkLayers(t *testing.T, a *Atlas) {
	t.Helper()
	var names []string
	for _, l := range a.Layers {
		names = append(names, l.Name)
	}
	if !reflect.DeepEqual(names, []string{"layerA", "layerB"}) {
		t.Fatalf("layers = %v", names)
	}
	if len(a.Layers[0].Maps) != 2 || len(a.Layers[1].Maps) != 1 {
		t.Fatalf("maps per layer = %d, %d", len(a.Layers[0].Maps), len(a.Layers[1].Maps))
	}
	ref, ok := a.Lookup("layerB", "north")
	if !ok || ref.Path != "layerB/north" {
		t.Errorf("Lookup(layerB, north) = %+v, %v", ref, ok)
	}
	if _, ok := a.Lookup("layerB", "west"); ok {
		t.Error("Lookup(layerB, west) should miss")
	}
}

func TestOpen_Atlas(t *testing.T) {
	tba := makeAtlas(t)
	dir := t.TempDir()

	for _, name := range []string{tba, tarDir(t, filepath.Dir(tba), filepath.Join(dir, "atlas.tar"))} {
		t.Run(filepath.Ext(name), func(t *testing.T) {
			a, err := Open(name)
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			defer a.Close()
			if a.Standalone() || !a.Type.IsAtlas() {
				t.Errorf("type = %v, standalone = %v", a.Type, a.Standalone())
			}
			checkLayers(t, a)

			ref, _ := a.Lookup("layerA", "west")
			m, err := a.OpenMap(ref)
			if err != nil {
				t.Fatalf("OpenMap failed: %v", err)
			}
			defer m.Close()
			if m.State() != Ready {
				t.Errorf("State() = %v, want ready", m.State())
			}
			img, err := m.Tile(32, 32, 1)
			if err != nil || img == nil {
				t.Fatalf("Tile(32,32) = %v, %v", img, err)
			}
			if img.Bounds().Dx() != 32 || img.Bounds().Dy() != 16 {
				t.Errorf("tile bounds = %v, want 32x16", img.Bounds())
			}
		})
	}
}

func TestOpen_TarAtlasNested(t *testing.T) {
	tba := makeAtlas(t)
	outer := t.TempDir()
	if err := os.Rename(filepath.Dir(tba), filepath.Join(outer, "nested")); err != nil {
		t.Fatalf("Failed to move atlas: %v", err)
	}
	name := tarDir(t, outer, filepath.Join(t.TempDir(), "nested.tar"))

	a, err := Open(name)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer a.Close()
	checkLayers(t, a)
}

func TestOpen_Standalone(t *testing.T) {
	dir := t.TempDir()
	mapPath := makeMap(t, dir, "solo", true)

	for _, name := range []string{mapPath, filepath.Join(dir, "solo.tar")} {
		t.Run(filepath.Ext(name), func(t *testing.T) {
			a, err := Open(name)
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			defer a.Close()
			if !a.Standalone() || len(a.Layers) != 1 || len(a.Layers[0].Maps) != 1 {
				t.Fatalf("unexpected layers %+v", a.Layers)
			}
			ref, ok := a.Lookup("solo", "solo")
			if !ok {
				t.Fatal("Lookup(solo, solo) missed")
			}
			m, err := a.OpenMap(ref)
			if err != nil {
				t.Fatalf("OpenMap failed: %v", err)
			}
			defer m.Close()

			lon, lat, err := m.LonLat(testWidth/2, testHeight/2)
			if err != nil {
				t.Fatalf("LonLat failed: %v", err)
			}
			if math.Abs(lon-19.5) > 1e-9 || math.Abs(lat-50.5) > 1e-9 {
				t.Errorf("LonLat(centre) = %v, %v", lon, lat)
			}
			if m.Index().TileWidth != 32 || m.Index().TileHeight != 32 {
				t.Errorf("tile size = %dx%d", m.Index().TileWidth, m.Index().TileHeight)
			}
		})
	}
}

func TestOpen_Unknown(t *testing.T) {
	name := writeFile(t, t.TempDir(), "notes.txt", "hello")
	if _, err := Open(name); !errors.Is(err, ErrUnresolvableFileType) {
		t.Errorf("Open error = %v, want ErrUnresolvableFileType", err)
	}
	if _, err := OpenMap(name); !errors.Is(err, ErrUnresolvableFileType) {
		t.Errorf("OpenMap error = %v, want ErrUnresolvableFileType", err)
	}
}

func TestMap_TileCache(t *testing.T) {
	m, err := OpenMap(makeMap(t, t.TempDir(), "cache", false), WithCacheSize(8))
	if err != nil {
		t.Fatalf("OpenMap failed: %v", err)
	}
	defer m.Close()

	for _, k := range []tileset.Key{{Col: 0, Row: 0}, {Col: 32, Row: 0}, {Col: 0, Row: 0}} {
		if img, err := m.Tile(k.Col, k.Row, 1); err != nil || img == nil {
			t.Fatalf("Tile(%v) = %v, %v", k, img, err)
		}
	}
	if n := m.CachedTiles(); n != 2 {
		t.Errorf("CachedTiles() = %d, want 2", n)
	}

	img, err := m.Tile(0, 0, 0.5)
	if err != nil {
		t.Fatalf("Tile(scale 0.5) failed: %v", err)
	}
	if img.Bounds().Dx() != 16 || img.Bounds().Dy() != 16 {
		t.Errorf("scaled tile bounds = %v, want 16x16", img.Bounds())
	}
	if n := m.CachedTiles(); n != 1 {
		t.Errorf("CachedTiles() after scale change = %d, want 1", n)
	}

	if _, err := m.Tile(0, 0, 0); err == nil {
		t.Error("expected error for zero scale")
	}
}

func TestMap_MissingTiles(t *testing.T) {
	dir := t.TempDir()
	mapPath := makeMap(t, dir, "holes", false)
	if err := os.Remove(filepath.Join(dir, "set", "holes_32_0.jpg")); err != nil {
		t.Fatalf("Failed to remove tile: %v", err)
	}

	var logs bytes.Buffer
	m, err := OpenMap(mapPath, WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	if err != nil {
		t.Fatalf("OpenMap failed: %v", err)
	}
	defer m.Close()

	img, err := m.Tile(640, 480, 1)
	if img != nil || err != nil {
		t.Errorf("Tile beyond extent = %v, %v", img, err)
	}
	if strings.Contains(logs.String(), "tile missing") {
		t.Errorf("tile beyond extent should not be logged:\n%s", logs.String())
	}

	img, err = m.Tile(32, 0, 1)
	if img != nil || err != nil {
		t.Errorf("missing tile = %v, %v", img, err)
	}
	if !strings.Contains(logs.String(), "tile missing") {
		t.Errorf("missing tile inside bounds should be logged:\n%s", logs.String())
	}

	data, err := m.TileBytes(0, 0)
	if err != nil || len(data) == 0 {
		t.Errorf("TileBytes(0,0) = %d bytes, %v", len(data), err)
	}
}

func TestMap_Close(t *testing.T) {
	dir := t.TempDir()
	makeMap(t, dir, "closing", true)
	m, err := OpenMap(filepath.Join(dir, "closing.tar"))
	if err != nil {
		t.Fatalf("OpenMap failed: %v", err)
	}

	if err := m.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
	if m.State() != Unopened {
		t.Errorf("State() = %v, want unopened", m.State())
	}
	if _, err := m.Tile(0, 0, 1); !errors.Is(err, ErrNotReady) {
		t.Errorf("Tile after Close error = %v, want ErrNotReady", err)
	}
	if _, err := m.TileBytes(0, 0); !errors.Is(err, ErrNotReady) {
		t.Errorf("TileBytes after Close error = %v, want ErrNotReady", err)
	}
	if _, _, err := m.LonLat(0, 0); !errors.Is(err, ErrNotReady) {
		t.Errorf("LonLat after Close error = %v, want ErrNotReady", err)
	}
	if m.Meta() != nil || m.Index() != nil {
		t.Error("Meta() and Index() should be nil after Close")
	}
}

func TestAtlas_OpenMapFailures(t *testing.T) {
	tba := makeAtlas(t)
	root := filepath.Dir(tba)

	if err := os.RemoveAll(filepath.Join(root, "layerA", "east", "set")); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(root, "layerB", "north"), "north.map", "not a map file\n")
	os.MkdirAll(filepath.Join(root, "layerB", "empty"), 0755)

	a, err := Open(tba)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer a.Close()

	tests := []struct {
		layer, name string
		want        error
	}{
		{"layerA", "east", tileset.ErrMissingSetFiles},
		{"layerB", "north", mapfile.ErrBadHeader},
		{"layerB", "empty", ErrMissingMapFile},
	}
	for _, tt := range tests {
		ref, ok := a.Lookup(tt.layer, tt.name)
		if !ok {
			t.Fatalf("Lookup(%s, %s) missed", tt.layer, tt.name)
		}
		m, err := a.OpenMap(ref)
		if !errors.Is(err, tt.want) {
			t.Errorf("OpenMap(%s) error = %v, want %v", tt.name, err, tt.want)
		}
		if m != nil {
			t.Errorf("OpenMap(%s) returned a map on failure", tt.name)
		}
	}

	// the shared storage stays usable after failed loads
	ref, _ := a.Lookup("layerA", "west")
	m, err := a.OpenMap(ref)
	if err != nil {
		t.Fatalf("OpenMap(west) failed: %v", err)
	}
	m.Close()
}

func TestMap_NoImageSize(t *testing.T) {
	dir := t.TempDir()
	makeMap(t, dir, "nosize", false)
	content := mapfile.Header + strings.Repeat("\nfiller", 12) + "\n"
	writeFile(t, dir, "nosize.map", content)

	if _, err := OpenMap(filepath.Join(dir, "nosize.map")); !errors.Is(err, ErrNoImageSize) {
		t.Errorf("OpenMap error = %v, want ErrNoImageSize", err)
	}
}
