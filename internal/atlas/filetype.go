package atlas

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/kbedkowski/tbviewer/internal/vfs"
	"github.com/kbedkowski/tbviewer/pkg/mapfile"
)

// AtlasHeader is the whole content of a valid .tba file.
const AtlasHeader = "Atlas 1.0"

// FileType classifies a path given to Open.
type FileType int

const (
	TypeUnknown FileType = iota
	TypeAtlas
	TypeMap
	TypeTarAtlas
	TypeTarMap
)

func (t FileType) String() string {
	switch t {
	case TypeAtlas:
		return "atlas"
	case TypeMap:
		return "map"
	case TypeTarAtlas:
		return "tar-atlas"
	case TypeTarMap:
		return "tar-map"
	}
	return "unknown"
}

// IsAtlas reports whether t holds layers of maps.
func (t FileType) IsAtlas() bool {
	return t == TypeAtlas || t == TypeTarAtlas
}

func validAtlas(content []byte) bool {
	return strings.TrimSpace(string(content)) == AtlasHeader
}

func validMap(content []byte) bool {
	return strings.HasPrefix(string(content), mapfile.Header)
}

// CheckFileType inspects the file at name by extension and content.
func CheckFileType(name string) (FileType, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".tba":
		data, err := os.ReadFile(name)
		if err != nil {
			return TypeUnknown, fmt.Errorf("%w: %w", vfs.ErrFilesystemIO, err)
		}
		if validAtlas(data) {
			return TypeAtlas, nil
		}
	case ".map":
		ok, err := mapHeaderFile(name)
		if err != nil {
			return TypeUnknown, err
		}
		if ok {
			return TypeMap, nil
		}
	case ".tar":
		t, err := vfs.OpenTar(name)
		if err != nil {
			return TypeUnknown, err
		}
		defer t.Close()
		ft, _, err := inspectTar(t)
		return ft, err
	}
	return TypeUnknown, nil
}

func mapHeaderFile(name string) (bool, error) {
	f, err := os.Open(name)
	if err != nil {
		return false, fmt.Errorf("%w: %w", vfs.ErrFilesystemIO, err)
	}
	defer f.Close()

	buf := make([]byte, len(mapfile.Header))
	if _, err := io.ReadFull(f, buf); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return false, nil
		}
		return false, fmt.Errorf("%w: %w", vfs.ErrFilesystemIO, err)
	}
	return validMap(buf), nil
}

// inspectTar finds the member that decides the archive type: the first .tba
// member if any, else the first .map member. It returns that member's name.
func inspectTar(t *vfs.Tar) (FileType, string, error) {
	var tba, mp string
	for _, m := range t.Members() {
		switch strings.ToLower(path.Ext(m)) {
		case ".tba":
			if tba == "" {
				tba = m
			}
		case ".map":
			if mp == "" {
				mp = m
			}
		}
	}

	switch {
	case tba != "":
		data, err := t.ReadBytes(tba)
		if err != nil {
			return TypeUnknown, "", err
		}
		if validAtlas(data) {
			return TypeTarAtlas, tba, nil
		}
	case mp != "":
		data, err := t.ReadBytes(mp)
		if err != nil {
			return TypeUnknown, "", err
		}
		if validMap(data) {
			return TypeTarMap, mp, nil
		}
	}
	return TypeUnknown, "", nil
}
