// Package imaging decodes, scales and encodes tile images.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"math"

	"golang.org/x/image/draw"
)

// ErrUnknownFormat is returned for data that is neither PNG nor JPEG.
var ErrUnknownFormat = errors.New("unrecognized image format")

var (
	pngMagic  = []byte{0x89, 0x50, 0x4E, 0x47}
	jpegMagic = []byte{0xFF, 0xD8}
)

// Codec turns tile bytes into images and scales them.
type Codec interface {
	Decode(data []byte) (image.Image, error)
	Resize(img image.Image, width, height int) image.Image
}

// Default decodes PNG and JPEG and scales with Catmull-Rom.
type Default struct{}

// NewCodec returns the default codec.
func NewCodec() *Default {
	return &Default{}
}

// Decode detects the image format from its magic bytes and decodes it.
func (Default) Decode(data []byte) (image.Image, error) {
	switch {
	case bytes.HasPrefix(data, pngMagic):
		return png.Decode(bytes.NewReader(data))
	case bytes.HasPrefix(data, jpegMagic):
		return jpeg.Decode(bytes.NewReader(data))
	}
	return nil, ErrUnknownFormat
}

// Resize scales img to exactly width x height.
func (Default) Resize(img image.Image, width, height int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}

// Scale resizes img by factor using c, rounding the target size.
func Scale(c Codec, img image.Image, factor float64) (image.Image, error) {
	b := img.Bounds()
	w := int(math.Round(float64(b.Dx()) * factor))
	h := int(math.Round(float64(b.Dy()) * factor))
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("scale %v of %dx%d image gives empty size", factor, b.Dx(), b.Dy())
	}
	return c.Resize(img, w, h), nil
}

// Crop copies the r part of img into a new image with origin (0,0).
func Crop(img image.Image, r image.Rectangle) image.Image {
	r = r.Intersect(img.Bounds())
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)
	return dst
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var out bytes.Buffer
	if err := png.Encode(&out, img); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// EncodeJPEG encodes img as JPEG with the given quality.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var out bytes.Buffer
	if err := jpeg.Encode(&out, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
