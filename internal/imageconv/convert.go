// Package imageconv normalises uploaded rasters to baseline JPEG before
// metadata is written.
package imageconv

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// Quality is the JPEG quality used for intermediate conversions.
const Quality = 95

// ErrUnidentified is returned when the input cannot be decoded as an image.
var ErrUnidentified = errors.New("cannot identify image file")

// IsAllowed reports whether filename has an accepted upload extension.
// Every accepted extension has a registered decoder; HEIC/HEIF has none
// and is rejected at upload.
func IsAllowed(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png", ".jpg", ".jpeg", ".tiff", ".tif", ".bmp", ".webp":
		return true
	}
	return false
}

// JPEGName replaces the extension of name with .jpg, keeping any directories.
func JPEGName(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + ".jpg"
}

// NeedsConversion reports whether path is anything other than an RGB JPEG.
// The check only reads the header.
func NeedsConversion(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return false, fmt.Errorf("%w %s: %v", ErrUnidentified, filepath.Base(path), err)
	}
	if format != "jpeg" {
		return true, nil
	}
	switch cfg.ColorModel {
	case color.YCbCrModel, color.RGBAModel, color.NRGBAModel:
		return false, nil
	}
	return true, nil
}

// ToJPEG decodes src and re-encodes it to dst as an RGB JPEG.
func ToJPEG(src, dst string) error {
	img, err := imaging.Open(src)
	if err != nil {
		return fmt.Errorf("%w %s: %v", ErrUnidentified, filepath.Base(src), err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create conversion directory: %w", err)
	}
	if err := imaging.Save(img, dst, imaging.JPEGQuality(Quality)); err != nil {
		return fmt.Errorf("failed to save converted image: %w", err)
	}
	return nil
}

// Normalize returns a path holding src as an RGB JPEG. When conversion is
// needed the result is written to tmp and converted is true; the caller owns
// removing it.
func Normalize(src, tmp string) (path string, converted bool, err error) {
	needs, err := NeedsConversion(src)
	if err != nil {
		return "", false, err
	}
	if !needs {
		return src, false, nil
	}
	if err := ToJPEG(src, tmp); err != nil {
		return "", false, err
	}
	return tmp, true, nil
}
