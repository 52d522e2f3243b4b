// Package exifread reads back what the writer put on disk, so the manifest
// reports the stored location and capture time rather than the requested one.
package exifread

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/mknote"
)

// exifLayout is the EXIF date-time format; values carry no zone.
const exifLayout = "2006:01:02 15:04:05"

// Summary is the read-back reported per processed output.
type Summary struct {
	Latitude    float64
	Longitude   float64
	HasLocation bool
	// Taken is DateTimeOriginal as stored, in UTC with no zone applied.
	// Zero when absent.
	Taken time.Time
}

func init() {
	exif.RegisterParsers(mknote.All...)
}

// Read decodes the GPS position and DateTimeOriginal from path. An error
// is returned only when the file carries no decodable EXIF block.
func Read(path string) (*Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode exif: %w", err)
	}

	s := &Summary{}
	s.Latitude, s.Longitude, err = x.LatLong()
	s.HasLocation = err == nil
	if !s.HasLocation {
		s.Latitude, s.Longitude = 0, 0
	}
	s.Taken = taken(x)
	return s, nil
}

func taken(x *exif.Exif) time.Time {
	tag, err := x.Get(exif.DateTimeOriginal)
	if err != nil {
		return time.Time{}
	}
	raw, err := tag.StringVal()
	if err != nil {
		return time.Time{}
	}
	t, err := time.Parse(exifLayout, strings.TrimRight(strings.TrimSpace(raw), "\x00"))
	if err != nil {
		return time.Time{}
	}
	return t
}
