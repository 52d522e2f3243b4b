// Package batch runs a geotagging batch end to end: it saves uploads, tags
// and normalises each item in order, tracks progress, and packages the
// successful outputs for download.
package batch

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"photoTagger/internal/geo"
)

var (
	ErrNoFiles           = errors.New("no files provided")
	ErrPathCountMismatch = errors.New("mismatch between number of files and paths")
	ErrInvalidBatchID    = errors.New("invalid batch id")
	ErrBatchExists       = errors.New("batch id already in use")
	ErrNoValidFiles      = errors.New("no valid image files provided")
	ErrNothingProcessed  = errors.New("failed to process any files")
	ErrArchive           = errors.New("failed to create zip file")
	ErrNotFound          = errors.New("not found")
)

// Output formats accepted from clients. Final files are always JPEG.
const (
	FormatJPEG = "jpeg"
	FormatPNG  = "png"
	FormatTIFF = "tiff"
)

// NormalizeFormat lowercases f and falls back to FormatJPEG for unknown
// values.
func NormalizeFormat(f string) string {
	switch f = strings.ToLower(strings.TrimSpace(f)); f {
	case FormatJPEG, FormatPNG, FormatTIFF:
		return f
	}
	return FormatJPEG
}

// Upload is one submitted file. Open is called once while the batch saves
// its uploads.
type Upload struct {
	Filename     string
	RelativePath string
	Coordinates  *geo.Point
	Open         func() (io.ReadCloser, error)
}

// Request is a batch submission.
type Request struct {
	// BatchID is optional; when empty a new UUID is allocated.
	BatchID       string
	Uploads       []Upload
	Form          map[string]any
	Comprehensive json.RawMessage
	OutputFormat  string
}

// Output describes one successfully tagged file.
type Output struct {
	OriginalName string   `json:"original_name"`
	ArchivePath  string   `json:"archive_path"`
	URL          string   `json:"url"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	Taken        string   `json:"taken,omitempty"`

	path string
}

// Manifest is the result of a batch with at least one success.
type Manifest struct {
	BatchID      string
	OutputFormat string
	DownloadURL  string
	Outputs      []Output
	Errors       []string
}

// Failure is returned when a batch ends without a usable result. Reason is
// one of the package sentinels and Errors holds the per-item diagnostics.
type Failure struct {
	BatchID string
	Reason  error
	Errors  []string
	Err     error
}

func (f *Failure) Error() string {
	if d := f.Details(); d != "" {
		return f.Reason.Error() + ": " + d
	}
	return f.Reason.Error()
}

// Details joins the per-item errors, or the underlying cause when there are
// none.
func (f *Failure) Details() string {
	if len(f.Errors) > 0 {
		return strings.Join(f.Errors, "\n")
	}
	if f.Err != nil {
		return f.Err.Error()
	}
	return ""
}

func (f *Failure) Unwrap() []error {
	if f.Err != nil {
		return []error{f.Reason, f.Err}
	}
	return []error{f.Reason}
}

// Pair attaches relative paths to uploads. The lists must have equal length.
func Pair(uploads []Upload, paths []string) ([]Upload, error) {
	if len(uploads) == 0 {
		return nil, ErrNoFiles
	}
	if len(uploads) != len(paths) {
		return nil, fmt.Errorf("%w: received %d files but %d paths", ErrPathCountMismatch, len(uploads), len(paths))
	}
	out := make([]Upload, len(uploads))
	for i, u := range uploads {
		u.RelativePath = paths[i]
		out[i] = u
	}
	return out, nil
}

// ParseCoordinates parses a "lat,lng" pair. An empty string yields nil.
func ParseCoordinates(s string) (*geo.Point, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	latS, lngS, ok := strings.Cut(s, ",")
	if !ok {
		return nil, fmt.Errorf("invalid coordinates %q", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latS), 64)
	if err != nil || lat < -90 || lat > 90 {
		return nil, fmt.Errorf("invalid latitude in %q", s)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngS), 64)
	if err != nil || lng < -180 || lng > 180 {
		return nil, fmt.Errorf("invalid longitude in %q", s)
	}
	return &geo.Point{Lat: lat, Lng: lng}, nil
}

// ValidID reports whether id is a canonical batch identifier.
func ValidID(id string) bool {
	u, err := uuid.Parse(id)
	return err == nil && u.String() == strings.ToLower(id)
}

func newID(requested string) (string, error) {
	if requested == "" {
		return uuid.NewString(), nil
	}
	if !ValidID(requested) {
		return "", fmt.Errorf("%w: %q", ErrInvalidBatchID, requested)
	}
	return strings.ToLower(requested), nil
}
