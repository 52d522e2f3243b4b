package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"photoTagger/internal/archive"
	"photoTagger/internal/exifread"
	"photoTagger/internal/geo"
	"photoTagger/internal/imageconv"
	"photoTagger/internal/progress"
	"photoTagger/internal/tags"
)

// Resolver builds the tag set for one item.
type Resolver interface {
	Resolve(in tags.Input) (*tags.Set, error)
}

// MetadataWriter copies in to out and writes set into out.
type MetadataWriter interface {
	Write(ctx context.Context, in, out string, set *tags.Set) error
}

// Orchestrator processes batches synchronously, one item at a time in
// submission order. Different batches may run concurrently.
type Orchestrator struct {
	Workspace *Workspace
	Resolver  Resolver
	Writer    MetadataWriter
	Progress  progress.Store
	Log       logrus.FieldLogger

	// Normalize and ReadBack default to imageconv.Normalize and exifread.Read.
	Normalize func(src, tmp string) (string, bool, error)
	ReadBack  func(path string) (*exifread.Summary, error)
}

// item is a saved upload awaiting processing.
type item struct {
	name     string
	relPath  string
	tempPath string
	coords   *geo.Point
}

func (o *Orchestrator) logger() logrus.FieldLogger {
	if o.Log == nil {
		return logrus.StandardLogger()
	}
	return o.Log
}

// DownloadURL is the archive download path for a batch.
func DownloadURL(id string) string {
	return "/api/geotagging/download/" + id + "/zip"
}

// SingleURL is the download path for one output of a batch, addressed by
// its path inside the archive.
func SingleURL(id, archivePath string) string {
	return "/api/geotagging/download/" + id + "/single?filename=" + url.QueryEscape(archivePath)
}

// Process runs the batch described by req. Request-level problems are
// returned before anything touches disk; batch-level problems come back as
// *Failure.
func (o *Orchestrator) Process(ctx context.Context, req Request) (*Manifest, error) {
	if len(req.Uploads) == 0 {
		return nil, ErrNoFiles
	}
	id, err := newID(req.BatchID)
	if err != nil {
		return nil, err
	}
	if err := o.Workspace.create(id); err != nil {
		return nil, err
	}
	defer os.RemoveAll(o.Workspace.UploadDir(id))

	log := o.logger().WithField("batch_id", id)
	format := NormalizeFormat(req.OutputFormat)

	items, errs := o.save(log, id, req.Uploads)
	if len(items) == 0 {
		o.Workspace.Remove(id)
		o.Progress.Delete(id)
		log.WithField("errors", len(errs)).Error("no uploads could be saved")
		return nil, &Failure{BatchID: id, Reason: ErrNoValidFiles, Errors: errs}
	}
	if err := o.Progress.Set(id, 0); err != nil {
		log.WithError(err).Warn("failed to record progress")
	}

	useRandom, region, err := tags.Options(req.Form)
	if err != nil {
		log.WithError(err).Warn("ignoring malformed preset")
	}

	var outputs []Output
	used := make(map[string]bool)
	for i, it := range items {
		in := tags.Input{
			Form:              req.Form,
			Comprehensive:     req.Comprehensive,
			UseRandomLocation: useRandom,
			Region:            region,
			Coordinates:       it.coords,
		}
		out, err := o.processItem(ctx, log, id, it, in, used)
		if err != nil {
			log.WithField("file", it.name).WithError(err).Error("item failed")
			errs = append(errs, err.Error())
		} else {
			outputs = append(outputs, out)
		}
		if done := i + 1; done < len(items) {
			o.setProgress(log, id, 100*done/len(items))
		}
	}
	// Reached exactly once per batch, whether or not anything succeeded.
	defer o.setProgress(log, id, 100)

	if len(outputs) == 0 {
		return nil, &Failure{BatchID: id, Reason: ErrNothingProcessed, Errors: errs}
	}

	entries := make([]archive.Entry, len(outputs))
	for i, out := range outputs {
		entries[i] = archive.Entry{Path: out.path, Name: out.ArchivePath}
	}
	if err := o.Workspace.writeArchive(id, entries); err != nil {
		log.WithError(err).Error("failed to create zip file")
		return nil, &Failure{BatchID: id, Reason: ErrArchive, Err: err}
	}

	log.WithFields(logrus.Fields{"processed": len(outputs), "failed": len(errs)}).Info("batch complete")
	return &Manifest{
		BatchID:      id,
		OutputFormat: format,
		DownloadURL:  DownloadURL(id),
		Outputs:      outputs,
		Errors:       errs,
	}, nil
}

func (o *Orchestrator) setProgress(log logrus.FieldLogger, id string, percent int) {
	if err := o.Progress.Set(id, percent); err != nil {
		log.WithError(err).WithField("percent", percent).Warn("failed to record progress")
	}
}

// save persists each allowed upload under a generated name. Failures are
// returned as error strings and do not count toward the item total.
func (o *Orchestrator) save(log logrus.FieldLogger, id string, uploads []Upload) ([]item, []string) {
	var items []item
	var errs []string
	for _, u := range uploads {
		name := filepath.Base(filepath.FromSlash(u.Filename))
		if !imageconv.IsAllowed(name) {
			errs = append(errs, fmt.Sprintf("Unsupported file type for %s", name))
			continue
		}
		rel := u.RelativePath
		if strings.TrimSpace(rel) == "" {
			rel = name
		}
		tmp := filepath.Join(o.Workspace.UploadDir(id), uuid.NewString()+strings.ToLower(filepath.Ext(name)))
		if err := saveUpload(u, tmp); err != nil {
			log.WithField("file", name).WithError(err).Error("error saving upload")
			errs = append(errs, fmt.Sprintf("Error saving file %s: %v", name, err))
			continue
		}
		items = append(items, item{name: name, relPath: rel, tempPath: tmp, coords: u.Coordinates})
	}
	return items, errs
}

func saveUpload(u Upload, dst string) error {
	if u.Open == nil {
		return errors.New("upload has no content")
	}
	src, err := u.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		os.Remove(dst)
		return err
	}
	return f.Close()
}

// processItem tags one item. The saved upload and any intermediate JPEG are
// removed on every return path.
func (o *Orchestrator) processItem(ctx context.Context, log logrus.FieldLogger, id string, it item, in tags.Input, used map[string]bool) (out Output, err error) {
	var converted string
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("Unhandled error processing %s: %v", it.name, r)
		}
		os.Remove(it.tempPath)
		if converted != "" {
			os.Remove(converted)
		}
	}()

	set, err := o.Resolver.Resolve(in)
	if err != nil {
		return Output{}, fmt.Errorf("Invalid metadata provided for %s: %w", it.name, err)
	}

	normalize := o.Normalize
	if normalize == nil {
		normalize = imageconv.Normalize
	}
	tmp := filepath.Join(o.Workspace.UploadDir(id), uuid.NewString()+".jpg")
	src, didConvert, err := normalize(it.tempPath, tmp)
	if didConvert {
		converted = src
	}
	if err != nil {
		os.Remove(tmp)
		if errors.Is(err, imageconv.ErrUnidentified) {
			return Output{}, fmt.Errorf("Cannot identify image file %s. Please ensure it's a valid image file", it.name)
		}
		return Output{}, fmt.Errorf("Error processing %s: %w", it.name, err)
	}

	archiveName := uniqueName(archive.CleanName(imageconv.JPEGName(it.relPath)), used)
	dst := filepath.Join(o.Workspace.OutputDir(id), filepath.FromSlash(archiveName))
	if err := o.Writer.Write(ctx, src, dst, set); err != nil {
		os.Remove(dst)
		return Output{}, fmt.Errorf("Error processing %s: geotagging failed during metadata write: %w", it.name, err)
	}
	used[archiveName] = true

	out = Output{
		OriginalName: it.name,
		ArchivePath:  archiveName,
		URL:          SingleURL(id, archiveName),
		path:         dst,
	}
	readBack := o.ReadBack
	if readBack == nil {
		readBack = exifread.Read
	}
	if s, err := readBack(dst); err != nil {
		log.WithField("file", it.name).WithError(err).Debug("no exif read back")
	} else {
		if s.HasLocation {
			lat, lng := s.Latitude, s.Longitude
			out.Latitude, out.Longitude = &lat, &lng
		}
		if !s.Taken.IsZero() {
			out.Taken = s.Taken.Format("2006-01-02T15:04:05")
		}
	}
	log.WithFields(logrus.Fields{"file": it.name, "archive_path": archiveName}).Info("item processed")
	return out, nil
}

// uniqueName suffixes name until it does not collide with an earlier output
// of the same batch.
func uniqueName(name string, used map[string]bool) string {
	if !used[name] {
		return name
	}
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s_%d%s", base, n, ext)
		if !used[candidate] {
			return candidate
		}
	}
}
