package batch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"photoTagger/internal/archive"
)

// ArchiveName is the download filename offered for a batch archive.
const ArchiveName = "geotagged_images.zip"

// Workspace lays batches out under a root directory:
//
//	<root>/uploads/<batch>    saved uploads and intermediate conversions
//	<root>/processed/<batch>  tagged outputs and the cached archive
type Workspace struct {
	Root string

	locks sync.Map
}

func NewWorkspace(root string) *Workspace {
	return &Workspace{Root: root}
}

func (w *Workspace) uploadsRoot() string   { return filepath.Join(w.Root, "uploads") }
func (w *Workspace) processedRoot() string { return filepath.Join(w.Root, "processed") }

// UploadDir returns the directory holding the batch's temporary uploads.
func (w *Workspace) UploadDir(id string) string { return filepath.Join(w.uploadsRoot(), id) }

// OutputDir returns the directory holding the batch's tagged outputs.
func (w *Workspace) OutputDir(id string) string { return filepath.Join(w.processedRoot(), id) }

// ArchivePath returns where the batch archive is cached.
func (w *Workspace) ArchivePath(id string) string {
	return filepath.Join(w.OutputDir(id), "geotagged_images_"+id+".zip")
}

// create makes both batch directories. The output directory must not exist
// yet; an existing one means the ID is taken.
func (w *Workspace) create(id string) error {
	for _, root := range []string{w.uploadsRoot(), w.processedRoot()} {
		if err := os.MkdirAll(root, os.ModePerm); err != nil {
			return fmt.Errorf("failed to create batch directories: %w", err)
		}
	}
	if err := os.Mkdir(w.OutputDir(id), os.ModePerm); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrBatchExists, id)
		}
		return fmt.Errorf("failed to create batch directories: %w", err)
	}
	if err := os.MkdirAll(w.UploadDir(id), os.ModePerm); err != nil {
		os.RemoveAll(w.OutputDir(id))
		return fmt.Errorf("failed to create batch directories: %w", err)
	}
	return nil
}

// Remove deletes both batch directories and forgets the batch lock.
// Missing directories are not an error.
func (w *Workspace) Remove(id string) error {
	unlock := w.lock(id)
	defer unlock()
	defer w.locks.Delete(id)

	var errs []error
	for _, dir := range []string{w.UploadDir(id), w.OutputDir(id)} {
		if err := os.RemoveAll(dir); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *Workspace) lock(id string) func() {
	v, _ := w.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// EnsureArchive returns the path of the batch archive, building it from the
// output tree if it is not there yet.
func (w *Workspace) EnsureArchive(id string) (string, error) {
	unlock := w.lock(id)
	defer unlock()

	dst := w.ArchivePath(id)
	if _, err := os.Stat(dst); err == nil {
		return dst, nil
	}
	entries, err := w.outputs(id)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("%w: no outputs for batch %s", ErrNotFound, id)
	}
	if err := archive.Write(dst, entries); err != nil {
		return "", fmt.Errorf("%w: %v", ErrArchive, err)
	}
	return dst, nil
}

func (w *Workspace) writeArchive(id string, entries []archive.Entry) error {
	unlock := w.lock(id)
	defer unlock()
	return archive.Write(w.ArchivePath(id), entries)
}

// outputs lists tagged files under the batch output tree in lexical order.
func (w *Workspace) outputs(id string) ([]archive.Entry, error) {
	root := w.OutputDir(id)
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("%w: batch %s", ErrNotFound, id)
	}
	var entries []archive.Entry
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(p), ".jpg") {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		entries = append(entries, archive.Entry{Path: p, Name: filepath.ToSlash(rel)})
		return nil
	})
	return entries, err
}

// FindOutput resolves filename inside the batch output tree. A path
// relative to the tree, as used in the archive, is tried first; otherwise the
// tree is searched, subdirectories included, for the first file with the
// same base name.
func (w *Workspace) FindOutput(id, filename string) (string, error) {
	rel := strings.TrimPrefix(path.Clean("/"+filepath.ToSlash(filename)), "/")
	name := path.Base(rel)
	if rel == "" || name == "." || name == ".." || name == filepath.Base(w.ArchivePath(id)) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, filename)
	}
	root := w.OutputDir(id)
	if _, err := os.Stat(root); err != nil {
		return "", fmt.Errorf("%w: batch %s", ErrNotFound, id)
	}

	exact := filepath.Join(root, filepath.FromSlash(rel))
	if fi, err := os.Stat(exact); err == nil && fi.Mode().IsRegular() {
		return exact, nil
	}

	var found string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() == name {
			found = p
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if found == "" {
		return "", fmt.Errorf("%w: file %s not found in batch %s", ErrNotFound, name, id)
	}
	return found, nil
}
