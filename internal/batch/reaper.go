package batch

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"photoTagger/internal/progress"
)

// Cleanup deletes the batch directories and its progress record. It is safe
// to call for unknown or already removed batches.
func Cleanup(ws *Workspace, store progress.Store, id string) error {
	return errors.Join(ws.Remove(id), store.Delete(id))
}

// Reaper removes batches whose directories are older than Retention. It does
// not coordinate with batches still being processed.
type Reaper struct {
	Workspace *Workspace
	Progress  progress.Store
	Retention time.Duration
	Log       logrus.FieldLogger
}

// Reap runs one pass and returns the number of batches removed.
func (r *Reaper) Reap(now time.Time) (int, error) {
	cutoff := now.Add(-r.Retention)
	stale := make(map[string]bool)
	for _, root := range []string{r.Workspace.uploadsRoot(), r.Workspace.processedRoot()} {
		entries, err := os.ReadDir(root)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return 0, err
		}
		for _, e := range entries {
			if !e.IsDir() || !ValidID(e.Name()) {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			if info.ModTime().Before(cutoff) {
				stale[e.Name()] = true
			}
		}
	}

	var errs []error
	for id := range stale {
		if err := Cleanup(r.Workspace, r.Progress, id); err != nil {
			errs = append(errs, err)
			continue
		}
		r.log().WithField("batch_id", id).Info("reaped expired batch")
	}
	return len(stale) - len(errs), errors.Join(errs...)
}

// Run reaps once immediately and then every interval until ctx is done.
func (r *Reaper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if n, err := r.Reap(time.Now()); err != nil {
			r.log().WithError(err).Warn("reaper pass failed")
		} else if n > 0 {
			r.log().WithField("removed", n).Info("reaper pass complete")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (r *Reaper) log() logrus.FieldLogger {
	if r.Log == nil {
		return logrus.StandardLogger()
	}
	return r.Log
}
