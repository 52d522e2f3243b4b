package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7070", cfg.Addr)
	assert.Equal(t, filepath.Join(cfg.WorkDir, "progress.db"), cfg.ProgressDB)
	assert.Equal(t, 60*time.Second, cfg.ExifToolTimeout)
	assert.Equal(t, time.Hour, cfg.Retention)
	assert.Nil(t, cfg.Denylist)
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("PHOTOTAGGER_ADDR", ":9000")
	t.Setenv("PHOTOTAGGER_WORK_DIR", "/srv/tagger")
	t.Setenv("PHOTOTAGGER_RETENTION", "30m")
	t.Setenv("PHOTOTAGGER_MAX_UPLOAD_MB", "64")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, "/srv/tagger", cfg.WorkDir)
	assert.Equal(t, filepath.Join("/srv/tagger", "progress.db"), cfg.ProgressDB)
	assert.Equal(t, 30*time.Minute, cfg.Retention)
	assert.Equal(t, int64(64), cfg.MaxUploadMB)
}

func TestLoadBadEnvironment(t *testing.T) {
	t.Setenv("PHOTOTAGGER_EXIFTOOL_TIMEOUT", "soon")
	_, err := Load("")
	assert.ErrorContains(t, err, "PHOTOTAGGER_EXIFTOOL_TIMEOUT")
}

func TestLoadYAMLOverridesEnvironment(t *testing.T) {
	t.Setenv("PHOTOTAGGER_ADDR", ":9000")
	path := filepath.Join(t.TempDir(), "tagger.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: ":8081"
progress_db: memory
exiftool_timeout: 5s
denylist:
  - "File:"
  - "Composite:"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":8081", cfg.Addr)
	assert.Equal(t, "memory", cfg.ProgressDB)
	assert.Equal(t, 5*time.Second, cfg.ExifToolTimeout)
	assert.Equal(t, []string{"File:", "Composite:"}, cfg.Denylist)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("retention: 0s\n"), 0o644))
	_, err := Load(path)
	assert.ErrorContains(t, err, "retention")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSetupLogger(t *testing.T) {
	var buf bytes.Buffer
	log := SetupLogger(&buf, "debug", "json")
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	log.WithField("batch_id", "b1").Info("hello")
	assert.Contains(t, buf.String(), `"batch_id":"b1"`)

	buf.Reset()
	log = SetupLogger(&buf, "loud", "text")
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
	assert.Contains(t, buf.String(), "unknown log level")
}
