// Package exiftool writes tag sets into image files by running the exiftool
// command line program once per file.
package exiftool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"photoTagger/internal/tags"
)

// DefaultTimeout bounds a single exiftool invocation.
const DefaultTimeout = 60 * time.Second

// baseArgs edit the file in place, declare UTF-8 IPTC text and ignore minor
// warnings.
var baseArgs = []string{"-overwrite_original", "-codedcharacterset=utf8", "-m"}

// ExitError is returned when exiftool exits non-zero or cannot be started.
type ExitError struct {
	Path   string
	Code   int
	Stderr string
	Err    error
}

func (e *ExitError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("exiftool failed for %s (exit %d): %s", filepath.Base(e.Path), e.Code, msg)
}

func (e *ExitError) Unwrap() error { return e.Err }

// Runner executes a command and returns its captured output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// Writer applies tag sets with exiftool.
type Writer struct {
	Binary  string
	Timeout time.Duration
	Runner  Runner
	Log     logrus.FieldLogger
}

// NewWriter returns a Writer running binary with the given timeout.
func NewWriter(binary string, timeout time.Duration, log logrus.FieldLogger) *Writer {
	if binary == "" {
		binary = "exiftool"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Writer{Binary: binary, Timeout: timeout, Runner: execRunner{}, Log: log}
}

// Args builds the exiftool argument list for set, ending with target.
// List values produce one argument per element.
func Args(set *tags.Set, target string) []string {
	args := append([]string(nil), baseArgs...)
	for _, k := range set.Keys() {
		v, _ := set.Get(k)
		if v.Empty() {
			continue
		}
		for _, item := range v.Items() {
			args = append(args, fmt.Sprintf("-%s=%s", k, item))
		}
	}
	return append(args, target)
}

// Write copies in to out and applies set to out in place. A single attempt
// is made; failures are returned as *ExitError or a copy error.
func (w *Writer) Write(ctx context.Context, in, out string, set *tags.Set) error {
	if err := copyFile(in, out); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, w.Timeout)
	defer cancel()

	args := Args(set, out)
	log := w.Log.WithField("file", filepath.Base(out))
	log.WithField("args", len(args)).Debug("running exiftool")

	stdout, stderr, err := w.Runner.Run(ctx, w.Binary, args...)
	if err != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %v", ctx.Err(), err)
		}
		log.WithFields(logrus.Fields{"code": code, "stderr": strings.TrimSpace(string(stderr))}).
			Error("exiftool write error")
		return &ExitError{Path: out, Code: code, Stderr: string(stderr), Err: err}
	}

	log.WithField("stdout", strings.TrimSpace(string(stdout))).Info("exiftool write successful")
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy file: %w", err)
	}
	return out.Close()
}
