// Package logging configures the process-wide slog.Logger used across
// hybridsearch: a JSON handler writing to a size-rotated file, optionally
// tee'd to stderr for interactive runs.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Config controls Setup's behavior.
type Config struct {
	Level        slog.Level
	FilePath     string
	MaxSizeMB    int
	MaxFiles     int
	WriteToStderr bool
}

// DefaultConfig writes info-level JSON logs to <dataDir>/hybridsearch.log,
// rotated at 10MB, keeping 3 backups, with no stderr echo.
func DefaultConfig(dataDir string) Config {
	return Config{
		Level:     slog.LevelInfo,
		FilePath:  filepath.Join(dataDir, "hybridsearch.log"),
		MaxSizeMB: 10,
		MaxFiles:  3,
	}
}

// DebugConfig is DefaultConfig with debug level and a stderr echo, for CLI
// interactive use (`hybridsearch query ...`).
func DebugConfig(dataDir string) Config {
	c := DefaultConfig(dataDir)
	c.Level = slog.LevelDebug
	c.WriteToStderr = true
	return c
}

// Setup creates the rotating file writer and installs the global slog
// default logger. It returns a closer that should be deferred.
func Setup(cfg Config) (func() error, error) {
	if cfg.FilePath == "" {
		return func() error { return nil }, fmt.Errorf("logging: FilePath is required")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
		return nil, fmt.Errorf("logging: create log dir: %w", err)
	}

	rot := &rotatingWriter{
		path:       cfg.FilePath,
		maxBytes:   int64(cfg.MaxSizeMB) * 1024 * 1024,
		maxBackups: cfg.MaxFiles,
	}
	if err := rot.open(); err != nil {
		return nil, fmt.Errorf("logging: open log file: %w", err)
	}

	var w io.Writer = rot
	if cfg.WriteToStderr {
		w = io.MultiWriter(rot, os.Stderr)
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: cfg.Level})
	slog.SetDefault(slog.New(handler))

	return rot.Close, nil
}

// SetupDefault wires DefaultConfig(dataDir) and discards the closer; useful
// for tests and short-lived CLI invocations that don't need an explicit
// shutdown hook.
func SetupDefault(dataDir string) error {
	_, err := Setup(DefaultConfig(dataDir))
	return err
}

// LevelFromString parses "debug"/"info"/"warn"/"error" (case-insensitive),
// defaulting to info on an unrecognized value.
func LevelFromString(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// rotatingWriter is a minimal size-based log rotator: once the current file
// exceeds maxBytes it is renamed to path.1 (shifting older backups up to
// maxBackups) and a fresh file is opened.
type rotatingWriter struct {
	path       string
	maxBytes   int64
	maxBackups int

	f    *os.File
	size int64
}

func (r *rotatingWriter) open() error {
	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	r.f = f
	r.size = info.Size()
	return nil
}

func (r *rotatingWriter) Write(p []byte) (int, error) {
	if r.maxBytes > 0 && r.size+int64(len(p)) > r.maxBytes {
		if err := r.rotate(); err != nil {
			return 0, err
		}
	}
	n, err := r.f.Write(p)
	r.size += int64(n)
	return n, err
}

func (r *rotatingWriter) rotate() error {
	if err := r.f.Close(); err != nil {
		return err
	}
	for i := r.maxBackups - 1; i >= 1; i-- {
		older := fmt.Sprintf("%s.%d", r.path, i)
		newer := fmt.Sprintf("%s.%d", r.path, i+1)
		if _, err := os.Stat(older); err == nil {
			_ = os.Rename(older, newer)
		}
	}
	if r.maxBackups > 0 {
		_ = os.Rename(r.path, r.path+".1")
	}
	return r.open()
}

func (r *rotatingWriter) Close() error {
	if r.f == nil {
		return nil
	}
	return r.f.Close()
}
