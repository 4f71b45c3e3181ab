package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// NewLogger builds the JSON logger used as slog default.
// When LogDir is set, output is also written to a timestamped file; the returned
// closer must be called on shutdown.
func NewLogger(cfg *Config) (*slog.Logger, io.Closer, error) {
	logLevel := slog.LevelInfo
	if cfg.Environment == "dev" || cfg.Debug {
		logLevel = slog.LevelDebug
	}

	var out io.Writer = os.Stdout
	var closer io.Closer = io.NopCloser(nil)
	if cfg.LogDir != "" {
		f, err := SetupLogFile(cfg.LogDir, cfg.LogMaxFiles)
		if err != nil {
			return nil, nil, err
		}
		out = io.MultiWriter(os.Stdout, f)
		closer = f
	}

	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: logLevel}))
	return logger, closer, nil
}

// SetupLogFile creates a new timestamped log file and cleans up old files.
// Returns the file handle (caller must close) or error.
func SetupLogFile(dir string, maxFiles int) (*os.File, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	filename := filepath.Join(dir, fmt.Sprintf("margin-%s.log",
		time.Now().Format("2006-01-02T15-04-05")))

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create log file: %w", err)
	}

	// Logging still works if cleanup fails
	if err := pruneLogs(dir, maxFiles); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to prune old logs: %v\n", err)
	}

	return f, nil
}

// pruneLogs keeps the maxFiles most recent log files.
func pruneLogs(dir string, maxFiles int) error {
	files, err := filepath.Glob(filepath.Join(dir, "margin-*.log"))
	if err != nil {
		return err
	}
	if maxFiles < 1 || len(files) <= maxFiles {
		return nil
	}

	// Timestamped names sort chronologically
	sort.Strings(files)
	for _, name := range files[:len(files)-maxFiles] {
		if err := os.Remove(name); err != nil {
			return fmt.Errorf("remove %s: %w", name, err)
		}
	}
	return nil
}
