package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// newLogger logs to stderr in stdio mode so stdout carries only JSON-RPC.
// STUDYTRACK_LOG_PATH redirects logs to a size-capped file.
func newLogger(level, transportMode string) (*slog.Logger, func() error) {
	logWriter := io.Writer(os.Stdout)
	if transportMode == "stdio" {
		logWriter = os.Stderr
	}
	closeFn := func() error { return nil }
	if logPath := os.Getenv("STUDYTRACK_LOG_PATH"); logPath != "" {
		fileWriter, err := newLogFileWriter(logPath)
		if err != nil {
			slog.New(slog.NewTextHandler(os.Stderr, nil)).Warn("log file unavailable", "path", logPath, "error", err)
		} else {
			logWriter = fileWriter
			closeFn = fileWriter.Close
		}
	}
	logger := slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		Level: parseLogLevel(level),
	}))
	return logger, closeFn
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

const (
	maxLogSizeBytes  = 6 * 1024 * 1024
	keepLogSizeBytes = 5 * 1024 * 1024
)

// logFileWriter appends to a file and, once it grows past maxSize, keeps
// only the newest keepSize bytes.
type logFileWriter struct {
	mu       sync.Mutex
	file     *os.File
	maxSize  int64
	keepSize int64
}

func newLogFileWriter(path string) (*logFileWriter, error) {
	return newCappedFileWriter(path, maxLogSizeBytes, keepLogSizeBytes)
}

func newCappedFileWriter(path string, maxSize, keepSize int64) (*logFileWriter, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	w := &logFileWriter{file: file, maxSize: maxSize, keepSize: keepSize}
	if err := w.truncateIfNeeded(); err != nil {
		file.Close()
		return nil, err
	}
	return w, nil
}

func (w *logFileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n, err := w.file.Write(p)
	if err != nil {
		return n, err
	}
	return n, w.truncateIfNeeded()
}

func (w *logFileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

func (w *logFileWriter) truncateIfNeeded() error {
	info, err := w.file.Stat()
	if err != nil {
		return err
	}
	size := info.Size()
	if size <= w.maxSize {
		return nil
	}

	buf := make([]byte, w.keepSize)
	n, err := w.file.ReadAt(buf, size-w.keepSize)
	if err != nil && err != io.EOF {
		return err
	}
	buf = buf[:n]

	if err := w.file.Truncate(0); err != nil {
		return err
	}
	// O_APPEND writes land at the new end regardless of the offset.
	_, err = w.file.Write(buf)
	return err
}
