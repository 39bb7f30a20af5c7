package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

const (
	maxLogSizeBytes  = 6 * 1024 * 1024
	keepLogSizeBytes = 5 * 1024 * 1024
)

// logFileWriter appends to a file and drops the oldest bytes once it grows
// past maxSize, keeping the newest keepSize bytes.
type logFileWriter struct {
	mu       sync.Mutex
	file     *os.File
	size     int64
	maxSize  int64
	keepSize int64
}

func newLogFileWriter(path string) (*logFileWriter, *os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, nil, fmt.Errorf("stat log file: %w", err)
	}

	w := &logFileWriter{
		file:     file,
		size:     info.Size(),
		maxSize:  maxLogSizeBytes,
		keepSize: keepLogSizeBytes,
	}
	if err := w.trim(); err != nil {
		file.Close()
		return nil, nil, err
	}
	return w, file, nil
}

func (w *logFileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n, err := w.file.Write(p)
	w.size += int64(n)
	if err != nil {
		return n, err
	}
	return n, w.trim()
}

func (w *logFileWriter) trim() error {
	if w.size <= w.maxSize {
		return nil
	}

	tail := make([]byte, w.keepSize)
	n, err := w.file.ReadAt(tail, w.size-w.keepSize)
	if err != nil && err != io.EOF {
		return fmt.Errorf("read log tail: %w", err)
	}
	tail = tail[:n]

	if err := w.file.Truncate(0); err != nil {
		return fmt.Errorf("truncate log file: %w", err)
	}
	// O_APPEND writes land at the new end of file.
	if _, err := w.file.Write(tail); err != nil {
		return fmt.Errorf("rewrite log tail: %w", err)
	}
	w.size = int64(len(tail))
	return nil
}
