package logger

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// DefaultBufferSize is the write buffer size for log files
const DefaultBufferSize = 32 * 1024

// DefaultFlushInterval is the interval between automatic flushes
const DefaultFlushInterval = 5 * time.Second

// BufferedFileWriter wraps a file with buffered I/O and periodic flushing.
// It is safe for concurrent use.
type BufferedFileWriter struct {
	mu            sync.Mutex
	file          io.WriteCloser
	writer        *bufio.Writer
	bufferSize    int
	flushInterval time.Duration
	stopFlush     chan struct{}
	flushDone     chan struct{}
	closed        bool
}

// BufferedWriterOption configures a BufferedFileWriter
type BufferedWriterOption func(*BufferedFileWriter)

// WithBufferSize sets the buffer size
func WithBufferSize(size int) BufferedWriterOption {
	return func(w *BufferedFileWriter) {
		if size > 0 {
			w.bufferSize = size
		}
	}
}

// WithFlushInterval sets the auto-flush interval. Zero disables auto-flush.
func WithFlushInterval(interval time.Duration) BufferedWriterOption {
	return func(w *BufferedFileWriter) {
		w.flushInterval = interval
	}
}

// NewBufferedFileWriter opens filePath for appending and starts auto-flush
func NewBufferedFileWriter(filePath string, opts ...BufferedWriterOption) (*BufferedFileWriter, error) {
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, LogFilePermissions) //nolint:gosec // path comes from config
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", filePath, err)
	}
	return newBufferedWriter(file, opts...), nil
}

// NewRotatingFileWriter buffers writes to a size rotated log file
func NewRotatingFileWriter(cfg *FileOutput, opts ...BufferedWriterOption) *BufferedFileWriter {
	return newBufferedWriter(&lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
		LocalTime:  true,
	}, opts...)
}

func newBufferedWriter(file io.WriteCloser, opts ...BufferedWriterOption) *BufferedFileWriter {
	w := &BufferedFileWriter{
		file:          file,
		bufferSize:    DefaultBufferSize,
		flushInterval: DefaultFlushInterval,
		stopFlush:     make(chan struct{}),
		flushDone:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.writer = bufio.NewWriterSize(file, w.bufferSize)

	if w.flushInterval > 0 {
		go w.autoFlushLoop()
	} else {
		close(w.flushDone)
	}
	return w
}

func (w *BufferedFileWriter) autoFlushLoop() {
	defer close(w.flushDone)

	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = w.Flush()
		case <-w.stopFlush:
			return
		}
	}
}

// Write appends p to the buffer
func (w *BufferedFileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, os.ErrClosed
	}
	return w.writer.Write(p)
}

// Flush writes buffered data to the file
func (w *BufferedFileWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	return w.writer.Flush()
}

// Close stops auto-flush, flushes, syncs and closes the file
func (w *BufferedFileWriter) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	if w.flushInterval > 0 {
		close(w.stopFlush)
	}
	<-w.flushDone

	if err := w.writer.Flush(); err != nil {
		_ = w.file.Close()
		return fmt.Errorf("failed to flush log buffer: %w", err)
	}
	if f, ok := w.file.(*os.File); ok {
		if err := f.Sync(); err != nil {
			_ = f.Close()
			return fmt.Errorf("failed to sync log file: %w", err)
		}
	}
	return w.file.Close()
}
