package storage

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// ErrorLog is the append-only diagnostic file. Each Record call produces
// exactly one line.
type ErrorLog struct {
	mu       sync.Mutex
	file     *os.File
	logger   *slog.Logger
	filename string
}

// NewErrorLog opens filename for appending.
func NewErrorLog(filename string) (*ErrorLog, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, &WriteError{Path: filename, Err: err}
	}

	return &ErrorLog{
		file:     f,
		logger:   slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug})),
		filename: filename,
	}, nil
}

// Record appends one diagnostic line. Newlines in msg are folded so a single
// event never spans several lines.
func (l *ErrorLog) Record(msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.logger.Log(context.Background(), slog.LevelError, foldLines(msg), args...)
}

func (l *ErrorLog) Path() string {
	return l.filename
}

func (l *ErrorLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.file.Close()
}

func foldLines(s string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(s, "\n", " ")), " ")
}
