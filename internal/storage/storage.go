package storage

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/maltedev/mercadona-scraper/internal/models"
)

// DefaultDelimiter never occurs in product descriptions, unlike a comma.
const DefaultDelimiter = '$'

// WriteError is a failed filesystem write.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// RecordStore is the append-only, delimiter-separated product file.
type RecordStore struct {
	mu            sync.Mutex
	filename      string
	delimiter     rune
	headerChecked bool
}

// NewRecordStore creates a store appending to filename. A zero delimiter
// selects DefaultDelimiter.
func NewRecordStore(filename string, delimiter rune) (*RecordStore, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}
	if delimiter == 0 {
		delimiter = DefaultDelimiter
	}
	return &RecordStore{
		filename:  filename,
		delimiter: delimiter,
	}, nil
}

func (s *RecordStore) Path() string {
	return s.filename
}

// EnsureHeader writes the header row if the store is empty. Later calls are
// no-ops, so the header is written at most once per process.
func (s *RecordStore) EnsureHeader() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ensureHeaderLocked()
}

func (s *RecordStore) ensureHeaderLocked() error {
	if s.headerChecked {
		return nil
	}

	info, err := os.Stat(s.filename)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return &WriteError{Path: s.filename, Err: err}
	}

	if err != nil || info.Size() == 0 {
		if err := s.appendRow(models.Header); err != nil {
			return err
		}
	}

	s.headerChecked = true
	return nil
}

// Append writes one record as a single write call.
func (s *RecordStore) Append(ctx context.Context, record models.ProductRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureHeaderLocked(); err != nil {
		return err
	}
	return s.appendRow(record.Row())
}

func (s *RecordStore) appendRow(row []string) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = s.delimiter
	if err := w.Write(row); err != nil {
		return fmt.Errorf("encode row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("encode row: %w", err)
	}

	f, err := os.OpenFile(s.filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return &WriteError{Path: s.filename, Err: err}
	}

	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return &WriteError{Path: s.filename, Err: err}
	}

	if err := f.Close(); err != nil {
		return &WriteError{Path: s.filename, Err: err}
	}
	return nil
}

// LastRow returns the last data row, or nil when the store is missing, empty
// or holds only the header. Rows that fail to parse are skipped.
func (s *RecordStore) LastRow() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.filename)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open record store: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = s.delimiter
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	var last []string
	first := true
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read record store: %w", err)
		}

		if first {
			first = false
			if slices.Equal(row, models.Header) {
				continue
			}
		}
		last = row
	}

	return last, nil
}

// Rows returns every data row in file order.
func (s *RecordStore) Rows() ([][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.filename)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open record store: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = s.delimiter
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read record store: %w", err)
	}
	if len(rows) > 0 && slices.Equal(rows[0], models.Header) {
		rows = rows[1:]
	}
	return rows, nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
