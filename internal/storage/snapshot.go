package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const snapshotPattern = "error_*.html"

// SnapshotStore writes raw markup dumps for post-mortem inspection.
type SnapshotStore struct {
	dir string
	now func() time.Time
}

// NewSnapshotStore creates a store writing into dir. The directory is
// created on the first Save.
func NewSnapshotStore(dir string) *SnapshotStore {
	return &SnapshotStore{
		dir: dir,
		now: time.Now,
	}
}

func (s *SnapshotStore) Dir() string {
	return s.dir
}

// Save writes html to error_<category>_<subcategory>_<unix>.html and returns
// the path. A numeric suffix keeps same-second snapshots apart.
func (s *SnapshotStore) Save(category, subcategory, html string) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", &WriteError{Path: s.dir, Err: err}
	}

	base := fmt.Sprintf("error_%s_%s_%d", safeName(category), safeName(subcategory), s.now().Unix())

	for i := 0; ; i++ {
		name := base + ".html"
		if i > 0 {
			name = fmt.Sprintf("%s_%d.html", base, i)
		}
		path := filepath.Join(s.dir, name)

		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", &WriteError{Path: path, Err: err}
		}

		if _, err := f.WriteString(html); err != nil {
			f.Close()
			return "", &WriteError{Path: path, Err: err}
		}
		if err := f.Close(); err != nil {
			return "", &WriteError{Path: path, Err: err}
		}
		return path, nil
	}
}

func safeName(s string) string {
	return strings.NewReplacer("/", "-", "\\", "-", string(os.PathSeparator), "-").Replace(s)
}

// RemoveArtifacts deletes the error log and every snapshot in snapshotDir.
// The record store is never touched. It returns the removed paths.
func RemoveArtifacts(errorLog, snapshotDir string) ([]string, error) {
	var removed []string

	if errorLog != "" {
		err := os.Remove(errorLog)
		switch {
		case err == nil:
			removed = append(removed, errorLog)
		case !errors.Is(err, os.ErrNotExist):
			return removed, fmt.Errorf("remove %s: %w", errorLog, err)
		}
	}

	if snapshotDir == "" {
		return removed, nil
	}

	matches, err := filepath.Glob(filepath.Join(snapshotDir, snapshotPattern))
	if err != nil {
		return removed, fmt.Errorf("list snapshots: %w", err)
	}
	for _, path := range matches {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, fmt.Errorf("remove %s: %w", path, err)
		}
		removed = append(removed, path)
	}

	return removed, nil
}
