package scraper

import (
	"fmt"

	"github.com/maltedev/mercadona-scraper/internal/models"
)

// RowReader exposes the last persisted row of the record store.
type RowReader interface {
	LastRow() ([]string, error)
}

// ComputeResumeCursor derives the skip-forward cursor from the last stored
// row. A missing or empty store yields an inactive cursor.
func ComputeResumeCursor(store RowReader) (models.ResumeCursor, error) {
	row, err := store.LastRow()
	if err != nil {
		return models.ResumeCursor{}, fmt.Errorf("failed to read last record: %w", err)
	}
	return models.CursorFromRow(row), nil
}
