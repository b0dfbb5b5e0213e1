package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/mercadona-scraper/internal/models"
)

// ProductRow is a mirrored record as stored in product_record.
type ProductRow struct {
	ID         uuid.UUID `db:"id"`
	RunID      string    `db:"run_id"`
	RecordedAt time.Time `db:"recorded_at"`
	models.ProductRecord
}

// ProductRepository writes mirrored records.
type ProductRepository struct {
	db *DB
}

// NewProductRepository creates a new product repository.
func NewProductRepository(db *DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// InsertWithTx inserts row within a transaction. An empty price value is
// stored as NULL.
func (r *ProductRepository) InsertWithTx(ctx context.Context, tx Execer, row *ProductRow) error {
	if problems := row.Validate(); len(problems) > 0 {
		return fmt.Errorf("invalid product record: %w", errors.New(problems[0]))
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if row.RecordedAt.IsZero() {
		row.RecordedAt = time.Now()
	}

	var price *string
	if row.PriceValue != "" {
		price = &row.PriceValue
	}

	query := `
		INSERT INTO product_record (
			id, run_id, category, subcategory, product_name,
			container, price_value, price_unit, description, image_url,
			recorded_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)`

	_, err := tx.Exec(ctx, query,
		row.ID, row.RunID, row.Category, row.Subcategory, row.ProductName,
		row.Container, price, row.PriceUnit, row.Description, row.ImageURL,
		row.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert product record: %w", err)
	}

	return nil
}

// CountByRun returns how many records a run mirrored.
func (r *ProductRepository) CountByRun(ctx context.Context, runID string) (int64, error) {
	var count int64
	err := r.db.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM product_record WHERE run_id = $1", runID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count product records: %w", err)
	}
	return count, nil
}
