package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/mercadona-scraper/internal/database"
	"github.com/maltedev/mercadona-scraper/internal/models"
)

type EventType string

const (
	// EventTypeProductRecorded is published for every record written to the store.
	EventTypeProductRecorded EventType = "PRODUCT_RECORDED"

	aggregateType = "product_record"
)

// ProductRecordedPayload is the JSON body of a PRODUCT_RECORDED event.
type ProductRecordedPayload struct {
	EventID     string    `json:"event_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	RunID       string    `json:"run_id"`
	Category    string    `json:"category"`
	Subcategory string    `json:"subcategory"`
	ProductName string    `json:"product_name"`
	Container   string    `json:"container,omitempty"`
	PriceValue  *float64  `json:"price_value,omitempty"`
	PriceUnit   string    `json:"price_unit,omitempty"`
	Description string    `json:"description,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	Source      string    `json:"source"`
}

// TxRunner runs fn inside one database transaction.
type TxRunner interface {
	InTx(ctx context.Context, fn func(database.Execer) error) error
}

type productWriter interface {
	InsertWithTx(ctx context.Context, tx database.Execer, row *database.ProductRow) error
}

type outboxWriter interface {
	InsertWithTx(ctx context.Context, tx database.Execer, event *database.OutboxEvent) error
}

// Publisher mirrors records into Postgres using the transactional outbox
// pattern: the product row and its event are committed together.
type Publisher struct {
	db       TxRunner
	products productWriter
	outbox   outboxWriter
	runID    string
	stream   string
	logger   *slog.Logger
	now      func() time.Time
}

// NewPublisher creates a publisher that mirrors records of runID into db.
func NewPublisher(db *database.DB, runID, stream string, logger *slog.Logger) *Publisher {
	if stream == "" {
		stream = database.DefaultStream
	}
	return &Publisher{
		db:       db,
		products: database.NewProductRepository(db),
		outbox:   database.NewOutboxRepository(db),
		runID:    runID,
		stream:   stream,
		logger:   logger.With("component", "event_publisher"),
		now:      time.Now,
	}
}

// Append mirrors one record. It satisfies the scraper's record sink.
func (p *Publisher) Append(ctx context.Context, record models.ProductRecord) error {
	payload := p.buildPayload(record)

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	row := &database.ProductRow{
		RunID:         p.runID,
		RecordedAt:    payload.Timestamp,
		ProductRecord: record,
	}
	event := &database.OutboxEvent{
		AggregateType: aggregateType,
		AggregateID:   AggregateID(record),
		EventType:     string(EventTypeProductRecorded),
		Payload:       data,
		TargetStream:  p.stream,
	}

	err = p.db.InTx(ctx, func(tx database.Execer) error {
		if err := p.products.InsertWithTx(ctx, tx, row); err != nil {
			return err
		}
		return p.outbox.InsertWithTx(ctx, tx, event)
	})
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("event published to outbox",
		"type", payload.EventType,
		"event_id", payload.EventID,
		"product", record.ProductName,
		"outbox_id", event.ID,
	)

	return nil
}

func (p *Publisher) buildPayload(record models.ProductRecord) *ProductRecordedPayload {
	payload := &ProductRecordedPayload{
		EventID:     uuid.New().String(),
		EventType:   string(EventTypeProductRecorded),
		Timestamp:   p.now(),
		RunID:       p.runID,
		Category:    record.Category,
		Subcategory: record.Subcategory,
		ProductName: record.ProductName,
		Container:   record.Container,
		PriceUnit:   record.PriceUnit,
		Description: record.Description,
		ImageURL:    record.ImageURL,
		Source:      "scraper",
	}

	if record.PriceValue != "" {
		if v, err := strconv.ParseFloat(record.PriceValue, 64); err == nil {
			payload.PriceValue = &v
		}
	}

	return payload
}

// AggregateID keys events by catalog position, the same triple resume uses.
func AggregateID(record models.ProductRecord) string {
	return record.Category + "/" + record.Subcategory + "/" + record.ProductName
}
