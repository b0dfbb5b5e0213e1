package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/mercadona-scraper/internal/browser"
	"github.com/maltedev/mercadona-scraper/internal/metrics"
	"github.com/maltedev/mercadona-scraper/internal/models"
	"github.com/maltedev/mercadona-scraper/internal/pacing"
	"github.com/maltedev/mercadona-scraper/internal/parser"
)

// RecordStore is the primary, resumable output.
type RecordStore interface {
	RowReader
	EnsureHeader() error
	Append(ctx context.Context, record models.ProductRecord) error
}

// RecordSink receives a copy of every written record. Sink failures never
// affect the primary store.
type RecordSink interface {
	Append(ctx context.Context, record models.ProductRecord) error
}

// ErrorSink is the append-only diagnostic log.
type ErrorSink interface {
	Record(msg string, args ...any)
}

// SnapshotWriter persists raw markup captured at a product failure.
type SnapshotWriter interface {
	Save(category, subcategory, html string) (string, error)
}

// Config wires the collaborators of a Scraper. Driver, Store, ErrorLog and
// Snapshots are required.
type Config struct {
	Driver    browser.Driver
	Store     RecordStore
	Mirrors   []RecordSink
	ErrorLog  ErrorSink
	Snapshots SnapshotWriter
	Parser    parser.Parser
	Wait      browser.Waiter

	ProductSettle     pacing.Settler
	SubcategorySettle pacing.Settler
	CategorySettle    pacing.Settler

	SkipNonFood bool
	NonFood     []string

	Metrics  *metrics.Metrics
	Progress *Progress
	Logger   *slog.Logger
	RunID    string
}

// Scraper walks the catalog tree and writes one record per product.
type Scraper struct {
	driver   browser.Driver
	store    RecordStore
	mirrors  []RecordSink
	parser   parser.Parser
	wait     browser.Waiter
	recovery *Policy
	metrics  *metrics.Metrics
	progress *Progress
	logger   *slog.Logger
	runID    string
	nonFood  map[string]bool
	skipFood bool

	productSettle     pacing.Settler
	subcategorySettle pacing.Settler
	categorySettle    pacing.Settler
}

// New creates a Scraper from cfg. Missing optional collaborators fall back
// to defaults: a plain extractor, a 10s waiter, slog.Default, a fresh run ID
// and the built-in non-food list.
func New(cfg Config) (*Scraper, error) {
	if cfg.Driver == nil {
		return nil, errors.New("scraper: driver is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("scraper: record store is required")
	}
	if cfg.ErrorLog == nil {
		return nil, errors.New("scraper: error log is required")
	}
	if cfg.Snapshots == nil {
		return nil, errors.New("scraper: snapshot writer is required")
	}

	if cfg.Parser == nil {
		cfg.Parser = parser.NewProductExtractor(0, 0)
	}
	if cfg.Wait.Timeout <= 0 {
		cfg.Wait = browser.NewWaiter(10*time.Second, 0)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	if cfg.NonFood == nil {
		cfg.NonFood = models.DefaultNonFood
	}
	if cfg.Progress == nil {
		cfg.Progress = NewProgress()
	}

	nonFood := make(map[string]bool, len(cfg.NonFood))
	for _, name := range cfg.NonFood {
		nonFood[name] = true
	}

	logger := cfg.Logger.With("component", "scraper", "run_id", cfg.RunID)

	return &Scraper{
		driver:   cfg.Driver,
		store:    cfg.Store,
		mirrors:  cfg.Mirrors,
		parser:   cfg.Parser,
		wait:     cfg.Wait,
		metrics:  cfg.Metrics,
		progress: cfg.Progress,
		logger:   logger,
		runID:    cfg.RunID,
		nonFood:  nonFood,
		skipFood: cfg.SkipNonFood,
		recovery: &Policy{
			ErrorLog:  cfg.ErrorLog,
			Snapshots: cfg.Snapshots,
			Settle:    orNoop(cfg.ProductSettle),
			Metrics:   cfg.Metrics,
			Progress:  cfg.Progress,
			Logger:    logger,
		},
		productSettle:     orNoop(cfg.ProductSettle),
		subcategorySettle: orNoop(cfg.SubcategorySettle),
		categorySettle:    orNoop(cfg.CategorySettle),
	}, nil
}

func orNoop(s pacing.Settler) pacing.Settler {
	if s == nil {
		return pacing.Fixed(0)
	}
	return s
}

func (s *Scraper) Progress() *Progress {
	return s.progress
}

// Run computes the resume cursor from the record store and walks the whole
// tree. Per-product and per-scope failures are logged and absorbed; Run only
// fails when the store cannot be read or ctx is cancelled.
func (s *Scraper) Run(ctx context.Context) error {
	start := time.Now()

	cursor, err := ComputeResumeCursor(s.store)
	if err != nil {
		return err
	}
	if err := s.store.EnsureHeader(); err != nil {
		return fmt.Errorf("failed to prepare record store: %w", err)
	}

	s.progress.start(s.runID, cursor.Active(), start)
	if cursor.Active() {
		s.logger.Info("resuming from last record",
			"category", cursor.Category,
			"subcategory", cursor.Subcategory,
			"product", cursor.ProductName,
		)
	} else {
		s.logger.Info("starting from the beginning")
	}

	err = s.ScrapeAll(ctx, &cursor)

	finished := time.Now()
	s.progress.finish(finished)
	snap := s.progress.Snapshot()
	s.logger.Info("run finished",
		"elapsed", finished.Sub(start).Round(time.Millisecond).String(),
		"records", snap.RecordsWritten,
		"skipped", snap.Skipped,
		"failures", totalFailures(snap.Failures),
	)

	return err
}

func totalFailures(byKind map[FailureKind]int) int {
	total := 0
	for _, n := range byKind {
		total += n
	}
	return total
}
