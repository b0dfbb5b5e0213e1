package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/maltedev/mercadona-scraper/internal/browser"
	"github.com/maltedev/mercadona-scraper/internal/metrics"
	"github.com/maltedev/mercadona-scraper/internal/pacing"
)

// Scope names the level of the tree a failure was contained at.
type Scope string

const (
	ScopeProduct     Scope = "product"
	ScopeSubcategory Scope = "subcategory"
	ScopeCategory    Scope = "category"
)

// Policy turns failures into log entries and recovery actions. Every handler
// writes exactly one error log line per failure event.
type Policy struct {
	ErrorLog  ErrorSink
	Snapshots SnapshotWriter
	Settle    pacing.Settler
	Metrics   *metrics.Metrics
	Progress  *Progress
	Logger    *slog.Logger
}

// RecoverProduct handles a failed product: it snapshots the current markup,
// records the failure, and hard-navigates to returnURL instead of relying on
// history. A non-nil return means the listing could not be restored and the
// subcategory has to be abandoned.
func (p *Policy) RecoverProduct(ctx context.Context, d browser.Driver, st *listState, returnURL string, err error) error {
	kind := Classify(err)

	snapshot := ""
	if html, contentErr := d.Content(); contentErr != nil {
		p.Logger.Warn("failed to read markup for snapshot", "error", contentErr)
	} else if path, saveErr := p.Snapshots.Save(st.category, st.subcategory, html); saveErr != nil {
		p.Logger.Warn("failed to save snapshot", "error", saveErr)
		p.count(KindFilesystem)
	} else {
		snapshot = path
	}

	p.ErrorLog.Record("product failed",
		"kind", kind,
		"category", st.category,
		"subcategory", st.subcategory,
		"product", st.lastProduct,
		"snapshot", snapshot,
		"error", err.Error(),
	)
	p.Logger.Warn("product failed",
		"kind", kind,
		"category", st.category,
		"subcategory", st.subcategory,
		"product", st.lastProduct,
		"snapshot", snapshot,
		"error", err,
	)
	p.count(kind)

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if returnURL == "" {
		return errors.New("no listing location to return to")
	}
	if navErr := d.Navigate(ctx, returnURL); navErr != nil {
		return fmt.Errorf("failed to return to listing: %w", navErr)
	}
	return p.Settle.Settle(ctx)
}

// ParseFailed records a format label that could not be decomposed. The
// record is still written.
func (p *Policy) ParseFailed(st *listState, err error) {
	p.ErrorLog.Record("format parse failed",
		"category", st.category,
		"subcategory", st.subcategory,
		"product", st.lastProduct,
		"error", err.Error(),
	)
	p.Logger.Warn("format parse failed", "product", st.lastProduct, "error", err)
	p.count(KindParse)
}

// ScopeFailed records a failure that abandons a whole subcategory or category.
func (p *Policy) ScopeFailed(scope Scope, category, subcategory string, err error) {
	kind := Classify(err)

	p.ErrorLog.Record(string(scope)+" failed",
		"kind", kind,
		"category", category,
		"subcategory", subcategory,
		"error", err.Error(),
	)
	p.Logger.Error(string(scope)+" failed",
		"kind", kind,
		"category", category,
		"subcategory", subcategory,
		"error", err,
	)
	p.count(kind)
}

// SinkFailed records a mirror that rejected a record. Mirrors are best effort.
func (p *Policy) SinkFailed(st *listState, err error) {
	p.ErrorLog.Record("record mirror failed",
		"category", st.category,
		"subcategory", st.subcategory,
		"product", st.lastProduct,
		"error", err.Error(),
	)
	p.Logger.Warn("record mirror failed", "product", st.lastProduct, "error", err)
	p.count(KindFilesystem)
}

// Notice writes a non-failure diagnostic that still belongs in the error log.
func (p *Policy) Notice(msg string, args ...any) {
	p.ErrorLog.Record(msg, args...)
	p.Logger.Warn(msg, args...)
}

func (p *Policy) count(kind FailureKind) {
	p.Metrics.IncFailure(string(kind))
	p.Progress.fail(kind)
}
