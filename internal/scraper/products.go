package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/maltedev/mercadona-scraper/internal/browser"
	"github.com/maltedev/mercadona-scraper/internal/models"
	"github.com/maltedev/mercadona-scraper/internal/parser"
)

const (
	productGridSelector  = ".product-container"
	productEntrySelector = ".product-container .product-cell--actionable"
	detailTitleSelector  = ".private-product-detail__description"
)

// entryNameSelectors are tried in order; the first non-empty text wins. Names
// are normalized like detail titles so resume can compare them.
var entryNameSelectors = []string{
	".product-cell__description-name",
	"[data-testid='product-cell-name']",
	"h4",
}

// listState is the loop state of one subcategory walk. lastProduct is always
// defined, possibly empty, so failures can be logged with whatever is known.
type listState struct {
	category     string
	subcategory  string
	resumeTarget string
	lastProduct  string
}

// scrapeSubcategory walks the product listing currently shown. When
// resumeProduct is set, entries up to and including that name are skipped.
func (s *Scraper) scrapeSubcategory(ctx context.Context, category, subcategory, resumeProduct string) error {
	if err := s.store.EnsureHeader(); err != nil {
		return err
	}

	st := &listState{
		category:     category,
		subcategory:  subcategory,
		resumeTarget: parser.NormalizeText(resumeProduct),
	}
	s.progress.enter(category, subcategory)
	s.metrics.IncSubcategory()

	entries, err := s.wait.ForAll(ctx, s.driver, productEntrySelector)
	if err != nil {
		return fmt.Errorf("product list did not render: %w", err)
	}

	resuming := st.resumeTarget != ""
	for i := 0; i < len(entries); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		name := entryName(entries[i])
		if name == "" {
			s.logger.Warn("skipping product entry without a name", "subcategory", subcategory, "index", i)
			s.metrics.IncSkipped("unnamed")
			s.progress.skip()
			continue
		}

		if st.resumeTarget != "" {
			s.metrics.IncSkipped("resume")
			s.progress.skip()
			if name == st.resumeTarget {
				s.logger.Info("reached resume point", "product", name)
				st.resumeTarget = ""
			}
			continue
		}

		st.lastProduct = name
		returnURL := s.driver.URL()
		started := time.Now()

		if err := s.scrapeProduct(ctx, st, entries[i]); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if recErr := s.recovery.RecoverProduct(ctx, s.driver, st, returnURL, err); recErr != nil {
				return recErr
			}
		}
		s.metrics.ObserveProduct(time.Since(started))

		// The listing re-renders after every visit, so entries are located again.
		entries, err = s.wait.ForAll(ctx, s.driver, productEntrySelector)
		if err != nil {
			return fmt.Errorf("product list did not re-render: %w", err)
		}
	}

	if resuming && st.resumeTarget != "" {
		s.recovery.Notice("resume target not found",
			"category", category,
			"subcategory", subcategory,
			"product", st.resumeTarget,
		)
	}

	return nil
}

// scrapeProduct opens one entry, writes its record and returns to the listing.
func (s *Scraper) scrapeProduct(ctx context.Context, st *listState, entry browser.Element) error {
	fail := func(step string, err error) error {
		return &ProductError{Product: st.lastProduct, Step: step, Err: err}
	}

	if err := entry.Click(); err != nil {
		return fail("open", err)
	}
	if _, err := s.wait.For(ctx, s.driver, detailTitleSelector); err != nil {
		return fail("wait for detail", err)
	}
	if err := s.productSettle.Settle(ctx); err != nil {
		return fail("settle", err)
	}

	html, err := s.driver.Content()
	if err != nil {
		return fail("read detail", err)
	}

	fields, err := s.parser.ExtractProduct(html)
	if err != nil {
		return fail("extract", err)
	}

	record := models.ProductRecord{
		Category:    st.category,
		Subcategory: st.subcategory,
		ProductName: fields.Name,
		Description: fields.Description,
		ImageURL:    fields.ImageURL,
	}

	if fields.Format != "" {
		format, err := parser.ParseFormat(fields.Format)
		if err != nil {
			s.recovery.ParseFailed(st, err)
		}
		record.Container = format.Container
		record.PriceValue = format.PriceValue
		record.PriceUnit = format.PriceUnit
	}

	if problems := record.Validate(); len(problems) > 0 {
		return fail("validate", errors.New(strings.Join(problems, "; ")))
	}

	if err := s.store.Append(ctx, record); err != nil {
		return fail("write", err)
	}
	st.lastProduct = record.ProductName

	for _, sink := range s.mirrors {
		if err := sink.Append(ctx, record); err != nil {
			s.recovery.SinkFailed(st, err)
		}
	}

	s.logger.Info("added product", "product", record.ProductName, "category", st.category, "subcategory", st.subcategory)
	s.metrics.IncRecorded(st.category)
	s.progress.record(record.ProductName)

	if err := s.driver.Back(ctx); err != nil {
		return fail("return", err)
	}
	if err := s.productSettle.Settle(ctx); err != nil {
		return fail("settle", err)
	}
	return nil
}

func entryName(entry browser.Element) string {
	for _, selector := range entryNameSelectors {
		el, err := entry.Find(selector)
		if err != nil {
			continue
		}
		text, err := el.Text()
		if err != nil {
			continue
		}
		if name := parser.NormalizeText(text); name != "" {
			return name
		}
	}
	return ""
}
