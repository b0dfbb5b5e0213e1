package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

const (
	cookieRejectSelector = `button:has-text("Rechazar")`
	postalInputSelector  = `input[data-testid='postal-code-checker-input']`
	postalSubmitSelector = `button[data-testid='postal-code-checker-button']`
)

// CatalogOpener brings a fresh session to the localized category listing.
type CatalogOpener struct {
	URL        string
	PostalCode string
	Wait       Waiter
	Logger     *slog.Logger
}

// Open navigates to the catalog, rejects cookies and submits the postal code.
// A missing cookie banner or postal prompt is not an error.
func (o CatalogOpener) Open(ctx context.Context, d Driver) error {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "catalog_opener")

	if err := d.Navigate(ctx, o.URL); err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}

	if button, err := o.Wait.For(ctx, d, cookieRejectSelector); err == nil {
		if err := button.Click(); err != nil {
			logger.Warn("failed to reject cookies", "error", err)
		} else {
			logger.Info("cookies rejected")
		}
	} else if ctx.Err() != nil {
		return ctx.Err()
	} else {
		logger.Info("cookie banner not shown")
	}

	input, err := d.Find(postalInputSelector)
	if errors.Is(err, ErrElementNotFound) {
		logger.Info("postal code not requested")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up postal code input: %w", err)
	}

	if err := input.Fill(o.PostalCode); err != nil {
		return fmt.Errorf("failed to fill postal code: %w", err)
	}

	submit, err := d.Find(postalSubmitSelector)
	if err != nil {
		return fmt.Errorf("failed to find postal code button: %w", err)
	}
	if err := submit.Click(); err != nil {
		return fmt.Errorf("failed to submit postal code: %w", err)
	}

	logger.Info("postal code selected", "postal_code", o.PostalCode)
	return nil
}
