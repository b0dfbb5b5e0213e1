package scraper

import (
	"errors"
	"fmt"

	"github.com/maltedev/mercadona-scraper/internal/browser"
	"github.com/maltedev/mercadona-scraper/internal/parser"
	"github.com/maltedev/mercadona-scraper/internal/storage"
)

// FailureKind is the class a failure falls into for logging and metrics.
type FailureKind string

const (
	KindWaitTimeout  FailureKind = "wait_timeout"
	KindProduct      FailureKind = "product"
	KindParse        FailureKind = "parse"
	KindMissingTitle FailureKind = "missing_title"
	KindFilesystem   FailureKind = "filesystem"
	KindOther        FailureKind = "other"
)

// ProductError wraps anything that went wrong while opening, extracting or
// leaving a single product.
type ProductError struct {
	Product string
	Step    string
	Err     error
}

func (e *ProductError) Error() string {
	if e.Product == "" {
		return fmt.Sprintf("product %s: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("product %q %s: %v", e.Product, e.Step, e.Err)
}

func (e *ProductError) Unwrap() error {
	return e.Err
}

// Classify maps err onto a FailureKind. The most specific cause wins, so a
// missing title inside a ProductError is still KindMissingTitle.
func Classify(err error) FailureKind {
	if err == nil {
		return ""
	}

	var (
		parseErr   *parser.ParseError
		writeErr   *storage.WriteError
		timeoutErr browser.ErrWaitTimeout
		productErr *ProductError
	)

	switch {
	case errors.Is(err, parser.ErrMissingTitle):
		return KindMissingTitle
	case errors.As(err, &parseErr):
		return KindParse
	case errors.As(err, &writeErr):
		return KindFilesystem
	case errors.As(err, &timeoutErr):
		return KindWaitTimeout
	case errors.As(err, &productErr):
		return KindProduct
	default:
		return KindOther
	}
}
