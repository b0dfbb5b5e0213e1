package parser

import "errors"

// ErrMissingTitle is returned when a product document has no title. It is the
// only extraction failure that discards the record.
var ErrMissingTitle = errors.New("product title not found")

// ProductFields holds what the detail view yields before format parsing.
type ProductFields struct {
	Name        string
	Format      string
	Description string
	ImageURL    string
}

type Parser interface {
	ExtractProduct(html string) (*ProductFields, error)
}
