package parser

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	titleSelector       = ".private-product-detail__description"
	formatSelector      = ".product-format__size .headline1-r"
	descriptionSelector = ".private-product-detail__left"
	thumbnailSelector   = ".product-gallery__thumbnail img"
)

const (
	DefaultThumbnailSize = 300
	DefaultFullSize      = 1600
)

// ProductExtractor reads a rendered product detail view.
type ProductExtractor struct {
	thumbnailSize int
	fullSize      int
}

// NewProductExtractor creates an extractor that rewrites image URLs to the
// given thumbnail and full sizes. Zero keeps the size from the page.
func NewProductExtractor(thumbnailSize, fullSize int) *ProductExtractor {
	if thumbnailSize <= 0 {
		thumbnailSize = DefaultThumbnailSize
	}
	if fullSize <= 0 {
		fullSize = DefaultFullSize
	}
	return &ProductExtractor{
		thumbnailSize: thumbnailSize,
		fullSize:      fullSize,
	}
}

var _ Parser = (*ProductExtractor)(nil)

// ExtractProduct pulls name, raw format, description and image from html.
// Only a missing title fails; the other fields are left empty when absent.
func (p *ProductExtractor) ExtractProduct(html string) (*ProductFields, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	name := p.extractTitle(doc)
	if name == "" {
		return nil, ErrMissingTitle
	}

	return &ProductFields{
		Name:        name,
		Format:      p.extractFormat(doc),
		Description: p.extractDescription(doc),
		ImageURL:    p.extractImage(doc),
	}, nil
}

func (p *ProductExtractor) extractTitle(doc *goquery.Document) string {
	return NormalizeText(doc.Find(titleSelector).First().Text())
}

func (p *ProductExtractor) extractFormat(doc *goquery.Document) string {
	var parts []string
	doc.Find(formatSelector).Each(func(_ int, s *goquery.Selection) {
		if text := NormalizeText(s.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, " ")
}

// extractDescription reads the accessible label, not the visible text.
func (p *ProductExtractor) extractDescription(doc *goquery.Document) string {
	label, _ := doc.Find(descriptionSelector).First().Attr("aria-label")
	return strings.TrimSpace(label)
}

// extractImage takes the last thumbnail, which is the most complete picture.
func (p *ProductExtractor) extractImage(doc *goquery.Document) string {
	src, ok := doc.Find(thumbnailSelector).Last().Attr("src")
	if !ok || src == "" {
		return ""
	}
	return UpscaleImageURL(src, p.thumbnailSize, p.fullSize)
}

// NormalizeText trims s and collapses every run of whitespace to one space.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
