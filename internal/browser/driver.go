package browser

import (
	"context"
	"errors"
)

// ErrElementNotFound is returned by Find when no element matches the selector.
var ErrElementNotFound = errors.New("element not found")

// Finder locates elements by CSS selector, either across the whole document
// or inside a previously located element.
type Finder interface {
	Find(selector string) (Element, error)
	FindAll(selector string) ([]Element, error)
}

// Element is a located node of the rendered document.
type Element interface {
	Finder
	// Text returns the visible text of the element.
	Text() (string, error)
	// Attribute returns the value of the named attribute, "" when absent.
	Attribute(name string) (string, error)
	Click() error
	Fill(value string) error
}

// Driver is the slice of a browser session the scraper depends on.
type Driver interface {
	Finder
	Navigate(ctx context.Context, url string) error
	Back(ctx context.Context) error
	// URL returns the location currently shown.
	URL() string
	// Content returns the full rendered markup.
	Content() (string, error)
}
