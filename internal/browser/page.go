package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Page drives one playwright tab through the Driver interface.
type Page struct {
	page       playwright.Page
	timeout    time.Duration
	maxRetries int
	logger     *slog.Logger
}

var _ Driver = (*Page)(nil)

// Navigate loads url, retrying failed loads with a growing pause.
func (p *Page) Navigate(ctx context.Context, url string) error {
	retries := p.maxRetries
	if retries < 1 {
		retries = 1
	}

	var lastErr error
	for i := 0; i < retries; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		if i > 0 {
			p.logger.Info("retrying navigation", "attempt", i+1, "url", url)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(i) * time.Second):
			}
		}

		_, err := p.page.Goto(url, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateDomcontentloaded,
			Timeout:   p.millis(),
		})
		if err == nil {
			return nil
		}

		lastErr = err
		p.logger.Warn("navigation failed", "error", err, "attempt", i+1)
	}

	return fmt.Errorf("failed after %d retries: %w", retries, lastErr)
}

func (p *Page) Back(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := p.page.GoBack(playwright.PageGoBackOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   p.millis(),
	}); err != nil {
		return fmt.Errorf("failed to navigate back: %w", err)
	}
	return nil
}

func (p *Page) URL() string {
	return p.page.URL()
}

func (p *Page) Content() (string, error) {
	html, err := p.page.Content()
	if err != nil {
		return "", fmt.Errorf("failed to get page content: %w", err)
	}
	return html, nil
}

func (p *Page) Find(selector string) (Element, error) {
	return first(p.page.Locator(selector), p.millis())
}

func (p *Page) FindAll(selector string) ([]Element, error) {
	return all(p.page.Locator(selector), p.millis())
}

// Close closes the tab.
func (p *Page) Close() error {
	return p.page.Close()
}

func (p *Page) millis() *float64 {
	return playwright.Float(float64(p.timeout.Milliseconds()))
}

// locatorElement resolves lazily, so it stays usable after the page
// re-renders, unlike a raw element handle.
type locatorElement struct {
	loc     playwright.Locator
	timeout *float64
}

func first(loc playwright.Locator, timeout *float64) (Element, error) {
	count, err := loc.Count()
	if err != nil {
		return nil, fmt.Errorf("failed to count elements: %w", err)
	}
	if count == 0 {
		return nil, ErrElementNotFound
	}
	return &locatorElement{loc: loc.First(), timeout: timeout}, nil
}

func all(loc playwright.Locator, timeout *float64) ([]Element, error) {
	locators, err := loc.All()
	if err != nil {
		return nil, fmt.Errorf("failed to list elements: %w", err)
	}
	elements := make([]Element, 0, len(locators))
	for _, l := range locators {
		elements = append(elements, &locatorElement{loc: l, timeout: timeout})
	}
	return elements, nil
}

func (e *locatorElement) Find(selector string) (Element, error) {
	return first(e.loc.Locator(selector), e.timeout)
}

func (e *locatorElement) FindAll(selector string) ([]Element, error) {
	return all(e.loc.Locator(selector), e.timeout)
}

func (e *locatorElement) Text() (string, error) {
	return e.loc.InnerText(playwright.LocatorInnerTextOptions{Timeout: e.timeout})
}

func (e *locatorElement) Attribute(name string) (string, error) {
	return e.loc.GetAttribute(name, playwright.LocatorGetAttributeOptions{Timeout: e.timeout})
}

func (e *locatorElement) Click() error {
	return e.loc.Click(playwright.LocatorClickOptions{Timeout: e.timeout})
}

func (e *locatorElement) Fill(value string) error {
	return e.loc.Fill(value, playwright.LocatorFillOptions{Timeout: e.timeout})
}
