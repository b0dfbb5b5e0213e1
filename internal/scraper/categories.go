package scraper

import (
	"context"
	"fmt"
	"strings"

	"github.com/maltedev/mercadona-scraper/internal/browser"
	"github.com/maltedev/mercadona-scraper/internal/models"
)

const (
	categoryMenuSelector    = ".category-menu"
	categoryItemSelector    = ".category-menu__item"
	categoryToggleSelector  = ".collapse > button"
	subcategoryItemSelector = ".category-item"
	subcategoryLinkSelector = ".category-item__link"
)

// ScrapeAll walks every category of the menu in document order. cursor is
// consumed: it is cleared once its subcategory has been walked. A failure in
// one category or subcategory is logged and the walk moves on to the next
// sibling; only context cancellation stops it early.
func (s *Scraper) ScrapeAll(ctx context.Context, cursor *models.ResumeCursor) error {
	if cursor == nil {
		cursor = &models.ResumeCursor{}
	}

	menu, err := s.wait.For(ctx, s.driver, categoryMenuSelector)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.recovery.ScopeFailed(ScopeCategory, "", "", fmt.Errorf("category menu did not render: %w", err))
		return nil
	}

	items, err := s.wait.ForAll(ctx, menu, categoryItemSelector)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.recovery.ScopeFailed(ScopeCategory, "", "", fmt.Errorf("category items did not render: %w", err))
		return nil
	}

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}

		toggle, err := item.Find(categoryToggleSelector)
		if err != nil {
			s.recovery.ScopeFailed(ScopeCategory, "", "", fmt.Errorf("category %d has no toggle: %w", i, err))
			continue
		}
		label, err := toggle.Text()
		if err != nil {
			s.recovery.ScopeFailed(ScopeCategory, "", "", fmt.Errorf("category %d label: %w", i, err))
			continue
		}

		category := models.Category{Name: strings.TrimSpace(label)}
		category.IsFood = !s.nonFood[category.Name]

		if s.skipFood && !category.IsFood {
			continue
		}
		if cursor.Active() && cursor.Category != category.Name {
			continue
		}

		if err := s.scrapeCategory(ctx, item, toggle, category, cursor); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.recovery.ScopeFailed(ScopeCategory, category.Name, "", err)
		}
	}

	if cursor.Active() {
		s.recovery.Notice("resume cursor never matched",
			"category", cursor.Category,
			"subcategory", cursor.Subcategory,
			"product", cursor.ProductName,
		)
	}

	return nil
}

func (s *Scraper) scrapeCategory(ctx context.Context, item, toggle browser.Element, category models.Category, cursor *models.ResumeCursor) error {
	s.logger.Info("opening category", "category", category.Name)

	if err := toggle.Click(); err != nil {
		return fmt.Errorf("failed to expand category: %w", err)
	}
	subItems, err := s.wait.ForAll(ctx, item, subcategoryItemSelector)
	if err != nil {
		return fmt.Errorf("subcategories did not render: %w", err)
	}
	if err := s.categorySettle.Settle(ctx); err != nil {
		return err
	}

	for _, subItem := range subItems {
		if err := ctx.Err(); err != nil {
			return err
		}

		sub := models.Subcategory{ParentCategory: category.Name}

		link, err := subItem.Find(subcategoryLinkSelector)
		if err != nil {
			s.recovery.ScopeFailed(ScopeSubcategory, category.Name, "", fmt.Errorf("subcategory link: %w", err))
			continue
		}
		label, err := link.Text()
		if err != nil {
			s.recovery.ScopeFailed(ScopeSubcategory, category.Name, "", fmt.Errorf("subcategory label: %w", err))
			continue
		}
		sub.Name = strings.TrimSpace(label)

		if cursor.Active() && cursor.Subcategory != sub.Name {
			continue
		}

		resumeProduct := ""
		matched := cursor.Active()
		if matched {
			resumeProduct = cursor.ProductName
		}

		err = s.openSubcategory(ctx, link, sub, resumeProduct)

		if matched {
			cursor.Clear()
			s.progress.resumeEnded()
		}

		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.recovery.ScopeFailed(ScopeSubcategory, category.Name, sub.Name, err)
		}
	}

	return s.categorySettle.Settle(ctx)
}

func (s *Scraper) openSubcategory(ctx context.Context, link browser.Element, sub models.Subcategory, resumeProduct string) error {
	s.logger.Info("opening subcategory", "category", sub.ParentCategory, "subcategory", sub.Name)

	if err := link.Click(); err != nil {
		return fmt.Errorf("failed to open subcategory: %w", err)
	}
	if _, err := s.wait.For(ctx, s.driver, productGridSelector); err != nil {
		return fmt.Errorf("product grid did not render: %w", err)
	}
	if err := s.subcategorySettle.Settle(ctx); err != nil {
		return err
	}

	return s.scrapeSubcategory(ctx, sub.ParentCategory, sub.Name, resumeProduct)
}
