package oliveyoung

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/kborae/catalog-crawler/internal/ratelimit"
	"github.com/kborae/catalog-crawler/internal/session"
)

// Lister collects goods numbers from category listing pages. The listing
// page is kept open and re-navigated in place while the category stays the
// same; switching categories closes and recreates it.
type Lister struct {
	bc         session.Context
	page       playwright.Page
	categoryID string
	navTimeout time.Duration
	pacing     *ratelimit.PacedLimiter
	logger     *slog.Logger
}

func NewLister(bc session.Context, navTimeout time.Duration, logger *slog.Logger) *Lister {
	return &Lister{
		bc:         bc,
		navTimeout: navTimeout,
		pacing:     ratelimit.NewPacedLimiter(2*time.Second, 4*time.Second),
		logger:     logger.With("component", "oliveyoung-lister"),
	}
}

// GoodsNos returns up to maxItems goods numbers from a category listing.
func (l *Lister) GoodsNos(ctx context.Context, categoryID string, maxItems int) ([]string, error) {
	if err := l.pacing.Wait(ctx); err != nil {
		return nil, err
	}

	page, err := l.listingPage(categoryID)
	if err != nil {
		return nil, err
	}

	_, err = page.Goto(CategoryURL(categoryID), playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(l.navTimeout.Milliseconds())),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load category %s: %w", categoryID, err)
	}

	links := page.Locator(`a[href*="getGoodsDetail.do"]`)
	count, err := links.Count()
	if err != nil {
		return nil, fmt.Errorf("failed to query listing links: %w", err)
	}

	seen := make(map[string]struct{})
	var goodsNos []string
	for i := 0; i < count && len(goodsNos) < maxItems; i++ {
		href, err := links.Nth(i).GetAttribute("href")
		if err != nil || href == "" {
			continue
		}
		goodsNo := goodsNoFromHref(href)
		if goodsNo == "" {
			continue
		}
		if _, ok := seen[goodsNo]; ok {
			continue
		}
		seen[goodsNo] = struct{}{}
		goodsNos = append(goodsNos, goodsNo)
	}

	l.logger.Info("category listing collected",
		"category", categoryID, "goods", len(goodsNos))
	return goodsNos, nil
}

// listingPage returns the persistent page for the category, recreating it
// when the current listing key changes.
func (l *Lister) listingPage(categoryID string) (playwright.Page, error) {
	if l.page != nil && l.categoryID == categoryID {
		return l.page, nil
	}

	if l.page != nil {
		l.page.Close()
		l.page = nil
	}

	page, err := l.bc.NewPage()
	if err != nil {
		return nil, err
	}

	l.page = page
	l.categoryID = categoryID
	return page, nil
}

func (l *Lister) Close() {
	if l.page != nil {
		l.page.Close()
		l.page = nil
	}
}

func goodsNoFromHref(href string) string {
	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return parsed.Query().Get("goodsNo")
}
