package oliveyoung

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/kborae/catalog-crawler/internal/classify"
	"github.com/kborae/catalog-crawler/internal/models"
	"github.com/kborae/catalog-crawler/internal/ratelimit"
	"github.com/kborae/catalog-crawler/internal/session"
)

// Fetcher loads one product detail page and turns it into a record. It
// implements crawl.Fetcher.
type Fetcher struct {
	navTimeout  time.Duration
	recheckWait time.Duration
	settle      *ratelimit.JitterDelay
	selectors   classify.Selectors
	prints      classify.Fingerprints
	logger      *slog.Logger
}

func NewFetcher(navTimeout time.Duration, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		navTimeout:  navTimeout,
		recheckWait: 2 * time.Second,
		settle:      ratelimit.NewJitterDelay(2*time.Second, 3*time.Second),
		selectors:   Selectors(),
		prints:      Fingerprints(),
		logger:      logger.With("component", "oliveyoung-fetcher"),
	}
}

func (f *Fetcher) Fetch(ctx context.Context, bc session.Context, goodsNo string) (*models.Product, error) {
	page, err := bc.NewPage()
	if err != nil {
		return nil, err
	}
	defer page.Close()

	url := ProductURL(goodsNo)
	_, err = page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(f.navTimeout.Milliseconds())),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", goodsNo, err)
	}

	if err := f.settle.Wait(ctx); err != nil {
		return nil, err
	}

	signals, err := classify.Collect(page, f.selectors, f.recheckWait)
	if err != nil {
		return nil, err
	}
	if verdict := f.prints.Classify(signals); verdict != classify.Valid {
		f.logger.Warn("page rejected", "goods_no", goodsNo, "verdict", verdict.String())
		return nil, fmt.Errorf("%s: %w", goodsNo, verdict.Err())
	}

	html, err := page.Content()
	if err != nil {
		return nil, fmt.Errorf("failed to read page content for %s: %w", goodsNo, err)
	}

	product, err := ParseProduct(html, goodsNo)
	if err != nil {
		return nil, err
	}
	product.URL = url

	f.logger.Info("product crawled", "goods_no", goodsNo, "item_name", product.ItemName)
	return product, nil
}
