package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kborae/catalog-crawler/internal/browser"
	"github.com/kborae/catalog-crawler/internal/config"
	"github.com/kborae/catalog-crawler/internal/crawl"
	"github.com/kborae/catalog-crawler/internal/models"
	"github.com/kborae/catalog-crawler/internal/ratelimit"
	"github.com/kborae/catalog-crawler/internal/retry"
	"github.com/kborae/catalog-crawler/internal/session"
	"github.com/kborae/catalog-crawler/internal/site/oliveyoung"
	"github.com/kborae/catalog-crawler/internal/storage"
	"github.com/kborae/catalog-crawler/internal/validate"
)

func main() {
	var (
		ids       = flag.String("ids", "", "Comma-separated list of goods numbers to crawl")
		inputFile = flag.String("file", "", "File containing goods numbers (one per line)")
		category  = flag.String("category", "", "Category ID to collect goods numbers from")
		maxItems  = flag.Int("max", 48, "Maximum goods numbers to collect per category")
		output    = flag.String("output", "results.json", "Results file path")
		headless  = flag.Bool("headless", true, "Run browser in headless mode")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)
	logger.Info("starting catalog crawler")

	goodsNos, err := loadGoodsNos(*ids, *inputFile)
	if err != nil {
		logger.Error("failed to load goods numbers", "error", err)
		os.Exit(1)
	}
	if len(goodsNos) == 0 && *category == "" {
		fmt.Println("No goods numbers to crawl. Use -ids, -file, or -category.")
		flag.Usage()
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("shutdown signal received")
		cancel()
	}()

	browserOpts := browser.DefaultOptions()
	browserOpts.Headless = *headless && cfg.Browser.Headless
	browserOpts.Timeout = cfg.Browser.Timeout
	browserOpts.ViewportWidth = cfg.Browser.ViewportWidth
	browserOpts.ViewportHeight = cfg.Browser.ViewportHeight
	browserOpts.AcceptLanguage = cfg.Browser.AcceptLanguage
	browserOpts.TimezoneID = cfg.Browser.TimezoneID
	browserOpts.Locale = cfg.Browser.Locale
	browserOpts.ProxyServer = cfg.Browser.ProxyServer
	browserOpts.BootstrapURL = oliveyoung.BootstrapURL
	browserOpts.ChallengeMarker = oliveyoung.ChallengeMarker
	browserOpts.ChallengePollCount = cfg.Session.ChallengePollCount
	browserOpts.ChallengePollInterval = cfg.Session.ChallengePollInterval
	browserOpts.StabilizationDelay = cfg.Session.StabilizationDelay
	browserOpts.NavigationTimeout = cfg.Crawler.NavigationTimeout
	browserOpts.Rules = oliveyoung.Rules()

	b, err := browser.New(browserOpts)
	if err != nil {
		logger.Error("failed to initialize browser", "error", err)
		os.Exit(1)
	}
	defer b.Close()

	store := session.NewStore(cfg.Session.StateFile, logger)
	manager := session.NewManager(store, b, session.Config{
		RequiredCookies:     cfg.Session.RequiredCookies,
		FallbackCookie:      cfg.Session.FallbackCookie,
		ExpiryBuffer:        cfg.Session.ExpiryBuffer,
		BootstrapRetries:    cfg.Session.BootstrapRetries,
		BootstrapRetryDelay: cfg.Session.BootstrapRetryDelay,
	}, logger)

	fetcher := oliveyoung.NewFetcher(cfg.Crawler.NavigationTimeout, logger)
	orchestrator := crawl.New(
		manager,
		fetcher,
		ratelimit.NewJitterDelay(cfg.Crawler.BatchDelayMin, cfg.Crawler.BatchDelayMax),
		crawl.Options{
			BatchSize:   cfg.Crawler.BatchSize,
			Concurrency: cfg.Crawler.ConcurrencyLimit,
			Retry: retry.Policy{
				MaxAttempts: cfg.Crawler.MaxRetries,
				Delay:       cfg.Crawler.RetryDelay,
			},
		},
		logger,
	)

	if *category != "" {
		listed, err := listCategory(ctx, manager, *category, *maxItems, cfg.Crawler.NavigationTimeout, logger)
		if err != nil {
			logger.Error("failed to collect category listing", "category", *category, "error", err)
			os.Exit(1)
		}
		goodsNos = append(goodsNos, listed...)
	}

	results, err := storage.NewResultStore(*output)
	if err != nil {
		logger.Error("failed to open results file", "path", *output, "error", err)
		os.Exit(1)
	}

	var crawled []*models.Product
	runErr := orchestrator.Run(ctx, goodsNos, func(out crawl.Outcome) {
		if out.Err != nil {
			if err := results.MarkFailure(out.GoodsNo, out.Err); err != nil {
				logger.Error("failed to record failure", "goods_no", out.GoodsNo, "error", err)
			}
			return
		}
		crawled = append(crawled, out.Product)
		if err := results.MarkSuccess(out.Product); err != nil {
			logger.Error("failed to record product", "goods_no", out.GoodsNo, "error", err)
		}
	})

	_, stats := validate.NewValidator(logger).Validate(crawled)

	completed, failed := results.Counts()
	logger.Info("crawl finished",
		"requested", len(goodsNos), "succeeded", completed, "failed", failed,
		"valid", stats.Valid, "output", *output)

	if runErr != nil {
		var fatal *session.FatalError
		if errors.As(runErr, &fatal) {
			logger.Error("run failed: session could not be established", "error", fatal)
		} else {
			logger.Error("run aborted", "error", runErr)
		}
		os.Exit(1)
	}
}

// listCategory opens an authenticated context, scrapes goods numbers from
// the category listing, and closes the context again so the crawl run
// starts from a fresh one.
func listCategory(ctx context.Context, manager *session.Manager, categoryID string, maxItems int, navTimeout time.Duration, logger *slog.Logger) ([]string, error) {
	bc, err := manager.Context(ctx)
	if err != nil {
		return nil, err
	}
	defer bc.Close()

	lister := oliveyoung.NewLister(bc, navTimeout, logger)
	defer lister.Close()

	return lister.GoodsNos(ctx, categoryID, maxItems)
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func loadGoodsNos(ids, inputFile string) ([]string, error) {
	var goodsNos []string

	if ids != "" {
		for _, id := range strings.Split(ids, ",") {
			if trimmed := strings.TrimSpace(id); trimmed != "" {
				goodsNos = append(goodsNos, trimmed)
			}
		}
	}

	if inputFile != "" {
		f, err := os.Open(inputFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", inputFile, err)
		}
		defer f.Close()

		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			goodsNos = append(goodsNos, line)
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", inputFile, err)
		}
	}

	return goodsNos, nil
}
