// Package jobs runs queued crawl jobs: the API enqueues goods numbers into
// postgres, the worker claims them one at a time and drives the crawl
// orchestrator.
package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kborae/catalog-crawler/internal/crawl"
	"github.com/kborae/catalog-crawler/internal/database"
	"github.com/kborae/catalog-crawler/internal/events"
)

type Manager struct {
	jobs         *database.JobRepo
	products     *database.ProductRepo
	orchestrator *crawl.Orchestrator
	publisher    *events.Publisher
	pollInterval time.Duration
	logger       *slog.Logger
}

func NewManager(
	jobs *database.JobRepo,
	products *database.ProductRepo,
	orchestrator *crawl.Orchestrator,
	publisher *events.Publisher,
	logger *slog.Logger,
) *Manager {
	return &Manager{
		jobs:         jobs,
		products:     products,
		orchestrator: orchestrator,
		publisher:    publisher,
		pollInterval: 10 * time.Second,
		logger:       logger.With("component", "jobs"),
	}
}

// Submit enqueues a crawl job for the given goods numbers.
func (m *Manager) Submit(ctx context.Context, goodsNos []string) (*database.CrawlJob, error) {
	return m.jobs.Create(ctx, goodsNos)
}

// Status returns the current state of a job.
func (m *Manager) Status(ctx context.Context, id uuid.UUID) (*database.CrawlJob, error) {
	return m.jobs.Get(ctx, id)
}

// StartWorker polls for pending jobs until the context is cancelled. Jobs
// run strictly one at a time: the browsing session is a shared, exclusive
// resource.
func (m *Manager) StartWorker(ctx context.Context) {
	m.logger.Info("job worker started", "poll_interval", m.pollInterval)

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("job worker stopping")
			return
		case <-ticker.C:
			m.processNextJob(ctx)
		}
	}
}

func (m *Manager) processNextJob(ctx context.Context) {
	job, err := m.jobs.ClaimNext(ctx)
	if err != nil {
		if !errors.Is(err, database.ErrJobNotFound) {
			m.logger.Error("failed to claim job", "error", err)
		}
		return
	}

	m.logger.Info("processing job", "id", job.ID, "items", len(job.GoodsNos))

	succeeded, failed := 0, 0
	runErr := m.orchestrator.Run(ctx, job.GoodsNos, func(out crawl.Outcome) {
		if out.Err != nil {
			failed++
			m.logger.Warn("item failed", "job", job.ID, "goods_no", out.GoodsNo, "error", out.Err)
			if perr := m.publisher.ProductFailed(ctx, out.GoodsNo, out.Err); perr != nil {
				m.logger.Error("failed to publish failure event", "goods_no", out.GoodsNo, "error", perr)
			}
			return
		}

		if err := m.products.Upsert(ctx, out.Product); err != nil {
			failed++
			m.logger.Error("failed to save product", "goods_no", out.GoodsNo, "error", err)
			return
		}

		succeeded++
		if perr := m.publisher.ProductCrawled(ctx, out.Product); perr != nil {
			m.logger.Error("failed to publish crawled event", "goods_no", out.GoodsNo, "error", perr)
		}
	})

	if err := m.jobs.UpdateProgress(ctx, job.ID, succeeded, failed); err != nil {
		m.logger.Error("failed to update job progress", "job", job.ID, "error", err)
	}

	if runErr != nil {
		m.logger.Error("job failed", "id", job.ID, "error", runErr)
		if err := m.jobs.Fail(ctx, job.ID, runErr); err != nil {
			m.logger.Error("failed to mark job failed", "job", job.ID, "error", err)
		}
		return
	}

	if err := m.jobs.Complete(ctx, job.ID); err != nil {
		m.logger.Error("failed to mark job completed", "job", job.ID, "error", err)
		return
	}

	m.logger.Info("job completed", "id", job.ID, "succeeded", succeeded, "failed", failed)
}
