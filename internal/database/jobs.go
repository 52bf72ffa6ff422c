package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrJobNotFound = errors.New("crawl job not found")

type CrawlJob struct {
	ID        uuid.UUID `json:"id"`
	GoodsNos  []string  `json:"goods_nos"`
	Status    string    `json:"status"`
	Requested int       `json:"requested"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type JobRepo struct {
	db *DB
}

func NewJobRepo(db *DB) *JobRepo {
	return &JobRepo{db: db}
}

func (r *JobRepo) Create(ctx context.Context, goodsNos []string) (*CrawlJob, error) {
	job := &CrawlJob{
		ID:        uuid.New(),
		GoodsNos:  goodsNos,
		Status:    "pending",
		Requested: len(goodsNos),
	}

	query := `
		INSERT INTO crawl_jobs (id, goods_nos, status, requested)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`
	err := r.db.pool.QueryRow(ctx, query, job.ID, job.GoodsNos, job.Status, job.Requested).
		Scan(&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create crawl job: %w", err)
	}

	return job, nil
}

// ClaimNext atomically claims the oldest pending job. Returns ErrJobNotFound
// when nothing is pending.
func (r *JobRepo) ClaimNext(ctx context.Context) (*CrawlJob, error) {
	query := `
		UPDATE crawl_jobs
		SET status = 'running', updated_at = now()
		WHERE id = (
			SELECT id FROM crawl_jobs
			WHERE status = 'pending'
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, goods_nos, status, requested, succeeded, failed, error, created_at, updated_at
	`

	var job CrawlJob
	err := r.db.pool.QueryRow(ctx, query).Scan(
		&job.ID, &job.GoodsNos, &job.Status, &job.Requested,
		&job.Succeeded, &job.Failed, &job.Error, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to claim crawl job: %w", err)
	}

	return &job, nil
}

func (r *JobRepo) UpdateProgress(ctx context.Context, id uuid.UUID, succeeded, failed int) error {
	query := `
		UPDATE crawl_jobs
		SET succeeded = $2, failed = $3, updated_at = now()
		WHERE id = $1
	`
	if _, err := r.db.pool.Exec(ctx, query, id, succeeded, failed); err != nil {
		return fmt.Errorf("failed to update job progress: %w", err)
	}
	return nil
}

func (r *JobRepo) Complete(ctx context.Context, id uuid.UUID) error {
	return r.setStatus(ctx, id, "completed", "")
}

func (r *JobRepo) Fail(ctx context.Context, id uuid.UUID, cause error) error {
	message := ""
	if cause != nil {
		message = cause.Error()
	}
	return r.setStatus(ctx, id, "failed", message)
}

func (r *JobRepo) setStatus(ctx context.Context, id uuid.UUID, status, message string) error {
	query := `
		UPDATE crawl_jobs
		SET status = $2, error = $3, updated_at = now()
		WHERE id = $1
	`
	if _, err := r.db.pool.Exec(ctx, query, id, status, message); err != nil {
		return fmt.Errorf("failed to set job status: %w", err)
	}
	return nil
}

func (r *JobRepo) Get(ctx context.Context, id uuid.UUID) (*CrawlJob, error) {
	query := `
		SELECT id, goods_nos, status, requested, succeeded, failed, error, created_at, updated_at
		FROM crawl_jobs
		WHERE id = $1
	`

	var job CrawlJob
	err := r.db.pool.QueryRow(ctx, query, id).Scan(
		&job.ID, &job.GoodsNos, &job.Status, &job.Requested,
		&job.Succeeded, &job.Failed, &job.Error, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get crawl job: %w", err)
	}

	return &job, nil
}
