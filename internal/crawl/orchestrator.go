// Package crawl runs concurrency-bounded batches of item fetches over one
// authenticated browsing session, isolating per-item failures and pausing
// between batches to respect the politeness budget.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/kborae/catalog-crawler/internal/classify"
	"github.com/kborae/catalog-crawler/internal/models"
	"github.com/kborae/catalog-crawler/internal/ratelimit"
	"github.com/kborae/catalog-crawler/internal/retry"
	"github.com/kborae/catalog-crawler/internal/session"
)

// Outcome is the final result for one work item: exactly one of Product or
// Err is set.
type Outcome struct {
	GoodsNo string
	Product *models.Product
	Err     error
}

// Fetcher is the site-specific fetch callback: open a page through the
// context, load the item, classify the result, extract the record. Verdicts
// other than valid surface as the classify sentinel errors.
type Fetcher interface {
	Fetch(ctx context.Context, bc session.Context, goodsNo string) (*models.Product, error)
}

// Sessions is the slice of the session manager the orchestrator needs.
type Sessions interface {
	Context(ctx context.Context) (session.Context, error)
	Refresh(ctx context.Context, old session.Context) (session.Context, error)
}

type Options struct {
	BatchSize   int
	Concurrency int
	// Retry governs transient per-item failures (navigation timeouts and
	// the like). Classifier verdicts are never retried here; session decay
	// goes through the refresh path instead.
	Retry retry.Policy
}

type Orchestrator struct {
	sessions Sessions
	fetcher  Fetcher
	delay    ratelimit.Delayer
	opts     Options
	logger   *slog.Logger
}

func New(sessions Sessions, fetcher Fetcher, delay ratelimit.Delayer, opts Options, logger *slog.Logger) *Orchestrator {
	if opts.BatchSize < 1 {
		opts.BatchSize = 1
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Orchestrator{
		sessions: sessions,
		fetcher:  fetcher,
		delay:    delay,
		opts:     opts,
		logger:   logger.With("component", "orchestrator"),
	}
}

// Run crawls the given goods numbers and streams outcomes through emit,
// called after each batch drains so callers can persist incrementally.
// Duplicates are collapsed preserving first-seen order. Only a session
// *session.FatalError (or context cancellation) aborts the run; everything
// else is an item-level failure in its Outcome.
func (o *Orchestrator) Run(ctx context.Context, goodsNos []string, emit func(Outcome)) error {
	ids := dedupe(goodsNos)
	if len(ids) < len(goodsNos) {
		o.logger.Info("duplicate goods numbers collapsed",
			"submitted", len(goodsNos), "unique", len(ids))
	}
	if len(ids) == 0 {
		return nil
	}

	bc, err := o.sessions.Context(ctx)
	if err != nil {
		return err
	}

	holder := &contextHolder{sessions: o.sessions, current: bc}
	defer holder.close()

	batches := partition(ids, o.opts.BatchSize)
	for i, batch := range batches {
		o.logger.Info("processing batch",
			"batch", i+1, "batches", len(batches), "items", len(batch))

		outcomes := o.runBatch(ctx, holder, batch)

		var fatal error
		for _, out := range outcomes {
			var fe *session.FatalError
			if errors.As(out.Err, &fe) {
				fatal = out.Err
				continue
			}
			emit(out)
		}
		if fatal != nil {
			return fatal
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		if i < len(batches)-1 {
			if err := o.delay.Wait(ctx); err != nil {
				return err
			}
		}
	}

	return nil
}

// RunAll is Run with the outcomes collected into a slice.
func (o *Orchestrator) RunAll(ctx context.Context, goodsNos []string) ([]Outcome, error) {
	var outcomes []Outcome
	err := o.Run(ctx, goodsNos, func(out Outcome) {
		outcomes = append(outcomes, out)
	})
	return outcomes, err
}

func (o *Orchestrator) runBatch(ctx context.Context, holder *contextHolder, batch []string) []Outcome {
	sem := semaphore.NewWeighted(int64(o.opts.Concurrency))
	outcomes := make([]Outcome, len(batch))

	var wg sync.WaitGroup
	for i, goodsNo := range batch {
		wg.Add(1)
		go func(i int, goodsNo string) {
			defer wg.Done()

			if err := sem.Acquire(ctx, 1); err != nil {
				outcomes[i] = Outcome{GoodsNo: goodsNo, Err: err}
				return
			}
			defer sem.Release(1)

			outcomes[i] = o.fetchItem(ctx, holder, goodsNo)
		}(i, goodsNo)
	}
	wg.Wait()

	return outcomes
}

// fetchItem runs one work item to its final outcome. A first verdict of
// session decay triggers exactly one refresh and one retry of this item; a
// second decay is finalized as an ordinary failure so a persistently
// hostile target cannot spin the refresh loop.
func (o *Orchestrator) fetchItem(ctx context.Context, holder *contextHolder, goodsNo string) (out Outcome) {
	out.GoodsNo = goodsNo

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("fetch panicked", "goods_no", goodsNo, "panic", r)
			out.Product = nil
			out.Err = fmt.Errorf("fetch panicked: %v", r)
		}
	}()

	bc := holder.get()
	product, err := o.fetchOnce(ctx, bc, goodsNo)
	if err == nil {
		out.Product = product
		return out
	}

	if !isSessionDecay(err) {
		out.Err = err
		return out
	}

	o.logger.Warn("session decay detected, refreshing", "goods_no", goodsNo, "cause", err)

	fresh, rerr := holder.refresh(ctx, bc)
	if rerr != nil {
		out.Err = rerr
		return out
	}

	product, err = o.fetchOnce(ctx, fresh, goodsNo)
	if err != nil {
		out.Err = err
		return out
	}

	out.Product = product
	return out
}

func (o *Orchestrator) fetchOnce(ctx context.Context, bc session.Context, goodsNo string) (*models.Product, error) {
	policy := o.opts.Retry
	if policy.Retryable == nil {
		policy.Retryable = transient
	}

	var product *models.Product
	err := policy.Do(ctx, func() error {
		p, ferr := o.fetcher.Fetch(ctx, bc, goodsNo)
		if ferr != nil {
			return ferr
		}
		if p == nil {
			// Extraction failed for reasons the classifier didn't catch.
			return classify.ErrNotFound
		}
		product = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

func isSessionDecay(err error) bool {
	return errors.Is(err, classify.ErrAuthExpired) || errors.Is(err, classify.ErrBotBlocked)
}

// transient is the default retryable predicate: classifier verdicts are
// definitive, anything else (timeouts, engine hiccups) earns another try.
func transient(err error) bool {
	return !errors.Is(err, classify.ErrNotFound) &&
		!errors.Is(err, classify.ErrAuthExpired) &&
		!errors.Is(err, classify.ErrBotBlocked)
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func partition(ids []string, size int) [][]string {
	var batches [][]string
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		batches = append(batches, ids[start:end])
	}
	return batches
}

// contextHolder guards the batch's shared browsing context. Refresh swaps
// it exactly once per decayed context: concurrent items that saw the same
// stale context piggyback on the first refresh instead of triggering
// their own.
type contextHolder struct {
	sessions Sessions
	mu       sync.Mutex
	current  session.Context
}

func (h *contextHolder) get() session.Context {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

func (h *contextHolder) refresh(ctx context.Context, stale session.Context) (session.Context, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.current != stale {
		return h.current, nil
	}

	fresh, err := h.sessions.Refresh(ctx, stale)
	if err != nil {
		return nil, err
	}

	h.current = fresh
	return fresh, nil
}

func (h *contextHolder) close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.current != nil {
		h.current.Close()
		h.current = nil
	}
}
