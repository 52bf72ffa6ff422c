// Package storage is the JSON-file persistence used by the CLI: one result
// entry per goods number, upserted as batches complete.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/kborae/catalog-crawler/internal/models"
)

type Result struct {
	GoodsNo   string          `json:"goods_no"`
	Status    string          `json:"status"` // completed, failed
	Product   *models.Product `json:"product,omitempty"`
	Error     string          `json:"error,omitempty"`
	AddedAt   time.Time       `json:"added_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type ResultStore struct {
	mu       sync.RWMutex
	results  map[string]*Result
	filename string
}

func NewResultStore(filename string) (*ResultStore, error) {
	rs := &ResultStore{
		results:  make(map[string]*Result),
		filename: filename,
	}

	if err := rs.load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	return rs, nil
}

// MarkSuccess records a crawled product, replacing any earlier entry for
// the same goods number.
func (rs *ResultStore) MarkSuccess(p *models.Product) error {
	return rs.upsert(&Result{
		GoodsNo: p.GoodsNo,
		Status:  "completed",
		Product: p,
	})
}

// MarkFailure records a failed item with its reason.
func (rs *ResultStore) MarkFailure(goodsNo string, cause error) error {
	r := &Result{
		GoodsNo: goodsNo,
		Status:  "failed",
	}
	if cause != nil {
		r.Error = cause.Error()
	}
	return rs.upsert(r)
}

func (rs *ResultStore) upsert(r *Result) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if r.GoodsNo == "" {
		return fmt.Errorf("goods number is required")
	}

	now := time.Now()
	if existing, ok := rs.results[r.GoodsNo]; ok {
		r.AddedAt = existing.AddedAt
	} else {
		r.AddedAt = now
	}
	r.UpdatedAt = now

	rs.results[r.GoodsNo] = r
	return rs.save()
}

func (rs *ResultStore) Get(goodsNo string) (*Result, bool) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	r, ok := rs.results[goodsNo]
	return r, ok
}

func (rs *ResultStore) List() []*Result {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	out := make([]*Result, 0, len(rs.results))
	for _, r := range rs.results {
		out = append(out, r)
	}
	return out
}

// Counts returns how many results completed and failed.
func (rs *ResultStore) Counts() (completed, failed int) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	for _, r := range rs.results {
		switch r.Status {
		case "completed":
			completed++
		case "failed":
			failed++
		}
	}
	return completed, failed
}

func (rs *ResultStore) save() error {
	data, err := json.MarshalIndent(rs.results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}

	return os.WriteFile(rs.filename, data, 0o644)
}

func (rs *ResultStore) load() error {
	data, err := os.ReadFile(rs.filename)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, &rs.results)
}
