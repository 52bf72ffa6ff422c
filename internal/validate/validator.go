// Package validate cleans crawled product records before they are handed
// downstream, keeping per-reason removal statistics.
package validate

import (
	"log/slog"
	"strings"

	"github.com/kborae/catalog-crawler/internal/models"
)

// Stats summarizes one validation pass.
type Stats struct {
	Total   int `json:"total"`
	Valid   int `json:"valid"`
	Removed int `json:"removed"`

	Duplicate       int `json:"duplicate"`
	MissingRequired int `json:"missing_required"`
	Discontinued    int `json:"discontinued"`
	InvalidPrice    int `json:"invalid_price"`
	MissingImages   int `json:"missing_images"`

	Reasons []Reason `json:"reasons,omitempty"`
}

type Reason struct {
	GoodsNo string `json:"goods_no"`
	Reason  string `json:"reason"`
	Details string `json:"details,omitempty"`
}

func (s *Stats) remove(goodsNo, reason, details string) {
	s.Removed++
	s.Reasons = append(s.Reasons, Reason{GoodsNo: goodsNo, Reason: reason, Details: details})
}

// Discontinued-item markers that show up in listing names.
var discontinuedMarkers = []string{"판매종료", "판매 종료", "단종"}

type Validator struct {
	logger *slog.Logger
}

func NewValidator(logger *slog.Logger) *Validator {
	return &Validator{logger: logger.With("component", "validator")}
}

// Validate filters the crawled records, returning the survivors and the
// removal statistics. Duplicates by goods number keep the first occurrence.
func (v *Validator) Validate(products []*models.Product) ([]*models.Product, *Stats) {
	stats := &Stats{Total: len(products)}

	seen := make(map[string]struct{}, len(products))
	valid := make([]*models.Product, 0, len(products))

	for _, p := range products {
		goodsNo := strings.TrimSpace(p.GoodsNo)

		if goodsNo != "" {
			if _, dup := seen[goodsNo]; dup {
				stats.Duplicate++
				stats.remove(goodsNo, "duplicate", "goods number already seen")
				continue
			}
			seen[goodsNo] = struct{}{}
		}

		if missing := requiredFieldsMissing(p); len(missing) > 0 {
			stats.MissingRequired++
			stats.remove(goodsNo, "missing_required", strings.Join(missing, ", "))
			continue
		}

		if discontinued(p) {
			stats.Discontinued++
			stats.remove(goodsNo, "discontinued", p.ItemName)
			continue
		}

		if p.Price <= 0 {
			stats.InvalidPrice++
			stats.remove(goodsNo, "invalid_price", "")
			continue
		}

		if len(p.Images) == 0 {
			stats.MissingImages++
			stats.remove(goodsNo, "missing_images", "")
			continue
		}

		valid = append(valid, clean(p))
	}

	stats.Valid = len(valid)
	v.logger.Info("product validation finished",
		"total", stats.Total, "valid", stats.Valid, "removed", stats.Removed)

	return valid, stats
}

func requiredFieldsMissing(p *models.Product) []string {
	var missing []string
	if strings.TrimSpace(p.GoodsNo) == "" {
		missing = append(missing, "goods_no")
	}
	if strings.TrimSpace(p.ItemName) == "" {
		missing = append(missing, "item_name")
	}
	if strings.TrimSpace(p.CategoryName) == "" {
		missing = append(missing, "category_name")
	}
	return missing
}

func discontinued(p *models.Product) bool {
	if p.SoldOut {
		return true
	}
	for _, marker := range discontinuedMarkers {
		if strings.Contains(p.ItemName, marker) {
			return true
		}
	}
	return false
}

func clean(p *models.Product) *models.Product {
	p.ItemName = strings.TrimSpace(p.ItemName)
	p.Brand = strings.TrimSpace(p.Brand)
	p.CategoryName = strings.TrimSpace(p.CategoryName)
	p.OriginCountry = strings.TrimSpace(p.OriginCountry)
	return p
}
