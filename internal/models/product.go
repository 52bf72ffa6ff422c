package models

import (
	"time"
)

// Product is one crawled catalog record, keyed by the site's goods number.
type Product struct {
	GoodsNo       string    `json:"goods_no"`
	URL           string    `json:"url"`
	ItemName      string    `json:"item_name"`
	Brand         string    `json:"brand"`
	Price         int       `json:"price"`
	SalePrice     int       `json:"sale_price"`
	CategoryName  string    `json:"category_name"`
	OriginCountry string    `json:"origin_country"`
	Images        []string  `json:"images"`
	Benefits      []string  `json:"benefits"`
	Flags         []string  `json:"flags"`
	SoldOut       bool      `json:"sold_out"`
	CrawledAt     time.Time `json:"crawled_at"`
	LastUpdated   time.Time `json:"last_updated"`
}

func NewProduct(goodsNo string) *Product {
	now := time.Now()
	return &Product{
		GoodsNo:     goodsNo,
		CrawledAt:   now,
		LastUpdated: now,
		Images:      make([]string, 0),
	}
}

func (p *Product) Validate() []string {
	var errors []string

	if p.GoodsNo == "" {
		errors = append(errors, "goods number is required")
	}

	if p.ItemName == "" {
		errors = append(errors, "item name is required")
	}

	if p.Price <= 0 {
		errors = append(errors, "invalid price")
	}

	if len(p.Images) == 0 {
		errors = append(errors, "no images")
	}

	return errors
}
