package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/kborae/catalog-crawler/internal/models"
)

var ErrProductNotFound = errors.New("product not found")

// ProductRepo persists crawled products keyed by goods number. Writes are
// upserts, so re-running a crawl over the same identifiers is idempotent.
type ProductRepo struct {
	db *DB
}

func NewProductRepo(db *DB) *ProductRepo {
	return &ProductRepo{db: db}
}

func (r *ProductRepo) Upsert(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products (
			goods_no, url, item_name, brand, price, sale_price,
			category_name, origin_country, images, benefits, flags,
			sold_out, crawled_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now())
		ON CONFLICT (goods_no) DO UPDATE SET
			url = EXCLUDED.url,
			item_name = EXCLUDED.item_name,
			brand = EXCLUDED.brand,
			price = EXCLUDED.price,
			sale_price = EXCLUDED.sale_price,
			category_name = EXCLUDED.category_name,
			origin_country = EXCLUDED.origin_country,
			images = EXCLUDED.images,
			benefits = EXCLUDED.benefits,
			flags = EXCLUDED.flags,
			sold_out = EXCLUDED.sold_out,
			crawled_at = EXCLUDED.crawled_at,
			updated_at = now()
	`

	_, err := r.db.pool.Exec(ctx, query,
		p.GoodsNo, p.URL, p.ItemName, p.Brand, p.Price, p.SalePrice,
		p.CategoryName, p.OriginCountry, p.Images, p.Benefits, p.Flags,
		p.SoldOut, p.CrawledAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert product %s: %w", p.GoodsNo, err)
	}

	return nil
}

func (r *ProductRepo) Get(ctx context.Context, goodsNo string) (*models.Product, error) {
	query := `
		SELECT goods_no, url, item_name, brand, price, sale_price,
		       category_name, origin_country, images, benefits, flags,
		       sold_out, crawled_at, updated_at
		FROM products
		WHERE goods_no = $1
	`

	var p models.Product
	err := r.db.pool.QueryRow(ctx, query, goodsNo).Scan(
		&p.GoodsNo, &p.URL, &p.ItemName, &p.Brand, &p.Price, &p.SalePrice,
		&p.CategoryName, &p.OriginCountry, &p.Images, &p.Benefits, &p.Flags,
		&p.SoldOut, &p.CrawledAt, &p.LastUpdated,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product %s: %w", goodsNo, err)
	}

	return &p, nil
}
