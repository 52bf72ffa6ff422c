package oliveyoung

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/kborae/catalog-crawler/internal/classify"
	"github.com/kborae/catalog-crawler/internal/models"
)

// ParseProduct extracts a product record from a rendered detail page.
// Missing name is treated as not-found; every other field degrades to its
// zero value rather than failing the item.
func ParseProduct(html, goodsNo string) (*models.Product, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page for %s: %w", goodsNo, err)
	}

	product := models.NewProduct(goodsNo)

	product.ItemName = strings.TrimSpace(doc.Find(".prd_name").First().Text())
	if product.ItemName == "" {
		return nil, fmt.Errorf("%s: %w", goodsNo, classify.ErrNotFound)
	}

	product.Brand = strings.TrimSpace(doc.Find(".prd_brand a").First().Text())

	// .price-2 carries the sale price; .price-1 holds the struck-through
	// original only when a discount is running.
	product.SalePrice = parsePrice(doc.Find(".price-2 strong").First().Text())
	product.Price = parsePrice(doc.Find(".price-1 strike").First().Text())
	if product.Price == 0 {
		product.Price = product.SalePrice
	}

	product.CategoryName = extractCategory(doc)
	product.SoldOut = doc.Find(".goods_buy").Length() == 0

	doc.Find(".prd_thumb_list img").Each(func(_ int, sel *goquery.Selection) {
		src, ok := sel.Attr("src")
		if !ok || src == "" {
			return
		}
		// Thumbnail URLs embed the rendition size; swap up to the large one.
		product.Images = append(product.Images, strings.Replace(src, "/85/", "/550/", 1))
	})

	doc.Find(".prd_flag .icon_flag").Each(func(_ int, sel *goquery.Selection) {
		if flag := strings.TrimSpace(sel.Text()); flag != "" {
			product.Flags = append(product.Flags, flag)
		}
	})

	doc.Find("#saleLayer .flex-item .label").Each(func(_ int, sel *goquery.Selection) {
		if benefit := strings.TrimSpace(sel.Text()); benefit != "" {
			product.Benefits = append(product.Benefits, benefit)
		}
	})

	return product, nil
}

// extractCategory walks the breadcrumb levels and joins the active ones.
func extractCategory(doc *goquery.Document) string {
	var parts []string
	for _, selector := range []string{
		".loc_history .goods_category1.on",
		".loc_history .goods_category2.on",
		".loc_history .goods_category3.on",
	} {
		if text := strings.TrimSpace(doc.Find(selector).First().Text()); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " > ")
}

// parsePrice strips everything but digits from a price string like
// "29,900원" and returns the integer value, zero when absent.
func parsePrice(text string) int {
	var digits strings.Builder
	for _, r := range text {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return 0
	}

	value := 0
	for _, r := range digits.String() {
		value = value*10 + int(r-'0')
	}
	return value
}
