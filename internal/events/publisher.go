// Package events publishes crawl outcomes to a Redis stream for downstream
// consumers (the marketplace upload pipeline).
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/kborae/catalog-crawler/internal/models"
)

const (
	EventProductCrawled = "PRODUCT_CRAWLED"
	EventProductFailed  = "PRODUCT_FAILED"
)

// RedisClient is the slice of go-redis the publisher uses, kept narrow so
// tests can fake it.
type RedisClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
}

type Publisher struct {
	client RedisClient
	stream string
	logger *slog.Logger
}

func NewPublisher(client RedisClient, stream string, logger *slog.Logger) *Publisher {
	return &Publisher{
		client: client,
		stream: stream,
		logger: logger.With("component", "events"),
	}
}

// ProductCrawled publishes a successfully crawled record.
func (p *Publisher) ProductCrawled(ctx context.Context, product *models.Product) error {
	payload, err := json.Marshal(product)
	if err != nil {
		return fmt.Errorf("failed to marshal product %s: %w", product.GoodsNo, err)
	}

	return p.publish(ctx, EventProductCrawled, product.GoodsNo, string(payload))
}

// ProductFailed publishes a final per-item failure with its reason.
func (p *Publisher) ProductFailed(ctx context.Context, goodsNo string, cause error) error {
	message := ""
	if cause != nil {
		message = cause.Error()
	}

	return p.publish(ctx, EventProductFailed, goodsNo, message)
}

func (p *Publisher) publish(ctx context.Context, eventType, goodsNo, payload string) error {
	err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"event_id":    uuid.New().String(),
			"event_type":  eventType,
			"goods_no":    goodsNo,
			"payload":     payload,
			"occurred_at": time.Now().UTC().Format(time.RFC3339),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish %s for %s: %w", eventType, goodsNo, err)
	}

	p.logger.Debug("event published", "type", eventType, "goods_no", goodsNo)
	return nil
}
