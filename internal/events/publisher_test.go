package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kborae/catalog-crawler/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeRedis struct {
	added []*redis.XAddArgs
	err   error
}

func (f *fakeRedis) XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd {
	f.added = append(f.added, args)
	cmd := redis.NewStringCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
	} else {
		cmd.SetVal("1-0")
	}
	return cmd
}

func TestProductCrawled(t *testing.T) {
	client := &fakeRedis{}
	publisher := NewPublisher(client, "stream:catalog_products", testLogger())

	product := models.NewProduct("A000000210002")
	product.ItemName = "수분 크림"
	product.Price = 22000

	require.NoError(t, publisher.ProductCrawled(context.Background(), product))
	require.Len(t, client.added, 1)

	args := client.added[0]
	assert.Equal(t, "stream:catalog_products", args.Stream)
	assert.Equal(t, EventProductCrawled, args.Values.(map[string]interface{})["event_type"])

	values := args.Values.(map[string]interface{})
	assert.Equal(t, "A000000210002", values["goods_no"])
	assert.NotEmpty(t, values["event_id"])
	assert.NotEmpty(t, values["occurred_at"])

	var decoded models.Product
	require.NoError(t, json.Unmarshal([]byte(values["payload"].(string)), &decoded))
	assert.Equal(t, "수분 크림", decoded.ItemName)
	assert.Equal(t, 22000, decoded.Price)
}

func TestProductFailed(t *testing.T) {
	client := &fakeRedis{}
	publisher := NewPublisher(client, "stream:catalog_products", testLogger())

	require.NoError(t, publisher.ProductFailed(context.Background(), "A1", errors.New("bot blocked")))
	require.Len(t, client.added, 1)

	values := client.added[0].Values.(map[string]interface{})
	assert.Equal(t, EventProductFailed, values["event_type"])
	assert.Equal(t, "A1", values["goods_no"])
	assert.Equal(t, "bot blocked", values["payload"])
}

func TestPublishErrorPropagates(t *testing.T) {
	client := &fakeRedis{err: errors.New("connection refused")}
	publisher := NewPublisher(client, "s", testLogger())

	err := publisher.ProductFailed(context.Background(), "A1", nil)
	assert.ErrorContains(t, err, "connection refused")
}
