package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arithmax-research/TurboBook/domain/analyzer"
)

func TestPublishStoresReportWithTTL(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewReportCache(db, time.Minute)

	r := analyzer.Report{Symbol: "ETHUSDT", BestBid: 100, BestAsk: 101, Liquidity: 0.7}
	payload, err := json.Marshal(r)
	require.NoError(t, err)
	mock.ExpectSet("turbobook:report:ETHUSDT", string(payload), time.Minute).SetVal("OK")

	require.NoError(t, c.Publish(context.Background(), r))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatest(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewReportCache(db, time.Minute)
	ctx := context.Background()

	t.Run("hit decodes report", func(t *testing.T) {
		mock.ExpectGet("turbobook:report:ETHUSDT").SetVal(`{"symbol":"ETHUSDT","best_bid":100,"liquidity":0.5}`)
		r, found, err := c.Latest(ctx, "ETHUSDT")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, 100.0, r.BestBid)
		assert.Equal(t, 0.5, r.Liquidity)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("miss is not an error", func(t *testing.T) {
		mock.ExpectGet("turbobook:report:BTCUSDT").RedisNil()
		_, found, err := c.Latest(ctx, "BTCUSDT")
		require.NoError(t, err)
		assert.False(t, found)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("redis error surfaces", func(t *testing.T) {
		mock.ExpectGet("turbobook:report:BTCUSDT").SetErr(redis.TxFailedErr)
		_, _, err := c.Latest(ctx, "BTCUSDT")
		assert.ErrorIs(t, err, redis.TxFailedErr)
	})
}
