package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/erp/stockcore/internal/domain/production"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisIdempotencyStore(t *testing.T) {
	mr, client := setupMiniredis(t)
	store := NewRedisIdempotencyStore(client, "")
	ctx := context.Background()

	isNew, err := store.MarkProcessed(ctx, "audit:evt-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.True(t, mr.Exists("ledger:idempotency:audit:evt-1"))

	isNew, err = store.MarkProcessed(ctx, "audit:evt-1", time.Hour)
	require.NoError(t, err)
	assert.False(t, isNew)

	mr.FastForward(2 * time.Hour)
	processed, err := store.IsProcessed(ctx, "audit:evt-1")
	require.NoError(t, err)
	assert.False(t, processed, "key expires with its TTL")

	_, err = store.MarkProcessed(ctx, "audit:evt-2", time.Hour)
	require.NoError(t, err)
	require.NoError(t, store.Forget(ctx, "audit:evt-2"))
	processed, err = store.IsProcessed(ctx, "audit:evt-2")
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestRedisIdempotencyStore_ConnectionError(t *testing.T) {
	mr, client := setupMiniredis(t)
	store := NewRedisIdempotencyStore(client, "p:")
	mr.Close()

	_, err := store.MarkProcessed(context.Background(), "evt", time.Hour)
	assert.Error(t, err)
}

func TestNewIdempotencyStore_FallsBackWithoutClient(t *testing.T) {
	store := NewIdempotencyStore(nil, zap.NewNop())
	defer store.Close()
	_, ok := store.(*InMemoryIdempotencyStore)
	assert.True(t, ok)

	_, client := setupMiniredis(t)
	_, ok = NewIdempotencyStore(client, nil).(*RedisIdempotencyStore)
	assert.True(t, ok)
}

func TestRedisExchangeRateProvider(t *testing.T) {
	mr, client := setupMiniredis(t)
	ctx := context.Background()

	t.Run("missing key without fallback", func(t *testing.T) {
		p := NewRedisExchangeRateProvider(client, "", decimal.Zero)
		_, err := p.LatestRate(ctx)
		assert.ErrorIs(t, err, production.ErrRateUnavailable)
	})

	t.Run("missing key uses fallback", func(t *testing.T) {
		p := NewRedisExchangeRateProvider(client, "", decimal.RequireFromString("10.95"))
		rate, err := p.LatestRate(ctx)
		require.NoError(t, err)
		assert.Equal(t, "10.95", rate.String())
	})

	t.Run("published rate wins", func(t *testing.T) {
		p := NewRedisExchangeRateProvider(client, "", decimal.RequireFromString("10.95"))
		require.NoError(t, p.Publish(ctx, decimal.RequireFromString("11.02")))

		rate, err := p.LatestRate(ctx)
		require.NoError(t, err)
		assert.Equal(t, "11.02", rate.String())
		got, _ := mr.Get(DefaultExchangeRateKey)
		assert.Equal(t, "11.02", got)
	})

	t.Run("garbage is an error", func(t *testing.T) {
		require.NoError(t, mr.Set("fx:bad", "eleven"))
		p := NewRedisExchangeRateProvider(client, "fx:bad", decimal.Zero)
		_, err := p.LatestRate(ctx)
		assert.Error(t, err)
	})

	t.Run("non positive rate", func(t *testing.T) {
		p := NewRedisExchangeRateProvider(client, "fx:zero", decimal.Zero)
		assert.ErrorIs(t, p.Publish(ctx, decimal.Zero), production.ErrRateUnavailable)
	})
}

func TestStaticExchangeRateProvider(t *testing.T) {
	rate, err := NewStaticExchangeRateProvider(decimal.NewFromInt(11)).LatestRate(context.Background())
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(11).Equal(rate))

	_, err = NewStaticExchangeRateProvider(decimal.Zero).LatestRate(context.Background())
	assert.ErrorIs(t, err, production.ErrRateUnavailable)
}
