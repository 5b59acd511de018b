package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/stockcore/internal/domain/production"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// DefaultExchangeRateKey holds the latest TJS per USD rate as a decimal string
const DefaultExchangeRateKey = "ledger:fx:usd_tjs"

// StaticExchangeRateProvider always returns the configured rate
type StaticExchangeRateProvider struct {
	rate decimal.Decimal
}

// NewStaticExchangeRateProvider creates a provider for a fixed rate
func NewStaticExchangeRateProvider(rate decimal.Decimal) *StaticExchangeRateProvider {
	return &StaticExchangeRateProvider{rate: rate}
}

// LatestRate returns the fixed rate, or ErrRateUnavailable when it is not positive
func (p *StaticExchangeRateProvider) LatestRate(ctx context.Context) (decimal.Decimal, error) {
	if !p.rate.IsPositive() {
		return decimal.Zero, production.ErrRateUnavailable
	}
	return p.rate, nil
}

// RedisExchangeRateProvider reads the rate published under a Redis key by the
// finance side. A missing key falls back to the configured default.
type RedisExchangeRateProvider struct {
	client   redis.UniversalClient
	key      string
	fallback decimal.Decimal
}

// NewRedisExchangeRateProvider creates a provider reading key
func NewRedisExchangeRateProvider(client redis.UniversalClient, key string, fallback decimal.Decimal) *RedisExchangeRateProvider {
	if key == "" {
		key = DefaultExchangeRateKey
	}
	return &RedisExchangeRateProvider{client: client, key: key, fallback: fallback}
}

// LatestRate returns the published rate
func (p *RedisExchangeRateProvider) LatestRate(ctx context.Context) (decimal.Decimal, error) {
	raw, err := p.client.Get(ctx, p.key).Result()
	if errors.Is(err, redis.Nil) {
		if p.fallback.IsPositive() {
			return p.fallback, nil
		}
		return decimal.Zero, production.ErrRateUnavailable
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read exchange rate: %w", err)
	}

	rate, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("malformed exchange rate %q: %w", raw, err)
	}
	if !rate.IsPositive() {
		return decimal.Zero, production.ErrRateUnavailable
	}
	return rate, nil
}

// Publish stores a new rate
func (p *RedisExchangeRateProvider) Publish(ctx context.Context, rate decimal.Decimal) error {
	if !rate.IsPositive() {
		return production.ErrRateUnavailable
	}
	return p.client.Set(ctx, p.key, rate.String(), 0).Err()
}

var (
	_ production.ExchangeRateProvider = (*StaticExchangeRateProvider)(nil)
	_ production.ExchangeRateProvider = (*RedisExchangeRateProvider)(nil)
)
