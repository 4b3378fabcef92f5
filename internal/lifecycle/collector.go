// Package lifecycle drives the daily recommendation pipeline: collect,
// analyse, fuse, persist, then track outcomes and learn from failures.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/aegis/v14/internal/contracts"
	"github.com/wonny/aegis/v14/internal/orchestrator"
	"github.com/wonny/aegis/v14/pkg/logger"
	"github.com/wonny/aegis/v14/pkg/redis"
)

// CollectorStore is the persistence surface the collector needs
type CollectorStore interface {
	BlobFreshAt(ctx context.Context, code, dataType string, now time.Time, maxAge time.Duration) (bool, error)
	GetLatestBlob(ctx context.Context, code, dataType string) (*contracts.CollectedBlob, error)
	SavePrices(ctx context.Context, bars []contracts.OHLCV) (int, error)
	SaveFlows(ctx context.Context, flows []contracts.SupplyDemand) (int, error)
}

// SingleRunner collects all sources for one ticker
type SingleRunner interface {
	RunSingle(ctx context.Context, ticker contracts.Ticker) (orchestrator.Summary, error)
}

// Collector guarantees fresh collected data before analysis and
// materialises price/flow blobs into the structured tables the
// analysers query.
// ⭐ SSOT: 수집 신선도 판정은 여기서만
type Collector struct {
	store    CollectorStore
	runner   SingleRunner
	cache    *redis.Cache
	logger   *logger.Logger
	freshFor time.Duration
}

// NewCollector wires the freshness-gated collector. freshFor is the
// blob age that still counts as fresh (production: 1 hour).
func NewCollector(store CollectorStore, runner SingleRunner, cache *redis.Cache, log *logger.Logger) *Collector {
	return &Collector{
		store:    store,
		runner:   runner,
		cache:    cache,
		logger:   log.WithComponent("collector"),
		freshFor: redis.TTLFreshness,
	}
}

// Ensure refreshes the ticker's collected data unless a fresh price
// blob already exists, then materialises price and flow blobs.
func (c *Collector) Ensure(ctx context.Context, ticker contracts.Ticker, now time.Time) error {
	if !c.isFresh(ctx, ticker.Code, now) {
		if _, err := c.runner.RunSingle(ctx, ticker); err != nil {
			return fmt.Errorf("collect %s: %w", ticker.Code, err)
		}
		c.markFresh(ctx, ticker.Code)
	}
	return c.Materialise(ctx, ticker.Code)
}

// isFresh checks the Redis fast path first, then the blob timestamp
func (c *Collector) isFresh(ctx context.Context, code string, now time.Time) bool {
	if c.cache != nil {
		var marker string
		if hit, err := c.cache.Get(ctx, redis.FreshnessKey(code, "price_daily_v1"), &marker); err == nil && hit {
			return true
		}
	}
	fresh, err := c.store.BlobFreshAt(ctx, code, "price_daily_v1", now, c.freshFor)
	if err != nil {
		c.logger.WithError(err).WithField("ticker", code).Warn("Freshness check failed, forcing collection")
		return false
	}
	return fresh
}

func (c *Collector) markFresh(ctx context.Context, code string) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Set(ctx, redis.FreshnessKey(code, "price_daily_v1"), "1", redis.TTLFreshness); err != nil {
		c.logger.WithError(err).Debug("Freshness marker write failed")
	}
}

// Materialise copies the latest price and flow blobs into the
// structured tables. Invalid rows are dropped by the store layer.
func (c *Collector) Materialise(ctx context.Context, code string) error {
	if err := c.materialisePrices(ctx, code); err != nil {
		return err
	}
	return c.materialiseFlows(ctx, code)
}

func (c *Collector) materialisePrices(ctx context.Context, code string) error {
	blob, err := c.store.GetLatestBlob(ctx, code, "price_daily_v1")
	if err != nil {
		return fmt.Errorf("load price blob %s: %w", code, err)
	}
	if blob == nil {
		return nil
	}

	items := contracts.ContentList(blob.Content, "bars")
	bars := make([]contracts.OHLCV, 0, len(items))
	for _, item := range items {
		date := contracts.ContentTime(item, "date")
		if date.IsZero() {
			continue
		}
		bars = append(bars, contracts.OHLCV{
			TickerCode:   code,
			Date:         date,
			Open:         contracts.ContentInt(item, "open"),
			High:         contracts.ContentInt(item, "high"),
			Low:          contracts.ContentInt(item, "low"),
			Close:        contracts.ContentInt(item, "close"),
			Volume:       contracts.ContentInt(item, "volume"),
			TradingValue: contracts.ContentInt(item, "trading_value"),
		})
	}
	if len(bars) == 0 {
		return nil
	}

	saved, err := c.store.SavePrices(ctx, bars)
	if err != nil {
		return fmt.Errorf("materialise prices %s: %w", code, err)
	}
	c.logger.WithFields(map[string]interface{}{"ticker": code, "bars": saved}).Debug("Materialised daily prices")
	return nil
}

func (c *Collector) materialiseFlows(ctx context.Context, code string) error {
	blob, err := c.store.GetLatestBlob(ctx, code, "flow_daily_v1")
	if err != nil {
		return fmt.Errorf("load flow blob %s: %w", code, err)
	}
	if blob == nil {
		return nil
	}

	items := contracts.ContentList(blob.Content, "flows")
	flows := make([]contracts.SupplyDemand, 0, len(items))
	for _, item := range items {
		date := contracts.ContentTime(item, "date")
		if date.IsZero() {
			continue
		}
		flows = append(flows, contracts.SupplyDemand{
			TickerCode:     code,
			Date:           date,
			ForeignNet:     contracts.ContentInt(item, "foreign_net"),
			InstitutionNet: contracts.ContentInt(item, "institution_net"),
			PensionNet:     contracts.ContentInt(item, "pension_net"),
			IndividualNet:  contracts.ContentInt(item, "individual_net"),
			TrustNet:       contracts.ContentInt(item, "trust_net"),
		})
	}
	if len(flows) == 0 {
		return nil
	}

	if _, err := c.store.SaveFlows(ctx, flows); err != nil {
		return fmt.Errorf("materialise flows %s: %w", code, err)
	}
	return nil
}
