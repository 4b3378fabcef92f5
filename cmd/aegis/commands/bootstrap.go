package commands

import (
	"context"
	"fmt"

	"github.com/wonny/aegis/v14/internal/ai"
	"github.com/wonny/aegis/v14/internal/analysis"
	"github.com/wonny/aegis/v14/internal/fetch"
	"github.com/wonny/aegis/v14/internal/fetch/sources"
	"github.com/wonny/aegis/v14/internal/fusion"
	"github.com/wonny/aegis/v14/internal/lifecycle"
	"github.com/wonny/aegis/v14/internal/notify"
	"github.com/wonny/aegis/v14/internal/orchestrator"
	"github.com/wonny/aegis/v14/internal/ratelimit"
	"github.com/wonny/aegis/v14/internal/screener"
	"github.com/wonny/aegis/v14/internal/store"
	"github.com/wonny/aegis/v14/pkg/config"
	"github.com/wonny/aegis/v14/pkg/database"
	"github.com/wonny/aegis/v14/pkg/httputil"
	"github.com/wonny/aegis/v14/pkg/logger"
	"github.com/wonny/aegis/v14/pkg/redis"
)

// app holds the shared dependencies every command starts from
type app struct {
	cfg   *config.Config
	log   *logger.Logger
	db    *database.DB
	store *store.Store
	redis *redis.Client
	cache *redis.Cache
	http  *httputil.Client
	kis   *sources.KISClient
}

// bootstrap wires config → logger → DB → store → clients.
// 모든 커맨드의 공통 초기화 경로.
func bootstrap() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w (%w)", err, ErrExternalUnavailable)
	}

	rdb, err := redis.New(cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to redis: %w (%w)", err, ErrExternalUnavailable)
	}

	httpClient := httputil.New(log)

	return &app{
		cfg:   cfg,
		log:   log,
		db:    db,
		store: store.New(db.Pool, log),
		redis: rdb,
		cache: redis.NewCache(rdb, "aegis"),
		http:  httpClient,
		kis:   sources.NewKISClient(cfg.KIS, httpClient, log),
	}, nil
}

// Close releases the shared connections
func (a *app) Close() {
	a.redis.Close()
	a.db.Close()
}

// buildOrchestrator assembles the tiered collection stack from the
// site registry.
func (a *app) buildOrchestrator(ctx context.Context) (*orchestrator.Orchestrator, error) {
	sites, err := a.store.ListActiveSites(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active sites: %w", err)
	}
	if len(sites) == 0 {
		return nil, fmt.Errorf("no active sites registered")
	}

	limiter := ratelimit.New(sites)
	executor := fetch.NewExecutor(a.store, limiter, a.log, a.cfg.Settings.FetchTimeout)
	fetchers := sources.Build(sites, sources.Deps{
		HTTP:   a.http,
		KIS:    a.kis,
		Config: a.cfg,
		Logger: a.log,
	})

	return orchestrator.New(executor, fetchers, a.log,
		a.cfg.Settings.WorkerCount, a.cfg.Settings.Tier4Workers), nil
}

// buildAnalysisEngine wires the 7 analysers. The market analyser is
// returned separately because it doubles as the MarketContexter.
// Gemini 키가 없으면 뉴스 분석은 키워드 폴백으로만 돈다.
func (a *app) buildAnalysisEngine(ctx context.Context) (*analysis.Engine, *analysis.MarketAnalyser) {
	var sentiment analysis.SentimentModel
	if a.cfg.Gemini.APIKey != "" {
		client, err := ai.NewClient(ctx, a.cfg.Gemini, a.log)
		if err != nil {
			a.log.WithError(err).Warn("Gemini unavailable, news analyser falls back to keywords")
		} else {
			sentiment = ai.NewSentimentScorer(client, a.log)
		}
	}

	market := analysis.NewMarketAnalyser(a.store, a.cache, a.log)
	engine := analysis.NewEngine([]analysis.Analyser{
		analysis.NewTechnicalAnalyser(a.store, a.log),
		analysis.NewDisclosureAnalyser(a.store, a.log),
		analysis.NewSupplyAnalyser(a.store, a.log),
		analysis.NewFundamentalAnalyser(a.store, a.log),
		market,
		analysis.NewNewsAnalyser(a.store, sentiment, a.log),
		analysis.NewConsensusAnalyser(a.store, a.log),
	}, a.log)
	return engine, market
}

// buildCollector wires the freshness-gated collector on top of the
// orchestrator.
func (a *app) buildCollector(ctx context.Context) (*lifecycle.Collector, error) {
	orch, err := a.buildOrchestrator(ctx)
	if err != nil {
		return nil, err
	}
	return lifecycle.NewCollector(a.store, orch, a.cache, a.log), nil
}

// buildBatch assembles the full daily pipeline: screen → collect →
// analyse → fuse → persist.
func (a *app) buildBatch(ctx context.Context) (*lifecycle.Batch, error) {
	collector, err := a.buildCollector(ctx)
	if err != nil {
		return nil, err
	}

	engine, market := a.buildAnalysisEngine(ctx)
	universe := screener.New(a.store, a.log, a.cfg.Settings)
	fuser := fusion.New(a.log, a.cfg.Settings)

	return lifecycle.NewBatch(universe, collector, engine, market, fuser, a.store, a.log), nil
}

// notifier builds the Slack notifier; a missing webhook URL makes it
// a no-op.
func (a *app) notifier() *notify.Notifier {
	return notify.New(a.cfg.SlackWebhookURL, a.http, a.log)
}
