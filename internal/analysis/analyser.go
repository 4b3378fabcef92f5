package analysis

import (
	"context"
	"sync"
	"time"

	"github.com/wonny/aegis/v14/internal/contracts"
	"github.com/wonny/aegis/v14/pkg/logger"
)

// DataSource is the persistence surface analysers read from.
// *store.Store satisfies it.
type DataSource interface {
	GetPrices(ctx context.Context, code string, asOf time.Time, limit int) ([]contracts.OHLCV, error)
	GetFlows(ctx context.Context, code string, asOf time.Time, limit int) ([]contracts.SupplyDemand, error)
	GetLatestBlob(ctx context.Context, code, dataType string) (*contracts.CollectedBlob, error)
	GetBlobsSince(ctx context.Context, code, dataType string, since time.Time) ([]contracts.CollectedBlob, error)
	GetTicksSince(ctx context.Context, code string, since time.Time) ([]contracts.Tick, error)
}

// Analyser scores one perspective of a ticker on [-2, +2]
type Analyser interface {
	Name() string
	Analyse(ctx context.Context, code string, asOf time.Time) (contracts.AnalyserResult, error)
}

// Engine fans analysers out per ticker and gathers their results.
// An analyser error drops that perspective from the result set; the
// fusion layer treats the missing analyser as weight zero.
// ⭐ SSOT: 분석기 실행/수집은 여기서만
type Engine struct {
	analysers []Analyser
	logger    *logger.Logger
}

// NewEngine builds the engine over an ordered analyser set
func NewEngine(analysers []Analyser, log *logger.Logger) *Engine {
	return &Engine{
		analysers: analysers,
		logger:    log.WithComponent("analysis"),
	}
}

// Analysers returns the registered analyser names in order
func (e *Engine) Analysers() []string {
	names := make([]string, len(e.analysers))
	for i, a := range e.analysers {
		names[i] = a.Name()
	}
	return names
}

// Run executes every analyser for one ticker concurrently
func (e *Engine) Run(ctx context.Context, code string, asOf time.Time) map[string]contracts.AnalyserResult {
	results := make(map[string]contracts.AnalyserResult, len(e.analysers))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, a := range e.analysers {
		wg.Add(1)
		go func(a Analyser) {
			defer wg.Done()

			result, err := a.Analyse(ctx, code, asOf)
			if err != nil {
				e.logger.WithError(err).WithFields(map[string]interface{}{
					"analyser": a.Name(),
					"ticker":   code,
				}).Warn("Analyser failed, dropping from fusion")
				return
			}

			result.Clamp()
			mu.Lock()
			results[a.Name()] = result
			mu.Unlock()
		}(a)
	}

	wg.Wait()
	return results
}
