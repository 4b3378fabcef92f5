package backtest

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/wonny/aegis/v14/internal/contracts"
	"github.com/wonny/aegis/v14/internal/regime"
	"github.com/wonny/aegis/v14/internal/strategy"
	"github.com/wonny/aegis/v14/pkg/logger"
)

// Exit causes recorded in the trade log
const (
	ExitStopLoss     = "stop_loss"
	ExitTrailingStop = "trailing_stop"
	ExitSignal       = "signal_exit"
	ExitEndOfTest    = "end_of_test"
)

// Config holds the simulation parameters. Zero values are filled with
// the production defaults in New.
type Config struct {
	InitialCapital int64
	Commission     float64 // 왕복 각 0.015%
	Slippage       float64 // 체결가 0.05% 불리하게
	EntryThreshold float64 // 앙상블 신호 진입 하한
	ExitThreshold  float64 // 앙상블 신호 청산 상한
}

// DefaultConfig returns the production simulation parameters
func DefaultConfig() Config {
	return Config{
		InitialCapital: 100_000_000,
		Commission:     0.00015,
		Slippage:       0.0005,
		EntryThreshold: 1.0,
		ExitThreshold:  -0.5,
	}
}

// Trade is one completed round trip
type Trade struct {
	TickerCode string    `json:"ticker_code"`
	EntryDate  time.Time `json:"entry_date"`
	ExitDate   time.Time `json:"exit_date"`
	Shares     int64     `json:"shares"`
	EntryPrice int64     `json:"entry_price"`
	ExitPrice  int64     `json:"exit_price"`
	PnL        int64     `json:"pnl"`
	ReturnPct  float64   `json:"return_pct"`
	ExitCause  string    `json:"exit_cause"`
}

// EquityPoint is one mark-to-market sample of the account
type EquityPoint struct {
	Date   time.Time `json:"date"`
	Equity int64     `json:"equity"`
	Return float64   `json:"return"`
}

// Result aggregates everything a simulation produced
type Result struct {
	Config         Config
	StartDate      time.Time
	EndDate        time.Time
	TradingDays    int
	InitialCapital int64
	FinalCapital   int64
	TotalReturn    float64
	MaxDrawdown    float64
	WinRate        float64
	ProfitFactor   float64
	BreakerTrips   int

	Trades      []Trade
	ExitCauses  map[string]int
	EquityCurve []EquityPoint
}

// position is an open long during simulation
type position struct {
	shares    int64
	entryDate time.Time
	avgPrice  int64
	costBasis int64
	stop      float64
	highWater int64
	trailing  bool // 손절가가 최초 값에서 상향된 적이 있는지
}

// Engine replays daily bars through the strategy ensemble with the
// risk manager sizing entries and the circuit breaker gating them.
// ⭐ SSOT: 백테스팅 실행은 여기서만
type Engine struct {
	ensemble *strategy.Ensemble
	risk     *RiskManager
	breaker  *CircuitBreaker
	logger   *logger.Logger
	config   Config
}

// New builds an engine; zero config fields fall back to defaults
func New(ensemble *strategy.Ensemble, risk *RiskManager, breaker *CircuitBreaker, log *logger.Logger, cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.InitialCapital == 0 {
		cfg.InitialCapital = def.InitialCapital
	}
	if cfg.Commission == 0 {
		cfg.Commission = def.Commission
	}
	if cfg.Slippage == 0 {
		cfg.Slippage = def.Slippage
	}
	if cfg.EntryThreshold == 0 {
		cfg.EntryThreshold = def.EntryThreshold
	}
	if cfg.ExitThreshold == 0 {
		cfg.ExitThreshold = def.ExitThreshold
	}
	return &Engine{
		ensemble: ensemble,
		risk:     risk,
		breaker:  breaker,
		logger:   log.WithComponent("backtest"),
		config:   cfg,
	}
}

// Run simulates the bar series (oldest first, per ticker) and returns
// the aggregated result. Bars shorter than the warm-up are skipped
// until enough history accumulates.
func (e *Engine) Run(ctx context.Context, series map[string][]contracts.OHLCV) (*Result, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("backtest: no price series")
	}

	dates := tradingDates(series)
	if len(dates) == 0 {
		return nil, fmt.Errorf("backtest: empty price series")
	}

	// 종목 코드순 고정 순회: 같은 입력이면 언제나 같은 결과
	codes := make([]string, 0, len(series))
	for code := range series {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	result := &Result{
		Config:         e.config,
		StartDate:      dates[0],
		EndDate:        dates[len(dates)-1],
		InitialCapital: e.config.InitialCapital,
		ExitCauses:     make(map[string]int),
	}

	cash := e.config.InitialCapital
	positions := make(map[string]*position)
	cursor := make(map[string]int, len(series)) // 종목별 다음 봉 인덱스
	lastClose := make(map[string]int64, len(series))

	warmup := e.ensemble.MinBars()

	for _, date := range dates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		e.breaker.NewDay(markToMarket(cash, positions, lastClose))
		result.TradingDays++

		for _, code := range codes {
			bars := series[code]
			idx := cursor[code]
			if idx >= len(bars) || !bars[idx].Date.Equal(date) {
				continue
			}
			cursor[code] = idx + 1
			bar := bars[idx]
			lastClose[code] = bar.Close
			window := bars[:idx+1]

			if pos, open := positions[code]; open {
				if trade, closed := e.manageExit(pos, code, window, bar); closed {
					cash += trade.Shares*trade.ExitPrice - commissionOf(trade.Shares*trade.ExitPrice, e.config.Commission)
					delete(positions, code)
					e.breaker.RecordTrade(trade.PnL)
					e.recordTrade(result, trade)
				}
				continue
			}

			if len(window) < warmup+1 {
				continue
			}
			if !e.breaker.AllowEntry() {
				continue
			}

			reg := classifyWindow(window)
			signal := e.ensemble.Signal(window, reg)
			if signal < e.config.EntryThreshold {
				continue
			}

			equity := markToMarket(cash, positions, lastClose)
			stop := e.risk.StopFor(window)
			fillPrice := int64(math.Ceil(float64(bar.Close) * (1 + e.config.Slippage)))
			shares := e.risk.PositionSize(equity, float64(fillPrice), stop)
			if shares == 0 {
				continue
			}

			cost := shares*fillPrice + commissionOf(shares*fillPrice, e.config.Commission)
			if cost > cash {
				shares = (cash - commissionOf(cash, e.config.Commission)) / fillPrice
				if shares <= 0 {
					continue
				}
				cost = shares*fillPrice + commissionOf(shares*fillPrice, e.config.Commission)
			}

			cash -= cost
			positions[code] = &position{
				shares:    shares,
				entryDate: bar.Date,
				avgPrice:  fillPrice,
				costBasis: cost,
				stop:      stop,
				highWater: bar.Close,
			}
		}

		if e.breaker.Tripped() {
			result.BreakerTrips++
		}

		equity := markToMarket(cash, positions, lastClose)
		result.EquityCurve = append(result.EquityCurve, EquityPoint{
			Date:   date,
			Equity: equity,
			Return: float64(equity-result.InitialCapital) / float64(result.InitialCapital),
		})
	}

	// 미청산 포지션은 마지막 종가로 정리
	for _, code := range codes {
		pos, open := positions[code]
		if !open {
			continue
		}
		trade := e.closeTrade(pos, code, lastClose[code], dates[len(dates)-1], ExitEndOfTest)
		cash += trade.Shares*trade.ExitPrice - commissionOf(trade.Shares*trade.ExitPrice, e.config.Commission)
		e.recordTrade(result, trade)
	}

	result.FinalCapital = cash
	e.calculateMetrics(result)

	e.logger.WithFields(map[string]interface{}{
		"trading_days":  result.TradingDays,
		"trades":        len(result.Trades),
		"total_return":  fmt.Sprintf("%.2f%%", result.TotalReturn*100),
		"max_drawdown":  fmt.Sprintf("%.2f%%", result.MaxDrawdown*100),
		"win_rate":      fmt.Sprintf("%.2f", result.WinRate),
		"breaker_trips": result.BreakerTrips,
	}).Info("Backtest completed")

	return result, nil
}

// manageExit updates trailing state and closes the position when a
// stop is hit or the ensemble turns bearish.
func (e *Engine) manageExit(pos *position, code string, window []contracts.OHLCV, bar contracts.OHLCV) (Trade, bool) {
	// 신고가 갱신 시 손절가 상향 (트레일링)
	if bar.Close > pos.highWater {
		pos.highWater = bar.Close
		if next := e.risk.StopFor(window); next > pos.stop {
			pos.stop = next
			pos.trailing = true
		}
	}

	if float64(bar.Low) <= pos.stop {
		cause := ExitStopLoss
		if pos.trailing {
			cause = ExitTrailingStop
		}
		exitPrice := int64(math.Floor(pos.stop * (1 - e.config.Slippage)))
		return e.closeTradeAt(pos, code, exitPrice, bar.Date, cause), true
	}

	reg := classifyWindow(window)
	if e.ensemble.Signal(window, reg) <= e.config.ExitThreshold {
		return e.closeTrade(pos, code, bar.Close, bar.Date, ExitSignal), true
	}
	return Trade{}, false
}

func (e *Engine) closeTrade(pos *position, code string, close int64, date time.Time, cause string) Trade {
	exitPrice := int64(math.Floor(float64(close) * (1 - e.config.Slippage)))
	return e.closeTradeAt(pos, code, exitPrice, date, cause)
}

func (e *Engine) closeTradeAt(pos *position, code string, exitPrice int64, date time.Time, cause string) Trade {
	proceeds := pos.shares*exitPrice - commissionOf(pos.shares*exitPrice, e.config.Commission)
	pnl := proceeds - pos.costBasis
	return Trade{
		TickerCode: code,
		EntryDate:  pos.entryDate,
		ExitDate:   date,
		Shares:     pos.shares,
		EntryPrice: pos.avgPrice,
		ExitPrice:  exitPrice,
		PnL:        pnl,
		ReturnPct:  float64(pnl) / float64(pos.costBasis),
		ExitCause:  cause,
	}
}

func (e *Engine) recordTrade(result *Result, trade Trade) {
	result.Trades = append(result.Trades, trade)
	result.ExitCauses[trade.ExitCause]++
}

func (e *Engine) calculateMetrics(result *Result) {
	if result.InitialCapital > 0 {
		result.TotalReturn = float64(result.FinalCapital-result.InitialCapital) / float64(result.InitialCapital)
	}

	var wins int
	var grossProfit, grossLoss float64
	for _, t := range result.Trades {
		if t.PnL > 0 {
			wins++
			grossProfit += float64(t.PnL)
		} else if t.PnL < 0 {
			grossLoss += float64(-t.PnL)
		}
	}
	if len(result.Trades) > 0 {
		result.WinRate = float64(wins) / float64(len(result.Trades))
	}
	if grossLoss > 0 {
		result.ProfitFactor = grossProfit / grossLoss
	} else if grossProfit > 0 {
		result.ProfitFactor = math.Inf(1)
	}

	result.MaxDrawdown = maxDrawdown(result.EquityCurve)
}

func maxDrawdown(curve []EquityPoint) float64 {
	var mdd float64
	if len(curve) == 0 {
		return 0
	}
	peak := curve[0].Equity
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			if dd := float64(peak-p.Equity) / float64(peak); dd > mdd {
				mdd = dd
			}
		}
	}
	return mdd
}

// classifyWindow derives the regime from the ticker's own trailing
// bars; outside the warm-up it defaults to SIDEWAY.
func classifyWindow(window []contracts.OHLCV) contracts.Regime {
	c, err := regime.Classify(window)
	if err != nil {
		return contracts.RegimeSideway
	}
	return c.Regime
}

func markToMarket(cash int64, positions map[string]*position, lastClose map[string]int64) int64 {
	equity := cash
	for code, pos := range positions {
		if close, ok := lastClose[code]; ok {
			equity += pos.shares * close
		} else {
			equity += pos.shares * pos.avgPrice
		}
	}
	return equity
}

func commissionOf(value int64, rate float64) int64 {
	return int64(math.Ceil(float64(value) * rate))
}

// tradingDates returns the sorted union of bar dates across tickers
func tradingDates(series map[string][]contracts.OHLCV) []time.Time {
	seen := make(map[time.Time]struct{})
	for _, bars := range series {
		for _, b := range bars {
			seen[b.Date] = struct{}{}
		}
	}
	dates := make([]time.Time, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}
