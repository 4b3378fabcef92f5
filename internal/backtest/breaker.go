package backtest

// CircuitBreaker halts new entries for the rest of the trading day
// once the session turns against us: cumulative realised loss beyond
// the limit or too many round trips.
// ⭐ SSOT: 서킷브레이커 판정은 여기서만
type CircuitBreaker struct {
	MaxDailyLossPct float64 // 음수, 예: -0.02
	MaxDailyTrades  int

	dayStartEquity int64
	realisedPnL    int64
	trades         int
	tripped        bool
}

// NewCircuitBreaker returns the production defaults: -2% or 10 trades
func NewCircuitBreaker() *CircuitBreaker {
	return &CircuitBreaker{MaxDailyLossPct: -0.02, MaxDailyTrades: 10}
}

// NewDay resets the session counters against the opening equity
func (c *CircuitBreaker) NewDay(equity int64) {
	c.dayStartEquity = equity
	c.realisedPnL = 0
	c.trades = 0
	c.tripped = false
}

// RecordTrade accumulates one realised round trip
func (c *CircuitBreaker) RecordTrade(pnl int64) {
	c.realisedPnL += pnl
	c.trades++

	if c.trades >= c.MaxDailyTrades {
		c.tripped = true
	}
	if c.dayStartEquity > 0 {
		lossPct := float64(c.realisedPnL) / float64(c.dayStartEquity)
		if lossPct <= c.MaxDailyLossPct {
			c.tripped = true
		}
	}
}

// AllowEntry reports whether new positions may be opened. Exits are
// never blocked.
func (c *CircuitBreaker) AllowEntry() bool { return !c.tripped }

// Tripped reports whether the breaker fired this session
func (c *CircuitBreaker) Tripped() bool { return c.tripped }
