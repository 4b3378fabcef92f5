package strategy

import "github.com/wonny/aegis/v14/internal/contracts"

// Strategy turns a daily-bar window (oldest first) into a conviction
// signal in [-2, +2]. Positive means enter or add, negative means
// reduce or exit, zero means stand aside.
type Strategy interface {
	Name() string
	MinBars() int
	Signal(bars []contracts.OHLCV) float64
}
