package contracts

import (
	"fmt"
	"time"
)

// Market identifies the listing exchange of a ticker
type Market string

const (
	MarketKOSPI  Market = "KOSPI"
	MarketKOSDAQ Market = "KOSDAQ"
	MarketKONEX  Market = "KONEX"
)

// Ticker represents a listed equity
// ⭐ SSOT: 종목 마스터는 code 기준 유일
type Ticker struct {
	Code       string    `json:"code"` // 6자리 종목코드
	Name       string    `json:"name"`
	Market     Market    `json:"market"`
	Sector     string    `json:"sector"`
	IsDelisted bool      `json:"is_delisted"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ValidateCode checks the 6-digit ticker code format
func ValidateCode(code string) error {
	if len(code) != 6 {
		return fmt.Errorf("ticker code must be 6 characters: %q", code)
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return fmt.Errorf("ticker code must be numeric: %q", code)
		}
	}
	return nil
}

// OHLCV represents one daily price bar. Unique by (ticker, date).
type OHLCV struct {
	TickerCode   string    `json:"ticker_code"`
	Date         time.Time `json:"date"`
	Open         int64     `json:"open"`
	High         int64     `json:"high"`
	Low          int64     `json:"low"`
	Close        int64     `json:"close"`
	Volume       int64     `json:"volume"`
	TradingValue int64     `json:"trading_value"`
}

// Validate enforces low <= open,close <= high and volume >= 0.
// Invalid rows are dropped, not persisted.
func (b OHLCV) Validate() error {
	if b.Volume < 0 {
		return fmt.Errorf("negative volume %d for %s", b.Volume, b.TickerCode)
	}
	if b.Low > b.Open || b.Low > b.Close || b.High < b.Open || b.High < b.Close {
		return fmt.Errorf("bar out of range for %s on %s: o=%d h=%d l=%d c=%d",
			b.TickerCode, b.Date.Format("2006-01-02"), b.Open, b.High, b.Low, b.Close)
	}
	return nil
}

// Tick represents one realtime trade print. Append-only.
type Tick struct {
	TickerCode string    `json:"ticker_code"`
	Timestamp  time.Time `json:"timestamp"`
	Price      int64     `json:"price"`
	Volume     int64     `json:"volume"`
	ChangeRate float64   `json:"change_rate"`
	AskPrice   int64     `json:"ask_price"`
	BidPrice   int64     `json:"bid_price"`
}

// SupplyDemand represents daily investor net flows. Unique by (ticker, date).
type SupplyDemand struct {
	TickerCode     string    `json:"ticker_code"`
	Date           time.Time `json:"date"`
	ForeignNet     int64     `json:"foreign_net"`     // 외국인 순매수
	InstitutionNet int64     `json:"institution_net"` // 기관 순매수
	PensionNet     int64     `json:"pension_net"`     // 연기금
	IndividualNet  int64     `json:"individual_net"`  // 개인
	TrustNet       int64     `json:"trust_net"`       // 투신
}

// Holding represents a current position. current_price mirrors the
// latest tick; the mirror write happens inside the tick-insert
// transaction (store.SaveTick).
type Holding struct {
	TickerCode   string    `json:"ticker_code"`
	Quantity     int64     `json:"quantity"`
	AvgBuyPrice  int64     `json:"avg_buy_price"`
	CurrentPrice int64     `json:"current_price"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ReturnRate returns the unrealised return of the holding
func (h Holding) ReturnRate() float64 {
	if h.AvgBuyPrice == 0 {
		return 0
	}
	return float64(h.CurrentPrice-h.AvgBuyPrice) / float64(h.AvgBuyPrice)
}
