package contracts

import "time"

// Grade buckets an analyser score for human-readable reports
type Grade string

const (
	GradeExcellent Grade = "excellent"
	GradeGood      Grade = "good"
	GradeAverage   Grade = "average"
	GradePoor      Grade = "poor"
	GradeDanger    Grade = "danger"
)

// GradeForScore maps a [-2,+2] analyser score onto a grade
func GradeForScore(score float64) Grade {
	switch {
	case score >= 1.2:
		return GradeExcellent
	case score >= 0.4:
		return GradeGood
	case score >= -0.4:
		return GradeAverage
	case score >= -1.2:
		return GradePoor
	default:
		return GradeDanger
	}
}

// AnalyserResult is the common output of every AEGIS analyser.
// Score는 반드시 [-2, +2] 범위
type AnalyserResult struct {
	Analyser  string    `json:"analyser"`
	Score     float64   `json:"score"` // -2.0 ~ +2.0
	Grade     Grade     `json:"grade"`
	Notes     []string  `json:"notes,omitempty"`
	KeyEvents []string  `json:"key_events,omitempty"`
	AsOf      time.Time `json:"as_of"`

	// Veto carriers
	TradingHalt bool `json:"trading_halt,omitempty"` // 공시: 거래정지/횡령 등
	PassFilter  bool `json:"pass_filter"`            // 펀더멘털: 부채비율 300% 초과 시 false
}

// Clamp bounds the score to [-2, +2] and refreshes the grade
func (r *AnalyserResult) Clamp() {
	if r.Score > 2.0 {
		r.Score = 2.0
	} else if r.Score < -2.0 {
		r.Score = -2.0
	}
	r.Grade = GradeForScore(r.Score)
}

// Decision is the fused trading decision per ticker
type Decision string

const (
	DecisionStrongBuy  Decision = "STRONG_BUY"
	DecisionBuy        Decision = "BUY"
	DecisionHold       Decision = "HOLD"
	DecisionSell       Decision = "SELL"
	DecisionStrongSell Decision = "STRONG_SELL"
	DecisionForceSell  Decision = "FORCE_SELL" // trading_halt veto
)

// Veto identifies which override rule fired. Precedence follows the
// declaration order: trading halt first.
type Veto string

const (
	VetoTradingHalt   Veto = "trading_halt"   // → FORCE_SELL
	VetoDangerGrade   Veto = "danger_grade"   // → BLOCK_BUY
	VetoStrongBearish Veto = "strong_bearish" // → BLOCK_NEW_BUY
	VetoLowLiquidity  Veto = "low_liquidity"  // → BLOCK_BUY
)

// Regime is the qualitative market phase
type Regime string

const (
	RegimeBull    Regime = "BULL"
	RegimeBear    Regime = "BEAR"
	RegimeSideway Regime = "SIDEWAY"
)

// MarketMood is the 5-level market-context classification
type MarketMood string

const (
	MoodStrongBullish MarketMood = "strong_bullish"
	MoodBullish       MarketMood = "bullish"
	MoodNeutral       MarketMood = "neutral"
	MoodBearish       MarketMood = "bearish"
	MoodStrongBearish MarketMood = "strong_bearish"
)

// MarketContext is the ticker-independent market snapshot, cached 5 min
type MarketContext struct {
	Mood       MarketMood         `json:"mood"`
	ADR        float64            `json:"adr"` // advancers / decliners
	SectorHeat map[string]float64 `json:"sector_heat,omitempty"`
	AsOf       time.Time          `json:"as_of"`
}

// FusionResult is the final fused verdict for one ticker
type FusionResult struct {
	TickerCode string             `json:"ticker_code"`
	Regime     Regime             `json:"regime"`
	FinalScore float64            `json:"final_score"` // -1.0 ~ +1.0
	Decision   Decision           `json:"decision"`
	Confidence float64            `json:"confidence"` // 0.0 ~ 1.0
	Vetoes     []Veto             `json:"vetoes,omitempty"`
	Breakdown  map[string]float64 `json:"breakdown"` // analyser → weighted contribution
	Results    []AnalyserResult   `json:"results,omitempty"`
}

// BuyBlocked reports whether any fired veto forbids opening a position
func (f FusionResult) BuyBlocked() bool {
	for _, v := range f.Vetoes {
		switch v {
		case VetoTradingHalt, VetoDangerGrade, VetoStrongBearish, VetoLowLiquidity:
			return true
		}
	}
	return false
}
