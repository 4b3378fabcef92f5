package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	Env string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis (optional cache)
	Redis RedisConfig

	// External APIs
	KIS    KISConfig
	DART   DARTConfig
	Gemini GeminiConfig

	// Notification
	SlackWebhookURL string

	// HTTP API
	APIPort string

	// Logging
	LogLevel  string
	LogFormat string

	// Engine tunables (immutable after Load)
	Settings Settings
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	URL      string

	// Connection Pool. MaxConns must stay >= orchestrator worker count
	// so fetch persistence never starves on connection acquisition.
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// KISConfig holds KIS (한국투자증권) API configuration
type KISConfig struct {
	AppKey    string
	AppSecret string
	AccountNo string
	BaseURL   string
	WSBaseURL string
	IsVirtual bool
}

// DARTConfig holds DART (전자공시) API configuration
type DARTConfig struct {
	APIKey  string
	BaseURL string
}

// GeminiConfig holds the LLM adapter configuration
type GeminiConfig struct {
	APIKey string
	Model  string
}

// Settings is the immutable tunable snapshot for the decision engine.
// ⭐ SSOT: 가중치/임계값/리트라이 프리셋은 여기서만
type Settings struct {
	// Orchestrator
	WorkerCount      int           // bounded pool per tier
	Tier4Workers     int           // headless browser subpool, keep at 1
	FetchTimeout     time.Duration // per-attempt deadline
	DefaultRateLimit int           // requests/min when a site leaves it unset

	// Screener
	ScreenerStage1Limit int
	ScreenerTopN        int
	QuantRamps          QuantRamps

	// Fusion decision thresholds
	StrongBuyThreshold float64
	BuyThreshold       float64
	SellThreshold      float64

	// Liquidity veto: 5-day average traded value floor (KRW)
	MinTradedValue5D float64

	// Backtest / risk
	InitialCapital     int64
	MaxCapitalPerTrade float64 // fraction of equity per position
	RiskPerTrade       float64
	SlippageRate       float64
	CommissionRate     float64
	DailyLossLimit     float64 // circuit breaker, negative fraction
	DailyTradeLimit    int

	// Retrospective
	RetroInterval  time.Duration // at most one LLM call per interval
	RetroBatchSize int

	// Collector freshness cache
	CollectFreshness time.Duration
}

// QuantRamps bounds the linear ramps and trapezoid bands behind the
// stage-2 quant score. 점수 = 경계 사이 선형 보간, 밴드는 (a,b,c,d) 사다리꼴.
type QuantRamps struct {
	VolumeSurgeLo float64 // 당일 거래량 / 5일 평균 배율
	VolumeSurgeHi float64
	DisparityLo   float64 // 이동평균 대비 이격
	DisparityHi   float64
	Position52WLo float64 // 52주 밴드 내 위치
	Position52WHi float64
	Return3DLo    float64 // 3일 수익률
	Return3DHi    float64

	DailyRangeBand [4]float64 // 일중 변동폭
	RSIBand        [4]float64
}

// DefaultQuantRamps returns the production score bounds
func DefaultQuantRamps() QuantRamps {
	return QuantRamps{
		VolumeSurgeLo: 1.0,
		VolumeSurgeHi: 3.0,
		DisparityLo:   0,
		DisparityHi:   0.05,
		Position52WLo: 0.3,
		Position52WHi: 0.9,
		Return3DLo:    0,
		Return3DHi:    0.06,

		DailyRangeBand: [4]float64{0.005, 0.02, 0.04, 0.08},
		RSIBand:        [4]float64{40, 50, 65, 80},
	}
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Env: getEnv("ENV", "development"),

		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			Name:            getEnv("DB_NAME", "aegis_v14"),
			User:            getEnv("DB_USER", "aegis_v14"),
			Password:        getEnv("DB_PASSWORD", ""),
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		KIS: KISConfig{
			AppKey:    getEnv("KIS_APP_KEY", ""),
			AppSecret: getEnv("KIS_APP_SECRET", ""),
			AccountNo: getEnv("KIS_ACCOUNT_NO", ""),
			BaseURL:   getEnv("KIS_BASE_URL", "https://openapi.koreainvestment.com:9443"),
			WSBaseURL: getEnv("KIS_WS_BASE_URL", "ws://ops.koreainvestment.com:21000"),
			IsVirtual: getEnvAsBool("KIS_IS_VIRTUAL", false),
		},

		DART: DARTConfig{
			APIKey:  getEnv("DART_API_KEY", ""),
			BaseURL: getEnv("DART_BASE_URL", "https://opendart.fss.or.kr"),
		},

		Gemini: GeminiConfig{
			APIKey: getEnv("GEMINI_API_KEY", ""),
			Model:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		},

		SlackWebhookURL: getEnv("SLACK_WEBHOOK_URL", ""),

		APIPort: getEnv("API_PORT", "8091"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		Settings: Settings{
			WorkerCount:      getEnvAsInt("WORKER_COUNT", 10),
			Tier4Workers:     1,
			FetchTimeout:     getEnvAsDuration("FETCH_TIMEOUT", "30s"),
			DefaultRateLimit: getEnvAsInt("DEFAULT_RATE_LIMIT", 60),

			ScreenerStage1Limit: getEnvAsInt("SCREENER_STAGE1_LIMIT", 300),
			ScreenerTopN:        getEnvAsInt("SCREENER_TOP_N", 100),
			QuantRamps:          DefaultQuantRamps(),

			StrongBuyThreshold: 0.66,
			BuyThreshold:       0.22,
			SellThreshold:      -0.66,

			MinTradedValue5D: 1_000_000_000,

			InitialCapital:     getEnvAsInt64("INITIAL_CAPITAL", 100_000_000),
			MaxCapitalPerTrade: 0.20,
			RiskPerTrade:       0.02,
			SlippageRate:       0.0005,
			CommissionRate:     0.00015,
			DailyLossLimit:     -0.02,
			DailyTradeLimit:    10,

			RetroInterval:  2 * time.Second,
			RetroBatchSize: 10,

			CollectFreshness: time.Hour,
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	// Database URL is required; every external API key is optional
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Settings.WorkerCount <= 0 {
		return fmt.Errorf("WORKER_COUNT must be positive")
	}

	if c.Database.MaxConns < c.Settings.WorkerCount {
		return fmt.Errorf("DB_MAX_CONNS (%d) must be >= WORKER_COUNT (%d)",
			c.Database.MaxConns, c.Settings.WorkerCount)
	}

	return nil
}

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
