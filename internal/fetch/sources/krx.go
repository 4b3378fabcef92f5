package sources

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/aegis/v14/internal/contracts"
	"github.com/wonny/aegis/v14/internal/fetch"
	"github.com/wonny/aegis/v14/pkg/httputil"
	"github.com/wonny/aegis/v14/pkg/logger"
)

// KRXFetcher collects daily OHLCV bars from the exchange chart API.
// Tier 1: 공식 데이터, 가장 신뢰도 높음
// ⭐ SSOT: 일봉 시세 수집은 이 페처에서만
type KRXFetcher struct {
	site       contracts.Site
	httpClient *httputil.Client
	logger     *logger.Logger
	lookback   int // days of history per fetch
}

// NewKRXFetcher builds the daily-price fetcher
func NewKRXFetcher(site contracts.Site, client *httputil.Client, log *logger.Logger) *KRXFetcher {
	return &KRXFetcher{
		site:       site,
		httpClient: client,
		logger:     log,
		lookback:   90,
	}
}

func (f *KRXFetcher) Site() contracts.Site    { return f.site }
func (f *KRXFetcher) DomainID() int           { return domainPrice }
func (f *KRXFetcher) Retry() fetch.RetryPolicy { return fetch.RetryStandard }

// Fetch pulls the trailing window of daily bars for one ticker
func (f *KRXFetcher) Fetch(ctx context.Context, ticker contracts.Ticker) ([]fetch.Payload, error) {
	to := time.Now()
	from := to.AddDate(0, 0, -f.lookback)

	url := "https://fchart.stock.naver.com/siseJson.naver?symbol=" + ticker.Code +
		"&requestType=1&startTime=" + from.Format("20060102") +
		"&endTime=" + to.Format("20060102") + "&timeframe=day"

	body, err := getBody(ctx, f.httpClient, f.site.Name, url)
	if err != nil {
		return nil, err
	}

	bars, err := parseChartResponse(f.site.Name, body)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, fetch.Errf(fetch.KindNotFound, f.site.Name, "no bars for %s", ticker.Code)
	}

	f.logger.WithFields(map[string]interface{}{
		"ticker": ticker.Code,
		"count":  len(bars),
	}).Debug("Fetched daily bars")

	return []fetch.Payload{{
		DataType: "price_daily_v1",
		DataDate: bars[len(bars)-1].date,
		Content:  map[string]any{"bars": barsToContent(bars)},
	}}, nil
}

type chartBar struct {
	date                          time.Time
	open, high, low, close, volume int64
}

// parseChartResponse parses the quasi-JSON chart payload. The endpoint
// returns single-quoted arrays; normalise then fall back to regex.
func parseChartResponse(site, body string) ([]chartBar, error) {
	body = strings.TrimSpace(body)
	body = strings.ReplaceAll(body, "'", "\"")

	var rawData [][]interface{}
	if err := json.Unmarshal([]byte(body), &rawData); err == nil {
		var bars []chartBar
		for i, row := range rawData {
			if i == 0 || len(row) < 6 {
				continue // 헤더 행
			}
			dateStr, ok := row[0].(string)
			if !ok {
				continue
			}
			date, err := time.Parse("2006-01-02", yyyymmdd(strings.Trim(dateStr, "\"")))
			if err != nil {
				continue
			}
			bars = append(bars, chartBar{
				date: date, open: toInt64(row[1]), high: toInt64(row[2]),
				low: toInt64(row[3]), close: toInt64(row[4]), volume: toInt64(row[5]),
			})
		}
		return bars, nil
	}

	re := regexp.MustCompile(`\["(\d{8})",\s*(\d+),\s*(\d+),\s*(\d+),\s*(\d+),\s*(\d+)\]`)
	matches := re.FindAllStringSubmatch(body, -1)
	if len(matches) == 0 {
		return nil, fetch.Errf(fetch.KindParse, site, "chart payload shape unrecognised")
	}

	var bars []chartBar
	for _, m := range matches {
		date, err := time.Parse("2006-01-02", yyyymmdd(m[1]))
		if err != nil {
			continue
		}
		open, _ := strconv.ParseInt(m[2], 10, 64)
		high, _ := strconv.ParseInt(m[3], 10, 64)
		low, _ := strconv.ParseInt(m[4], 10, 64)
		closeP, _ := strconv.ParseInt(m[5], 10, 64)
		volume, _ := strconv.ParseInt(m[6], 10, 64)
		bars = append(bars, chartBar{date: date, open: open, high: high, low: low, close: closeP, volume: volume})
	}
	return bars, nil
}

func barsToContent(bars []chartBar) []map[string]any {
	out := make([]map[string]any, 0, len(bars))
	for _, b := range bars {
		out = append(out, map[string]any{
			"date":          b.date.Format("2006-01-02"),
			"open":          b.open,
			"high":          b.high,
			"low":           b.low,
			"close":         b.close,
			"volume":        b.volume,
			"trading_value": b.close * b.volume,
		})
	}
	return out
}
