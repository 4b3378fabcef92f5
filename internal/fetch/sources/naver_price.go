package sources

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/aegis/v14/internal/contracts"
	"github.com/wonny/aegis/v14/internal/fetch"
	"github.com/wonny/aegis/v14/pkg/httputil"
	"github.com/wonny/aegis/v14/pkg/logger"
)

var siseDateRe = regexp.MustCompile(`^\d{4}\.\d{2}\.\d{2}$`)

// NaverPriceFetcher scrapes recent daily bars from the finance portal.
// Tier 3 fallback for the chart API.
type NaverPriceFetcher struct {
	site       contracts.Site
	httpClient *httputil.Client
	logger     *logger.Logger
	pages      int
}

// NewNaverPriceFetcher builds the price-page scraper
func NewNaverPriceFetcher(site contracts.Site, client *httputil.Client, log *logger.Logger) *NaverPriceFetcher {
	return &NaverPriceFetcher{
		site:       site,
		httpClient: client,
		logger:     log,
		pages:      3, // 페이지당 10영업일
	}
}

func (f *NaverPriceFetcher) Site() contracts.Site    { return f.site }
func (f *NaverPriceFetcher) DomainID() int           { return domainPrice }
func (f *NaverPriceFetcher) Retry() fetch.RetryPolicy { return fetch.RetryQuick }

// Fetch scrapes the paginated daily-price table
func (f *NaverPriceFetcher) Fetch(ctx context.Context, ticker contracts.Ticker) ([]fetch.Payload, error) {
	var bars []map[string]any
	var latest time.Time

	for page := 1; page <= f.pages; page++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		url := fmt.Sprintf("https://finance.naver.com/item/sise_day.naver?code=%s&page=%d", ticker.Code, page)
		body, err := getBody(ctx, f.httpClient, f.site.Name, url)
		if err != nil {
			return nil, err
		}

		pageBars, err := f.parsePricePage(body)
		if err != nil {
			return nil, err
		}
		bars = append(bars, pageBars...)
	}

	if len(bars) == 0 {
		return nil, fetch.Errf(fetch.KindNotFound, f.site.Name, "no rows for %s", ticker.Code)
	}

	if d, err := time.Parse("2006-01-02", bars[0]["date"].(string)); err == nil {
		latest = d
	}

	f.logger.WithFields(map[string]interface{}{
		"ticker": ticker.Code,
		"count":  len(bars),
	}).Debug("Scraped daily bars")

	return []fetch.Payload{{
		DataType: "price_daily_v1",
		DataDate: latest,
		Content:  map[string]any{"bars": bars},
	}}, nil
}

// parsePricePage parses one sise_day table page
// 컬럼: 날짜 | 종가 | 대비 | 시가 | 고가 | 저가 | 거래량
func (f *NaverPriceFetcher) parsePricePage(html string) ([]map[string]any, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fetch.Errf(fetch.KindParse, f.site.Name, "parse HTML: %w", err)
	}

	var bars []map[string]any
	doc.Find("table.type2 tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 7 {
			return
		}

		dateText := strings.TrimSpace(cells.Eq(0).Text())
		if !siseDateRe.MatchString(dateText) {
			return
		}

		closeP := parseNum(cells.Eq(1).Text())
		volume := parseNum(cells.Eq(6).Text())
		bars = append(bars, map[string]any{
			"date":          strings.ReplaceAll(dateText, ".", "-"),
			"open":          parseNum(cells.Eq(3).Text()),
			"high":          parseNum(cells.Eq(4).Text()),
			"low":           parseNum(cells.Eq(5).Text()),
			"close":         closeP,
			"volume":        volume,
			"trading_value": closeP * volume,
		})
	})

	return bars, nil
}
