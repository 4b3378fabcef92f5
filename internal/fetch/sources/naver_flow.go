package sources

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/aegis/v14/internal/contracts"
	"github.com/wonny/aegis/v14/internal/fetch"
	"github.com/wonny/aegis/v14/pkg/httputil"
	"github.com/wonny/aegis/v14/pkg/logger"
)

// NaverFlowFetcher scrapes investor net-flow history from the finance
// portal. Tier 3.
// ⭐ SSOT: 수급 데이터 수집은 이 페처에서만
type NaverFlowFetcher struct {
	site       contracts.Site
	httpClient *httputil.Client
	logger     *logger.Logger
	maxPages   int
	window     int // trailing days
}

// NewNaverFlowFetcher builds the investor-flow scraper
func NewNaverFlowFetcher(site contracts.Site, client *httputil.Client, log *logger.Logger) *NaverFlowFetcher {
	return &NaverFlowFetcher{
		site:       site,
		httpClient: client,
		logger:     log,
		maxPages:   10,
		window:     30,
	}
}

func (f *NaverFlowFetcher) Site() contracts.Site    { return f.site }
func (f *NaverFlowFetcher) DomainID() int           { return domainFlow }
func (f *NaverFlowFetcher) Retry() fetch.RetryPolicy { return fetch.RetryQuick }

// Fetch paginates the foreigner/institution table back to the window
func (f *NaverFlowFetcher) Fetch(ctx context.Context, ticker contracts.Ticker) ([]fetch.Payload, error) {
	from := time.Now().AddDate(0, 0, -f.window)
	var flows []map[string]any
	noDataPages := 0

	for page := 1; page <= f.maxPages; page++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		url := fmt.Sprintf("https://finance.naver.com/item/frgn.naver?code=%s&page=%d", ticker.Code, page)
		body, err := getBody(ctx, f.httpClient, f.site.Name, url)
		if err != nil {
			return nil, err
		}

		pageFlows, lastDate, hasMore, err := f.parseFlowPage(body, from)
		if err != nil {
			return nil, err
		}
		flows = append(flows, pageFlows...)

		if !lastDate.IsZero() && lastDate.Before(from) {
			break
		}
		if !hasMore {
			break
		}
		if lastDate.IsZero() {
			noDataPages++
			if noDataPages >= 3 {
				break
			}
		} else {
			noDataPages = 0
		}
	}

	if len(flows) == 0 {
		return nil, fetch.Errf(fetch.KindNotFound, f.site.Name, "no flow rows for %s", ticker.Code)
	}

	f.logger.WithFields(map[string]interface{}{
		"ticker": ticker.Code,
		"count":  len(flows),
	}).Debug("Scraped investor flows")

	return []fetch.Payload{{
		DataType: "flow_daily_v1",
		DataDate: time.Now(),
		Content:  map[string]any{"flows": flows},
	}}, nil
}

// parseFlowPage parses one frgn.naver table page.
// 컬럼: 날짜 | 종가 | 대비 | 등락률 | 거래량 | 기관 | 외국인
func (f *NaverFlowFetcher) parseFlowPage(html string, from time.Time) ([]map[string]any, time.Time, bool, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, time.Time{}, false, fetch.Errf(fetch.KindParse, f.site.Name, "parse HTML: %w", err)
	}

	tables := doc.Find("table.type2")
	if tables.Length() < 2 {
		return nil, time.Time{}, false, fetch.Errf(fetch.KindParse, f.site.Name, "flow table missing")
	}

	var flows []map[string]any
	var lastDate time.Time

	tables.Eq(1).Find("tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 7 {
			return
		}

		dateText := strings.TrimSpace(cells.Eq(0).Text())
		if !siseDateRe.MatchString(dateText) {
			return
		}

		tradeDate, err := time.Parse("2006-01-02", strings.ReplaceAll(dateText, ".", "-"))
		if err != nil {
			return
		}
		lastDate = tradeDate

		if tradeDate.Before(from) {
			return
		}

		instNet := parseNum(cells.Eq(5).Text())
		foreignNet := parseNum(cells.Eq(6).Text())
		flows = append(flows, map[string]any{
			"date":            tradeDate.Format("2006-01-02"),
			"institution_net": instNet,
			"foreign_net":     foreignNet,
			"individual_net":  -(foreignNet + instNet), // 개인은 역산
		})
	})

	hasMore := doc.Find(".pgRR").Length() > 0
	return flows, lastDate, hasMore, nil
}
