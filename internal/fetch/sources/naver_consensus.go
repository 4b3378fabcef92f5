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

// NaverConsensusFetcher scrapes analyst consensus and the fundamental
// snapshot from the company page. Tier 3. One fetch yields two
// payloads: consensus_v1 and fundamental_v1.
type NaverConsensusFetcher struct {
	site       contracts.Site
	httpClient *httputil.Client
	logger     *logger.Logger
}

// NewNaverConsensusFetcher builds the company-page scraper
func NewNaverConsensusFetcher(site contracts.Site, client *httputil.Client, log *logger.Logger) *NaverConsensusFetcher {
	return &NaverConsensusFetcher{site: site, httpClient: client, logger: log}
}

func (f *NaverConsensusFetcher) Site() contracts.Site    { return f.site }
func (f *NaverConsensusFetcher) DomainID() int           { return domainConsensus }
func (f *NaverConsensusFetcher) Retry() fetch.RetryPolicy { return fetch.RetryQuick }

// Fetch scrapes the company main page for both payload families
func (f *NaverConsensusFetcher) Fetch(ctx context.Context, ticker contracts.Ticker) ([]fetch.Payload, error) {
	url := fmt.Sprintf("https://finance.naver.com/item/main.naver?code=%s", ticker.Code)
	body, err := getBody(ctx, f.httpClient, f.site.Name, url)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fetch.Errf(fetch.KindParse, f.site.Name, "parse HTML: %w", err)
	}

	now := time.Now()
	consensus := f.parseConsensus(doc)
	fundamental := f.parseFundamental(doc)

	f.logger.WithField("ticker", ticker.Code).Debug("Scraped consensus and fundamentals")

	return []fetch.Payload{
		{DataType: "consensus_v1", DataDate: now, Content: consensus},
		{DataType: "fundamental_v1", DataDate: now, Content: fundamental},
	}, nil
}

// parseConsensus reads the analyst opinion block.
// 투자의견 | 목표주가 블록
func (f *NaverConsensusFetcher) parseConsensus(doc *goquery.Document) map[string]any {
	content := map[string]any{
		"opinion":       0.0,
		"target_price":  int64(0),
		"current_price": int64(0),
	}

	block := doc.Find("#tab_con1 .rwidth")
	if block.Length() == 0 {
		return content
	}

	ems := block.First().Find("em")
	if ems.Length() >= 2 {
		content["opinion"] = parseFloat(ems.Eq(0).Text())
		content["target_price"] = parseNum(ems.Eq(1).Text())
	}

	content["current_price"] = parseNum(doc.Find("p.no_today .blind").First().Text())
	return content
}

// parseFundamental reads PER/PBR/ROE and the debt ratio from the
// per-table and the company summary.
func (f *NaverConsensusFetcher) parseFundamental(doc *goquery.Document) map[string]any {
	content := map[string]any{
		"per":        0.0,
		"pbr":        0.0,
		"roe":        0.0,
		"debt_ratio": 0.0,
		"market_cap": int64(0),
	}

	doc.Find("table.per_table em").Each(func(i int, em *goquery.Selection) {
		id, _ := em.Attr("id")
		switch id {
		case "_per":
			content["per"] = parseFloat(em.Text())
		case "_pbr":
			content["pbr"] = parseFloat(em.Text())
		}
	})

	// 기업실적분석 표: ROE, 부채비율 행
	doc.Find("div.cop_analysis table tr").Each(func(i int, row *goquery.Selection) {
		header := strings.TrimSpace(row.Find("th").First().Text())
		lastCell := row.Find("td").Last().Text()
		switch {
		case strings.HasPrefix(header, "ROE"):
			content["roe"] = parseFloat(lastCell)
		case strings.HasPrefix(header, "부채비율"):
			content["debt_ratio"] = parseFloat(lastCell)
		}
	})

	// 시가총액(억원)
	capText := doc.Find("#_market_sum").Text()
	capText = strings.ReplaceAll(strings.TrimSpace(capText), "조", "0000")
	content["market_cap"] = parseNum(capText) * 100_000_000

	return content
}
