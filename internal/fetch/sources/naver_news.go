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

// NaverNewsFetcher scrapes the per-ticker news list. Tier 3.
type NaverNewsFetcher struct {
	site       contracts.Site
	httpClient *httputil.Client
	logger     *logger.Logger
	pages      int
}

// NewNaverNewsFetcher builds the news scraper
func NewNaverNewsFetcher(site contracts.Site, client *httputil.Client, log *logger.Logger) *NaverNewsFetcher {
	return &NaverNewsFetcher{
		site:       site,
		httpClient: client,
		logger:     log,
		pages:      2,
	}
}

func (f *NaverNewsFetcher) Site() contracts.Site    { return f.site }
func (f *NaverNewsFetcher) DomainID() int           { return domainNews }
func (f *NaverNewsFetcher) Retry() fetch.RetryPolicy { return fetch.RetryQuick }

// Fetch scrapes the recent headline pages for one ticker
func (f *NaverNewsFetcher) Fetch(ctx context.Context, ticker contracts.Ticker) ([]fetch.Payload, error) {
	var items []map[string]any

	for page := 1; page <= f.pages; page++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		url := fmt.Sprintf("https://finance.naver.com/item/news_news.naver?code=%s&page=%d", ticker.Code, page)
		body, err := getBody(ctx, f.httpClient, f.site.Name, url)
		if err != nil {
			return nil, err
		}

		pageItems, err := f.parseNewsPage(body)
		if err != nil {
			return nil, err
		}
		items = append(items, pageItems...)
	}

	f.logger.WithFields(map[string]interface{}{
		"ticker": ticker.Code,
		"count":  len(items),
	}).Debug("Scraped news headlines")

	return []fetch.Payload{{
		DataType: "news_v1",
		DataDate: time.Now(),
		Content:  map[string]any{"items": items},
	}}, nil
}

// parseNewsPage parses one headline table page
func (f *NaverNewsFetcher) parseNewsPage(html string) ([]map[string]any, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fetch.Errf(fetch.KindParse, f.site.Name, "parse HTML: %w", err)
	}

	var items []map[string]any
	doc.Find("table.type5 tr").Each(func(i int, row *goquery.Selection) {
		titleCell := row.Find("td.title a")
		if titleCell.Length() == 0 {
			return
		}

		title := strings.TrimSpace(titleCell.Text())
		if title == "" {
			return
		}

		href, _ := titleCell.Attr("href")
		press := strings.TrimSpace(row.Find("td.info").Text())
		dateText := strings.TrimSpace(row.Find("td.date").Text())

		var published string
		if t, err := time.Parse("2006.01.02 15:04", dateText); err == nil {
			published = t.Format(time.RFC3339)
		}

		items = append(items, map[string]any{
			"title":     title,
			"press":     press,
			"published": published,
			"url":       "https://finance.naver.com" + href,
		})
	})

	return items, nil
}
