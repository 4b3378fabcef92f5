package sources

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"

	"github.com/wonny/aegis/v14/internal/contracts"
	"github.com/wonny/aegis/v14/internal/fetch"
	"github.com/wonny/aegis/v14/pkg/logger"
)

// BrowserFetcher renders script-heavy pages in headless Chrome and
// extracts the community/research view the static scrapers cannot see.
// Tier 4: 가장 비싼 경로, 오케스트레이터가 1개 워커로 직렬화한다.
type BrowserFetcher struct {
	site      contracts.Site
	logger    *logger.Logger
	allocCtx  context.Context
	allocStop context.CancelFunc
}

// NewBrowserFetcher starts one shared headless allocator. Callers must
// Close it on shutdown.
func NewBrowserFetcher(site contracts.Site, log *logger.Logger) *BrowserFetcher {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1280, 900),
	)

	allocCtx, stop := chromedp.NewExecAllocator(context.Background(), opts...)

	return &BrowserFetcher{
		site:      site,
		logger:    log,
		allocCtx:  allocCtx,
		allocStop: stop,
	}
}

// Close tears down the shared browser allocator
func (f *BrowserFetcher) Close() {
	f.allocStop()
}

func (f *BrowserFetcher) Site() contracts.Site    { return f.site }
func (f *BrowserFetcher) DomainID() int           { return domainResearch }
func (f *BrowserFetcher) Retry() fetch.RetryPolicy { return fetch.RetryPersistent }

// Fetch renders the mobile company page and extracts discussion and
// research snippets from the hydrated DOM.
func (f *BrowserFetcher) Fetch(ctx context.Context, ticker contracts.Ticker) ([]fetch.Payload, error) {
	url := fmt.Sprintf("https://m.stock.naver.com/domestic/stock/%s/total", ticker.Code)

	tabCtx, cancel := chromedp.NewContext(f.allocCtx)
	defer cancel()

	// 페처 타임아웃은 실행 래퍼의 ctx를 따른다
	tabCtx, cancelTimeout := context.WithCancel(tabCtx)
	defer cancelTimeout()
	go func() {
		select {
		case <-ctx.Done():
			cancelTimeout()
		case <-tabCtx.Done():
		}
	}()

	var html string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(url),
		chromedp.WaitVisible("body", chromedp.ByQuery),
		chromedp.Sleep(1500*time.Millisecond), // 하이드레이션 대기
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fetch.Errf(fetch.KindTransient, f.site.Name, "render failed: %w", err)
	}

	items, err := f.parseRendered(html)
	if err != nil {
		return nil, err
	}

	f.logger.WithFields(map[string]interface{}{
		"ticker": ticker.Code,
		"count":  len(items),
	}).Debug("Rendered research page")

	return []fetch.Payload{{
		DataType: "research_v1",
		DataDate: time.Now(),
		Content:  map[string]any{"items": items},
	}}, nil
}

// parseRendered extracts headline snippets from the hydrated DOM
func (f *BrowserFetcher) parseRendered(html string) ([]map[string]any, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fetch.Errf(fetch.KindParse, f.site.Name, "parse rendered HTML: %w", err)
	}

	var items []map[string]any
	doc.Find("a[class*=NewsList], div[class*=DiscussionPreview] strong, li[class*=NewsItem]").Each(func(i int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text == "" || len(items) >= 30 {
			return
		}
		items = append(items, map[string]any{"title": text})
	})

	if len(items) == 0 {
		return nil, fetch.Errf(fetch.KindParse, f.site.Name, "rendered page yielded no items")
	}

	return items, nil
}
