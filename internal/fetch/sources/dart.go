package sources

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/wonny/aegis/v14/internal/contracts"
	"github.com/wonny/aegis/v14/internal/fetch"
	"github.com/wonny/aegis/v14/pkg/logger"
)

// 주요 공시 키워드
var majorDisclosureKeywords = []string{
	"사업보고서",
	"분기보고서",
	"반기보고서",
	"주요사항보고서",
	"유상증자",
	"무상증자",
	"합병",
	"분할",
	"영업양수도",
	"자기주식",
	"전환사채",
	"신주인수권부사채",
}

// DARTFetcher collects disclosure filings from the regulator API.
// Tier 2: 공식 API, 인증키 필요
// ⭐ SSOT: DART 공시 수집은 이 페처에서만
type DARTFetcher struct {
	site       contracts.Site
	httpClient *http.Client
	logger     *logger.Logger
	apiKey     string
	baseURL    string
	window     int // trailing days of filings
}

// NewDARTFetcher builds the disclosure fetcher.
// The regulator endpoint requires legacy TLS (RSA key exchange); Go
// 1.22+ no longer offers those cipher suites by default.
func NewDARTFetcher(site contracts.Site, apiKey string, log *logger.Logger) *DARTFetcher {
	return &DARTFetcher{
		site:       site,
		httpClient: newLegacyTLSClient(30 * time.Second),
		logger:     log,
		apiKey:     apiKey,
		baseURL:    "https://opendart.fss.or.kr",
		window:     30,
	}
}

func newLegacyTLSClient(timeout time.Duration) *http.Client {
	tlsCfg := &tls.Config{
		MinVersion: tls.VersionTLS12,
		MaxVersion: tls.VersionTLS12,
		CipherSuites: []uint16{
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
			// RSA KEX, 서버가 ECDHE 미지원
			tls.TLS_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_RSA_WITH_AES_128_CBC_SHA,
			tls.TLS_RSA_WITH_AES_256_CBC_SHA,
		},
	}

	tr := &http.Transport{
		Proxy:             http.ProxyFromEnvironment,
		ForceAttemptHTTP2: false,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		TLSClientConfig:       tlsCfg,
		MaxIdleConns:          20,
		MaxConnsPerHost:       5,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: time.Second,
	}

	return &http.Client{Transport: tr, Timeout: timeout}
}

func (f *DARTFetcher) Site() contracts.Site    { return f.site }
func (f *DARTFetcher) DomainID() int           { return domainDisclosure }
func (f *DARTFetcher) Retry() fetch.RetryPolicy { return fetch.RetryStandard }

type disclosureResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	List    []struct {
		CorpName  string `json:"corp_name"`
		StockCode string `json:"stock_code"`
		ReportNm  string `json:"report_nm"`
		RceptNo   string `json:"rcept_no"`
		FlrNm     string `json:"flr_nm"`
		RceptDt   string `json:"rcept_dt"` // YYYYMMDD
	} `json:"list"`
}

// Fetch pulls the trailing month of filings for one ticker
func (f *DARTFetcher) Fetch(ctx context.Context, ticker contracts.Ticker) ([]fetch.Payload, error) {
	to := time.Now()
	from := to.AddDate(0, 0, -f.window)

	url := fmt.Sprintf(
		"%s/api/list.json?crtfc_key=%s&stock_code=%s&bgn_de=%s&end_de=%s&page_count=100",
		f.baseURL, f.apiKey, ticker.Code, from.Format("20060102"), to.Format("20060102"),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fetch.Errf(fetch.KindParse, f.site.Name, "create request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fetch.Errf(fetch.KindTransient, f.site.Name, "HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(f.site.Name, resp.StatusCode); err != nil {
		return nil, err
	}

	var result disclosureResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fetch.Errf(fetch.KindParse, f.site.Name, "decode response: %w", err)
	}

	// API 상태코드: 000 정상, 013 데이터 없음
	switch result.Status {
	case "000":
	case "013":
		return []fetch.Payload{{
			DataType: "disclosure_v1",
			DataDate: to,
			Content:  map[string]any{"items": []map[string]any{}},
		}}, nil
	case "010", "011", "012", "020", "021":
		return nil, fetch.Errf(fetch.KindAuth, f.site.Name, "API key rejected: %s %s", result.Status, result.Message)
	default:
		return nil, fetch.Errf(fetch.KindTransient, f.site.Name, "API error: %s %s", result.Status, result.Message)
	}

	items := make([]map[string]any, 0, len(result.List))
	for _, d := range result.List {
		items = append(items, map[string]any{
			"title":    d.ReportNm,
			"filer":    d.FlrNm,
			"date":     yyyymmdd(d.RceptDt),
			"major":    isMajorDisclosure(d.ReportNm),
			"url":      "https://dart.fss.or.kr/dsaf001/main.do?rcpNo=" + d.RceptNo,
			"rcept_no": d.RceptNo,
		})
	}

	f.logger.WithFields(map[string]interface{}{
		"ticker": ticker.Code,
		"count":  len(items),
	}).Debug("Fetched disclosures")

	return []fetch.Payload{{
		DataType: "disclosure_v1",
		DataDate: to,
		Content:  map[string]any{"items": items},
	}}, nil
}

func isMajorDisclosure(reportName string) bool {
	for _, keyword := range majorDisclosureKeywords {
		if strings.Contains(reportName, keyword) {
			return true
		}
	}
	return false
}
