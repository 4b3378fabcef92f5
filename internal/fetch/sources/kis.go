package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/wonny/aegis/v14/internal/contracts"
	"github.com/wonny/aegis/v14/internal/fetch"
	"github.com/wonny/aegis/v14/pkg/config"
	"github.com/wonny/aegis/v14/pkg/httputil"
	"github.com/wonny/aegis/v14/pkg/logger"
)

// KISClient manages the OAuth token for the broker API. Shared by the
// quote fetcher and the realtime feed.
// ⭐ SSOT: KIS API 호출은 이 클라이언트에서만
type KISClient struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	cfg        config.KISConfig

	accessToken string
	tokenExpiry time.Time
	tokenMu     sync.RWMutex
}

// NewKISClient creates the broker API client
func NewKISClient(cfg config.KISConfig, client *httputil.Client, log *logger.Logger) *KISClient {
	return &KISClient{
		httpClient: client,
		logger:     log,
		cfg:        cfg,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Token returns a valid access token, refreshing when expired
func (c *KISClient) Token(ctx context.Context) (string, error) {
	c.tokenMu.RLock()
	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		token := c.accessToken
		c.tokenMu.RUnlock()
		return token, nil
	}
	c.tokenMu.RUnlock()

	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	url := fmt.Sprintf("%s/oauth2/tokenP", c.cfg.BaseURL)
	body := fmt.Sprintf(`{"grant_type":"client_credentials","appkey":"%s","appsecret":"%s"}`,
		c.cfg.AppKey, c.cfg.AppSecret)

	resp, err := c.httpClient.Post(ctx, url, "application/json", strings.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("token request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var tokenResp tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}

	c.accessToken = tokenResp.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn-60) * time.Second) // 1분 여유

	c.logger.WithField("expires_in", tokenResp.ExpiresIn).Info("KIS access token refreshed")
	return c.accessToken, nil
}

// ApprovalKey issues the websocket approval key for the realtime feed
func (c *KISClient) ApprovalKey(ctx context.Context) (string, error) {
	url := fmt.Sprintf("%s/oauth2/Approval", c.cfg.BaseURL)
	body := fmt.Sprintf(`{"grant_type":"client_credentials","appkey":"%s","secretkey":"%s"}`,
		c.cfg.AppKey, c.cfg.AppSecret)

	resp, err := c.httpClient.Post(ctx, url, "application/json", strings.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("approval request failed: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		ApprovalKey string `json:"approval_key"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode approval response: %w", err)
	}
	if result.ApprovalKey == "" {
		return "", fmt.Errorf("empty approval key")
	}

	return result.ApprovalKey, nil
}

// request makes an authenticated broker API call
func (c *KISClient) request(ctx context.Context, method, path, trID string, body io.Reader) (*http.Response, error) {
	token, err := c.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("authorization", "Bearer "+token)
	req.Header.Set("appkey", c.cfg.AppKey)
	req.Header.Set("appsecret", c.cfg.AppSecret)
	req.Header.Set("tr_id", trID)

	client := &http.Client{Timeout: 30 * time.Second}
	return client.Do(req)
}

// KISFetcher collects the current quote snapshot from the broker API.
// Tier 2: 공식 API
type KISFetcher struct {
	site   contracts.Site
	client *KISClient
	logger *logger.Logger
}

// NewKISFetcher builds the quote fetcher on top of a shared client
func NewKISFetcher(site contracts.Site, client *KISClient, log *logger.Logger) *KISFetcher {
	return &KISFetcher{site: site, client: client, logger: log}
}

func (f *KISFetcher) Site() contracts.Site    { return f.site }
func (f *KISFetcher) DomainID() int           { return domainQuote }
func (f *KISFetcher) Retry() fetch.RetryPolicy { return fetch.RetryQuick }

// Fetch pulls the current quote for one ticker
func (f *KISFetcher) Fetch(ctx context.Context, ticker contracts.Ticker) ([]fetch.Payload, error) {
	path := "/uapi/domestic-stock/v1/quotations/inquire-price"
	trID := "FHKST01010100" // 주식현재가 시세

	params := "?fid_cond_mrkt_div_code=J&fid_input_iscd=" + ticker.Code

	resp, err := f.client.request(ctx, http.MethodGet, path+params, trID, nil)
	if err != nil {
		return nil, fetch.Errf(fetch.KindTransient, f.site.Name, "quote request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fetch.Errf(fetch.KindAuth, f.site.Name, "token rejected")
	}
	if err := classifyStatus(f.site.Name, resp.StatusCode); err != nil {
		return nil, err
	}

	var result struct {
		RtCd   string `json:"rt_cd"`
		Msg1   string `json:"msg1"`
		Output struct {
			Price      string `json:"stck_prpr"`      // 현재가
			ChangeRate string `json:"prdy_ctrt"`      // 전일 대비율
			Volume     string `json:"acml_vol"`       // 누적 거래량
			Value      string `json:"acml_tr_pbmn"`   // 누적 거래대금
			High       string `json:"stck_hgpr"`
			Low        string `json:"stck_lwpr"`
			PER        string `json:"per"`
			PBR        string `json:"pbr"`
			MarketCap  string `json:"hts_avls"` // 시가총액(억)
		} `json:"output"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fetch.Errf(fetch.KindParse, f.site.Name, "decode quote: %w", err)
	}
	if result.RtCd != "0" {
		return nil, fetch.Errf(fetch.KindTransient, f.site.Name, "API error: %s", result.Msg1)
	}

	return []fetch.Payload{{
		DataType: "quote_v1",
		DataDate: time.Now(),
		Content: map[string]any{
			"price":       parseNum(result.Output.Price),
			"change_rate": parseFloat(result.Output.ChangeRate),
			"volume":      parseNum(result.Output.Volume),
			"value":       parseNum(result.Output.Value),
			"high":        parseNum(result.Output.High),
			"low":         parseNum(result.Output.Low),
			"per":         parseFloat(result.Output.PER),
			"pbr":         parseFloat(result.Output.PBR),
			"market_cap":  parseNum(result.Output.MarketCap) * 100_000_000,
		},
	}}, nil
}
