package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/wonny/aegis/v14/internal/fetch"
	"github.com/wonny/aegis/v14/pkg/httputil"
)

// 스크래핑용 공통 요청 헤더
var browserHeaders = map[string]string{
	"User-Agent": "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36",
	"Referer":    "https://finance.naver.com/",
}

// getBody fetches a URL and returns the body, mapping HTTP status onto
// typed fetch failures.
func getBody(ctx context.Context, client *httputil.Client, site, url string) (string, error) {
	resp, err := client.GetWithHeaders(ctx, url, browserHeaders)
	if err != nil {
		return "", fetch.Errf(fetch.KindTransient, site, "HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(site, resp.StatusCode); err != nil {
		return "", err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fetch.Errf(fetch.KindTransient, site, "read response body failed: %w", err)
	}

	return string(body), nil
}

// classifyStatus maps an HTTP status code onto a fetch error kind
func classifyStatus(site string, code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound:
		return fetch.Errf(fetch.KindNotFound, site, "status %d", code)
	case code == http.StatusTooManyRequests || code == http.StatusForbidden:
		return fetch.Errf(fetch.KindBlocked, site, "status %d", code)
	case code == http.StatusUnauthorized:
		return fetch.Errf(fetch.KindAuth, site, "status %d", code)
	case code >= 500:
		return fetch.Errf(fetch.KindTransient, site, "status %d", code)
	default:
		return fetch.Errf(fetch.KindParse, site, "unexpected status %d", code)
	}
}

// parseNum parses Korean-formatted numbers ("+1,234", "-", "1,234")
func parseNum(s string) int64 {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "+", "")
	if s == "" || s == "-" {
		return 0
	}
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

// parseFloat parses a comma-formatted decimal, 0 when absent
func parseFloat(s string) float64 {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSuffix(s, "%")
	if s == "" || s == "-" {
		return 0
	}
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

// toInt64 converts loosely-typed JSON numbers to int64
func toInt64(v interface{}) int64 {
	switch val := v.(type) {
	case float64:
		return int64(val)
	case int64:
		return val
	case int:
		return int64(val)
	case string:
		n, _ := strconv.ParseInt(val, 10, 64)
		return n
	default:
		return 0
	}
}

// yyyymmdd formats compact dates used by Korean market APIs
func yyyymmdd(s string) string {
	if len(s) == 8 {
		return fmt.Sprintf("%s-%s-%s", s[:4], s[4:6], s[6:8])
	}
	return s
}
