package sources

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis/v14/internal/contracts"
	"github.com/wonny/aegis/v14/pkg/logger"
)

func TestParseChartResponse(t *testing.T) {
	body := `[["날짜", "시가", "고가", "저가", "종가", "거래량", "외국인소진율"],
["20260820", 70000, 71500, 69800, 71000, 12345678, 50.1],
["20260821", 71000, 72000, 70500, 71800, 9876543, 50.2]]`

	bars, err := parseChartResponse("krx_chart", body)
	require.NoError(t, err)
	require.Len(t, bars, 2)

	assert.Equal(t, time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC), bars[0].date)
	assert.Equal(t, int64(70000), bars[0].open)
	assert.Equal(t, int64(71000), bars[0].close)
	assert.Equal(t, int64(12345678), bars[0].volume)
}

func TestParseChartResponseRegexFallback(t *testing.T) {
	// 따옴표 치환으로 JSON 파싱이 깨지는 본문
	body := `xx ["20260820", 70000, 71500, 69800, 71000, 12345678] yy`

	bars, err := parseChartResponse("krx_chart", body)
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, int64(71500), bars[0].high)
}

func TestParseChartResponseGarbage(t *testing.T) {
	_, err := parseChartResponse("krx_chart", "<html>blocked</html>")
	assert.Error(t, err)
}

func TestParseFlowPage(t *testing.T) {
	html := `
	<table class="type2"><tr><td>헤더용</td></tr></table>
	<table class="type2">
	  <tr><th>날짜</th></tr>
	  <tr>
	    <td>2026.08.21</td><td>71,800</td><td>+800</td><td>+1.13%</td>
	    <td>9,876,543</td><td>+12,345</td><td>-3,456</td>
	  </tr>
	</table>
	<td class="pgRR"><a href="#">맨뒤</a></td>`

	f := &NaverFlowFetcher{site: contracts.Site{Name: "naver_flow"}, logger: logger.NewNop()}
	flows, lastDate, hasMore, err := f.parseFlowPage(html, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, flows, 1)

	assert.Equal(t, int64(12345), flows[0]["institution_net"])
	assert.Equal(t, int64(-3456), flows[0]["foreign_net"])
	assert.Equal(t, int64(-12345+3456), flows[0]["individual_net"])
	assert.Equal(t, time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC), lastDate)
	assert.True(t, hasMore)
}

func TestParsePricePage(t *testing.T) {
	html := `
	<table class="type2">
	  <tr><th>날짜</th></tr>
	  <tr>
	    <td>2026.08.21</td><td>71,800</td><td>+800</td><td>71,000</td>
	    <td>72,000</td><td>70,500</td><td>9,876,543</td>
	  </tr>
	</table>`

	f := &NaverPriceFetcher{site: contracts.Site{Name: "naver_price"}, logger: logger.NewNop()}
	bars, err := f.parsePricePage(html)
	require.NoError(t, err)
	require.Len(t, bars, 1)

	assert.Equal(t, "2026-08-21", bars[0]["date"])
	assert.Equal(t, int64(71800), bars[0]["close"])
	assert.Equal(t, int64(71800)*int64(9876543), bars[0]["trading_value"])
}

func TestIsMajorDisclosure(t *testing.T) {
	assert.True(t, isMajorDisclosure("주요사항보고서(유상증자결정)"))
	assert.True(t, isMajorDisclosure("합병등종료보고서"))
	assert.False(t, isMajorDisclosure("기업설명회(IR)개최"))
}

func TestParseNum(t *testing.T) {
	assert.Equal(t, int64(12345), parseNum("+12,345"))
	assert.Equal(t, int64(-3456), parseNum("-3,456"))
	assert.Equal(t, int64(0), parseNum("-"))
	assert.Equal(t, int64(0), parseNum(""))
}

func TestBuildSkipsUnknownSites(t *testing.T) {
	sites := []contracts.Site{
		{ID: 1, Name: SiteKRX, Tier: contracts.TierLibrary},
		{ID: 2, Name: "mystery_site", Tier: contracts.TierScrape},
	}

	fetchers := Build(sites, Deps{Logger: logger.NewNop()})
	require.Len(t, fetchers, 1)
	assert.Equal(t, SiteKRX, fetchers[0].Site().Name)
}
