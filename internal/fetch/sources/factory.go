package sources

import (
	"github.com/wonny/aegis/v14/internal/contracts"
	"github.com/wonny/aegis/v14/internal/fetch"
	"github.com/wonny/aegis/v14/pkg/config"
	"github.com/wonny/aegis/v14/pkg/httputil"
	"github.com/wonny/aegis/v14/pkg/logger"
)

// 레지스트리의 site.Name → 페처 매핑
const (
	SiteKRX            = "krx_chart"
	SiteDART           = "dart"
	SiteKISQuote       = "kis_quote"
	SiteNaverPrice     = "naver_price"
	SiteNaverFlow      = "naver_flow"
	SiteNaverNews      = "naver_news"
	SiteNaverConsensus = "naver_consensus"
	SiteBrowser        = "naver_mobile"
)

// Deps carries the shared clients fetchers are built from
type Deps struct {
	HTTP   *httputil.Client
	KIS    *KISClient
	Config *config.Config
	Logger *logger.Logger
}

// Build maps registry rows onto fetchers. Sites with no registered
// constructor are skipped with a warning so a registry edit cannot
// break startup.
func Build(sites []contracts.Site, deps Deps) []fetch.Fetcher {
	log := deps.Logger.WithComponent("sources")
	fetchers := make([]fetch.Fetcher, 0, len(sites))

	for _, site := range sites {
		var f fetch.Fetcher
		switch site.Name {
		case SiteKRX:
			f = NewKRXFetcher(site, deps.HTTP, log)
		case SiteDART:
			f = NewDARTFetcher(site, deps.Config.DART.APIKey, log)
		case SiteKISQuote:
			f = NewKISFetcher(site, deps.KIS, log)
		case SiteNaverPrice:
			f = NewNaverPriceFetcher(site, deps.HTTP, log)
		case SiteNaverFlow:
			f = NewNaverFlowFetcher(site, deps.HTTP, log)
		case SiteNaverNews:
			f = NewNaverNewsFetcher(site, deps.HTTP, log)
		case SiteNaverConsensus:
			f = NewNaverConsensusFetcher(site, deps.HTTP, log)
		case SiteBrowser:
			f = NewBrowserFetcher(site, log)
		default:
			log.WithFields(map[string]interface{}{
				"site": site.Name,
				"tier": int(site.Tier),
			}).Warn("No fetcher registered for site, skipping")
			continue
		}
		fetchers = append(fetchers, f)
	}

	return fetchers
}
