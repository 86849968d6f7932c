package analytics

import (
	"net/url"
	"strings"
	"time"

	"github.com/mssola/useragent"

	"github.com/trimrr/trimr/internal/geo"
	"github.com/trimrr/trimr/internal/ipfilter"
	"github.com/trimrr/trimr/internal/models"
)

// Enricher turns a raw visit into a fully-parsed click row: browser, OS
// and device category from the User-Agent, referer domain, geo lookup,
// and bot marking. Pure lookups, no storage side effects.
type Enricher struct {
	Geo    *geo.Reader
	Filter *ipfilter.Checker
}

func (e *Enricher) Enrich(linkID int64, at time.Time, ip, rawUA, referer string) models.Click {
	ua := useragent.New(rawUA)
	browserName, browserVersion := ua.Browser()

	deviceType := classifyDevice(ua, rawUA)
	if IsBot(rawUA) || e.Filter.IsDatacenter(ip) {
		deviceType = "bot"
	}

	var refererDomain string
	if referer != "" {
		if u, err := url.Parse(referer); err == nil {
			refererDomain = u.Host
		}
	}

	geoResult := e.Geo.Lookup(ip)

	return models.Click{
		LinkID:         linkID,
		ClickedAt:      at,
		IP:             ip,
		UserAgent:      rawUA,
		Referer:        referer,
		RefererDomain:  refererDomain,
		Country:        geoResult.Country,
		City:           geoResult.City,
		Region:         geoResult.Region,
		Browser:        browserName,
		BrowserVersion: browserVersion,
		OS:             ua.OS(),
		DeviceType:     deviceType,
	}
}

// classifyDevice buckets a visit into desktop, mobile, tablet or unknown.
// The UA library has no tablet notion, so tablets are matched by the
// usual substrings before the generic mobile check.
func classifyDevice(ua *useragent.UserAgent, rawUA string) string {
	if rawUA == "" {
		return "unknown"
	}
	lower := strings.ToLower(rawUA)
	if strings.Contains(lower, "ipad") || strings.Contains(lower, "tablet") || strings.Contains(lower, "kindle") {
		return "tablet"
	}
	if ua.Mobile() {
		return "mobile"
	}
	if name, _ := ua.Browser(); name == "" {
		return "unknown"
	}
	return "desktop"
}
