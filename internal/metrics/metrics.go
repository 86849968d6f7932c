package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ResolutionsTotal counts resolution attempts by terminal outcome
	// (redirect, not_found, scheduled, expired, locked, exhausted, error).
	ResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trimr_resolutions_total",
			Help: "Resolution attempts by outcome",
		},
		[]string{"outcome"},
	)

	ClicksAdmittedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trimr_clicks_admitted_total",
			Help: "Clicks admitted and recorded",
		},
	)

	LinksCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trimr_links_created_total",
			Help: "Links created",
		},
	)

	CacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trimr_link_cache_hits_total",
			Help: "Link cache hits on the redirect path",
		},
	)

	CacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trimr_link_cache_misses_total",
			Help: "Link cache misses on the redirect path",
		},
	)

	ExpiredPurgedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trimr_expired_links_purged_total",
			Help: "Expired links removed by the TTL sweep",
		},
	)
)
