package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ConnectedRiders = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "rider_dispatch", Name: "connected_riders", Help: "Number of live websocket sessions"})

	LocationUpdatesTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "rider_dispatch", Name: "location_updates_total", Help: "Accepted rider location updates"})
	InvalidEventsTotal   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "rider_dispatch", Name: "invalid_events_total", Help: "Inbound events dropped for missing or malformed fields"})
	BackendErrorsTotal   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "rider_dispatch", Name: "backend_errors_total", Help: "Registry or directory backend failures"})

	DispatchesTotal    = promauto.NewCounter(prometheus.CounterOpts{Namespace: "rider_dispatch", Name: "dispatches_total", Help: "Dispatch records created"})
	OffersTotal        = promauto.NewCounter(prometheus.CounterOpts{Namespace: "rider_dispatch", Name: "offers_total", Help: "Delivery offers pushed to candidates"})
	AcceptsTotal       = promauto.NewCounter(prometheus.CounterOpts{Namespace: "rider_dispatch", Name: "accepts_total", Help: "Dispatches ending in acceptance"})
	RejectsTotal       = promauto.NewCounter(prometheus.CounterOpts{Namespace: "rider_dispatch", Name: "rejects_total", Help: "Explicit offer rejections"})
	OfferTimeoutsTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "rider_dispatch", Name: "offer_timeouts_total", Help: "Offers expired without a response"})
	ExhaustedTotal     = promauto.NewCounter(prometheus.CounterOpts{Namespace: "rider_dispatch", Name: "exhausted_total", Help: "Dispatches that ran out of candidates"})
	NoRidersFoundTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "rider_dispatch", Name: "no_riders_found_total", Help: "Delivery requests with no nearby riders"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "rider_dispatch", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rider_dispatch",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
