// Package metrics exposes the pipeline counters on a prometheus endpoint.
// Collectors are registered on the default registry; Serve is a no-op when no
// listen address is configured.
package metrics

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dealscout_fetches_total",
		Help: "Outbound page fetches by platform, strategy and outcome.",
	}, []string{"platform", "strategy", "outcome"})

	FetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dealscout_fetch_duration_seconds",
		Help:    "Wall time of page fetches, including retries.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	}, []string{"platform"})

	RateLimitWait = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dealscout_ratelimit_wait_seconds",
		Help:    "Time spent waiting for a rate-limit slot.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"platform"})

	ScrapeRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dealscout_scrape_runs_total",
		Help: "Scrape runs by platform and final status.",
	}, []string{"platform", "status"})

	ListingsReconciled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dealscout_listings_reconciled_total",
		Help: "Reconciler outcomes (new, updated, unchanged, error).",
	}, []string{"platform", "outcome"})

	EmailsSynced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dealscout_emails_synced_total",
		Help: "Messages upserted per provider.",
	}, []string{"provider"})

	DedupSkips = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dealscout_email_dedup_skips_total",
		Help: "Messages skipped because another account already owns the hash.",
	})

	InferenceCalls = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dealscout_inference_calls_total",
		Help: "Financial-inference collaborator invocations.",
	})
)

// Serve exposes /metrics on addr. Returns the server so main can close it on
// shutdown; nil when addr is empty.
func Serve(addr string) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[metrics] server stopped: %v", err)
		}
	}()
	return srv
}
