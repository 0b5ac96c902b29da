package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "restodir",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "restodir",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"method", "route"})

	// ExtractionsTotal counts coordinate extraction attempts by matching rule, "none" on a miss.
	ExtractionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "restodir",
		Subsystem: "maps",
		Name:      "extractions_total",
		Help:      "Coordinate extractions by matching rule",
	}, []string{"rule"})

	// EmbedsTotal counts built embeds by the source that won.
	EmbedsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "restodir",
		Subsystem: "maps",
		Name:      "embeds_total",
		Help:      "Map embeds built by source kind",
	}, []string{"kind"})

	// LocateTotal counts locator outcomes by source, "not_located" or "error".
	LocateTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "restodir",
		Subsystem: "maps",
		Name:      "locate_total",
		Help:      "Restaurant location resolutions by outcome",
	}, []string{"outcome"})

	// CacheLookupsTotal counts cache lookups by namespace and hit/miss.
	CacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "restodir",
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Cache lookups by namespace and result",
	}, []string{"namespace", "result"})

	// IndexedTotal counts documents sent to the search index.
	IndexedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "restodir",
		Subsystem: "search",
		Name:      "indexed_total",
		Help:      "Documents bulk indexed by result",
	}, []string{"result"})
)

// Middleware records request counts and latency labelled by the matched chi route.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
