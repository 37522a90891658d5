package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg             *prometheus.Registry
	OrdersProcessed prometheus.Counter
	OrdersImported  prometheus.Counter
	OrdersExcluded  prometheus.Counter
	OrdersDeferred  prometheus.Counter
	LinesResolved   prometheus.Counter
	LinesSkipped    prometheus.Counter
	CacheHits       prometheus.Counter
	Prompts         prometheus.Counter
	RunDurationSec  prometheus.Gauge
	UnresolvedGauge prometheus.Gauge
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	processed := prometheus.NewCounter(prometheus.CounterOpts{Name: "reconcile_orders_processed_total"})
	imported := prometheus.NewCounter(prometheus.CounterOpts{Name: "reconcile_orders_already_imported_total"})
	excluded := prometheus.NewCounter(prometheus.CounterOpts{Name: "reconcile_orders_excluded_total"})
	deferred := prometheus.NewCounter(prometheus.CounterOpts{Name: "reconcile_orders_deferred_total"})
	resolved := prometheus.NewCounter(prometheus.CounterOpts{Name: "reconcile_lines_resolved_total"})
	skipped := prometheus.NewCounter(prometheus.CounterOpts{Name: "reconcile_lines_skipped_total"})
	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{Name: "reconcile_cache_hits_total"})
	prompts := prometheus.NewCounter(prometheus.CounterOpts{Name: "reconcile_prompts_total"})
	duration := prometheus.NewGauge(prometheus.GaugeOpts{Name: "reconcile_run_duration_seconds"})
	unresolved := prometheus.NewGauge(prometheus.GaugeOpts{Name: "reconcile_unresolved_orders"})

	r.MustRegister(processed, imported, excluded, deferred, resolved, skipped, cacheHits, prompts, duration, unresolved)
	return &Registry{
		reg:             r,
		OrdersProcessed: processed,
		OrdersImported:  imported,
		OrdersExcluded:  excluded,
		OrdersDeferred:  deferred,
		LinesResolved:   resolved,
		LinesSkipped:    skipped,
		CacheHits:       cacheHits,
		Prompts:         prompts,
		RunDurationSec:  duration,
		UnresolvedGauge: unresolved,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
