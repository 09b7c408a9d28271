// Package telemetry exposes dispatcher statistics to Prometheus.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dshills/actionroute/internal/dispatcher"
	"github.com/dshills/actionroute/internal/dispatcher/cache"
)

// Source is what the collector reads. *dispatcher.Dispatcher satisfies it.
type Source interface {
	Metrics() *dispatcher.Metrics
	CacheInfo() (cache.Stats, bool)
	Count() int
}

var (
	descDispatchTotal = prometheus.NewDesc(
		"actionroute_dispatch_total",
		"Number of dispatches that reached a handler.",
		nil, nil,
	)
	descDispatchErrors = prometheus.NewDesc(
		"actionroute_dispatch_errors_total",
		"Number of dispatches whose handler returned an error.",
		nil, nil,
	)
	descDispatchNotFound = prometheus.NewDesc(
		"actionroute_dispatch_not_found_total",
		"Number of dispatches for which no handler matched.",
		nil, nil,
	)
	descDispatchCancelled = prometheus.NewDesc(
		"actionroute_dispatch_cancelled_total",
		"Number of dispatches vetoed by a pre-dispatch hook.",
		nil, nil,
	)
	descActionDispatch = prometheus.NewDesc(
		"actionroute_action_dispatch_total",
		"Number of dispatches per action.",
		[]string{"action"}, nil,
	)
	descActionDuration = prometheus.NewDesc(
		"actionroute_action_duration_seconds_total",
		"Total handler time per action.",
		[]string{"action"}, nil,
	)
	descCacheHits = prometheus.NewDesc(
		"actionroute_cache_hits_total",
		"Resolution cache hits since the cache was last enabled or invalidated.",
		nil, nil,
	)
	descCacheMisses = prometheus.NewDesc(
		"actionroute_cache_misses_total",
		"Resolution cache misses since the cache was last enabled or invalidated.",
		nil, nil,
	)
	descCacheSize = prometheus.NewDesc(
		"actionroute_cache_size",
		"Number of cached resolutions.",
		nil, nil,
	)
	descCacheCapacity = prometheus.NewDesc(
		"actionroute_cache_capacity",
		"Maximum number of cached resolutions.",
		nil, nil,
	)
	descRegistrations = prometheus.NewDesc(
		"actionroute_registrations",
		"Number of registered routes, globals included.",
		nil, nil,
	)
)

type collector struct {
	src Source
}

var _ prometheus.Collector = &collector{}

// NewCollector returns a prometheus.Collector reading src on every scrape.
// Dispatch series are omitted when src has metrics disabled; cache series
// when its cache is disabled.
func NewCollector(src Source) prometheus.Collector {
	return &collector{src: src}
}

// Describe implements prometheus.Collector.
func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- descDispatchTotal
	ch <- descDispatchErrors
	ch <- descDispatchNotFound
	ch <- descDispatchCancelled
	ch <- descActionDispatch
	ch <- descActionDuration
	ch <- descCacheHits
	ch <- descCacheMisses
	ch <- descCacheSize
	ch <- descCacheCapacity
	ch <- descRegistrations
}

// Collect implements prometheus.Collector.
func (c *collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(descRegistrations, prometheus.GaugeValue, float64(c.src.Count()))

	if m := c.src.Metrics(); m != nil {
		s := m.Snapshot()
		ch <- prometheus.MustNewConstMetric(descDispatchTotal, prometheus.CounterValue, float64(s.TotalDispatches))
		ch <- prometheus.MustNewConstMetric(descDispatchErrors, prometheus.CounterValue, float64(s.TotalErrors))
		ch <- prometheus.MustNewConstMetric(descDispatchNotFound, prometheus.CounterValue, float64(s.TotalNotFound))
		ch <- prometheus.MustNewConstMetric(descDispatchCancelled, prometheus.CounterValue, float64(s.TotalCancelled))

		for _, am := range m.TopActions(s.ActionCount) {
			ch <- prometheus.MustNewConstMetric(descActionDispatch, prometheus.CounterValue, float64(am.DispatchCount), am.Name)
			ch <- prometheus.MustNewConstMetric(descActionDuration, prometheus.CounterValue, am.TotalDuration.Seconds(), am.Name)
		}
	}

	if stats, ok := c.src.CacheInfo(); ok {
		ch <- prometheus.MustNewConstMetric(descCacheHits, prometheus.CounterValue, float64(stats.Hits))
		ch <- prometheus.MustNewConstMetric(descCacheMisses, prometheus.CounterValue, float64(stats.Misses))
		ch <- prometheus.MustNewConstMetric(descCacheSize, prometheus.GaugeValue, float64(stats.Size))
		ch <- prometheus.MustNewConstMetric(descCacheCapacity, prometheus.GaugeValue, float64(stats.Capacity))
	}
}
