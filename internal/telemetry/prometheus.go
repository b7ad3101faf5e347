package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exposes pool counts to Prometheus. Values are read from the
// source on every scrape.
type Collector struct {
	source StatusSource
	total  *prometheus.Desc
	inUse  *prometheus.Desc
	free   *prometheus.Desc
	limit  *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector builds a collector over source. Metric names are prefixed with
// namespace when it is set.
func NewCollector(namespace string, source StatusSource) *Collector {
	labels := []string{"pool", "template"}
	constLabels := prometheus.Labels{"environment": Environment()}
	return &Collector{
		source: source,
		total: prometheus.NewDesc(prometheus.BuildFQName(namespace, "pool", "objects"),
			"Clones owned by the pool (free + in use).", labels, constLabels),
		inUse: prometheus.NewDesc(prometheus.BuildFQName(namespace, "pool", "objects_in_use"),
			"Clones currently checked out.", labels, constLabels),
		free: prometheus.NewDesc(prometheus.BuildFQName(namespace, "pool", "objects_free"),
			"Clones waiting in the pool.", labels, constLabels),
		limit: prometheus.NewDesc(prometheus.BuildFQName(namespace, "pool", "limit"),
			"Configured pool cap. Absent for pools that always grow.", labels, constLabels),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.total
	ch <- c.inUse
	ch <- c.free
	ch <- c.limit
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.source == nil {
		return
	}
	for _, st := range c.source.Status() {
		ch <- prometheus.MustNewConstMetric(c.total, prometheus.GaugeValue, float64(st.Total), st.Pool, st.Template)
		ch <- prometheus.MustNewConstMetric(c.inUse, prometheus.GaugeValue, float64(st.InUse), st.Pool, st.Template)
		ch <- prometheus.MustNewConstMetric(c.free, prometheus.GaugeValue, float64(st.Free), st.Pool, st.Template)
		if st.Limit > 0 {
			ch <- prometheus.MustNewConstMetric(c.limit, prometheus.GaugeValue, float64(st.Limit), st.Pool, st.Template)
		}
	}
}
