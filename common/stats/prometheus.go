package stats

import (
	"regexp"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var promNameScrubber = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// PrometheusCollector exposes every instrument of a StatsRegistry as a
// Prometheus metric. The instrument set is dynamic so the collector is
// unchecked: Describe sends nothing.
type PrometheusCollector struct {
	namespace string
	registry  StatsRegistry
}

func NewPrometheusCollector(namespace string, registry StatsRegistry) *PrometheusCollector {
	return &PrometheusCollector{namespace: namespace, registry: registry}
}

func (c *PrometheusCollector) Describe(ch chan<- *prometheus.Desc) {}

func (c *PrometheusCollector) Collect(ch chan<- prometheus.Metric) {
	c.registry.Each(func(name string, i interface{}) {
		fq := c.metricName(name)
		switch stat := i.(type) {
		case Counter:
			desc := prometheus.NewDesc(fq, name, nil, nil)
			ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(stat.Count()))
		case Gauge:
			desc := prometheus.NewDesc(fq, name, nil, nil)
			ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, float64(stat.Value()))
		case GaugeFloat:
			desc := prometheus.NewDesc(fq, name, nil, nil)
			ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, stat.Value())
		case Latency:
			desc := prometheus.NewDesc(fq+"_seconds", name, nil, nil)
			qs := stat.Percentiles(defaultPercentiles)
			quantiles := make(map[float64]float64, len(qs))
			for i, q := range qs {
				quantiles[defaultPercentiles[i]] = q / float64(time.Second)
			}
			ch <- prometheus.MustNewConstSummary(desc, uint64(stat.Count()),
				float64(stat.Sum())/float64(time.Second), quantiles)
		}
	})
}

func (c *PrometheusCollector) metricName(name string) string {
	n := promNameScrubber.ReplaceAllString(strings.Replace(name, "/", "_", -1), "_")
	if c.namespace == "" {
		return n
	}
	return c.namespace + "_" + n
}
