package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/leontov-kolibri/kolibri-x/pkg/slo"
)

// SLOCollector implements prometheus.Collector over an slo.Tracker's
// live report, so a /metrics scrape surfaces the same per-stage
// percentiles and breaches the runtime computes internally, without
// routing through the otel metric pipeline.
type SLOCollector struct {
	tracker *slo.Tracker

	count     *prometheus.Desc
	p50       *prometheus.Desc
	p95       *prometheus.Desc
	p99       *prometheus.Desc
	breached  *prometheus.Desc
}

// NewSLOCollector builds a collector over tracker.
func NewSLOCollector(tracker *slo.Tracker) *SLOCollector {
	return &SLOCollector{
		tracker:  tracker,
		count:    prometheus.NewDesc("kolibri_slo_stage_samples", "Number of latency samples observed for a stage", []string{"stage"}, nil),
		p50:      prometheus.NewDesc("kolibri_slo_stage_latency_p50_ms", "p50 latency in milliseconds for a stage", []string{"stage"}, nil),
		p95:      prometheus.NewDesc("kolibri_slo_stage_latency_p95_ms", "p95 latency in milliseconds for a stage", []string{"stage"}, nil),
		p99:      prometheus.NewDesc("kolibri_slo_stage_latency_p99_ms", "p99 latency in milliseconds for a stage", []string{"stage"}, nil),
		breached: prometheus.NewDesc("kolibri_slo_stage_breached", "1 if a stage's p95 exceeds its configured threshold, else 0", []string{"stage"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *SLOCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.count
	ch <- c.p50
	ch <- c.p95
	ch <- c.p99
	ch <- c.breached
}

// Collect implements prometheus.Collector.
func (c *SLOCollector) Collect(ch chan<- prometheus.Metric) {
	built := c.tracker.BuildReport()
	breached := map[string]bool{}
	for _, b := range built.Breaches {
		breached[b.Stage] = true
	}
	for stage, report := range built.Stages {
		ch <- prometheus.MustNewConstMetric(c.count, prometheus.GaugeValue, float64(report.Count), stage)
		ch <- prometheus.MustNewConstMetric(c.p50, prometheus.GaugeValue, report.P50, stage)
		ch <- prometheus.MustNewConstMetric(c.p95, prometheus.GaugeValue, report.P95, stage)
		ch <- prometheus.MustNewConstMetric(c.p99, prometheus.GaugeValue, report.P99, stage)
		value := 0.0
		if breached[stage] {
			value = 1.0
		}
		ch <- prometheus.MustNewConstMetric(c.breached, prometheus.GaugeValue, value, stage)
	}
}
