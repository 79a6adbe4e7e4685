package rag

// JournalSink is the narrow append contract alerts are emitted through.
// *journal.Journal's Append returns the appended entry, so pkg/runtime
// passes the journal in through a small adapter.
type JournalSink interface {
	Append(event string, payload map[string]interface{})
}

type noopSink struct{}

func (noopSink) Append(string, map[string]interface{}) {}

// Thresholds are the cache-health breach limits evaluated after every
// retrieval (spec section 4.6).
type Thresholds struct {
	MinHitRate      float64
	MaxMissRate     float64
	MaxSize         int
	MinObservations int
}

// DefaultThresholds returns the spec-documented defaults: 0.2 / 0.95 /
// 1024 / 10.
func DefaultThresholds() Thresholds {
	return Thresholds{MinHitRate: 0.2, MaxMissRate: 0.95, MaxSize: 1024, MinObservations: 10}
}

// Alert is one breached threshold.
type Alert struct {
	Name       string
	Metric     string
	Observed   float64
	Threshold  float64
	Comparison string // "below" | "above"
}

// EvaluateAlerts checks stats against th and journals a runtime_alert event
// per breach, skipping entirely when stats.Requests is below
// th.MinObservations. Returns the breaches found, for callers that want
// them without re-deriving from the journal.
func EvaluateAlerts(stats Stats, th Thresholds, sink JournalSink) []Alert {
	if sink == nil {
		sink = noopSink{}
	}
	if stats.Requests < int64(th.MinObservations) {
		return nil
	}

	var alerts []Alert
	check := func(name, metric string, observed, threshold float64, breached bool, comparison string) {
		if !breached {
			return
		}
		a := Alert{Name: name, Metric: metric, Observed: observed, Threshold: threshold, Comparison: comparison}
		alerts = append(alerts, a)
		sink.Append("runtime_alert", map[string]interface{}{
			"name":       name,
			"metric":     metric,
			"observed":   observed,
			"threshold":  threshold,
			"comparison": comparison,
			"stats": map[string]interface{}{
				"hits": stats.Hits, "misses": stats.Misses, "requests": stats.Requests,
				"hit_rate": stats.HitRate, "miss_rate": stats.MissRate, "size": stats.Size,
			},
		})
	}

	check("rag_cache.low_hit_rate", "hit_rate", stats.HitRate, th.MinHitRate, stats.HitRate < th.MinHitRate, "below")
	check("rag_cache.high_miss_rate", "miss_rate", stats.MissRate, th.MaxMissRate, stats.MissRate > th.MaxMissRate, "above")
	check("rag_cache.oversized", "size", float64(stats.Size), float64(th.MaxSize), stats.Size > th.MaxSize, "above")

	return alerts
}
