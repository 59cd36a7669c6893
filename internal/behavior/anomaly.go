package behavior

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"threatwatch/internal/common"
	"threatwatch/internal/metrics"
)

const metricSampleWindow = 120

// rollingMetrics keeps a bounded sample window per metric dimension.
type rollingMetrics struct {
	samples map[string][]float64
}

func newRollingMetrics() *rollingMetrics {
	return &rollingMetrics{samples: make(map[string][]float64)}
}

func (r *rollingMetrics) observe(name string, v float64) {
	s := append(r.samples[name], v)
	if len(s) > metricSampleWindow {
		s = s[len(s)-metricSampleWindow:]
	}
	r.samples[name] = s
}

func (r *rollingMetrics) stats(name string) (mean, stddev float64, ok bool) {
	s := r.samples[name]
	if len(s) < 5 {
		return 0, 0, false
	}
	return stat.Mean(s, nil), stat.StdDev(s, nil), true
}

// DetectAnomalies compares a metrics snapshot to the rolling baseline. The
// deviation magnitude is the root-mean-square of the per-dimension z-scores;
// severity follows the configured cut points and is monotonic in magnitude.
// The snapshot is folded into the baseline after scoring.
func (e *Engine) DetectAnomalies(m SecurityMetrics) *AnomalyDetectionResult {
	dims := map[string]float64{
		"events_per_minute":   m.EventsPerMinute,
		"avg_risk_score":      m.AvgRiskScore,
		"failed_logins":       m.FailedLogins,
		"data_transfer_mb":    m.DataTransferMB,
		"unique_destinations": m.UniqueDestinations,
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	res := &AnomalyDetectionResult{DetectedAt: e.now()}
	var sumSquares float64
	scored := 0
	for name, observed := range dims {
		mean, stddev, ok := e.rolling.stats(name)
		e.rolling.observe(name, observed)
		if !ok || stddev == 0 {
			continue
		}
		z := (observed - mean) / stddev
		sumSquares += z * z
		scored++
		if math.Abs(z) >= e.th.AnomalyLow {
			res.Anomalies = append(res.Anomalies, MetricAnomaly{
				Metric:   name,
				Observed: observed,
				Expected: mean,
				ZScore:   z,
			})
		}
	}
	if scored > 0 {
		res.DeviationMagnitude = math.Sqrt(sumSquares / float64(scored))
	}

	res.Severity = e.classify(res.DeviationMagnitude)
	res.AutomaticResponse = res.Severity.Rank() >= common.SeverityHigh.Rank()
	res.Promote = res.DeviationMagnitude >= e.th.DriftAction
	if len(res.Anomalies) > 0 {
		res.Recommendations = []string{
			"compare deviating metrics against scheduled maintenance windows",
			"run a targeted hunt over the deviation window",
		}
	}
	metrics.Anomalies.WithLabelValues(string(res.Severity)).Inc()
	return res
}

// classify maps a deviation magnitude to a severity using the configured cut
// points. Increasing magnitude never lowers the severity rank.
func (e *Engine) classify(magnitude float64) common.Severity {
	switch {
	case magnitude < e.th.AnomalyLow:
		return common.SeverityLow
	case magnitude < e.th.AnomalyMedium:
		return common.SeverityMedium
	case magnitude < e.th.AnomalyHigh:
		return common.SeverityHigh
	}
	return common.SeverityCritical
}
