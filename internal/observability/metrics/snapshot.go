package metrics

import (
	"math"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Stats is the JSON summary served on /stats.
type Stats struct {
	Turns      map[string]float64 `json:"turns"`
	ToolCalls  map[string]float64 `json:"tool_calls"`
	LLMCalls   uint64             `json:"llm_calls"`
	LLMP50Ms   float64            `json:"llm_p50_ms"`
	LLMP95Ms   float64            `json:"llm_p95_ms"`
	Searches   uint64             `json:"searches"`
	AvgOffered float64            `json:"avg_offered_slots"`
}

// Snapshot summarises the assistant families from gatherer.
func Snapshot(gatherer prometheus.Gatherer) Stats {
	stats := Stats{
		Turns:     map[string]float64{},
		ToolCalls: map[string]float64{},
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mfs, err := gatherer.Gather()
	if err != nil {
		return stats
	}

	for _, mf := range mfs {
		if mf == nil {
			continue
		}
		switch mf.GetName() {
		case turnsMetric:
			for _, metric := range mf.Metric {
				stats.Turns[labelValue(metric, "outcome")] += metric.GetCounter().GetValue()
			}
		case toolCallsMetric:
			for _, metric := range mf.Metric {
				key := labelValue(metric, "tool") + ":" + labelValue(metric, "status")
				stats.ToolCalls[key] += metric.GetCounter().GetValue()
			}
		case llmLatencyMetric:
			stats.LLMCalls, stats.LLMP50Ms, stats.LLMP95Ms = latencySummary(mf)
		case offeredSlotsMetric:
			for _, metric := range mf.Metric {
				h := metric.GetHistogram()
				if h == nil || h.GetSampleCount() == 0 {
					continue
				}
				stats.Searches = h.GetSampleCount()
				stats.AvgOffered = h.GetSampleSum() / float64(h.GetSampleCount())
			}
		}
	}
	return stats
}

// latencySummary merges successful-call histograms and interpolates p50/p95.
func latencySummary(family *dto.MetricFamily) (uint64, float64, float64) {
	cumulativeByUpper := map[float64]uint64{}
	var total uint64
	for _, metric := range family.Metric {
		if metric == nil || labelValue(metric, "status") != "ok" {
			continue
		}
		h := metric.GetHistogram()
		if h == nil {
			continue
		}
		total += h.GetSampleCount()
		for _, b := range h.Bucket {
			if b == nil {
				continue
			}
			cumulativeByUpper[b.GetUpperBound()] += b.GetCumulativeCount()
		}
	}
	if total == 0 {
		return 0, 0, 0
	}
	// The +Inf bucket is implicit in client_model output.
	cumulativeByUpper[math.Inf(1)] = total

	uppers := make([]float64, 0, len(cumulativeByUpper))
	for upper := range cumulativeByUpper {
		uppers = append(uppers, upper)
	}
	sort.Float64s(uppers)

	p50 := histogramQuantile(0.50, total, uppers, cumulativeByUpper)
	p95 := histogramQuantile(0.95, total, uppers, cumulativeByUpper)
	return total, p50 * 1000.0, p95 * 1000.0
}

func labelValue(metric *dto.Metric, name string) string {
	for _, lp := range metric.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

func histogramQuantile(q float64, total uint64, uppers []float64, cumulativeByUpper map[float64]uint64) float64 {
	target := q * float64(total)
	var prevUpper, prevCum float64

	for _, upper := range uppers {
		cum := float64(cumulativeByUpper[upper])
		if cum < target {
			prevUpper = upper
			prevCum = cum
			continue
		}
		if math.IsInf(upper, 1) {
			return prevUpper
		}
		bucketCount := cum - prevCum
		if bucketCount <= 0 {
			return upper
		}
		fraction := (target - prevCum) / bucketCount
		return prevUpper + fraction*(upper-prevUpper)
	}
	return prevUpper
}
