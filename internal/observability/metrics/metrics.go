package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	namespace = "appointments"
	subsystem = "assistant"
)

// Fully qualified names, used by Snapshot to find families.
const (
	turnsMetric        = namespace + "_" + subsystem + "_turns_total"
	toolCallsMetric    = namespace + "_" + subsystem + "_tool_calls_total"
	llmLatencyMetric   = namespace + "_" + subsystem + "_llm_latency_seconds"
	offeredSlotsMetric = namespace + "_" + subsystem + "_offered_slots"
)

// AssistantMetrics exposes counters/histograms for booking turns.
type AssistantMetrics struct {
	turnsTotal     *prometheus.CounterVec
	toolCallsTotal *prometheus.CounterVec
	llmLatency     *prometheus.HistogramVec
	offeredSlots   prometheus.Histogram
}

func NewAssistantMetrics(reg prometheus.Registerer) *AssistantMetrics {
	m := &AssistantMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "turns_total",
			Help:      "Conversation turns by outcome",
		}, []string{"outcome"}),
		toolCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tool_calls_total",
			Help:      "Tool calls requested by the model",
		}, []string{"tool", "status"}),
		llmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "llm_latency_seconds",
			Help:      "Latency of LLM completion calls",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}, []string{"status"}),
		offeredSlots: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "offered_slots",
			Help:      "Number of slots offered per successful search",
			Buckets:   []float64{0, 1, 3, 5, 8, 10},
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.toolCallsTotal, m.llmLatency, m.offeredSlots)
	return m
}

func (m *AssistantMetrics) ObserveTurn(outcome string) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(outcome).Inc()
}

func (m *AssistantMetrics) ObserveToolCall(tool, status string) {
	if m == nil {
		return
	}
	m.toolCallsTotal.WithLabelValues(tool, status).Inc()
}

func (m *AssistantMetrics) ObserveLLMLatency(status string, seconds float64) {
	if m == nil {
		return
	}
	m.llmLatency.WithLabelValues(status).Observe(seconds)
}

func (m *AssistantMetrics) ObserveOfferedSlots(n int) {
	if m == nil {
		return
	}
	m.offeredSlots.Observe(float64(n))
}
