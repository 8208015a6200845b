package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func TestAssistantMetricsNilSafe(t *testing.T) {
	var m *AssistantMetrics
	m.ObserveTurn("offered")
	m.ObserveToolCall("query_available_appointments", "ok")
	m.ObserveLLMLatency("ok", 0.1)
	m.ObserveOfferedSlots(3)
}

func TestSnapshotSummarisesFamilies(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewAssistantMetrics(reg)

	m.ObserveTurn("offered")
	m.ObserveTurn("offered")
	m.ObserveTurn("booked")
	m.ObserveToolCall("select_appointment_slot", "invalid")
	m.ObserveOfferedSlots(10)
	m.ObserveOfferedSlots(4)
	for i := 0; i < 10; i++ {
		m.ObserveLLMLatency("ok", 0.3)
	}
	m.ObserveLLMLatency("error", 20)

	stats := Snapshot(reg)
	assert.Equal(t, 2.0, stats.Turns["offered"])
	assert.Equal(t, 1.0, stats.Turns["booked"])
	assert.Equal(t, 1.0, stats.ToolCalls["select_appointment_slot:invalid"])
	assert.Equal(t, uint64(2), stats.Searches)
	assert.InDelta(t, 7.0, stats.AvgOffered, 1e-9)

	// All ok samples fall in the (0.25, 0.5] bucket; the error sample is ignored.
	assert.Equal(t, uint64(10), stats.LLMCalls)
	assert.InDelta(t, 375.0, stats.LLMP50Ms, 1e-6)
	assert.Greater(t, stats.LLMP95Ms, stats.LLMP50Ms)
	assert.LessOrEqual(t, stats.LLMP95Ms, 500.0)
}

func TestSnapshotEmptyRegistry(t *testing.T) {
	stats := Snapshot(prometheus.NewRegistry())
	assert.Empty(t, stats.Turns)
	assert.Zero(t, stats.LLMCalls)
}
