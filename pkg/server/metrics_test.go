package server

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordSessionStarted()
		m.RecordPacketReceived("JOIN")
		m.RecordPacketSent("RESPONSE")
		m.RecordFrameRejected("framing")
		m.RecordBroadcast("room", 3, time.Millisecond)
		m.RecordSessionEnded()
	})
}

func TestMetricsRecordSessionsAndBroadcasts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordSessionStarted()
	m.RecordSessionStarted()
	m.RecordSessionEnded()
	m.RecordBroadcast("room", 4, 2*time.Millisecond)
	m.RecordBroadcast("private", 1, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.activeSessions))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.sessionsCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessionsDisconnected))
	assert.Equal(t, 2, testutil.CollectAndCount(m.broadcastFanout))
}

func TestDirectoryGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	dir := NewDirectory()
	RegisterDirectoryGauges(reg, dir)

	dir.RegisterUser(&recordingSender{})
	dir.GetOrCreateRoom("a", nil)
	dir.GetOrCreateRoom("b", nil)

	families, err := reg.Gather()
	assert.NoError(t, err)

	values := make(map[string]float64)
	for _, mf := range families {
		values[mf.GetName()] = mf.GetMetric()[0].GetGauge().GetValue()
	}
	assert.Equal(t, 1.0, values["roomrelay_users"])
	assert.Equal(t, 2.0, values["roomrelay_rooms"])
}
