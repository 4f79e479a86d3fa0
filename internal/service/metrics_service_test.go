package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-drive-api/pkg/jobs"
)

func TestMetricsTrackQueueExportsGauges(t *testing.T) {
	m := NewMetricsService()
	m.TrackQueue("content-gc", func() jobs.Stats {
		return jobs.Stats{Processed: 7, Retried: 2, Abandoned: 1, Pending: 3}
	})

	families, err := m.registry.Gather()
	require.NoError(t, err)
	got := map[string]float64{}
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "queue" && label.GetValue() == "content-gc" {
					got[family.GetName()] = metric.GetGauge().GetValue()
				}
			}
		}
	}
	require.Equal(t, map[string]float64{
		"jobs_pending":   3,
		"jobs_processed": 7,
		"jobs_retried":   2,
		"jobs_abandoned": 1,
	}, got)
}

func TestMetricsNilReceiverIsSafe(t *testing.T) {
	var m *MetricsService
	m.TrackQueue("content-gc", func() jobs.Stats { return jobs.Stats{} })
	m.RecordQuotaRejection()
	m.RecordBulkItem("delete", "success")
}
