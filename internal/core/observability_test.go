package core

import (
	"context"
	"expvar"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusMetricsRecorder(reg)
	require.NoError(t, err)

	ctx := context.Background()
	rec.Observe(ctx, "create_workspace", true, 2*time.Millisecond)
	rec.Observe(ctx, "create_workspace", false, time.Millisecond)
	rec.Observe(ctx, "create_workspace", true, time.Millisecond)
	rec.Observe(ctx, "", true, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(rec.operations.WithLabelValues("create_workspace", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.operations.WithLabelValues("create_workspace", "error")))
	assert.Equal(t, 2, testutil.CollectAndCount(rec.operations))
	assert.Equal(t, 1, testutil.CollectAndCount(rec.duration))

	_, err = NewPrometheusMetricsRecorder(reg)
	assert.Error(t, err, "collectors register once per registry")
}

func TestExpvarRecorder(t *testing.T) {
	rec := NewExpvarMetricsRecorder("")
	require.NotNil(t, expvar.Get(rec.Name()))

	ctx := context.Background()
	rec.Observe(ctx, "delete_collection", true, 3*time.Millisecond)
	rec.Observe(ctx, "delete_collection", false, time.Millisecond)
	rec.Observe(ctx, "", false, time.Millisecond)

	snap := rec.Snapshot()
	assert.InDelta(t, 4.0, snap.DurationsMS["delete_collection"], 1e-9)
	assert.Equal(t, map[string]int64{"success": 1, "error": 1}, snap.Results["delete_collection"])
	assert.Len(t, snap.Results, 1)

	snap.Results["delete_collection"]["success"] = 99
	assert.Equal(t, int64(1), rec.Snapshot().Results["delete_collection"]["success"], "snapshots are copies")
}

func TestMultiRecorderFansOut(t *testing.T) {
	a, b := &recordingMetrics{}, &recordingMetrics{}
	MultiRecorder{a, b}.Observe(context.Background(), "import", true, 0)
	assert.Equal(t, []string{"import"}, a.ops)
	assert.Equal(t, []string{"import"}, b.ops)
}
