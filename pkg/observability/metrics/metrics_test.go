package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMatchMetrics(reg).(*matchMetrics)
	ctx := context.Background()

	m.RecordTeardownFailure(ctx)
	m.RecordTeardownFailure(ctx)
	m.RecordMatchCancelled(ctx, "warmup_timeout")
	m.RecordOperationAttempt(ctx, "Settle")
	m.RecordOperationSuccess(ctx, "Settle")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.teardown))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cancelled.WithLabelValues("warmup_timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outcomes.WithLabelValues("Settle", "success")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["frag_arena_teardown_failures_total"])
	assert.True(t, names["frag_arena_match_operation_attempts_total"])
}

func TestModulesShareRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	assert.NotPanics(t, func() {
		NewMatchMetrics(reg)
		NewMatchmakingMetrics(reg)
	})
}

func TestMatchmakingMetrics_RecordTick(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMatchmakingMetrics(reg).(*matchmakingMetrics)
	m.RecordTick(context.Background(), "duel", 5, 2)
	m.RecordTick(context.Background(), "duel", 1, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.queued.WithLabelValues("duel")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.paired.WithLabelValues("duel")))
}
