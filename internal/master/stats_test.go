package master

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"yqhp/distcalc/pkg/types"
)

func TestStatsRecordAttempt(t *testing.T) {
	stats := NewStats()

	for i := 1; i <= 100; i++ {
		res := types.Success(1)
		res.Latency = time.Duration(i) * time.Millisecond
		stats.RecordAttempt(res)
	}
	stats.RecordAttempt(types.Timeout())
	stats.RecordAttempt(types.Failure("no alive servers"))

	refused := types.Failure("refused")
	refused.Index = 2
	stats.RecordAttempt(refused)

	snap := stats.Snapshot()
	assert.Equal(t, int64(103), snap.Attempts)
	assert.Equal(t, int64(100), snap.Successes)
	assert.Equal(t, int64(1), snap.Timeouts)
	assert.Equal(t, int64(2), snap.Failures)
	assert.Equal(t, int64(1), snap.NoLiveWorkers)

	assert.InDelta(t, float64(50*time.Millisecond), float64(snap.LatencyP50), float64(time.Millisecond))
	assert.InDelta(t, float64(99*time.Millisecond), float64(snap.LatencyP99), float64(time.Millisecond))
	assert.InDelta(t, float64(100*time.Millisecond), float64(snap.LatencyMax), float64(time.Millisecond))
}

func TestStatsEmptyLatency(t *testing.T) {
	snap := NewStats().Snapshot()
	assert.Zero(t, snap.LatencyP50)
	assert.Zero(t, snap.LatencyMax)
}

func TestStatsLatencyClamped(t *testing.T) {
	stats := NewStats()

	res := types.Success(0)
	res.Latency = 3 * time.Hour
	stats.RecordAttempt(res)

	snap := stats.Snapshot()
	assert.Equal(t, int64(1), snap.Successes)
	assert.LessOrEqual(t, snap.LatencyMax, time.Hour+time.Minute)
}

func TestStatsDiscovery(t *testing.T) {
	stats := NewStats()

	stats.RecordDiscovery(4, nil)
	stats.RecordDiscovery(0, errors.New("boom"))

	snap := stats.Snapshot()
	assert.Equal(t, int64(2), snap.DiscoveryPasses)
	assert.Equal(t, int64(1), snap.DiscoveryErrors)
	assert.Equal(t, 4, snap.LastDiscovered)
}
