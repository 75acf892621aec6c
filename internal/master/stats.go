package master

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"yqhp/distcalc/pkg/types"
)

const (
	minLatencyMicros = 1
	maxLatencyMicros = int64(time.Hour / time.Microsecond)
)

// StatsSnapshot is a point-in-time copy of the coordinator counters.
type StatsSnapshot struct {
	Executions      int64 `json:"executions"`
	Rounds          int64 `json:"rounds"`
	Attempts        int64 `json:"attempts"`
	Successes       int64 `json:"successes"`
	Failures        int64 `json:"failures"`
	Timeouts        int64 `json:"timeouts"`
	NoLiveWorkers   int64 `json:"no_live_workers"`
	KillsSent       int64 `json:"kills_sent"`
	DiscoveryPasses int64 `json:"discovery_passes"`
	DiscoveryErrors int64 `json:"discovery_errors"`
	LastDiscovered  int   `json:"last_discovered"`

	LatencyP50 time.Duration `json:"latency_p50"`
	LatencyP90 time.Duration `json:"latency_p90"`
	LatencyP99 time.Duration `json:"latency_p99"`
	LatencyMax time.Duration `json:"latency_max"`
}

// Stats accumulates dispatch counters and a latency histogram of successful
// attempts.
type Stats struct {
	mu       sync.Mutex
	snapshot StatsSnapshot
	latency  *hdrhistogram.Histogram
}

// NewStats creates empty stats.
func NewStats() *Stats {
	return &Stats{
		latency: hdrhistogram.New(minLatencyMicros, maxLatencyMicros, 3),
	}
}

// RecordExecution counts one ExecuteTask call.
func (s *Stats) RecordExecution() {
	s.mu.Lock()
	s.snapshot.Executions++
	s.mu.Unlock()
}

// RecordRound counts one dispatch round.
func (s *Stats) RecordRound() {
	s.mu.Lock()
	s.snapshot.Rounds++
	s.mu.Unlock()
}

// RecordAttempt counts one attempt outcome.
func (s *Stats) RecordAttempt(res types.DispatchResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot.Attempts++
	switch res.Outcome {
	case types.OutcomeSuccess:
		s.snapshot.Successes++
		micros := res.Latency.Microseconds()
		micros = max(minLatencyMicros, min(micros, maxLatencyMicros))
		_ = s.latency.RecordValue(micros)
	case types.OutcomeTimeout:
		s.snapshot.Timeouts++
	case types.OutcomeFailure:
		s.snapshot.Failures++
		if res.Index < 0 {
			s.snapshot.NoLiveWorkers++
		}
	}
}

// RecordKills counts delivered kill directives.
func (s *Stats) RecordKills(n int) {
	s.mu.Lock()
	s.snapshot.KillsSent += int64(n)
	s.mu.Unlock()
}

// RecordDiscovery counts one discovery pass.
func (s *Stats) RecordDiscovery(workers int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot.DiscoveryPasses++
	if err != nil {
		s.snapshot.DiscoveryErrors++
		return
	}
	s.snapshot.LastDiscovered = workers
}

// Snapshot returns a copy of the counters with latency quantiles filled in.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot
	if s.latency.TotalCount() > 0 {
		snap.LatencyP50 = micros(s.latency.ValueAtQuantile(50))
		snap.LatencyP90 = micros(s.latency.ValueAtQuantile(90))
		snap.LatencyP99 = micros(s.latency.ValueAtQuantile(99))
		snap.LatencyMax = micros(s.latency.Max())
	}
	return snap
}

func micros(v int64) time.Duration {
	return time.Duration(v) * time.Microsecond
}
