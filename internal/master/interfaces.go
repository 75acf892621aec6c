package master

import (
	"context"

	"yqhp/distcalc/internal/transport"
	"yqhp/distcalc/pkg/types"
)

// Coordinator is the public surface of the coordinator node.
type Coordinator interface {
	// Start runs one synchronous discovery pass and schedules periodic refreshes.
	Start(ctx context.Context) error

	// Stop cancels the periodic refresh.
	Stop(ctx context.Context) error

	// ExecuteTask integrates over [lower, upper] using the discovered workers.
	ExecuteTask(ctx context.Context, lower, upper float64) (float64, error)

	// Kill sends a kill directive to at most count live workers.
	Kill(ctx context.Context, count, sleepSeconds int) (int, error)

	// Refresh runs an on-demand discovery pass.
	Refresh(ctx context.Context) (int, error)

	// Workers returns a copy of the current registry.
	Workers() []types.Worker

	// Stats returns a snapshot of the dispatch counters.
	Stats() StatsSnapshot
}

// TaskSender carries tasks and kill directives to a worker address.
type TaskSender interface {
	// SendTask delivers task and returns the worker's partial result.
	SendTask(ctx context.Context, addr string, task types.Task) (float64, error)

	// SendKill delivers a kill directive.
	SendKill(ctx context.Context, addr string, sleepSeconds int) error
}

// Prober runs one discovery probe-and-collect cycle.
type Prober interface {
	Probe(ctx context.Context) ([]transport.DiscoveryReply, error)
}

// Balancer chooses a live worker for one dispatch attempt.
type Balancer interface {
	// PickLive returns the index of a live entry, or false when none is alive.
	PickLive(workers []types.Worker) (int, bool)
}
