package master

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"yqhp/distcalc/internal/transport"
	"yqhp/distcalc/pkg/types"
)

// DefaultAttemptTimeout is used when SchedulerConfig.AttemptTimeout is unset.
const DefaultAttemptTimeout = 5 * time.Second

// SchedulerConfig holds the dispatch parameters.
type SchedulerConfig struct {
	// SplitCount is the number of equal-width sub-tasks per request.
	SplitCount int
	// AttemptTimeout bounds one dispatch attempt, connect through reply.
	AttemptTimeout time.Duration
	// RetryBackoff is slept between rounds that requeued work.
	RetryBackoff time.Duration
}

// TaskScheduler splits integration requests and drives them to completion
// over the live workers in the registry.
type TaskScheduler struct {
	config   SchedulerConfig
	registry *Registry
	balancer Balancer
	sender   TaskSender
	stats    *Stats
	logger   *zap.Logger

	nextID atomic.Uint64
}

// NewTaskScheduler creates a scheduler.
func NewTaskScheduler(cfg SchedulerConfig, registry *Registry, balancer Balancer, sender TaskSender, stats *Stats, logger *zap.Logger) *TaskScheduler {
	if cfg.SplitCount < 1 {
		cfg.SplitCount = 1
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = DefaultAttemptTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if stats == nil {
		stats = NewStats()
	}
	return &TaskScheduler{
		config:   cfg,
		registry: registry,
		balancer: balancer,
		sender:   sender,
		stats:    stats,
		logger:   logger,
	}
}

// Split partitions [lower, upper] into SplitCount contiguous sub-tasks.
// Adjacent tasks share a bound exactly and the last one ends at upper.
func (s *TaskScheduler) Split(lower, upper float64) []types.Task {
	n := s.config.SplitCount
	bound := func(i int) float64 {
		if i == n {
			return upper
		}
		return lower + (upper-lower)*float64(i)/float64(n)
	}

	tasks := make([]types.Task, n)
	for i := range n {
		tasks[i] = types.Task{
			ID:    s.nextID.Add(1),
			Lower: bound(i),
			Upper: bound(i + 1),
		}
	}
	return tasks
}

// ExecuteTask integrates over [lower, upper]. It keeps dispatching rounds
// until every sub-task has succeeded exactly once and returns the sum of the
// partial results. It only fails on invalid bounds or when ctx is done;
// an empty or all-dead registry is retried indefinitely.
func (s *TaskScheduler) ExecuteTask(ctx context.Context, lower, upper float64) (float64, error) {
	if !isFinite(lower) || !isFinite(upper) {
		return 0, fmt.Errorf("%w: [%g, %g]", types.ErrInvalidBounds, lower, upper)
	}

	s.stats.RecordExecution()
	queue := s.Split(lower, upper)
	total := 0.0

	for round := 1; len(queue) > 0; round++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		batch := queue
		results := s.runRound(ctx, batch)
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		s.stats.RecordRound()

		queue = make([]types.Task, 0, len(batch))
		for i, res := range results {
			task := batch[i]
			s.stats.RecordAttempt(res)

			switch res.Outcome {
			case types.OutcomeSuccess:
				total += res.Value
			case types.OutcomeTimeout:
				s.logger.Warn("task timed out, requeueing",
					zap.Stringer("task", task),
					zap.String("worker", res.Address),
				)
				queue = append(queue, task)
			case types.OutcomeFailure:
				if res.Index >= 0 {
					s.registry.MarkDead(res.Generation, res.Index)
				}
				s.logger.Warn("task failed, requeueing",
					zap.Stringer("task", task),
					zap.String("worker", res.Address),
					zap.String("reason", res.Reason),
				)
				queue = append(queue, task)
			}
		}

		if len(queue) > 0 {
			s.logger.Debug("round finished with pending tasks",
				zap.Int("round", round),
				zap.Int("pending", len(queue)),
			)
			if err := s.backoff(ctx); err != nil {
				return 0, err
			}
		}
	}

	return total, nil
}

// runRound dispatches every task of the batch concurrently and waits for all
// of them. results[i] belongs to batch[i].
func (s *TaskScheduler) runRound(ctx context.Context, batch []types.Task) []types.DispatchResult {
	results := make([]types.DispatchResult, len(batch))

	var g errgroup.Group
	for i, task := range batch {
		g.Go(func() error {
			results[i] = s.attempt(ctx, task)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// attempt runs one dispatch under the attempt timeout. When the timer fires
// first the attempt is reported as a timeout and whatever the abandoned
// dispatch produces later is dropped.
func (s *TaskScheduler) attempt(ctx context.Context, task types.Task) types.DispatchResult {
	attemptCtx, cancel := context.WithTimeout(ctx, s.config.AttemptTimeout)
	defer cancel()

	done := make(chan types.DispatchResult, 1)
	go func() {
		done <- s.dispatch(attemptCtx, task)
	}()

	select {
	case res := <-done:
		return res
	case <-attemptCtx.Done():
		return types.Timeout()
	}
}

// dispatch picks a live worker and performs one request to it.
func (s *TaskScheduler) dispatch(ctx context.Context, task types.Task) types.DispatchResult {
	index, worker, generation, ok := s.registry.Pick(s.balancer)
	if !ok {
		return types.Failure(types.ErrNoLiveWorkers.Error())
	}

	start := time.Now()
	value, err := s.sender.SendTask(ctx, worker.Address, task)

	var res types.DispatchResult
	switch {
	case err == nil:
		res = types.Success(value)
	case transport.IsTimeout(err):
		res = types.Timeout()
	default:
		res = types.Failure(err.Error())
	}
	res.Index = index
	res.Generation = generation
	res.Address = worker.Address
	res.Latency = time.Since(start)

	return res
}

func (s *TaskScheduler) backoff(ctx context.Context) error {
	if s.config.RetryBackoff <= 0 {
		return nil
	}
	timer := time.NewTimer(s.config.RetryBackoff)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
