package master

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// FaultInjector sends kill directives to live workers.
type FaultInjector struct {
	registry *Registry
	sender   TaskSender
	timeout  time.Duration
	stats    *Stats
	logger   *zap.Logger
}

// NewFaultInjector creates a fault injector. timeout bounds each delivery.
func NewFaultInjector(registry *Registry, sender TaskSender, timeout time.Duration, stats *Stats, logger *zap.Logger) *FaultInjector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if stats == nil {
		stats = NewStats()
	}
	return &FaultInjector{
		registry: registry,
		sender:   sender,
		timeout:  timeout,
		stats:    stats,
		logger:   logger,
	}
}

// Kill walks the live workers in registry order and sends a kill directive
// until count of them have accepted one. Unreachable workers are skipped and
// not counted. The registry itself is not modified. It returns how many
// directives were delivered.
func (k *FaultInjector) Kill(ctx context.Context, count, sleepSeconds int) (int, error) {
	if count <= 0 {
		return 0, nil
	}

	killed := 0
	for _, worker := range k.registry.Live() {
		if killed >= count {
			break
		}
		if err := ctx.Err(); err != nil {
			k.stats.RecordKills(killed)
			return killed, err
		}

		if err := k.send(ctx, worker.Address, sleepSeconds); err != nil {
			k.logger.Debug("kill directive not delivered",
				zap.String("worker", worker.Address),
				zap.Error(err),
			)
			continue
		}
		killed++
		k.logger.Info("kill directive sent",
			zap.String("worker", worker.Address),
			zap.Int("sleep_seconds", sleepSeconds),
		)
	}

	k.stats.RecordKills(killed)
	return killed, nil
}

func (k *FaultInjector) send(ctx context.Context, addr string, sleepSeconds int) error {
	if k.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, k.timeout)
		defer cancel()
	}
	return k.sender.SendKill(ctx, addr, sleepSeconds)
}
