package master

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"go.uber.org/zap"

	"yqhp/distcalc/pkg/types"
)

// DiscoveryService turns probe replies into registry contents.
type DiscoveryService struct {
	registry *Registry
	prober   Prober
	taskPort int
	stats    *Stats
	logger   *zap.Logger
}

// NewDiscoveryService creates a discovery service. taskPort is used for
// replies that do not advertise a port.
func NewDiscoveryService(registry *Registry, prober Prober, taskPort int, stats *Stats, logger *zap.Logger) *DiscoveryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if stats == nil {
		stats = NewStats()
	}
	return &DiscoveryService{
		registry: registry,
		prober:   prober,
		taskPort: taskPort,
		stats:    stats,
		logger:   logger,
	}
}

// Refresh runs one discovery pass and replaces the registry with one live
// entry per reply. A pass that errors leaves the registry untouched; a pass
// that hears nothing empties it.
func (d *DiscoveryService) Refresh(ctx context.Context) (int, error) {
	replies, err := d.prober.Probe(ctx)
	if err != nil {
		d.stats.RecordDiscovery(0, err)
		d.logger.Warn("discovery pass failed, keeping current workers", zap.Error(err))
		return 0, fmt.Errorf("discovery pass: %w", err)
	}

	workers := make([]types.Worker, 0, len(replies))
	for _, reply := range replies {
		port := reply.Port
		if port == 0 {
			port = d.taskPort
		}
		workers = append(workers, types.Worker{
			Address: net.JoinHostPort(reply.IP, strconv.Itoa(port)),
			Alive:   true,
		})
	}

	d.registry.Replace(workers)
	d.stats.RecordDiscovery(len(workers), nil)
	if len(workers) == 0 {
		d.logger.Warn("discovery pass found no workers")
	} else {
		d.logger.Debug("discovery pass complete", zap.Int("workers", len(workers)))
	}

	return len(workers), nil
}
