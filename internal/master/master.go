package master

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"yqhp/distcalc/pkg/types"
)

// Config holds the configuration for a coordinator.
type Config struct {
	// ID is the unique identifier for this coordinator, used in logs.
	ID string

	Scheduler SchedulerConfig

	// DiscoveryInterval is the period of background discovery passes.
	// Zero disables them; Start still runs the initial pass.
	DiscoveryInterval time.Duration

	// TaskPort is assumed for workers that do not advertise a port.
	TaskPort int

	// KillTimeout bounds the delivery of one kill directive.
	KillTimeout time.Duration
}

// DefaultConfig returns a default coordinator configuration.
func DefaultConfig() *Config {
	return &Config{
		ID: uuid.New().String(),
		Scheduler: SchedulerConfig{
			SplitCount:     10,
			AttemptTimeout: DefaultAttemptTimeout,
			RetryBackoff:   100 * time.Millisecond,
		},
		DiscoveryInterval: 60 * time.Second,
		TaskPort:          10000,
		KillTimeout:       2 * time.Second,
	}
}

// CoordinatorState represents the lifecycle state of the coordinator.
type CoordinatorState string

const (
	// CoordinatorStateStarting indicates the initial discovery pass is running.
	CoordinatorStateStarting CoordinatorState = "starting"
	// CoordinatorStateRunning indicates background discovery is scheduled.
	CoordinatorStateRunning CoordinatorState = "running"
	// CoordinatorStateStopping indicates the coordinator is shutting down.
	CoordinatorStateStopping CoordinatorState = "stopping"
	// CoordinatorStateStopped indicates the coordinator is stopped.
	CoordinatorStateStopped CoordinatorState = "stopped"
)

// Option configures an IntegrationCoordinator.
type Option func(*IntegrationCoordinator)

// WithBalancer replaces the default random balancer.
func WithBalancer(b Balancer) Option {
	return func(c *IntegrationCoordinator) {
		c.balancer = b
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *IntegrationCoordinator) {
		c.logger = logger
	}
}

// IntegrationCoordinator implements Coordinator.
type IntegrationCoordinator struct {
	config *Config

	registry  *Registry
	balancer  Balancer
	discovery *DiscoveryService
	scheduler *TaskScheduler
	injector  *FaultInjector
	stats     *Stats

	// Background discovery
	cron      gocron.Scheduler
	runCtx    context.Context
	runCancel context.CancelFunc

	state    atomic.Value // CoordinatorState
	started  atomic.Bool
	stopOnce sync.Once

	mu     sync.Mutex
	logger *zap.Logger
}

// NewIntegrationCoordinator wires a coordinator from its collaborators.
// ExecuteTask and Kill work without Start, against whatever the registry
// holds.
func NewIntegrationCoordinator(config *Config, prober Prober, sender TaskSender, opts ...Option) *IntegrationCoordinator {
	if config == nil {
		config = DefaultConfig()
	}
	if config.ID == "" {
		config.ID = uuid.New().String()
	}

	c := &IntegrationCoordinator{
		config: config,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.balancer == nil {
		c.balancer = NewRandomBalancer()
	}
	c.logger = c.logger.With(zap.String("coordinator_id", config.ID))

	c.stats = NewStats()
	c.registry = NewRegistry(c.logger.Named("registry"))
	c.discovery = NewDiscoveryService(c.registry, prober, config.TaskPort, c.stats, c.logger.Named("discovery"))
	c.scheduler = NewTaskScheduler(config.Scheduler, c.registry, c.balancer, sender, c.stats, c.logger.Named("scheduler"))
	c.injector = NewFaultInjector(c.registry, sender, config.KillTimeout, c.stats, c.logger.Named("killer"))

	c.state.Store(CoordinatorStateStopped)

	return c
}

// Start runs one discovery pass synchronously and then schedules a pass every
// DiscoveryInterval. A failed initial pass is logged and leaves the registry
// empty; it does not fail Start.
func (c *IntegrationCoordinator) Start(ctx context.Context) error {
	if c.started.Load() {
		return fmt.Errorf("coordinator already started")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.Store(CoordinatorStateStarting)
	c.runCtx, c.runCancel = context.WithCancel(context.Background())

	if _, err := c.discovery.Refresh(ctx); err != nil {
		c.logger.Warn("initial discovery failed", zap.Error(err))
	}

	if c.config.DiscoveryInterval > 0 {
		cron, err := gocron.NewScheduler()
		if err != nil {
			c.runCancel()
			c.state.Store(CoordinatorStateStopped)
			return fmt.Errorf("create discovery scheduler: %w", err)
		}
		_, err = cron.NewJob(
			gocron.DurationJob(c.config.DiscoveryInterval),
			gocron.NewTask(c.backgroundRefresh),
			gocron.WithName("discovery"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			c.runCancel()
			_ = cron.Shutdown()
			c.state.Store(CoordinatorStateStopped)
			return fmt.Errorf("schedule discovery: %w", err)
		}
		cron.Start()
		c.cron = cron
	}

	c.state.Store(CoordinatorStateRunning)
	c.started.Store(true)

	c.logger.Info("coordinator started",
		zap.Int("workers", c.registry.Len()),
		zap.Duration("discovery_interval", c.config.DiscoveryInterval),
	)

	return nil
}

// Stop cancels background discovery and waits for an in-flight pass to end.
func (c *IntegrationCoordinator) Stop(ctx context.Context) error {
	var err error
	c.stopOnce.Do(func() {
		c.state.Store(CoordinatorStateStopping)

		c.mu.Lock()
		defer c.mu.Unlock()

		if c.runCancel != nil {
			c.runCancel()
		}
		if c.cron != nil {
			if shutdownErr := c.cron.Shutdown(); shutdownErr != nil {
				err = fmt.Errorf("stop discovery scheduler: %w", shutdownErr)
			}
		}

		c.state.Store(CoordinatorStateStopped)
		c.logger.Info("coordinator stopped")
	})
	return err
}

func (c *IntegrationCoordinator) backgroundRefresh() {
	if c.runCtx.Err() != nil {
		return
	}
	_, _ = c.discovery.Refresh(c.runCtx)
}

// ExecuteTask implements Coordinator.
func (c *IntegrationCoordinator) ExecuteTask(ctx context.Context, lower, upper float64) (float64, error) {
	start := time.Now()
	value, err := c.scheduler.ExecuteTask(ctx, lower, upper)
	if err != nil {
		return 0, err
	}
	c.logger.Info("integration complete",
		zap.Float64("lower", lower),
		zap.Float64("upper", upper),
		zap.Float64("result", value),
		zap.Duration("elapsed", time.Since(start)),
	)
	return value, nil
}

// Kill implements Coordinator.
func (c *IntegrationCoordinator) Kill(ctx context.Context, count, sleepSeconds int) (int, error) {
	return c.injector.Kill(ctx, count, sleepSeconds)
}

// Refresh implements Coordinator.
func (c *IntegrationCoordinator) Refresh(ctx context.Context) (int, error) {
	return c.discovery.Refresh(ctx)
}

// Workers implements Coordinator.
func (c *IntegrationCoordinator) Workers() []types.Worker {
	return c.registry.Snapshot().Workers
}

// Stats implements Coordinator.
func (c *IntegrationCoordinator) Stats() StatsSnapshot {
	return c.stats.Snapshot()
}

// Registry exposes the worker registry.
func (c *IntegrationCoordinator) Registry() *Registry {
	return c.registry
}

// GetState returns the lifecycle state.
func (c *IntegrationCoordinator) GetState() CoordinatorState {
	return c.state.Load().(CoordinatorState)
}

// GetID returns the coordinator ID.
func (c *IntegrationCoordinator) GetID() string {
	return c.config.ID
}

var _ Coordinator = (*IntegrationCoordinator)(nil)
