package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"yqhp/distcalc/api/rest"
	"yqhp/distcalc/internal/command"
	"yqhp/distcalc/internal/config"
	"yqhp/distcalc/internal/master"
	"yqhp/distcalc/internal/transport"
)

var (
	coordinatorInput  string
	coordinatorOutput string
	coordinatorAPI    string
	coordinatorServe  bool
)

var coordinatorCmd = &cobra.Command{
	Use:   "coordinator",
	Short: "Manage the coordinator node",
	Long:  `The coordinator discovers workers, splits integration requests and aggregates the results.`,
}

var coordinatorRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a command stream through the coordinator",
	Long: `Discover workers, then read commands one per line and execute them in order:

  <lower> <upper>          integrate x^3 over [lower, upper] and print the result
  DIE <count> <seconds>    send a kill directive to <count> live workers

Blank lines and lines starting with '#' are ignored; malformed lines are
logged and skipped.`,
	Example: `  # Read commands from stdin, print results to stdout
  echo "0 10" | distcalc coordinator run

  # Read and write files
  distcalc coordinator run --input test.txt --output result.txt

  # Also expose the status API and keep serving after the input ends
  distcalc coordinator run --input test.txt --api :8080 --serve`,
	RunE: runCoordinator,
}

func init() {
	rootCmd.AddCommand(coordinatorCmd)
	coordinatorCmd.AddCommand(coordinatorRunCmd)

	coordinatorRunCmd.Flags().StringVarP(&coordinatorInput, "input", "i", "-", "command file, - for stdin")
	coordinatorRunCmd.Flags().StringVarP(&coordinatorOutput, "output", "o", "-", "result file, - for stdout")
	coordinatorRunCmd.Flags().StringVar(&coordinatorAPI, "api", "", "status API listen address (overrides server.address)")
	coordinatorRunCmd.Flags().BoolVar(&coordinatorServe, "serve", false, "keep running after the input is exhausted")
}

// newCoordinatorConfig maps the file config onto the coordinator.
func newCoordinatorConfig(cfg *config.Config) *master.Config {
	return &master.Config{
		Scheduler: master.SchedulerConfig{
			SplitCount:     cfg.Coordinator.SplitCount,
			AttemptTimeout: cfg.Coordinator.AttemptTimeout,
			RetryBackoff:   cfg.Coordinator.RetryBackoff,
		},
		DiscoveryInterval: cfg.Discovery.Interval,
		TaskPort:          cfg.Discovery.TaskPort,
		KillTimeout:       cfg.Coordinator.KillTimeout,
	}
}

func newCoordinator(cfg *config.Config, log *zap.Logger) *master.IntegrationCoordinator {
	prober := &transport.Prober{
		Address: cfg.Discovery.BroadcastAddress,
		Window:  cfg.Discovery.Window,
		TTL:     cfg.Discovery.TTL,
	}
	client := transport.NewClient(cfg.Coordinator.AttemptTimeout)

	return master.NewIntegrationCoordinator(newCoordinatorConfig(cfg), prober, client, master.WithLogger(log))
}

func runCoordinator(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("api") {
		cfg.Server.Address = coordinatorAPI
	}

	log := initLogger(cfg)
	defer func() { _ = log.Sync() }()

	in, closeIn, err := openInput(cmd, coordinatorInput)
	if err != nil {
		return err
	}
	defer closeIn()

	out, closeOut, err := openOutput(cmd, coordinatorOutput)
	if err != nil {
		return err
	}
	defer closeOut()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			log.Info("shutting down coordinator")
			cancel()
		case <-ctx.Done():
		}
	}()

	if !quiet {
		fmt.Fprintf(cmd.ErrOrStderr(), Banner+"\n", Version)
	}

	coordinator := newCoordinator(cfg, log.Named("coordinator"))
	go logRegistryEvents(ctx, coordinator.Registry(), log.Named("registry"))

	if err := coordinator.Start(ctx); err != nil {
		return fmt.Errorf("start coordinator: %w", err)
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		_ = coordinator.Stop(stopCtx)
	}()

	apiErr := make(chan error, 1)
	if cfg.Server.Address != "" {
		server := rest.NewServer(coordinator, &rest.Config{
			Address:      cfg.Server.Address,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}, log.Named("api"))
		go func() {
			apiErr <- server.StartWithContext(ctx)
		}()
		log.Info("status API listening", zap.String("address", cfg.Server.Address))
	}

	summary, err := command.NewRunner(coordinator, out, log.Named("runner")).Run(ctx, in)
	if err != nil && ctx.Err() == nil {
		return err
	}
	log.Info("command stream finished",
		zap.Int("integrations", summary.Integrations),
		zap.Int("kills", summary.Kills),
		zap.Int("skipped", summary.Skipped),
	)

	if coordinatorServe && ctx.Err() == nil {
		select {
		case <-ctx.Done():
		case err := <-apiErr:
			if err != nil {
				return fmt.Errorf("status API: %w", err)
			}
		}
	}
	return nil
}

func logRegistryEvents(ctx context.Context, registry *master.Registry, log *zap.Logger) {
	for event := range registry.Watch(ctx) {
		log.Debug("registry event",
			zap.String("type", string(event.Type)),
			zap.Uint64("generation", event.Generation),
			zap.Int("index", event.Index),
			zap.String("worker", event.Worker.Address),
			zap.Int("count", event.Count),
		)
	}
}

func openInput(cmd *cobra.Command, path string) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open input: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

func openOutput(cmd *cobra.Command, path string) (io.Writer, func(), error) {
	if path == "" || path == "-" {
		return cmd.OutOrStdout(), func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}
