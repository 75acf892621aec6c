package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"yqhp/distcalc/internal/config"
	"yqhp/distcalc/internal/slave"
)

var (
	workerTaskAddress      string
	workerDiscoveryAddress string
	workerAdvertisePort    int
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Manage a worker node",
	Long:  `A worker answers discovery probes and computes partial integrals for the coordinator.`,
}

var workerStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a worker node",
	Example: `  # Default ports (tasks on 10000, probes on 10001)
  distcalc worker start

  # Second worker on the same host, announced on its own task port
  distcalc worker start --task-address :10002 --advertise-port 10002 --discovery-address :10001`,
	RunE: runWorkerStart,
}

func init() {
	rootCmd.AddCommand(workerCmd)
	workerCmd.AddCommand(workerStartCmd)

	workerStartCmd.Flags().StringVar(&workerTaskAddress, "task-address", "", "TCP listen address for tasks (overrides worker.task_address)")
	workerStartCmd.Flags().StringVar(&workerDiscoveryAddress, "discovery-address", "", "UDP listen address for probes (overrides worker.discovery_address)")
	workerStartCmd.Flags().IntVar(&workerAdvertisePort, "advertise-port", 0, "task port announced in probe replies (overrides worker.advertise_port)")
}

// newWorkerConfig maps the file config onto the worker node.
func newWorkerConfig(cfg *config.Config) *slave.Config {
	nodeCfg := slave.DefaultConfig()
	nodeCfg.TaskAddress = cfg.Worker.TaskAddress
	nodeCfg.DiscoveryAddress = cfg.Worker.DiscoveryAddress
	nodeCfg.AdvertisePort = cfg.Worker.AdvertisePort
	nodeCfg.SplitCount = cfg.Worker.SplitCount
	nodeCfg.MaxConcurrent = cfg.Worker.MaxConcurrent
	return nodeCfg
}

func runWorkerStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("task-address") {
		cfg.Worker.TaskAddress = workerTaskAddress
	}
	if cmd.Flags().Changed("discovery-address") {
		cfg.Worker.DiscoveryAddress = workerDiscoveryAddress
	}
	if cmd.Flags().Changed("advertise-port") {
		cfg.Worker.AdvertisePort = workerAdvertisePort
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log := initLogger(cfg)
	defer func() { _ = log.Sync() }()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if !quiet {
		fmt.Fprintf(cmd.ErrOrStderr(), Banner+"\n", Version)
	}

	node := slave.NewNode(newWorkerConfig(cfg), log.Named("worker"))
	if err := node.Start(ctx); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}

	<-ctx.Done()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	return node.Stop(stopCtx)
}
