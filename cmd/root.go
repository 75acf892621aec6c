// Package cmd implements the distcalc command line.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"yqhp/distcalc/internal/config"
	"yqhp/distcalc/pkg/logger"
)

const (
	// Version is the current version.
	Version = "0.1.0"
	// Banner is printed by the version template and on startup.
	Banner = `
     _ _     _            _
  __| (_)___| |_ ___ __ _| | ___   distcalc %s
 / _' | / __| __/ __/ _' | |/ __|
| (_| | \__ \ || (_| (_| | | (__
 \__,_|_|___/\__\___\__,_|_|\___|
`
)

var (
	cfgFile   string
	debug     bool
	quiet     bool
	overrides []string
)

var rootCmd = &cobra.Command{
	Use:   "distcalc",
	Short: "Distributed numeric integration over a LAN",
	Long: `distcalc splits integration requests into sub-intervals and spreads them
over worker nodes found by UDP broadcast. Workers that fail are excluded and
their work is retried until every sub-interval has been computed.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress the startup banner")
	rootCmd.PersistentFlags().StringArrayVar(&overrides, "set", nil, "override a config value, e.g. --set coordinator.attempt_timeout=2s")

	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetVersionTemplate(fmt.Sprintf(Banner, Version) + "\n")
}

// GetRootCmd returns the root command (used in tests).
func GetRootCmd() *cobra.Command {
	return rootCmd
}

// loadConfig merges defaults, the config file, DC_* environment variables
// and --set overrides, then validates the result.
func loadConfig() (*config.Config, error) {
	args, err := parseOverrides(overrides)
	if err != nil {
		return nil, err
	}

	loader := config.NewLoader().WithCmdArgs(args)
	if cfgFile != "" {
		loader = loader.WithConfigPath(cfgFile)
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if debug {
		cfg.Logging.Level = "debug"
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func initLogger(cfg *config.Config) *zap.Logger {
	logger.Init(cfg.Logging.LoggerConfig())
	return logger.L()
}

// parseOverrides turns key=value pairs into a map.
func parseOverrides(pairs []string) (map[string]string, error) {
	args := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q, expected key=value", pair)
		}
		args[key] = strings.TrimSpace(value)
	}
	return args, nil
}
