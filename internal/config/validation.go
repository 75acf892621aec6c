package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates configuration values.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

func (v *Validator) addError(field, message string) {
	v.errors = append(v.errors, ValidationError{Field: field, Message: message})
}

// Validate validates the entire configuration and returns any errors.
func (v *Validator) Validate(cfg *Config) error {
	v.errors = make(ValidationErrors, 0)

	v.validateCoordinatorConfig(&cfg.Coordinator)
	v.validateDiscoveryConfig(&cfg.Discovery)
	v.validateWorkerConfig(&cfg.Worker)
	v.validateServerConfig(&cfg.Server)
	v.validateLoggingConfig(&cfg.Logging)

	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

// Validate is a shortcut for NewValidator().Validate(cfg).
func Validate(cfg *Config) error {
	return NewValidator().Validate(cfg)
}

func (v *Validator) validateCoordinatorConfig(cfg *CoordinatorConfig) {
	if cfg.SplitCount <= 0 {
		v.addError("coordinator.split_count", "split count must be positive")
	}
	if cfg.AttemptTimeout <= 0 {
		v.addError("coordinator.attempt_timeout", "attempt timeout must be positive")
	}
	if cfg.RetryBackoff < 0 {
		v.addError("coordinator.retry_backoff", "retry backoff must be non-negative")
	}
	if cfg.KillTimeout <= 0 {
		v.addError("coordinator.kill_timeout", "kill timeout must be positive")
	}
}

func (v *Validator) validateDiscoveryConfig(cfg *DiscoveryConfig) {
	if cfg.BroadcastAddress == "" {
		v.addError("discovery.broadcast_address", "broadcast address is required")
	} else if !isValidAddress(cfg.BroadcastAddress) {
		v.addError("discovery.broadcast_address", "invalid address format, expected host:port")
	}
	if cfg.Window <= 0 {
		v.addError("discovery.window", "discovery window must be positive")
	}
	if cfg.Interval <= 0 {
		v.addError("discovery.interval", "discovery interval must be positive")
	}
	if cfg.Interval > 0 && cfg.Window > 0 && cfg.Interval <= cfg.Window {
		v.addError("discovery.interval", "discovery interval should be greater than the window")
	}
	if !isValidPort(cfg.TaskPort) {
		v.addError("discovery.task_port", "task port must be between 1 and 65535")
	}
	if cfg.TTL < 0 || cfg.TTL > 255 {
		v.addError("discovery.ttl", "ttl must be between 0 and 255")
	}
}

func (v *Validator) validateWorkerConfig(cfg *WorkerConfig) {
	if !isValidAddress(cfg.TaskAddress) {
		v.addError("worker.task_address", "invalid address format, expected host:port or :port")
	}
	if !isValidAddress(cfg.DiscoveryAddress) {
		v.addError("worker.discovery_address", "invalid address format, expected host:port or :port")
	}
	if cfg.AdvertisePort != 0 && !isValidPort(cfg.AdvertisePort) {
		v.addError("worker.advertise_port", "advertise port must be 0 or between 1 and 65535")
	}
	if cfg.SplitCount <= 0 {
		v.addError("worker.split_count", "split count must be positive")
	}
	if cfg.MaxConcurrent <= 0 {
		v.addError("worker.max_concurrent", "max concurrent must be positive")
	}
}

func (v *Validator) validateServerConfig(cfg *ServerConfig) {
	if cfg.Address != "" && !isValidAddress(cfg.Address) {
		v.addError("server.address", "invalid address format, expected host:port or :port")
	}
	if cfg.ReadTimeout < 0 {
		v.addError("server.read_timeout", "read timeout must be non-negative")
	}
	if cfg.WriteTimeout < 0 {
		v.addError("server.write_timeout", "write timeout must be non-negative")
	}
}

func (v *Validator) validateLoggingConfig(cfg *LoggingConfig) {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(cfg.Level)] {
		v.addError("logging.level", fmt.Sprintf("invalid log level '%s', must be one of: debug, info, warn, error", cfg.Level))
	}

	validFormats := map[string]bool{
		"json":    true,
		"console": true,
	}
	if !validFormats[cfg.Format] {
		v.addError("logging.format", fmt.Sprintf("invalid log format '%s', must be one of: json, console", cfg.Format))
	}

	validOutputs := map[string]bool{
		"stdout": true,
		"stderr": true,
		"file":   true,
		"both":   true,
	}
	if !validOutputs[cfg.Output] {
		v.addError("logging.output", fmt.Sprintf("invalid log output '%s', must be one of: stdout, stderr, file, both", cfg.Output))
	}
	if (cfg.Output == "file" || cfg.Output == "both") && cfg.FilePath == "" {
		v.addError("logging.file_path", "file path is required for file output")
	}
}

// isValidAddress accepts host:port and :port.
func isValidAddress(addr string) bool {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if strings.ContainsAny(host, " \t") {
		return false
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	// Port 0 lets the OS pick, which is useful for listeners.
	return p >= 0 && p <= 65535
}

func isValidPort(port int) bool {
	return port > 0 && port <= 65535
}
