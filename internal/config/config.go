package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"yqhp/distcalc/pkg/logger"
)

// Config represents the complete configuration for distcalc.
type Config struct {
	Coordinator CoordinatorConfig `yaml:"coordinator"`
	Discovery   DiscoveryConfig   `yaml:"discovery"`
	Worker      WorkerConfig      `yaml:"worker"`
	Server      ServerConfig      `yaml:"server"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// CoordinatorConfig holds task scheduling configuration.
type CoordinatorConfig struct {
	SplitCount     int           `yaml:"split_count" env:"DC_COORDINATOR_SPLIT_COUNT"`
	AttemptTimeout time.Duration `yaml:"attempt_timeout" env:"DC_COORDINATOR_ATTEMPT_TIMEOUT"`
	RetryBackoff   time.Duration `yaml:"retry_backoff" env:"DC_COORDINATOR_RETRY_BACKOFF"`
	KillTimeout    time.Duration `yaml:"kill_timeout" env:"DC_COORDINATOR_KILL_TIMEOUT"`
}

// DiscoveryConfig holds broadcast discovery configuration.
type DiscoveryConfig struct {
	BroadcastAddress string        `yaml:"broadcast_address" env:"DC_DISCOVERY_BROADCAST_ADDRESS"`
	Window           time.Duration `yaml:"window" env:"DC_DISCOVERY_WINDOW"`
	Interval         time.Duration `yaml:"interval" env:"DC_DISCOVERY_INTERVAL"`
	TaskPort         int           `yaml:"task_port" env:"DC_DISCOVERY_TASK_PORT"`
	TTL              int           `yaml:"ttl" env:"DC_DISCOVERY_TTL"`
}

// WorkerConfig holds worker node configuration.
type WorkerConfig struct {
	TaskAddress      string `yaml:"task_address" env:"DC_WORKER_TASK_ADDRESS"`
	DiscoveryAddress string `yaml:"discovery_address" env:"DC_WORKER_DISCOVERY_ADDRESS"`
	AdvertisePort    int    `yaml:"advertise_port" env:"DC_WORKER_ADVERTISE_PORT"`
	SplitCount       int    `yaml:"split_count" env:"DC_WORKER_SPLIT_COUNT"`
	MaxConcurrent    int    `yaml:"max_concurrent" env:"DC_WORKER_MAX_CONCURRENT"`
}

// ServerConfig holds the optional HTTP status API configuration.
// An empty Address disables the API.
type ServerConfig struct {
	Address      string        `yaml:"address" env:"DC_SERVER_ADDRESS"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"DC_SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"DC_SERVER_WRITE_TIMEOUT"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `yaml:"level" env:"DC_LOG_LEVEL"`
	Format     string `yaml:"format" env:"DC_LOG_FORMAT"`
	Output     string `yaml:"output" env:"DC_LOG_OUTPUT"`
	FilePath   string `yaml:"file_path" env:"DC_LOG_FILE_PATH"`
	MaxSize    int    `yaml:"max_size" env:"DC_LOG_MAX_SIZE"`
	MaxBackups int    `yaml:"max_backups" env:"DC_LOG_MAX_BACKUPS"`
	MaxAge     int    `yaml:"max_age" env:"DC_LOG_MAX_AGE"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Coordinator: CoordinatorConfig{
			SplitCount:     10,
			AttemptTimeout: 5 * time.Second,
			RetryBackoff:   100 * time.Millisecond,
			KillTimeout:    2 * time.Second,
		},
		Discovery: DiscoveryConfig{
			BroadcastAddress: "255.255.255.255:10001",
			Window:           time.Second,
			Interval:         60 * time.Second,
			TaskPort:         10000,
			TTL:              1,
		},
		Worker: WorkerConfig{
			TaskAddress:      ":10000",
			DiscoveryAddress: ":10001",
			AdvertisePort:    0,
			SplitCount:       10,
			MaxConcurrent:    64,
		},
		Server: ServerConfig{
			Address:      "",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			Output:     "stderr",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
		},
	}
}

// LoggerConfig converts the logging section for pkg/logger.
func (c *LoggingConfig) LoggerConfig() *logger.Config {
	return &logger.Config{
		Level:      c.Level,
		Format:     c.Format,
		Output:     c.Output,
		FilePath:   c.FilePath,
		MaxSize:    c.MaxSize,
		MaxBackups: c.MaxBackups,
		MaxAge:     c.MaxAge,
	}
}

// Loader handles configuration loading from multiple sources.
type Loader struct {
	configPath string
	cmdArgs    map[string]string
	lookupEnv  func(string) string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		cmdArgs:   make(map[string]string),
		lookupEnv: os.Getenv,
	}
}

// WithConfigPath sets the path to the YAML configuration file.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithCmdArgs sets command-line arguments for configuration override.
func (l *Loader) WithCmdArgs(args map[string]string) *Loader {
	l.cmdArgs = args
	return l
}

// WithEnvLookup replaces os.Getenv, mainly for tests.
func (l *Loader) WithEnvLookup(lookup func(string) string) *Loader {
	l.lookupEnv = lookup
	return l
}

// Load loads configuration from all sources with proper precedence:
// defaults < YAML file < environment variables < command-line flags
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := l.applyEnvToStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	for key, value := range l.cmdArgs {
		if err := setConfigValue(cfg, key, value); err != nil {
			return nil, fmt.Errorf("failed to set %s: %w", key, err)
		}
	}

	return cfg, nil
}

// loadFromFile loads configuration from a YAML file.
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // File doesn't exist, use defaults
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// applyEnvToStruct recursively applies environment variables to struct fields.
func (l *Loader) applyEnvToStruct(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if field.Kind() == reflect.Struct {
			if err := l.applyEnvToStruct(field); err != nil {
				return err
			}
			continue
		}

		envTag := fieldType.Tag.Get("env")
		if envTag == "" {
			continue
		}

		envValue := l.lookupEnv(envTag)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("env %s -> %s: %w", envTag, fieldType.Name, err)
		}
	}

	return nil
}

// setConfigValue sets a configuration value by dot-notation path,
// e.g. "coordinator.attempt_timeout".
func setConfigValue(cfg *Config, path, value string) error {
	parts := strings.Split(path, ".")
	v := reflect.ValueOf(cfg).Elem()

	for i, part := range parts {
		want := strings.ReplaceAll(part, "_", "")
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, want)
		})

		if !field.IsValid() {
			return fmt.Errorf("unknown config path: %s", path)
		}

		if i == len(parts)-1 {
			return setFieldValue(field, value)
		}

		if field.Kind() != reflect.Struct {
			return fmt.Errorf("expected %s to be a section, got %s", part, field.Kind())
		}
		v = field
	}

	return nil
}

// setFieldValue sets a reflect.Value from a string value.
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return fmt.Errorf("field cannot be set")
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid float: %w", err)
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid bool: %w", err)
		}
		field.SetBool(b)

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Serialize serializes the configuration to YAML bytes.
func (c *Config) Serialize() ([]byte, error) {
	return yaml.Marshal(c)
}

// ParseConfig parses a YAML configuration from bytes on top of the defaults.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file path.
func LoadFromFile(path string) (*Config, error) {
	return NewLoader().WithConfigPath(path).Load()
}
