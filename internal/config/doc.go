// Package config loads coordinator and worker configuration from defaults, a
// YAML file, DC_* environment variables and command-line overrides.
package config
