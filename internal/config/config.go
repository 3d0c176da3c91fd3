// Package config loads the autonomic runtime's YAML configuration:
// quota limits, resource-band reservation tables, policy defaults, and
// logging/telemetry toggles. Mirrors the teacher's internal/config
// package shape (DefaultConfig + yaml.v3 unmarshal + env overrides).
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/seanchatmangpt/autonomic-cli/internal/capability"
)

// QuotaLimits mirrors the per-axis limits of a quota bucket (spec §3/§4.5).
type QuotaLimits struct {
	RuntimeMs     uint64 `yaml:"runtime_ms"`
	MemoryBytes   uint64 `yaml:"memory_bytes"`
	IOOps         uint64 `yaml:"io_ops"`
	NetworkBytes  uint64 `yaml:"network_bytes"`
	MaxConcurrent uint64 `yaml:"max_concurrent"`
}

// ReservationEstimate is one row of the resource-band reservation table
// (spec §4.10 item 2).
type ReservationEstimate struct {
	RuntimeMs    uint64 `yaml:"runtime_ms"`
	MemoryBytes  uint64 `yaml:"memory_bytes"`
	IOOps        uint64 `yaml:"io_ops"`
	NetworkBytes uint64 `yaml:"network_bytes"`
}

// LoggingConfig toggles the categorized file logger.
type LoggingConfig struct {
	DebugMode bool   `yaml:"debug_mode"`
	Level     string `yaml:"level"`
}

// TelemetryConfig toggles the Prometheus exporter.
type TelemetryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Config holds the full runtime configuration.
type Config struct {
	AppName string `yaml:"app_name"`

	Quota       QuotaLimits                    `yaml:"quota"`
	Reservation map[string]ReservationEstimate `yaml:"reservation"`
	Logging     LoggingConfig                  `yaml:"logging"`
	Telemetry   TelemetryConfig                `yaml:"telemetry"`
}

// DefaultConfig returns production defaults matching the table in spec
// §4.10 item 2.
func DefaultConfig() *Config {
	return &Config{
		AppName: "autonomic",
		Quota: QuotaLimits{
			RuntimeMs:     60_000,
			MemoryBytes:   512 * 1024 * 1024,
			IOOps:         10_000,
			NetworkBytes:  128 * 1024 * 1024,
			MaxConcurrent: 64,
		},
		Reservation: map[string]ReservationEstimate{
			capability.Instant.String(): {RuntimeMs: 1, MemoryBytes: 1024, IOOps: 0, NetworkBytes: 0},
			capability.Fast.String():    {RuntimeMs: 10, MemoryBytes: 1024 * 1024, IOOps: 10, NetworkBytes: 0},
			capability.Medium.String():  {RuntimeMs: 250, MemoryBytes: 16 * 1024 * 1024, IOOps: 100, NetworkBytes: 1024 * 1024},
			capability.Slow.String():    {RuntimeMs: 5000, MemoryBytes: 128 * 1024 * 1024, IOOps: 1000, NetworkBytes: 16 * 1024 * 1024},
			capability.Cold.String():    {RuntimeMs: 60_000, MemoryBytes: 512 * 1024 * 1024, IOOps: 10_000, NetworkBytes: 128 * 1024 * 1024},
		},
		Logging:   LoggingConfig{DebugMode: false, Level: "info"},
		Telemetry: TelemetryConfig{Enabled: true, Addr: ":9090"},
	}
}

// Load reads a YAML config file, falling back to DefaultConfig values for
// any field the file does not set, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return applyEnvOverrides(cfg), nil
			}
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	return applyEnvOverrides(cfg), nil
}

// applyEnvOverrides honors spec §6's environment contract:
// <APP>_LOG_LEVEL as a fallback for --verbose/--quiet, and NO_COLOR to
// force color off (handled by the CLI layer, not here).
func applyEnvOverrides(cfg *Config) *Config {
	envVar := strings.ToUpper(cfg.AppName) + "_LOG_LEVEL"
	if lvl := os.Getenv(envVar); lvl != "" {
		cfg.Logging.Level = strings.ToLower(lvl)
		if cfg.Logging.Level == "debug" {
			cfg.Logging.DebugMode = true
		}
	}
	return cfg
}

// ReservationFor looks up the reservation estimate for a resource band,
// falling back to the Cold row (the most conservative) if the band is
// unrecognized — this should not happen with the closed capability.ResourceBand
// enum, but keeps the lookup total.
func (c *Config) ReservationFor(band capability.ResourceBand) ReservationEstimate {
	if est, ok := c.Reservation[band.String()]; ok {
		return est
	}
	return c.Reservation[capability.Cold.String()]
}
