// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.yaml.in/yaml/v3"
)

// ConfigFilePath is the default location for the configuration file.
const ConfigFilePath = "/etc/obscore/config.yaml"

// EngineTunables holds the engine-tunable knobs SPEC_FULL §12 exposes as
// env-overridable settings. The distilled spec states these as fixed
// constants; this layer makes every one of them overridable the way
// every numeric constant in the reference config package is, without
// changing any default value.
type EngineTunables struct {
	// MinFreeDiskspaceMB is the disk-space floor below which the replay
	// buffer aborts outright (spec.md §4.5). The recorder has no
	// free-space guard of its own.
	MinFreeDiskspaceMB int64 `yaml:"min_free_diskspace_mb" koanf:"min_free_diskspace_mb"`
	// DiskSpaceWarningMB is the threshold that fires an OBS_WARNING.
	DiskSpaceWarningMB int64 `yaml:"disk_space_warning_mb" koanf:"disk_space_warning_mb"`
	// DiskSpaceResampleMB is passed to the disk-space guard as its
	// Resample threshold. Validate keeps it below DiskSpaceWarningMB, so
	// the guard never reports the Resample level and its poll interval
	// does not change.
	DiskSpaceResampleMB int64 `yaml:"disk_space_resample_mb" koanf:"disk_space_resample_mb"`

	// HandshakeTimeout bounds the named-pipe handshake (spec.md §4.1); the
	// stdio transport has no handshake.
	HandshakeTimeout time.Duration `yaml:"handshake_timeout" koanf:"handshake_timeout"`
	// ShutdownDrainTimeout bounds how long SHUTDOWN waits for pending
	// outbound channel writes to drain; outputs are force-stopped first.
	ShutdownDrainTimeout time.Duration `yaml:"shutdown_drain_timeout" koanf:"shutdown_drain_timeout"`
	// ReplayStopTimeout is the one-shot ReplayStopTimer watchdog (spec.md §4.8).
	ReplayStopTimeout time.Duration `yaml:"replay_stop_timeout" koanf:"replay_stop_timeout"`
	// ReplayCaptureStopTimeout is the replay-capture stop-protocol
	// timeout (spec.md §4.5: 60s).
	ReplayCaptureStopTimeout time.Duration `yaml:"replay_capture_stop_timeout" koanf:"replay_capture_stop_timeout"`
	// StatsTickInterval is the StatsTimer's 1Hz sampling period.
	StatsTickInterval time.Duration `yaml:"stats_tick_interval" koanf:"stats_tick_interval"`

	// StreamReconnectMaxRetries and StreamReconnectDelay are the
	// Streamer's reconnect policy (spec.md §4.6: max_retries=20,
	// retry_delay=10s).
	StreamReconnectMaxRetries int           `yaml:"stream_reconnect_max_retries" koanf:"stream_reconnect_max_retries"`
	StreamReconnectDelay      time.Duration `yaml:"stream_reconnect_delay" koanf:"stream_reconnect_delay"`
}

// DefaultEngineTunables returns the defaults named in spec.md, unchanged
// from their hardcoded values, merely made overridable.
func DefaultEngineTunables() EngineTunables {
	return EngineTunables{
		MinFreeDiskspaceMB:       50,
		DiskSpaceWarningMB:       200,
		DiskSpaceResampleMB:      100,
		HandshakeTimeout:         10 * time.Second,
		ShutdownDrainTimeout:     5 * time.Second,
		ReplayStopTimeout:        10 * time.Second,
		ReplayCaptureStopTimeout: 60 * time.Second,
		StatsTickInterval:        time.Second,
		StreamReconnectMaxRetries: 20,
		StreamReconnectDelay:      10 * time.Second,
	}
}

// Validate checks the tunables for values that would make the engine
// unusable rather than merely unconventional.
func (t *EngineTunables) Validate() error {
	if t.MinFreeDiskspaceMB <= 0 {
		return fmt.Errorf("min_free_diskspace_mb must be positive")
	}
	if t.DiskSpaceWarningMB <= t.MinFreeDiskspaceMB {
		return fmt.Errorf("disk_space_warning_mb must be greater than min_free_diskspace_mb")
	}
	if t.DiskSpaceResampleMB <= t.MinFreeDiskspaceMB || t.DiskSpaceResampleMB >= t.DiskSpaceWarningMB {
		return fmt.Errorf("disk_space_resample_mb must fall strictly between min_free_diskspace_mb and disk_space_warning_mb")
	}
	if t.HandshakeTimeout <= 0 {
		return fmt.Errorf("handshake_timeout must be positive")
	}
	if t.StatsTickInterval <= 0 {
		return fmt.Errorf("stats_tick_interval must be positive")
	}
	if t.StreamReconnectMaxRetries < 0 {
		return fmt.Errorf("stream_reconnect_max_retries must not be negative")
	}
	if t.StreamReconnectDelay <= 0 {
		return fmt.Errorf("stream_reconnect_delay must be positive")
	}
	return nil
}

// LoadConfig reads and parses the configuration file.
//
// Parameters:
//   - path: Path to YAML configuration file
//
// Returns:
//   - *EngineTunables: Parsed configuration
//   - error: if file not found, invalid YAML, or validation fails
func LoadConfig(path string) (*EngineTunables, error) {
	// #nosec G304 - Config path is from administrator-controlled configuration
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultEngineTunables()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// atomicFile abstracts file operations used by Save for testability.
type atomicFile interface {
	Write([]byte) (int, error)
	Sync() error
	Chmod(os.FileMode) error
	Close() error
	Name() string
}

// atomicCreateTemp is the injectable temp-file creator used by Save.
// Tests can replace this with a function returning a mock atomicFile.
type atomicCreateTemp func(dir, pattern string) (atomicFile, error)

func defaultCreateTemp(dir, pattern string) (atomicFile, error) {
	return os.CreateTemp(dir, pattern) // #nosec G304
}

// Save writes the configuration to a YAML file.
//
// Parameters:
//   - path: Destination file path
//
// Returns:
//   - error: if marshaling fails or file write fails
func (t *EngineTunables) Save(path string) error {
	return t.saveWith(path, defaultCreateTemp)
}

func (t *EngineTunables) saveWith(path string, createTemp atomicCreateTemp) error {
	data, err := yaml.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Atomic write: write to a temp file in the same directory, sync to disk,
	// then rename to the target path. os.Rename is atomic on most filesystems,
	// so a crash mid-write leaves either the old file or the new file, never
	// a partially-written file.
	dir := filepath.Dir(path)

	tmpFile, err := createTemp(dir, ".config.*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp config file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			_ = tmpFile.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write temp config file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp config file: %w", err)
	}
	// Config file restricted to owner+group only (least privilege).
	// #nosec G302 - Config file restricted to owner+group for security
	if err := tmpFile.Chmod(0640); err != nil {
		return fmt.Errorf("failed to set config file permissions: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp config file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil { // #nosec G703 -- path is from CLI flag/config, not web request input
		return fmt.Errorf("failed to rename temp config file: %w", err)
	}

	success = true
	return nil
}
