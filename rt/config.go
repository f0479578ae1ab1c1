package rt

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/BurntSushi/toml"
)

// ---------------------------------------------------------------------------
// Runtime tuning configuration
// ---------------------------------------------------------------------------
//
// Tunables load from an optional tern.toml. Everything has a working
// default; the file only overrides. Configuration should be applied before
// the runtime warms up: the global arena snapshots its chunk size on first
// use, and already-running sends keep the depth limit they started with.

// Config holds runtime tunables.
type Config struct {
	Arena      ArenaConfig      `toml:"arena"`
	Forwarding ForwardingConfig `toml:"forwarding"`
	Invocation InvocationConfig `toml:"invocation"`
}

// ArenaConfig tunes chunk sizing and debug tracking.
type ArenaConfig struct {
	ChunkSize     int  `toml:"chunk_size"`
	DebugTracking bool `toml:"debug_tracking"`
}

// ForwardingConfig bounds the forwarding pipeline.
type ForwardingConfig struct {
	MaxDepth int `toml:"max_depth"`
}

// InvocationConfig tunes invocation reuse.
type InvocationConfig struct {
	PoolSize int `toml:"pool_size"`
}

// DefaultConfig returns the built-in tuning.
func DefaultConfig() Config {
	return Config{
		Arena:      ArenaConfig{ChunkSize: minChunkSize},
		Forwarding: ForwardingConfig{MaxDepth: 32},
		Invocation: InvocationConfig{PoolSize: 256},
	}
}

func (c *Config) normalize() {
	if c.Arena.ChunkSize < minChunkSize {
		c.Arena.ChunkSize = minChunkSize
	}
	if c.Forwarding.MaxDepth <= 0 {
		c.Forwarding.MaxDepth = 32
	}
	if c.Invocation.PoolSize <= 0 {
		c.Invocation.PoolSize = 256
	}
}

// LoadConfig reads a tern.toml tuning file. A missing file is not an
// error: defaults are returned.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("rt: load config %s: %w", path, err)
	}
	cfg.normalize()
	return cfg, nil
}

var currentConfig atomic.Pointer[Config]

func init() {
	cfg := DefaultConfig()
	currentConfig.Store(&cfg)
}

// Configure installs cfg as the active tuning.
func Configure(cfg Config) {
	cfg.normalize()
	currentConfig.Store(&cfg)
}

func activeConfig() *Config {
	return currentConfig.Load()
}

// MaxForwardingDepth returns the active forwarding depth limit.
func MaxForwardingDepth() int {
	return activeConfig().Forwarding.MaxDepth
}
