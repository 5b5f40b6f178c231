// Package config loads the peer's tunables from TOML. Relay scope and
// bounds validation are policy knobs, not constants: the same binary hosts
// with different world boxes and staleness windows per deployment.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Net   NetConfig   `toml:"net"`
	World WorldConfig `toml:"world"`
	Sync  SyncConfig  `toml:"sync"`
}

type NetConfig struct {
	// ListenAddress / ListenEndpoint configure the hosting WebSocket
	// listener.
	ListenAddress  string `toml:"listen_address"`
	ListenEndpoint string `toml:"listen_endpoint"`

	// MetricsAddress serves Prometheus metrics when non-empty.
	MetricsAddress string `toml:"metrics_address"`

	SendBufferLength   int   `toml:"send_buffer_length"`
	MaxReadMessageSize int64 `toml:"max_read_message_size"`
}

// WorldConfig is the numeric-sanity box for inbound client positions.
type WorldConfig struct {
	MinX float32 `toml:"min_x"`
	MinY float32 `toml:"min_y"`
	MaxX float32 `toml:"max_x"`
	MaxY float32 `toml:"max_y"`
}

type SyncConfig struct {
	// EntityTimeoutMillis is the staleness window before a silent remote
	// entity is evicted.
	EntityTimeoutMillis int `toml:"entity_timeout_millis"`

	// SmoothingRate is the exponential approach rate (1/s) for displayed
	// transforms.
	SmoothingRate float64 `toml:"smoothing_rate"`

	// MoveEpsilon is the minimum position delta that makes a local state
	// change worth sending.
	MoveEpsilon float32 `toml:"move_epsilon"`

	// TickRate is the driver frequency in Hz for the bundled CLI loop.
	TickRate int `toml:"tick_rate"`
}

func Default() Config {
	return Config{
		Net: NetConfig{
			ListenAddress:      ":7770",
			ListenEndpoint:     "/coop",
			SendBufferLength:   64,
			MaxReadMessageSize: 64 * 1024,
		},
		World: WorldConfig{
			MinX: -1000, MinY: -1000,
			MaxX: 1000, MaxY: 1000,
		},
		Sync: SyncConfig{
			EntityTimeoutMillis: 5000,
			SmoothingRate:       12,
			MoveEpsilon:         0.01,
			TickRate:            60,
		},
	}
}

// Load reads a TOML file over the defaults. A missing path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func Validate(cfg Config) error {
	if cfg.World.MaxX <= cfg.World.MinX || cfg.World.MaxY <= cfg.World.MinY {
		return fmt.Errorf("world bounds are inverted: min=(%v,%v) max=(%v,%v)",
			cfg.World.MinX, cfg.World.MinY, cfg.World.MaxX, cfg.World.MaxY)
	}
	if cfg.Sync.EntityTimeoutMillis <= 0 {
		return fmt.Errorf("entity_timeout_millis must be positive, got %d", cfg.Sync.EntityTimeoutMillis)
	}
	if cfg.Sync.TickRate <= 0 {
		return fmt.Errorf("tick_rate must be positive, got %d", cfg.Sync.TickRate)
	}
	return nil
}

func (s SyncConfig) EntityTimeout() time.Duration {
	return time.Duration(s.EntityTimeoutMillis) * time.Millisecond
}
