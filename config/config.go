// Package config loads the process-level defaults disruptorctl and the
// bridge use: where the directory (Redis) lives, the default arena
// size for newly created participants, and the bridge's listen
// address. The protocol core itself (package ring/bus/arena) takes no
// config — every one of its parameters is either a compile-time
// constant (spec §3) or a Join-time argument.
package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Config is the top-level shape of a disruptorctl/bridge TOML config
// file.
type Config struct {
	Redis  RedisConfig  `toml:"redis"`
	Bus    BusConfig    `toml:"bus"`
	Bridge BridgeConfig `toml:"bridge"`
}

// RedisConfig describes how to reach the directory's backing store.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// BusConfig holds defaults applied when a command doesn't override
// them explicitly.
type BusConfig struct {
	DefaultSendBufferSize int64 `toml:"default_send_buffer_size"`
}

// BridgeConfig configures the optional websocket monitoring bridge.
type BridgeConfig struct {
	Listen string `toml:"listen"`
}

// Default returns the config used when no file is present.
func Default() *Config {
	return &Config{
		Redis: RedisConfig{Addr: "127.0.0.1:6379"},
		Bus:   BusConfig{DefaultSendBufferSize: 16384},
		Bridge: BridgeConfig{
			Listen: "127.0.0.1:8765",
		},
	}
}

// Load reads a .env overlay (if present) before parsing the TOML
// config at path, so secrets like a Redis password can live outside
// the checked-in config file. A missing .env is not an error; a
// missing or malformed TOML file is.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // best-effort; no .env file is the common case

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	c := Default()
	if err := toml.Unmarshal(b, c); err != nil {
		return nil, err
	}
	if v := os.Getenv("DISRUPTION_REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	return c, nil
}
