package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SocketPool holds configuration for the socket multiplexing subsystem.
type SocketPool struct {
	// Network
	BindAddress string `yaml:"bind_address"`
	Port        int    `yaml:"port"`

	// ListenBacklog is the backlog passed to listen() for the accept
	// socket (default 128).
	ListenBacklog int `yaml:"listen_backlog"`

	// LogLevel controls the structured logger's minimum level: "debug",
	// "info", "warn", or "error".
	LogLevel string `yaml:"log_level"`
}

// DefaultSocketPool returns SocketPool config with sensible defaults.
func DefaultSocketPool() SocketPool {
	return SocketPool{
		BindAddress:   "0.0.0.0",
		Port:          7777,
		ListenBacklog: 128,
		LogLevel:      "info",
	}
}

// LoadSocketPool loads socket pool config from a YAML file.
// If the file doesn't exist, returns defaults.
func LoadSocketPool(path string) (SocketPool, error) {
	cfg := DefaultSocketPool()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}
