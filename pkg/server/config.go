package server

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

var (
	// ErrMissingPort is returned when no listening port was given
	ErrMissingPort = errors.New("missing -port argument")
	// ErrInvalidPort is returned for a port outside 1-65535
	ErrInvalidPort = errors.New("invalid port")
)

// ServerConfig holds server configuration
type ServerConfig struct {
	TCPPort     int
	HTTPPort    int // 0 disables the WebSocket/metrics/health listener
	BindAddress string
	Debug       bool
}

// DefaultConfig returns default server configuration. TCPPort has no default.
func DefaultConfig() ServerConfig {
	return ServerConfig{}
}

// TOMLConfig represents the structure of the server config file
type TOMLConfig struct {
	Server  ServerSection  `toml:"server"`
	Logging LoggingSection `toml:"logging"`
}

type ServerSection struct {
	BindAddress string `toml:"bind_address"`
	HTTPPort    int    `toml:"http_port"`
}

type LoggingSection struct {
	Debug bool `toml:"debug"`
}

// LoadConfig loads configuration from a TOML file. A missing file is an error;
// nothing is ever written back.
func LoadConfig(path string) (TOMLConfig, error) {
	path, err := expandHome(path)
	if err != nil {
		return TOMLConfig{}, err
	}

	var config TOMLConfig
	meta, err := toml.DecodeFile(path, &config)
	if err != nil {
		return TOMLConfig{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return TOMLConfig{}, fmt.Errorf("unknown config key %q in %s", undecoded[0].String(), path)
	}

	return config, nil
}

// ToServerConfig converts TOMLConfig to ServerConfig, keeping defaults for unset values
func (c *TOMLConfig) ToServerConfig() ServerConfig {
	cfg := DefaultConfig()

	if strings.TrimSpace(c.Server.BindAddress) != "" {
		cfg.BindAddress = strings.TrimSpace(c.Server.BindAddress)
	}

	if c.Server.HTTPPort != 0 {
		cfg.HTTPPort = c.Server.HTTPPort
	}

	cfg.Debug = c.Logging.Debug

	return cfg
}

// Validate checks the ports before any socket is opened
func (c ServerConfig) Validate() error {
	if c.TCPPort == 0 {
		return ErrMissingPort
	}
	if err := ValidatePort(c.TCPPort); err != nil {
		return err
	}
	if c.HTTPPort < 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("%w: http port %d", ErrInvalidPort, c.HTTPPort)
	}
	if c.HTTPPort != 0 && c.HTTPPort == c.TCPPort {
		return fmt.Errorf("%w: http port must differ from tcp port %d", ErrInvalidPort, c.TCPPort)
	}
	return nil
}

// ValidatePort checks a listening port given on the command line
func ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%w: %d (must be between 1 and 65535)", ErrInvalidPort, port)
	}
	return nil
}

func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, path[2:]), nil
}
