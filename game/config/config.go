package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

var (
	ErrConfigNotFound = errors.New("configuration file not found")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

// Defaults
const (
	DefaultHost           = "localhost"
	DefaultPort           = 8080
	DefaultSocketPath     = "/ws"
	DefaultCapacity       = 2
	DefaultMaxMessageSize = 4096
	DefaultSendBuffer     = 256
)

// Config is the complete relay configuration.
type Config struct {
	Server ServerConfig `json:"server" yaml:"server"`
	Relay  RelayConfig  `json:"relay" yaml:"relay"`
	Ngrok  NgrokConfig  `json:"ngrok" yaml:"ngrok"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host           string   `json:"host" yaml:"host"`
	Port           int      `json:"port" yaml:"port"`
	SocketPath     string   `json:"socket_path" yaml:"socket_path"`
	StaticDir      string   `json:"static_dir,omitempty" yaml:"static_dir,omitempty"`
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins"`
}

// RelayConfig controls rooms and connections.
type RelayConfig struct {
	Capacity       int   `json:"capacity" yaml:"capacity"`
	MaxMessageSize int64 `json:"max_message_size" yaml:"max_message_size"`
	SendBuffer     int   `json:"send_buffer" yaml:"send_buffer"`
	Debug          bool  `json:"debug" yaml:"debug"`
}

// NgrokConfig controls the optional public tunnel.
type NgrokConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	AuthToken string `json:"auth_token,omitempty" yaml:"auth_token,omitempty"`
	Domain    string `json:"domain,omitempty" yaml:"domain,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           DefaultHost,
			Port:           DefaultPort,
			SocketPath:     DefaultSocketPath,
			AllowedOrigins: []string{"*"},
		},
		Relay: RelayConfig{
			Capacity:       DefaultCapacity,
			MaxMessageSize: DefaultMaxMessageSize,
			SendBuffer:     DefaultSendBuffer,
		},
	}
}

// Load reads path on top of the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return cfg, nil
}

// Save writes cfg to path, in YAML or JSON depending on the extension.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate reports every invalid setting, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	if errs := c.validate(); errs != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errs)
	}
	return nil
}

// Problems lists each invalid setting separately.
func (c *Config) Problems() []error {
	return multierr.Errors(c.validate())
}

func (c *Config) validate() error {
	var errs error

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = multierr.Append(errs, fmt.Errorf("server.port must be between 0 and 65535, got %d", c.Server.Port))
	}
	if !strings.HasPrefix(c.Server.SocketPath, "/") {
		errs = multierr.Append(errs, fmt.Errorf("server.socket_path must start with '/', got %q", c.Server.SocketPath))
	}
	if c.Server.StaticDir != "" {
		if info, err := os.Stat(c.Server.StaticDir); err != nil || !info.IsDir() {
			errs = multierr.Append(errs, fmt.Errorf("server.static_dir %q is not a directory", c.Server.StaticDir))
		}
	}
	if len(c.Server.AllowedOrigins) == 0 {
		errs = multierr.Append(errs, errors.New("server.allowed_origins must not be empty, use [\"*\"] to allow any origin"))
	}
	if c.Relay.Capacity < 1 {
		errs = multierr.Append(errs, fmt.Errorf("relay.capacity must be at least 1, got %d", c.Relay.Capacity))
	}
	if c.Relay.MaxMessageSize < 64 {
		errs = multierr.Append(errs, fmt.Errorf("relay.max_message_size must be at least 64 bytes, got %d", c.Relay.MaxMessageSize))
	}
	if c.Relay.SendBuffer < 1 {
		errs = multierr.Append(errs, fmt.Errorf("relay.send_buffer must be at least 1, got %d", c.Relay.SendBuffer))
	}

	return errs
}

// Addr returns the host:port listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// AllowsAnyOrigin reports whether the origin list contains "*".
func (c *Config) AllowsAnyOrigin() bool {
	for _, origin := range c.Server.AllowedOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
