// Copyright © 2026 The ELPS authors

package cmd

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/luthersystems/v8bridge/diagnostic"
	"github.com/luthersystems/v8bridge/telemetry"
	"github.com/spf13/viper"
)

const (
	defaultHost           = "127.0.0.1"
	defaultPort           = 5858
	defaultRequestTimeout = 10 * time.Second
	defaultConnectTimeout = 5 * time.Second
)

// configErr holds a config file that exists but could not be read.
var configErr error

// Config is the merged flag, environment and file configuration.
type Config struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	WSURL          string        `mapstructure:"ws-url"`
	RequestTimeout time.Duration `mapstructure:"request-timeout"`
	ConnectTimeout time.Duration `mapstructure:"connect-timeout"`
	SourceRoot     string        `mapstructure:"source-root"`
	LogLevel       string        `mapstructure:"log-level"`
	LogFormat      string        `mapstructure:"log-format"`
	Telemetry      string        `mapstructure:"telemetry"`
	Color          string        `mapstructure:"color"`
}

// Addr is the debug port address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ColorMode returns the parsed color setting.
func (c *Config) ColorMode() diagnostic.ColorMode {
	mode, err := diagnostic.ParseColorMode(c.Color)
	if err != nil {
		return diagnostic.ColorAuto
	}
	return mode
}

func (c *Config) validate() error {
	if c.WSURL == "" && (c.Port <= 0 || c.Port > 65535) {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("invalid request-timeout %v", c.RequestTimeout)
	}
	if _, err := diagnostic.ParseColorMode(c.Color); err != nil {
		return err
	}
	if _, err := telemetry.ParseKind(c.Telemetry); err != nil {
		return err
	}
	return nil
}

// loadConfig decodes the viper settings.
func loadConfig(v *viper.Viper) (*Config, error) {
	if configErr != nil {
		return nil, fmt.Errorf("read config %s: %w", v.ConfigFileUsed(), configErr)
	}
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
