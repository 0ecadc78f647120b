// Package config loads the node's YAML configuration.
package config

import (
	"os"
	"time"

	"github.com/yanun0323/errors"
	"gopkg.in/yaml.v3"
)

// Config mirrors the YAML config layout.
type Config struct {
	BotID      string           `yaml:"botId"`
	Server     ServerConfig     `yaml:"server"`
	Engines    EnginesConfig    `yaml:"engines"`
	MarketData MarketDataConfig `yaml:"marketData"`
	Profiling  ProfilingConfig  `yaml:"profiling"`
}

// ServerConfig describes the coordination server connection.
type ServerConfig struct {
	Addr           string `yaml:"addr"`
	PingIntervalMS int    `yaml:"pingIntervalMs"`
}

// PingInterval returns the keepalive interval.
func (c ServerConfig) PingInterval() time.Duration {
	return time.Duration(c.PingIntervalMS) * time.Millisecond
}

// EnginesConfig assigns engines to logical CPUs and sizes their rings.
type EnginesConfig struct {
	ControlCPU    int `yaml:"controlCpu"`
	MarketDataCPU int `yaml:"marketDataCpu"`
	AuditCPU      int `yaml:"auditCpu"`
	RingSize      int `yaml:"ringSize"`
}

// MarketDataConfig selects the exchange and the markets to subscribe.
type MarketDataConfig struct {
	Exchange string   `yaml:"exchange"`
	Markets  []string `yaml:"markets"`
}

// ProfilingConfig enables continuous profiling when an address is set.
type ProfilingConfig struct {
	PyroscopeAddr string `yaml:"pyroscopeAddr"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{PingIntervalMS: 5000},
		Engines: EnginesConfig{
			ControlCPU:    0,
			MarketDataCPU: 1,
			AuditCPU:      2,
			RingSize:      1024,
		},
		MarketData: MarketDataConfig{Exchange: "ftx"},
	}
}

// Load reads path and overlays it on the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config file")
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "parse config file")
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.PingIntervalMS <= 0 {
		c.Server.PingIntervalMS = 5000
	}
	if c.Engines.RingSize <= 0 {
		c.Engines.RingSize = 1024
	}
	if c.MarketData.Exchange == "" {
		c.MarketData.Exchange = "ftx"
	}
}
