package config

import (
	"os"
	"time"
)

// Config holds runtime settings for the DrinkShelf CLI.
//
// Fields:
//   - ServerURL: base URL of the DrinkShelf API.
//   - DataDir: directory holding one SQLite file per profile.
//   - Profile: name of the local profile; credentials never cross profiles.
//   - RequestTimeout: upper bound for a single API request.
//   - OnlineCheckInterval: how often the client probes server reachability.
//   - LogLevel: debug, info, warn or error.
//   - MetricsAddr: listen address of the Prometheus endpoint, empty to disable.
type Config struct {
	ServerURL           string
	DataDir             string
	Profile             string
	RequestTimeout      time.Duration
	OnlineCheckInterval time.Duration
	LogLevel            string
	MetricsAddr         string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://localhost:8000"
	c.DataDir = "data"
	c.Profile = "default"
	c.RequestTimeout = 10 * time.Second
	c.OnlineCheckInterval = 3 * time.Second
	c.LogLevel = "info"
	c.MetricsAddr = ""
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	return loadFrom(os.Args[1:])
}

func loadFrom(args []string) *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg, args)
	parseFlags(cfg, args)
	return cfg
}
