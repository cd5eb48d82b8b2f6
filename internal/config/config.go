// Package config holds runtime settings for the sync engine and the
// passcli tool, assembled from defaults, an optional JSON file and
// command-line flags (later sources take precedence).
package config

import "time"

// Config holds runtime settings for the engine.
//
// Fields:
//   - ServerBaseURL: base URL of the backend; the client appends pass/v1.
//   - DatabasePath: path of the local SQLite cache.
//   - SyncInterval: how often the event feed is polled.
//   - PageSize: page size for paged remote listings (vault keys, items).
//   - RetainRotations: how many superseded, unreferenced vault key
//     rotations to keep per vault; 0 keeps everything. Referenced
//     rotations are never collected regardless of this value.
type Config struct {
	ServerBaseURL   string
	DatabasePath    string
	SyncInterval    time.Duration
	PageSize        int
	RetainRotations int
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerBaseURL = "http://127.0.0.1:8080"
	c.DatabasePath = "pass.db"
	c.SyncInterval = 60 * time.Second
	c.PageSize = 50
	c.RetainRotations = 0
}

// LoadConfig constructs a Config, applies defaults, then overlays values
// from JSON (if present) and command-line flags (if present).
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
