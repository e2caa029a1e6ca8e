// Package config loads runtime settings for the questsync client. Values are
// resolved in three layers, later layers overriding earlier ones:
// built-in defaults, a JSON config file (-c/-config), then command-line flags.
// S3 credentials additionally honor environment variables so they never have
// to live in a config file.
package config

import (
	"os"
	"time"

	"github.com/dmitrijs2005/questsync/internal/common"
)

// Config holds runtime settings for the questsync data layer.
type Config struct {
	// ReplicaDSN is the sqlite DSN of the on-device replica.
	ReplicaDSN string

	// CloudBaseURL is the base URL of the authoritative REST backend.
	CloudBaseURL string

	// RealtimeURL is the websocket endpoint delivering change events.
	RealtimeURL string

	// OnlineCheckInterval is how often the client probes backend reachability.
	OnlineCheckInterval time.Duration

	// StaleAfter is how long a cache entry is served without refetching.
	StaleAfter time.Duration

	// GCAfter is how long an unused cache entry survives before eviction.
	GCAfter time.Duration

	// GCSweepInterval is how often the cache janitor runs.
	GCSweepInterval time.Duration

	// PageSize is the page length for paginated queries.
	PageSize int

	// S3 settings for attachment verification.
	S3Region       string
	S3BaseEndpoint string
	S3Bucket       string
	S3AccessKey    string
	S3SecretKey    string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ReplicaDSN = "questsync.db"
	c.CloudBaseURL = "http://127.0.0.1:8080"
	c.RealtimeURL = "ws://127.0.0.1:8080/realtime"
	c.OnlineCheckInterval = 3 * time.Second
	c.StaleAfter = 30 * time.Second
	c.GCAfter = 8 * time.Minute
	c.GCSweepInterval = time.Minute
	c.PageSize = common.DefaultPageSize
	c.S3Region = "us-east-1"
	c.S3Bucket = "attachments"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present), command-line flags (if present), and the environment.
// Later sources take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	parseEnv(cfg)
	return cfg
}

// parseEnv overlays S3 credentials from the environment.
func parseEnv(cfg *Config) {
	if v, ok := os.LookupEnv("QUESTSYNC_S3_ACCESS_KEY"); ok {
		cfg.S3AccessKey = v
	}
	if v, ok := os.LookupEnv("QUESTSYNC_S3_SECRET_KEY"); ok {
		cfg.S3SecretKey = v
	}
}
