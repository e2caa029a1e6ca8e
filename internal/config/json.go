package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/questsync/internal/flagx"
	"github.com/dmitrijs2005/questsync/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so JSON can specify intervals either as strings like "30s"
// or as integer nanoseconds. After parsing, values are copied into the
// runtime Config.
type JsonConfig struct {
	ReplicaDSN          string         `json:"replica_dsn"`
	CloudBaseURL        string         `json:"cloud_base_url"`
	RealtimeURL         string         `json:"realtime_url"`
	OnlineCheckInterval timex.Duration `json:"online_check_interval"`
	StaleAfter          timex.Duration `json:"stale_after"`
	GCAfter             timex.Duration `json:"gc_after"`
	GCSweepInterval     timex.Duration `json:"gc_sweep_interval"`
	PageSize            int            `json:"page_size"`
	S3Region            string         `json:"s3_region"`
	S3BaseEndpoint      string         `json:"s3_base_endpoint"`
	S3Bucket            string         `json:"s3_bucket"`
}

// parseJson overlays Config with values loaded from a JSON file. The file
// path comes from the -c/-config flags; when absent nothing is loaded.
// Zero-value fields in the file leave the existing Config value untouched,
// so a partial file only overrides what it names.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ReplicaDSN != "" {
		cfg.ReplicaDSN = jc.ReplicaDSN
	}
	if jc.CloudBaseURL != "" {
		cfg.CloudBaseURL = jc.CloudBaseURL
	}
	if jc.RealtimeURL != "" {
		cfg.RealtimeURL = jc.RealtimeURL
	}
	if jc.OnlineCheckInterval.Duration != 0 {
		cfg.OnlineCheckInterval = jc.OnlineCheckInterval.Duration
	}
	if jc.StaleAfter.Duration != 0 {
		cfg.StaleAfter = jc.StaleAfter.Duration
	}
	if jc.GCAfter.Duration != 0 {
		cfg.GCAfter = jc.GCAfter.Duration
	}
	if jc.GCSweepInterval.Duration != 0 {
		cfg.GCSweepInterval = jc.GCSweepInterval.Duration
	}
	if jc.PageSize != 0 {
		cfg.PageSize = jc.PageSize
	}
	if jc.S3Region != "" {
		cfg.S3Region = jc.S3Region
	}
	if jc.S3BaseEndpoint != "" {
		cfg.S3BaseEndpoint = jc.S3BaseEndpoint
	}
	if jc.S3Bucket != "" {
		cfg.S3Bucket = jc.S3Bucket
	}
}
