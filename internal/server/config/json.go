package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/stormdrive/stormdrive/internal/flagx"
	"github.com/stormdrive/stormdrive/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// It uses timex.Duration for interval fields, which allows parsing both
// string values such as "30m" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON configuration
// files. After unmarshalling, its fields are copied into the runtime Config
// struct which uses time.Duration.
type JsonConfig struct {
	EndpointAddr     string         `json:"endpoint_addr"`
	DatabaseDSN      string         `json:"database_dsn"`
	SecretKey        string         `json:"secret_key"`
	StorageKey       string         `json:"storage_key"`
	StorageBackend   string         `json:"storage_backend"`
	StorageDir       string         `json:"storage_dir"`
	S3RootUser       string         `json:"s3_root_user"`
	S3RootPassword   string         `json:"s3_root_password"`
	S3Bucket         string         `json:"s3_bucket"`
	S3Region         string         `json:"s3_region"`
	S3BaseEndpoint   string         `json:"s3_base_endpoint"`
	ChunkSizeMin     int32          `json:"chunk_size_min"`
	ChunkSizeMax     int32          `json:"chunk_size_max"`
	ChunkSizeDefault int32          `json:"chunk_size_default"`
	SessionTTL       timex.Duration `json:"session_ttl"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance.
//
// The file path comes from the -c or -config command-line flags; if neither
// is set, no JSON file is loaded. If the file cannot be read or contains
// invalid JSON, the function panics. Zero-valued fields in the file are not
// copied, so the file only needs to name the settings it overrides.
func parseJson(config *Config) {

	// try flags
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	if c.EndpointAddr != "" {
		config.EndpointAddr = c.EndpointAddr
	}
	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.SecretKey != "" {
		config.SecretKey = c.SecretKey
	}
	if c.StorageKey != "" {
		config.StorageKey = c.StorageKey
	}
	if c.StorageBackend != "" {
		config.StorageBackend = c.StorageBackend
	}
	if c.StorageDir != "" {
		config.StorageDir = c.StorageDir
	}
	if c.S3RootUser != "" {
		config.S3RootUser = c.S3RootUser
	}
	if c.S3RootPassword != "" {
		config.S3RootPassword = c.S3RootPassword
	}
	if c.S3Bucket != "" {
		config.S3Bucket = c.S3Bucket
	}
	if c.S3Region != "" {
		config.S3Region = c.S3Region
	}
	if c.S3BaseEndpoint != "" {
		config.S3BaseEndpoint = c.S3BaseEndpoint
	}
	if c.ChunkSizeMin > 0 {
		config.ChunkSizeMin = c.ChunkSizeMin
	}
	if c.ChunkSizeMax > 0 {
		config.ChunkSizeMax = c.ChunkSizeMax
	}
	if c.ChunkSizeDefault > 0 {
		config.ChunkSizeDefault = c.ChunkSizeDefault
	}
	if c.SessionTTL.Duration > 0 {
		config.SessionTTL = time.Duration(c.SessionTTL.Duration)
	}
}
