// Package config resolves process configuration once, at startup, into
// explicit structs handed to constructors. Components never read the
// environment themselves.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config is the full policyforge configuration.
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Azure     AzureConfig     `yaml:"azure"`
	Cache     CacheConfig     `yaml:"cache"`
	Signing   SigningConfig   `yaml:"signing"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// StorageConfig selects and parameterizes the blob backend.
type StorageConfig struct {
	Type      string `yaml:"type"` // fs | s3 | gcs
	DataDir   string `yaml:"data_dir"`
	S3Bucket  string `yaml:"s3_bucket"`
	S3Region  string `yaml:"s3_region"`
	S3Prefix  string `yaml:"s3_prefix"`
	GCSBucket string `yaml:"gcs_bucket"`
	GCSPrefix string `yaml:"gcs_prefix"`
}

// AzureConfig holds the Azure OpenAI connection settings.
type AzureConfig struct {
	Endpoint   string `yaml:"endpoint"`
	APIKey     string `yaml:"api_key"`
	Deployment string `yaml:"deployment"`
	APIVersion string `yaml:"api_version"`
}

// CacheConfig enables the Redis read-through cache when Addr is set.
type CacheConfig struct {
	Addr string        `yaml:"addr"`
	TTL  time.Duration `yaml:"ttl"`
}

// SigningConfig enables artifact signing when Secret is non-empty. The
// secret must decode to 32 bytes of hex.
type SigningConfig struct {
	Secret string `yaml:"secret"`
}

// TelemetryConfig controls the OpenTelemetry provider.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate"`
	Insecure     bool    `yaml:"insecure"`
}

// Load reads configuration from environment variables, with defaults for
// everything optional.
func Load() *Config {
	cfg := &Config{
		Storage: StorageConfig{
			Type:      getenv("POLICYFORGE_STORAGE_TYPE", "fs"),
			DataDir:   getenv("POLICYFORGE_DATA_DIR", "./generated_functions"),
			S3Bucket:  os.Getenv("POLICYFORGE_S3_BUCKET"),
			S3Region:  os.Getenv("POLICYFORGE_S3_REGION"),
			S3Prefix:  os.Getenv("POLICYFORGE_S3_PREFIX"),
			GCSBucket: os.Getenv("POLICYFORGE_GCS_BUCKET"),
			GCSPrefix: os.Getenv("POLICYFORGE_GCS_PREFIX"),
		},
		Azure: AzureConfig{
			Endpoint:   os.Getenv("AZURE_OPENAI_ENDPOINT"),
			APIKey:     os.Getenv("AZURE_OPENAI_API_KEY"),
			Deployment: getenv("AZURE_OPENAI_DEPLOYMENT", "gpt-4"),
			APIVersion: getenv("AZURE_OPENAI_API_VERSION", "2024-02-15-preview"),
		},
		Cache: CacheConfig{
			Addr: os.Getenv("POLICYFORGE_REDIS_ADDR"),
			TTL:  5 * time.Minute,
		},
		Signing: SigningConfig{
			Secret: os.Getenv("POLICYFORGE_SIGNING_SECRET"),
		},
		Telemetry: TelemetryConfig{
			Enabled:      os.Getenv("POLICYFORGE_TELEMETRY_ENABLED") == "true",
			OTLPEndpoint: getenv("POLICYFORGE_OTLP_ENDPOINT", "localhost:4317"),
			SampleRate:   1.0,
			Insecure:     os.Getenv("POLICYFORGE_OTLP_INSECURE") == "true",
		},
	}

	if ttl := os.Getenv("POLICYFORGE_REDIS_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			cfg.Cache.TTL = d
		}
	}
	if rate := os.Getenv("POLICYFORGE_TELEMETRY_SAMPLE_RATE"); rate != "" {
		if f, err := strconv.ParseFloat(rate, 64); err == nil {
			cfg.Telemetry.SampleRate = f
		}
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
