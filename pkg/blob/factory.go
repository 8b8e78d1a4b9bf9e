package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// StoreType selects the storage backend.
type StoreType string

const (
	StoreTypeFS  StoreType = "fs"
	StoreTypeS3  StoreType = "s3"
	StoreTypeGCS StoreType = "gcs"
)

// GCSConfig holds configuration for the GCS backend. It lives outside
// the gcp build tag so Config stays buildable without it.
type GCSConfig struct {
	Bucket string
	Prefix string // Optional key namespace prefix
}

// Config selects and configures a blob backend. It is resolved once, at
// construction; components never read the environment themselves.
type Config struct {
	Type StoreType
	Dir  string // fs backend root
	S3   S3Config
	GCS  GCSConfig
}

// New creates the blob store described by cfg.
func New(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Type {
	case StoreTypeFS, "":
		dir := cfg.Dir
		if dir == "" {
			dir = filepath.Join("data", "artifacts")
		}
		return NewFileStore(dir)
	case StoreTypeS3:
		if cfg.S3.Bucket == "" {
			return nil, fmt.Errorf("s3 bucket is required for s3 storage")
		}
		return NewS3Store(ctx, cfg.S3)
	case StoreTypeGCS:
		if cfg.GCS.Bucket == "" {
			return nil, fmt.Errorf("gcs bucket is required for gcs storage")
		}
		return newGCSStore(ctx, cfg.GCS)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// NewFromEnv creates a blob store from environment variables.
//
// Environment variables:
//   - POLICYFORGE_STORAGE_TYPE: "fs" (default), "s3", or "gcs"
//   - POLICYFORGE_DATA_DIR: base directory for the fs backend (default: "data")
//
// For S3:
//   - POLICYFORGE_S3_BUCKET (required)
//   - POLICYFORGE_S3_REGION or AWS_REGION (default: "us-east-1")
//   - POLICYFORGE_S3_ENDPOINT (optional, for MinIO/LocalStack)
//   - POLICYFORGE_S3_PREFIX (optional)
//
// For GCS:
//   - POLICYFORGE_GCS_BUCKET (required)
//   - POLICYFORGE_GCS_PREFIX (optional)
func NewFromEnv(ctx context.Context) (Store, error) {
	return New(ctx, ConfigFromEnv())
}

// ConfigFromEnv resolves the blob configuration from the environment.
func ConfigFromEnv() Config {
	dataDir := os.Getenv("POLICYFORGE_DATA_DIR")
	if dataDir == "" {
		dataDir = "data"
	}

	region := os.Getenv("POLICYFORGE_S3_REGION")
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	if region == "" {
		region = "us-east-1"
	}

	return Config{
		Type: StoreType(os.Getenv("POLICYFORGE_STORAGE_TYPE")),
		Dir:  filepath.Join(dataDir, "artifacts"),
		S3: S3Config{
			Bucket:   os.Getenv("POLICYFORGE_S3_BUCKET"),
			Region:   region,
			Endpoint: os.Getenv("POLICYFORGE_S3_ENDPOINT"),
			Prefix:   os.Getenv("POLICYFORGE_S3_PREFIX"),
		},
		GCS: GCSConfig{
			Bucket: os.Getenv("POLICYFORGE_GCS_BUCKET"),
			Prefix: os.Getenv("POLICYFORGE_GCS_PREFIX"),
		},
	}
}
