package config

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Environment string `envconfig:"ENV" default:"development"`

	DBConnectionString string `envconfig:"DATABASE_URL" required:"true"`

	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`

	S3URL       string `envconfig:"S3_URL" required:"true"`
	S3Bucket    string `envconfig:"S3_BUCKET" required:"true"`
	S3Region    string `envconfig:"S3_REGION" required:"true"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY" required:"true"`
	S3SecretKey string `envconfig:"S3_SECRET_KEY" required:"true"`

	// Validity window for presigned upload URLs, in seconds. The pending
	// upload ledger entry for an initiated upload expires at the same moment.
	UploadURLTTLSec int `envconfig:"UPLOAD_URL_TTL_SEC" default:"3600"`

	// Analysis pipeline settings. An empty topic disables event publishing.
	GCPProjectID  string `envconfig:"GCP_PROJECT_ID" default:""`
	AnalysisTopic string `envconfig:"ANALYSIS_TOPIC" default:""`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
