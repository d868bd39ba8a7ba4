package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config captures the full runtime configuration for the fileslot service.
type Config struct {
	App     AppConfig
	HTTP    HTTPConfig
	Storage StorageConfig
	Index   IndexConfig
	Meili   MeiliConfig
	Kafka   KafkaConfig
	Tracing TracingConfig
	Upload  UploadConfig
	Slots   SlotConfig
}

type AppConfig struct {
	Name        string `env:"APP_NAME" envDefault:"fileslot"`
	Environment string `env:"APP_ENV" envDefault:"development"`
	Version     string `env:"APP_VERSION" envDefault:"0.1.0"`
	LogLevel    string `env:"APP_LOG_LEVEL" envDefault:"info"`
}

// HTTPConfig timeouts of zero mean no limit. Read and write timeouts span
// the whole request body, so they stay off by default for large uploads.
type HTTPConfig struct {
	Addr              string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" envDefault:"15s"`
	ReadTimeout       time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"0s"`
	WriteTimeout      time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"0s"`
	IdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
}

type StorageConfig struct {
	Provider  string `env:"STORAGE_PROVIDER" envDefault:"local"`
	Root      string `env:"STORAGE_ROOT" envDefault:"files"`
	Endpoint  string `env:"STORAGE_ENDPOINT" envDefault:"localhost:9000"`
	Region    string `env:"STORAGE_REGION" envDefault:"us-east-1"`
	Bucket    string `env:"STORAGE_BUCKET" envDefault:"fileslot"`
	AccessKey string `env:"STORAGE_ACCESS_KEY" envDefault:"minioadmin"`
	SecretKey string `env:"STORAGE_SECRET_KEY" envDefault:"minioadmin"`
	UseSSL    bool   `env:"STORAGE_USE_SSL" envDefault:"false"`
}

type IndexConfig struct {
	Provider string `env:"INDEX_PROVIDER" envDefault:"meilisearch"`
}

type MeiliConfig struct {
	Host   string `env:"MEILI_HOST" envDefault:"http://localhost:7700"`
	APIKey string `env:"MEILI_API_KEY"`
	Index  string `env:"MEILI_INDEX" envDefault:"files"`
}

type KafkaConfig struct {
	Brokers          []string      `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	IndexTopic       string        `env:"KAFKA_INDEX_TOPIC" envDefault:"fileslot.index"`
	Retries          int           `env:"KAFKA_RETRIES" envDefault:"1"`
	RequiredAcks     string        `env:"KAFKA_REQUIRED_ACKS" envDefault:"all"`
	CompressionCodec string        `env:"KAFKA_COMPRESSION_CODEC" envDefault:"snappy"`
	BatchSize        int           `env:"KAFKA_BATCH_SIZE" envDefault:"1"`
	BatchTimeout     time.Duration `env:"KAFKA_BATCH_TIMEOUT" envDefault:"10ms"`
}

type TracingConfig struct {
	Endpoint     string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Insecure     bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
	SampleRatio  float64 `env:"OTEL_TRACES_SAMPLER_RATIO" envDefault:"1.0"`
	ResourceAttr string  `env:"OTEL_RESOURCE_ATTRIBUTES" envDefault:"service.namespace=fileslot"`
}

type UploadConfig struct {
	MaxSizeBytes int64 `env:"UPLOAD_MAX_SIZE_BYTES" envDefault:"10737418240"`
	MaxTagBytes  int64 `env:"UPLOAD_MAX_TAG_BYTES" envDefault:"65536"`
	SniffContent bool  `env:"UPLOAD_SNIFF_CONTENT" envDefault:"false"`
}

type SlotConfig struct {
	AllocatedTTL  time.Duration `env:"SLOT_ALLOCATED_TTL" envDefault:"24h"`
	SweepInterval time.Duration `env:"SLOT_SWEEP_INTERVAL" envDefault:"1m"`
}

// Load parses environment variables into Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Upload.MaxSizeBytes < 0 {
		return fmt.Errorf("UPLOAD_MAX_SIZE_BYTES must not be negative")
	}
	if c.Upload.MaxTagBytes < 0 {
		return fmt.Errorf("UPLOAD_MAX_TAG_BYTES must not be negative")
	}
	if c.Slots.AllocatedTTL > 0 && c.Slots.SweepInterval <= 0 {
		return fmt.Errorf("SLOT_SWEEP_INTERVAL must be positive when SLOT_ALLOCATED_TTL is set")
	}
	return nil
}
