package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xxxsen/common/logger"
)

const (
	defaultRegion            = "us-east-1"
	defaultEmbeddingModel    = "amazon.titan-embed-image-v1"
	defaultEmbeddingDim      = 1024
	defaultVideoModel        = "amazon.nova-reel-v1:0"
	defaultOutputPrefix      = "outputs"
	defaultResultFile        = "output.mp4"
	defaultDurationSeconds   = 6
	defaultFPS               = 24
	defaultWidth             = 1280
	defaultHeight            = 720
	defaultPollInterval      = 60
	defaultSourcePrefix      = "images/"
	defaultEncodedPrefix     = "encoded/"
	defaultIngestSchedule    = "*/30 * * * *"
	defaultEmbedCacheSize    = 1000
	defaultEmbedCacheTTL     = 3600
	defaultRequestsPerSecond = 2
)

type Config struct {
	LogConfig      logger.LogConfig     `json:"log_config"`
	AWS            AWSConfig            `json:"aws"`
	ParameterStore ParameterStoreConfig `json:"parameter_store"`
	ObjectStore    ObjectStoreConfig    `json:"object_store"`
	VectorStore    VectorStoreConfig    `json:"vector_store"`
	Embedding      EmbeddingConfig      `json:"embedding"`
	Captioner      CaptionerConfig      `json:"captioner"`
	Generation     GenerationConfig     `json:"generation"`
	Ingest         IngestConfig         `json:"ingest"`
	RateLimit      RateLimitConfig      `json:"rate_limit"`
}

type AWSConfig struct {
	Region          string `json:"region"`
	Profile         string `json:"profile"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	SessionToken    string `json:"session_token"`
	MaxAttempts     int    `json:"max_attempts"`
}

// ParameterStoreConfig names SSM parameters used to fill bootstrap values the
// config file leaves empty.
type ParameterStoreConfig struct {
	BucketParam   string `json:"bucket_param"`
	IndexParam    string `json:"index_param"`
	EndpointParam string `json:"endpoint_param"`
}

type ObjectStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type VectorStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type EmbeddingConfig struct {
	Provider        string `json:"provider"`
	Model           string `json:"model"`
	Dimension       int    `json:"dimension"`
	CacheSize       int    `json:"cache_size"`
	CacheTTLSeconds int64  `json:"cache_ttl_seconds"`
}

type CaptionerConfig struct {
	Model     string `json:"model"`
	MaxTokens int32  `json:"max_tokens"`
}

type GenerationConfig struct {
	Model               string `json:"model"`
	OutputPrefix        string `json:"output_prefix"`
	ResultFile          string `json:"result_file"`
	DurationSeconds     int    `json:"duration_seconds"`
	FPS                 int    `json:"fps"`
	Width               int    `json:"width"`
	Height              int    `json:"height"`
	Seed                int    `json:"seed"`
	PollIntervalSeconds int64  `json:"poll_interval_seconds"`
	MaxWaitSeconds      int64  `json:"max_wait_seconds"`
}

type IngestConfig struct {
	SourcePrefix  string `json:"source_prefix"`
	EncodedPrefix string `json:"encoded_prefix"`
	Schedule      string `json:"schedule"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `json:"requests_per_second"`
	Burst             int     `json:"burst"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() error {
	if c.LogConfig.Level == "" {
		c.LogConfig.Level = "info"
	}
	if c.AWS.Region == "" {
		c.AWS.Region = defaultRegion
	}
	if (c.AWS.AccessKeyID == "") != (c.AWS.SecretAccessKey == "") {
		return fmt.Errorf("aws.access_key_id and aws.secret_access_key must be set together")
	}
	if c.ObjectStore.Type == "" {
		c.ObjectStore.Type = "s3"
	}
	if c.VectorStore.Type == "" {
		c.VectorStore.Type = "opensearch"
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "bedrock"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = defaultEmbeddingModel
	}
	if c.Embedding.Dimension == 0 {
		c.Embedding.Dimension = defaultEmbeddingDim
	}
	switch c.Embedding.Dimension {
	case 256, 384, 1024:
	default:
		return fmt.Errorf("embedding.dimension must be one of 256, 384, 1024")
	}
	if c.Embedding.CacheSize == 0 {
		c.Embedding.CacheSize = defaultEmbedCacheSize
	}
	if c.Embedding.CacheTTLSeconds == 0 {
		c.Embedding.CacheTTLSeconds = defaultEmbedCacheTTL
	}
	if c.Captioner.MaxTokens == 0 {
		c.Captioner.MaxTokens = 256
	}
	g := &c.Generation
	if g.Model == "" {
		g.Model = defaultVideoModel
	}
	if g.OutputPrefix == "" {
		g.OutputPrefix = defaultOutputPrefix
	}
	g.OutputPrefix = strings.Trim(g.OutputPrefix, "/")
	if g.ResultFile == "" {
		g.ResultFile = defaultResultFile
	}
	if g.DurationSeconds == 0 {
		g.DurationSeconds = defaultDurationSeconds
	}
	if g.FPS == 0 {
		g.FPS = defaultFPS
	}
	if g.Width == 0 {
		g.Width = defaultWidth
	}
	if g.Height == 0 {
		g.Height = defaultHeight
	}
	if g.PollIntervalSeconds == 0 {
		g.PollIntervalSeconds = defaultPollInterval
	}
	if g.PollIntervalSeconds < 0 || g.MaxWaitSeconds < 0 {
		return fmt.Errorf("generation.poll_interval_seconds and generation.max_wait_seconds must not be negative")
	}
	if c.Ingest.SourcePrefix == "" {
		c.Ingest.SourcePrefix = defaultSourcePrefix
	}
	if c.Ingest.EncodedPrefix == "" {
		c.Ingest.EncodedPrefix = defaultEncodedPrefix
	}
	if c.Ingest.SourcePrefix == c.Ingest.EncodedPrefix {
		return fmt.Errorf("ingest.source_prefix and ingest.encoded_prefix must differ")
	}
	if c.Ingest.Schedule == "" {
		c.Ingest.Schedule = defaultIngestSchedule
	}
	if c.RateLimit.RequestsPerSecond == 0 {
		c.RateLimit.RequestsPerSecond = defaultRequestsPerSecond
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 1
	}
	return nil
}
