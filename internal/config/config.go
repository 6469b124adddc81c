package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"gopkg.in/yaml.v3"
)

// Roles accepted by Validate.
const (
	RoleWorker    = "worker"
	RoleIndexer   = "indexer" // a worker process that runs index_weaviate
	RoleObserver  = "observer"
	RoleServe     = "serve"
	RoleBootstrap = "bootstrap"
	RoleRedrive   = "redrive"
)

type Config struct {
	LogLevel string
	Server   ServerConfig
	Broker   BrokerConfig
	Storage  StorageConfig
	MinIO    MinIOConfig
	S3       S3Config
	Worker   WorkerConfig
	Pipeline PipelineConfig
	Index    IndexConfig
	Lineage  LineageConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type BrokerConfig struct {
	URL        string // BROKER_URL, redis:// or valkey:// URL
	Addr       string // VALKEY_ADDR, used when URL is empty
	Password   string
	Group      string
	ConsumerID string
}

type StorageConfig struct {
	Backend string // minio | s3
	Bucket  string
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

type S3Config struct {
	Region    string
	Endpoint  string // for MinIO/LocalStack compatibility
	AccessKey string
	SecretKey string
}

type WorkerConfig struct {
	PollInterval     time.Duration
	PopTimeout       time.Duration
	FallbackInterval time.Duration
}

type PipelineConfig struct {
	ScanExtensions     []string
	SourceType         string
	SecurityClearance  string
	ChunkTargetSize    int
	EmbeddingDimension int
	QueueNames         map[string]string
}

type IndexConfig struct {
	Backend     string // weaviate | pgvector
	WeaviateURL string
	PGVectorDSN string
}

type LineageConfig struct {
	URL           string
	Namespace     string
	Producer      string
	Timeout       time.Duration
	Workers       int
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string
}

// Overlay is the optional YAML file named by DOCPIPE_CONFIG.
type Overlay struct {
	Queues            map[string]string `yaml:"queues"`
	ScanExtensions    []string          `yaml:"scan_extensions"`
	SourceType        string            `yaml:"source_type"`
	SecurityClearance string            `yaml:"security_clearance"`
}

func Load() (*Config, error) {
	cfg := &Config{
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:  time.Duration(getEnvInt("SERVER_READ_TIMEOUT_SECS", 30)) * time.Second,
			WriteTimeout: time.Duration(getEnvInt("SERVER_WRITE_TIMEOUT_SECS", 60)) * time.Second,
		},
		Broker: BrokerConfig{
			URL:        getEnv("BROKER_URL", getEnv("REDIS_URL", "")),
			Addr:       getEnv("VALKEY_ADDR", "localhost:6379"),
			Password:   getEnv("VALKEY_PASSWORD", ""),
			Group:      getEnv("BROKER_GROUP", "docpipe-workers"),
			ConsumerID: getEnv("WORKER_CONSUMER_ID", defaultConsumerID()),
		},
		Storage: StorageConfig{
			Backend: getEnv("STORAGE_BACKEND", "minio"),
			Bucket:  getEnv("STORAGE_BUCKET", getEnv("S3_BUCKET", "")),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		S3: S3Config{
			Region:    getEnv("AWS_REGION", "us-east-1"),
			Endpoint:  getEnv("S3_ENDPOINT", ""),
			AccessKey: getEnv("S3_ACCESS_KEY", ""),
			SecretKey: getEnv("S3_SECRET_KEY", ""),
		},
		Worker: WorkerConfig{
			PollInterval:     time.Duration(getEnvInt("WORKER_POLL_INTERVAL_SECS", 30)) * time.Second,
			PopTimeout:       time.Duration(getEnvInt("QUEUE_POP_TIMEOUT_SECS", 1)) * time.Second,
			FallbackInterval: time.Duration(getEnvInt("WORKER_FALLBACK_INTERVAL_SECS", 30)) * time.Second,
		},
		Pipeline: PipelineConfig{
			ScanExtensions:     getEnvList("SCAN_EXTENSIONS", []string{".html", ".htm"}),
			SourceType:         getEnv("SOURCE_TYPE", "html"),
			SecurityClearance:  getEnv("SECURITY_CLEARANCE", "internal"),
			ChunkTargetSize:    getEnvInt("CHUNK_TARGET_SIZE", 700),
			EmbeddingDimension: getEnvInt("EMBEDDING_DIMENSION", 32),
		},
		Index: IndexConfig{
			Backend:     getEnv("INDEX_BACKEND", "weaviate"),
			WeaviateURL: getEnv("WEAVIATE_URL", ""),
			PGVectorDSN: getEnv("PGVECTOR_DSN", ""),
		},
		Lineage: LineageConfig{
			URL:           getEnv("LINEAGE_URL", ""),
			Namespace:     getEnv("LINEAGE_NAMESPACE", "docpipe"),
			Producer:      getEnv("LINEAGE_PRODUCER", "https://github.com/maraichr/docpipe"),
			Timeout:       time.Duration(getEnvInt("LINEAGE_TIMEOUT_SECS", 5)) * time.Second,
			Workers:       getEnvInt("LINEAGE_WORKERS", 4),
			Neo4jURI:      getEnv("LINEAGE_NEO4J_URI", ""),
			Neo4jUser:     getEnv("LINEAGE_NEO4J_USER", "neo4j"),
			Neo4jPassword: getEnv("LINEAGE_NEO4J_PASSWORD", ""),
		},
	}

	if path := os.Getenv("DOCPIPE_CONFIG"); path != "" {
		if err := cfg.applyOverlayFile(path); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func (c *Config) applyOverlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config overlay: %w", err)
	}
	var o Overlay
	if err := yaml.Unmarshal(data, &o); err != nil {
		return fmt.Errorf("parse config overlay %s: %w", path, err)
	}
	c.ApplyOverlay(o)
	return nil
}

// ApplyOverlay copies the non-empty overlay settings onto c.
func (c *Config) ApplyOverlay(o Overlay) {
	if len(o.Queues) > 0 {
		c.Pipeline.QueueNames = o.Queues
	}
	if len(o.ScanExtensions) > 0 {
		c.Pipeline.ScanExtensions = normalizeExtensions(o.ScanExtensions)
	}
	if o.SourceType != "" {
		c.Pipeline.SourceType = o.SourceType
	}
	if o.SecurityClearance != "" {
		c.Pipeline.SecurityClearance = o.SecurityClearance
	}
}

// Validate checks the settings role needs and reports every problem at once.
func (c *Config) Validate(role string) error {
	var errs []error
	if c.Storage.Bucket == "" {
		errs = append(errs, errors.New("STORAGE_BUCKET is not configured"))
	}
	switch c.Storage.Backend {
	case "minio":
		if c.MinIO.Endpoint == "" {
			errs = append(errs, errors.New("MINIO_ENDPOINT is not configured"))
		}
	case "s3":
	default:
		errs = append(errs, fmt.Errorf("STORAGE_BACKEND %q must be minio or s3", c.Storage.Backend))
	}

	worker := role == RoleWorker || role == RoleIndexer
	needsBroker := worker || role == RoleObserver || role == RoleServe || role == RoleRedrive
	if needsBroker && c.Broker.URL == "" && c.Broker.Addr == "" {
		errs = append(errs, errors.New("BROKER_URL or VALKEY_ADDR is not configured"))
	}

	if worker {
		if c.Worker.PollInterval <= 0 {
			errs = append(errs, errors.New("WORKER_POLL_INTERVAL_SECS must be greater than zero"))
		}
		if c.Worker.PopTimeout <= 0 {
			errs = append(errs, errors.New("QUEUE_POP_TIMEOUT_SECS must be greater than zero"))
		}
		if c.Pipeline.ChunkTargetSize <= 0 {
			errs = append(errs, errors.New("CHUNK_TARGET_SIZE must be greater than zero"))
		}
		if c.Pipeline.EmbeddingDimension <= 0 {
			errs = append(errs, errors.New("EMBEDDING_DIMENSION must be greater than zero"))
		}
	}

	if role == RoleIndexer || role == RoleBootstrap {
		switch c.Index.Backend {
		case "weaviate":
			if role == RoleIndexer && c.Index.WeaviateURL == "" {
				errs = append(errs, errors.New("WEAVIATE_URL is not configured"))
			}
		case "pgvector":
			if c.Index.PGVectorDSN == "" {
				errs = append(errs, errors.New("PGVECTOR_DSN is not configured"))
			}
		default:
			errs = append(errs, fmt.Errorf("INDEX_BACKEND %q must be weaviate or pgvector", c.Index.Backend))
		}
	}
	return errors.Join(errs...)
}

func defaultConsumerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "docpipe"
	}
	return host + "-" + strings.ToLower(ulid.Make().String())
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return normalizeExtensions(strings.Split(v, ","))
}

func normalizeExtensions(in []string) []string {
	out := make([]string, 0, len(in))
	for _, e := range in {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}
