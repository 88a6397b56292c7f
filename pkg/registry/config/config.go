package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-registry/pkg/registry"
	"github.com/tendant/simple-registry/pkg/registry/repo/breaker"
	"github.com/tendant/simple-registry/pkg/registry/repo/dynamo"
	"github.com/tendant/simple-registry/pkg/registry/repo/memory"
	repopg "github.com/tendant/simple-registry/pkg/registry/repo/postgres"
	fsstorage "github.com/tendant/simple-registry/pkg/registry/storage/fs"
	memorystorage "github.com/tendant/simple-registry/pkg/registry/storage/memory"
	s3storage "github.com/tendant/simple-registry/pkg/registry/storage/s3"
)

// Database types
const (
	DatabaseMemory   = "memory"
	DatabasePostgres = "postgres"
	DatabaseDynamoDB = "dynamodb"
)

// Storage types
const (
	StorageMemory = "memory"
	StorageFS     = "fs"
	StorageS3     = "s3"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of
// library defaults. The returned configuration is not modified afterwards.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:         "8080",
		Environment:  "development",
		DatabaseType: DatabaseMemory,
		DBSchema:     "registry",
		DynamoRegion: "us-east-1",
		Storage: StorageBackendConfig{
			Type:   StorageMemory,
			Config: map[string]interface{}{},
		},
		MaxPublishBytes:  10 << 20,
		BreakerThreshold: 5,
	}
}

// ServerConfig represents server configuration for the registry
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing

	// Registration store configuration
	DatabaseType   string // "memory", "postgres", "dynamodb"
	DatabaseURL    string
	DBSchema       string // Postgres schema to use (default: registry)
	DynamoTable    string
	DynamoRegion   string
	DynamoEndpoint string

	// Archive storage configuration
	Storage StorageBackendConfig

	// Publish options
	StrictFrames     bool     // reject bytes after the archive segment
	MaxPublishBytes  int64    // request body limit for publish
	Categories       []string // allowed categories, empty accepts any slug
	BreakerThreshold int64    // consecutive store failures before failing fast, 0 disables
}

// StorageBackendConfig represents configuration for the archive store
type StorageBackendConfig struct {
	Type   string // "memory", "fs", "s3"
	Config map[string]interface{}
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	switch c.DatabaseType {
	case DatabaseMemory:
	case DatabasePostgres:
		if c.DatabaseURL == "" {
			return errors.New("database_url is required when using postgres")
		}
	case DatabaseDynamoDB:
		if c.DynamoTable == "" {
			return errors.New("dynamodb table is required when using dynamodb")
		}
	default:
		return errors.New("database_type must be 'memory', 'postgres' or 'dynamodb'")
	}

	switch c.Storage.Type {
	case StorageMemory, StorageFS, StorageS3:
	default:
		return fmt.Errorf("unsupported storage backend type: %s", c.Storage.Type)
	}

	if c.MaxPublishBytes <= 0 {
		return errors.New("max_publish_bytes must be positive")
	}
	if c.BreakerThreshold < 0 {
		return errors.New("breaker_threshold cannot be negative")
	}

	return nil
}

// Stores holds the stores built from a configuration
type Stores struct {
	Records  registry.RecordStore
	Archives registry.ArchiveStore

	closers []func()
}

// Close releases connections held by the stores
func (s *Stores) Close() {
	for _, c := range s.closers {
		c()
	}
}

// BuildStores creates the record and archive stores described by the configuration
func (c *ServerConfig) BuildStores(ctx context.Context) (*Stores, error) {
	stores := &Stores{}

	records, closer, err := c.buildRecordStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build record store: %w", err)
	}
	if closer != nil {
		stores.closers = append(stores.closers, closer)
	}
	if c.BreakerThreshold > 0 {
		records = breaker.New(records, breaker.Options{Threshold: c.BreakerThreshold})
	}
	stores.Records = records

	archives, err := c.buildArchiveStore(c.Storage)
	if err != nil {
		stores.Close()
		return nil, fmt.Errorf("failed to build archive store %s: %w", c.Storage.Type, err)
	}
	stores.Archives = archives

	return stores, nil
}

// BuildPublisher creates a Publisher over the given stores
func (c *ServerConfig) BuildPublisher(stores *Stores, logger *slog.Logger) (registry.Publisher, error) {
	options := []registry.Option{
		registry.WithRecordStore(stores.Records),
		registry.WithArchiveStore(stores.Archives),
		registry.WithWarningChecker(registry.NewWarningChecker(c.Categories...)),
	}
	if logger != nil {
		options = append(options, registry.WithLogger(logger))
	}
	if c.StrictFrames {
		options = append(options, registry.WithStrictFrames())
	}
	return registry.New(options...)
}

// buildRecordStore creates a RecordStore based on the configuration
func (c *ServerConfig) buildRecordStore(ctx context.Context) (registry.RecordStore, func(), error) {
	switch c.DatabaseType {
	case DatabaseMemory:
		return memory.New(), nil, nil
	case DatabasePostgres:
		pool, err := newPool(ctx, c.DatabaseURL, c.DBSchema)
		if err != nil {
			return nil, nil, err
		}
		repo := repopg.NewWithPool(pool)
		if err := repo.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return repo, pool.Close, nil
	case DatabaseDynamoDB:
		repo, err := dynamo.New(dynamo.Config{
			Table:    c.DynamoTable,
			Region:   c.DynamoRegion,
			Endpoint: c.DynamoEndpoint,
		})
		if err != nil {
			return nil, nil, err
		}
		return repo, nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

func newPool(ctx context.Context, databaseURL, schema string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	if schema != "" {
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			if _, err := conn.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", pgx.Identifier{schema}.Sanitize())); err != nil {
				return err
			}
			_, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s", pgx.Identifier{schema}.Sanitize()))
			return err
		}
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return pool, nil
}

// buildArchiveStore creates an ArchiveStore based on the backend configuration
func (c *ServerConfig) buildArchiveStore(config StorageBackendConfig) (registry.ArchiveStore, error) {
	switch config.Type {
	case StorageMemory:
		return memorystorage.New(), nil

	case StorageFS:
		return fsstorage.New(fsstorage.Config{
			BaseDir: getString(config.Config, "base_dir", "./data/archives"),
		})

	case StorageS3:
		return s3storage.New(s3storage.Config{
			Region:                 getString(config.Config, "region", "us-east-1"),
			Bucket:                 getString(config.Config, "bucket", ""),
			Prefix:                 getString(config.Config, "prefix", ""),
			AccessKeyID:            getString(config.Config, "access_key_id", ""),
			SecretAccessKey:        getString(config.Config, "secret_access_key", ""),
			Endpoint:               getString(config.Config, "endpoint", ""),
			UsePathStyle:           getBool(config.Config, "use_path_style", false),
			EnableSSE:              getBool(config.Config, "enable_sse", false),
			SSEAlgorithm:           getString(config.Config, "sse_algorithm", "AES256"),
			SSEKMSKeyID:            getString(config.Config, "sse_kms_key_id", ""),
			CreateBucketIfNotExist: getBool(config.Config, "create_bucket_if_not_exist", false),
		})

	default:
		return nil, fmt.Errorf("unsupported storage backend type: %s", config.Type)
	}
}

func getString(config map[string]interface{}, key string, defaultValue string) string {
	if value, exists := config[key]; exists {
		if str, ok := value.(string); ok {
			return str
		}
	}
	return defaultValue
}

func getBool(config map[string]interface{}, key string, defaultValue bool) bool {
	if value, exists := config[key]; exists {
		if b, ok := value.(bool); ok {
			return b
		}
		if str, ok := value.(string); ok {
			if b, err := strconv.ParseBool(str); err == nil {
				return b
			}
		}
	}
	return defaultValue
}
