package config

import (
	"fmt"
)

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithDatabase configures the registration store backend
func WithDatabase(dbType, url string) Option {
	return func(c *ServerConfig) error {
		switch dbType {
		case DatabaseMemory:
		case DatabasePostgres:
			if url == "" {
				return fmt.Errorf("database URL is required for postgres")
			}
		default:
			return fmt.Errorf("database type must be 'memory' or 'postgres', got: %s (use WithDynamoDB for dynamodb)", dbType)
		}
		c.DatabaseType = dbType
		c.DatabaseURL = url
		return nil
	}
}

// WithDatabaseSchema sets the database schema (for Postgres)
func WithDatabaseSchema(schema string) Option {
	return func(c *ServerConfig) error {
		c.DBSchema = schema
		return nil
	}
}

// WithDynamoDB configures a DynamoDB registration store.
// Endpoint may be empty to use the regional AWS endpoint.
func WithDynamoDB(table, region, endpoint string) Option {
	return func(c *ServerConfig) error {
		if table == "" {
			return fmt.Errorf("dynamodb table cannot be empty")
		}
		c.DatabaseType = DatabaseDynamoDB
		c.DynamoTable = table
		if region != "" {
			c.DynamoRegion = region
		}
		c.DynamoEndpoint = endpoint
		return nil
	}
}

// WithMemoryStorage stores archives in memory
func WithMemoryStorage() Option {
	return func(c *ServerConfig) error {
		c.Storage = StorageBackendConfig{Type: StorageMemory, Config: map[string]interface{}{}}
		return nil
	}
}

// WithFilesystemStorage stores archives below baseDir
func WithFilesystemStorage(baseDir string) Option {
	return func(c *ServerConfig) error {
		if baseDir == "" {
			return fmt.Errorf("filesystem base directory cannot be empty")
		}
		c.Storage = StorageBackendConfig{
			Type: StorageFS,
			Config: map[string]interface{}{
				"base_dir": baseDir,
			},
		}
		return nil
	}
}

// WithS3Storage stores archives in an S3 bucket
func WithS3Storage(bucket, region, endpoint string, usePathStyle bool) Option {
	return func(c *ServerConfig) error {
		if bucket == "" {
			return fmt.Errorf("S3 bucket cannot be empty")
		}
		if region == "" {
			region = "us-east-1"
		}

		backend := StorageBackendConfig{
			Type: StorageS3,
			Config: map[string]interface{}{
				"bucket":         bucket,
				"region":         region,
				"use_path_style": usePathStyle,
			},
		}
		if endpoint != "" {
			backend.Config["endpoint"] = endpoint
		}

		c.Storage = backend
		return nil
	}
}

// WithStrictFrames rejects bytes after the archive segment
func WithStrictFrames(strict bool) Option {
	return func(c *ServerConfig) error {
		c.StrictFrames = strict
		return nil
	}
}

// WithMaxPublishBytes limits the size of a publish request body
func WithMaxPublishBytes(n int64) Option {
	return func(c *ServerConfig) error {
		if n <= 0 {
			return fmt.Errorf("max publish bytes must be positive, got: %d", n)
		}
		c.MaxPublishBytes = n
		return nil
	}
}

// WithCategories restricts accepted categories. Unknown categories produce warnings.
func WithCategories(categories ...string) Option {
	return func(c *ServerConfig) error {
		c.Categories = append([]string(nil), categories...)
		return nil
	}
}

// WithCircuitBreaker fails fast after threshold consecutive store failures.
// A threshold of 0 disables the breaker.
func WithCircuitBreaker(threshold int64) Option {
	return func(c *ServerConfig) error {
		if threshold < 0 {
			return fmt.Errorf("breaker threshold cannot be negative, got: %d", threshold)
		}
		c.BreakerThreshold = threshold
		return nil
	}
}
