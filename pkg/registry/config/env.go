package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// WithEnv applies environment variable overrides using the provided prefix.
//
// Server:
//
//	PORT - Server port (default: "8080")
//	ENVIRONMENT - Runtime environment (default: "development")
//
// Registration store:
//
//	DATABASE_URL - one of:
//	               - "memory" - In-memory store (default)
//	               - "postgresql://..." or "postgres://..." - Postgres
//	               - "dynamodb://table?region=us-east-1&endpoint=http://localhost:8000" - DynamoDB
//	DB_SCHEMA - Postgres schema (default: "registry")
//
// Archive storage:
//
//	STORAGE_URL - one of:
//	              - "memory://" - In-memory storage (default)
//	              - "file:///path/to/data" - Filesystem storage
//	              - "s3://bucket?region=us-east-1&endpoint=...&path_style=true&prefix=..." - S3 storage
//
// Publish:
//
//	STRICT_FRAMES - reject bytes after the archive segment
//	MAX_PUBLISH_BYTES - request body limit
//	CATEGORIES - comma separated list of allowed categories
//	BREAKER_THRESHOLD - consecutive store failures before failing fast, 0 disables
func WithEnv(prefix string) Option {
	return func(c *ServerConfig) error {
		if v, ok := lookupEnv(prefix, "PORT"); ok && v != "" {
			c.Port = v
		}
		if v, ok := lookupEnv(prefix, "ENVIRONMENT"); ok && v != "" {
			c.Environment = v
		}
		if v, ok := lookupEnv(prefix, "DB_SCHEMA"); ok && v != "" {
			c.DBSchema = v
		}

		if err := applyDatabaseEnv(prefix, c); err != nil {
			return err
		}
		if err := applyStorageEnv(prefix, c); err != nil {
			return err
		}

		if v, ok, err := parseBoolEnv(prefix, "STRICT_FRAMES"); err != nil {
			return err
		} else if ok {
			c.StrictFrames = v
		}
		if v, ok, err := parseInt64Env(prefix, "MAX_PUBLISH_BYTES"); err != nil {
			return err
		} else if ok {
			c.MaxPublishBytes = v
		}
		if v, ok, err := parseInt64Env(prefix, "BREAKER_THRESHOLD"); err != nil {
			return err
		} else if ok {
			c.BreakerThreshold = v
		}
		if v, ok := lookupEnv(prefix, "CATEGORIES"); ok && v != "" {
			c.Categories = splitList(v)
		}

		return nil
	}
}

// applyDatabaseEnv applies registration store configuration from environment
func applyDatabaseEnv(prefix string, c *ServerConfig) error {
	dbURL, hasURL := lookupEnv(prefix, "DATABASE_URL")

	if !hasURL || dbURL == "" || dbURL == "memory" {
		c.DatabaseType = DatabaseMemory
		c.DatabaseURL = ""
		return nil
	}

	switch {
	case strings.HasPrefix(dbURL, "postgresql://"), strings.HasPrefix(dbURL, "postgres://"):
		c.DatabaseType = DatabasePostgres
		c.DatabaseURL = dbURL
		return nil
	case strings.HasPrefix(dbURL, "dynamodb://"):
		return applyDynamoDB(dbURL, c)
	}

	return fmt.Errorf("unsupported DATABASE_URL format: %s (use 'memory', 'postgresql://...' or 'dynamodb://...')", dbURL)
}

// applyDynamoDB configures the DynamoDB store from URL
// Format: dynamodb://table?region=us-east-1&endpoint=http://localhost:8000
func applyDynamoDB(raw string, c *ServerConfig) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid DATABASE_URL: %w", err)
	}
	if u.Host == "" {
		return fmt.Errorf("DynamoDB table name cannot be empty in DATABASE_URL")
	}

	q := u.Query()
	c.DatabaseType = DatabaseDynamoDB
	c.DatabaseURL = raw
	c.DynamoTable = u.Host
	if region := q.Get("region"); region != "" {
		c.DynamoRegion = region
	} else if region, ok := os.LookupEnv("AWS_REGION"); ok && region != "" {
		c.DynamoRegion = region
	}
	c.DynamoEndpoint = q.Get("endpoint")
	return nil
}

// applyStorageEnv applies archive storage configuration from environment
func applyStorageEnv(prefix string, c *ServerConfig) error {
	storageURL, hasURL := lookupEnv(prefix, "STORAGE_URL")

	if !hasURL || storageURL == "" || storageURL == "memory" || storageURL == "memory://" {
		c.Storage = StorageBackendConfig{Type: StorageMemory, Config: map[string]interface{}{}}
		return nil
	}

	switch {
	case strings.HasPrefix(storageURL, "file://"):
		return applyFilesystemStorage(storageURL, c)
	case strings.HasPrefix(storageURL, "s3://"):
		return applyS3Storage(storageURL, c)
	}

	return fmt.Errorf("unsupported STORAGE_URL format: %s (use 'memory://', 'file://...', or 's3://...')", storageURL)
}

// applyFilesystemStorage configures filesystem storage from URL
// Format: file:///path/to/data
func applyFilesystemStorage(raw string, c *ServerConfig) error {
	path := strings.TrimPrefix(raw, "file://")
	if path == "" {
		return fmt.Errorf("filesystem path cannot be empty in STORAGE_URL")
	}

	c.Storage = StorageBackendConfig{
		Type: StorageFS,
		Config: map[string]interface{}{
			"base_dir": path,
		},
	}
	return nil
}

// applyS3Storage configures S3 storage from URL
// Format: s3://bucket?region=us-east-1&endpoint=http://localhost:9000
func applyS3Storage(raw string, c *ServerConfig) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid STORAGE_URL: %w", err)
	}
	if u.Host == "" {
		return fmt.Errorf("S3 bucket name cannot be empty in STORAGE_URL")
	}

	backend := StorageBackendConfig{
		Type: StorageS3,
		Config: map[string]interface{}{
			"bucket": u.Host,
			"region": "us-east-1",
		},
	}

	q := u.Query()
	if region := q.Get("region"); region != "" {
		backend.Config["region"] = region
	} else if region, ok := os.LookupEnv("AWS_REGION"); ok && region != "" {
		backend.Config["region"] = region
	}
	if endpoint := q.Get("endpoint"); endpoint != "" {
		backend.Config["endpoint"] = endpoint
	}
	if pathStyle := q.Get("path_style"); pathStyle != "" {
		backend.Config["use_path_style"] = pathStyle
	}
	if keyPrefix := q.Get("prefix"); keyPrefix != "" {
		backend.Config["prefix"] = keyPrefix
	}
	if accessKey, ok := os.LookupEnv("AWS_ACCESS_KEY_ID"); ok && accessKey != "" {
		backend.Config["access_key_id"] = accessKey
	}
	if secretKey, ok := os.LookupEnv("AWS_SECRET_ACCESS_KEY"); ok && secretKey != "" {
		backend.Config["secret_access_key"] = secretKey
	}

	c.Storage = backend
	return nil
}

func lookupEnv(prefix, key string) (string, bool) {
	return os.LookupEnv(prefix + key)
}

func parseBoolEnv(prefix, key string) (bool, bool, error) {
	raw, ok := lookupEnv(prefix, key)
	if !ok || raw == "" {
		return false, false, nil
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false, fmt.Errorf("invalid boolean for %s%s: %w", prefix, key, err)
	}
	return parsed, true, nil
}

func parseInt64Env(prefix, key string) (int64, bool, error) {
	raw, ok := lookupEnv(prefix, key)
	if !ok || raw == "" {
		return 0, false, nil
	}
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("invalid integer for %s%s: %w", prefix, key, err)
	}
	return parsed, true, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
