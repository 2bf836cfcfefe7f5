// Package db provides the PostgreSQL visit store. It owns the
// visits table and the history-ordering contract: visits for a URL
// are always returned newest first, with created_at breaking ties.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog/log"
)

// DB represents a PostgreSQL database connection
type DB struct {
	client *sql.DB
	config *Config
}

// GetDB returns the underlying database handle
func (d *DB) GetDB() *sql.DB {
	return d.client
}

// GetConfig returns the original DB connection settings
func (d *DB) GetConfig() *Config {
	return d.config
}

// Config holds PostgreSQL connection configuration
type Config struct {
	Host         string        // Database host
	Port         string        // Database port
	User         string        // Database user
	Password     string        // Database password
	Database     string        // Database name
	SSLMode      string        // SSL mode (disable, require, verify-ca, verify-full)
	MaxIdleConns int           // Maximum number of idle connections
	MaxOpenConns int           // Maximum number of open connections
	MaxLifetime  time.Duration // Maximum lifetime of a connection
	DatabaseURL  string        // Original DATABASE_URL if used
}

// ConnectionString returns the PostgreSQL connection string
func (c *Config) ConnectionString() string {
	// If we have a DatabaseURL, use it directly
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}

	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// New creates a new PostgreSQL database connection
func New(config *Config) (*DB, error) {
	if config.DatabaseURL == "" {
		if config.Host == "" {
			return nil, fmt.Errorf("database host is required")
		}
		if config.Port == "" {
			return nil, fmt.Errorf("database port is required")
		}
		if config.User == "" {
			return nil, fmt.Errorf("database user is required")
		}
		if config.Database == "" {
			return nil, fmt.Errorf("database name is required")
		}
	}

	// Set defaults for optional fields
	if config.SSLMode == "" {
		config.SSLMode = "disable"
	}
	if config.MaxIdleConns == 0 {
		config.MaxIdleConns = 10
	}
	if config.MaxOpenConns == 0 {
		config.MaxOpenConns = 25
	}
	if config.MaxLifetime == 0 {
		config.MaxLifetime = 20 * time.Minute
	}

	client, err := sql.Open("pgx", config.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	client.SetMaxOpenConns(config.MaxOpenConns)
	client.SetMaxIdleConns(config.MaxIdleConns)
	client.SetConnMaxLifetime(config.MaxLifetime)

	if err := client.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	if err := setupSchema(client); err != nil {
		return nil, fmt.Errorf("failed to setup schema: %w", err)
	}

	return &DB{client: client, config: config}, nil
}

// InitFromEnv creates a PostgreSQL connection using environment variables
func InitFromEnv() (*DB, error) {
	// If DATABASE_URL is provided, use it with default pool settings
	if url := os.Getenv("DATABASE_URL"); url != "" {
		config := &Config{
			DatabaseURL:  url,
			MaxIdleConns: 10,
			MaxOpenConns: 25,
			MaxLifetime:  20 * time.Minute,
		}
		return New(config)
	}

	config := &Config{
		Host:     os.Getenv("POSTGRES_HOST"),
		Port:     getEnvWithDefault("POSTGRES_PORT", "5432"),
		User:     os.Getenv("POSTGRES_USER"),
		Password: os.Getenv("POSTGRES_PASSWORD"),
		Database: os.Getenv("POSTGRES_DB"),
		SSLMode:  getEnvWithDefault("POSTGRES_SSL_MODE", "disable"),
	}

	log.Debug().
		Str("host", config.Host).
		Str("port", config.Port).
		Str("database", config.Database).
		Msg("Connecting to PostgreSQL")

	return New(config)
}

// Ping verifies the database connection is alive
func (d *DB) Ping() error {
	return d.client.Ping()
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.client.Close()
}

// setupSchema creates the visits table and its ordering index
func setupSchema(client *sql.DB) error {
	_, err := client.Exec(`
		CREATE TABLE IF NOT EXISTS visits (
			id UUID PRIMARY KEY,
			url TEXT NOT NULL,
			datetime_visited TIMESTAMPTZ NOT NULL,
			link_count INTEGER NOT NULL CHECK (link_count >= 0),
			word_count INTEGER NOT NULL CHECK (word_count >= 0),
			image_count INTEGER NOT NULL CHECK (image_count >= 0),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_visits_url_history
			ON visits (url, datetime_visited DESC, created_at DESC);
	`)
	if err != nil {
		return fmt.Errorf("failed to create visits table: %w", err)
	}

	return nil
}

func getEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
