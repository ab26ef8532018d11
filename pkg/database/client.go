// Package database provides the PostgreSQL connection pool and embedded
// schema migrations shared by every store-backed component.
package database

import (
	"context"
	stdsql "database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the pgx driver for database/sql
)

//go:embed migrations
var migrationsFS embed.FS

// Config holds the connection and pool parameters for the scoring store.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// Client wraps the pooled *sql.DB used by pkg/store's repositories.
type Client struct {
	db *stdsql.DB
}

// DB returns the underlying pool, for health checks and direct queries.
func (c *Client) DB() *stdsql.DB {
	return c.db
}

// Close releases the pool.
func (c *Client) Close() error {
	return c.db.Close()
}

// Health reports this client's pool liveness, implementing api.HealthChecker.
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	return Health(ctx, c.db)
}

// NewClient opens a pooled connection, applies pending migrations, and
// returns a ready-to-use Client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := stdsql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(cfg, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Client{db: db}, nil
}

// NewClientFromDB wraps an already-open pool, useful for tests against a
// throwaway database.
func NewClientFromDB(db *stdsql.DB) *Client {
	return &Client{db: db}
}

// runMigrations applies every embedded migration using golang-migrate,
// mirroring the embed-then-auto-apply-on-startup workflow: edit the SQL
// under migrations/, it ships inside the binary, and NewClient brings any
// fresh deployment's schema up to date without an external migration step.
func runMigrations(cfg Config, db *stdsql.DB) error {
	has, err := hasEmbeddedMigrations()
	if err != nil {
		return fmt.Errorf("failed to check embedded migrations: %w", err)
	}
	if !has {
		return fmt.Errorf("no embedded migration files found - binary may be built incorrectly")
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create postgres driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, cfg.Database, driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	// Do not call m.Close(): it also closes the shared *sql.DB passed via
	// postgres.WithInstance(), which this Client still needs.
	if err := sourceDriver.Close(); err != nil {
		return fmt.Errorf("failed to close migration source: %w", err)
	}
	return nil
}

// LoadConfigFromEnv builds a Config from the conventional PG* environment
// variables, falling back to locally-sensible defaults so a developer can
// start the server against a docker-compose Postgres with no env setup.
func LoadConfigFromEnv() (Config, error) {
	cfg := Config{
		Host:            getenv("PGHOST", "localhost"),
		User:            getenv("PGUSER", "mswim"),
		Password:        getenv("PGPASSWORD", "mswim"),
		Database:        getenv("PGDATABASE", "mswim"),
		SSLMode:         getenv("PGSSLMODE", "disable"),
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
	}
	port, err := strconv.Atoi(getenv("PGPORT", "5432"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid PGPORT: %w", err)
	}
	cfg.Port = port
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Health reports a minimal liveness summary for the /health endpoint.
func Health(ctx context.Context, db *stdsql.DB) (map[string]any, error) {
	if err := db.PingContext(ctx); err != nil {
		return map[string]any{"connected": false}, err
	}
	stats := db.Stats()
	return map[string]any{
		"connected":    true,
		"openConns":    stats.OpenConnections,
		"inUseConns":   stats.InUse,
		"idleConns":    stats.Idle,
	}, nil
}

func hasEmbeddedMigrations() (bool, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read embedded migrations: %w", err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() && len(name) > 4 && name[len(name)-4:] == ".sql" {
			return true, nil
		}
	}
	return false, nil
}
