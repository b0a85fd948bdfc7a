// Package db is the read-only query surface over historical campaign data:
// past ad performance, compliance-approved copy snippets, and forbidden-term
// lists. The pipeline never writes here.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/launchpro/creative-engine/internal/circuitbreaker"
)

// Config holds database configuration.
type Config struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	MaxConnections  int
	IdleConnections int
	MaxLifetime     time.Duration
	SSLMode         string
}

// Client wraps the campaign database behind a circuit breaker.
type Client struct {
	db      *sqlx.DB
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewClient opens a connection pool and verifies connectivity.
func NewClient(config Config, logger *zap.Logger) (*Client, error) {
	if config.MaxConnections == 0 {
		config.MaxConnections = 25
	}
	if config.IdleConnections == 0 {
		config.IdleConnections = 5
	}
	if config.MaxLifetime == 0 {
		config.MaxLifetime = 5 * time.Minute
	}
	if config.SSLMode == "" {
		config.SSLMode = "require"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.Database, config.SSLMode,
	)

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxConnections)
	db.SetMaxIdleConns(config.IdleConnections)
	db.SetConnMaxLifetime(config.MaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Database connected",
		zap.String("host", config.Host),
		zap.String("database", config.Database))

	return &Client{
		db:      db,
		breaker: circuitbreaker.NewCircuitBreaker("database", circuitbreaker.DatabaseProfile().ToConfig(), logger),
		logger:  logger,
	}, nil
}

// NewClientFromDB wraps an existing connection. Used by tests with sqlmock.
func NewClientFromDB(db *sqlx.DB, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		db:      db,
		breaker: circuitbreaker.NewCircuitBreaker("database", circuitbreaker.DatabaseProfile().ToConfig(), logger),
		logger:  logger,
	}
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.db.Close()
}

// HealthCheck pings the database.
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.breaker.Execute(ctx, func() error {
		return c.db.PingContext(ctx)
	})
}
