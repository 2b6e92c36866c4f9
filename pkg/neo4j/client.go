package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Client wraps the Neo4j driver for reuse across repositories
type Client struct {
	driver   neo4j.DriverWithContext
	database string
}

// Config holds Neo4j connection configuration
type Config struct {
	URI      string
	Username string
	Password string

	// Database selects a non-default database
	Database string

	// ConnectTimeout bounds the connectivity check, default 5s
	ConnectTimeout time.Duration
}

// NewClient creates and verifies a Neo4j client connection
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("neo4j: uri is required")
	}

	driver, err := neo4j.NewDriverWithContext(
		cfg.URI,
		neo4j.BasicAuth(cfg.Username, cfg.Password, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Neo4j driver: %w", err)
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	verifyCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := driver.VerifyConnectivity(verifyCtx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("failed to verify Neo4j connectivity: %w", err)
	}

	return &Client{driver: driver, database: cfg.Database}, nil
}

// Close closes the Neo4j driver connection
func (c *Client) Close(ctx context.Context) error {
	if c.driver != nil {
		return c.driver.Close(ctx)
	}
	return nil
}

// Write runs work in a managed write transaction
func (c *Client) Write(ctx context.Context, work neo4j.ManagedTransactionWork) (any, error) {
	session := c.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)
	return session.ExecuteWrite(ctx, work)
}

// Read runs work in a managed read transaction. Results must be consumed
// inside work.
func (c *Client) Read(ctx context.Context, work neo4j.ManagedTransactionWork) (any, error) {
	session := c.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)
	return session.ExecuteRead(ctx, work)
}

func (c *Client) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return c.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   mode,
		DatabaseName: c.database,
	})
}
