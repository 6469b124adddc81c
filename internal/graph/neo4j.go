// Package graph stores and queries dataset lineage in Neo4j: jobs, runs and the
// FLOWS_TO edges between the datasets a run read and wrote.
package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/maraichr/docpipe/internal/config"
)

type Client struct {
	driver neo4j.DriverWithContext
}

// NewClient opens a driver for cfg.Neo4jURI. The driver connects lazily; call
// Verify to fail fast.
func NewClient(cfg config.LineageConfig) (*Client, error) {
	if cfg.Neo4jURI == "" {
		return nil, errors.New("LINEAGE_NEO4J_URI is not configured")
	}
	driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURI, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	return &Client{driver: driver}, nil
}

// EnsureIndexes creates uniqueness constraints on Dataset(id), Job(id) and Run(id).
func (c *Client) EnsureIndexes(ctx context.Context) error {
	session := c.writeSession(ctx)
	defer session.Close(ctx)
	_, err := neo4j.ExecuteWrite(ctx, session, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, q := range []string{CreateConstraintDatasetID, CreateConstraintJobID, CreateConstraintRunID} {
			if _, err := tx.Run(ctx, q, nil); err != nil {
				return struct{}{}, fmt.Errorf("create constraint: %w", err)
			}
		}
		return struct{}{}, nil
	})
	return err
}

func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

// Verify checks connectivity to Neo4j.
func (c *Client) Verify(ctx context.Context) error {
	return c.driver.VerifyConnectivity(ctx)
}

func (c *Client) writeSession(ctx context.Context) neo4j.SessionWithContext {
	return c.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
}

func (c *Client) readSession(ctx context.Context) neo4j.SessionWithContext {
	return c.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
}
