package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/stockwatch/stockwatch-backend/migrations"
	"github.com/stockwatch/stockwatch-backend/pkg/database"
	"github.com/stockwatch/stockwatch-backend/pkg/logger"
)

// TestSchema is an isolated copy of the StockWatch schema for one test
type TestSchema struct {
	Name     string
	DB       *database.DB
	Fixtures *Fixtures
}

// SchemaManager creates and drops per-test schemas
type SchemaManager struct {
	db        *sqlx.DB
	container *PostgresContainer
	log       *logger.Logger
	schemas   []*TestSchema
	mu        sync.Mutex
}

// NewSchemaManager creates a new schema manager for tests
func NewSchemaManager(db *sqlx.DB, container *PostgresContainer, log *logger.Logger) *SchemaManager {
	return &SchemaManager{
		db:        db,
		container: container,
		log:       log,
	}
}

// CreateSchema creates an empty schema, opens a pool pinned to it and
// applies the embedded migrations there.
func (sm *SchemaManager) CreateSchema(ctx context.Context, name string) (*TestSchema, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	schemaName := "test_" + strings.ReplaceAll(strings.ToLower(name), "-", "_")

	if _, err := sm.db.ExecContext(ctx, fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", schemaName)); err != nil {
		return nil, fmt.Errorf("failed to reset test schema: %w", err)
	}
	if _, err := sm.db.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA %s", schemaName)); err != nil {
		return nil, fmt.Errorf("failed to create test schema: %w", err)
	}

	db, err := database.NewWithDSN(sm.container.SchemaDSN(schemaName), sm.log)
	if err != nil {
		return nil, err
	}

	if _, err := migrations.Apply(ctx, db.DB); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	s := &TestSchema{
		Name:     schemaName,
		DB:       db,
		Fixtures: NewFixtures(db),
	}
	sm.schemas = append(sm.schemas, s)
	return s, nil
}

// DropSchema closes the schema's pool and removes the schema completely
func (sm *SchemaManager) DropSchema(ctx context.Context, s *TestSchema) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	s.DB.Close()
	if _, err := sm.db.ExecContext(ctx, fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", s.Name)); err != nil {
		return fmt.Errorf("failed to drop test schema: %w", err)
	}

	for i, tracked := range sm.schemas {
		if tracked == s {
			sm.schemas = append(sm.schemas[:i], sm.schemas[i+1:]...)
			break
		}
	}
	return nil
}

// Cleanup drops every schema still tracked by this manager
func (sm *SchemaManager) Cleanup(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	var lastErr error
	for _, s := range sm.schemas {
		s.DB.Close()
		if _, err := sm.db.ExecContext(ctx, fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", s.Name)); err != nil {
			lastErr = err
		}
	}
	sm.schemas = nil
	return lastErr
}
