// Package integration runs the approval engine against a real PostgreSQL
// instance via testcontainers. These tests require Docker and are skipped
// in -short mode.
package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/gatekeep-app/gatekeep/internal/db"
)

type testDB struct {
	container testcontainers.Container
	database  *db.DB
}

func setupTestDB(t *testing.T) *testDB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-based DB tests in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("gatekeep_test"),
		postgres.WithUsername("gatekeep_user"),
		postgres.WithPassword("gatekeep_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	gdb, err := gorm.Open(gormPostgres.New(gormPostgres.Config{
		DSN:                  connStr,
		PreferSimpleProtocol: true, // disables implicit prepared statement usage
	}), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	database := &db.DB{DB: gdb}
	if err := runSchema(database); err != nil {
		t.Fatalf("Failed to apply schema: %v", err)
	}

	return &testDB{container: pgContainer, database: database}
}

func (tdb *testDB) cleanup(t *testing.T) {
	t.Helper()
	if err := tdb.container.Terminate(context.Background()); err != nil {
		t.Logf("Failed to terminate container: %v", err)
	}
}

// runSchema applies the reference DDL so the tests exercise the same schema
// production runs on, not just what AutoMigrate would infer.
func runSchema(database *db.DB) error {
	schemaPath, err := filepath.Abs(filepath.Join("..", "..", "migrations", "schema.sql"))
	if err != nil {
		return err
	}
	schemaSQL, err := os.ReadFile(schemaPath)
	if err != nil {
		return err
	}
	sqlDB, err := database.GetSQLDB()
	if err != nil {
		return err
	}
	_, err = sqlDB.Exec(string(schemaSQL))
	return err
}
