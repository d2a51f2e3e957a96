package testhelpers

import (
	"context"
	"os"
	"testing"

	"docarchive/pkg/database"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// TestDB holds the database connection for testing
type TestDB struct {
	Pool    *pgxpool.Pool
	Cleanup func()
}

// SetupTestDB connects to TEST_DATABASE_URL, applies the migrations and
// empties the storage tables. The test is skipped when the variable is unset.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	connString := os.Getenv("TEST_DATABASE_URL")
	if connString == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	if err := database.Migrate(connString, zap.NewNop()); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	pool, err := pgxpool.New(context.Background(), connString)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	db := &TestDB{Pool: pool}
	db.truncate(t)
	db.Cleanup = func() {
		db.truncate(t)
		pool.Close()
	}
	return db
}

func (db *TestDB) truncate(t *testing.T) {
	t.Helper()
	_, err := db.Pool.Exec(context.Background(), `
		TRUNCATE transactions, files, storage_locations, users, sub_departments, departments RESTART IDENTITY CASCADE
	`)
	if err != nil {
		t.Fatalf("Failed to truncate test tables: %v", err)
	}
}

// SeedDepartment creates a department and returns its id
func (db *TestDB) SeedDepartment(t *testing.T, name string) int64 {
	t.Helper()
	var id int64
	err := db.Pool.QueryRow(context.Background(),
		`INSERT INTO departments (name) VALUES ($1) RETURNING department_id`, name).Scan(&id)
	if err != nil {
		t.Fatalf("Failed to create test department: %v", err)
	}
	return id
}

// SeedSubDepartment creates a sub-department and returns its id
func (db *TestDB) SeedSubDepartment(t *testing.T, departmentID int64, name string) int64 {
	t.Helper()
	var id int64
	err := db.Pool.QueryRow(context.Background(),
		`INSERT INTO sub_departments (department_id, name) VALUES ($1, $2) RETURNING sub_department_id`,
		departmentID, name).Scan(&id)
	if err != nil {
		t.Fatalf("Failed to create test sub-department: %v", err)
	}
	return id
}

// SeedFile creates an unplaced file and returns its id
func (db *TestDB) SeedFile(t *testing.T, name string) int64 {
	t.Helper()
	var id int64
	err := db.Pool.QueryRow(context.Background(),
		`INSERT INTO files (file_name) VALUES ($1) RETURNING file_id`, name).Scan(&id)
	if err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
	return id
}
