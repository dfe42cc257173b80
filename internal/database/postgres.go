package database

import (
	"fmt"

	"github.com/Amund211/taskcache/internal/config"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const DB_NAME = "taskcache"

const LOCAL_CONNECTION_STRING = "user=postgres password=postgres dbname=taskcache sslmode=disable"

const MAIN_SCHEMA = "taskcache"
const TESTING_SCHEMA = "taskcache_test"

// GetSchemaName picks the schema lookups are stored in. Tests get their own
// schema so they can be wiped without touching real data.
func GetSchemaName(isTesting bool) string {
	if isTesting {
		return TESTING_SCHEMA
	}
	return MAIN_SCHEMA
}

func BuildConnectionString(dbUsername, dbPassword, dbHost, dbName string) string {
	if dbName == "" {
		dbName = DB_NAME
	}
	return fmt.Sprintf(
		"user=%s password=%s database=%s host=%s",
		dbUsername,
		dbPassword,
		dbName,
		dbHost,
	)
}

// NewPostgresDatabase connects to postgres and verifies the connection.
func NewPostgresDatabase(connectionString string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to db: %w", err)
	}

	if err := createDatabaseIfNotExists(db, DB_NAME); err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}

	return db, nil
}

// NewConfiguredPostgresDatabase connects using the connection details from
// conf, falling back to the local dev database in development.
func NewConfiguredPostgresDatabase(conf config.Config) (*sqlx.DB, error) {
	connectionString := LOCAL_CONNECTION_STRING
	if !conf.IsDevelopment() {
		connectionString = BuildConnectionString(conf.DBUsername(), conf.DBPassword(), conf.DBHost(), conf.DBName())
	}

	db, err := NewPostgresDatabase(connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres database: %w", err)
	}

	return db, nil
}

func createDatabaseIfNotExists(db *sqlx.DB, dbName string) error {
	var exists bool
	err := db.QueryRowx("SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)", dbName).Scan(&exists)
	if err != nil {
		return fmt.Errorf("createDB: failed to check if database exists: %w", err)
	}

	if exists {
		return nil
	}

	if _, err := db.Exec(fmt.Sprintf("CREATE DATABASE %s", pq.QuoteIdentifier(dbName))); err != nil {
		return fmt.Errorf("createDB: failed to create database: %w", err)
	}

	return nil
}
