package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Supported driver names
const (
	DriverSQLite3  = "sqlite3"  // mattn/go-sqlite3 (cgo)
	DriverSQLite   = "sqlite"   // modernc.org/sqlite (pure Go)
	DriverPostgres = "postgres" // lib/pq
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("database: not found")

// DB is the global database connection
var DB *sqlx.DB

func init() {
	// modernc registers as "sqlite", which sqlx does not know by default
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Connect establishes the global connection and initializes the schema
func Connect(driver, dsn string) error {
	db, err := Open(driver, dsn)
	if err != nil {
		return err
	}
	DB = db
	return nil
}

// Open connects to the database and makes sure all tables exist
func Open(driver, dsn string) (*sqlx.DB, error) {
	if isSQLite(driver) {
		// Create data directory if it doesn't exist
		if dir := sqliteDir(dsn); dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if isSQLite(driver) {
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
		// SQLite doesn't support multiple writers; a single connection also
		// serializes every per-user transaction.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	if err := initializeSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// Close closes the global database connection
func Close() error {
	if DB != nil {
		return DB.Close()
	}
	return nil
}

// IsPostgres reports whether q talks to PostgreSQL
func IsPostgres(q sqlx.ExtContext) bool {
	return q.DriverName() == DriverPostgres
}

func isSQLite(driver string) bool {
	return driver == DriverSQLite3 || driver == DriverSQLite
}

// sqliteDir returns the directory of a file-backed SQLite DSN
func sqliteDir(dsn string) string {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || strings.Contains(path, ":memory:") || strings.Contains(dsn, "mode=memory") {
		return ""
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return ""
	}
	return dir
}

// dbTime normalizes timestamps before they are written so that SQLite's
// text-encoded times compare in chronological order.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
