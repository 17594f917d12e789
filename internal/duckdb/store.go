// Package duckdb holds one run's digest in DuckDB so it can be ranked,
// looked up and queried ad hoc with read-only SQL.
package duckdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"go.uber.org/zap"

	"github.com/tinytelemetry/slowdigest/internal/duckdb/migrate"
	"github.com/tinytelemetry/slowdigest/internal/model"
)

// Store manages the DuckDB connection and provides digest queries.
type Store struct {
	db           *sql.DB
	mu           sync.RWMutex
	dbPath       string
	log          *zap.Logger
	QueryTimeout time.Duration
}

// NewStore opens or creates a DuckDB database. If dbPath is empty, an
// in-memory database is used. An optional queryTimeout defaults to 30s.
func NewStore(dbPath string, queryTimeout ...time.Duration) (*Store, error) {
	dsn := ""
	if dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
		dsn = dbPath
	}

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening duckdb: %w", err)
	}
	if err := migrate.NewRunner(db).Run(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating duckdb: %w", err)
	}

	qt := model.DefaultQueryTimeout
	if len(queryTimeout) > 0 && queryTimeout[0] > 0 {
		qt = queryTimeout[0]
	}

	return &Store{
		db:           db,
		dbPath:       dbPath,
		log:          zap.NewNop(),
		QueryTimeout: qt,
	}, nil
}

// SetLogger replaces the store's logger; nil restores the no-op logger.
func (s *Store) SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	s.log = l
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}
