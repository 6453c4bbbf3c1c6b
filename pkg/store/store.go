package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const dbOperationTimeout = 5 * time.Second

var (
	errOpenStore    = errors.New("failed to open backing store")
	errInitSchema   = errors.New("failed to initialize store schema")
	errBeginTx      = errors.New("failed to begin transaction")
	errSaveRecord   = errors.New("failed to save alarm record")
	errDeleteRecord = errors.New("failed to delete alarm record")
	errQueryRecords = errors.New("failed to query alarm records")
	errSaveAlert    = errors.New("failed to save alert")
	errQueryAlerts  = errors.New("failed to query alerts")
	errScanRow      = errors.New("failed to scan row")
)

const schema = `
CREATE TABLE IF NOT EXISTS alarm_records (
    sequence_num TEXT PRIMARY KEY,
    record       TEXT NOT NULL,
    first_seen   TIMESTAMP NOT NULL,
    last_seen    TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS alerts (
    id           TEXT PRIMARY KEY,
    rule_name    TEXT NOT NULL,
    target_key   TEXT NOT NULL,
    severity     TEXT NOT NULL,
    message      TEXT NOT NULL,
    affected     TEXT NOT NULL,
    created_at   TIMESTAMP NOT NULL,
    resolved_at  TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_alerts_active
    ON alerts (rule_name, target_key)
    WHERE resolved_at IS NULL;
`

// Store is the sqlite backing store for the alarm snapshot and the alert
// log. The alarm cache and the rules engine each consume their own slice
// of it through the interfaces in interfaces.go.
type Store struct {
	db *sql.DB
}

var (
	_ AlarmStore = (*Store)(nil)
	_ AlertStore = (*Store)(nil)
)

// Open opens (creating if necessary) the backing store at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errOpenStore, err)
	}

	// sqlite allows one writer; the poll scheduler is the only writer but
	// API reads share the pool.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %w", errInitSchema, err)
	}

	return &Store{db: db}, nil
}

// Ping verifies the store is reachable, for the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, dbOperationTimeout)
	defer cancel()

	return s.db.PingContext(ctx)
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
