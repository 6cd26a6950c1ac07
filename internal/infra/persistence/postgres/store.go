// Package postgres provides a Postgres-backed persistent store that mirrors the
// in-memory semantics and writes each committed row change through to a
// records table before the change becomes visible.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"pictocore/internal/infra/persistence/memory"
	"pictocore/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/pictocore?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

const (
	ddlRecords = `CREATE TABLE IF NOT EXISTS records (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		payload BYTEA NOT NULL,
		PRIMARY KEY (collection, id)
	)`
	ddlMeta = `CREATE TABLE IF NOT EXISTS meta (
		name TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`
	upsertRecord = `INSERT INTO records (collection, id, payload) VALUES ($1, $2, $3)
		ON CONFLICT (collection, id) DO UPDATE SET payload = EXCLUDED.payload`
	deleteRecord = `DELETE FROM records WHERE collection = $1 AND id = $2`
)

// Store persists state to Postgres while reusing the in-memory implementation for transactions.
type Store struct {
	*memory.Store
	db *sql.DB
	mu sync.Mutex
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back to defaultDSN).
// It ensures the records and meta tables exist, checks the schema version and
// hydrates the in-memory store from the stored rows.
func NewStore(ctx context.Context, dsn string, opts ...memory.Option) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	s, err := newStore(ctx, db, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func newStore(ctx context.Context, db *sql.DB, opts ...memory.Option) (*Store, error) {
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	for _, ddl := range []string{ddlRecords, ddlMeta} {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return nil, fmt.Errorf("ensure tables: %w", err)
		}
	}
	if err := checkVersion(ctx, db); err != nil {
		return nil, err
	}
	rows, err := loadRows(ctx, db)
	if err != nil {
		return nil, err
	}
	mem := memory.NewStore(opts...)
	if err := mem.Load(rows); err != nil {
		return nil, err
	}
	s := &Store{Store: mem, db: db}
	mem.SetCommitter(s)
	return s, nil
}

func checkVersion(ctx context.Context, db *sql.DB) error {
	var stored string
	err := db.QueryRowContext(ctx, `SELECT value FROM meta WHERE name = $1`, "schema_version").Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.ExecContext(ctx, `INSERT INTO meta (name, value) VALUES ($1, $2)`,
			"schema_version", strconv.Itoa(domain.SchemaVersion)); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("read schema version: %w", err)
	}
	if stored != strconv.Itoa(domain.SchemaVersion) {
		return fmt.Errorf("schema version %s on disk, %d expected", stored, domain.SchemaVersion)
	}
	return nil
}

func loadRows(ctx context.Context, db *sql.DB) ([]domain.RowChange, error) {
	rows, err := db.QueryContext(ctx, `SELECT collection, id, payload FROM records`)
	if err != nil {
		return nil, fmt.Errorf("select records: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []domain.RowChange
	for rows.Next() {
		var r domain.RowChange
		var coll string
		if err := rows.Scan(&coll, &r.Key, &r.Data); err != nil {
			return nil, fmt.Errorf("scan records: %w", err)
		}
		r.Collection = domain.Collection(coll)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

// Commit implements memory.Committer by applying the row changes in one
// Postgres transaction.
func (s *Store) Commit(ctx context.Context, changes []domain.RowChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	for _, c := range changes {
		if c.Data == nil {
			if _, err := tx.ExecContext(ctx, deleteRecord, string(c.Collection), c.Key); err != nil {
				return fmt.Errorf("delete %s/%s: %w", c.Collection, c.Key, err)
			}
			continue
		}
		if _, err := tx.ExecContext(ctx, upsertRecord, string(c.Collection), c.Key, c.Data); err != nil {
			return fmt.Errorf("upsert %s/%s: %w", c.Collection, c.Key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database handle.
func (s *Store) Close() error { return s.db.Close() }

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
