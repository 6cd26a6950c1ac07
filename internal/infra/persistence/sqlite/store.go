// Package sqlite provides a single-file durable store. Transactions run in the
// embedded memory engine; each commit is written through to SQLite row by row
// before it becomes visible.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"pictocore/internal/infra/persistence/memory"
	"pictocore/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

const defaultPath = "pictocore.db"

const schemaDDL = `CREATE TABLE IF NOT EXISTS records (
	collection TEXT NOT NULL,
	id TEXT NOT NULL,
	payload BLOB NOT NULL,
	PRIMARY KEY (collection, id)
);
CREATE TABLE IF NOT EXISTS meta (
	name TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

// Store persists committed row changes to a SQLite database file.
type Store struct {
	*memory.Store
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore opens or creates the database at path and hydrates the in-memory
// engine from it. An empty path falls back to pictocore.db in the working directory.
func NewStore(ctx context.Context, path string, opts ...memory.Option) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer connection keeps ":memory:" databases coherent and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	s := &Store{db: db, path: path}
	if err := s.init(ctx, opts); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init(ctx context.Context, opts []memory.Option) error {
	if _, err := s.db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	var stored string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE name = ?`, "schema_version").Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := s.db.ExecContext(ctx, `INSERT INTO meta(name, value) VALUES(?, ?)`,
			"schema_version", strconv.Itoa(domain.SchemaVersion)); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read schema version: %w", err)
	case stored != strconv.Itoa(domain.SchemaVersion):
		return fmt.Errorf("schema version %s on disk, %d expected", stored, domain.SchemaVersion)
	}
	rows, err := s.load(ctx)
	if err != nil {
		return err
	}
	s.Store = memory.NewStore(opts...)
	if err := s.Store.Load(rows); err != nil {
		return err
	}
	s.Store.SetCommitter(s)
	return nil
}

func (s *Store) load(ctx context.Context) ([]domain.RowChange, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT collection, id, payload FROM records`)
	if err != nil {
		return nil, fmt.Errorf("select records: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []domain.RowChange
	for rows.Next() {
		var coll string
		var r domain.RowChange
		if err := rows.Scan(&coll, &r.Key, &r.Data); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		r.Collection = domain.Collection(coll)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Commit implements memory.Committer. All changes land in one SQLite
// transaction or none do.
func (s *Store) Commit(ctx context.Context, changes []domain.RowChange) (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, c := range changes {
		if c.Data == nil {
			if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE collection = ? AND id = ?`, string(c.Collection), c.Key); err != nil {
				return fmt.Errorf("delete %s/%s: %w", c.Collection, c.Key, err)
			}
			continue
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO records(collection, id, payload) VALUES(?, ?, ?)
			ON CONFLICT(collection, id) DO UPDATE SET payload = excluded.payload`, string(c.Collection), c.Key, c.Data); err != nil {
			return fmt.Errorf("upsert %s/%s: %w", c.Collection, c.Key, err)
		}
	}
	return tx.Commit()
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

// Close closes the database handle.
func (s *Store) Close() error { return s.db.Close() }
