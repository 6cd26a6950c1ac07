// Package memory provides the embedded transactional store: keyed collections
// with declared secondary indexes, transactions scoped to an explicit set of
// collections, and copy-on-write staging so a failed transaction leaves no
// trace. Durable backends plug in through a Committer.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"

	"pictocore/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

// Committer receives the row-level change set of a write transaction before it
// becomes visible. A returned error aborts the transaction.
type Committer interface {
	Commit(ctx context.Context, changes []domain.RowChange) error
}

// CommitterFunc adapts a function to Committer.
type CommitterFunc func(ctx context.Context, changes []domain.RowChange) error

// Commit implements Committer.
func (f CommitterFunc) Commit(ctx context.Context, changes []domain.RowChange) error {
	return f(ctx, changes)
}

type slot struct {
	mu  sync.RWMutex
	tbl *table
}

// Store provides an in-memory transactional store for the pictogram schema.
type Store struct {
	slots     map[domain.Collection]*slot
	defs      []domain.CollectionDef
	committer Committer
	stats     *counters
}

// Option configures a Store.
type Option func(*Store)

// WithCommitter installs a durability hook invoked before each write commit.
func WithCommitter(c Committer) Option {
	return func(s *Store) { s.committer = c }
}

// WithSchema replaces the default collection layout.
func WithSchema(defs []domain.CollectionDef) Option {
	return func(s *Store) { s.defs = defs }
}

// WithRegisterer exports adapter call counts as Prometheus counters.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *Store) { s.stats.register(reg) }
}

// NewStore constructs an empty store declaring every collection of the schema.
func NewStore(opts ...Option) *Store {
	s := &Store{defs: domain.DefaultSchema(), stats: newCounters()}
	for _, opt := range opts {
		opt(s)
	}
	s.slots = make(map[domain.Collection]*slot, len(s.defs))
	for _, def := range s.defs {
		s.slots[def.Name] = &slot{tbl: newTable(def)}
	}
	return s
}

// SetCommitter swaps the durability hook. Durable stores call it once during construction.
func (s *Store) SetCommitter(c Committer) { s.committer = c }

// Stats returns a copy of the adapter call counters.
func (s *Store) Stats() domain.Stats { return s.stats.snapshot() }

// ResetStats zeroes the process-local call counters.
func (s *Store) ResetStats() { s.stats.reset() }

// Close releases nothing for the in-memory store.
func (s *Store) Close() error { return nil }

// scope resolves and canonically orders the declared collections.
func (s *Store) scope(colls []domain.Collection) ([]domain.Collection, error) {
	seen := make(map[domain.Collection]struct{}, len(colls))
	out := make([]domain.Collection, 0, len(colls))
	for _, c := range colls {
		if _, ok := s.slots[c]; !ok {
			return nil, domain.TransactionError{Op: "scope", Err: fmt.Errorf("unknown collection %q", c)}
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *Store) lock(colls []domain.Collection, write bool) func() {
	for _, c := range colls {
		if write {
			s.slots[c].mu.Lock()
		} else {
			s.slots[c].mu.RLock()
		}
	}
	return func() {
		for i := len(colls) - 1; i >= 0; i-- {
			if write {
				s.slots[colls[i]].mu.Unlock()
			} else {
				s.slots[colls[i]].mu.RUnlock()
			}
		}
	}
}

// View executes fn against a read-only view of the declared collections.
// Writes to those collections are excluded for the duration of fn.
func (s *Store) View(ctx context.Context, colls []domain.Collection, fn func(domain.TransactionView) error) error {
	ordered, err := s.scope(colls)
	if err != nil {
		return err
	}
	unlock := s.lock(ordered, false)
	defer unlock()
	if err := ctx.Err(); err != nil {
		return domain.TransactionError{Op: "view", Err: err}
	}
	return fn(s.newTransaction(ordered, false))
}

// RunInTransaction executes fn within a transaction over the declared
// collections. Changes become visible only if fn and the committer succeed.
// Errors returned by fn are passed through unchanged.
func (s *Store) RunInTransaction(ctx context.Context, colls []domain.Collection, fn func(domain.Transaction) error) error {
	ordered, err := s.scope(colls)
	if err != nil {
		return err
	}
	unlock := s.lock(ordered, true)
	defer unlock()
	if err := ctx.Err(); err != nil {
		return domain.TransactionError{Op: "begin", Err: err}
	}
	tx := s.newTransaction(ordered, true)
	if err := fn(tx); err != nil {
		return err
	}
	return s.commit(ctx, tx)
}

func (s *Store) commit(ctx context.Context, tx *transaction) error {
	if len(tx.staged) == 0 {
		return nil
	}
	if s.committer != nil {
		if changes := tx.rowChanges(); len(changes) > 0 {
			if err := s.committer.Commit(context.WithoutCancel(ctx), changes); err != nil {
				return domain.TransactionError{Op: "commit", Err: err}
			}
		}
	}
	for coll, tbl := range tx.staged {
		s.slots[coll].tbl = tbl
	}
	return nil
}

// ExportState returns every collection as raw JSON keyed by primary key.
func (s *Store) ExportState(ctx context.Context) (domain.Snapshot, error) {
	snapshot := domain.Snapshot{
		Version:     domain.SchemaVersion,
		Collections: make(map[domain.Collection]domain.Rows, len(s.defs)),
	}
	colls := make([]domain.Collection, 0, len(s.defs))
	for _, def := range s.defs {
		colls = append(colls, def.Name)
	}
	err := s.View(ctx, colls, func(domain.TransactionView) error {
		for _, c := range colls {
			rows := s.slots[c].tbl.rows
			out := make(domain.Rows, len(rows))
			for k, e := range rows {
				out[k] = append([]byte(nil), e.data...)
			}
			snapshot.Collections[c] = out
		}
		return nil
	})
	return snapshot, err
}

// ImportState replaces the content of every collection present in snapshot
// within one transaction. Rows are decoded to rebuild indexes; a row whose
// primary key disagrees with its map key is rejected.
func (s *Store) ImportState(ctx context.Context, snapshot domain.Snapshot) error {
	if snapshot.Version != 0 && snapshot.Version != domain.SchemaVersion {
		return fmt.Errorf("import: snapshot version %d, store version %d", snapshot.Version, domain.SchemaVersion)
	}
	colls := make([]domain.Collection, 0, len(snapshot.Collections))
	for c := range snapshot.Collections {
		colls = append(colls, c)
	}
	return s.RunInTransaction(ctx, colls, func(tx domain.Transaction) error {
		for _, c := range colls {
			if err := tx.Clear(c); err != nil {
				return err
			}
			def := s.slots[c].tbl.def
			for key, raw := range snapshot.Collections[c] {
				rec := def.New()
				if err := json.Unmarshal(raw, rec); err != nil {
					return fmt.Errorf("import %s/%s: %w", c, key, err)
				}
				if rec.PrimaryKey() != key {
					return fmt.Errorf("import %s/%s: primary key mismatch %q", c, key, rec.PrimaryKey())
				}
				if err := tx.Insert(c, rec); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// Load hydrates collections from rows without invoking the committer. Durable
// stores use it while opening.
func (s *Store) Load(rows []domain.RowChange) error {
	byColl := make(map[domain.Collection][]domain.RowChange)
	for _, r := range rows {
		byColl[r.Collection] = append(byColl[r.Collection], r)
	}
	for coll, list := range byColl {
		sl, ok := s.slots[coll]
		if !ok {
			return fmt.Errorf("load: unknown collection %q", coll)
		}
		sl.mu.Lock()
		tbl := sl.tbl.clone()
		for _, r := range list {
			rec := tbl.def.New()
			if err := json.Unmarshal(r.Data, rec); err != nil {
				sl.mu.Unlock()
				return fmt.Errorf("load %s/%s: %w", coll, r.Key, err)
			}
			tbl.put(r.Key, entry{data: append([]byte(nil), r.Data...), idx: tbl.indexValues(rec)})
		}
		sl.tbl = tbl
		sl.mu.Unlock()
	}
	return nil
}
