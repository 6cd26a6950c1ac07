package memory

import (
	"fmt"
	"sort"

	"github.com/goccy/go-json"

	"pictocore/pkg/domain"
)

// transaction stages writes in private table copies; the committed tables are
// only read until the first write to a collection clones it.
type transaction struct {
	store    *Store
	scope    map[domain.Collection]struct{}
	writable bool
	staged   map[domain.Collection]*table
	touched  map[domain.Collection]map[string]struct{}
}

func (s *Store) newTransaction(colls []domain.Collection, writable bool) *transaction {
	scope := make(map[domain.Collection]struct{}, len(colls))
	for _, c := range colls {
		scope[c] = struct{}{}
	}
	return &transaction{
		store:    s,
		scope:    scope,
		writable: writable,
		staged:   make(map[domain.Collection]*table),
		touched:  make(map[domain.Collection]map[string]struct{}),
	}
}

func (tx *transaction) read(coll domain.Collection, op domain.Op) (*table, error) {
	if _, ok := tx.scope[coll]; !ok {
		return nil, domain.TransactionError{Op: string(op), Err: fmt.Errorf("%w: %s", domain.ErrOutOfScope, coll)}
	}
	tx.store.stats.inc(op, coll)
	if tbl, ok := tx.staged[coll]; ok {
		return tbl, nil
	}
	return tx.store.slots[coll].tbl, nil
}

func (tx *transaction) write(coll domain.Collection, op domain.Op) (*table, error) {
	if !tx.writable {
		return nil, domain.TransactionError{Op: string(op), Err: fmt.Errorf("%w: %s", domain.ErrReadOnly, coll)}
	}
	tbl, err := tx.read(coll, op)
	if err != nil {
		return nil, err
	}
	if _, ok := tx.staged[coll]; !ok {
		tbl = tbl.clone()
		tx.staged[coll] = tbl
	}
	return tbl, nil
}

func (tx *transaction) touch(coll domain.Collection, key string) {
	keys := tx.touched[coll]
	if keys == nil {
		keys = make(map[string]struct{})
		tx.touched[coll] = keys
	}
	keys[key] = struct{}{}
}

func (tx *transaction) indexed(tbl *table, coll domain.Collection, index string) error {
	if !tbl.hasIndex(index) {
		return domain.TransactionError{Op: "scan", Err: fmt.Errorf("%s has no index %q", coll, index)}
	}
	return nil
}

// Get implements domain.TransactionView.
func (tx *transaction) Get(coll domain.Collection, key string) ([]byte, bool, error) {
	tbl, err := tx.read(coll, domain.OpGet)
	if err != nil {
		return nil, false, err
	}
	e, ok := tbl.rows[key]
	if !ok {
		return nil, false, nil
	}
	return e.data, true, nil
}

// Scan implements domain.TransactionView.
func (tx *transaction) Scan(coll domain.Collection, index, value string) ([][]byte, error) {
	tbl, err := tx.read(coll, domain.OpScan)
	if err != nil {
		return nil, err
	}
	if err := tx.indexed(tbl, coll, index); err != nil {
		return nil, err
	}
	return tbl.scan(index, value), nil
}

// ScanMany implements domain.TransactionView.
func (tx *transaction) ScanMany(coll domain.Collection, index string, values []string) ([][]byte, error) {
	tbl, err := tx.read(coll, domain.OpScanMany)
	if err != nil {
		return nil, err
	}
	if err := tx.indexed(tbl, coll, index); err != nil {
		return nil, err
	}
	return tbl.scanMany(index, values), nil
}

// Range implements domain.TransactionView. Empty bounds are open.
func (tx *transaction) Range(coll domain.Collection, index, lo, hi string) ([][]byte, error) {
	tbl, err := tx.read(coll, domain.OpRange)
	if err != nil {
		return nil, err
	}
	if err := tx.indexed(tbl, coll, index); err != nil {
		return nil, err
	}
	return tbl.rangeScan(index, lo, hi), nil
}

// All implements domain.TransactionView.
func (tx *transaction) All(coll domain.Collection) ([][]byte, error) {
	tbl, err := tx.read(coll, domain.OpAll)
	if err != nil {
		return nil, err
	}
	return tbl.all(), nil
}

// Insert implements domain.Transaction.
func (tx *transaction) Insert(coll domain.Collection, rec domain.Record) error {
	tbl, err := tx.write(coll, domain.OpInsert)
	if err != nil {
		return err
	}
	key := rec.PrimaryKey()
	if key == "" {
		return fmt.Errorf("%s: empty primary key", coll)
	}
	if _, exists := tbl.rows[key]; exists {
		return domain.DuplicateKeyError{Collection: coll, Key: key}
	}
	return tx.putRecord(tbl, coll, key, rec)
}

// Update implements domain.Transaction. Absent keys are a silent no-op.
func (tx *transaction) Update(coll domain.Collection, rec domain.Record) (bool, error) {
	tbl, err := tx.write(coll, domain.OpUpdate)
	if err != nil {
		return false, err
	}
	key := rec.PrimaryKey()
	if _, exists := tbl.rows[key]; !exists {
		return false, nil
	}
	if err := tx.putRecord(tbl, coll, key, rec); err != nil {
		return false, err
	}
	return true, nil
}

func (tx *transaction) putRecord(tbl *table, coll domain.Collection, key string, rec domain.Record) error {
	idx := tbl.indexValues(rec)
	if name, value, conflict := tbl.uniqueConflict(key, idx); conflict {
		return domain.DuplicateKeyError{Collection: coll, Index: name, Key: value}
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", coll, key, err)
	}
	tbl.put(key, entry{data: data, idx: idx})
	tx.touch(coll, key)
	return nil
}

// Delete implements domain.Transaction. Absent keys are a silent no-op.
func (tx *transaction) Delete(coll domain.Collection, key string) (bool, error) {
	tbl, err := tx.write(coll, domain.OpDelete)
	if err != nil {
		return false, err
	}
	if !tbl.remove(key) {
		return false, nil
	}
	tx.touch(coll, key)
	return true, nil
}

// Clear implements domain.Transaction.
func (tx *transaction) Clear(coll domain.Collection) error {
	tbl, err := tx.write(coll, domain.OpClear)
	if err != nil {
		return err
	}
	for key := range tbl.rows {
		tx.touch(coll, key)
	}
	tx.staged[coll] = newTable(tbl.def)
	return nil
}

// rowChanges reports the final state of every touched key, ordered by
// collection then key. Keys inserted and deleted within the transaction that
// were never committed still produce a harmless tombstone.
func (tx *transaction) rowChanges() []domain.RowChange {
	var out []domain.RowChange
	for coll, keys := range tx.touched {
		tbl := tx.staged[coll]
		for key := range keys {
			change := domain.RowChange{Collection: coll, Key: key}
			if e, ok := tbl.rows[key]; ok {
				change.Data = e.data
			}
			out = append(out, change)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Collection != out[j].Collection {
			return out[i].Collection < out[j].Collection
		}
		return out[i].Key < out[j].Key
	})
	return out
}
