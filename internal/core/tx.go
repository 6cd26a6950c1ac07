package core

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"

	"pictocore/pkg/domain"
)

// Tx is a write transaction with typed, validated mutations. Every mutation
// is recorded as a domain.Change for the rules engine and, when the context
// carries an actor, mirrored into the History collection.
type Tx struct {
	raw     domain.Transaction
	now     time.Time
	actor   string
	newID   func() string
	changes []domain.Change

	lastHistory domain.History
}

// Raw exposes the underlying store transaction.
func (tx *Tx) Raw() domain.Transaction { return tx.raw }

// Now returns the timestamp applied to every record written by tx.
func (tx *Tx) Now() time.Time { return tx.now }

// Changes returns the mutations recorded so far.
func (tx *Tx) Changes() []domain.Change {
	return append([]domain.Change(nil), tx.changes...)
}

func (tx *Tx) id(current string) string {
	if current != "" {
		return current
	}
	return tx.newID()
}

func (tx *Tx) record(entity domain.EntityType, action domain.Action, id string, before, after any) error {
	tx.changes = append(tx.changes, domain.Change{Entity: entity, Action: action, ID: id, Before: before, After: after})
	if tx.actor == "" {
		return nil
	}
	return tx.appendHistory(domain.History{
		EntityType:  entity,
		TargetID:    id,
		Action:      action,
		PerformedBy: tx.actor,
		Changes:     diffFields(before, after),
	})
}

// diffFields compares the top-level JSON fields of two records. Either side
// may be nil for creates and deletes.
func diffFields(before, after any) map[string]domain.FieldChange {
	b, a := fieldMap(before), fieldMap(after)
	out := make(map[string]domain.FieldChange)
	for k, av := range a {
		if bv, ok := b[k]; !ok || !cmp.Equal(bv, av) {
			out[k] = domain.FieldChange{Before: b[k], After: av}
		}
	}
	for k, bv := range b {
		if _, ok := a[k]; !ok {
			out[k] = domain.FieldChange{Before: bv}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func fieldMap(v any) map[string]any {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	delete(m, "updated_at")
	delete(m, "password_hash")
	return m
}

func decode[T any](coll domain.Collection, raw []byte) (T, error) {
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode %s record: %w", coll, err)
	}
	return out, nil
}

func decodeRows[T any](coll domain.Collection, rows [][]byte) ([]T, error) {
	out := make([]T, 0, len(rows))
	for _, raw := range rows {
		v, err := decode[T](coll, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func get[T any](v domain.TransactionView, coll domain.Collection, key string) (T, bool, error) {
	var zero T
	raw, ok, err := v.Get(coll, key)
	if err != nil || !ok {
		return zero, false, err
	}
	out, err := decode[T](coll, raw)
	if err != nil {
		return zero, false, err
	}
	return out, true, nil
}

func scan[T any](v domain.TransactionView, coll domain.Collection, index, value string) ([]T, error) {
	rows, err := v.Scan(coll, index, value)
	if err != nil {
		return nil, err
	}
	return decodeRows[T](coll, rows)
}

func scanMany[T any](v domain.TransactionView, coll domain.Collection, index string, values []string) ([]T, error) {
	if len(values) == 0 {
		return nil, nil
	}
	rows, err := v.ScanMany(coll, index, values)
	if err != nil {
		return nil, err
	}
	return decodeRows[T](coll, rows)
}

func all[T any](v domain.TransactionView, coll domain.Collection) ([]T, error) {
	rows, err := v.All(coll)
	if err != nil {
		return nil, err
	}
	return decodeRows[T](coll, rows)
}

func without(values []string, id string) ([]string, bool) {
	out := make([]string, 0, len(values))
	removed := false
	for _, v := range values {
		if v == id {
			removed = true
			continue
		}
		out = append(out, v)
	}
	return out, removed
}

func appendUnique(values []string, id string) ([]string, bool) {
	for _, v := range values {
		if v == id {
			return values, false
		}
	}
	return append(append([]string(nil), values...), id), true
}
