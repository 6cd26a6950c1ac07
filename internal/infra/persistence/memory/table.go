package memory

import (
	"sort"

	"pictocore/pkg/domain"
)

// entry is a stored row: encoded bytes plus the index values it contributes.
// Bytes are never mutated after insertion, so tables share them across clones.
type entry struct {
	data []byte
	idx  map[string][]string
}

type table struct {
	def     domain.CollectionDef
	rows    map[string]entry
	indexes map[string]map[string]map[string]struct{}
}

func newTable(def domain.CollectionDef) *table {
	t := &table{
		def:     def,
		rows:    make(map[string]entry),
		indexes: make(map[string]map[string]map[string]struct{}, len(def.Indexes)),
	}
	for _, idx := range def.Indexes {
		t.indexes[idx.Name] = make(map[string]map[string]struct{})
	}
	return t
}

func (t *table) clone() *table {
	cp := &table{
		def:     t.def,
		rows:    make(map[string]entry, len(t.rows)),
		indexes: make(map[string]map[string]map[string]struct{}, len(t.indexes)),
	}
	for k, v := range t.rows {
		cp.rows[k] = v
	}
	for name, values := range t.indexes {
		vals := make(map[string]map[string]struct{}, len(values))
		for value, keys := range values {
			ks := make(map[string]struct{}, len(keys))
			for k := range keys {
				ks[k] = struct{}{}
			}
			vals[value] = ks
		}
		cp.indexes[name] = vals
	}
	return cp
}

func (t *table) hasIndex(name string) bool {
	_, ok := t.indexes[name]
	return ok
}

func (t *table) indexValues(rec domain.Record) map[string][]string {
	if len(t.def.Indexes) == 0 {
		return nil
	}
	out := make(map[string][]string, len(t.def.Indexes))
	for _, idx := range t.def.Indexes {
		if values := rec.IndexKeys(idx.Name); len(values) > 0 {
			out[idx.Name] = append([]string(nil), values...)
		}
	}
	return out
}

// uniqueConflict returns the first unique index value of idx already owned by
// a key other than self.
func (t *table) uniqueConflict(self string, idx map[string][]string) (string, string, bool) {
	for _, def := range t.def.Indexes {
		if !def.Unique {
			continue
		}
		for _, value := range idx[def.Name] {
			for owner := range t.indexes[def.Name][value] {
				if owner != self {
					return def.Name, value, true
				}
			}
		}
	}
	return "", "", false
}

func (t *table) put(key string, e entry) {
	t.remove(key)
	t.rows[key] = e
	for name, values := range e.idx {
		for _, value := range values {
			keys := t.indexes[name][value]
			if keys == nil {
				keys = make(map[string]struct{})
				t.indexes[name][value] = keys
			}
			keys[key] = struct{}{}
		}
	}
}

func (t *table) remove(key string) bool {
	old, ok := t.rows[key]
	if !ok {
		return false
	}
	for name, values := range old.idx {
		for _, value := range values {
			keys := t.indexes[name][value]
			delete(keys, key)
			if len(keys) == 0 {
				delete(t.indexes[name], value)
			}
		}
	}
	delete(t.rows, key)
	return true
}

func (t *table) collect(keys map[string]struct{}, out [][]byte) [][]byte {
	for k := range keys {
		out = append(out, t.rows[k].data)
	}
	return out
}

func (t *table) scan(index, value string) [][]byte {
	keys := t.indexes[index][value]
	return t.collect(keys, make([][]byte, 0, len(keys)))
}

func (t *table) scanMany(index string, values []string) [][]byte {
	seen := make(map[string]struct{})
	for _, value := range values {
		for k := range t.indexes[index][value] {
			seen[k] = struct{}{}
		}
	}
	return t.collect(seen, make([][]byte, 0, len(seen)))
}

func (t *table) rangeScan(index, lo, hi string) [][]byte {
	values := make([]string, 0, len(t.indexes[index]))
	for value := range t.indexes[index] {
		if (lo == "" || value >= lo) && (hi == "" || value <= hi) {
			values = append(values, value)
		}
	}
	sort.Strings(values)
	var out [][]byte
	for _, value := range values {
		keys := make([]string, 0, len(t.indexes[index][value]))
		for k := range t.indexes[index][value] {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out = append(out, t.rows[k].data)
		}
	}
	return out
}

func (t *table) all() [][]byte {
	out := make([][]byte, 0, len(t.rows))
	for _, e := range t.rows {
		out = append(out, e.data)
	}
	return out
}
