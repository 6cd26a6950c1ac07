package domain

import (
	"context"
	"encoding/json"
	"strconv"
)

// SchemaVersion is the fixed version of the collection layout declared by DefaultSchema.
const SchemaVersion = 1

// Collection names a keyed record collection.
type Collection string

// Declared collections.
const (
	CollectionUsers        Collection = "users"
	CollectionBinders      Collection = "binders"
	CollectionPictograms   Collection = "pictograms"
	CollectionCategories   Collection = "categories"
	CollectionSettings     Collection = "settings"
	CollectionHistory      Collection = "history"
	CollectionTranslations Collection = "translations"
)

// Secondary index names.
const (
	IndexEmail        = "email"
	IndexAuthor       = "author"
	IndexFavorite     = "favorite"
	IndexBinder       = "binder"
	IndexEntityType   = "entity_type"
	IndexTarget       = "target"
	IndexPerformer    = "performer"
	IndexTimestamp    = "timestamp"
	IndexObject       = "object"
	IndexObjectLocale = "object_locale"
)

// Record is a value storable in a collection. IndexKeys returns the values a
// record contributes to the named secondary index; nil means none.
type Record interface {
	PrimaryKey() string
	IndexKeys(index string) []string
}

// IndexDef declares a secondary index.
type IndexDef struct {
	Name   string
	Unique bool
}

// CollectionDef declares a collection, its indexes and a factory used to
// decode stored rows when rebuilding indexes.
type CollectionDef struct {
	Name    Collection
	Indexes []IndexDef
	New     func() Record
}

// DefaultSchema returns the collection layout for SchemaVersion.
func DefaultSchema() []CollectionDef {
	return []CollectionDef{
		{Name: CollectionUsers, Indexes: []IndexDef{{Name: IndexEmail, Unique: true}}, New: func() Record { return &User{} }},
		{Name: CollectionBinders, Indexes: []IndexDef{{Name: IndexAuthor}, {Name: IndexFavorite}}, New: func() Record { return &Binder{} }},
		{Name: CollectionPictograms, Indexes: []IndexDef{{Name: IndexBinder}, {Name: IndexFavorite}}, New: func() Record { return &Pictogram{} }},
		{Name: CollectionCategories, New: func() Record { return &Category{} }},
		{Name: CollectionSettings, New: func() Record { return &Setting{} }},
		{Name: CollectionHistory, Indexes: []IndexDef{
			{Name: IndexEntityType}, {Name: IndexTarget}, {Name: IndexPerformer}, {Name: IndexTimestamp},
		}, New: func() Record { return &History{} }},
		{Name: CollectionTranslations, Indexes: []IndexDef{{Name: IndexObject}, {Name: IndexObjectLocale}}, New: func() Record { return &Translation{} }},
	}
}

// AllCollections lists every collection of DefaultSchema.
func AllCollections() []Collection {
	defs := DefaultSchema()
	out := make([]Collection, 0, len(defs))
	for _, def := range defs {
		out = append(out, def.Name)
	}
	return out
}

func one(v string) []string {
	if v == "" {
		return nil
	}
	return []string{v}
}

// PrimaryKey implements Record.
func (u User) PrimaryKey() string { return u.ID }

// IndexKeys implements Record.
func (u User) IndexKeys(index string) []string {
	if index == IndexEmail {
		return one(u.Email)
	}
	return nil
}

// PrimaryKey implements Record.
func (b Binder) PrimaryKey() string { return b.ID }

// IndexKeys implements Record.
func (b Binder) IndexKeys(index string) []string {
	switch index {
	case IndexAuthor:
		return one(b.AuthorID)
	case IndexFavorite:
		return []string{strconv.FormatBool(b.Favorite)}
	}
	return nil
}

// PrimaryKey implements Record.
func (p Pictogram) PrimaryKey() string { return p.ID }

// IndexKeys implements Record.
func (p Pictogram) IndexKeys(index string) []string {
	switch index {
	case IndexBinder:
		return one(p.BinderID)
	case IndexFavorite:
		return []string{strconv.FormatBool(p.Favorite)}
	}
	return nil
}

// PrimaryKey implements Record.
func (c Category) PrimaryKey() string { return c.ID }

// IndexKeys implements Record.
func (Category) IndexKeys(string) []string { return nil }

// PrimaryKey implements Record.
func (s Setting) PrimaryKey() string { return s.Key }

// IndexKeys implements Record.
func (Setting) IndexKeys(string) []string { return nil }

// PrimaryKey implements Record.
func (h History) PrimaryKey() string { return h.ID }

// IndexKeys implements Record.
func (h History) IndexKeys(index string) []string {
	switch index {
	case IndexEntityType:
		return one(string(h.EntityType))
	case IndexTarget:
		return one(h.TargetID)
	case IndexPerformer:
		return one(h.PerformedBy)
	case IndexTimestamp:
		return []string{TimestampKey(h.Timestamp)}
	}
	return nil
}

// PrimaryKey implements Record.
func (t Translation) PrimaryKey() string { return TranslationKey(t.ObjectID, t.Locale, t.Key) }

// IndexKeys implements Record.
func (t Translation) IndexKeys(index string) []string {
	switch index {
	case IndexObject:
		return one(t.ObjectID)
	case IndexObjectLocale:
		return []string{ObjectLocaleKey(t.ObjectID, t.Locale)}
	}
	return nil
}

// TransactionView provides read-only access to the collections declared for
// a transaction. Result slices are unordered.
type TransactionView interface {
	Get(coll Collection, key string) ([]byte, bool, error)
	Scan(coll Collection, index, value string) ([][]byte, error)
	ScanMany(coll Collection, index string, values []string) ([][]byte, error)
	Range(coll Collection, index, lo, hi string) ([][]byte, error)
	All(coll Collection) ([][]byte, error)
}

// Transaction adds mutations to TransactionView. Insert fails with
// DuplicateKeyError on collision; Update and Delete report whether a row was
// touched and are no-ops when the key is absent.
type Transaction interface {
	TransactionView
	Insert(coll Collection, rec Record) error
	Update(coll Collection, rec Record) (bool, error)
	Delete(coll Collection, key string) (bool, error)
	Clear(coll Collection) error
}

// PersistentStore is the embedded store contract. Every transaction declares
// the collections it touches up front.
type PersistentStore interface {
	View(ctx context.Context, colls []Collection, fn func(TransactionView) error) error
	RunInTransaction(ctx context.Context, colls []Collection, fn func(Transaction) error) error
	ExportState(ctx context.Context) (Snapshot, error)
	ImportState(ctx context.Context, snapshot Snapshot) error
	Stats() Stats
	Close() error
}

// RowChange is one row-level effect of a committed transaction. A nil Data is
// a tombstone.
type RowChange struct {
	Collection Collection
	Key        string
	Data       []byte
}

// Rows maps primary keys to encoded records.
type Rows map[string]json.RawMessage

// Snapshot is the serialisable content of every collection.
type Snapshot struct {
	Version     int                 `json:"version"`
	Collections map[Collection]Rows `json:"collections"`
}

// Op names an adapter operation for instrumentation.
type Op string

// Instrumented adapter operations.
const (
	OpGet      Op = "get"
	OpScan     Op = "scan"
	OpScanMany Op = "scan_many"
	OpRange    Op = "range"
	OpAll      Op = "all"
	OpInsert   Op = "insert"
	OpUpdate   Op = "update"
	OpDelete   Op = "delete"
	OpClear    Op = "clear"
)

// Stats holds adapter call counts keyed by operation then collection.
type Stats map[Op]map[Collection]int64

// Count returns the number of calls of op against coll.
func (s Stats) Count(op Op, coll Collection) int64 {
	return s[op][coll]
}

// Total returns the number of calls of op across all collections.
func (s Stats) Total(op Op) int64 {
	var n int64
	for _, c := range s[op] {
		n += c
	}
	return n
}
