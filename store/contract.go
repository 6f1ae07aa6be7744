// Package store defines Coaty's storage adapter contract (§4.6): the
// NoSQL document operations every controller programs against, the raw
// SQL escape hatch for adapters backed by a relational engine,
// transactions, and a local key-value store for adapter-private state.
// It ships two adapters: an in-memory one for tests and ephemeral
// containers, and a SQLite one (github.com/mattn/go-sqlite3) for
// durable single-node deployments.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/coaty-io/coaty-go/filter"
	"github.com/coaty-io/coaty-go/object"
)

// ObjectID is an alias kept for call-site brevity; it is exactly
// uuid.UUID, the type object.CoatyObject.ObjectID carries.
type ObjectID = uuid.UUID

// ErrNotSupported is returned by an adapter for an operation its
// storage engine cannot perform — e.g. the in-memory adapter's SQL
// operations, which have no relational engine behind them.
var ErrNotSupported = errors.New("store: operation not supported by this adapter")

// ErrClosed is returned by MemoryAdapter's NoSQL, transaction and
// key-value operations after Close has been called. SQLiteAdapter keeps
// no closed state of its own: its operations after Close fail with the
// error database/sql returns for a closed database.
var ErrClosed = errors.New("store: adapter is closed")

// AggregateOp is the closed set of reduction operators AggregateObjects
// accepts.
type AggregateOp int

const (
	AggregateAvg AggregateOp = iota
	AggregateSum
	AggregateMax
	AggregateMin
	AggregateEvery
	AggregateSome
)

// JoinCondition describes one related-collection join a NoSQL query
// pulls in alongside the primary match, associating objects whose
// LocalProperty equals the joined object's id (or is contained in it,
// for a to-many association).
type JoinCondition struct {
	Collection     string
	LocalProperty  []string
	IsOneToOneRelation bool
	IsLocalPropertyArray bool
	AsProperty     string
}

// NoSQLAdapter is the document-oriented half of the storage contract:
// schemaless collections of CoatyObjects, queried and mutated by
// object filter (see the filter package) rather than by a query
// language.
type NoSQLAdapter interface {
	// AddCollection creates collection if it does not already exist.
	AddCollection(ctx context.Context, collection string) error

	// RemoveCollection drops collection and everything in it.
	RemoveCollection(ctx context.Context, collection string) error

	// ClearCollection deletes every object in collection, keeping the
	// collection itself.
	ClearCollection(ctx context.Context, collection string) error

	// InsertObjects stores objs in collection. If replaceExisting is
	// false and an object with the same ObjectID already exists, the
	// insert fails for that object and its ObjectID is reported in the
	// returned error; objects before the conflict are still inserted.
	InsertObjects(ctx context.Context, collection string, objs []object.Object, replaceExisting bool) error

	// UpdateObjects replaces each object in objs by ObjectID, leaving
	// it untouched if no such object exists in collection.
	UpdateObjects(ctx context.Context, collection string, objs []object.Object) error

	// UpdateObjectProperty sets property prop to value on every object
	// in ids. If createMissing is true, prop is added when absent;
	// otherwise objects lacking prop are left unchanged. property is a
	// dot-notation path, e.g. "payload.temp".
	UpdateObjectProperty(ctx context.Context, collection string, ids []ObjectID, property string, value any, createMissing bool) error

	// DeleteObjectsByID removes the objects identified by ids and
	// returns how many existed and were removed.
	DeleteObjectsByID(ctx context.Context, collection string, ids []ObjectID) (int, error)

	// DeleteObjects removes every object in collection matching f and
	// returns how many were removed.
	DeleteObjects(ctx context.Context, collection string, f filter.ObjectFilter) (int, error)

	// FindObjectByID returns the object with the given id in
	// collection, or ok=false if none exists.
	FindObjectByID(ctx context.Context, collection string, id ObjectID) (result map[string]any, ok bool, err error)

	// FindObjects returns a streaming iterator over every object in
	// collection matching f, joined with joins if given. Results are
	// decoded JSON trees (map[string]any), not typed domain objects,
	// mirroring the wire representation filter.Matches operates on.
	// The transactional view SQLiteAdapter hands to a Transaction action
	// does not apply joins.
	FindObjects(ctx context.Context, collection string, f filter.ObjectFilter, joins ...JoinCondition) (QueryIterator[map[string]any], error)

	// CountObjects returns the number of objects in collection matching f.
	CountObjects(ctx context.Context, collection string, f filter.ObjectFilter) (int, error)

	// AggregateObjects reduces property prop with op over every object
	// in collection matching f. ok is false if no object both matched
	// f and had prop defined as a number (Avg/Sum/Max/Min) or boolean
	// (Every/Some).
	AggregateObjects(ctx context.Context, collection string, prop []string, op AggregateOp, f filter.ObjectFilter) (result any, ok bool, err error)
}

// SQLAdapter is the relational escape hatch of the storage contract
// (§4.6): adapters backed by a SQL engine accept a dialect-neutral
// Query built with the sqlbuilder AST and run it directly, for queries
// the NoSQL document operations cannot express (joins across
// unrelated collections, aggregates beyond AggregateObjects, indexed
// range scans).
type SQLAdapter interface {
	// Query runs q and returns the number of rows it affected. For a
	// SELECT the count says nothing about the result rows; callers
	// wanting rows use IQuery.
	Query(ctx context.Context, q *Query) (rowsAffected int64, err error)

	// IQuery runs a SELECT and returns a streaming row iterator. Each
	// row decodes into a map[string]any keyed by column name.
	IQuery(ctx context.Context, q *Query) (QueryIterator[map[string]any], error)
}

// Transactor runs action against a transactional view of the adapter.
// action must use only the adapter handed to it, not the adapter
// Transaction was called on — that outer adapter's operations run
// outside the transaction. Nesting is not supported: calling
// Transaction again from within action returns an error.
// SQLiteAdapter recognizes the nested call through the ctx handed to
// action.
type Transactor interface {
	Transaction(ctx context.Context, action func(ctx context.Context, tx NoSQLAdapter) error) error
}

// KeyValueStore is local, adapter-private scratch storage (§4.6):
// independent named stores of opaque byte values, with no filtering or
// query surface — just get/set/delete by key.
type KeyValueStore interface {
	AddStore(ctx context.Context, name string) error
	RemoveStore(ctx context.Context, name string) error
	GetValue(ctx context.Context, store, key string) ([]byte, bool, error)
	GetValues(ctx context.Context, store string) (map[string][]byte, error)
	SetValue(ctx context.Context, store, key string, value []byte) error
	DeleteValue(ctx context.Context, store, key string) error
	ClearValues(ctx context.Context, store string) error
}

// Adapter is the full storage contract a container's controllers
// program against. Not every adapter implements SQLAdapter — adapters
// without a relational engine behind them (the in-memory adapter)
// return ErrNotSupported from Query/IQuery.
type Adapter interface {
	NoSQLAdapter
	SQLAdapter
	Transactor
	KeyValueStore
	Close() error
}
