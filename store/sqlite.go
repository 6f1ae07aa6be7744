package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/coaty-io/coaty-go/filter"
	"github.com/coaty-io/coaty-go/object"
)

// SQLiteAdapter is a durable Adapter backed by a single SQLite
// database file (github.com/mattn/go-sqlite3). Collections are tables
// named "coaty_<collection>" holding one row per object: its id as a
// TEXT primary key and the full JSON-encoded object tree in a "doc"
// column — filter.ObjectFilter conditions run against the decoded tree
// in Go rather than being translated into WHERE clauses, trading SQL
// push-down for exact filter-package semantics. Applications needing
// indexed, engine-evaluated queries reach for Query/IQuery directly.
type SQLiteAdapter struct {
	db *sql.DB
}

// Open opens (creating if absent) a SQLite database at path and
// enables WAL mode and a 5000 ms busy timeout through the connection
// string.
func Open(path string) (*SQLiteAdapter, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping sqlite database: %w", err)
	}
	a := &SQLiteAdapter{db: db}
	if err := a.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

// OpenDB wraps an already-open *sql.DB, running the same migration
// Open does. Useful when the caller manages the connection lifecycle
// (e.g. an in-memory ":memory:" database shared across adapters in a
// test).
func OpenDB(db *sql.DB) (*SQLiteAdapter, error) {
	a := &SQLiteAdapter{db: db}
	if err := a.migrate(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *SQLiteAdapter) migrate() error {
	_, err := a.db.Exec(`
		CREATE TABLE IF NOT EXISTS coaty_collections (
			name TEXT PRIMARY KEY
		);
		CREATE TABLE IF NOT EXISTS coaty_kv_stores (
			name TEXT PRIMARY KEY
		);
		CREATE TABLE IF NOT EXISTS coaty_kv_values (
			store TEXT NOT NULL,
			key TEXT NOT NULL,
			value BLOB NOT NULL,
			PRIMARY KEY (store, key)
		);
	`)
	return err
}

func collectionTable(collection string) (string, error) {
	if !identPattern.MatchString(collection) {
		return "", fmt.Errorf("store: %q is not a valid collection name", collection)
	}
	return "coaty_" + collection, nil
}

func (a *SQLiteAdapter) AddCollection(ctx context.Context, collection string) error {
	table, err := collectionTable(collection)
	if err != nil {
		return err
	}
	if _, err := a.db.ExecContext(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS "%s" (id TEXT PRIMARY KEY, doc TEXT NOT NULL)`, table)); err != nil {
		return fmt.Errorf("store: create collection %q: %w", collection, err)
	}
	_, err = a.db.ExecContext(ctx, `INSERT OR IGNORE INTO coaty_collections(name) VALUES (?)`, collection)
	return err
}

func (a *SQLiteAdapter) RemoveCollection(ctx context.Context, collection string) error {
	table, err := collectionTable(collection)
	if err != nil {
		return err
	}
	if _, err := a.db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS "%s"`, table)); err != nil {
		return err
	}
	_, err = a.db.ExecContext(ctx, `DELETE FROM coaty_collections WHERE name = ?`, collection)
	return err
}

func (a *SQLiteAdapter) ClearCollection(ctx context.Context, collection string) error {
	table, err := collectionTable(collection)
	if err != nil {
		return err
	}
	_, err = a.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM "%s"`, table))
	return err
}

func (a *SQLiteAdapter) InsertObjects(ctx context.Context, collection string, objs []object.Object, replaceExisting bool) error {
	table, err := collectionTable(collection)
	if err != nil {
		return err
	}
	stmt := fmt.Sprintf(`INSERT INTO "%s" (id, doc) VALUES (?, ?)`, table)
	if replaceExisting {
		stmt = fmt.Sprintf(`INSERT OR REPLACE INTO "%s" (id, doc) VALUES (?, ?)`, table)
	}
	for _, obj := range objs {
		tree, err := toJSONTree(obj)
		if err != nil {
			return err
		}
		id, err := idOf(tree)
		if err != nil {
			return err
		}
		doc, err := json.Marshal(tree)
		if err != nil {
			return err
		}
		if _, err := a.db.ExecContext(ctx, stmt, id.String(), string(doc)); err != nil {
			return fmt.Errorf("store: insert object %s into %q: %w", id, collection, err)
		}
	}
	return nil
}

func (a *SQLiteAdapter) UpdateObjects(ctx context.Context, collection string, objs []object.Object) error {
	table, err := collectionTable(collection)
	if err != nil {
		return err
	}
	for _, obj := range objs {
		tree, err := toJSONTree(obj)
		if err != nil {
			return err
		}
		id, err := idOf(tree)
		if err != nil {
			return err
		}
		doc, err := json.Marshal(tree)
		if err != nil {
			return err
		}
		if _, err := a.db.ExecContext(ctx, fmt.Sprintf(
			`UPDATE "%s" SET doc = ? WHERE id = ?`, table), string(doc), id.String()); err != nil {
			return err
		}
	}
	return nil
}

func (a *SQLiteAdapter) UpdateObjectProperty(ctx context.Context, collection string, ids []ObjectID, property string, value any, createMissing bool) error {
	table, err := collectionTable(collection)
	if err != nil {
		return err
	}
	path := filter.Path(property)
	for _, id := range ids {
		var raw string
		err := a.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT doc FROM "%s" WHERE id = ?`, table), id.String()).Scan(&raw)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return err
		}
		var tree map[string]any
		if err := json.Unmarshal([]byte(raw), &tree); err != nil {
			return err
		}
		setPropertyPath(tree, path, value, createMissing)
		doc, err := json.Marshal(tree)
		if err != nil {
			return err
		}
		if _, err := a.db.ExecContext(ctx, fmt.Sprintf(
			`UPDATE "%s" SET doc = ? WHERE id = ?`, table), string(doc), id.String()); err != nil {
			return err
		}
	}
	return nil
}

func (a *SQLiteAdapter) DeleteObjectsByID(ctx context.Context, collection string, ids []ObjectID) (int, error) {
	table, err := collectionTable(collection)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, id := range ids {
		res, err := a.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM "%s" WHERE id = ?`, table), id.String())
		if err != nil {
			return n, err
		}
		affected, _ := res.RowsAffected()
		n += int(affected)
	}
	return n, nil
}

func (a *SQLiteAdapter) DeleteObjects(ctx context.Context, collection string, f filter.ObjectFilter) (int, error) {
	ids, err := a.matchingIDs(ctx, collection, f)
	if err != nil {
		return 0, err
	}
	return a.DeleteObjectsByID(ctx, collection, ids)
}

func (a *SQLiteAdapter) matchingIDs(ctx context.Context, collection string, f filter.ObjectFilter) ([]ObjectID, error) {
	table, err := collectionTable(collection)
	if err != nil {
		return nil, err
	}
	rows, err := a.db.QueryContext(ctx, fmt.Sprintf(`SELECT id, doc FROM "%s"`, table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []ObjectID
	for rows.Next() {
		var idStr, doc string
		if err := rows.Scan(&idStr, &doc); err != nil {
			return nil, err
		}
		var tree map[string]any
		if err := json.Unmarshal([]byte(doc), &tree); err != nil {
			return nil, err
		}
		if filter.Matches(tree, f) {
			id, err := object.ParseObjectID(idStr)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
	}
	return ids, rows.Err()
}

func (a *SQLiteAdapter) FindObjectByID(ctx context.Context, collection string, id ObjectID) (map[string]any, bool, error) {
	table, err := collectionTable(collection)
	if err != nil {
		return nil, false, err
	}
	var doc string
	err = a.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT doc FROM "%s" WHERE id = ?`, table), id.String()).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var tree map[string]any
	if err := json.Unmarshal([]byte(doc), &tree); err != nil {
		return nil, false, err
	}
	return tree, true, nil
}

func (a *SQLiteAdapter) FindObjects(ctx context.Context, collection string, f filter.ObjectFilter, joins ...JoinCondition) (QueryIterator[map[string]any], error) {
	table, err := collectionTable(collection)
	if err != nil {
		return nil, err
	}
	rows, err := a.db.QueryContext(ctx, fmt.Sprintf(`SELECT doc FROM "%s"`, table))
	if err != nil {
		return nil, err
	}

	var matched []any
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			rows.Close()
			return nil, err
		}
		var tree map[string]any
		if err := json.Unmarshal([]byte(doc), &tree); err != nil {
			rows.Close()
			return nil, err
		}
		if filter.Matches(tree, f) {
			matched = append(matched, tree)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	ordered := filter.Apply(matched, f)
	results := make([]map[string]any, 0, len(ordered))
	for _, o := range ordered {
		tree := o.(map[string]any)
		for _, j := range joins {
			if err := a.applyJoin(ctx, tree, j); err != nil {
				return nil, err
			}
		}
		results = append(results, tree)
	}
	return sliceIterator(results), nil
}

func (a *SQLiteAdapter) applyJoin(ctx context.Context, tree map[string]any, j JoinCondition) error {
	localVal, ok := resolveTreePath(tree, j.LocalProperty)
	if !ok {
		return nil
	}

	if j.IsLocalPropertyArray {
		ids, ok := localVal.([]any)
		if !ok {
			return nil
		}
		var out []map[string]any
		for _, idv := range ids {
			s, ok := idv.(string)
			if !ok {
				continue
			}
			id, err := object.ParseObjectID(s)
			if err != nil {
				continue
			}
			related, found, err := a.FindObjectByID(ctx, j.Collection, id)
			if err != nil {
				return err
			}
			if found {
				out = append(out, related)
			}
		}
		tree[j.AsProperty] = out
		return nil
	}

	s, ok := localVal.(string)
	if !ok {
		return nil
	}
	id, err := object.ParseObjectID(s)
	if err != nil {
		return nil
	}
	related, found, err := a.FindObjectByID(ctx, j.Collection, id)
	if err != nil {
		return err
	}
	if found {
		tree[j.AsProperty] = related
	}
	return nil
}

func (a *SQLiteAdapter) CountObjects(ctx context.Context, collection string, f filter.ObjectFilter) (int, error) {
	ids, err := a.matchingIDs(ctx, collection, f)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

func (a *SQLiteAdapter) AggregateObjects(ctx context.Context, collection string, prop []string, op AggregateOp, f filter.ObjectFilter) (any, bool, error) {
	table, err := collectionTable(collection)
	if err != nil {
		return nil, false, err
	}
	rows, err := a.db.QueryContext(ctx, fmt.Sprintf(`SELECT doc FROM "%s"`, table))
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	switch op {
	case AggregateEvery, AggregateSome:
		any_, every, seen := false, true, false
		for rows.Next() {
			var doc string
			if err := rows.Scan(&doc); err != nil {
				return nil, false, err
			}
			var tree map[string]any
			if err := json.Unmarshal([]byte(doc), &tree); err != nil {
				return nil, false, err
			}
			if !filter.Matches(tree, f) {
				continue
			}
			v, ok := resolveTreePath(tree, prop)
			b, isBool := v.(bool)
			if !ok || !isBool {
				continue
			}
			seen = true
			if b {
				any_ = true
			} else {
				every = false
			}
		}
		if !seen {
			return nil, false, rows.Err()
		}
		if op == AggregateSome {
			return any_, true, rows.Err()
		}
		return every, true, rows.Err()

	default:
		var sum, max, min float64
		n := 0
		for rows.Next() {
			var doc string
			if err := rows.Scan(&doc); err != nil {
				return nil, false, err
			}
			var tree map[string]any
			if err := json.Unmarshal([]byte(doc), &tree); err != nil {
				return nil, false, err
			}
			if !filter.Matches(tree, f) {
				continue
			}
			v, ok := resolveTreePath(tree, prop)
			f64, isNum := v.(float64)
			if !ok || !isNum {
				continue
			}
			if n == 0 {
				max, min = f64, f64
			} else {
				if f64 > max {
					max = f64
				}
				if f64 < min {
					min = f64
				}
			}
			sum += f64
			n++
		}
		if n == 0 {
			return nil, false, rows.Err()
		}
		switch op {
		case AggregateSum:
			return sum, true, rows.Err()
		case AggregateAvg:
			return sum / float64(n), true, rows.Err()
		case AggregateMax:
			return max, true, rows.Err()
		case AggregateMin:
			return min, true, rows.Err()
		default:
			return nil, false, fmt.Errorf("store: unknown aggregate op %d", op)
		}
	}
}

// Query runs a mutating statement built with the sqlbuilder AST and
// returns the number of rows it affected.
func (a *SQLiteAdapter) Query(ctx context.Context, q *Query) (int64, error) {
	text, args, err := q.Build()
	if err != nil {
		return 0, err
	}
	res, err := a.db.ExecContext(ctx, text, args...)
	if err != nil {
		return 0, fmt.Errorf("store: query %q: %w", text, err)
	}
	return res.RowsAffected()
}

// IQuery runs a SELECT built with the sqlbuilder AST and streams the
// result rows, each decoded into a map keyed by column name.
func (a *SQLiteAdapter) IQuery(ctx context.Context, q *Query) (QueryIterator[map[string]any], error) {
	text, args, err := q.Build()
	if err != nil {
		return nil, err
	}
	rows, err := a.db.QueryContext(ctx, text, args...)
	if err != nil {
		return nil, fmt.Errorf("store: iquery %q: %w", text, err)
	}
	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, err
	}

	next := func() (map[string]any, bool, error) {
		if !rows.Next() {
			return nil, false, rows.Err()
		}
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, false, err
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			row[c] = normalizeSQLValue(vals[i])
		}
		return row, true, nil
	}
	return newSourceIterator(next, rows.Close), nil
}

// normalizeSQLValue turns a database/sql driver value ([]byte for TEXT
// columns under mattn/go-sqlite3) into the string/number/nil shape
// callers expect from a decoded row.
func normalizeSQLValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// sqliteTx holds an open *sql.Tx but has no methods; Transaction hands
// its action a sqliteTxAdapter instead.
type sqliteTx struct {
	tx *sql.Tx
}

func (a *SQLiteAdapter) Transaction(ctx context.Context, action func(ctx context.Context, tx NoSQLAdapter) error) error {
	type nestedTxKey struct{}
	if ctx.Value(nestedTxKey{}) != nil {
		return fmt.Errorf("store: nested transactions are not supported")
	}
	sqlTx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	txAdapter := &sqliteTxAdapter{tx: sqlTx}
	if err := action(context.WithValue(ctx, nestedTxKey{}, true), txAdapter); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	return sqlTx.Commit()
}

// sqliteTxAdapter mirrors SQLiteAdapter's NoSQL operations, issued
// against an open *sql.Tx instead of the database handle directly, so
// a Transaction's action sees a consistent, all-or-nothing view.
type sqliteTxAdapter struct {
	tx *sql.Tx
}

var _ NoSQLAdapter = (*sqliteTxAdapter)(nil)

func (t *sqliteTxAdapter) AddCollection(ctx context.Context, collection string) error {
	table, err := collectionTable(collection)
	if err != nil {
		return err
	}
	if _, err := t.tx.ExecContext(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS "%s" (id TEXT PRIMARY KEY, doc TEXT NOT NULL)`, table)); err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, `INSERT OR IGNORE INTO coaty_collections(name) VALUES (?)`, collection)
	return err
}

func (t *sqliteTxAdapter) RemoveCollection(ctx context.Context, collection string) error {
	table, err := collectionTable(collection)
	if err != nil {
		return err
	}
	if _, err := t.tx.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS "%s"`, table)); err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, `DELETE FROM coaty_collections WHERE name = ?`, collection)
	return err
}

func (t *sqliteTxAdapter) ClearCollection(ctx context.Context, collection string) error {
	table, err := collectionTable(collection)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM "%s"`, table))
	return err
}

func (t *sqliteTxAdapter) InsertObjects(ctx context.Context, collection string, objs []object.Object, replaceExisting bool) error {
	table, err := collectionTable(collection)
	if err != nil {
		return err
	}
	stmt := fmt.Sprintf(`INSERT INTO "%s" (id, doc) VALUES (?, ?)`, table)
	if replaceExisting {
		stmt = fmt.Sprintf(`INSERT OR REPLACE INTO "%s" (id, doc) VALUES (?, ?)`, table)
	}
	for _, obj := range objs {
		tree, err := toJSONTree(obj)
		if err != nil {
			return err
		}
		id, err := idOf(tree)
		if err != nil {
			return err
		}
		doc, err := json.Marshal(tree)
		if err != nil {
			return err
		}
		if _, err := t.tx.ExecContext(ctx, stmt, id.String(), string(doc)); err != nil {
			return err
		}
	}
	return nil
}

func (t *sqliteTxAdapter) UpdateObjects(ctx context.Context, collection string, objs []object.Object) error {
	table, err := collectionTable(collection)
	if err != nil {
		return err
	}
	for _, obj := range objs {
		tree, err := toJSONTree(obj)
		if err != nil {
			return err
		}
		id, err := idOf(tree)
		if err != nil {
			return err
		}
		doc, err := json.Marshal(tree)
		if err != nil {
			return err
		}
		if _, err := t.tx.ExecContext(ctx, fmt.Sprintf(`UPDATE "%s" SET doc = ? WHERE id = ?`, table), string(doc), id.String()); err != nil {
			return err
		}
	}
	return nil
}

func (t *sqliteTxAdapter) UpdateObjectProperty(ctx context.Context, collection string, ids []ObjectID, property string, value any, createMissing bool) error {
	table, err := collectionTable(collection)
	if err != nil {
		return err
	}
	path := filter.Path(property)
	for _, id := range ids {
		var raw string
		err := t.tx.QueryRowContext(ctx, fmt.Sprintf(`SELECT doc FROM "%s" WHERE id = ?`, table), id.String()).Scan(&raw)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return err
		}
		var tree map[string]any
		if err := json.Unmarshal([]byte(raw), &tree); err != nil {
			return err
		}
		setPropertyPath(tree, path, value, createMissing)
		doc, err := json.Marshal(tree)
		if err != nil {
			return err
		}
		if _, err := t.tx.ExecContext(ctx, fmt.Sprintf(`UPDATE "%s" SET doc = ? WHERE id = ?`, table), string(doc), id.String()); err != nil {
			return err
		}
	}
	return nil
}

func (t *sqliteTxAdapter) DeleteObjectsByID(ctx context.Context, collection string, ids []ObjectID) (int, error) {
	table, err := collectionTable(collection)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, id := range ids {
		res, err := t.tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM "%s" WHERE id = ?`, table), id.String())
		if err != nil {
			return n, err
		}
		affected, _ := res.RowsAffected()
		n += int(affected)
	}
	return n, nil
}

func (t *sqliteTxAdapter) DeleteObjects(ctx context.Context, collection string, f filter.ObjectFilter) (int, error) {
	table, err := collectionTable(collection)
	if err != nil {
		return 0, err
	}
	rows, err := t.tx.QueryContext(ctx, fmt.Sprintf(`SELECT id, doc FROM "%s"`, table))
	if err != nil {
		return 0, err
	}
	var ids []ObjectID
	for rows.Next() {
		var idStr, doc string
		if err := rows.Scan(&idStr, &doc); err != nil {
			rows.Close()
			return 0, err
		}
		var tree map[string]any
		if err := json.Unmarshal([]byte(doc), &tree); err != nil {
			rows.Close()
			return 0, err
		}
		if filter.Matches(tree, f) {
			id, err := object.ParseObjectID(idStr)
			if err == nil {
				ids = append(ids, id)
			}
		}
	}
	rows.Close()
	return t.DeleteObjectsByID(ctx, collection, ids)
}

func (t *sqliteTxAdapter) FindObjectByID(ctx context.Context, collection string, id ObjectID) (map[string]any, bool, error) {
	table, err := collectionTable(collection)
	if err != nil {
		return nil, false, err
	}
	var doc string
	err = t.tx.QueryRowContext(ctx, fmt.Sprintf(`SELECT doc FROM "%s" WHERE id = ?`, table), id.String()).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var tree map[string]any
	if err := json.Unmarshal([]byte(doc), &tree); err != nil {
		return nil, false, err
	}
	return tree, true, nil
}

func (t *sqliteTxAdapter) FindObjects(ctx context.Context, collection string, f filter.ObjectFilter, joins ...JoinCondition) (QueryIterator[map[string]any], error) {
	table, err := collectionTable(collection)
	if err != nil {
		return nil, err
	}
	rows, err := t.tx.QueryContext(ctx, fmt.Sprintf(`SELECT doc FROM "%s"`, table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var matched []any
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var tree map[string]any
		if err := json.Unmarshal([]byte(doc), &tree); err != nil {
			return nil, err
		}
		if filter.Matches(tree, f) {
			matched = append(matched, tree)
		}
	}
	ordered := filter.Apply(matched, f)
	results := make([]map[string]any, 0, len(ordered))
	for _, o := range ordered {
		results = append(results, o.(map[string]any))
	}
	return sliceIterator(results), nil
}

func (t *sqliteTxAdapter) CountObjects(ctx context.Context, collection string, f filter.ObjectFilter) (int, error) {
	it, err := t.FindObjects(ctx, collection, f)
	if err != nil {
		return 0, err
	}
	n, _ := it.ForEach(func(map[string]any) bool { return true })
	return n, nil
}

func (t *sqliteTxAdapter) AggregateObjects(ctx context.Context, collection string, prop []string, op AggregateOp, f filter.ObjectFilter) (any, bool, error) {
	it, err := t.FindObjects(ctx, collection, f)
	if err != nil {
		return nil, false, err
	}
	var sum, max, min float64
	var anyVal, every bool
	every = true
	n, seenBool := 0, false
	it.ForEach(func(tree map[string]any) bool {
		v, ok := resolveTreePath(tree, prop)
		if !ok {
			return true
		}
		switch op {
		case AggregateEvery, AggregateSome:
			if b, ok := v.(bool); ok {
				seenBool = true
				if b {
					anyVal = true
				} else {
					every = false
				}
			}
		default:
			if f64, ok := v.(float64); ok {
				if n == 0 {
					max, min = f64, f64
				} else {
					if f64 > max {
						max = f64
					}
					if f64 < min {
						min = f64
					}
				}
				sum += f64
				n++
			}
		}
		return true
	})
	switch op {
	case AggregateSome:
		return anyVal, seenBool, nil
	case AggregateEvery:
		return every, seenBool, nil
	case AggregateSum:
		return sum, n > 0, nil
	case AggregateAvg:
		if n == 0 {
			return nil, false, nil
		}
		return sum / float64(n), true, nil
	case AggregateMax:
		return max, n > 0, nil
	case AggregateMin:
		return min, n > 0, nil
	default:
		return nil, false, fmt.Errorf("store: unknown aggregate op %d", op)
	}
}

func (a *SQLiteAdapter) AddStore(ctx context.Context, name string) error {
	_, err := a.db.ExecContext(ctx, `INSERT OR IGNORE INTO coaty_kv_stores(name) VALUES (?)`, name)
	return err
}

func (a *SQLiteAdapter) RemoveStore(ctx context.Context, name string) error {
	if _, err := a.db.ExecContext(ctx, `DELETE FROM coaty_kv_values WHERE store = ?`, name); err != nil {
		return err
	}
	_, err := a.db.ExecContext(ctx, `DELETE FROM coaty_kv_stores WHERE name = ?`, name)
	return err
}

func (a *SQLiteAdapter) GetValue(ctx context.Context, storeName, key string) ([]byte, bool, error) {
	var val []byte
	err := a.db.QueryRowContext(ctx, `SELECT value FROM coaty_kv_values WHERE store = ? AND key = ?`, storeName, key).Scan(&val)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (a *SQLiteAdapter) GetValues(ctx context.Context, storeName string) (map[string][]byte, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT key, value FROM coaty_kv_values WHERE store = ?`, storeName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string][]byte)
	for rows.Next() {
		var key string
		var val []byte
		if err := rows.Scan(&key, &val); err != nil {
			return nil, err
		}
		out[key] = val
	}
	return out, rows.Err()
}

func (a *SQLiteAdapter) SetValue(ctx context.Context, storeName, key string, value []byte) error {
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO coaty_kv_values(store, key, value) VALUES (?, ?, ?)
		 ON CONFLICT(store, key) DO UPDATE SET value = excluded.value`,
		storeName, key, value)
	return err
}

func (a *SQLiteAdapter) DeleteValue(ctx context.Context, storeName, key string) error {
	_, err := a.db.ExecContext(ctx, `DELETE FROM coaty_kv_values WHERE store = ? AND key = ?`, storeName, key)
	return err
}

func (a *SQLiteAdapter) ClearValues(ctx context.Context, storeName string) error {
	_, err := a.db.ExecContext(ctx, `DELETE FROM coaty_kv_values WHERE store = ?`, storeName)
	return err
}

func (a *SQLiteAdapter) Close() error {
	return a.db.Close()
}

var _ Adapter = (*SQLiteAdapter)(nil)
