package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/coaty-io/coaty-go/filter"
	"github.com/coaty-io/coaty-go/object"
)

func newSQLiteAdapter(t *testing.T) *SQLiteAdapter {
	t.Helper()
	path := filepath.Join(t.TempDir(), "coaty.db")
	a, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestSQLiteAdapter_InsertFindUpdateDelete(t *testing.T) {
	ctx := context.Background()
	a := newSQLiteAdapter(t)

	if err := a.AddCollection(ctx, "tasks"); err != nil {
		t.Fatalf("AddCollection() error = %v", err)
	}

	task := newTask("clean-up", 1)
	if err := a.InsertObjects(ctx, "tasks", []object.Object{task}, false); err != nil {
		t.Fatalf("InsertObjects() error = %v", err)
	}

	found, ok, err := a.FindObjectByID(ctx, "tasks", task.ObjectID)
	if err != nil || !ok {
		t.Fatalf("FindObjectByID() = (%v, %v, %v), want a hit", found, ok, err)
	}
	if found["name"] != "clean-up" {
		t.Errorf("name = %v, want clean-up", found["name"])
	}

	if err := a.UpdateObjectProperty(ctx, "tasks", []ObjectID{task.ObjectID}, "status", float64(5), false); err != nil {
		t.Fatalf("UpdateObjectProperty() error = %v", err)
	}
	found, _, _ = a.FindObjectByID(ctx, "tasks", task.ObjectID)
	if found["status"] != float64(5) {
		t.Errorf("status = %v, want 5", found["status"])
	}

	n, err := a.DeleteObjectsByID(ctx, "tasks", []ObjectID{task.ObjectID})
	if err != nil || n != 1 {
		t.Fatalf("DeleteObjectsByID() = (%d, %v), want (1, nil)", n, err)
	}
	if _, ok, _ := a.FindObjectByID(ctx, "tasks", task.ObjectID); ok {
		t.Error("task should be gone after delete")
	}
}

func TestSQLiteAdapter_FindObjectsFiltersAndCounts(t *testing.T) {
	ctx := context.Background()
	a := newSQLiteAdapter(t)
	if err := a.AddCollection(ctx, "tasks"); err != nil {
		t.Fatal(err)
	}

	for _, s := range []int{1, 2, 1, 3} {
		if err := a.InsertObjects(ctx, "tasks", []object.Object{newTask("t", s)}, false); err != nil {
			t.Fatal(err)
		}
	}

	f := filter.ObjectFilter{Condition: filter.Leaf(filter.Path("status"), filter.OpEquals, float64(1))}
	n, err := a.CountObjects(ctx, "tasks", f)
	if err != nil || n != 2 {
		t.Fatalf("CountObjects() = (%d, %v), want (2, nil)", n, err)
	}

	it, err := a.FindObjects(ctx, "tasks", f)
	if err != nil {
		t.Fatal(err)
	}
	count, _ := it.ForEach(func(map[string]any) bool { return true })
	if count != 2 {
		t.Fatalf("FindObjects() count = %d, want 2", count)
	}
}

func TestSQLiteAdapter_TransactionRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	a := newSQLiteAdapter(t)
	if err := a.AddCollection(ctx, "tasks"); err != nil {
		t.Fatal(err)
	}
	task := newTask("a", 0)

	err := a.Transaction(ctx, func(ctx context.Context, tx NoSQLAdapter) error {
		if err := tx.InsertObjects(ctx, "tasks", []object.Object{task}, false); err != nil {
			return err
		}
		return context.DeadlineExceeded
	})
	if err == nil {
		t.Fatal("Transaction() should propagate the action's error")
	}
	if _, ok, _ := a.FindObjectByID(ctx, "tasks", task.ObjectID); ok {
		t.Error("a rolled-back transaction's writes must not be visible")
	}
}

func TestSQLiteAdapter_TransactionCommitsOnSuccess(t *testing.T) {
	ctx := context.Background()
	a := newSQLiteAdapter(t)
	if err := a.AddCollection(ctx, "tasks"); err != nil {
		t.Fatal(err)
	}
	task := newTask("a", 0)

	err := a.Transaction(ctx, func(ctx context.Context, tx NoSQLAdapter) error {
		return tx.InsertObjects(ctx, "tasks", []object.Object{task}, false)
	})
	if err != nil {
		t.Fatalf("Transaction() error = %v", err)
	}
	if _, ok, _ := a.FindObjectByID(ctx, "tasks", task.ObjectID); !ok {
		t.Error("committed transaction should be visible afterward")
	}
}

func TestSQLiteAdapter_KeyValueStore(t *testing.T) {
	ctx := context.Background()
	a := newSQLiteAdapter(t)

	if err := a.AddStore(ctx, "settings"); err != nil {
		t.Fatal(err)
	}
	if err := a.SetValue(ctx, "settings", "k", []byte("v1")); err != nil {
		t.Fatal(err)
	}
	// SetValue twice exercises the ON CONFLICT upsert path.
	if err := a.SetValue(ctx, "settings", "k", []byte("v2")); err != nil {
		t.Fatal(err)
	}
	v, ok, err := a.GetValue(ctx, "settings", "k")
	if err != nil || !ok || string(v) != "v2" {
		t.Fatalf("GetValue() = (%s, %v, %v), want (v2, true, nil)", v, ok, err)
	}

	vals, err := a.GetValues(ctx, "settings")
	if err != nil || len(vals) != 1 {
		t.Fatalf("GetValues() = (%v, %v), want one entry", vals, err)
	}
}

func TestSQLiteAdapter_QueryAndIQuery(t *testing.T) {
	ctx := context.Background()
	a := newSQLiteAdapter(t)
	if err := a.AddCollection(ctx, "tasks"); err != nil {
		t.Fatal(err)
	}
	if err := a.InsertObjects(ctx, "tasks", []object.Object{newTask("a", 1), newTask("b", 2)}, false); err != nil {
		t.Fatal(err)
	}

	it, err := a.IQuery(ctx, New("SELECT id FROM ", Ident("coaty_tasks")))
	if err != nil {
		t.Fatalf("IQuery() error = %v", err)
	}
	count, _ := it.ForEach(func(row map[string]any) bool {
		if _, ok := row["id"]; !ok {
			t.Error("row missing id column")
		}
		return true
	})
	if count != 2 {
		t.Fatalf("IQuery() row count = %d, want 2", count)
	}

	affected, err := a.Query(ctx, New("DELETE FROM ", Ident("coaty_tasks")))
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if affected != 2 {
		t.Fatalf("Query() rowsAffected = %d, want 2", affected)
	}
}
