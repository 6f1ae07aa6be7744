package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/coaty-io/coaty-go/filter"
	"github.com/coaty-io/coaty-go/object"
)

// MemoryAdapter is an in-process, non-durable Adapter implementation:
// collections of decoded JSON object trees guarded by a mutex, scratch
// key-value stores alongside them. It has no relational engine behind
// it, so Query and IQuery always return ErrNotSupported. Intended for
// tests and ephemeral containers, not production persistence.
type MemoryAdapter struct {
	mu          sync.Mutex
	collections map[string]map[ObjectID]map[string]any
	kv          map[string]map[string][]byte
	closed      bool
	inTx        bool
}

// NewMemoryAdapter returns a ready-to-use MemoryAdapter with no
// collections or stores yet created.
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		collections: make(map[string]map[ObjectID]map[string]any),
		kv:          make(map[string]map[string][]byte),
	}
}

func toJSONTree(obj object.Object) (map[string]any, error) {
	b, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("store: marshal object: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("store: decode object to JSON tree: %w", err)
	}
	return m, nil
}

func idOf(m map[string]any) (ObjectID, error) {
	raw, ok := m["objectId"]
	if !ok {
		return ObjectID{}, fmt.Errorf("store: object has no objectId property")
	}
	s, ok := raw.(string)
	if !ok {
		return ObjectID{}, fmt.Errorf("store: objectId property is not a string")
	}
	return object.ParseObjectID(s)
}

func cloneTree(m map[string]any) map[string]any {
	b, _ := json.Marshal(m)
	var out map[string]any
	_ = json.Unmarshal(b, &out)
	return out
}

func (m *MemoryAdapter) checkOpen() error {
	if m.closed {
		return ErrClosed
	}
	return nil
}

func (m *MemoryAdapter) AddCollection(ctx context.Context, collection string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return err
	}
	if _, ok := m.collections[collection]; !ok {
		m.collections[collection] = make(map[ObjectID]map[string]any)
	}
	return nil
}

func (m *MemoryAdapter) RemoveCollection(ctx context.Context, collection string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return err
	}
	delete(m.collections, collection)
	return nil
}

func (m *MemoryAdapter) ClearCollection(ctx context.Context, collection string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return err
	}
	m.collections[collection] = make(map[ObjectID]map[string]any)
	return nil
}

func (m *MemoryAdapter) InsertObjects(ctx context.Context, collection string, objs []object.Object, replaceExisting bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return err
	}
	c, ok := m.collections[collection]
	if !ok {
		c = make(map[ObjectID]map[string]any)
		m.collections[collection] = c
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
		if _, exists := c[id]; exists && !replaceExisting {
			return fmt.Errorf("store: object %s already exists in collection %q", id, collection)
		}
		c[id] = tree
	}
	return nil
}

func (m *MemoryAdapter) UpdateObjects(ctx context.Context, collection string, objs []object.Object) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return err
	}
	c, ok := m.collections[collection]
	if !ok {
		return nil
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
		if _, exists := c[id]; exists {
			c[id] = tree
		}
	}
	return nil
}

func (m *MemoryAdapter) UpdateObjectProperty(ctx context.Context, collection string, ids []ObjectID, property string, value any, createMissing bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return err
	}
	c, ok := m.collections[collection]
	if !ok {
		return nil
	}
	path := filter.Path(property)
	for _, id := range ids {
		tree, ok := c[id]
		if !ok {
			continue
		}
		setPropertyPath(tree, path, value, createMissing)
	}
	return nil
}

// setPropertyPath sets value at path within tree, creating intermediate
// maps only if createMissing is set. Mirrors filter.resolve's
// map[string]any-only traversal — arrays are not indexable by path.
func setPropertyPath(tree map[string]any, path []string, value any, createMissing bool) {
	if len(path) == 0 {
		return
	}
	cur := tree
	for i := 0; i < len(path)-1; i++ {
		step := path[i]
		next, ok := cur[step].(map[string]any)
		if !ok {
			if !createMissing {
				return
			}
			next = make(map[string]any)
			cur[step] = next
		}
		cur = next
	}
	last := path[len(path)-1]
	if _, exists := cur[last]; !exists && !createMissing {
		return
	}
	cur[last] = value
}

func (m *MemoryAdapter) DeleteObjectsByID(ctx context.Context, collection string, ids []ObjectID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return 0, err
	}
	c, ok := m.collections[collection]
	if !ok {
		return 0, nil
	}
	n := 0
	for _, id := range ids {
		if _, exists := c[id]; exists {
			delete(c, id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryAdapter) DeleteObjects(ctx context.Context, collection string, f filter.ObjectFilter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return 0, err
	}
	c, ok := m.collections[collection]
	if !ok {
		return 0, nil
	}
	n := 0
	for id, tree := range c {
		if filter.Matches(tree, f) {
			delete(c, id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryAdapter) FindObjectByID(ctx context.Context, collection string, id ObjectID) (map[string]any, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return nil, false, err
	}
	c, ok := m.collections[collection]
	if !ok {
		return nil, false, nil
	}
	tree, ok := c[id]
	if !ok {
		return nil, false, nil
	}
	return cloneTree(tree), true, nil
}

func (m *MemoryAdapter) FindObjects(ctx context.Context, collection string, f filter.ObjectFilter, joins ...JoinCondition) (QueryIterator[map[string]any], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	c := m.collections[collection]
	var matched []any
	for _, tree := range c {
		if filter.Matches(tree, f) {
			matched = append(matched, cloneTree(tree))
		}
	}
	ordered := filter.Apply(matched, f)

	results := make([]map[string]any, 0, len(ordered))
	for _, o := range ordered {
		tree := o.(map[string]any)
		for _, j := range joins {
			m.applyJoinLocked(tree, j)
		}
		results = append(results, tree)
	}
	return sliceIterator(results), nil
}

// applyJoinLocked attaches the related object(s) in j.Collection to
// tree under j.AsProperty, called with m.mu already held.
func (m *MemoryAdapter) applyJoinLocked(tree map[string]any, j JoinCondition) {
	related, ok := m.collections[j.Collection]
	if !ok {
		return
	}
	localVal, ok := resolveTreePath(tree, j.LocalProperty)
	if !ok {
		return
	}

	if j.IsLocalPropertyArray {
		ids, ok := localVal.([]any)
		if !ok {
			return
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
			if obj, ok := related[id]; ok {
				out = append(out, cloneTree(obj))
			}
		}
		tree[j.AsProperty] = out
		return
	}

	s, ok := localVal.(string)
	if !ok {
		return
	}
	id, err := object.ParseObjectID(s)
	if err != nil {
		return
	}
	if obj, ok := related[id]; ok {
		tree[j.AsProperty] = cloneTree(obj)
	}
}

func resolveTreePath(tree map[string]any, path []string) (any, bool) {
	var cur any = tree
	for _, step := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := m[step]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

func (m *MemoryAdapter) CountObjects(ctx context.Context, collection string, f filter.ObjectFilter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return 0, err
	}
	c := m.collections[collection]
	n := 0
	for _, tree := range c {
		if filter.Matches(tree, f) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryAdapter) AggregateObjects(ctx context.Context, collection string, prop []string, op AggregateOp, f filter.ObjectFilter) (any, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return nil, false, err
	}
	c := m.collections[collection]

	switch op {
	case AggregateEvery, AggregateSome:
		any_ := false
		every := true
		seen := false
		for _, tree := range c {
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
			return nil, false, nil
		}
		if op == AggregateSome {
			return any_, true, nil
		}
		return every, true, nil

	default:
		var sum float64
		var max, min float64
		n := 0
		for _, tree := range c {
			if !filter.Matches(tree, f) {
				continue
			}
			v, ok := resolveTreePath(tree, prop)
			if !ok {
				continue
			}
			f64, isNum := v.(float64)
			if !isNum {
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
			return nil, false, nil
		}
		switch op {
		case AggregateSum:
			return sum, true, nil
		case AggregateAvg:
			return sum / float64(n), true, nil
		case AggregateMax:
			return max, true, nil
		case AggregateMin:
			return min, true, nil
		default:
			return nil, false, fmt.Errorf("store: unknown aggregate op %d", op)
		}
	}
}

func (m *MemoryAdapter) Query(ctx context.Context, q *Query) (int64, error) {
	return 0, ErrNotSupported
}

func (m *MemoryAdapter) IQuery(ctx context.Context, q *Query) (QueryIterator[map[string]any], error) {
	return nil, ErrNotSupported
}

func (m *MemoryAdapter) Transaction(ctx context.Context, action func(ctx context.Context, tx NoSQLAdapter) error) error {
	m.mu.Lock()
	if err := m.checkOpen(); err != nil {
		m.mu.Unlock()
		return err
	}
	if m.inTx {
		m.mu.Unlock()
		return fmt.Errorf("store: nested transactions are not supported")
	}
	snapshot := make(map[string]map[ObjectID]map[string]any, len(m.collections))
	for name, c := range m.collections {
		cc := make(map[ObjectID]map[string]any, len(c))
		for id, tree := range c {
			cc[id] = cloneTree(tree)
		}
		snapshot[name] = cc
	}
	tx := &MemoryAdapter{collections: snapshot, kv: m.kv, inTx: true}
	m.inTx = true
	m.mu.Unlock()

	err := action(ctx, tx)

	m.mu.Lock()
	m.inTx = false
	if err == nil {
		m.collections = tx.collections
	}
	m.mu.Unlock()
	return err
}

func (m *MemoryAdapter) AddStore(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return err
	}
	if _, ok := m.kv[name]; !ok {
		m.kv[name] = make(map[string][]byte)
	}
	return nil
}

func (m *MemoryAdapter) RemoveStore(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return err
	}
	delete(m.kv, name)
	return nil
}

func (m *MemoryAdapter) GetValue(ctx context.Context, storeName, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return nil, false, err
	}
	s, ok := m.kv[storeName]
	if !ok {
		return nil, false, nil
	}
	v, ok := s[key]
	return v, ok, nil
}

func (m *MemoryAdapter) GetValues(ctx context.Context, storeName string) (map[string][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	s := m.kv[storeName]
	out := make(map[string][]byte, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryAdapter) SetValue(ctx context.Context, storeName, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return err
	}
	s, ok := m.kv[storeName]
	if !ok {
		s = make(map[string][]byte)
		m.kv[storeName] = s
	}
	s[key] = value
	return nil
}

func (m *MemoryAdapter) DeleteValue(ctx context.Context, storeName, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return err
	}
	if s, ok := m.kv[storeName]; ok {
		delete(s, key)
	}
	return nil
}

func (m *MemoryAdapter) ClearValues(ctx context.Context, storeName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return err
	}
	if _, ok := m.kv[storeName]; ok {
		m.kv[storeName] = make(map[string][]byte)
	}
	return nil
}

func (m *MemoryAdapter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

var (
	_ Adapter = (*MemoryAdapter)(nil)
)
