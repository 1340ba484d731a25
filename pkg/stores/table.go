package stores

import (
	"sync"
)

// Record is implemented by every record kind held in a Table.
type Record interface {
	RecordID() string
}

// Table is an in-memory collection of one record kind keyed by ID.
// Writes are upserts and the last write wins. It is safe for concurrent use.
type Table[T Record] struct {
	mu      sync.RWMutex
	rows    map[string]T
	order   []string
	version uint64

	// onWrite is called after every Add with the records written.
	onWrite func(records []T)

	// onRemove is called after every Remove with the IDs deleted.
	onRemove func(ids []string)
}

// NewTable creates an empty table.
func NewTable[T Record]() *Table[T] {
	return &Table[T]{
		rows: make(map[string]T),
	}
}

// Add upserts records by ID. Records with an empty ID are ignored.
func (t *Table[T]) Add(records ...T) {
	written := make([]T, 0, len(records))

	t.mu.Lock()
	for _, r := range records {
		id := r.RecordID()
		if id == "" {
			continue
		}
		if _, exists := t.rows[id]; !exists {
			t.order = append(t.order, id)
		}
		t.rows[id] = r
		written = append(written, r)
	}
	if len(written) > 0 {
		t.version++
	}
	hook := t.onWrite
	t.mu.Unlock()

	if hook != nil && len(written) > 0 {
		hook(written)
	}
}

// Remove deletes records by ID.
func (t *Table[T]) Remove(ids ...string) {
	removed := make([]string, 0, len(ids))

	t.mu.Lock()
	for _, id := range ids {
		if _, ok := t.rows[id]; !ok {
			continue
		}
		delete(t.rows, id)
		for i, existing := range t.order {
			if existing == id {
				t.order = append(t.order[:i], t.order[i+1:]...)
				break
			}
		}
		removed = append(removed, id)
	}
	if len(removed) > 0 {
		t.version++
	}
	hook := t.onRemove
	t.mu.Unlock()

	if hook != nil && len(removed) > 0 {
		hook(removed)
	}
}

// SelectByID returns the record with the given ID, or the zero value.
func (t *Table[T]) SelectByID(id string) T {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rows[id]
}

// SelectAsList returns all records in first-insertion order.
func (t *Table[T]) SelectAsList() []T {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]T, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.rows[id])
	}
	return out
}

// Len returns the number of records.
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// Version increments on every write. Derived selectors compare versions to
// decide whether a cached result is still valid.
func (t *Table[T]) Version() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.version
}

// load replaces contents without firing the write hook.
func (t *Table[T]) load(records []T) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, r := range records {
		id := r.RecordID()
		if id == "" {
			continue
		}
		if _, exists := t.rows[id]; !exists {
			t.order = append(t.order, id)
		}
		t.rows[id] = r
	}
	t.version++
}

func (t *Table[T]) setWriteHook(fn func(records []T)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onWrite = fn
}

func (t *Table[T]) setRemoveHook(fn func(ids []string)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onRemove = fn
}
