// Package table holds the consolidated record table: every record merged from
// every source, keyed by an identifier field, plus the union of all column
// names seen so far.
//
// A Table is guarded by a single mutex. Upsert performs the whole
// check-then-insert-or-merge step inside that lock, so concurrent producers can
// never create two records for one identifier. The order in which Upsert calls
// arrive still decides which value wins a field conflict: the last writer wins.
package table

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
)

const DefaultIDField = "ID"

var ErrRecordNotFound = errors.New("record not found")

type Table struct {
	mu          sync.Mutex
	idField     string
	placeholder string
	records     []*Record
	byID        map[string]*Record
	columns     []string
	seen        map[string]struct{}
}

// New returns an empty table keyed by idField. placeholder is written for
// every column a record never received.
func New(idField, placeholder string) *Table {
	if strings.TrimSpace(idField) == "" {
		idField = DefaultIDField
	}
	return &Table{
		idField:     idField,
		placeholder: placeholder,
		byID:        map[string]*Record{},
		seen:        map[string]struct{}{},
	}
}

func (t *Table) IDField() string     { return t.idField }
func (t *Table) Placeholder() string { return t.placeholder }

// ContainsID reports whether a record with exactly this identifier is owned
// by the table. id is compared as given; callers normalize it.
func (t *Table) ContainsID(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.byID[id]
	return ok
}

// Record returns a copy of the record with this identifier.
func (t *Table) Record(id string) (*Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s=%q", ErrRecordNotFound, t.idField, id)
	}
	return r.Clone(), nil
}

// Add adopts r without checking for an existing identifier. Use Upsert unless
// ContainsID has already returned false for r's identifier.
func (t *Table) Add(r *Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.add(r)
}

func (t *Table) add(r *Record) {
	t.records = append(t.records, r)
	if id, ok := r.Field(t.idField); ok {
		t.byID[id] = r
	}
}

// Upsert inserts r as a new entity, or merges its fields into the record that
// already carries its identifier. It reports whether a merge happened.
// Records without an identifier are always inserted.
func (t *Table) Upsert(r *Record) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	id, ok := r.Field(t.idField)
	if ok {
		if old, exists := t.byID[id]; exists {
			old.Merge(r)
			return true
		}
	}
	t.add(r)
	return false
}

// UpdateColumns appends every name not yet in the schema, in the given order.
func (t *Table) UpdateColumns(names []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, name := range names {
		if _, ok := t.seen[name]; ok {
			continue
		}
		t.seen[name] = struct{}{}
		t.columns = append(t.columns, name)
	}
}

// Sort orders records by ascending identifier and moves the identifier column
// to the front of the schema. Records without an identifier sort first.
func (t *Table) Sort() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sort()
}

func (t *Table) sort() {
	cols := make([]string, 0, len(t.columns)+1)
	cols = append(cols, t.idField)
	for _, c := range t.columns {
		if c != t.idField {
			cols = append(cols, c)
		}
	}
	t.columns = cols
	t.seen[t.idField] = struct{}{}

	slices.SortStableFunc(t.records, func(a, b *Record) int {
		aID, aOK := a.Field(t.idField)
		bID, bOK := b.Field(t.idField)
		switch {
		case !aOK && !bOK:
			return 0
		case !aOK:
			return -1
		case !bOK:
			return 1
		}
		return strings.Compare(aID, bID)
	})
}

func (t *Table) Columns() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.columns)
}

// Records returns copies of every record in table order. Changing a copy
// does not change the table.
func (t *Table) Records() []*Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Record, len(t.records))
	for i, r := range t.records {
		out[i] = r.Clone()
	}
	return out
}

func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}

// Rows sorts the table and returns the header plus one row per record, each
// aligned to the header. Missing fields carry the placeholder.
func (t *Table) Rows() ([]string, [][]string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sort()

	header := slices.Clone(t.columns)
	rows := make([][]string, 0, len(t.records))
	for _, r := range t.records {
		row := make([]string, len(header))
		for i, col := range header {
			if v, ok := r.Field(col); ok {
				row[i] = v
			} else {
				row[i] = t.placeholder
			}
		}
		rows = append(rows, row)
	}
	return header, rows
}
