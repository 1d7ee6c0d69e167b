package table

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"recmerge/internal/util"
)

// Field is one name/value pair of a record.
type Field struct {
	Name  string
	Value string
}

// Record maps normalized field names to normalized values. Fields keep the
// order in which they were first set; overwriting a field keeps its position.
// Fields are never removed.
type Record struct {
	fields *orderedmap.OrderedMap[string, string]
}

func NewRecord() *Record {
	return &Record{fields: orderedmap.New[string, string]()}
}

// RecordFrom builds a record from parallel name/value slices. Values past the
// end of names are ignored; names past the end of values are not set.
func RecordFrom(names, values []string) *Record {
	r := NewRecord()
	for i, name := range names {
		if i >= len(values) {
			break
		}
		r.SetField(name, values[i])
	}
	return r
}

// Clone returns an independent copy of r.
func (r *Record) Clone() *Record {
	c := NewRecord()
	for pair := r.fields.Oldest(); pair != nil; pair = pair.Next() {
		c.fields.Set(pair.Key, pair.Value)
	}
	return c
}

func (r *Record) SetField(name, value string) {
	r.fields.Set(util.NormalizeField(name), util.NormalizeField(value))
}

// Field returns the value stored under name and whether it was ever set.
func (r *Record) Field(name string) (string, bool) {
	return r.fields.Get(name)
}

// SetFields applies SetField for each pair in order; later pairs win.
func (r *Record) SetFields(fields []Field) {
	for _, f := range fields {
		r.SetField(f.Name, f.Value)
	}
}

// Merge overwrites r with every field of other. Fields of r that other does
// not carry are left untouched.
func (r *Record) Merge(other *Record) {
	r.SetFields(other.Fields())
}

func (r *Record) Fields() []Field {
	out := make([]Field, 0, r.fields.Len())
	for pair := r.fields.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, Field{Name: pair.Key, Value: pair.Value})
	}
	return out
}

func (r *Record) Keys() []string {
	out := make([]string, 0, r.fields.Len())
	for pair := r.fields.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

func (r *Record) Values() []string {
	out := make([]string, 0, r.fields.Len())
	for pair := r.fields.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

func (r *Record) Len() int {
	return r.fields.Len()
}
