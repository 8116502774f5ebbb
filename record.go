package seqfile

import (
	"strings"

	"github.com/pkg/errors"
)

// maxFields is the number of fields one null bitmap byte can describe.
const maxFields = 8

// Field is one fixed-width column of a table.
type Field struct {
	Name string `json:"name"`
	Size int    `json:"size"`
}

// Schema is the ordered field list of a table. Field 0 is the search key.
type Schema []Field

// Validate checks the schema can be laid out in a table file.
func (s Schema) Validate() error {
	if len(s) == 0 {
		return errors.New("schema has no fields")
	}
	if len(s) > maxFields {
		return errors.Errorf("schema has %d fields, at most %d allowed", len(s), maxFields)
	}
	seen := make(map[string]bool, len(s))
	for i, f := range s {
		if f.Name == "" {
			return errors.Errorf("field %d has no name", i)
		}
		if f.Size <= 0 {
			return errors.Errorf("field %s has size %d", f.Name, f.Size)
		}
		name := strings.ToLower(f.Name)
		if seen[name] {
			return errors.Errorf("duplicate field %s", f.Name)
		}
		seen[name] = true
	}
	return nil
}

// Index returns the position of the named field, ignoring case, or -1.
func (s Schema) Index(name string) int {
	for i, f := range s {
		if strings.EqualFold(f.Name, name) {
			return i
		}
	}
	return -1
}

// Names returns the field names in schema order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return names
}

// maxRecordSize is the encoded size of a record with no null fields.
func (s Schema) maxRecordSize() int {
	n := bitmapSize + pointerSize
	for _, f := range s {
		n += f.Size
	}
	return n
}

// Value is a nullable field value.
type Value struct {
	String string
	Valid  bool
}

// Str returns a non-null value.
func Str(s string) Value { return Value{String: s, Valid: true} }

// Null is the null value.
var Null = Value{}

func (v Value) IsNull() bool { return !v.Valid }

// key returns the value used for ordering; null sorts as the empty string.
func (v Value) key() string {
	if !v.Valid {
		return ""
	}
	return v.String
}

func (v Value) text() string {
	if !v.Valid {
		return "NULL"
	}
	return v.String
}

// Column is a named value of a Row.
type Column struct {
	Name  string
	Value Value
}

// Row is an ordered field name to value mapping.
type Row []Column

// Get returns the value of the named column. Missing columns read as null.
func (r Row) Get(name string) (Value, bool) {
	for _, c := range r {
		if c.Name == name {
			return c.Value, true
		}
	}
	return Null, false
}

// lookup is Get with case-insensitive fallback, used when matching a row to a
// schema.
func (r Row) lookup(name string) Value {
	if v, ok := r.Get(name); ok {
		return v
	}
	for _, c := range r {
		if strings.EqualFold(c.Name, name) {
			return c.Value
		}
	}
	return Null
}

// Strings renders every value, null as NULL.
func (r Row) Strings() []string {
	out := make([]string, len(r))
	for i, c := range r {
		out[i] = c.Value.text()
	}
	return out
}

// Record is a row prepared for a table: values in schema order, the null
// bitmap derived from them and the chain pointer.
type Record struct {
	Row     Row
	Bitmap  byte
	Pointer int32
}

// NewRecord orders row by schema. Schema fields missing from row are null and
// columns unknown to the schema are dropped.
func NewRecord(schema Schema, row Row) *Record {
	rec := &Record{Row: make(Row, len(schema))}
	for i, f := range schema {
		v := row.lookup(f.Name)
		rec.Row[i] = Column{Name: f.Name, Value: v}
		if !v.Valid {
			rec.Bitmap = Set(rec.Bitmap, nullBit(i))
		}
	}
	return rec
}

// ParseRecord parses a driver input line such as "00001;John;null". Values are
// separated by ';', the literal null (any case) is a null value, missing
// trailing values are null and surplus values are ignored.
func ParseRecord(schema Schema, line string) *Record {
	parts := strings.Split(line, ";")
	row := make(Row, len(schema))
	for i, f := range schema {
		v := Null
		if i < len(parts) && !strings.EqualFold(parts[i], "null") {
			v = Str(parts[i])
		}
		row[i] = Column{Name: f.Name, Value: v}
	}
	return NewRecord(schema, row)
}

// Normalize returns row as it will read back from a table: values padded or
// truncated to their field width and trailing spaces trimmed.
func (s Schema) Normalize(row Row) Row {
	out := make(Row, len(s))
	for i, f := range s {
		v := row.lookup(f.Name)
		if v.Valid {
			v = Str(strings.TrimRight(string(fixWidth(v.String, f.Size)), " "))
		}
		out[i] = Column{Name: f.Name, Value: v}
	}
	return out
}

// fixWidth left-justifies s in a size byte field, padding with spaces or
// truncating.
func fixWidth(s string, size int) []byte {
	b := make([]byte, size)
	n := copy(b, s)
	for i := n; i < size; i++ {
		b[i] = ' '
	}
	return b
}
