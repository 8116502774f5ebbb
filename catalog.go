package seqfile

import (
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Catalog supplies table schemas. Implementations must be consistent with the
// schema each table file was created with for the lifetime of the file.
type Catalog interface {
	// Fields returns the ordered fields of table.
	Fields(table string) (Schema, error)
	// FieldIndex returns the position of field in table, ignoring case.
	FieldIndex(table, field string) (int, error)
}

// MemCatalog is an in-memory Catalog.
type MemCatalog struct {
	mu     sync.RWMutex
	tables map[string]Schema
}

func NewMemCatalog() *MemCatalog {
	return &MemCatalog{tables: make(map[string]Schema)}
}

// Define registers or replaces the schema of table.
func (c *MemCatalog) Define(table string, schema Schema) error {
	if table == "" {
		return schemaErr("define", errors.New("empty table name"))
	}
	if err := schema.Validate(); err != nil {
		return schemaErr("define", errors.Wrap(err, table))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables[table] = append(Schema(nil), schema...)
	return nil
}

// Drop forgets table. Dropping an unknown table is a no-op.
func (c *MemCatalog) Drop(table string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tables, table)
}

func (c *MemCatalog) Fields(table string) (Schema, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	schema, ok := c.tables[table]
	if !ok {
		return nil, schemaErr("fields", errors.Errorf("unknown table %s", table))
	}
	return append(Schema(nil), schema...), nil
}

func (c *MemCatalog) FieldIndex(table, field string) (int, error) {
	schema, err := c.Fields(table)
	if err != nil {
		return -1, err
	}
	i := schema.Index(field)
	if i < 0 {
		return -1, schemaErr("field index", errors.Errorf("table %s has no field %s", table, field))
	}
	return i, nil
}

// Tables lists the defined tables in name order.
func (c *MemCatalog) Tables() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.tables))
	for name := range c.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseTableDef parses a table definition in driver syntax:
// name,field1,...,fieldN,size1,...,sizeN.
func ParseTableDef(def string) (string, Schema, error) {
	parts := strings.Split(def, ",")
	if len(parts) < 3 || (len(parts)-1)%2 != 0 {
		return "", nil, schemaErr("parse table", errors.Errorf("want name,fields...,sizes..., got %q", def))
	}
	half := (len(parts) - 1) / 2
	schema := make(Schema, half)
	for i := 0; i < half; i++ {
		size, err := parseSize(parts[1+half+i])
		if err != nil {
			return "", nil, schemaErr("parse table", errors.Wrapf(err, "size of %s", parts[1+i]))
		}
		schema[i] = Field{Name: strings.TrimSpace(parts[1+i]), Size: size}
	}
	name := strings.TrimSpace(parts[0])
	if err := schema.Validate(); err != nil {
		return "", nil, schemaErr("parse table", errors.Wrap(err, name))
	}
	return name, schema, nil
}

func parseSize(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, errors.Wrap(err, "invalid size")
	}
	return n, nil
}
