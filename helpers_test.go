package seqfile

import (
	"io"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

var (
	// 1 + 5 + 10 + 4 = 20 bytes per record, 10 with a null NAME
	studentSchema = Schema{{Name: "ID", Size: 5}, {Name: "NAME", Size: 10}}
	// 1 + 5 + 1 + 4 = 11 bytes per record
	pairSchema = Schema{{Name: "ID", Size: 5}, {Name: "V", Size: 1}}
)

func quietLogger() *log.Logger {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return logger
}

// newTestDB opens a DB in a temp dir with every table in tables created.
func newTestDB(t *testing.T, options *Options, tables map[string]Schema) (*DB, *MemCatalog) {
	t.Helper()
	catalog := NewMemCatalog()
	for name, schema := range tables {
		require.NoError(t, catalog.Define(name, schema))
	}
	if options == nil {
		options = &Options{}
	}
	opts := *options
	if opts.Logger == nil {
		opts.Logger = quietLogger()
	}
	opts.NoSync = true
	db, err := Open(t.TempDir(), catalog, &opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	for name := range tables {
		require.NoError(t, db.CreateTable(name))
	}
	return db, catalog
}

func insertLines(t *testing.T, db *DB, table string, schema Schema, lines ...string) []int64 {
	t.Helper()
	offs := make([]int64, len(lines))
	for i, line := range lines {
		off, err := db.Insert(table, ParseRecord(schema, line).Row)
		require.NoError(t, err)
		offs[i] = off
	}
	return offs
}

func scanRows(t *testing.T, db *DB, table string) ([]int64, []Row) {
	t.Helper()
	var offs []int64
	var rows []Row
	require.NoError(t, db.ForEach(table, func(off int64, row Row) error {
		offs = append(offs, off)
		rows = append(rows, row)
		return nil
	}))
	return offs, rows
}

func column(rows []Row, i int) []string {
	out := make([]string, len(rows))
	for j, r := range rows {
		out[j] = r[i].Value.text()
	}
	return out
}

// openTestTable opens table for writing and closes it at the end of the test.
func openTestTable(t *testing.T, db *DB, name string) *table {
	t.Helper()
	tb, err := db.openTable(name, true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tb.close() })
	return tb
}
