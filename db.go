package seqfile

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// TableExt is the file extension of table files.
const TableExt = ".seq"

// Options represents the options that can be set when opening a DB.
type Options struct {
	// BlockSize is the size of every block of every table file. Files must be
	// read with the block size they were written with. Defaults to
	// DefaultBlockSize.
	BlockSize int

	// Timeout is the amount of time to wait to obtain a table file lock.
	// When zero a locked table fails immediately with ErrLocked.
	Timeout time.Duration

	// Open the DB in read-only mode. Insert and CreateTable return
	// ErrReadOnly and table files are locked shared.
	ReadOnly bool

	// Skip fsync after each insert.
	NoSync bool

	// BlockCacheSize is the byte budget of the write-through block cache
	// shared by all tables. Zero disables caching.
	BlockCacheSize int64

	// Comparator orders search keys. Defaults to BytesComparator.
	Comparator Comparator

	// Logger defaults to the logrus standard logger.
	Logger *log.Logger

	// FileMode of newly created table files. Defaults to 0644.
	FileMode os.FileMode
}

var DefaultOptions = &Options{
	BlockSize: DefaultBlockSize,
	Timeout:   0,
	FileMode:  0644,
}

// InsertHook observes committed inserts. It runs after the record is linked
// into the table file, and its failure does not undo the insert.
type InsertHook interface {
	AfterInsert(table string, offset int64, row Row) error
}

// TableHook is optionally implemented by an InsertHook that needs to know
// when a table file is (re)created.
type TableHook interface {
	TableCreated(table string, schema Schema) error
}

// DB is a directory of table files sharing one catalog.
//
// A DB assumes it is the only writer of its table files. Table files are
// flock'ed for the duration of every operation so a second process fails
// fast instead of corrupting a chain, but no isolation is provided beyond
// that and a DB must not be used from several goroutines at once.
type DB struct {
	dir       string
	catalog   Catalog
	blockSize int
	timeout   time.Duration
	readOnly  bool
	noSync    bool
	fileMode  os.FileMode
	cmp       Comparator
	log       *log.Logger
	cache     *blockCache
	hooks     []InsertHook
	opened    bool
}

// Open returns a DB storing its tables in dir, creating dir when needed.
func Open(dir string, catalog Catalog, options *Options) (*DB, error) {
	if catalog == nil {
		return nil, errors.New("nil catalog")
	}
	// Set default options if no options are provided.
	if options == nil {
		options = DefaultOptions
	}
	db := &DB{
		dir:       dir,
		catalog:   catalog,
		blockSize: options.BlockSize,
		timeout:   options.Timeout,
		readOnly:  options.ReadOnly,
		noSync:    options.NoSync,
		fileMode:  options.FileMode,
		cmp:       options.Comparator,
		log:       options.Logger,
	}
	if db.blockSize == 0 {
		db.blockSize = DefaultBlockSize
	}
	if db.blockSize < minBlockSize {
		return nil, errors.Errorf("block size %d is smaller than %d", db.blockSize, minBlockSize)
	}
	if db.fileMode == 0 {
		db.fileMode = 0644
	}
	if db.cmp == nil {
		db.cmp = BytesComparator
	}
	if db.log == nil {
		db.log = log.StandardLogger()
	}

	if !db.readOnly {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, ioErr("open", errors.Wrap(err, dir))
		}
	}
	var err error
	if db.cache, err = newBlockCache(options.BlockCacheSize, db.blockSize); err != nil {
		return nil, err
	}
	db.opened = true
	return db, nil
}

// Close releases the block cache. Table files are not held between calls.
func (db *DB) Close() error {
	if !db.opened {
		return nil
	}
	db.opened = false
	db.cache.close()
	db.cache = nil
	return nil
}

// AddHook registers h to run after every successful insert.
func (db *DB) AddHook(h InsertHook) {
	db.hooks = append(db.hooks, h)
}

// TablePath returns the file holding table.
func (db *DB) TablePath(table string) string {
	return filepath.Join(db.dir, table+TableExt)
}

func (db *DB) BlockSize() int { return db.blockSize }

func (db *DB) schema(table string) (Schema, error) {
	schema, err := db.catalog.Fields(table)
	if err != nil {
		if KindOf(err) == KindSchema {
			return nil, err
		}
		return nil, schemaErr("lookup", errors.Wrap(err, table))
	}
	if err := schema.Validate(); err != nil {
		return nil, schemaErr("lookup", errors.Wrap(err, table))
	}
	return schema, nil
}

func (db *DB) fieldIndex(table, field string) (int, error) {
	i, err := db.catalog.FieldIndex(table, field)
	if err != nil {
		if KindOf(err) == KindSchema {
			return -1, err
		}
		return -1, schemaErr("lookup", errors.Wrapf(err, "%s.%s", table, field))
	}
	return i, nil
}

// CreateTable creates, or truncates, the file of a table already known to the
// catalog and writes a header block describing an empty chain.
func (db *DB) CreateTable(table string) error {
	if db.readOnly {
		return ErrReadOnly
	}
	schema, err := db.schema(table)
	if err != nil {
		return err
	}
	if schema.maxRecordSize() > db.blockSize-blockHeaderSize {
		db.log.WithField("table", table).Warnf("records without nulls need %d bytes, blocks hold %d",
			schema.maxRecordSize(), db.blockSize-blockHeaderSize)
	}

	path := db.TablePath(table)
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, db.fileMode)
	if err != nil {
		return ioErr("create table", errors.Wrap(err, table))
	}
	defer file.Close()
	if err := waitflock(file, true, db.timeout); err != nil {
		return err
	}
	defer funlock(file)
	if err := file.Truncate(0); err != nil {
		return ioErr("create table", errors.Wrap(err, table))
	}
	db.cache.clear()

	bs, err := newBlockStore(file, table, db.blockSize, db.cache)
	if err != nil {
		return err
	}
	if err := bs.initHeader(); err != nil {
		return err
	}
	if err := bs.sync(); err != nil {
		return err
	}
	db.log.WithFields(log.Fields{"table": table, "path": path}).Info("table created")

	for _, h := range db.hooks {
		if th, ok := h.(TableHook); ok {
			if err := th.TableCreated(table, schema); err != nil {
				return &HookError{Table: table, Err: err}
			}
		}
	}
	return nil
}

// Insert links row into table in search key order and returns the offset of
// the new record. Values longer than their field are truncated. Hooks run
// after the record is committed; their failure is returned as *HookError
// together with the valid offset.
func (db *DB) Insert(table string, row Row) (int64, error) {
	off, stored, err := db.insert(table, row)
	if err != nil {
		return 0, err
	}
	for _, h := range db.hooks {
		if err := h.AfterInsert(table, off, stored); err != nil {
			db.log.WithFields(log.Fields{"table": table, "offset": off}).Warnf("insert hook failed: %s", err)
			return off, &HookError{Table: table, Offset: off, Err: err}
		}
	}
	return off, nil
}

func (db *DB) insert(table string, row Row) (off int64, stored Row, err error) {
	t, err := db.openTable(table, true)
	if err != nil {
		return 0, nil, err
	}
	defer func() {
		if cerr := t.close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	rec := NewRecord(t.schema, row)
	if off, err = t.insertSorted(rec); err != nil {
		return 0, nil, errors.WithMessagef(err, "insert into %s", table)
	}
	if !db.noSync {
		if err = t.bs.sync(); err != nil {
			return 0, nil, err
		}
	}
	return off, t.schema.Normalize(rec.Row), nil
}

// Scan returns a Scanner over every record of table in chain order. The
// table stays locked until the Scanner is closed. Each call starts again from
// the head of the chain.
func (db *DB) Scan(table string) (*Scanner, error) {
	t, err := db.openTable(table, false)
	if err != nil {
		return nil, err
	}
	c, err := t.newCursor("scan")
	if err != nil {
		_ = t.close()
		return nil, err
	}
	return &Scanner{t: t, c: c}, nil
}

// ForEach calls fn for every record of table in chain order, stopping at the
// first error.
func (db *DB) ForEach(table string, fn func(offset int64, row Row) error) (err error) {
	s, err := db.Scan(table)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	for s.Next() {
		if err := fn(s.Offset(), s.Row()); err != nil {
			return err
		}
	}
	return s.Err()
}

// RangeScan returns the records of table whose keyField value lies in
// [start, end], in chain order. Records with a null keyField are skipped.
// The scan stops at the first value greater than end, so keyField should be
// the search key.
func (db *DB) RangeScan(table, keyField, start, end string) ([]Row, error) {
	return db.rangeScan(table, keyField, Str(start), Str(end))
}

func (db *DB) rangeScan(table, keyField string, start, end Value) (rows []Row, err error) {
	keyIdx, err := db.fieldIndex(table, keyField)
	if err != nil {
		return nil, err
	}
	t, err := db.openTable(table, false)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := t.close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if keyIdx >= len(t.schema) {
		return nil, schemaErr("range scan", errors.Errorf("field index %d out of range", keyIdx))
	}
	return t.rangeScan(keyIdx, start, end)
}

// FieldValues returns the value of field for every record of table in chain
// order.
func (db *DB) FieldValues(table, field string) (values []Value, err error) {
	idx, err := db.fieldIndex(table, field)
	if err != nil {
		return nil, err
	}
	t, err := db.openTable(table, false)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := t.close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if idx >= len(t.schema) {
		return nil, schemaErr("field values", errors.Errorf("field index %d out of range", idx))
	}
	return t.fieldValues(idx)
}

// Relation reads every record of table with a non-null search key, in key
// order.
func (db *DB) Relation(table string) (Relation, error) {
	schema, err := db.schema(table)
	if err != nil {
		return Relation{}, err
	}
	key := schema[0].Name
	rows, err := db.rangeScan(table, key, Null, Null)
	if err != nil {
		return Relation{}, err
	}
	return Relation{Table: table, Key: key, Rows: rows}, nil
}

// Join equi-joins two tables on their search keys with a sort-merge join.
// Columns are named table.field.
func (db *DB) Join(left, right string) ([]Row, error) {
	l, err := db.Relation(left)
	if err != nil {
		return nil, err
	}
	r, err := db.Relation(right)
	if err != nil {
		return nil, err
	}
	rows := db.cmp.SortMergeJoin(l, r)
	db.log.WithFields(log.Fields{"left": left, "right": right, "rows": len(rows)}).Debug("join done")
	return rows, nil
}
