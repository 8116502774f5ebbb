package seqfile

import (
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// table is one open, locked table file. It lives for the duration of a single
// DB operation (or a Scanner).
type table struct {
	name   string
	schema Schema
	file   *os.File
	bs     *blockStore
	cmp    Comparator
	log    *log.Entry
	write  bool
}

func (db *DB) openTable(name string, write bool) (*table, error) {
	if write && db.readOnly {
		return nil, ErrReadOnly
	}
	schema, err := db.schema(name)
	if err != nil {
		return nil, err
	}

	flag := os.O_RDONLY
	if write {
		flag = os.O_RDWR
	}
	file, err := os.OpenFile(db.TablePath(name), flag, db.fileMode)
	if err != nil {
		return nil, ioErr("open table", errors.Wrap(err, name))
	}
	if err := waitflock(file, write, db.timeout); err != nil {
		_ = file.Close()
		return nil, err
	}
	bs, err := newBlockStore(file, name, db.blockSize, db.cache)
	if err != nil {
		_ = funlock(file)
		_ = file.Close()
		return nil, err
	}
	return &table{
		name:   name,
		schema: schema,
		file:   file,
		bs:     bs,
		cmp:    db.cmp,
		log:    db.log.WithField("table", name),
		write:  write,
	}, nil
}

func (t *table) close() error {
	if t.file == nil {
		return nil
	}
	if err := funlock(t.file); err != nil {
		t.log.Warnf("funlock error: %s", err)
	}
	err := t.file.Close()
	t.file = nil
	if err != nil {
		return ioErr("close table", errors.Wrap(err, t.name))
	}
	return nil
}
