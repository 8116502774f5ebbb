package seqfile

import (
	"math"

	"github.com/pkg/errors"
)

// cursor walks a table's record chain. The chain is read from disk and is not
// trusted: every offset is range checked and revisiting an offset is reported
// as corruption.
type cursor struct {
	t       *table
	op      string
	curr    int64 // 0 once the end of the chain is reached
	visited map[int64]struct{}
}

func (t *table) newCursor(op string) (*cursor, error) {
	head, err := t.bs.readHead()
	if err != nil {
		return nil, err
	}
	c := &cursor{t: t, op: op, visited: make(map[int64]struct{})}
	if head == emptyChain {
		return c, nil
	}
	if int64(head) < int64(t.bs.blockSize) {
		return nil, corruptf(op, "head pointer %d points into the header block", head)
	}
	c.curr = int64(head)
	return c, nil
}

func (c *cursor) done() bool { return c.curr == 0 }

// visit validates the current offset and records it.
func (c *cursor) visit() error {
	off := c.curr
	if off < int64(c.t.bs.blockSize) || off >= c.t.bs.filesz {
		return corruptf(c.op, "record pointer %d outside data region [%d, %d)",
			off, c.t.bs.blockSize, c.t.bs.filesz)
	}
	if _, ok := c.visited[off]; ok {
		c.t.log.WithField("offset", off).Warn("cycle detected in record chain")
		return corruptf(c.op, "record chain revisits offset %d", off)
	}
	c.visited[off] = struct{}{}
	return nil
}

// step follows the current record's pointer.
func (c *cursor) step() error {
	next, err := c.t.readPointer(c.curr)
	if err != nil {
		return err
	}
	c.curr = int64(next)
	return nil
}

// insertSorted links rec into the chain before the first record whose search
// key is greater than or equal to rec's, and returns its offset. Equal keys
// therefore end up in reverse insertion order.
func (t *table) insertSorted(rec *Record) (int64, error) {
	head, err := t.bs.readHead()
	if err != nil {
		return 0, err
	}
	if head == emptyChain {
		rec.Pointer = endOfChain
		off, err := t.place(rec)
		if err != nil {
			return 0, err
		}
		if err := t.bs.writeHead(int32(off)); err != nil {
			return 0, err
		}
		t.log.WithField("offset", off).Debug("inserted first record")
		return off, nil
	}

	key := rec.Row[0].Value
	c, err := t.newCursor("insert")
	if err != nil {
		return 0, err
	}
	prev := int64(-1)
	for !c.done() {
		if err := c.visit(); err != nil {
			return 0, err
		}
		v, err := t.decodeField(c.curr, 0)
		if err != nil {
			return 0, err
		}
		if t.cmp.compareKeys(v, key) >= 0 {
			break
		}
		prev = c.curr
		if err := c.step(); err != nil {
			return 0, err
		}
	}

	// c.curr is the old head, the first greater-or-equal record, or 0 at the tail
	rec.Pointer = int32(c.curr)
	off, err := t.place(rec)
	if err != nil {
		return 0, err
	}
	entry := t.log.WithField("offset", off)
	switch {
	case prev < 0:
		if err := t.bs.writeHead(int32(off)); err != nil {
			return 0, err
		}
		entry.Debug("inserted at head")
	case c.done():
		if err := t.writePointer(prev, int32(off)); err != nil {
			return 0, err
		}
		entry.Debug("inserted at tail")
	default:
		if err := t.writePointer(prev, int32(off)); err != nil {
			return 0, err
		}
		entry.WithField("next", c.curr).Debug("inserted in middle")
	}
	return off, nil
}

// place encodes rec and hands it to the allocator.
func (t *table) place(rec *Record) (int64, error) {
	off, err := t.bs.appendRecord(encodeRecord(t.schema, rec))
	if err != nil {
		return 0, err
	}
	if off > math.MaxInt32 {
		return 0, errors.Errorf("record offset %d exceeds the 32-bit pointer range", off)
	}
	return off, nil
}

// Scanner iterates a table's records in chain order. It holds the table file
// open and locked until Close.
//
//	s, err := db.Scan("r")
//	...
//	defer s.Close()
//	for s.Next() {
//		fmt.Println(s.Offset(), s.Row())
//	}
//	return s.Err()
type Scanner struct {
	t   *table
	c   *cursor
	off int64
	row Row
	err error
}

// Next advances to the next record. It returns false at the end of the chain
// or on error.
func (s *Scanner) Next() bool {
	if s.err != nil || s.c == nil || s.c.done() {
		return false
	}
	if s.err = s.c.visit(); s.err != nil {
		return false
	}
	s.off = s.c.curr
	if s.row, s.err = s.t.decodeAll(s.off); s.err != nil {
		return false
	}
	if s.err = s.c.step(); s.err != nil {
		return false
	}
	return true
}

// Offset is the file offset of the current record.
func (s *Scanner) Offset() int64 { return s.off }

// Row is the current record's fields in schema order.
func (s *Scanner) Row() Row { return s.row }

func (s *Scanner) Err() error { return s.err }

// Schema is the scanned table's schema.
func (s *Scanner) Schema() Schema { return s.t.schema }

func (s *Scanner) Close() error {
	if s.t == nil {
		return nil
	}
	s.c = nil
	return s.t.close()
}

// rangeScan returns every record whose field keyIdx lies in [start, end] in
// chain order. A null bound is open. Records with a null key are skipped and
// the walk stops at the first key past end.
func (t *table) rangeScan(keyIdx int, start, end Value) ([]Row, error) {
	c, err := t.newCursor("range scan")
	if err != nil {
		return nil, err
	}
	var rows []Row
	for !c.done() {
		if err := c.visit(); err != nil {
			return nil, err
		}
		key, err := t.decodeField(c.curr, keyIdx)
		if err != nil {
			return nil, err
		}
		if key.Valid {
			if end.Valid && t.cmp.compareKeys(key, end) > 0 {
				break
			}
			if !start.Valid || t.cmp.compareKeys(key, start) >= 0 {
				row, err := t.decodeAll(c.curr)
				if err != nil {
					return nil, err
				}
				rows = append(rows, row)
			}
		}
		if err := c.step(); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

// fieldValues returns field i of every record in chain order.
func (t *table) fieldValues(i int) ([]Value, error) {
	c, err := t.newCursor("field values")
	if err != nil {
		return nil, err
	}
	var values []Value
	for !c.done() {
		if err := c.visit(); err != nil {
			return nil, err
		}
		v, err := t.decodeField(c.curr, i)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
		if err := c.step(); err != nil {
			return nil, err
		}
	}
	return values, nil
}
