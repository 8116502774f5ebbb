package seqfile

import (
	"bytes"
	"strings"
)

// Record layout
//
//	| bitmap 1 | field 0 | ... | field n | pointer 4 |
//
// Null fields take no bytes, so every offset past the bitmap depends on the
// record's own bitmap.

// encodeRecord serializes rec. Values are left-justified in their field and
// padded with spaces or silently truncated.
func encodeRecord(schema Schema, rec *Record) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, schema.maxRecordSize()))
	buf.WriteByte(rec.Bitmap)
	for i, f := range schema {
		if isNull(rec.Bitmap, i) {
			continue
		}
		buf.Write(fixWidth(rec.Row[i].Value.String, f.Size))
	}
	var ptr [pointerSize]byte
	putInt32(ptr[:], 0, rec.Pointer)
	buf.Write(ptr[:])
	return buf.Bytes()
}

func (t *table) readBitmap(recOff int64) (byte, error) {
	b, err := t.bs.readSpan(recOff, bitmapSize)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// fieldOffset returns where field i starts given the record's bitmap.
func (t *table) fieldOffset(recOff int64, bitmap byte, i int) int64 {
	off := recOff + bitmapSize
	for j := 0; j < i; j++ {
		if !isNull(bitmap, j) {
			off += int64(t.schema[j].Size)
		}
	}
	return off
}

// decodeField returns field i of the record at recOff with trailing spaces
// trimmed.
func (t *table) decodeField(recOff int64, i int) (Value, error) {
	bitmap, err := t.readBitmap(recOff)
	if err != nil {
		return Null, err
	}
	return t.decodeFieldBitmap(recOff, bitmap, i)
}

func (t *table) decodeFieldBitmap(recOff int64, bitmap byte, i int) (Value, error) {
	if isNull(bitmap, i) {
		return Null, nil
	}
	b, err := t.bs.readSpan(t.fieldOffset(recOff, bitmap, i), t.schema[i].Size)
	if err != nil {
		return Null, err
	}
	return Str(strings.TrimRight(string(b), " ")), nil
}

// decodeAll returns every field of the record at recOff in schema order.
func (t *table) decodeAll(recOff int64) (Row, error) {
	bitmap, err := t.readBitmap(recOff)
	if err != nil {
		return nil, err
	}
	row := make(Row, len(t.schema))
	for i, f := range t.schema {
		v, err := t.decodeFieldBitmap(recOff, bitmap, i)
		if err != nil {
			return nil, err
		}
		row[i] = Column{Name: f.Name, Value: v}
	}
	return row, nil
}

// pointerPosition returns the offset of the chain pointer of the record at recOff.
func (t *table) pointerPosition(recOff int64) (int64, error) {
	bitmap, err := t.readBitmap(recOff)
	if err != nil {
		return 0, err
	}
	return t.fieldOffset(recOff, bitmap, len(t.schema)), nil
}

func (t *table) readPointer(recOff int64) (int32, error) {
	pos, err := t.pointerPosition(recOff)
	if err != nil {
		return 0, err
	}
	return t.bs.readInt32(pos)
}

func (t *table) writePointer(recOff int64, ptr int32) error {
	pos, err := t.pointerPosition(recOff)
	if err != nil {
		return err
	}
	return t.bs.writeInt32(pos, ptr)
}
