package seqfile

import (
	"testing"

	fuzz "github.com/google/gofuzz"
	assertion "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeRecordLayout(t *testing.T) {
	assert := assertion.New(t)
	schema := Schema{{Name: "ID", Size: 5}, {Name: "NAME", Size: 4}, {Name: "GRADE", Size: 1}}
	rec := NewRecord(schema, Row{{Name: "ID", Value: Str("1")}, {Name: "GRADE", Value: Str("AB")}})
	rec.Pointer = 0x01020304

	assert.Equal(byte(0x40), rec.Bitmap)
	assert.Equal([]byte{0x40, '1', ' ', ' ', ' ', ' ', 'A', 1, 2, 3, 4}, encodeRecord(schema, rec))
}

func TestParseRecord(t *testing.T) {
	assert := assertion.New(t)
	schema := Schema{{Name: "ID", Size: 5}, {Name: "NAME", Size: 4}, {Name: "GRADE", Size: 1}}

	rec := ParseRecord(schema, "00001;NULL")
	assert.Equal(Row{
		{Name: "ID", Value: Str("00001")},
		{Name: "NAME", Value: Null},
		{Name: "GRADE", Value: Null},
	}, rec.Row)
	assert.Equal(byte(0x60), rec.Bitmap)

	rec = ParseRecord(schema, "1;2;3;4")
	assert.Equal([]string{"1", "2", "3"}, rec.Row.Strings())
	assert.Equal(byte(0), rec.Bitmap)
}

func TestRecordRoundTrip(t *testing.T) {
	assert := assertion.New(t)
	db, _ := newTestDB(t, nil, map[string]Schema{"r": studentSchema})
	tb := openTestTable(t, db, "r")

	cases := []Row{
		{{Name: "ID", Value: Str("00001")}, {Name: "NAME", Value: Str("Ann")}},
		{{Name: "ID", Value: Str("0000200002")}, {Name: "NAME", Value: Str("Bartholomew the Great")}},
		{{Name: "ID", Value: Str("3")}, {Name: "NAME", Value: Null}},
		{{Name: "ID", Value: Null}, {Name: "NAME", Value: Str("nobody")}},
		{{Name: "ID", Value: Null}, {Name: "NAME", Value: Null}},
	}
	for _, row := range cases {
		rec := NewRecord(tb.schema, row)
		off, err := tb.bs.appendRecord(encodeRecord(tb.schema, rec))
		require.NoError(t, err)

		got, err := tb.decodeAll(off)
		assert.NoError(err)
		assert.Equal(tb.schema.Normalize(row), got)

		ptr, err := tb.readPointer(off)
		assert.NoError(err)
		assert.Equal(endOfChain, ptr)
	}
}

func TestDecodeFieldIsIdempotent(t *testing.T) {
	assert := assertion.New(t)
	db, _ := newTestDB(t, nil, map[string]Schema{"r": studentSchema})
	tb := openTestTable(t, db, "r")

	off, err := tb.insertSorted(ParseRecord(studentSchema, "00007;Gus"))
	require.NoError(t, err)
	first, err := tb.decodeField(off, 1)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := tb.decodeField(off, 1)
		assert.NoError(err)
		assert.Equal(first, again)
	}
	assert.Equal(Str("Gus"), first)
}

func TestDecodeAcrossBlockBoundary(t *testing.T) {
	assert := assertion.New(t)
	db, _ := newTestDB(t, nil, map[string]Schema{"r": studentSchema})
	tb := openTestTable(t, db, "r")

	rec := ParseRecord(studentSchema, "12345;Straddling")
	rec.Pointer = 0x0badcafe
	data := encodeRecord(studentSchema, rec)
	require.Len(t, data, 20)

	// 44: inside block 1; 76: ID crosses 80; 70: NAME crosses 80;
	// 62: pointer crosses 80
	var want Row
	for _, off := range []int64{44, 76, 70, 62} {
		require.NoError(t, tb.bs.writeSpan(off, data))

		row, err := tb.decodeAll(off)
		assert.NoError(err)
		if want == nil {
			want = row
		}
		assert.Equal(want, row, "offset %d", off)

		ptr, err := tb.readPointer(off)
		assert.NoError(err)
		assert.Equal(int32(0x0badcafe), ptr, "offset %d", off)

		pos, err := tb.pointerPosition(off)
		assert.NoError(err)
		assert.Equal(off+16, pos)
	}
	assert.Equal(Str("12345"), want[0].Value)
	assert.Equal(Str("Straddling"), want[1].Value)

	// rewiring a straddling pointer keeps the fields intact
	assert.NoError(tb.writePointer(62, 4242))
	ptr, err := tb.readPointer(62)
	assert.NoError(err)
	assert.Equal(int32(4242), ptr)
	row, err := tb.decodeAll(62)
	assert.NoError(err)
	assert.Equal(want, row)
}

func TestPointerPositionDependsOnBitmap(t *testing.T) {
	assert := assertion.New(t)
	db, _ := newTestDB(t, nil, map[string]Schema{"r": studentSchema})
	tb := openTestTable(t, db, "r")

	full, err := tb.bs.appendRecord(encodeRecord(studentSchema, ParseRecord(studentSchema, "1;x")))
	require.NoError(t, err)
	sparse, err := tb.bs.appendRecord(encodeRecord(studentSchema, ParseRecord(studentSchema, "1;null")))
	require.NoError(t, err)

	pos, err := tb.pointerPosition(full)
	assert.NoError(err)
	assert.Equal(full+1+5+10, pos)
	pos, err = tb.pointerPosition(sparse)
	assert.NoError(err)
	assert.Equal(sparse+1+5, pos)
}

func TestRecordRoundTripFuzz(t *testing.T) {
	assert := assertion.New(t)
	schema := Schema{{Name: "A", Size: 3}, {Name: "B", Size: 4}, {Name: "C", Size: 2}, {Name: "D", Size: 5}}
	db, _ := newTestDB(t, nil, map[string]Schema{"f": schema})
	tb := openTestTable(t, db, "f")

	f := fuzz.New()
	f.NilChance(0)
	for i := 0; i < 200; i++ {
		var values [4]string
		var nulls [4]bool
		f.Fuzz(&values)
		f.Fuzz(&nulls)
		row := make(Row, len(schema))
		for j, fld := range schema {
			row[j] = Column{Name: fld.Name, Value: Str(values[j])}
			if nulls[j] {
				row[j].Value = Null
			}
		}
		off, err := tb.bs.appendRecord(encodeRecord(schema, NewRecord(schema, row)))
		require.NoError(t, err)
		got, err := tb.decodeAll(off)
		require.NoError(t, err)
		assert.Equal(schema.Normalize(row), got)
	}
}
