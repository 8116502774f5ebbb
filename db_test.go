package seqfile

import (
	"os"
	"strconv"
	"testing"

	"github.com/pkg/errors"
	assertion "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenOptions(t *testing.T) {
	assert := assertion.New(t)
	_, err := Open(t.TempDir(), nil, nil)
	assert.Error(err)

	_, err = Open(t.TempDir(), NewMemCatalog(), &Options{BlockSize: 4})
	assert.Error(err)

	db, err := Open(t.TempDir(), NewMemCatalog(), &Options{Logger: quietLogger()})
	require.NoError(t, err)
	assert.Equal(DefaultBlockSize, db.BlockSize())
	assert.NoError(db.Close())
	assert.NoError(db.Close())
}

func TestUnknownTable(t *testing.T) {
	assert := assertion.New(t)
	db, _ := newTestDB(t, nil, map[string]Schema{"r": studentSchema})

	_, err := db.Insert("nope", ParseRecord(studentSchema, "00001;A").Row)
	assert.True(errors.Is(err, ErrSchema))
	_, statErr := os.Stat(db.TablePath("nope"))
	assert.True(os.IsNotExist(statErr))

	_, err = db.Scan("nope")
	assert.True(errors.Is(err, ErrSchema))
	assert.True(errors.Is(db.CreateTable("nope"), ErrSchema))

	_, err = db.RangeScan("r", "AGE", "1", "2")
	assert.True(errors.Is(err, ErrSchema))
	_, err = db.FieldValues("r", "AGE")
	assert.True(errors.Is(err, ErrSchema))
}

func TestMissingTableFile(t *testing.T) {
	assert := assertion.New(t)
	db, catalog := newTestDB(t, nil, nil)
	require.NoError(t, catalog.Define("r", studentSchema))

	_, err := db.Scan("r")
	assert.True(errors.Is(err, ErrIO))
	assert.True(errors.Is(err, os.ErrNotExist))
}

func TestReadOnly(t *testing.T) {
	assert := assertion.New(t)
	db, catalog := newTestDB(t, nil, map[string]Schema{"r": studentSchema})
	insertLines(t, db, "r", studentSchema, "00001;A")

	ro, err := Open(db.dir, catalog, &Options{ReadOnly: true, Logger: quietLogger()})
	require.NoError(t, err)
	defer ro.Close()

	_, err = ro.Insert("r", ParseRecord(studentSchema, "00002;B").Row)
	assert.True(errors.Is(err, ErrReadOnly))
	assert.True(errors.Is(ro.CreateTable("r"), ErrReadOnly))

	rows, err := ro.RangeScan("r", "ID", "00000", "99999")
	assert.NoError(err)
	assert.Equal([]string{"00001"}, column(rows, 0))
}

func TestSharedReadersExcludeWriter(t *testing.T) {
	assert := assertion.New(t)
	db, _ := newTestDB(t, nil, map[string]Schema{"r": studentSchema})
	insertLines(t, db, "r", studentSchema, "00001;A")

	s1, err := db.Scan("r")
	require.NoError(t, err)
	s2, err := db.Scan("r")
	require.NoError(t, err)

	_, err = db.Insert("r", ParseRecord(studentSchema, "00002;B").Row)
	assert.True(errors.Is(err, ErrLocked))

	assert.NoError(s1.Close())
	assert.NoError(s2.Close())
	_, err = db.Insert("r", ParseRecord(studentSchema, "00002;B").Row)
	assert.NoError(err)
}

type failingHook struct{ calls int }

func (h *failingHook) AfterInsert(string, int64, Row) error {
	h.calls++
	return errors.New("hook failed")
}

func TestHookFailureKeepsRecord(t *testing.T) {
	assert := assertion.New(t)
	db, _ := newTestDB(t, nil, map[string]Schema{"r": studentSchema})
	h := &failingHook{}
	db.AddHook(h)

	off, err := db.Insert("r", ParseRecord(studentSchema, "00001;A").Row)
	var hookErr *HookError
	require.True(t, errors.As(err, &hookErr))
	assert.Equal("r", hookErr.Table)
	assert.Equal(int64(44), off)
	assert.Equal(off, hookErr.Offset)
	assert.Equal(1, h.calls)

	offs, rows := scanRows(t, db, "r")
	assert.Equal([]int64{44}, offs)
	assert.Equal([]string{"00001"}, column(rows, 0))
}

func TestBlockCacheIsTransparent(t *testing.T) {
	lines := []string{"00005;E", "00001;A", "null;N", "00003;C", "00003;D", "00002;B"}
	run := func(options *Options) ([]int64, []Row, []Row) {
		db, _ := newTestDB(t, options, map[string]Schema{"r": studentSchema, "s": pairSchema})
		offs := insertLines(t, db, "r", studentSchema, lines...)
		insertLines(t, db, "s", pairSchema, "00003;x", "00001;y")
		_, rows := scanRows(t, db, "r")
		joined, err := db.Join("r", "s")
		require.NoError(t, err)
		return offs, rows, joined
	}

	assert := assertion.New(t)
	offs, rows, joined := run(nil)
	cachedOffs, cachedRows, cachedJoined := run(&Options{BlockCacheSize: 1 << 20})
	assert.Equal(offs, cachedOffs)
	assert.Equal(rows, cachedRows)
	assert.Equal(joined, cachedJoined)
	assert.Len(joined, 3)
}

func TestCreateTableTruncates(t *testing.T) {
	assert := assertion.New(t)
	db, _ := newTestDB(t, &Options{BlockCacheSize: 1 << 20}, map[string]Schema{"r": studentSchema})
	insertLines(t, db, "r", studentSchema, "00001;A", "00002;B")

	require.NoError(t, db.CreateTable("r"))
	offs, _ := scanRows(t, db, "r")
	assert.Empty(offs)
	info, err := os.Stat(db.TablePath("r"))
	require.NoError(t, err)
	assert.Equal(int64(DefaultBlockSize), info.Size())

	off := insertLines(t, db, "r", studentSchema, "00003;C")
	assert.Equal([]int64{44}, off)
}

func TestCustomComparator(t *testing.T) {
	assert := assertion.New(t)
	numeric := func(a, b []byte) int {
		x, _ := strconv.Atoi(string(a))
		y, _ := strconv.Atoi(string(b))
		return x - y
	}
	db, _ := newTestDB(t, &Options{Comparator: numeric}, map[string]Schema{"r": pairSchema, "s": pairSchema})
	insertLines(t, db, "r", pairSchema, "10;a", "9;b", "100;c")
	insertLines(t, db, "s", pairSchema, "100;x", "9;y")

	_, rows := scanRows(t, db, "r")
	assert.Equal([]string{"9", "10", "100"}, column(rows, 0))

	rows, err := db.RangeScan("r", "ID", "9", "50")
	assert.NoError(err)
	assert.Equal([]string{"9", "10"}, column(rows, 0))

	joined, err := db.Join("r", "s")
	assert.NoError(err)
	assert.Equal([]string{"9", "100"}, column(joined, 0))
}
