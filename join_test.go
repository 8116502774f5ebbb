package seqfile

import (
	"testing"

	assertion "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func relation(table string, lines ...string) Relation {
	schema := Schema{{Name: "ID", Size: 5}, {Name: "V", Size: 5}}
	rows := make([]Row, len(lines))
	for i, line := range lines {
		rows[i] = ParseRecord(schema, line).Row
	}
	return Relation{Table: table, Key: "ID", Rows: rows}
}

func TestSortMergeJoinDuplicates(t *testing.T) {
	assert := assertion.New(t)
	r := relation("R", "1;A", "2;B", "2;C")
	s := relation("S", "1;X", "2;Y")

	rows := SortMergeJoin(r, s)
	require.Len(t, rows, 3)
	assert.Equal([]string{"1", "A", "1", "X"}, rows[0].Strings())
	assert.Equal([]string{"2", "B", "2", "Y"}, rows[1].Strings())
	assert.Equal([]string{"2", "C", "2", "Y"}, rows[2].Strings())
	assert.Equal([]string{"R.ID", "R.V", "S.ID", "S.V"}, []string{
		rows[0][0].Name, rows[0][1].Name, rows[0][2].Name, rows[0][3].Name,
	})
}

func TestSortMergeJoinManyToMany(t *testing.T) {
	assert := assertion.New(t)
	r := relation("R", "1;a", "3;b", "3;c", "4;d")
	s := relation("S", "2;w", "3;x", "3;y", "4;z", "5;q")

	var got [][]string
	for _, row := range SortMergeJoin(r, s) {
		got = append(got, row.Strings())
	}
	assert.Equal([][]string{
		{"3", "b", "3", "x"},
		{"3", "b", "3", "y"},
		{"3", "c", "3", "x"},
		{"3", "c", "3", "y"},
		{"4", "d", "4", "z"},
	}, got)
}

func TestSortMergeJoinSkipsNullKeys(t *testing.T) {
	assert := assertion.New(t)
	r := relation("R", "null;n", "1;a")
	s := relation("S", "null;m", "1;x")

	rows := SortMergeJoin(r, s)
	require.Len(t, rows, 1)
	assert.Equal([]string{"1", "a", "1", "x"}, rows[0].Strings())
}

func TestSortMergeJoinEmpty(t *testing.T) {
	assert := assertion.New(t)
	assert.Empty(SortMergeJoin(relation("R"), relation("S", "1;x")))
	assert.Empty(SortMergeJoin(relation("R", "1;a"), relation("S")))
	assert.Empty(SortMergeJoin(relation("R", "1;a"), relation("S", "2;x")))
}

func TestDBJoin(t *testing.T) {
	assert := assertion.New(t)
	db, _ := newTestDB(t, nil, map[string]Schema{"R": pairSchema, "S": pairSchema})
	insertLines(t, db, "R", pairSchema, "1;A", "2;C", "2;B", "null;N")
	insertLines(t, db, "S", pairSchema, "2;Y", "1;X", "3;Z")

	rows, err := db.Join("R", "S")
	assert.NoError(err)
	var got [][]string
	for _, row := range rows {
		got = append(got, row.Strings())
	}
	// duplicate keys scan newest first
	assert.Equal([][]string{
		{"1", "A", "1", "X"},
		{"2", "B", "2", "Y"},
		{"2", "C", "2", "Y"},
	}, got)
}

func TestDBJoinUnknownTable(t *testing.T) {
	assert := assertion.New(t)
	db, _ := newTestDB(t, nil, map[string]Schema{"R": pairSchema})

	_, err := db.Join("R", "nope")
	assert.Equal(KindSchema, KindOf(err))
}
