package seqfile

// Relation is an ordered record sequence of one table, sorted ascending by Key.
type Relation struct {
	Table string
	Key   string
	Rows  []Row
}

func (rel Relation) key(i int) Value {
	v, _ := rel.Rows[i].Get(rel.Key)
	return v
}

// SortMergeJoin equi-joins left and right on their keys using byte-wise key
// order. See Comparator.SortMergeJoin.
func SortMergeJoin(left, right Relation) []Row {
	return Comparator(BytesComparator).SortMergeJoin(left, right)
}

// SortMergeJoin equi-joins two relations sorted by their keys. Rows with a
// null key never match. For every left row the run of equal right keys is
// replayed from its first position (mark), so duplicate keys on both sides
// produce the full cross product. Output columns are named table.field.
func (c Comparator) SortMergeJoin(left, right Relation) []Row {
	var out []Row
	r, s := 0, 0
	mark := -1
	for r < len(left.Rows) && s < len(right.Rows) {
		lk, rk := left.key(r), right.key(s)
		if !lk.Valid {
			r++
			continue
		}
		if !rk.Valid {
			s++
			continue
		}

		switch cmp := c.compareKeys(lk, rk); {
		case cmp < 0:
			r++
		case cmp > 0:
			s++
		default:
			if mark < 0 {
				mark = s
			}
			out = append(out, joinRows(left, r, right, s))
			s++
			if s >= len(right.Rows) || !c.sameKey(right.key(s), lk) {
				r++
				s = mark
				mark = -1
			}
		}
	}
	return out
}

func (c Comparator) sameKey(a, b Value) bool {
	return a.Valid && b.Valid && c.compareKeys(a, b) == 0
}

func joinRows(left Relation, r int, right Relation, s int) Row {
	lrow, rrow := left.Rows[r], right.Rows[s]
	row := make(Row, 0, len(lrow)+len(rrow))
	for _, col := range lrow {
		row = append(row, Column{Name: left.Table + "." + col.Name, Value: col.Value})
	}
	for _, col := range rrow {
		row = append(row, Column{Name: right.Table + "." + col.Name, Value: col.Value})
	}
	return row
}
