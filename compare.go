package seqfile

import "bytes"

// Comparator orders two search key values.
type Comparator func(a, b []byte) int

// BytesComparator is a byte-wise, case-sensitive lexicographic order. "00010"
// sorts after "00009" but "10" sorts before "9".
func BytesComparator(a, b []byte) int {
	return bytes.Compare(a, b)
}

// compareKeys orders two values, treating null as the empty string.
func (c Comparator) compareKeys(a, b Value) int {
	return c([]byte(a.key()), []byte(b.key()))
}
