package seqfile

func Set(b, flag uint8) uint8 { return b | flag }
func Has(b, flag uint8) bool  { return b&flag != 0 }

// nullBit is the bitmap bit marking field i as null. Field 0 is the high bit.
func nullBit(i int) uint8 { return 1 << uint(7-i) }

func isNull(bitmap byte, i int) bool { return Has(bitmap, nullBit(i)) }
