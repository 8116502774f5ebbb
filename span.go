package seqfile

import "github.com/pkg/errors"

// readSpan reads length bytes at off. The span may cross into the following
// block but no further.
func (bs *blockStore) readSpan(off int64, length int) ([]byte, error) {
	if length > bs.blockSize {
		return nil, errors.Wrapf(ErrSpanTooLong, "read %d bytes at %d", length, off)
	}
	start := bs.blockOf(off)
	inBlock := int(off - start)
	block, err := bs.readBlock(start)
	if err != nil {
		return nil, err
	}
	if inBlock+length <= bs.blockSize {
		out := make([]byte, length)
		copy(out, block[inBlock:inBlock+length])
		return out, nil
	}

	head := bs.blockSize - inBlock
	next, err := bs.readBlock(start + int64(bs.blockSize))
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, length)
	out = append(out, block[inBlock:]...)
	out = append(out, next[:length-head]...)
	return out, nil
}

// writeSpan writes data at off, splitting it across two blocks when it
// straddles a boundary. Both blocks are read, patched and written back.
func (bs *blockStore) writeSpan(off int64, data []byte) error {
	if len(data) > bs.blockSize {
		return errors.Wrapf(ErrSpanTooLong, "write %d bytes at %d", len(data), off)
	}
	start := bs.blockOf(off)
	inBlock := int(off - start)
	block, err := bs.readBlock(start)
	if err != nil {
		return err
	}
	if inBlock+len(data) <= bs.blockSize {
		copy(block[inBlock:], data)
		return bs.writeBlock(start, block)
	}

	head := bs.blockSize - inBlock
	nextOff := start + int64(bs.blockSize)
	next, err := bs.readBlock(nextOff)
	if err != nil {
		return err
	}
	copy(block[inBlock:], data[:head])
	copy(next, data[head:])
	if err := bs.writeBlock(start, block); err != nil {
		return err
	}
	return bs.writeBlock(nextOff, next)
}

func (bs *blockStore) readInt32(off int64) (int32, error) {
	b, err := bs.readSpan(off, 4)
	if err != nil {
		return 0, err
	}
	return getInt32(b, 0), nil
}

func (bs *blockStore) writeInt32(off int64, v int32) error {
	var b [4]byte
	putInt32(b[:], 0, v)
	return bs.writeSpan(off, b[:])
}
