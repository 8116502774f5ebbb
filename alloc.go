package seqfile

import "github.com/pkg/errors"

// appendRecord places data in the first data block with enough room, scanning
// from block 1 on every call, and returns its absolute offset. A zeroed block
// is added at the end of the file when no existing block fits.
func (bs *blockStore) appendRecord(data []byte) (int64, error) {
	capacity := bs.blockSize - blockHeaderSize
	if len(data) > capacity {
		return 0, errors.Wrapf(ErrRecordTooLarge, "%d bytes, block holds %d", len(data), capacity)
	}

	for off := int64(bs.blockSize); ; off += int64(bs.blockSize) {
		if off >= bs.filesz {
			if err := bs.writeBlock(off, make([]byte, bs.blockSize)); err != nil {
				return 0, err
			}
		}
		block, err := bs.readBlock(off)
		if err != nil {
			return 0, err
		}
		used := int(getInt32(block, 0))
		if used < 0 || used > capacity {
			return 0, corruptf("append", "block at %d reports %d used bytes", off, used)
		}
		if capacity-used < len(data) {
			continue
		}

		recOff := off + blockHeaderSize + int64(used)
		if err := bs.writeSpan(recOff, data); err != nil {
			return 0, err
		}
		// re-read: writeSpan may have touched this block
		block, err = bs.readBlock(off)
		if err != nil {
			return 0, err
		}
		putInt32(block, 0, int32(used+len(data)))
		if err := bs.writeBlock(off, block); err != nil {
			return 0, err
		}
		return recOff, nil
	}
}
