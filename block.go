package seqfile

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/pkg/errors"
)

const (
	// DefaultBlockSize is the block size of the reference file layout.
	DefaultBlockSize = 40
	// minBlockSize leaves room for the usedSpace header plus one pointer.
	minBlockSize = 8

	// head pointer value of a table with no records
	emptyChain int32 = -1
	// pointer value terminating the chain
	endOfChain int32 = 0

	// usedSpace prefix of every data block
	blockHeaderSize = 4
	pointerSize     = 4
	bitmapSize      = 1
)

// Block layout
//
//	block 0      | head int32 | reserved ...                 |
//	block n >= 1 | usedSpace int32 | packed record bytes ... |
//
// All integers are big-endian two's-complement.

func getInt32(b []byte, off int) int32 {
	return int32(binary.BigEndian.Uint32(b[off : off+4]))
}

func putInt32(b []byte, off int, v int32) {
	binary.BigEndian.PutUint32(b[off:off+4], uint32(v))
}

// blockStore reads and writes whole blocks of a single table file.
type blockStore struct {
	file      *os.File
	name      string
	blockSize int
	filesz    int64 // current on disk file size
	cache     *blockCache

	// test hooks
	ops struct {
		readAt  func(b []byte, off int64) (n int, err error)
		writeAt func(b []byte, off int64) (n int, err error)
	}
}

func newBlockStore(file *os.File, name string, blockSize int, cache *blockCache) (*blockStore, error) {
	info, err := file.Stat()
	if err != nil {
		return nil, ioErr("stat", errors.Wrap(err, name))
	}
	bs := &blockStore{
		file:      file,
		name:      name,
		blockSize: blockSize,
		filesz:    info.Size(),
		cache:     cache,
	}
	bs.ops.readAt = file.ReadAt
	bs.ops.writeAt = file.WriteAt
	return bs, nil
}

func (bs *blockStore) aligned(off int64) bool {
	return off >= 0 && off%int64(bs.blockSize) == 0
}

// blockOf returns the offset of the block containing off.
func (bs *blockStore) blockOf(off int64) int64 {
	return off - off%int64(bs.blockSize)
}

// readBlock returns the block at off. Bytes past the end of the file read as zero.
func (bs *blockStore) readBlock(off int64) ([]byte, error) {
	if !bs.aligned(off) {
		return nil, errors.Wrapf(ErrUnaligned, "read block at %d", off)
	}
	if b, ok := bs.cache.get(bs.name, off); ok {
		return b, nil
	}
	buf := make([]byte, bs.blockSize)
	if off < bs.filesz {
		n, err := bs.ops.readAt(buf, off)
		if err != nil && err != io.EOF {
			return nil, ioErr("read block", errors.Wrapf(err, "%s at %d", bs.name, off))
		}
		for i := n; i < len(buf); i++ {
			buf[i] = 0
		}
	}
	bs.cache.put(bs.name, off, buf)
	return buf, nil
}

// writeBlock writes a full block at off, extending the file when off is at or
// past its end.
func (bs *blockStore) writeBlock(off int64, buf []byte) error {
	if !bs.aligned(off) {
		return errors.Wrapf(ErrUnaligned, "write block at %d", off)
	}
	if len(buf) != bs.blockSize {
		return errors.Errorf("write block at %d: buffer is %d bytes, want %d", off, len(buf), bs.blockSize)
	}
	if _, err := bs.ops.writeAt(buf, off); err != nil {
		bs.cache.del(bs.name, off)
		return ioErr("write block", errors.Wrapf(err, "%s at %d", bs.name, off))
	}
	if end := off + int64(bs.blockSize); end > bs.filesz {
		bs.filesz = end
	}
	bs.cache.put(bs.name, off, buf)
	return nil
}

// readHead returns the offset of the first record in the chain, or emptyChain.
func (bs *blockStore) readHead() (int32, error) {
	if bs.filesz < int64(bs.blockSize) {
		return 0, &Error{Kind: KindUndersized, Op: "read head",
			Err: errors.Errorf("%s is %d bytes, want at least %d", bs.name, bs.filesz, bs.blockSize)}
	}
	header, err := bs.readBlock(0)
	if err != nil {
		return 0, err
	}
	return getInt32(header, 0), nil
}

func (bs *blockStore) writeHead(head int32) error {
	header, err := bs.readBlock(0)
	if err != nil {
		return err
	}
	putInt32(header, 0, head)
	return bs.writeBlock(0, header)
}

// initHeader writes a fresh header block describing an empty chain.
func (bs *blockStore) initHeader() error {
	header := make([]byte, bs.blockSize)
	putInt32(header, 0, emptyChain)
	return bs.writeBlock(0, header)
}

func (bs *blockStore) sync() error {
	if err := bs.file.Sync(); err != nil {
		return ioErr("sync", errors.Wrap(err, bs.name))
	}
	return nil
}
