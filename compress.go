package seqfile

import (
	"bytes"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4"
	"github.com/pkg/errors"
)

// CompressAlgorithm selects how the catalog file payload is stored. Table
// files are never compressed.
type CompressAlgorithm uint16

const (
	CompSnappy CompressAlgorithm = iota // default
	CompNone
	CompLz4
	CompZstd
)

func (c CompressAlgorithm) String() string {
	switch c {
	case CompSnappy:
		return "snappy"
	case CompNone:
		return "none"
	case CompLz4:
		return "lz4"
	case CompZstd:
		return "zstd"
	}
	return "unknown"
}

// ParseCompressAlgorithm maps a name as printed by String back to its value.
func ParseCompressAlgorithm(name string) (CompressAlgorithm, error) {
	for _, c := range []CompressAlgorithm{CompSnappy, CompNone, CompLz4, CompZstd} {
		if c.String() == name {
			return c, nil
		}
	}
	return 0, errors.Errorf("unknown compression %q", name)
}

type Compressor func([]byte) ([]byte, error)
type DeCompressor func([]byte) ([]byte, error)

var (
	NoneCompress   Compressor   = func(in []byte) ([]byte, error) { return in, nil }
	NoneDeCompress DeCompressor = func(in []byte) ([]byte, error) { return in, nil }
)

var (
	SnappyCompress Compressor = func(in []byte) ([]byte, error) {
		return snappy.Encode(nil, in), nil
	}
	SnappyDeCompress DeCompressor = func(in []byte) ([]byte, error) {
		return snappy.Decode(nil, in)
	}
)

var (
	Lz4Compress Compressor = func(in []byte) ([]byte, error) {
		buf := &bytes.Buffer{}
		writer := lz4.NewWriter(buf)
		writer.NoChecksum = true
		if _, err := writer.Write(in); err != nil {
			return nil, errors.Wrap(err, "lz4 compress")
		}
		if err := writer.Close(); err != nil {
			return nil, errors.Wrap(err, "lz4 compress")
		}
		return buf.Bytes(), nil
	}

	Lz4DeCompress DeCompressor = func(in []byte) ([]byte, error) {
		buf := &bytes.Buffer{}
		reader := lz4.NewReader(bytes.NewReader(in))
		_, err := buf.ReadFrom(reader)
		return buf.Bytes(), err
	}
)

var (
	ZstdCompress Compressor = func(in []byte) ([]byte, error) {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, errors.Wrap(err, "zstd compress")
		}
		defer enc.Close()
		return enc.EncodeAll(in, nil), nil
	}

	ZstdDeCompress DeCompressor = func(in []byte) ([]byte, error) {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, errors.Wrap(err, "zstd decompress")
		}
		defer dec.Close()
		return dec.DecodeAll(in, nil)
	}
)

func (c CompressAlgorithm) codec() (Compressor, DeCompressor, error) {
	switch c {
	case CompSnappy:
		return SnappyCompress, SnappyDeCompress, nil
	case CompNone:
		return NoneCompress, NoneDeCompress, nil
	case CompLz4:
		return Lz4Compress, Lz4DeCompress, nil
	case CompZstd:
		return ZstdCompress, ZstdDeCompress, nil
	}
	return nil, nil, errors.Errorf("unknown compression %d", c)
}
