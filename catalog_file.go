package seqfile

import (
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
)

const (
	// catalogMagic = "SQCT" in bigEndian
	catalogMagic   uint32 = 0x53514354
	catalogVersion uint16 = 1
	// magic + version + compression + checksum
	catalogHeaderSize = 4 + 2 + 2 + 8
)

var ErrBadCatalog = errors.New("catalog file is damaged")

// Catalog file layout
//
//	| magic uint32 | version uint16 | compression uint16 | checksum uint64 | payload |
//
// payload is the compressed JSON table list; checksum is xxhash64 of the
// compressed payload.

type catalogTable struct {
	Name   string `json:"name"`
	Fields Schema `json:"fields"`
}

// FileCatalog is a MemCatalog persisted to a single file on every change.
type FileCatalog struct {
	*MemCatalog
	path        string
	compression CompressAlgorithm
}

// OpenFileCatalog loads the catalog at path, or starts an empty one when the
// file does not exist. New writes use compression.
func OpenFileCatalog(path string, compression CompressAlgorithm) (*FileCatalog, error) {
	if _, _, err := compression.codec(); err != nil {
		return nil, err
	}
	c := &FileCatalog{MemCatalog: NewMemCatalog(), path: path, compression: compression}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return c, nil
	} else if err != nil {
		return nil, errors.Wrap(err, "read catalog")
	}
	tables, err := decodeCatalog(data)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	for _, t := range tables {
		if err := c.MemCatalog.Define(t.Name, t.Fields); err != nil {
			return nil, errors.Wrap(err, path)
		}
	}
	return c, nil
}

// Define registers table and rewrites the catalog file.
func (c *FileCatalog) Define(table string, schema Schema) error {
	if err := c.MemCatalog.Define(table, schema); err != nil {
		return err
	}
	return c.save()
}

// Drop forgets table and rewrites the catalog file.
func (c *FileCatalog) Drop(table string) error {
	c.MemCatalog.Drop(table)
	return c.save()
}

func (c *FileCatalog) Path() string { return c.path }

func (c *FileCatalog) save() error {
	c.mu.RLock()
	tables := make([]catalogTable, 0, len(c.tables))
	for name, schema := range c.tables {
		tables = append(tables, catalogTable{Name: name, Fields: schema})
	}
	c.mu.RUnlock()
	sort.Slice(tables, func(i, j int) bool { return tables[i].Name < tables[j].Name })

	data, err := encodeCatalog(tables, c.compression)
	if err != nil {
		return err
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errors.Wrap(err, "write catalog")
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return errors.Wrap(err, "replace catalog")
	}
	return nil
}

func encodeCatalog(tables []catalogTable, compression CompressAlgorithm) ([]byte, error) {
	compress, _, err := compression.codec()
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(tables)
	if err != nil {
		return nil, errors.Wrap(err, "marshal catalog")
	}
	payload, err := compress(raw)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, catalogHeaderSize, catalogHeaderSize+len(payload))
	binary.BigEndian.PutUint32(buf[0:], catalogMagic)
	binary.BigEndian.PutUint16(buf[4:], catalogVersion)
	binary.BigEndian.PutUint16(buf[6:], uint16(compression))
	binary.BigEndian.PutUint64(buf[8:], xxhash.Sum64(payload))
	return append(buf, payload...), nil
}

func decodeCatalog(data []byte) ([]catalogTable, error) {
	if len(data) < catalogHeaderSize {
		return nil, errors.Wrapf(ErrBadCatalog, "%d bytes is shorter than the header", len(data))
	}
	if binary.BigEndian.Uint32(data[0:]) != catalogMagic {
		return nil, errors.Wrap(ErrBadCatalog, "bad magic")
	}
	if v := binary.BigEndian.Uint16(data[4:]); v != catalogVersion {
		return nil, errors.Wrapf(ErrBadCatalog, "unsupported version %d", v)
	}
	compression := CompressAlgorithm(binary.BigEndian.Uint16(data[6:]))
	_, decompress, err := compression.codec()
	if err != nil {
		return nil, errors.Wrap(ErrBadCatalog, err.Error())
	}
	payload := data[catalogHeaderSize:]
	if sum := xxhash.Sum64(payload); sum != binary.BigEndian.Uint64(data[8:]) {
		return nil, errors.Wrapf(ErrBadCatalog, "checksum mismatch: calculated %x", sum)
	}
	raw, err := decompress(payload)
	if err != nil {
		return nil, errors.Wrap(err, "decompress catalog")
	}
	var tables []catalogTable
	if err := json.Unmarshal(raw, &tables); err != nil {
		return nil, errors.Wrap(err, "unmarshal catalog")
	}
	return tables, nil
}

// DefaultCatalogPath is where the CLI keeps the catalog of a data directory.
func DefaultCatalogPath(dir string) string {
	return filepath.Join(dir, "catalog.sqct")
}
