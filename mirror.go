package seqfile

import (
	"encoding/binary"
	"encoding/json"
	"sort"
	"time"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Mirror keeps an independent copy of every inserted row in a bolt database,
// one bucket per table in insertion order, so engine results can be
// cross-checked. Register it with DB.AddHook.
type Mirror struct {
	db  *bolt.DB
	log *log.Entry
}

type mirrorColumn struct {
	Name  string  `json:"n"`
	Value *string `json:"v"`
}

// OpenMirror opens or creates the mirror database at path.
func OpenMirror(path string, logger *log.Logger) (*Mirror, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "open mirror")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Mirror{db: db, log: logger.WithField("mirror", path)}, nil
}

func (m *Mirror) Close() error {
	if err := m.db.Close(); err != nil {
		return errors.Wrap(err, "close mirror")
	}
	return nil
}

// TableCreated drops any rows previously mirrored for table.
func (m *Mirror) TableCreated(table string, schema Schema) error {
	return m.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket([]byte(table)) != nil {
			if err := tx.DeleteBucket([]byte(table)); err != nil {
				return errors.Wrapf(err, "drop mirror bucket %s", table)
			}
		}
		_, err := tx.CreateBucket([]byte(table))
		return errors.Wrapf(err, "create mirror bucket %s", table)
	})
}

// AfterInsert appends row to the table's bucket.
func (m *Mirror) AfterInsert(table string, offset int64, row Row) error {
	cols := make([]mirrorColumn, len(row))
	for i, c := range row {
		cols[i].Name = c.Name
		if c.Value.Valid {
			v := c.Value.String
			cols[i].Value = &v
		}
	}
	data, err := json.Marshal(cols)
	if err != nil {
		return errors.Wrap(err, "marshal mirror row")
	}
	err = m.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(table))
		if err != nil {
			return err
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		return b.Put(itob(seq), data)
	})
	if err != nil {
		return errors.Wrapf(err, "mirror insert into %s", table)
	}
	m.log.WithFields(log.Fields{"table": table, "offset": offset}).Debug("row mirrored")
	return nil
}

// Rows returns the mirrored rows of table in insertion order.
func (m *Mirror) Rows(table string) ([]Row, error) {
	var rows []Row
	err := m.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(table))
		if b == nil {
			return errors.Errorf("no mirrored table %s", table)
		}
		return b.ForEach(func(_, v []byte) error {
			var cols []mirrorColumn
			if err := json.Unmarshal(v, &cols); err != nil {
				return errors.Wrap(err, "unmarshal mirror row")
			}
			row := make(Row, len(cols))
			for i, c := range cols {
				row[i].Name = c.Name
				if c.Value != nil {
					row[i].Value = Str(*c.Value)
				}
			}
			rows = append(rows, row)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Join computes the equi-join of two mirrored tables on their first columns
// by comparing every pair of rows, ordered by the left key.
func (m *Mirror) Join(left, right string) ([]Row, error) {
	lrows, err := m.Rows(left)
	if err != nil {
		return nil, err
	}
	rrows, err := m.Rows(right)
	if err != nil {
		return nil, err
	}
	type pair struct {
		key string
		row Row
	}
	var pairs []pair
	for _, l := range lrows {
		if len(l) == 0 || !l[0].Value.Valid {
			continue
		}
		for _, r := range rrows {
			if len(r) == 0 || !r[0].Value.Valid || r[0].Value.String != l[0].Value.String {
				continue
			}
			pairs = append(pairs, pair{
				key: l[0].Value.String,
				row: joinRows(Relation{Table: left, Rows: []Row{l}}, 0, Relation{Table: right, Rows: []Row{r}}, 0),
			})
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].key < pairs[j].key })
	out := make([]Row, len(pairs))
	for i, p := range pairs {
		out[i] = p.row
	}
	return out, nil
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
