package store

import (
	"strings"

	"github.com/cockroachdb/pebble"
	pkgerrors "github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/relionhq/queryengine/pkg/record"
)

// PebbleStore is the second txstate.Store reference implementation: one
// shared embedded LSM-tree database holds every table, keyed `table/id`.
// It demonstrates the pluggable-store contract with a real, well-known
// embedded KV engine rather than the teacher's bespoke heap format.
type PebbleStore struct {
	db    *pebble.DB
	table string
}

// OpenPebbleStores opens one pebble.DB at path and returns a StoreProvider
// backed by it -- every table name maps to a PebbleStore sharing the same
// underlying database, each scoped to its own key prefix.
func OpenPebbleStores(path string) (func(table string) (*PebbleStore, error), func() error, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, nil, pkgerrors.Wrap(err, "store: opening pebble database")
	}
	provider := func(table string) (*PebbleStore, error) {
		return &PebbleStore{db: db, table: strings.ToLower(table)}, nil
	}
	return provider, db.Close, nil
}

func (ps *PebbleStore) keyPrefix() []byte {
	return []byte(ps.table + "/")
}

func (ps *PebbleStore) key(id string) []byte {
	return []byte(ps.table + "/" + id)
}

// Load is a no-op for PebbleStore: pebble itself is the durable store, and
// GetAll reads straight through to it, so there is no separate in-memory
// cache to warm.
func (ps *PebbleStore) Load() error { return nil }

// GetAll scans every key under this table's prefix and decodes it back
// into a DataRecord.
func (ps *PebbleStore) GetAll() ([]*record.DataRecord, error) {
	prefix := ps.keyPrefix()
	upperBound := append(append([]byte{}, prefix...), 0xFF)
	iter, err := ps.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: upperBound,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(err, "store: iterating pebble table")
	}
	defer iter.Close()

	var out []*record.DataRecord
	for iter.First(); iter.Valid(); iter.Next() {
		var payload pebbleRecord
		if err := bson.Unmarshal(iter.Value(), &payload); err != nil {
			return nil, pkgerrors.Wrap(err, "store: decoding pebble record")
		}
		out = append(out, record.NewDataRecord(payload.ID, payload.Created, payload.Updated, payload.Fields))
	}
	return out, iter.Error()
}

// Save reads the current snapshot from pebble, lets mutate apply a delta,
// then writes the result back as one pebble batch -- pebble's own
// WAL+memtable machinery gives this batch its atomicity, the same
// guarantee the teacher's own WAL gives FileStore's heap writes.
func (ps *PebbleStore) Save(mutate func(*record.DataFile)) error {
	rows, err := ps.GetAll()
	if err != nil {
		return err
	}
	file := &record.DataFile{Data: rows}
	before := make(map[string]bool, len(rows))
	for _, r := range rows {
		before[r.ID] = true
	}

	mutate(file)

	after := make(map[string]bool, len(file.Data))
	for _, r := range file.Data {
		after[r.ID] = true
	}

	batch := ps.db.NewBatch()
	defer batch.Close()

	for _, r := range file.Data {
		payload := pebbleRecord{ID: r.ID, Created: r.Created, Updated: r.Updated, Fields: r.Fields}
		body, err := bson.Marshal(payload)
		if err != nil {
			return pkgerrors.Wrap(err, "store: encoding pebble record")
		}
		if err := batch.Set(ps.key(r.ID), body, nil); err != nil {
			return pkgerrors.Wrap(err, "store: staging pebble set")
		}
	}
	for id := range before {
		if !after[id] {
			if err := batch.Delete(ps.key(id), nil); err != nil {
				return pkgerrors.Wrap(err, "store: staging pebble delete")
			}
		}
	}

	return pkgerrors.Wrap(batch.Commit(pebble.Sync), "store: committing pebble batch")
}

type pebbleRecord struct {
	ID      string         `bson:"id"`
	Created int64          `bson:"created"`
	Updated int64          `bson:"updated"`
	Fields  map[string]any `bson:"fields"`
}
