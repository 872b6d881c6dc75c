// Package store provides reference txstate.Store implementations: a
// file-backed store built on the teacher's own heap+B+Tree persistence
// primitives (FileStore), and an alternative backed by an embedded LSM KV
// engine (PebbleStore, see pebblestore.go). Neither is required by the
// CORE (spec.md treats the data manager as an interface only), but a
// runnable module needs at least one concrete Store, built the way the
// teacher builds its own storage layer.
package store

import (
	"fmt"
	"strings"
	"sync"

	"github.com/DataDog/zstd"
	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/relionhq/queryengine/pkg/btree"
	storeerrors "github.com/relionhq/queryengine/pkg/errors"
	"github.com/relionhq/queryengine/pkg/heap"
	"github.com/relionhq/queryengine/pkg/record"
	"github.com/relionhq/queryengine/pkg/storekey"
	"github.com/relionhq/queryengine/pkg/wal"
)

// lsnTracker hands out a monotonically increasing sequence number for every
// heap write, adapted from the teacher's own WAL LSN tracker -- here it
// gives the commit gate's version-hash recompute something that actually
// changes across Save calls.
type lsnTracker struct {
	mu   sync.Mutex
	next uint64
}

func (t *lsnTracker) bump() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	return t.next
}

// FileStore is a txstate.Store backed by one heap segment file plus a
// unique B+Tree index from record id to its latest heap offset, matching
// the teacher's own heap/BPlusTree pairing. Every mutation is
// written ahead to a per-table WAL before it touches the heap, so a crash
// between the two leaves a replayable trail rather than a half-applied
// write.
type FileStore struct {
	table    string
	compress bool

	mu    sync.RWMutex
	heap  *heap.RecordHeap
	index *btree.BPlusTree
	walw  *wal.WALWriter
	lsn   lsnTracker

	cache   map[string]*record.DataRecord
	updated int64
}

// Option configures a FileStore at construction.
type Option func(*FileStore)

// WithCompression enables zstd compression of every persisted record,
// exercising the otherwise-unused DataDog/zstd dependency the teacher's
// checkpoint path pulls in transitively.
func WithCompression() Option {
	return func(fs *FileStore) { fs.compress = true }
}

// NewFileStore opens (or creates) a heap-backed store for one table at the
// given base path (a directory; the heap itself manages `<path>/<table>_NNN.data`
// segment files).
func NewFileStore(basePath, table string, opts ...Option) (*FileStore, error) {
	lower := strings.ToLower(table)
	rh, err := heap.Open(basePath + "/" + lower)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "store: opening heap for table %q", table)
	}

	walOpts := wal.DefaultOptions()
	walOpts.SyncPolicy = wal.SyncEveryWrite
	walw, err := wal.NewWALWriter(basePath+"/"+lower+".wal", walOpts)
	if err != nil {
		rh.Close()
		return nil, pkgerrors.Wrapf(err, "store: opening wal for table %q", table)
	}

	fs := &FileStore{
		table: lower,
		heap:  rh,
		index: btree.NewUniqueTree(64),
		walw:  walw,
		cache: make(map[string]*record.DataRecord),
	}
	for _, opt := range opts {
		opt(fs)
	}
	return fs, nil
}

// Load replays every valid record in heap order into the in-memory cache
// and index, so later versions of the same id naturally overwrite earlier
// ones (the heap's append-only version chain resolves to "last write
// wins" by iteration order).
func (fs *FileStore) Load() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	it, err := fs.heap.NewIterator()
	if err != nil {
		return pkgerrors.Wrapf(err, "store: opening iterator for table %q", fs.table)
	}
	defer it.Close()

	cache := make(map[string]*record.DataRecord)
	for {
		doc, header, offset, err := it.Next()
		if err != nil {
			break
		}
		if !header.Valid {
			continue
		}
		id, rec, err := fs.decodeEntry(doc)
		if err != nil {
			return pkgerrors.Wrapf(err, "store: decoding record in table %q", fs.table)
		}
		cache[id] = rec
		if err := fs.index.Replace(storekey.VarcharKey(id), offset); err != nil {
			return pkgerrors.Wrapf(err, "store: indexing record %q in table %q", id, fs.table)
		}
		if rec.Updated > fs.updated {
			fs.updated = rec.Updated
		}
	}
	fs.cache = cache
	return nil
}

// GetAll returns every currently-live record for the table.
func (fs *FileStore) GetAll() ([]*record.DataRecord, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	out := make([]*record.DataRecord, 0, len(fs.cache))
	for _, r := range fs.cache {
		out = append(out, r)
	}
	return out, nil
}

// Save lets mutate apply a delta to a DataFile snapshot of the current
// cache, then persists every changed/new record to the heap and removes
// every record mutate dropped, updating the index and cache to match.
func (fs *FileStore) Save(mutate func(*record.DataFile)) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	before := make(map[string]*record.DataRecord, len(fs.cache))
	for id, r := range fs.cache {
		before[id] = r
	}

	file := &record.DataFile{Updated: fs.updated, Data: make([]*record.DataRecord, 0, len(fs.cache))}
	for _, r := range fs.cache {
		file.Data = append(file.Data, r)
	}
	mutate(file)

	after := make(map[string]*record.DataRecord, len(file.Data))
	for _, r := range file.Data {
		after[r.ID] = r
	}

	for id, rec := range after {
		prev, existed := before[id]
		if existed && prev.Updated == rec.Updated && prev.Created == rec.Created {
			continue // unchanged, nothing to persist
		}
		entryType := wal.EntryInsert
		if existed {
			entryType = wal.EntryUpdate
		}
		if err := fs.persistOne(id, rec, entryType); err != nil {
			return err
		}
	}
	for id := range before {
		if _, stillThere := after[id]; stillThere {
			continue
		}
		if err := fs.tombstone(id); err != nil {
			return err
		}
	}

	fs.cache = after
	fs.updated = file.Updated
	return nil
}

// persistOne encodes one record, writes it ahead to the WAL, then appends
// it to the heap as a new version chained onto the previous offset (if
// any), and replaces the index entry with the new one. The LSN is generated
// once and shared between the WAL entry and the heap's CreateLSN so the two
// logs agree on ordering.
func (fs *FileStore) persistOne(id string, rec *record.DataRecord, entryType uint8) error {
	doc, err := fs.encodeEntry(id, rec)
	if err != nil {
		return pkgerrors.Wrapf(err, "store: encoding record %q", id)
	}
	prevOffset := int64(-1)
	if off, ok := fs.index.Get(storekey.VarcharKey(id)); ok {
		prevOffset = off
	}
	lsn := fs.lsn.bump()
	if err := fs.writeAhead(entryType, lsn, doc); err != nil {
		return err
	}
	offset, err := fs.heap.Write(doc, lsn, prevOffset)
	if err != nil {
		return pkgerrors.Wrapf(err, "store: writing record %q", id)
	}
	if err := fs.index.Replace(storekey.VarcharKey(id), offset); err != nil {
		return pkgerrors.Wrapf(err, "store: indexing record %q", id)
	}
	return nil
}

// tombstone writes a WAL delete entry ahead of marking a deleted id's
// latest heap version invalid.
func (fs *FileStore) tombstone(id string) error {
	offset, ok := fs.index.Get(storekey.VarcharKey(id))
	if !ok {
		return &storeerrors.IndexNotFoundError{Name: id}
	}
	lsn := fs.lsn.bump()
	if err := fs.writeAhead(wal.EntryDelete, lsn, []byte(id)); err != nil {
		return err
	}
	if err := fs.heap.Delete(offset, lsn); err != nil {
		return pkgerrors.Wrapf(err, "store: deleting record %q", id)
	}
	return nil
}

// writeAhead appends one WAL entry ahead of the heap mutation it precedes,
// mirroring the teacher's own acquire/fill-header/WriteEntry/release idiom
// around its lsnTracker-stamped WAL entries.
func (fs *FileStore) writeAhead(entryType uint8, lsn uint64, payload []byte) error {
	entry := wal.AcquireEntry()
	defer wal.ReleaseEntry(entry)

	entry.Header = wal.WALHeader{
		Magic:      wal.WALMagic,
		Version:    wal.WALVersion,
		EntryType:  entryType,
		LSN:        lsn,
		PayloadLen: uint32(len(payload)),
		CRC32:      wal.CalculateCRC32(payload),
	}
	entry.Payload = append(entry.Payload, payload...)

	if err := fs.walw.WriteEntry(entry); err != nil {
		return pkgerrors.Wrapf(err, "store: wal append for table %q", fs.table)
	}
	return nil
}

// encodeEntry frames one heap payload as a varint-prefixed id followed by
// a varint-prefixed (optionally zstd-compressed) BSON-encoded field map,
// adapted from the teacher's checkpoint serializer's use of protobuf
// varint length framing.
func (fs *FileStore) encodeEntry(id string, rec *record.DataRecord) ([]byte, error) {
	payload := map[string]any{
		"id":      rec.ID,
		"created": rec.Created,
		"updated": rec.Updated,
		"fields":  rec.Fields,
	}
	body, err := bson.Marshal(payload)
	if err != nil {
		return nil, err
	}
	if fs.compress {
		body, err = zstd.Compress(nil, body)
		if err != nil {
			return nil, err
		}
	}

	var buf []byte
	buf = protowire.AppendVarint(buf, uint64(len(id)))
	buf = append(buf, []byte(id)...)
	buf = protowire.AppendVarint(buf, uint64(len(body)))
	buf = append(buf, body...)
	return buf, nil
}

// decodeEntry reverses encodeEntry.
func (fs *FileStore) decodeEntry(doc []byte) (string, *record.DataRecord, error) {
	idLen, n := protowire.ConsumeVarint(doc)
	if n < 0 {
		return "", nil, fmt.Errorf("store: malformed entry: bad id length varint")
	}
	doc = doc[n:]
	if uint64(len(doc)) < idLen {
		return "", nil, fmt.Errorf("store: malformed entry: truncated id")
	}
	id := string(doc[:idLen])
	doc = doc[idLen:]

	bodyLen, n := protowire.ConsumeVarint(doc)
	if n < 0 {
		return "", nil, fmt.Errorf("store: malformed entry: bad body length varint")
	}
	doc = doc[n:]
	if uint64(len(doc)) < bodyLen {
		return "", nil, fmt.Errorf("store: malformed entry: truncated body")
	}
	body := doc[:bodyLen]

	if fs.compress {
		decompressed, err := zstd.Decompress(nil, body)
		if err != nil {
			return "", nil, err
		}
		body = decompressed
	}

	var payload struct {
		ID      string         `bson:"id"`
		Created int64          `bson:"created"`
		Updated int64          `bson:"updated"`
		Fields  map[string]any `bson:"fields"`
	}
	if err := bson.Unmarshal(body, &payload); err != nil {
		return "", nil, err
	}
	return id, record.NewDataRecord(payload.ID, payload.Created, payload.Updated, payload.Fields), nil
}

// Close releases the underlying heap's and WAL's file handles.
func (fs *FileStore) Close() error {
	if err := fs.walw.Close(); err != nil {
		return err
	}
	return fs.heap.Close()
}

// Compact rewrites every live record into a fresh heap segment set at a
// uniquely-named path, adapted from the teacher's own CheckpointManager:
// periodic compaction so a long-lived table's heap file doesn't grow
// forever with superseded versions. The old heap is closed once the new
// one holds every current record.
func (fs *FileStore) Compact(basePath string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	freshPath := fmt.Sprintf("%s/%s.compact-%s", basePath, fs.table, uuid.NewString())
	freshHeap, err := heap.Open(freshPath)
	if err != nil {
		return pkgerrors.Wrapf(err, "store: compacting table %q", fs.table)
	}
	freshIndex := btree.NewUniqueTree(64)

	oldHeap := fs.heap
	fs.heap = freshHeap
	fs.index = freshIndex
	for id, rec := range fs.cache {
		if err := fs.persistOne(id, rec, wal.EntryInsert); err != nil {
			return err
		}
	}
	return oldHeap.Close()
}
