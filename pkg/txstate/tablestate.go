// Package txstate implements spec.md §3's TableState and QueryContext: the
// per-query transactional overlay over a table's stored rows, and the
// per-query scratchpad threaded through planning, evaluation, and the
// integrity pass.
package txstate

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"

	"github.com/relionhq/queryengine/pkg/record"
)

// TableState is the staging overlay for one table within one query,
// spec.md §3/§4.F. It is created lazily on first reference and discarded
// unless the commit gate applies its delta.
type TableState struct {
	TableName string

	// Original is the snapshot taken at first reference (spec.md §5:
	// "statements observe a snapshot of each table taken at first
	// reference").
	Original []*record.DataRecord

	// Current is kept consistent with the pending sets at all times:
	// snapshot + staged inserts - deletes + updates applied.
	Current []*record.DataRecord

	Deleted  map[string]struct{}
	Updated  map[string]map[string]any
	Inserted map[string]map[string]any

	// Version is a cheap hash over the sorted (id, updated) pairs of
	// Original, computed once at load time (spec.md §4.F).
	Version string

	byID map[string]int // id -> index into Current, kept in sync by staging ops
}

// Load snapshots rows into a fresh TableState: Original and Current both
// start as copies of rows, Version is hashed from Original.
func Load(tableName string, rows []*record.DataRecord) *TableState {
	original := make([]*record.DataRecord, len(rows))
	current := make([]*record.DataRecord, len(rows))
	byID := make(map[string]int, len(rows))
	for i, r := range rows {
		original[i] = r
		current[i] = r
		byID[r.ID] = i
	}
	return &TableState{
		TableName: tableName,
		Original:  original,
		Current:   current,
		Deleted:   make(map[string]struct{}),
		Updated:   make(map[string]map[string]any),
		Inserted:  make(map[string]map[string]any),
		Version:   HashVersion(original),
		byID:      byID,
	}
}

// HashVersion computes spec.md §4.F's cheap version digest: a hash over the
// sorted (id, updated) pairs of a snapshot.
func HashVersion(rows []*record.DataRecord) string {
	pairs := make([]string, len(rows))
	for i, r := range rows {
		pairs[i] = fmt.Sprintf("%s:%d", r.ID, r.Updated)
	}
	sort.Strings(pairs)

	h := fnv.New64a()
	for _, p := range pairs {
		h.Write([]byte(p))
		h.Write([]byte{','})
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

// Insert implements spec.md §4.F's insert(id, fields): pushes a new
// DataRecord (created=updated=now) into Current, records it in Inserted,
// and clears any stale Deleted marker for the id.
func (ts *TableState) Insert(id string, fields map[string]any, now int64) *record.DataRecord {
	rec := record.NewDataRecord(id, now, now, fields)
	ts.Current = append(ts.Current, rec)
	ts.byID[id] = len(ts.Current) - 1
	ts.Inserted[id] = rec.Fields
	delete(ts.Deleted, id)
	return rec
}

// Update implements spec.md §4.F's update(id, partial): locates id in
// Current, merges fields, bumps Updated; if id is a pending insert the
// partial is folded into that insert rather than tracked separately.
func (ts *TableState) Update(id string, partial map[string]any, now int64) (*record.DataRecord, bool) {
	idx, ok := ts.byID[id]
	if !ok {
		return nil, false
	}
	next := ts.Current[idx].Merge(partial, now)
	ts.Current[idx] = next
	if _, isInsert := ts.Inserted[id]; isInsert {
		for k, v := range partial {
			ts.Inserted[id][strings.ToLower(k)] = v
		}
	} else {
		merged, ok := ts.Updated[id]
		if !ok {
			merged = make(map[string]any, len(partial))
		}
		for k, v := range partial {
			merged[strings.ToLower(k)] = v
		}
		ts.Updated[id] = merged
	}
	return next, true
}

// Delete implements spec.md §4.F's delete(id): removes id from Current; if
// id was a pending insert the insert is discarded entirely, else any
// pending update is dropped and id is recorded as Deleted.
func (ts *TableState) Delete(id string) bool {
	idx, ok := ts.byID[id]
	if !ok {
		return false
	}
	ts.Current = append(ts.Current[:idx], ts.Current[idx+1:]...)
	delete(ts.byID, id)
	for i := idx; i < len(ts.Current); i++ {
		ts.byID[ts.Current[i].ID] = i
	}
	if _, isInsert := ts.Inserted[id]; isInsert {
		delete(ts.Inserted, id)
		return true
	}
	delete(ts.Updated, id)
	ts.Deleted[id] = struct{}{}
	return true
}

// Get returns the current record for an id, if present.
func (ts *TableState) Get(id string) (*record.DataRecord, bool) {
	idx, ok := ts.byID[id]
	if !ok {
		return nil, false
	}
	return ts.Current[idx], true
}

// Delta is the staged change set a committed TableState produces, spec.md
// §3's TableDelta.
type Delta struct {
	TableName string
	Version   string
	Inserts   []InsertDelta
	Updates   []UpdateDelta
	Deletes   []string
}

// InsertDelta is one staged insert.
type InsertDelta struct {
	TempID string
	Fields map[string]any
}

// UpdateDelta is one staged update.
type UpdateDelta struct {
	ID     string
	Fields map[string]any
}

// ToDelta packages the staged sets into the shape the commit gate applies.
func (ts *TableState) ToDelta() Delta {
	d := Delta{TableName: ts.TableName, Version: ts.Version}
	for id, fields := range ts.Inserted {
		d.Inserts = append(d.Inserts, InsertDelta{TempID: id, Fields: fields})
	}
	for id, fields := range ts.Updated {
		d.Updates = append(d.Updates, UpdateDelta{ID: id, Fields: fields})
	}
	for id := range ts.Deleted {
		d.Deletes = append(d.Deletes, id)
	}
	sort.Slice(d.Inserts, func(i, j int) bool { return d.Inserts[i].TempID < d.Inserts[j].TempID })
	sort.Slice(d.Updates, func(i, j int) bool { return d.Updates[i].ID < d.Updates[j].ID })
	sort.Strings(d.Deletes)
	return d
}

// Dirty reports whether anything has been staged at all.
func (ts *TableState) Dirty() bool {
	return len(ts.Inserted) > 0 || len(ts.Updated) > 0 || len(ts.Deleted) > 0
}
