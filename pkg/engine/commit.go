package engine

import (
	"sort"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/relionhq/queryengine/pkg/queryerr"
	"github.com/relionhq/queryengine/pkg/record"
	"github.com/relionhq/queryengine/pkg/txstate"
)

// CommitRejection is returned by Commit when every validation check passed
// at ExecuteQuery time but a table changed underneath the staged deltas
// before commit was called (spec.md §4.H's version-mismatch rejection).
type CommitRejection struct {
	ModifiedTables []string
}

func (r *CommitRejection) Error() string {
	return "engine: commit rejected, modified since query ran: " + strings.Join(r.ModifiedTables, ", ")
}

// CanCommit implements spec.md §4.H's version-check gate on its own,
// without applying anything: reload each delta's table and compare its
// freshly hashed version against the version the query staged against. It
// is side-effect free and safe to call repeatedly (spec.md §8 property 6).
func (e *Engine) CanCommit(payload *QueryExecutionPayload) (bool, []string, error) {
	if !payload.Result.CanCommit {
		return false, nil, nil
	}
	var modified []string
	for _, d := range payload.Deltas {
		store, err := e.Provider(d.TableName)
		if err != nil {
			return false, nil, err
		}
		if err := store.Load(); err != nil {
			return false, nil, err
		}
		rows, err := store.GetAll()
		if err != nil {
			return false, nil, err
		}
		if txstate.HashVersion(rows) != d.Version {
			modified = append(modified, d.TableName)
		}
	}
	sort.Strings(modified)
	return len(modified) == 0, modified, nil
}

// Commit implements spec.md §4.H's commit gate: reject on outstanding
// validation errors, reject on a version mismatch, else apply every staged
// delta to its table atomically via Store.Save.
func (e *Engine) Commit(payload *QueryExecutionPayload) error {
	if !payload.Result.CanCommit {
		e.Metrics.observeRejection()
		return aggregateValidationError(payload.Result.ValidationErrors)
	}
	ok, modified, err := e.CanCommit(payload)
	if err != nil {
		return err
	}
	if !ok {
		e.Metrics.observeRejection()
		return &CommitRejection{ModifiedTables: modified}
	}

	now := e.Now().UnixMilli()
	for _, d := range payload.Deltas {
		store, err := e.Provider(d.TableName)
		if err != nil {
			return err
		}
		delta := d
		if err := store.Save(func(file *record.DataFile) {
			applyDelta(file, delta, now)
		}); err != nil {
			return err
		}
	}
	e.Metrics.observeCommit()
	return nil
}

// applyDelta folds one table's staged inserts/updates/deletes into its
// DataFile, matching spec.md §4.F's semantics: deletes first, then updates
// merged onto the surviving rows, then inserts appended.
func applyDelta(file *record.DataFile, d txstate.Delta, now int64) {
	if len(d.Deletes) > 0 {
		deleted := make(map[string]struct{}, len(d.Deletes))
		for _, id := range d.Deletes {
			deleted[id] = struct{}{}
		}
		kept := file.Data[:0:0]
		for _, r := range file.Data {
			if _, gone := deleted[r.ID]; !gone {
				kept = append(kept, r)
			}
		}
		file.Data = kept
	}
	if len(d.Updates) > 0 {
		updates := make(map[string]map[string]any, len(d.Updates))
		for _, u := range d.Updates {
			updates[u.ID] = u.Fields
		}
		for i, r := range file.Data {
			if partial, ok := updates[r.ID]; ok {
				file.Data[i] = r.Merge(partial, now)
			}
		}
	}
	for _, ins := range d.Inserts {
		file.Data = append(file.Data, record.NewDataRecord(ins.TempID, now, now, ins.Fields))
	}
	file.Updated = now
}

// aggregateValidationError joins every recorded ValidationError into one
// error via cockroachdb/errors, so a caller sees one message (and, via
// errors.GetAllDetails, every individual failure) rather than having to
// walk payload.Result.ValidationErrors themselves.
func aggregateValidationError(errs []queryerr.ValidationError) error {
	base := errors.Newf("engine: cannot commit query with %d validation error(s)", len(errs))
	for _, ve := range errs {
		base = errors.WithDetail(base, ve.Error())
	}
	return base
}
