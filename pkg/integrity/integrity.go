// Package integrity implements spec.md §4.G: the post-execution cascade
// resolution and referential/required-field/enum validation pass. It never
// throws -- every finding is appended to the query's error sink.
package integrity

import (
	"fmt"
	"strings"

	"github.com/relionhq/queryengine/pkg/queryerr"
	"github.com/relionhq/queryengine/pkg/record"
	"github.com/relionhq/queryengine/pkg/schema"
	"github.com/relionhq/queryengine/pkg/txstate"
	"github.com/relionhq/queryengine/pkg/value"
)

// Run executes both integrity sub-passes in spec.md §4.G's order: cascade
// resolution first (so a delete's ripple effects are visible to the
// second pass), then referential/required/enum validation.
func Run(qc *txstate.QueryContext) error {
	if err := runCascade(qc); err != nil {
		return err
	}
	runValidation(qc)
	return nil
}

type work struct {
	table, id string
}

// runCascade implements spec.md's cascade resolution via an iterative
// worklist rather than recursion, per the Design Notes' "cyclic cascade
// graph" guidance: recursion on a large reference graph risks a stack
// overflow; a worklist with a visited set does not.
func runCascade(qc *txstate.QueryContext) error {
	var queue []work
	for tableName, ts := range qc.TableStates {
		for id := range ts.Deleted {
			queue = append(queue, work{table: tableName, id: id})
		}
	}
	visited := make(map[work]bool)
	for len(queue) > 0 {
		w := queue[0]
		queue = queue[1:]
		if visited[w] {
			continue
		}
		visited[w] = true

		refs := qc.Types.ReferencingFields(w.table)
		for _, rf := range refs {
			refTableName := strings.ToLower(rf.Table.Name)
			refTS, err := qc.LoadTable(refTableName)
			if err != nil {
				return err
			}
			for _, rec := range append([]*record.DataRecord{}, refTS.Current...) {
				raw, ok := rec.Get(rf.Field.Name)
				if !ok {
					continue
				}
				id, ok := raw.(string)
				if !ok || id != w.id {
					continue
				}
				switch rf.Field.EffectiveOnDelete() {
				case schema.OnDeleteRestrict:
					qc.Errors.Addf("integrity.cascade",
						"cannot delete %s id %q: referenced by %s.%s on row %q",
						w.table, w.id, refTableName, rf.Field.Name, rec.ID)
				case schema.OnDeleteCascade:
					refTS.Delete(rec.ID)
					queue = append(queue, work{table: refTableName, id: rec.ID})
				case schema.OnDeleteSetNull:
					refTS.Update(rec.ID, map[string]any{rf.Field.Name: nil}, qc.Now().UnixMilli())
				}
			}
		}
	}
	return nil
}

// runValidation implements spec.md's required-field/FK/enum checks over
// every inserted or updated record.
func runValidation(qc *txstate.QueryContext) {
	for tableName, ts := range qc.TableStates {
		typ, ok := qc.Types.Get(tableName)
		if !ok {
			continue
		}
		checkOne := func(id, pathPrefix string) {
			rec, ok := ts.Get(id)
			if !ok {
				return
			}
			for _, f := range typ.Fields {
				raw, _ := rec.Get(f.Name)
				v := value.Of(raw)
				hint := &value.FieldHint{Name: f.Name, Type: f.Type, Required: f.Required, EnumOptions: f.EnumOptions}
				path := fmt.Sprintf("%s.%s", pathPrefix, f.Name)
				if assignErr := v.IsAssignableTo(hint); assignErr != nil {
					qc.Errors.Add(queryerr.ValidationError{
						Path:         path,
						Message:      assignErr.Message,
						ExpectedType: assignErr.ExpectedType,
						ActualType:   assignErr.ActualType,
					})
					continue
				}
				if !f.IsForeignKey() || v.IsNull() {
					continue
				}
				targetName := strings.ToLower(f.Type)
				targetTS, err := qc.LoadTable(targetName)
				if err != nil {
					qc.Errors.Addf(path, "cannot validate field %q: %v", f.Name, err)
					continue
				}
				idStr, _ := v.Raw.(string)
				if _, ok := targetTS.Get(idStr); !ok {
					qc.Errors.Addf(path, "field %q references missing %s id %q", f.Name, f.Type, idStr)
				}
			}
		}
		for id := range ts.Inserted {
			checkOne(id, fmt.Sprintf("integrity.%s.inserted[%s]", tableName, id))
		}
		for id := range ts.Updated {
			checkOne(id, fmt.Sprintf("integrity.%s.updated[%s]", tableName, id))
		}
	}
}
