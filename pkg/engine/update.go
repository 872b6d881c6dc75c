package engine

import (
	"fmt"
	"strings"

	"github.com/relionhq/queryengine/pkg/ast"
	"github.com/relionhq/queryengine/pkg/expr"
	"github.com/relionhq/queryengine/pkg/planner"
	"github.com/relionhq/queryengine/pkg/record"
	"github.com/relionhq/queryengine/pkg/txstate"
)

// execUpdate implements spec.md §4.E's UPDATE: resolve the target (plus an
// optional FROM/JOIN row source), filter by WHERE, evaluate each row's SET
// list against the joined row, stage the update once per distinct target
// row, and evaluate RETURNING against the post-update record.
func (e *Engine) execUpdate(qc *txstate.QueryContext, upd ast.Update, path string) (*execResult, error) {
	tableName := strings.ToLower(upd.Table)
	ts, err := qc.LoadTable(tableName)
	if err != nil {
		return nil, err
	}
	bound := tableName
	if upd.As != "" {
		bound = strings.ToLower(upd.As)
		qc.BindSource(bound, tableName)
	}

	rows := planner.InitialRecords(ts.Current, bound)

	if upd.From != nil {
		rows, err = crossJoinFrom(qc, rows, *upd.From)
		if err != nil {
			return nil, err
		}
	}
	for ji, j := range upd.Joins {
		on, err := compileNodes(j.On, fmt.Sprintf("%s.joins[%d].on", path, ji))
		if err != nil {
			return nil, err
		}
		rows, err = planner.ApplyJoin(qc, rows, planner.CompiledJoin{Source: j.Source, Type: j.Type, On: on})
		if err != nil {
			return nil, err
		}
	}

	where, err := compileNodes(upd.Where, path+".where")
	if err != nil {
		return nil, err
	}
	rows = filterRows(qc.Context, where, rows)

	returningItems, err := compileProjections(upd.Returning, path+".returning")
	if err != nil {
		return nil, err
	}

	now := qc.Now().UnixMilli()
	var updatedIDs []string
	var returningRows []expr.Row
	seen := make(map[string]bool)

	for _, rec := range rows {
		target, ok := rec[bound]
		if !ok {
			continue
		}
		if seen[target.ID] {
			continue
		}
		seen[target.ID] = true

		partial := make(map[string]any, len(upd.Set))
		for i, item := range upd.Set {
			itemPath := fmt.Sprintf("%s.set[%d].value", path, i)
			ce, err := expr.Compile(item.Value, itemPath)
			if err != nil {
				return nil, err
			}
			val := ce.Eval(qc.Context, rec, nil)
			if typ, ok := qc.Types.Get(tableName); ok {
				if f, ok := typ.FieldByName(item.Column); ok {
					hint := fieldHint(f)
					if assignErr := val.WithField(hint).IsAssignableTo(hint); assignErr != nil {
						qc.Errors.Add(toValidationError(itemPath, assignErr))
						continue
					}
				}
			}
			partial[strings.ToLower(item.Column)] = val.Raw
		}

		next, ok := ts.Update(target.ID, partial, now)
		if !ok {
			continue
		}
		updatedIDs = append(updatedIDs, target.ID)
		if len(returningItems) > 0 {
			witness := rec.Clone()
			witness[bound] = next
			returningRows = append(returningRows, projectRow(qc.Context, returningItems, witness, nil))
		}
	}

	res := &execResult{Rows: returningRows}
	if len(updatedIDs) > 0 {
		res.Updated = []MutationSummary{{Type: tableName, IDs: updatedIDs}}
	}
	return res, nil
}

// crossJoinFrom resolves an UPDATE ... FROM source and cross-joins it onto
// the target rows (spec.md §4.E: FROM adds extra sources for WHERE/SET to
// reference, with no implicit ON predicate — narrowing is WHERE's job).
func crossJoinFrom(qc *txstate.QueryContext, left []record.SelectRecord, ds ast.DataSource) ([]record.SelectRecord, error) {
	rightRows, bound, err := planner.ResolveSource(qc, ds)
	if err != nil {
		return nil, err
	}
	out := make([]record.SelectRecord, 0, len(left)*len(rightRows))
	for _, lrec := range left {
		if len(rightRows) == 0 {
			continue
		}
		for _, rrow := range rightRows {
			merged := lrec.Clone()
			merged[bound] = rrow
			out = append(out, merged)
		}
	}
	return out, nil
}
