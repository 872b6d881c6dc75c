package engine

import (
	"fmt"
	"strings"

	"github.com/relionhq/queryengine/pkg/ast"
	"github.com/relionhq/queryengine/pkg/expr"
	"github.com/relionhq/queryengine/pkg/planner"
	"github.com/relionhq/queryengine/pkg/txstate"
)

// execDelete implements spec.md §4.E's DELETE: resolve the target (plus
// optional JOIN sources used only to narrow which rows qualify), filter by
// WHERE, materialize RETURNING rows from the pre-delete record, then stage
// one delete per distinct target row.
func (e *Engine) execDelete(qc *txstate.QueryContext, del ast.Delete, path string) (*execResult, error) {
	tableName := strings.ToLower(del.Table)
	ts, err := qc.LoadTable(tableName)
	if err != nil {
		return nil, err
	}
	bound := tableName
	if del.As != "" {
		bound = strings.ToLower(del.As)
		qc.BindSource(bound, tableName)
	}

	rows := planner.InitialRecords(ts.Current, bound)
	for ji, j := range del.Joins {
		on, err := compileNodes(j.On, fmt.Sprintf("%s.joins[%d].on", path, ji))
		if err != nil {
			return nil, err
		}
		rows, err = planner.ApplyJoin(qc, rows, planner.CompiledJoin{Source: j.Source, Type: j.Type, On: on})
		if err != nil {
			return nil, err
		}
	}

	where, err := compileNodes(del.Where, path+".where")
	if err != nil {
		return nil, err
	}
	rows = filterRows(qc.Context, where, rows)

	returningItems, err := compileProjections(del.Returning, path+".returning")
	if err != nil {
		return nil, err
	}

	var returningRows []expr.Row
	var deleteIDs []string
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

		if len(returningItems) > 0 {
			returningRows = append(returningRows, projectRow(qc.Context, returningItems, rec, nil))
		}
		deleteIDs = append(deleteIDs, target.ID)
	}

	for _, id := range deleteIDs {
		ts.Delete(id)
	}

	res := &execResult{Rows: returningRows}
	if len(deleteIDs) > 0 {
		res.Deleted = []MutationSummary{{Type: tableName, IDs: deleteIDs}}
	}
	return res, nil
}
