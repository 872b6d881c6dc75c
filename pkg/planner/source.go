// Package planner implements spec.md §4.D: turning a DataSource/Join
// clause into row streams, and evaluating/caching sort keys over them.
package planner

import (
	"fmt"
	"strings"

	"github.com/relionhq/queryengine/pkg/ast"
	"github.com/relionhq/queryengine/pkg/record"
	"github.com/relionhq/queryengine/pkg/txstate"
)

// ResolveSource implements spec.md §4.D's DataSource.getRecords: CTE
// binding first, else table-state load, else subquery execution. It
// returns the resolved rows and the name they are bound under in the
// per-row SelectRecord (the AS alias when present, else the table name or
// CTE name) -- this is the ONLY name later column references in this
// query can use for the source, matching S1/S2's alias-shadows-table-name
// behavior.
func ResolveSource(qc *txstate.QueryContext, ds ast.DataSource) ([]*record.DataRecord, string, error) {
	if ds.IsSubquery {
		bound := strings.ToLower(ds.As)
		rows, err := qc.Runner.RunSubquery(ds.Subquery, qc.Context)
		if err != nil {
			return nil, bound, err
		}
		now := qc.Now().UnixMilli()
		out := make([]*record.DataRecord, len(rows))
		for i, row := range rows {
			fields := make(map[string]any, len(row))
			for k, v := range row {
				fields[k] = v
			}
			out[i] = record.NewDataRecord(fmt.Sprintf("subquery_%d", i), now, now, fields)
		}
		qc.Aliases[bound] = out
		return out, bound, nil
	}

	name := strings.ToLower(ds.Table)
	bound := name
	if ds.As != "" {
		bound = strings.ToLower(ds.As)
	}
	if rows, ok := qc.CTEs[name]; ok {
		qc.Aliases[bound] = rows
		if bound != name {
			qc.Aliases[name] = rows
		}
		return rows, bound, nil
	}
	ts, err := qc.LoadTable(name)
	if err != nil {
		return nil, bound, err
	}
	if bound != name {
		qc.BindSource(bound, name)
	}
	return ts.Current, bound, nil
}

// InitialRecords wraps a resolved source's rows into one-source
// SelectRecords, keyed by bound (spec.md §4.E step 1).
func InitialRecords(rows []*record.DataRecord, bound string) []record.SelectRecord {
	out := make([]record.SelectRecord, len(rows))
	for i, r := range rows {
		out[i] = record.SelectRecord{bound: r}
	}
	return out
}
