package engine

import (
	"encoding/json"
	"fmt"

	"github.com/relionhq/queryengine/pkg/ast"
	"github.com/relionhq/queryengine/pkg/expr"
	"github.com/relionhq/queryengine/pkg/planner"
	"github.com/relionhq/queryengine/pkg/record"
	"github.com/relionhq/queryengine/pkg/txstate"
)

// execSelect implements spec.md §4.E's SELECT pipeline in this order:
// FROM/JOIN resolution, WHERE, grouping (GROUP BY / ungrouped-aggregate
// collapse), HAVING over each group, projection, DISTINCT, ORDER BY,
// OFFSET, LIMIT.
func (e *Engine) execSelect(qc *txstate.QueryContext, s ast.Select, path string) ([]expr.Row, error) {
	var rows []record.SelectRecord
	if s.From != nil {
		src, bound, err := planner.ResolveSource(qc, *s.From)
		if err != nil {
			return nil, err
		}
		rows = planner.InitialRecords(src, bound)
	} else {
		rows = []record.SelectRecord{{}}
	}

	for ji, j := range s.Joins {
		on, err := compileNodes(j.On, fmt.Sprintf("%s.joins[%d].on", path, ji))
		if err != nil {
			return nil, err
		}
		rows, err = planner.ApplyJoin(qc, rows, planner.CompiledJoin{Source: j.Source, Type: j.Type, On: on})
		if err != nil {
			return nil, err
		}
	}

	where, err := compileNodes(s.Where, path+".where")
	if err != nil {
		return nil, err
	}
	rows = filterRows(qc.Context, where, rows)

	projItems, err := compileProjections(s.Values, path+".values")
	if err != nil {
		return nil, err
	}

	hasGroupBy := len(s.GroupBy) > 0
	hasAgg := false
	for _, p := range s.Values {
		if containsAggregate(p.Value) {
			hasAgg = true
			break
		}
	}

	type projectionInput struct {
		witness record.SelectRecord
		group   []record.SelectRecord
	}
	var inputs []projectionInput

	if hasGroupBy {
		groupKeys, err := compileNodes(s.GroupBy, path+".groupBy")
		if err != nil {
			return nil, err
		}
		for _, g := range buildGroups(qc.Context, groupKeys, rows) {
			inputs = append(inputs, projectionInput{witness: g.witness, group: g.rows})
		}
	} else if hasAgg {
		witness := record.SelectRecord{}
		if len(rows) > 0 {
			witness = rows[0]
		}
		inputs = []projectionInput{{witness: witness, group: rows}}
	} else {
		for _, r := range rows {
			inputs = append(inputs, projectionInput{witness: r, group: nil})
		}
	}

	if len(s.Having) > 0 {
		having, err := compileNodes(s.Having, path+".having")
		if err != nil {
			return nil, err
		}
		kept := inputs[:0]
		for _, in := range inputs {
			if allTrueGroup(qc.Context, having, in.witness, in.group) {
				kept = append(kept, in)
			}
		}
		inputs = kept
	}

	projected := make([]expr.Row, 0, len(inputs))
	for _, in := range inputs {
		projected = append(projected, projectRow(qc.Context, projItems, in.witness, in.group))
	}

	if s.Distinct {
		projected = dedupeRows(projected)
	}

	if len(s.OrderBy) > 0 {
		keys, err := expr.CompileOrderBy(s.OrderBy, path+".orderBy")
		if err != nil {
			return nil, err
		}
		planner.SortProjectedRows(qc.Context, projected, keys, qc.Now().UnixMilli())
	}

	if s.Offset != nil {
		off := *s.Offset
		if off < 0 {
			off = 0
		}
		if off >= len(projected) {
			projected = nil
		} else {
			projected = projected[off:]
		}
	}
	if s.Limit != nil {
		lim := *s.Limit
		if lim < 0 {
			lim = 0
		}
		if lim < len(projected) {
			projected = projected[:lim]
		}
	}

	return projected, nil
}

// filterRows implements WHERE's three-valued semantics (spec.md §8
// property 5): a predicate that evaluates to null excludes the row.
func filterRows(ctx *expr.Context, preds []expr.Expression, rows []record.SelectRecord) []record.SelectRecord {
	if len(preds) == 0 {
		return rows
	}
	out := rows[:0:0]
	for _, r := range rows {
		if planner.AllTrue(ctx, preds, r) {
			out = append(out, r)
		}
	}
	return out
}

// groupBucket is one GROUP BY partition: its witness row (the "scalar
// witness" spec.md §4.E projects non-aggregate expressions against) plus
// every row in the partition (passed to aggregates as groupRecords).
type groupBucket struct {
	witness record.SelectRecord
	rows    []record.SelectRecord
}

// buildGroups partitions rows by the JSON-stringified tuple of GROUP BY
// expression values (spec.md §4.E step 4), preserving first-seen group
// order for deterministic output.
func buildGroups(ctx *expr.Context, keys []expr.Expression, rows []record.SelectRecord) []*groupBucket {
	var order []*groupBucket
	index := make(map[string]*groupBucket)
	for _, r := range rows {
		raw := make([]any, len(keys))
		for i, k := range keys {
			raw[i] = k.Eval(ctx, r, nil).Raw
		}
		keyBytes, _ := json.Marshal(raw)
		key := string(keyBytes)
		g, ok := index[key]
		if !ok {
			g = &groupBucket{witness: r}
			index[key] = g
			order = append(order, g)
		}
		g.rows = append(g.rows, r)
	}
	return order
}

// dedupeRows implements DISTINCT (spec.md §4.E step 6 and Open Question 1):
// structural equality of the projected row object, via its canonical JSON
// encoding (Go's encoding/json sorts map keys, giving a stable key).
func dedupeRows(rows []expr.Row) []expr.Row {
	seen := make(map[string]bool, len(rows))
	out := make([]expr.Row, 0, len(rows))
	for _, r := range rows {
		b, _ := json.Marshal(r)
		k := string(b)
		if !seen[k] {
			seen[k] = true
			out = append(out, r)
		}
	}
	return out
}
