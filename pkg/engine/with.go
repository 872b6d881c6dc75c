package engine

import (
	"fmt"

	"github.com/relionhq/queryengine/pkg/ast"
	"github.com/relionhq/queryengine/pkg/expr"
	"github.com/relionhq/queryengine/pkg/record"
	"github.com/relionhq/queryengine/pkg/txstate"
)

// recursiveCTEIterationCap bounds a recursive CTE's working-table loop
// (spec.md §4.E's recursive CTE note and §8 Open Question on termination):
// a query that never reaches a fixed point is a validation error, not an
// infinite loop.
const recursiveCTEIterationCap = 1000

// execWith implements spec.md §4.E's WITH: materialize each binding in
// order (non-recursive bindings once, recursive bindings via a
// working-table fixed-point loop), then run the final statement with every
// CTE visible.
func (e *Engine) execWith(qc *txstate.QueryContext, ws ast.WithStatement, path string) (*execResult, error) {
	for i, binding := range ws.Withs {
		bindingPath := fmt.Sprintf("%s.withs[%d]", path, i)
		name := binding.Name
		if !binding.Recursive {
			res, err := e.runStatement(qc, binding.Query, bindingPath)
			if err != nil {
				return nil, err
			}
			qc.CTEs[name] = toDataRecords(name, res.Rows, qc.Now().UnixMilli())
			continue
		}
		rows, err := e.runRecursiveCTE(qc, name, binding.Query, bindingPath)
		if err != nil {
			return nil, err
		}
		qc.CTEs[name] = rows
	}

	return e.runStatement(qc, ws.Final, path+".final")
}

// runRecursiveCTE implements the working-table algorithm standard recursive
// CTEs use: the anchor runs once; each subsequent iteration re-runs only the
// recursive term with the CTE name bound to the PREVIOUS iteration's new
// rows (the "frontier"), not the full accumulated set, so an edge already
// folded into the result does not re-derive forever. The loop stops the
// first time an iteration contributes nothing new.
func (e *Engine) runRecursiveCTE(qc *txstate.QueryContext, name string, query ast.Statement, path string) ([]*record.DataRecord, error) {
	so, ok := query.(ast.SetOperation)
	if !ok {
		return nil, fmt.Errorf("engine: recursive cte %q must be a union of an anchor and a recursive term", name)
	}

	now := qc.Now().UnixMilli()
	anchorRes, err := e.runStatement(qc, so.Left, path+".left")
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(anchorRes.Rows))
	var all []expr.Row
	frontier := make([]expr.Row, 0, len(anchorRes.Rows))
	for _, r := range anchorRes.Rows {
		k := rowKey(r)
		if so.All || !seen[k] {
			seen[k] = true
			all = append(all, r)
			frontier = append(frontier, r)
		}
	}

	iterations := 0
	for len(frontier) > 0 {
		iterations++
		if iterations > recursiveCTEIterationCap {
			qc.Errors.Addf(path, "recursive cte %q did not converge within %d iterations", name, recursiveCTEIterationCap)
			break
		}
		qc.CTEs[name] = toDataRecords(name, frontier, now)
		stepRes, err := e.runStatement(qc, so.Right, fmt.Sprintf("%s.right[%d]", path, iterations))
		if err != nil {
			return nil, err
		}
		next := frontier[:0:0]
		for _, r := range stepRes.Rows {
			k := rowKey(r)
			if !so.All && seen[k] {
				continue
			}
			seen[k] = true
			all = append(all, r)
			next = append(next, r)
		}
		frontier = next
	}

	return toDataRecords(name, all, now), nil
}

// toDataRecords wraps projected CTE rows as DataRecords so they can be
// bound into qc.CTEs and resolved by planner.ResolveSource like any other
// source, stamping stable, order-derived ids.
func toDataRecords(name string, rows []expr.Row, now int64) []*record.DataRecord {
	out := make([]*record.DataRecord, len(rows))
	for i, row := range rows {
		fields := make(map[string]any, len(row))
		for k, v := range row {
			fields[k] = v
		}
		out[i] = record.NewDataRecord(fmt.Sprintf("%s_%d", name, i), now, now, fields)
	}
	return out
}
