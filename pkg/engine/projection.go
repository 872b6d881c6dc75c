package engine

import (
	"fmt"
	"strings"

	"github.com/relionhq/queryengine/pkg/ast"
	"github.com/relionhq/queryengine/pkg/expr"
	"github.com/relionhq/queryengine/pkg/record"
)

// compileNodes compiles a flat list of AST nodes (a WHERE/HAVING/GROUP BY
// clause, a JOIN's ON list) into expressions, each tagged with its
// `<base>[i]` path per spec.md §4.B.
func compileNodes(nodes []ast.Node, base string) ([]expr.Expression, error) {
	out := make([]expr.Expression, len(nodes))
	for i, n := range nodes {
		e, err := expr.Compile(n, fmt.Sprintf("%s[%d]", base, i))
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

// projItem is one compiled projection list entry (a SELECT/RETURNING value
// list item), plus the output-row metadata spec.md §4.E's wildcard and
// default-alias rules need.
type projItem struct {
	expr     expr.Expression
	alias    string
	wildcard bool
}

// defaultAlias implements the fallback spec.md leaves implicit: an
// unaliased bare column projects under its own (lowercased) name; anything
// else gets a positional placeholder.
func defaultAlias(v ast.Node, index int) string {
	if col, ok := v.(ast.Column); ok {
		return strings.ToLower(col.Column)
	}
	return fmt.Sprintf("col%d", index)
}

// compileProjections compiles a SELECT values list or an INSERT/UPDATE/
// DELETE RETURNING list into projItems.
func compileProjections(items []ast.Projection, base string) ([]projItem, error) {
	out := make([]projItem, len(items))
	for i, p := range items {
		e, err := expr.CompileProjection(p, fmt.Sprintf("%s[%d]", base, i))
		if err != nil {
			return nil, err
		}
		wildcard := false
		if col, ok := p.Value.(ast.Column); ok && col.Column == "*" {
			wildcard = true
		}
		alias := strings.ToLower(p.Alias)
		if alias == "" && !wildcard {
			alias = defaultAlias(p.Value, i)
		}
		out[i] = projItem{expr: e, alias: alias, wildcard: wildcard}
	}
	return out, nil
}

// projectRow implements spec.md §4.E's projection step, including the
// wildcard-splice rule: a `source.*` item whose evaluated value is a merged
// system+fields object has its keys spliced directly into the output row,
// last-writer-wins on name collisions (Open Question 4).
func projectRow(ctx *expr.Context, items []projItem, witness record.SelectRecord, group []record.SelectRecord) expr.Row {
	row := make(expr.Row, len(items))
	for _, it := range items {
		v := it.expr.Eval(ctx, witness, group)
		if it.wildcard {
			if merged, ok := v.Raw.(map[string]any); ok {
				for k, mv := range merged {
					row[k] = mv
				}
				continue
			}
		}
		row[it.alias] = v.Raw
	}
	return row
}

// projectionColumnNames extracts the output column-name order a projection
// list would produce, without compiling or evaluating it. INSERT ... SELECT
// uses this to zip the select's columns to the insert's target columns by
// position (spec.md §4.E, Open Question 3).
func projectionColumnNames(items []ast.Projection) []string {
	names := make([]string, len(items))
	for i, p := range items {
		if col, ok := p.Value.(ast.Column); ok && col.Column == "*" {
			names[i] = "*"
			continue
		}
		alias := strings.ToLower(p.Alias)
		if alias == "" {
			alias = defaultAlias(p.Value, i)
		}
		names[i] = alias
	}
	return names
}

// projectionOrderOf recovers the column order a statement's result rows
// are produced in: a Select's own projection list, or (recursively) a set
// operation's left side, since column correspondence across a set operation
// is positional (spec.md §4.E "Set operations").
func projectionOrderOf(stmt ast.Statement) []string {
	switch s := stmt.(type) {
	case ast.Select:
		return projectionColumnNames(s.Values)
	case ast.SetOperation:
		return projectionOrderOf(s.Left)
	default:
		return nil
	}
}

// containsAggregate reports whether node contains a bare Aggregate node,
// not descending into Window (a window call resolves its own partition and
// never collapses the row set) or subquery statements (which execute and
// validate independently). This is spec.md §4.E step 4's test for whether
// an ungrouped SELECT collapses to one row.
func containsAggregate(node ast.Node) bool {
	switch n := node.(type) {
	case ast.Aggregate:
		return true
	case ast.Binary:
		return containsAggregate(n.Left) || containsAggregate(n.Right)
	case ast.Unary:
		return containsAggregate(n.Value)
	case ast.FunctionCall:
		for _, a := range n.Args {
			if containsAggregate(a) {
				return true
			}
		}
		return false
	case ast.Case:
		for _, b := range n.Branches {
			if containsAggregate(b.When) || containsAggregate(b.Then) {
				return true
			}
		}
		return n.Else != nil && containsAggregate(n.Else)
	case ast.Comparison:
		return containsAggregate(n.Left) || containsAggregate(n.Right)
	case ast.Between:
		return containsAggregate(n.Value) || containsAggregate(n.Lo) || containsAggregate(n.Hi)
	case ast.IsNull:
		return containsAggregate(n.Value)
	case ast.And:
		for _, t := range n.Terms {
			if containsAggregate(t) {
				return true
			}
		}
		return false
	case ast.Or:
		for _, t := range n.Terms {
			if containsAggregate(t) {
				return true
			}
		}
		return false
	case ast.Not:
		return containsAggregate(n.Term)
	case ast.In:
		if n.HasList {
			for _, it := range n.List {
				if containsAggregate(it) {
					return true
				}
			}
		}
		return false
	default:
		return false
	}
}

// allTrueGroup is planner.AllTrue's group-aware counterpart: HAVING
// predicates need the group's full row set passed to Eval so aggregates
// inside them see the partition, not just the scalar witness row.
func allTrueGroup(ctx *expr.Context, preds []expr.Expression, rec record.SelectRecord, group []record.SelectRecord) bool {
	for _, p := range preds {
		v := p.Eval(ctx, rec, group)
		if v.IsNull() {
			return false
		}
		b, ok := v.Raw.(bool)
		if !ok || !b {
			return false
		}
	}
	return true
}
