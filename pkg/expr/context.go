// Package expr implements spec.md §4.B (AST -> Expression factory) and §4.C
// (the expression evaluator): the tree the executor walks to turn an
// ast.Node into a value.Value against a row, and the small set of
// collaborator interfaces (subquery execution, similarity scoring, clock)
// that let it do so without importing pkg/engine and creating a cycle.
package expr

import (
	"time"

	"github.com/relionhq/queryengine/pkg/ast"
	"github.com/relionhq/queryengine/pkg/queryerr"
	"github.com/relionhq/queryengine/pkg/record"
	"github.com/relionhq/queryengine/pkg/schema"
)

// Row is one projected output row: output column name -> scalar.
type Row map[string]any

// SubqueryRunner executes a nested Select/SetOperation and returns its
// projected rows. pkg/engine implements this; pkg/expr only depends on the
// interface, so subquery values, IN (SELECT ...), and EXISTS (...) can be
// evaluated without expr importing engine.
type SubqueryRunner interface {
	RunSubquery(stmt ast.Statement, outer *Context) ([]Row, error)
}

// SimilarityProvider scores a semanticSimilarity value node. Spec.md §1
// treats this as an injected, pluggable embedding backend; the stub
// implementation in this package always returns 0, matching §4.C.
type SimilarityProvider interface {
	Score(table, query string) float64
}

// StubSimilarity is the zero-value SimilarityProvider spec.md §4.C calls
// for when none is configured.
type StubSimilarity struct{}

// Score always returns 0.
func (StubSimilarity) Score(string, string) float64 { return 0 }

// Context is the per-query scratchpad threaded through every Eval call. It
// mirrors spec.md §3's QueryContext, minus the tableStates map (owned by
// pkg/txstate, whose QueryContext embeds this Context; pkg/txstate imports
// pkg/expr, so pkg/expr cannot import it back).
type Context struct {
	Types *schema.Registry

	// Aliases binds a source name (table name or AS alias) to the rows
	// currently visible under it. During normal planning this is the
	// source's full current row set; during correlated-subquery evaluation
	// Exists/In/scalar-subquery temporarily rebind it to a single outer row
	// (spec.md §4.C's SourceColumn fallback; §4.D's aliases save/restore).
	Aliases map[string][]*record.DataRecord

	// CTEs binds a WITH name to its materialized rows.
	CTEs map[string][]*record.DataRecord

	// SourceTypes maps a bound source name to the TypeDefinition its rows
	// are shaped by, used to attach FieldHints to resolved columns so
	// Value.GetType/IsAssignableTo can classify dates and enums correctly.
	SourceTypes map[string]*schema.TypeDefinition

	Errors *queryerr.Sink
	Runner SubqueryRunner
	Sim    SimilarityProvider

	// Now is the injectable clock for the now()/current_date functions and
	// DataRecord timestamp stamping; tests fix it for determinism, matching
	// spec.md §3 invariant 6.
	Now func() time.Time
}

// NewContext builds a Context with sane stub defaults; callers overwrite
// Runner with a real statement executor before any subquery-bearing
// expression is evaluated.
func NewContext(types *schema.Registry, sink *queryerr.Sink) *Context {
	return &Context{
		Types:       types,
		Aliases:     make(map[string][]*record.DataRecord),
		CTEs:        make(map[string][]*record.DataRecord),
		SourceTypes: make(map[string]*schema.TypeDefinition),
		Errors:      sink,
		Sim:         StubSimilarity{},
		Now:         time.Now,
	}
}

// BindAlias temporarily rebinds source to rows and returns a restore
// function. This is the save/restore discipline spec.md §4.D calls for
// around Exists/In/scalar-subquery evaluation of correlated references: a
// planner binds the outer row under its alias for the subquery's duration,
// then restores whatever was bound before.
func (c *Context) BindAlias(source string, rows []*record.DataRecord) (restore func()) {
	prev, had := c.Aliases[source]
	c.Aliases[source] = rows
	return func() {
		if had {
			c.Aliases[source] = prev
		} else {
			delete(c.Aliases, source)
		}
	}
}
