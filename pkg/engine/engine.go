// Package engine implements spec.md §4.E (statement executors) and §4.H
// (the commit gate), wiring together pkg/expr, pkg/planner, pkg/txstate,
// and pkg/integrity into the top-level API a caller drives: ExecuteQuery
// to stage, CanCommit/Commit to finalize.
package engine

import (
	"fmt"
	"time"

	"github.com/relionhq/queryengine/pkg/ast"
	"github.com/relionhq/queryengine/pkg/expr"
	"github.com/relionhq/queryengine/pkg/integrity"
	"github.com/relionhq/queryengine/pkg/schema"
	"github.com/relionhq/queryengine/pkg/txstate"
)

// IsolationLevel mirrors the teacher's BeginTransaction enum (see
// DESIGN.md's Open Question resolution on concurrency). The CORE has only
// one ctx per query and no concurrent-reader visibility model, so both
// levels currently produce identical snapshot-at-first-reference behavior;
// the type exists so a future multi-reader store has somewhere to attach
// real ReadCommitted semantics without an API break.
type IsolationLevel int

const (
	RepeatableRead IsolationLevel = iota
	ReadCommitted
)

// Engine is the constructed, ready-to-query engine: a schema registry plus
// a store provider, matching the teacher's explicit-constructor style
// (NewStorageEngine(tableMetaData, walWriter)) rather than a config file or
// env vars.
type Engine struct {
	Schema   *schema.Registry
	Provider txstate.StoreProvider
	Sim      expr.SimilarityProvider
	Now      func() time.Time
	Metrics  *Metrics
}

// New builds an Engine from a schema Source and a StoreProvider.
func New(source schema.Source, provider txstate.StoreProvider) (*Engine, error) {
	reg, err := schema.NewRegistry(source)
	if err != nil {
		return nil, fmt.Errorf("engine: loading schema: %w", err)
	}
	return &Engine{
		Schema:   reg,
		Provider: provider,
		Sim:      expr.StubSimilarity{},
		Now:      time.Now,
		Metrics:  NewMetrics(),
	}, nil
}

// ExecuteQuery runs a query AST to completion through the integrity pass
// WITHOUT committing -- spec.md's executeQueryWithoutCommit. The caller
// decides separately whether to call CanCommit/Commit on the returned
// payload.
func (e *Engine) ExecuteQuery(stmt ast.Statement, isolation IsolationLevel) (*QueryExecutionPayload, error) {
	_ = isolation // see IsolationLevel's doc comment
	done := e.Metrics.startQuery()
	defer done()

	qc := txstate.NewQueryContext(e.Schema, e.Provider)
	qc.Sim = e.Sim
	qc.Now = e.Now
	qc.Runner = &subqueryRunner{engine: e, qc: qc}

	res, err := e.runStatement(qc, stmt, "query")
	if err != nil {
		return nil, err
	}
	if err := integrity.Run(qc); err != nil {
		return nil, err
	}
	result := e.buildResult(qc, res)
	e.Metrics.observeResult(result)
	return &QueryExecutionPayload{Result: result, Deltas: qc.Deltas()}, nil
}

// runStatement is the shared dispatcher both the top-level ExecuteQuery
// and nested subquery execution use.
func (e *Engine) runStatement(qc *txstate.QueryContext, stmt ast.Statement, path string) (*execResult, error) {
	switch s := stmt.(type) {
	case ast.Select:
		rows, err := e.execSelect(qc, s, path)
		if err != nil {
			return nil, err
		}
		return &execResult{Rows: rows}, nil
	case ast.Insert:
		return e.execInsert(qc, s, path)
	case ast.Update:
		return e.execUpdate(qc, s, path)
	case ast.Delete:
		return e.execDelete(qc, s, path)
	case ast.SetOperation:
		rows, err := e.execSetOperation(qc, s, path)
		if err != nil {
			return nil, err
		}
		return &execResult{Rows: rows}, nil
	case ast.WithStatement:
		return e.execWith(qc, s, path)
	default:
		return nil, fmt.Errorf("engine: unsupported statement kind %q", stmt.Kind())
	}
}
