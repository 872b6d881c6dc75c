package engine

import (
	"github.com/relionhq/queryengine/pkg/expr"
	"github.com/relionhq/queryengine/pkg/queryerr"
	"github.com/relionhq/queryengine/pkg/txstate"
)

// MutationSummary is spec.md §6's nested `{type, ids[]}` mutation summary
// shape.
type MutationSummary struct {
	Type string
	IDs  []string
}

// QueryResult is spec.md §3's QueryResult, the external contract for
// consumers: preserve these field names when serializing.
type QueryResult struct {
	Rows             []expr.Row
	AffectedCount    int
	Inserted         []MutationSummary
	Updated          []MutationSummary
	Deleted          []MutationSummary
	ValidationErrors []queryerr.ValidationError
	CanCommit        bool
}

// QueryExecutionPayload is spec.md §3's QueryExecutionPayload: the result
// plus the staged per-table deltas a caller may choose to commit.
type QueryExecutionPayload struct {
	Result *QueryResult
	Deltas []txstate.Delta
}

// execResult is the internal return shape every statement executor
// produces; buildResult folds it into the external QueryResult.
type execResult struct {
	Rows     []expr.Row
	Inserted []MutationSummary
	Updated  []MutationSummary
	Deleted  []MutationSummary
}

func (e *Engine) buildResult(qc *txstate.QueryContext, res *execResult) *QueryResult {
	canCommit, errs := qc.Errors.CanCommit(), qc.Errors.Errors
	affected := 0
	for _, m := range res.Inserted {
		affected += len(m.IDs)
	}
	for _, m := range res.Updated {
		affected += len(m.IDs)
	}
	for _, m := range res.Deleted {
		affected += len(m.IDs)
	}
	return &QueryResult{
		Rows:             res.Rows,
		AffectedCount:    affected,
		Inserted:         res.Inserted,
		Updated:          res.Updated,
		Deleted:          res.Deleted,
		ValidationErrors: errs,
		CanCommit:        canCommit,
	}
}
