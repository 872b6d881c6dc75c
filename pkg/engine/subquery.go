package engine

import (
	"github.com/relionhq/queryengine/pkg/ast"
	"github.com/relionhq/queryengine/pkg/expr"
	"github.com/relionhq/queryengine/pkg/txstate"
)

// subqueryRunner implements expr.SubqueryRunner by delegating back into the
// engine's own statement dispatcher, reusing the enclosing query's
// QueryContext (not a fresh one) so a subquery sees the same staged
// inserts/updates/deletes the outer statement has already made -- spec.md
// §5's reentrancy guarantee.
type subqueryRunner struct {
	engine *Engine
	qc     *txstate.QueryContext
}

func (r *subqueryRunner) RunSubquery(stmt ast.Statement, outer *expr.Context) ([]expr.Row, error) {
	res, err := r.engine.runStatement(r.qc, stmt, "subquery")
	if err != nil {
		return nil, err
	}
	return res.Rows, nil
}
