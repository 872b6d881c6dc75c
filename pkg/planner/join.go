package planner

import (
	"github.com/relionhq/queryengine/pkg/ast"
	"github.com/relionhq/queryengine/pkg/expr"
	"github.com/relionhq/queryengine/pkg/record"
	"github.com/relionhq/queryengine/pkg/txstate"
)

// CompiledJoin is one Join clause with its ON predicates already compiled
// (the caller owns path assignment, since that's tied to the enclosing
// statement's own path scheme).
type CompiledJoin struct {
	Source ast.DataSource
	Type   string
	On     []expr.Expression
}

// ApplyJoin implements spec.md §4.D's Join.apply: resolves the right side,
// nested-loop matches it against every left row, ANDs the ON predicates,
// and for left/right/full keeps the respective side's unmatched rows with
// the other side's source left unbound (so column refs into it yield null
// at projection time, per spec.md §4.D).
func ApplyJoin(qc *txstate.QueryContext, left []record.SelectRecord, j CompiledJoin) ([]record.SelectRecord, error) {
	rightRows, bound, err := ResolveSource(qc, j.Source)
	if err != nil {
		return nil, err
	}

	rightMatched := make([]bool, len(rightRows))
	var out []record.SelectRecord
	for _, lrec := range left {
		matchedAny := false
		for ri, rrow := range rightRows {
			merged := lrec.Clone()
			merged[bound] = rrow
			if AllTrue(qc.Context, j.On, merged) {
				out = append(out, merged)
				matchedAny = true
				rightMatched[ri] = true
			}
		}
		if !matchedAny && (j.Type == "left" || j.Type == "full") {
			out = append(out, lrec.Clone())
		}
	}
	if j.Type == "right" || j.Type == "full" {
		for ri, rrow := range rightRows {
			if !rightMatched[ri] {
				out = append(out, record.SelectRecord{bound: rrow})
			}
		}
	}
	return out, nil
}

// AllTrue is three-valued AND-of-predicates over a single row: a predicate
// this engine treats as WHERE/JOIN-ON filtering, where null counts as false
// (spec.md §4.E step 3 and §8 property 5).
func AllTrue(ctx *expr.Context, preds []expr.Expression, rec record.SelectRecord) bool {
	for _, p := range preds {
		v := p.Eval(ctx, rec, nil)
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
