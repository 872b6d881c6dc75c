package engine

import (
	"encoding/json"

	"github.com/relionhq/queryengine/pkg/ast"
	"github.com/relionhq/queryengine/pkg/expr"
	"github.com/relionhq/queryengine/pkg/txstate"
)

// execSetOperation implements spec.md §4.E's UNION/INTERSECT/EXCEPT:
// columns correspond positionally between the two sides (not by name), and
// ALL vs the default multiset semantics is decided per operator.
func (e *Engine) execSetOperation(qc *txstate.QueryContext, so ast.SetOperation, path string) ([]expr.Row, error) {
	leftRes, err := e.runStatement(qc, so.Left, path+".left")
	if err != nil {
		return nil, err
	}
	rightRes, err := e.runStatement(qc, so.Right, path+".right")
	if err != nil {
		return nil, err
	}

	cols := projectionOrderOf(so.Left)
	rightCols := projectionOrderOf(so.Right)
	right := remapRows(rightRes.Rows, rightCols, cols)

	switch so.SetKind {
	case "union":
		return setUnion(leftRes.Rows, right, so.All), nil
	case "intersect":
		return setIntersect(leftRes.Rows, right, so.All), nil
	case "except":
		return setExcept(leftRes.Rows, right, so.All), nil
	default:
		return nil, &unsupportedSetKindError{kind: so.SetKind}
	}
}

type unsupportedSetKindError struct{ kind string }

func (e *unsupportedSetKindError) Error() string {
	return "engine: unsupported set operation kind " + e.kind
}

// remapRows renames each right-hand row's keys from rightCols to leftCols by
// position, so `rowKey` comparisons line up on column identity the way
// positional set-operation correspondence requires.
func remapRows(rows []expr.Row, rightCols, leftCols []string) []expr.Row {
	if len(rightCols) != len(leftCols) {
		return rows
	}
	out := make([]expr.Row, len(rows))
	for i, r := range rows {
		nr := make(expr.Row, len(r))
		for j, rc := range rightCols {
			nr[leftCols[j]] = r[rc]
		}
		out[i] = nr
	}
	return out
}

func rowKey(r expr.Row) string {
	b, _ := json.Marshal(r)
	return string(b)
}

// setUnion: ALL concatenates both sides; default drops duplicates across the
// combined set (spec.md §4.E "Set operations").
func setUnion(left, right []expr.Row, all bool) []expr.Row {
	combined := append(append([]expr.Row{}, left...), right...)
	if all {
		return combined
	}
	return dedupeRows(combined)
}

// setIntersect: ALL keeps min(count in left, count in right) copies of each
// key; default keeps at most one.
func setIntersect(left, right []expr.Row, all bool) []expr.Row {
	rightCounts := make(map[string]int, len(right))
	for _, r := range right {
		rightCounts[rowKey(r)]++
	}
	var out []expr.Row
	if all {
		taken := make(map[string]int, len(left))
		for _, r := range left {
			k := rowKey(r)
			if taken[k] < rightCounts[k] {
				out = append(out, r)
				taken[k]++
			}
		}
		return out
	}
	seen := make(map[string]bool, len(left))
	for _, r := range left {
		k := rowKey(r)
		if rightCounts[k] > 0 && !seen[k] {
			seen[k] = true
			out = append(out, r)
		}
	}
	return out
}

// setExcept: ALL removes one right-side occurrence per matching left-side
// row (multiset difference); default removes every left row whose key
// appears anywhere on the right.
func setExcept(left, right []expr.Row, all bool) []expr.Row {
	rightCounts := make(map[string]int, len(right))
	for _, r := range right {
		rightCounts[rowKey(r)]++
	}
	var out []expr.Row
	if all {
		remaining := make(map[string]int, len(rightCounts))
		for k, v := range rightCounts {
			remaining[k] = v
		}
		for _, r := range left {
			k := rowKey(r)
			if remaining[k] > 0 {
				remaining[k]--
				continue
			}
			out = append(out, r)
		}
		return out
	}
	for _, r := range left {
		if rightCounts[rowKey(r)] == 0 {
			out = append(out, r)
		}
	}
	return dedupeRows(out)
}
