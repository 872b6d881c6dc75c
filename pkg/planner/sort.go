package planner

import (
	"fmt"
	"sort"

	"github.com/relionhq/queryengine/pkg/expr"
	"github.com/relionhq/queryengine/pkg/record"
	"github.com/relionhq/queryengine/pkg/value"
)

// SortSelectRecords stable-sorts rows in place by keys, evaluating each
// row's sort key once and caching it (spec.md §4.D: "Sort keys are
// evaluated once per row and cached"); direction is applied by flipping
// CompareTo's sign.
func SortSelectRecords(ctx *expr.Context, rows []record.SelectRecord, keys []expr.OrderKey) {
	if len(keys) == 0 {
		return
	}
	sortRows(rows, keys, func(k expr.OrderKey, r record.SelectRecord) value.Value {
		return k.Expr.Eval(ctx, r, nil)
	})
}

// SortProjectedRows stable-sorts already-projected output rows (plain
// alias->value maps) by wrapping each in a synthetic single-source
// SelectRecord named "__temp__", matching spec.md §4.E step 7. ORDER BY
// expressions referencing a bare column with no source resolve against
// this sole binding (see expr.columnExpr's blank-source rule).
func SortProjectedRows(ctx *expr.Context, rows []expr.Row, keys []expr.OrderKey, now int64) {
	if len(keys) == 0 {
		return
	}
	wrapped := make([]record.SelectRecord, len(rows))
	for i, row := range rows {
		dr := record.NewDataRecord(fmt.Sprintf("__temp_%d__", i), now, now, row)
		wrapped[i] = record.SelectRecord{"__temp__": dr}
	}
	order := sortIndex(wrapped, keys, func(k expr.OrderKey, r record.SelectRecord) value.Value {
		return k.Expr.Eval(ctx, r, nil)
	})
	sorted := make([]expr.Row, len(rows))
	for i, j := range order {
		sorted[i] = rows[j]
	}
	copy(rows, sorted)
}

func sortRows(rows []record.SelectRecord, keys []expr.OrderKey, eval func(expr.OrderKey, record.SelectRecord) value.Value) {
	order := sortIndex(rows, keys, eval)
	sorted := make([]record.SelectRecord, len(rows))
	for i, j := range order {
		sorted[i] = rows[j]
	}
	copy(rows, sorted)
}

func sortIndex(rows []record.SelectRecord, keys []expr.OrderKey, eval func(expr.OrderKey, record.SelectRecord) value.Value) []int {
	cache := make([][]value.Value, len(rows))
	for i, r := range rows {
		vals := make([]value.Value, len(keys))
		for k, key := range keys {
			vals[k] = eval(key, r)
		}
		cache[i] = vals
	}
	order := make([]int, len(rows))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		for k, key := range keys {
			cmp := cache[order[a]][k].CompareTo(cache[order[b]][k])
			if key.Desc {
				cmp = -cmp
			}
			if cmp != 0 {
				return cmp < 0
			}
		}
		return false
	})
	return order
}
