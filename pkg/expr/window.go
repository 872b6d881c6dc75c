package expr

import (
	"sort"

	"github.com/relionhq/queryengine/pkg/record"
)

// partitionFor implements spec.md §4.C's window partitioning: the subset of
// fullSet whose partitionBy values equal rec's partitionBy values. With no
// partitionBy terms, every row belongs to the single partition.
func partitionFor(ctx *Context, partitionBy []Expression, rec record.SelectRecord, fullSet []record.SelectRecord) []record.SelectRecord {
	if len(partitionBy) == 0 {
		return fullSet
	}
	key := make([]string, len(partitionBy))
	for i, p := range partitionBy {
		key[i] = p.Eval(ctx, rec, nil).String()
	}
	var out []record.SelectRecord
	for _, candidate := range fullSet {
		match := true
		for i, p := range partitionBy {
			if p.Eval(ctx, candidate, nil).String() != key[i] {
				match = false
				break
			}
		}
		if match {
			out = append(out, candidate)
		}
	}
	return out
}

// sortPartition orders a window partition by its ORDER BY terms using
// Value.CompareTo, direction applied by sign flip (spec.md §4.D).
func sortPartition(ctx *Context, orderBy []OrderKey, partition []record.SelectRecord) {
	if len(orderBy) == 0 {
		return
	}
	sort.SliceStable(partition, func(i, j int) bool {
		for _, ok := range orderBy {
			a := ok.Expr.Eval(ctx, partition[i], nil)
			b := ok.Expr.Eval(ctx, partition[j], nil)
			cmp := a.CompareTo(b)
			if ok.Desc {
				cmp = -cmp
			}
			if cmp != 0 {
				return cmp < 0
			}
		}
		return false
	})
}
