package expr

import (
	"fmt"

	"github.com/relionhq/queryengine/pkg/queryerr"
	"github.com/relionhq/queryengine/pkg/record"
	"github.com/relionhq/queryengine/pkg/value"
)

// evalAggregate implements spec.md §4.C's aggregate semantics over a
// partition (the GROUP BY group, the whole filtered set for an ungrouped
// aggregate query, or a window's filtered partition).
func evalAggregate(ctx *Context, fn string, v Expression, star bool, rows []record.SelectRecord, path string) value.Value {
	if star && fn != "count" {
		ctx.Errors.Add(queryerr.ValidationError{Path: path, Message: fmt.Sprintf("%q does not support the * argument", fn)})
		return value.Null
	}
	switch fn {
	case "count":
		if star {
			return value.Of(float64(len(rows)))
		}
		n := 0
		for _, r := range rows {
			if !v.Eval(ctx, r, nil).IsNull() {
				n++
			}
		}
		return value.Of(float64(n))
	case "sum":
		sum := 0.0
		for _, r := range rows {
			val := v.Eval(ctx, r, nil)
			if val.IsNull() {
				continue
			}
			if val.GetType() != value.KindNumber {
				ctx.Errors.Add(queryerr.ValidationError{Path: path, Message: fmt.Sprintf("sum requires numeric values, got %s", val.GetType()), ExpectedType: "number", ActualType: val.GetType().String()})
				return value.Of(0.0)
			}
			f, _ := val.Raw.(float64)
			sum += f
		}
		return value.Of(sum)
	case "avg":
		sum := 0.0
		count := 0
		for _, r := range rows {
			val := v.Eval(ctx, r, nil)
			if val.IsNull() {
				continue
			}
			if val.GetType() != value.KindNumber {
				ctx.Errors.Add(queryerr.ValidationError{Path: path, Message: fmt.Sprintf("avg requires numeric values, got %s", val.GetType()), ExpectedType: "number", ActualType: val.GetType().String()})
				return value.Null
			}
			f, _ := val.Raw.(float64)
			sum += f
			count++
		}
		if count == 0 {
			return value.Null
		}
		return value.Of(sum / float64(count))
	case "min", "max":
		var best value.Value
		haveBest := false
		for _, r := range rows {
			val := v.Eval(ctx, r, nil)
			if val.IsNull() {
				continue
			}
			if !haveBest {
				best, haveBest = val, true
				continue
			}
			cmp := val.CompareTo(best)
			if (fn == "min" && cmp < 0) || (fn == "max" && cmp > 0) {
				best = val
			}
		}
		if !haveBest {
			return value.Null
		}
		return best
	default:
		ctx.Errors.Add(queryerr.ValidationError{Path: path, Message: fmt.Sprintf("unknown aggregate function %q", fn)})
		return value.Null
	}
}
