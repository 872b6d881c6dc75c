package expr

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/relionhq/queryengine/pkg/queryerr"
	"github.com/relionhq/queryengine/pkg/value"
)

// callFunction dispatches the closed function set from spec.md's Glossary.
// Every branch enforces its own arity/type contract; violations are
// recorded against path (tagged with the offending argument index where one
// exists) and a safe default is returned so the query keeps evaluating.
func callFunction(ctx *Context, fn string, args []value.Value, path string) value.Value {
	switch fn {
	case "concat":
		var b strings.Builder
		for _, a := range args {
			if a.IsNull() {
				continue
			}
			b.WriteString(a.String())
		}
		return value.Of(b.String())
	case "substring":
		return fnSubstring(ctx, args, path)
	case "length":
		s, ok := argString(ctx, args, 0, path)
		if !ok {
			return value.Null
		}
		return value.Of(float64(len(s)))
	case "lower":
		s, ok := argString(ctx, args, 0, path)
		if !ok {
			return value.Null
		}
		return value.Of(strings.ToLower(s))
	case "upper":
		s, ok := argString(ctx, args, 0, path)
		if !ok {
			return value.Null
		}
		return value.Of(strings.ToUpper(s))
	case "trim":
		s, ok := argString(ctx, args, 0, path)
		if !ok {
			return value.Null
		}
		return value.Of(strings.TrimSpace(s))
	case "replace":
		return fnReplace(ctx, args, path)
	case "abs":
		n, ok := argNumber(ctx, args, 0, path)
		if !ok {
			return value.Null
		}
		return value.Of(math.Abs(n))
	case "ceil":
		n, ok := argNumber(ctx, args, 0, path)
		if !ok {
			return value.Null
		}
		return value.Of(math.Ceil(n))
	case "floor":
		n, ok := argNumber(ctx, args, 0, path)
		if !ok {
			return value.Null
		}
		return value.Of(math.Floor(n))
	case "round":
		n, ok := argNumber(ctx, args, 0, path)
		if !ok {
			return value.Null
		}
		return value.Of(math.Round(n))
	case "power":
		a, ok1 := argNumber(ctx, args, 0, path)
		b, ok2 := argNumber(ctx, args, 1, path)
		if !ok1 || !ok2 {
			return value.Null
		}
		return value.Of(math.Pow(a, b))
	case "sqrt":
		n, ok := argNumber(ctx, args, 0, path)
		if !ok {
			return value.Null
		}
		if n < 0 {
			ctx.Errors.Add(queryerr.ValidationError{Path: path + ".args[0]", Message: "sqrt requires a non-negative operand"})
			return value.Null
		}
		return value.Of(math.Sqrt(n))
	case "now":
		return value.Of(ctx.Now().UTC().Format(time.RFC3339))
	case "current_date":
		return value.Of(ctx.Now().UTC().Format("2006-01-02"))
	case "date_add":
		return fnDateShift(ctx, args, path, 1)
	case "date_sub":
		return fnDateShift(ctx, args, path, -1)
	case "extract":
		return fnExtract(ctx, args, path)
	case "date_trunc":
		return fnDateTrunc(ctx, args, path)
	case "coalesce":
		for _, a := range args {
			if !a.IsNull() {
				return a
			}
		}
		return value.Null
	case "nullif":
		if len(args) != 2 {
			ctx.Errors.Add(queryerr.ValidationError{Path: path, Message: fmt.Sprintf("nullif expects 2 arguments, got %d", len(args))})
			return value.Null
		}
		if !args[0].IsNull() && !args[1].IsNull() && args[0].CompareTo(args[1]) == 0 {
			return value.Null
		}
		return args[0]
	case "greatest":
		return fnExtreme(args, 1)
	case "least":
		return fnExtreme(args, -1)
	default:
		ctx.Errors.Add(queryerr.ValidationError{Path: path, Message: fmt.Sprintf("unknown function %q", fn)})
		return value.Null
	}
}

func argString(ctx *Context, args []value.Value, i int, path string) (string, bool) {
	if i >= len(args) {
		ctx.Errors.Add(queryerr.ValidationError{Path: fmt.Sprintf("%s.args[%d]", path, i), Message: "missing argument"})
		return "", false
	}
	a := args[i]
	if a.IsNull() {
		return "", false
	}
	if a.GetType() != value.KindString {
		ctx.Errors.Add(queryerr.ValidationError{Path: fmt.Sprintf("%s.args[%d]", path, i), Message: "expected a string argument", ExpectedType: "string", ActualType: a.GetType().String()})
		return a.String(), true
	}
	return a.String(), true
}

func argNumber(ctx *Context, args []value.Value, i int, path string) (float64, bool) {
	if i >= len(args) {
		ctx.Errors.Add(queryerr.ValidationError{Path: fmt.Sprintf("%s.args[%d]", path, i), Message: "missing argument"})
		return 0, false
	}
	a := args[i]
	if a.IsNull() {
		return 0, false
	}
	if a.GetType() != value.KindNumber {
		ctx.Errors.Add(queryerr.ValidationError{Path: fmt.Sprintf("%s.args[%d]", path, i), Message: "expected a numeric argument", ExpectedType: "number", ActualType: a.GetType().String()})
		return 0, false
	}
	f, _ := a.Raw.(float64)
	return f, true
}

func fnSubstring(ctx *Context, args []value.Value, path string) value.Value {
	s, ok := argString(ctx, args, 0, path)
	if !ok {
		return value.Null
	}
	start, ok := argNumber(ctx, args, 1, path)
	if !ok {
		return value.Null
	}
	startIdx := int(start)
	if startIdx < 0 {
		startIdx = 0
	}
	if startIdx > len(s) {
		return value.Of("")
	}
	if len(args) < 3 {
		return value.Of(s[startIdx:])
	}
	length, ok := argNumber(ctx, args, 2, path)
	if !ok {
		return value.Null
	}
	end := startIdx + int(length)
	if end > len(s) {
		end = len(s)
	}
	if end < startIdx {
		end = startIdx
	}
	return value.Of(s[startIdx:end])
}

func fnReplace(ctx *Context, args []value.Value, path string) value.Value {
	s, ok := argString(ctx, args, 0, path)
	if !ok {
		return value.Null
	}
	old, ok := argString(ctx, args, 1, path)
	if !ok {
		return value.Null
	}
	repl, ok := argString(ctx, args, 2, path)
	if !ok {
		return value.Null
	}
	return value.Of(strings.ReplaceAll(s, old, repl))
}

func parseDate(s string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func fnDateShift(ctx *Context, args []value.Value, path string, sign int) value.Value {
	s, ok := argString(ctx, args, 0, path)
	if !ok {
		return value.Null
	}
	amount, ok := argNumber(ctx, args, 1, path)
	if !ok {
		return value.Null
	}
	unit, ok := argString(ctx, args, 2, path)
	if !ok {
		return value.Null
	}
	t, ok := parseDate(s)
	if !ok {
		ctx.Errors.Add(queryerr.ValidationError{Path: path + ".args[0]", Message: fmt.Sprintf("%q is not a valid date", s)})
		return value.Null
	}
	shifted, err := shiftDate(t, sign*int(amount), unit)
	if err != nil {
		ctx.Errors.Add(queryerr.ValidationError{Path: path + ".args[2]", Message: err.Error()})
		return value.Null
	}
	return value.Of(shifted.Format(time.RFC3339))
}

func shiftDate(t time.Time, amount int, unit string) (time.Time, error) {
	switch unit {
	case "day", "days":
		return t.AddDate(0, 0, amount), nil
	case "month", "months":
		return t.AddDate(0, amount, 0), nil
	case "year", "years":
		return t.AddDate(amount, 0, 0), nil
	case "hour", "hours":
		return t.Add(time.Duration(amount) * time.Hour), nil
	case "minute", "minutes":
		return t.Add(time.Duration(amount) * time.Minute), nil
	case "second", "seconds":
		return t.Add(time.Duration(amount) * time.Second), nil
	default:
		return time.Time{}, fmt.Errorf("unknown date part %q", unit)
	}
}

func fnExtract(ctx *Context, args []value.Value, path string) value.Value {
	part, ok := argString(ctx, args, 0, path)
	if !ok {
		return value.Null
	}
	s, ok := argString(ctx, args, 1, path)
	if !ok {
		return value.Null
	}
	t, ok := parseDate(s)
	if !ok {
		ctx.Errors.Add(queryerr.ValidationError{Path: path + ".args[1]", Message: fmt.Sprintf("%q is not a valid date", s)})
		return value.Null
	}
	switch part {
	case "year":
		return value.Of(float64(t.Year()))
	case "month":
		return value.Of(float64(t.Month()))
	case "day":
		return value.Of(float64(t.Day()))
	case "hour":
		return value.Of(float64(t.Hour()))
	case "minute":
		return value.Of(float64(t.Minute()))
	case "second":
		return value.Of(float64(t.Second()))
	default:
		ctx.Errors.Add(queryerr.ValidationError{Path: path + ".args[0]", Message: fmt.Sprintf("unknown date part %q", part)})
		return value.Null
	}
}

func fnDateTrunc(ctx *Context, args []value.Value, path string) value.Value {
	unit, ok := argString(ctx, args, 0, path)
	if !ok {
		return value.Null
	}
	s, ok := argString(ctx, args, 1, path)
	if !ok {
		return value.Null
	}
	t, ok := parseDate(s)
	if !ok {
		ctx.Errors.Add(queryerr.ValidationError{Path: path + ".args[1]", Message: fmt.Sprintf("%q is not a valid date", s)})
		return value.Null
	}
	var trunc time.Time
	switch unit {
	case "year":
		trunc = time.Date(t.Year(), 1, 1, 0, 0, 0, 0, t.Location())
	case "month":
		trunc = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	case "day":
		trunc = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	case "hour":
		trunc = t.Truncate(time.Hour)
	default:
		ctx.Errors.Add(queryerr.ValidationError{Path: path + ".args[0]", Message: fmt.Sprintf("unknown date part %q", unit)})
		return value.Null
	}
	return value.Of(trunc.Format(time.RFC3339))
}

func fnExtreme(args []value.Value, sign int) value.Value {
	var best value.Value
	have := false
	for _, a := range args {
		if a.IsNull() {
			continue
		}
		if !have {
			best, have = a, true
			continue
		}
		if sign*a.CompareTo(best) > 0 {
			best = a
		}
	}
	if !have {
		return value.Null
	}
	return best
}
