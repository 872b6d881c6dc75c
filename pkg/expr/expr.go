package expr

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/relionhq/queryengine/pkg/ast"
	"github.com/relionhq/queryengine/pkg/queryerr"
	"github.com/relionhq/queryengine/pkg/record"
	"github.com/relionhq/queryengine/pkg/value"
)

// Expression is one compiled node of the tree the factory (Compile) builds
// from an ast.Node. Path returns the dotted/bracketed JSON path back to the
// original AST node, used to pin ValidationErrors (spec.md §4.B).
type Expression interface {
	Eval(ctx *Context, rec record.SelectRecord, group []record.SelectRecord) value.Value
	Path() string
}

// Statement is the compiled counterpart of ast.Statement: something
// pkg/engine's executors can run to produce rows. It is intentionally
// opaque here; pkg/engine defines the concrete executors and only uses this
// package for the Compile entry point plus the Expression tree underneath a
// Select/Insert/etc's WHERE/SET/projection lists.
type Statement = ast.Statement

// ---- constant ----

type constantExpr struct {
	raw  any
	path string
}

func (e *constantExpr) Path() string { return e.path }
func (e *constantExpr) Eval(_ *Context, _ record.SelectRecord, _ []record.SelectRecord) value.Value {
	return value.Of(e.raw)
}

// ---- column ----

type columnExpr struct {
	source, column string
	path           string
}

func (e *columnExpr) Path() string { return e.path }

func (e *columnExpr) Eval(ctx *Context, rec record.SelectRecord, _ []record.SelectRecord) value.Value {
	src := strings.ToLower(e.source)
	var dr *record.DataRecord
	var ok bool
	if src == "" && len(rec) == 1 {
		// A blank source names the sole binding in this row -- the shape
		// ORDER BY/HAVING references take over a projected output row
		// synthesized under a single "__temp__" source (spec.md §4.E
		// step 7).
		for _, v := range rec {
			dr, ok = v, true
		}
	} else {
		dr, ok = rec[src]
	}
	if !ok {
		if rows, ok2 := ctx.Aliases[src]; ok2 && len(rows) == 1 {
			dr, ok = rows[0], true
		}
	}
	if !ok {
		available := make([]string, 0, len(rec))
		for k := range rec {
			available = append(available, k)
		}
		sort.Strings(available)
		ctx.Errors.Add(queryerr.ValidationError{
			Path:    e.path,
			Message: fmt.Sprintf("Source '%s' not found; available sources: %s", e.source, strings.Join(available, ", ")),
		})
		return value.Null
	}
	raw, exists := dr.Get(e.column)
	if !exists {
		ctx.Errors.Add(queryerr.ValidationError{
			Path:    e.path,
			Message: fmt.Sprintf("Column %q not found on source %q", e.column, e.source),
		})
		return value.Null
	}
	v := value.Of(raw)
	if e.column != "*" {
		if t, ok := ctx.SourceTypes[src]; ok {
			if f, ok2 := t.FieldByName(e.column); ok2 {
				v = v.WithField(&value.FieldHint{Name: f.Name, Type: f.Type, Required: f.Required, EnumOptions: f.EnumOptions})
			}
		}
	}
	return v
}

// ---- binary ----

type binaryExpr struct {
	left, right Expression
	op          string
	path        string
}

func (e *binaryExpr) Path() string { return e.path }

func (e *binaryExpr) Eval(ctx *Context, rec record.SelectRecord, group []record.SelectRecord) value.Value {
	l := e.left.Eval(ctx, rec, group)
	r := e.right.Eval(ctx, rec, group)
	if l.IsNull() || r.IsNull() {
		return value.Null
	}
	if e.op == "+" && l.GetType() == value.KindString && r.GetType() == value.KindString {
		return value.Of(l.String() + r.String())
	}
	if l.GetType() != r.GetType() || l.GetType() != value.KindNumber {
		ctx.Errors.Add(queryerr.ValidationError{
			Path:         e.path,
			Message:      fmt.Sprintf("operator %q requires matching numeric operands, got %s and %s", e.op, l.GetType(), r.GetType()),
			ExpectedType: "number",
			ActualType:   l.GetType().String(),
		})
		return value.Null
	}
	lf, _ := l.Raw.(float64)
	rf, _ := r.Raw.(float64)
	switch e.op {
	case "+":
		return value.Of(lf + rf)
	case "-":
		return value.Of(lf - rf)
	case "*":
		return value.Of(lf * rf)
	case "/":
		if rf == 0 {
			ctx.Errors.Add(queryerr.ValidationError{Path: e.path, Message: "division by zero"})
			return value.Null
		}
		return value.Of(lf / rf)
	default:
		ctx.Errors.Add(queryerr.ValidationError{Path: e.path, Message: fmt.Sprintf("unknown binary operator %q", e.op)})
		return value.Null
	}
}

// ---- unary ----

type unaryExpr struct {
	op   string
	v    Expression
	path string
}

func (e *unaryExpr) Path() string { return e.path }

func (e *unaryExpr) Eval(ctx *Context, rec record.SelectRecord, group []record.SelectRecord) value.Value {
	v := e.v.Eval(ctx, rec, group)
	if v.IsNull() {
		return value.Null
	}
	if v.GetType() != value.KindNumber {
		ctx.Errors.Add(queryerr.ValidationError{Path: e.path, Message: "unary - requires a numeric operand", ExpectedType: "number", ActualType: v.GetType().String()})
		return value.Null
	}
	f, _ := v.Raw.(float64)
	return value.Of(-f)
}

// ---- aggregate ----

type aggregateExpr struct {
	fn   string
	v    Expression // nil when star
	star bool
	path string
}

func (e *aggregateExpr) Path() string { return e.path }

func (e *aggregateExpr) Eval(ctx *Context, rec record.SelectRecord, group []record.SelectRecord) value.Value {
	return evalAggregate(ctx, e.fn, e.v, e.star, group, e.path)
}

// ---- function call ----

type functionExpr struct {
	fn   string
	args []Expression
	path string
}

func (e *functionExpr) Path() string { return e.path }

func (e *functionExpr) Eval(ctx *Context, rec record.SelectRecord, group []record.SelectRecord) value.Value {
	argVals := make([]value.Value, len(e.args))
	for i, a := range e.args {
		argVals[i] = a.Eval(ctx, rec, group)
	}
	return callFunction(ctx, e.fn, argVals, e.path)
}

// ---- window ----

// OrderKey is one compiled ORDER BY / window ORDER BY term.
type OrderKey struct {
	Expr Expression
	Desc bool
}

type windowExpr struct {
	fn          string
	v           Expression
	partitionBy []Expression
	orderBy     []OrderKey
	path        string
}

func (e *windowExpr) Path() string { return e.path }

func (e *windowExpr) Eval(ctx *Context, rec record.SelectRecord, group []record.SelectRecord) value.Value {
	partition := partitionFor(ctx, e.partitionBy, rec, group)
	sortPartition(ctx, e.orderBy, partition)
	return evalAggregate(ctx, e.fn, e.v, e.v == nil, partition, e.path)
}

// ---- case ----

type caseBranchExpr struct {
	when, then Expression
}

type caseExpr struct {
	branches []caseBranchExpr
	els      Expression
	path     string
}

func (e *caseExpr) Path() string { return e.path }

func (e *caseExpr) Eval(ctx *Context, rec record.SelectRecord, group []record.SelectRecord) value.Value {
	for _, b := range e.branches {
		cond := b.when.Eval(ctx, rec, group)
		if !cond.IsNull() {
			if bv, ok := cond.Raw.(bool); ok && bv {
				return b.then.Eval(ctx, rec, group)
			}
		}
	}
	if e.els != nil {
		return e.els.Eval(ctx, rec, group)
	}
	return value.Null
}

// ---- semanticSimilarity ----

type semanticSimilarityExpr struct {
	table, query string
	path         string
}

func (e *semanticSimilarityExpr) Path() string { return e.path }

func (e *semanticSimilarityExpr) Eval(ctx *Context, _ record.SelectRecord, _ []record.SelectRecord) value.Value {
	return value.Of(ctx.Sim.Score(e.table, e.query))
}

// ---- subquery as scalar value ----

type subqueryValueExpr struct {
	stmt ast.Statement
	path string
}

func (e *subqueryValueExpr) Path() string { return e.path }

func (e *subqueryValueExpr) Eval(ctx *Context, rec record.SelectRecord, _ []record.SelectRecord) value.Value {
	restore := bindCorrelation(ctx, rec)
	defer restore()
	rows, err := ctx.Runner.RunSubquery(e.stmt, ctx)
	if err != nil {
		ctx.Errors.Add(queryerr.ValidationError{Path: e.path, Message: err.Error()})
		return value.Null
	}
	if len(rows) == 0 {
		return value.Null
	}
	first := rows[0]
	for _, v := range first {
		return value.Of(v)
	}
	return value.Null
}

// ---- boolean: comparison ----

type comparisonExpr struct {
	left, right Expression
	cmp         string
	path        string
}

func (e *comparisonExpr) Path() string { return e.path }

func (e *comparisonExpr) Eval(ctx *Context, rec record.SelectRecord, group []record.SelectRecord) value.Value {
	l := e.left.Eval(ctx, rec, group)
	r := e.right.Eval(ctx, rec, group)
	op := value.ComparisonOp(e.cmp)
	if l.IsNull() && r.IsNull() {
		_, lIsConst := e.left.(*constantExpr)
		_, rIsConst := e.right.(*constantExpr)
		if op == value.OpEq && lIsConst && rIsConst {
			return value.Of(true)
		}
		return value.Null
	}
	if l.IsNull() || r.IsNull() {
		return value.Null
	}
	if !l.IsComparableWith(r, op) {
		ctx.Errors.Add(queryerr.ValidationError{
			Path:         e.path,
			Message:      fmt.Sprintf("cannot compare %s with %s using %q", l.GetType(), r.GetType(), e.cmp),
			ExpectedType: l.GetType().String(),
			ActualType:   r.GetType().String(),
		})
		return value.Null
	}
	switch op {
	case value.OpEq:
		return value.Of(l.CompareTo(r) == 0)
	case value.OpNe:
		return value.Of(l.CompareTo(r) != 0)
	case value.OpLt:
		return value.Of(l.CompareTo(r) < 0)
	case value.OpGt:
		return value.Of(l.CompareTo(r) > 0)
	case value.OpLe:
		return value.Of(l.CompareTo(r) <= 0)
	case value.OpGe:
		return value.Of(l.CompareTo(r) >= 0)
	case value.OpLike:
		return value.Of(likeMatch(l.String(), r.String()))
	case value.OpNotLike:
		return value.Of(!likeMatch(l.String(), r.String()))
	default:
		ctx.Errors.Add(queryerr.ValidationError{Path: e.path, Message: fmt.Sprintf("unknown comparison operator %q", e.cmp)})
		return value.Null
	}
}

func likeMatch(s, pattern string) bool {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	re, err := regexp.Compile(b.String())
	if err != nil {
		return false
	}
	return re.MatchString(s)
}

// ---- boolean: in ----

type inExpr struct {
	v       Expression
	list    []Expression
	sub     ast.Statement
	hasList bool
	path    string
}

func (e *inExpr) Path() string { return e.path }

func (e *inExpr) Eval(ctx *Context, rec record.SelectRecord, group []record.SelectRecord) value.Value {
	v := e.v.Eval(ctx, rec, group)
	if v.IsNull() {
		return value.Null
	}
	if e.hasList {
		for _, item := range e.list {
			iv := item.Eval(ctx, rec, group)
			if !iv.IsNull() && v.IsComparableWith(iv, value.OpEq) && v.CompareTo(iv) == 0 {
				return value.Of(true)
			}
		}
		return value.Of(false)
	}
	restore := bindCorrelation(ctx, rec)
	rows, err := ctx.Runner.RunSubquery(e.sub, ctx)
	restore()
	if err != nil {
		ctx.Errors.Add(queryerr.ValidationError{Path: e.path, Message: err.Error()})
		return value.Null
	}
	for _, row := range rows {
		for _, col := range row {
			iv := value.Of(col)
			if !iv.IsNull() && v.IsComparableWith(iv, value.OpEq) && v.CompareTo(iv) == 0 {
				return value.Of(true)
			}
			break
		}
	}
	return value.Of(false)
}

// ---- boolean: between ----

type betweenExpr struct {
	v, lo, hi Expression
	path      string
}

func (e *betweenExpr) Path() string { return e.path }

func (e *betweenExpr) Eval(ctx *Context, rec record.SelectRecord, group []record.SelectRecord) value.Value {
	v := e.v.Eval(ctx, rec, group)
	lo := e.lo.Eval(ctx, rec, group)
	hi := e.hi.Eval(ctx, rec, group)
	if v.IsNull() || lo.IsNull() || hi.IsNull() {
		return value.Null
	}
	return value.Of(v.CompareTo(lo) >= 0 && v.CompareTo(hi) <= 0)
}

// ---- boolean: isNull ----

type isNullExpr struct {
	v    Expression
	path string
}

func (e *isNullExpr) Path() string { return e.path }

func (e *isNullExpr) Eval(ctx *Context, rec record.SelectRecord, group []record.SelectRecord) value.Value {
	return value.Of(e.v.Eval(ctx, rec, group).IsNull())
}

// ---- boolean: exists ----

type existsExpr struct {
	sub  ast.Statement
	path string
}

func (e *existsExpr) Path() string { return e.path }

func (e *existsExpr) Eval(ctx *Context, rec record.SelectRecord, _ []record.SelectRecord) value.Value {
	restore := bindCorrelation(ctx, rec)
	rows, err := ctx.Runner.RunSubquery(e.sub, ctx)
	restore()
	if err != nil {
		ctx.Errors.Add(queryerr.ValidationError{Path: e.path, Message: err.Error()})
		return value.Of(false)
	}
	return value.Of(len(rows) > 0)
}

// bindCorrelation implements the Design Notes' correlated-subquery rule:
// thread the outer row through ctx.Aliases rather than closure capture, and
// restore whatever was bound before so re-entry (nested EXISTS, recursive
// CTE steps) stays safe.
func bindCorrelation(ctx *Context, rec record.SelectRecord) (restore func()) {
	if len(rec) == 0 {
		return func() {}
	}
	restores := make([]func(), 0, len(rec))
	for src, dr := range rec {
		restores = append(restores, ctx.BindAlias(src, []*record.DataRecord{dr}))
	}
	return func() {
		for _, r := range restores {
			r()
		}
	}
}

// ---- boolean: and/or/not ----

type andExpr struct {
	terms []Expression
	path  string
}

func (e *andExpr) Path() string { return e.path }

func (e *andExpr) Eval(ctx *Context, rec record.SelectRecord, group []record.SelectRecord) value.Value {
	sawNull := false
	for _, t := range e.terms {
		v := t.Eval(ctx, rec, group)
		if v.IsNull() {
			sawNull = true
			continue
		}
		if b, ok := v.Raw.(bool); ok && !b {
			return value.Of(false)
		}
	}
	if sawNull {
		return value.Null
	}
	return value.Of(true)
}

type orExpr struct {
	terms []Expression
	path  string
}

func (e *orExpr) Path() string { return e.path }

func (e *orExpr) Eval(ctx *Context, rec record.SelectRecord, group []record.SelectRecord) value.Value {
	sawNull := false
	for _, t := range e.terms {
		v := t.Eval(ctx, rec, group)
		if v.IsNull() {
			sawNull = true
			continue
		}
		if b, ok := v.Raw.(bool); ok && b {
			return value.Of(true)
		}
	}
	if sawNull {
		return value.Null
	}
	return value.Of(false)
}

type notExpr struct {
	term Expression
	path string
}

func (e *notExpr) Path() string { return e.path }

func (e *notExpr) Eval(ctx *Context, rec record.SelectRecord, group []record.SelectRecord) value.Value {
	v := e.term.Eval(ctx, rec, group)
	if v.IsNull() {
		return value.Null
	}
	if b, ok := v.Raw.(bool); ok {
		return value.Of(!b)
	}
	return value.Null
}
