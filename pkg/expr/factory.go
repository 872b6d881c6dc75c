package expr

import (
	"fmt"

	"github.com/relionhq/queryengine/pkg/ast"
)

// Compile is the factory from spec.md §4.B: pure structural translation
// from a tagged-union ast.Node into an evaluable Expression, annotating
// every node with path, its dotted/bracketed JSON path back to the
// original query for error reporting.
func Compile(node ast.Node, path string) (Expression, error) {
	switch n := node.(type) {
	case ast.Constant:
		return &constantExpr{raw: n.Raw, path: path}, nil
	case ast.Column:
		return &columnExpr{source: n.Source, column: n.Column, path: path}, nil
	case ast.Binary:
		l, err := Compile(n.Left, path+".left")
		if err != nil {
			return nil, err
		}
		r, err := Compile(n.Right, path+".right")
		if err != nil {
			return nil, err
		}
		return &binaryExpr{left: l, right: r, op: n.Op, path: path}, nil
	case ast.Unary:
		v, err := Compile(n.Value, path+".value")
		if err != nil {
			return nil, err
		}
		return &unaryExpr{op: n.Op, v: v, path: path}, nil
	case ast.Aggregate:
		if n.Star {
			return &aggregateExpr{fn: n.Function, star: true, path: path}, nil
		}
		v, err := Compile(n.Value, path+".value")
		if err != nil {
			return nil, err
		}
		return &aggregateExpr{fn: n.Function, v: v, path: path}, nil
	case ast.FunctionCall:
		args := make([]Expression, len(n.Args))
		for i, a := range n.Args {
			ce, err := Compile(a, fmt.Sprintf("%s.args[%d]", path, i))
			if err != nil {
				return nil, err
			}
			args[i] = ce
		}
		return &functionExpr{fn: n.Function, args: args, path: path}, nil
	case ast.Window:
		var v Expression
		var err error
		if n.Value != nil {
			v, err = Compile(n.Value, path+".value")
			if err != nil {
				return nil, err
			}
		}
		partitionBy := make([]Expression, len(n.PartitionBy))
		for i, p := range n.PartitionBy {
			pe, err := Compile(p, fmt.Sprintf("%s.partitionBy[%d]", path, i))
			if err != nil {
				return nil, err
			}
			partitionBy[i] = pe
		}
		orderBy, err := compileOrderTerms(n.OrderBy, path+".orderBy")
		if err != nil {
			return nil, err
		}
		return &windowExpr{fn: n.Function, v: v, partitionBy: partitionBy, orderBy: orderBy, path: path}, nil
	case ast.Case:
		branches := make([]caseBranchExpr, len(n.Branches))
		for i, b := range n.Branches {
			when, err := Compile(b.When, fmt.Sprintf("%s.case[%d].when", path, i))
			if err != nil {
				return nil, err
			}
			then, err := Compile(b.Then, fmt.Sprintf("%s.case[%d].then", path, i))
			if err != nil {
				return nil, err
			}
			branches[i] = caseBranchExpr{when: when, then: then}
		}
		var els Expression
		if n.Else != nil {
			var err error
			els, err = Compile(n.Else, path+".else")
			if err != nil {
				return nil, err
			}
		}
		return &caseExpr{branches: branches, els: els, path: path}, nil
	case ast.SemanticSimilarity:
		return &semanticSimilarityExpr{table: n.Table, query: n.Query, path: path}, nil
	case ast.Comparison:
		l, err := Compile(n.Left, path+".left")
		if err != nil {
			return nil, err
		}
		r, err := Compile(n.Right, path+".right")
		if err != nil {
			return nil, err
		}
		return &comparisonExpr{left: l, right: r, cmp: n.Cmp, path: path}, nil
	case ast.In:
		v, err := Compile(n.Value, path+".value")
		if err != nil {
			return nil, err
		}
		if !n.HasList {
			return &inExpr{v: v, sub: n.Sub, path: path}, nil
		}
		list := make([]Expression, len(n.List))
		for i, it := range n.List {
			le, err := Compile(it, fmt.Sprintf("%s.in[%d]", path, i))
			if err != nil {
				return nil, err
			}
			list[i] = le
		}
		return &inExpr{v: v, list: list, hasList: true, path: path}, nil
	case ast.Between:
		v, err := Compile(n.Value, path+".value")
		if err != nil {
			return nil, err
		}
		lo, err := Compile(n.Lo, path+".between[0]")
		if err != nil {
			return nil, err
		}
		hi, err := Compile(n.Hi, path+".between[1]")
		if err != nil {
			return nil, err
		}
		return &betweenExpr{v: v, lo: lo, hi: hi, path: path}, nil
	case ast.IsNull:
		v, err := Compile(n.Value, path+".isNull")
		if err != nil {
			return nil, err
		}
		return &isNullExpr{v: v, path: path}, nil
	case ast.Exists:
		return &existsExpr{sub: n.Sub, path: path}, nil
	case ast.And:
		terms, err := compileList(n.Terms, path+".and")
		if err != nil {
			return nil, err
		}
		return &andExpr{terms: terms, path: path}, nil
	case ast.Or:
		terms, err := compileList(n.Terms, path+".or")
		if err != nil {
			return nil, err
		}
		return &orExpr{terms: terms, path: path}, nil
	case ast.Not:
		v, err := Compile(n.Term, path+".not")
		if err != nil {
			return nil, err
		}
		return &notExpr{term: v, path: path}, nil
	case ast.Select, ast.Insert, ast.Update, ast.Delete, ast.SetOperation, ast.WithStatement:
		stmt, ok := node.(ast.Statement)
		if !ok {
			return nil, fmt.Errorf("expr: %s is not a statement", path)
		}
		return &subqueryValueExpr{stmt: stmt, path: path}, nil
	default:
		return nil, fmt.Errorf("expr: cannot compile node of kind %q at %s", node.Kind(), path)
	}
}

func compileList(nodes []ast.Node, basePath string) ([]Expression, error) {
	out := make([]Expression, len(nodes))
	for i, n := range nodes {
		ce, err := Compile(n, fmt.Sprintf("%s[%d]", basePath, i))
		if err != nil {
			return nil, err
		}
		out[i] = ce
	}
	return out, nil
}

func compileOrderTerms(terms []ast.OrderTerm, basePath string) ([]OrderKey, error) {
	out := make([]OrderKey, len(terms))
	for i, t := range terms {
		ce, err := Compile(t.Value, fmt.Sprintf("%s[%d].value", basePath, i))
		if err != nil {
			return nil, err
		}
		out[i] = OrderKey{Expr: ce, Desc: t.Desc}
	}
	return out, nil
}

// CompileProjection compiles one SELECT/RETURNING projection item.
func CompileProjection(p ast.Projection, path string) (Expression, error) {
	return Compile(p.Value, path+".value")
}

// CompileOrderBy is the exported form pkg/planner uses for a statement's
// top-level ORDER BY clause.
func CompileOrderBy(terms []ast.OrderTerm, basePath string) ([]OrderKey, error) {
	return compileOrderTerms(terms, basePath)
}
