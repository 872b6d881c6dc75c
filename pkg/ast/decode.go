package ast

import (
	"encoding/json"
	"fmt"
)

// ParseQuery decodes the top-level Query shape from spec.md §6: either a
// bare Statement, or {kind:"withs", withs:[...], final:...}.
func ParseQuery(data []byte) (Statement, error) {
	var peek struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(data, &peek); err != nil {
		return nil, fmt.Errorf("ast: invalid query JSON: %w", err)
	}
	if peek.Kind == "withs" {
		var raw struct {
			Withs []struct {
				Name      string          `json:"name"`
				Recursive bool            `json:"recursive"`
				Query     json.RawMessage `json:"query"`
			} `json:"withs"`
			Final json.RawMessage `json:"final"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		ws := WithStatement{}
		for _, w := range raw.Withs {
			q, err := decodeStatement(w.Query)
			if err != nil {
				return nil, fmt.Errorf("ast: with %q: %w", w.Name, err)
			}
			ws.Withs = append(ws.Withs, CTEBinding{Name: w.Name, Recursive: w.Recursive, Query: q})
		}
		final, err := decodeStatement(raw.Final)
		if err != nil {
			return nil, fmt.Errorf("ast: final statement: %w", err)
		}
		ws.Final = final
		return ws, nil
	}
	return decodeStatement(data)
}

func decodeStatement(raw json.RawMessage) (Statement, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var peek struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(raw, &peek); err != nil {
		return nil, err
	}
	switch peek.Kind {
	case "select":
		return decodeSelect(raw)
	case "insert":
		return decodeInsert(raw)
	case "update":
		return decodeUpdate(raw)
	case "delete":
		return decodeDelete(raw)
	case "union", "intersect", "except":
		return decodeSetOperation(raw, peek.Kind)
	case "withs":
		// Nested WITH inside a subquery position is rejected: spec.md's
		// grammar only shows it at the top, and treating Final as the
		// statement while ignoring withs would be wrong.
		return nil, fmt.Errorf("ast: nested withs is not a valid statement position")
	default:
		return nil, fmt.Errorf("ast: unknown statement kind %q", peek.Kind)
	}
}

func decodeProjections(raw []json.RawMessage) ([]Projection, error) {
	var out []Projection
	for _, r := range raw {
		var p struct {
			Alias string          `json:"alias"`
			Value json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(r, &p); err != nil {
			return nil, err
		}
		v, err := decodeNode(p.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, Projection{Alias: p.Alias, Value: v})
	}
	return out, nil
}

func decodeOrderTerms(raw []struct {
	Value json.RawMessage `json:"value"`
	Dir   string          `json:"dir"`
}) ([]OrderTerm, error) {
	var out []OrderTerm
	for _, o := range raw {
		v, err := decodeNode(o.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, OrderTerm{Value: v, Desc: o.Dir == "desc"})
	}
	return out, nil
}

func decodeNodeList(raw []json.RawMessage) ([]Node, error) {
	var out []Node
	for _, r := range raw {
		n, err := decodeNode(r)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func decodeDataSourcePtr(raw json.RawMessage) (*DataSource, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	ds, err := decodeDataSource(raw)
	if err != nil {
		return nil, err
	}
	return &ds, nil
}

func decodeDataSource(raw json.RawMessage) (DataSource, error) {
	var peek struct {
		Kind     string          `json:"kind"`
		Table    string          `json:"table"`
		As       string          `json:"as"`
		Subquery json.RawMessage `json:"subquery"`
	}
	if err := json.Unmarshal(raw, &peek); err != nil {
		return DataSource{}, err
	}
	switch peek.Kind {
	case "table":
		return DataSource{Table: peek.Table, As: peek.As}, nil
	case "subquery":
		sub, err := decodeStatement(peek.Subquery)
		if err != nil {
			return DataSource{}, err
		}
		return DataSource{IsSubquery: true, As: peek.As, Subquery: sub}, nil
	default:
		return DataSource{}, fmt.Errorf("ast: unknown data source kind %q", peek.Kind)
	}
}

func decodeJoins(raw []struct {
	Source json.RawMessage   `json:"source"`
	Type   string            `json:"type"`
	On     []json.RawMessage `json:"on"`
}) ([]Join, error) {
	var out []Join
	for _, j := range raw {
		src, err := decodeDataSource(j.Source)
		if err != nil {
			return nil, err
		}
		on, err := decodeNodeList(j.On)
		if err != nil {
			return nil, err
		}
		out = append(out, Join{Source: src, Type: j.Type, On: on})
	}
	return out, nil
}

func decodeSelect(raw json.RawMessage) (Statement, error) {
	var s struct {
		Distinct bool              `json:"distinct"`
		Values   []json.RawMessage `json:"values"`
		From     json.RawMessage   `json:"from"`
		Joins    []struct {
			Source json.RawMessage   `json:"source"`
			Type   string            `json:"type"`
			On     []json.RawMessage `json:"on"`
		} `json:"joins"`
		Where   []json.RawMessage `json:"where"`
		GroupBy []json.RawMessage `json:"groupBy"`
		Having  []json.RawMessage `json:"having"`
		OrderBy []struct {
			Value json.RawMessage `json:"value"`
			Dir   string          `json:"dir"`
		} `json:"orderBy"`
		Offset *int `json:"offset"`
		Limit  *int `json:"limit"`
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	values, err := decodeProjections(s.Values)
	if err != nil {
		return nil, err
	}
	from, err := decodeDataSourcePtr(s.From)
	if err != nil {
		return nil, err
	}
	joins, err := decodeJoins(s.Joins)
	if err != nil {
		return nil, err
	}
	where, err := decodeNodeList(s.Where)
	if err != nil {
		return nil, err
	}
	groupBy, err := decodeNodeList(s.GroupBy)
	if err != nil {
		return nil, err
	}
	having, err := decodeNodeList(s.Having)
	if err != nil {
		return nil, err
	}
	orderBy, err := decodeOrderTerms(s.OrderBy)
	if err != nil {
		return nil, err
	}
	return Select{
		Distinct: s.Distinct,
		Values:   values,
		From:     from,
		Joins:    joins,
		Where:    where,
		GroupBy:  groupBy,
		Having:   having,
		OrderBy:  orderBy,
		Offset:   s.Offset,
		Limit:    s.Limit,
	}, nil
}

func decodeSetItems(raw []struct {
	Column string          `json:"column"`
	Value  json.RawMessage `json:"value"`
}) ([]SetItem, error) {
	var out []SetItem
	for _, s := range raw {
		v, err := decodeNode(s.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, SetItem{Column: s.Column, Value: v})
	}
	return out, nil
}

func decodeInsert(raw json.RawMessage) (Statement, error) {
	var s struct {
		Table      string            `json:"table"`
		As         string            `json:"as"`
		Columns    []string          `json:"columns"`
		Values     []json.RawMessage `json:"values"`
		Select     json.RawMessage   `json:"select"`
		Returning  []json.RawMessage `json:"returning"`
		OnConflict *struct {
			Columns   []string `json:"columns"`
			DoNothing bool     `json:"doNothing"`
			Update    []struct {
				Column string          `json:"column"`
				Value  json.RawMessage `json:"value"`
			} `json:"update"`
		} `json:"onConflict"`
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	values, err := decodeNodeList(s.Values)
	if err != nil {
		return nil, err
	}
	var sel Statement
	if len(s.Select) > 0 && string(s.Select) != "null" {
		sel, err = decodeStatement(s.Select)
		if err != nil {
			return nil, err
		}
	}
	returning, err := decodeProjections(s.Returning)
	if err != nil {
		return nil, err
	}
	ins := Insert{Table: s.Table, As: s.As, Columns: s.Columns, Values: values, Select: sel, Returning: returning}
	if s.OnConflict != nil {
		updateSet, err := decodeSetItems(s.OnConflict.Update)
		if err != nil {
			return nil, err
		}
		ins.OnConflict = &OnConflict{Columns: s.OnConflict.Columns, DoNothing: s.OnConflict.DoNothing, UpdateSet: updateSet}
	}
	return ins, nil
}

func decodeUpdate(raw json.RawMessage) (Statement, error) {
	var s struct {
		Table string `json:"table"`
		As    string `json:"as"`
		Set   []struct {
			Column string          `json:"column"`
			Value  json.RawMessage `json:"value"`
		} `json:"set"`
		From  json.RawMessage `json:"from"`
		Joins []struct {
			Source json.RawMessage   `json:"source"`
			Type   string            `json:"type"`
			On     []json.RawMessage `json:"on"`
		} `json:"joins"`
		Where     []json.RawMessage `json:"where"`
		Returning []json.RawMessage `json:"returning"`
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	set, err := decodeSetItems(s.Set)
	if err != nil {
		return nil, err
	}
	from, err := decodeDataSourcePtr(s.From)
	if err != nil {
		return nil, err
	}
	joins, err := decodeJoins(s.Joins)
	if err != nil {
		return nil, err
	}
	where, err := decodeNodeList(s.Where)
	if err != nil {
		return nil, err
	}
	returning, err := decodeProjections(s.Returning)
	if err != nil {
		return nil, err
	}
	return Update{Table: s.Table, As: s.As, Set: set, From: from, Joins: joins, Where: where, Returning: returning}, nil
}

func decodeDelete(raw json.RawMessage) (Statement, error) {
	var s struct {
		Table string `json:"table"`
		As    string `json:"as"`
		Joins []struct {
			Source json.RawMessage   `json:"source"`
			Type   string            `json:"type"`
			On     []json.RawMessage `json:"on"`
		} `json:"joins"`
		Where     []json.RawMessage `json:"where"`
		Returning []json.RawMessage `json:"returning"`
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	joins, err := decodeJoins(s.Joins)
	if err != nil {
		return nil, err
	}
	where, err := decodeNodeList(s.Where)
	if err != nil {
		return nil, err
	}
	returning, err := decodeProjections(s.Returning)
	if err != nil {
		return nil, err
	}
	return Delete{Table: s.Table, As: s.As, Joins: joins, Where: where, Returning: returning}, nil
}

func decodeSetOperation(raw json.RawMessage, kind string) (Statement, error) {
	var s struct {
		Left  json.RawMessage `json:"left"`
		Right json.RawMessage `json:"right"`
		All   bool            `json:"all"`
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	left, err := decodeStatement(s.Left)
	if err != nil {
		return nil, err
	}
	right, err := decodeStatement(s.Right)
	if err != nil {
		return nil, err
	}
	return SetOperation{SetKind: kind, Left: left, Right: right, All: s.All}, nil
}

// decodeNode decodes any Value|BooleanValue alternative from spec.md §6.
func decodeNode(raw json.RawMessage) (Node, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return Constant{Raw: nil}, nil
	}
	trimmed := firstNonSpace(raw)
	switch trimmed {
	case '"', 't', 'f', 'n', '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var lit any
		if err := json.Unmarshal(raw, &lit); err == nil {
			if _, isObj := lit.(map[string]any); !isObj {
				return Constant{Raw: lit}, nil
			}
		}
	}
	var peek struct {
		Kind   string `json:"kind"`
		Source string `json:"source"`
		Column string `json:"column"`
	}
	if err := json.Unmarshal(raw, &peek); err != nil {
		return nil, err
	}
	if peek.Kind == "" && peek.Column != "" {
		return Column{Source: peek.Source, Column: peek.Column}, nil
	}
	switch peek.Kind {
	case "select", "union", "intersect", "except":
		return decodeStatement(raw)
	case "binary":
		var b struct {
			Left  json.RawMessage `json:"left"`
			Op    string          `json:"op"`
			Right json.RawMessage `json:"right"`
		}
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, err
		}
		left, err := decodeNode(b.Left)
		if err != nil {
			return nil, err
		}
		right, err := decodeNode(b.Right)
		if err != nil {
			return nil, err
		}
		return Binary{Left: left, Op: b.Op, Right: right}, nil
	case "unary":
		var u struct {
			Unary string          `json:"unary"`
			Value json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(raw, &u); err != nil {
			return nil, err
		}
		v, err := decodeNode(u.Value)
		if err != nil {
			return nil, err
		}
		return Unary{Op: u.Unary, Value: v}, nil
	case "aggregate":
		var a struct {
			Aggregate string          `json:"aggregate"`
			Value     json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, err
		}
		if string(a.Value) == `"*"` {
			return Aggregate{Function: a.Aggregate, Star: true}, nil
		}
		v, err := decodeNode(a.Value)
		if err != nil {
			return nil, err
		}
		return Aggregate{Function: a.Aggregate, Value: v}, nil
	case "function":
		var f struct {
			Function string            `json:"function"`
			Args     []json.RawMessage `json:"args"`
		}
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, err
		}
		args, err := decodeNodeList(f.Args)
		if err != nil {
			return nil, err
		}
		return FunctionCall{Function: f.Function, Args: args}, nil
	case "window":
		var w struct {
			Function    string            `json:"function"`
			Value       json.RawMessage   `json:"value"`
			PartitionBy []json.RawMessage `json:"partitionBy"`
			OrderBy     []struct {
				Value json.RawMessage `json:"value"`
				Dir   string          `json:"dir"`
			} `json:"orderBy"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		v, err := decodeNode(w.Value)
		if err != nil {
			return nil, err
		}
		partitionBy, err := decodeNodeList(w.PartitionBy)
		if err != nil {
			return nil, err
		}
		orderBy, err := decodeOrderTerms(w.OrderBy)
		if err != nil {
			return nil, err
		}
		return Window{Function: w.Function, Value: v, PartitionBy: partitionBy, OrderBy: orderBy}, nil
	case "case":
		var c struct {
			Case []struct {
				When json.RawMessage `json:"when"`
				Then json.RawMessage `json:"then"`
			} `json:"case"`
			Else json.RawMessage `json:"else"`
		}
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, err
		}
		var branches []CaseBranch
		for _, b := range c.Case {
			when, err := decodeNode(b.When)
			if err != nil {
				return nil, err
			}
			then, err := decodeNode(b.Then)
			if err != nil {
				return nil, err
			}
			branches = append(branches, CaseBranch{When: when, Then: then})
		}
		var elseNode Node
		if len(c.Else) > 0 && string(c.Else) != "null" {
			elseNode, err := decodeNode(c.Else)
			if err != nil {
				return nil, err
			}
			_ = elseNode
		}
		if len(c.Else) > 0 && string(c.Else) != "null" {
			en, err := decodeNode(c.Else)
			if err != nil {
				return nil, err
			}
			elseNode = en
		}
		return Case{Branches: branches, Else: elseNode}, nil
	case "semanticSimilarity":
		var s struct {
			Table string `json:"table"`
			Query string `json:"query"`
		}
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return SemanticSimilarity{Table: s.Table, Query: s.Query}, nil
	case "comparison":
		var c struct {
			Left  json.RawMessage `json:"left"`
			Cmp   string          `json:"cmp"`
			Right json.RawMessage `json:"right"`
		}
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, err
		}
		left, err := decodeNode(c.Left)
		if err != nil {
			return nil, err
		}
		right, err := decodeNode(c.Right)
		if err != nil {
			return nil, err
		}
		return Comparison{Left: left, Cmp: c.Cmp, Right: right}, nil
	case "in":
		var in struct {
			Value json.RawMessage   `json:"value"`
			In    []json.RawMessage `json:"in"`
		}
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, err
		}
		v, err := decodeNode(in.Value)
		if err != nil {
			return nil, err
		}
		if len(in.In) == 1 {
			if sub, err := tryDecodeStatement(in.In[0]); err == nil && sub != nil {
				return In{Value: v, Sub: sub}, nil
			}
		}
		list, err := decodeNodeList(in.In)
		if err != nil {
			return nil, err
		}
		return In{Value: v, List: list, HasList: true}, nil
	case "between":
		var b struct {
			Value   json.RawMessage   `json:"value"`
			Between []json.RawMessage `json:"between"`
		}
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, err
		}
		v, err := decodeNode(b.Value)
		if err != nil {
			return nil, err
		}
		if len(b.Between) != 2 {
			return nil, fmt.Errorf("ast: between requires exactly 2 bounds")
		}
		lo, err := decodeNode(b.Between[0])
		if err != nil {
			return nil, err
		}
		hi, err := decodeNode(b.Between[1])
		if err != nil {
			return nil, err
		}
		return Between{Value: v, Lo: lo, Hi: hi}, nil
	case "isNull":
		var n struct {
			IsNull json.RawMessage `json:"isNull"`
		}
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, err
		}
		v, err := decodeNode(n.IsNull)
		if err != nil {
			return nil, err
		}
		return IsNull{Value: v}, nil
	case "exists":
		var e struct {
			Exists json.RawMessage `json:"exists"`
		}
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, err
		}
		sub, err := decodeStatement(e.Exists)
		if err != nil {
			return nil, err
		}
		return Exists{Sub: sub}, nil
	case "and":
		var a struct {
			And []json.RawMessage `json:"and"`
		}
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, err
		}
		terms, err := decodeNodeList(a.And)
		if err != nil {
			return nil, err
		}
		return And{Terms: terms}, nil
	case "or":
		var o struct {
			Or []json.RawMessage `json:"or"`
		}
		if err := json.Unmarshal(raw, &o); err != nil {
			return nil, err
		}
		terms, err := decodeNodeList(o.Or)
		if err != nil {
			return nil, err
		}
		return Or{Terms: terms}, nil
	case "not":
		var n struct {
			Not json.RawMessage `json:"not"`
		}
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, err
		}
		v, err := decodeNode(n.Not)
		if err != nil {
			return nil, err
		}
		return Not{Term: v}, nil
	default:
		return nil, fmt.Errorf("ast: unknown value kind %q", peek.Kind)
	}
}

func tryDecodeStatement(raw json.RawMessage) (Statement, error) {
	var peek struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(raw, &peek); err != nil {
		return nil, err
	}
	switch peek.Kind {
	case "select", "union", "intersect", "except":
		return decodeStatement(raw)
	default:
		return nil, fmt.Errorf("ast: not a statement")
	}
}

func firstNonSpace(raw json.RawMessage) byte {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return b
		}
	}
	return 0
}
