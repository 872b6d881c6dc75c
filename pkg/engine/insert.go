package engine

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/relionhq/queryengine/pkg/ast"
	"github.com/relionhq/queryengine/pkg/expr"
	"github.com/relionhq/queryengine/pkg/queryerr"
	"github.com/relionhq/queryengine/pkg/record"
	"github.com/relionhq/queryengine/pkg/schema"
	"github.com/relionhq/queryengine/pkg/txstate"
	"github.com/relionhq/queryengine/pkg/value"
)

// execInsert implements spec.md §4.E's INSERT: validate the target and
// column/value arity, evaluate VALUES or run the SELECT source, stage one
// insert (or resolve an ON CONFLICT) per produced row, and evaluate
// RETURNING against the resulting record.
func (e *Engine) execInsert(qc *txstate.QueryContext, ins ast.Insert, path string) (*execResult, error) {
	tableName := strings.ToLower(ins.Table)
	typ, ok := qc.Types.Get(tableName)
	if !ok {
		qc.Errors.Addf(path+".table", "unknown table %q", ins.Table)
		return &execResult{}, nil
	}
	ts, err := qc.LoadTable(tableName)
	if err != nil {
		return nil, err
	}
	bound := tableName
	if ins.As != "" {
		bound = strings.ToLower(ins.As)
		qc.BindSource(bound, tableName)
	}

	rowsOfValues, err := e.resolveInsertRows(qc, ins, path)
	if err != nil {
		return nil, err
	}

	returningItems, err := compileProjections(ins.Returning, path+".returning")
	if err != nil {
		return nil, err
	}

	var insertedIDs, updatedIDs []string
	var returningRows []expr.Row
	now := qc.Now().UnixMilli()

	for i, fields := range rowsOfValues {
		rowPath := fmt.Sprintf("%s.values[%d]", path, i)
		fieldPath := func(column string) string { return fmt.Sprintf("%s.%s", rowPath, column) }
		if ins.Select == nil {
			// A VALUES row is positional: pin each field to its values[j] slot.
			fieldPath = func(column string) string {
				for j, c := range ins.Columns {
					if strings.EqualFold(c, column) {
						return fmt.Sprintf("%s.values[%d]", path, j)
					}
				}
				return fmt.Sprintf("%s.columns", path)
			}
		}
		if !validateFields(qc, typ, fields, fieldPath) {
			continue
		}
		if ins.OnConflict != nil {
			if existing, found := findConflict(ts, ins.OnConflict.Columns, fields); found {
				if ins.OnConflict.DoNothing {
					continue
				}
				partial, err := e.resolveOnConflictSet(qc, typ, ins.OnConflict.UpdateSet, rowPath)
				if err != nil {
					return nil, err
				}
				next, _ := ts.Update(existing.ID, partial, now)
				updatedIDs = appendUnique(updatedIDs, existing.ID)
				if len(returningItems) > 0 {
					returningRows = append(returningRows, projectRow(qc.Context, returningItems, record.SelectRecord{bound: next}, nil))
				}
				continue
			}
		}
		tempID := uuid.NewString()
		rec := ts.Insert(tempID, fields, now)
		insertedIDs = append(insertedIDs, tempID)
		if len(returningItems) > 0 {
			returningRows = append(returningRows, projectRow(qc.Context, returningItems, record.SelectRecord{bound: rec}, nil))
		}
	}

	res := &execResult{Rows: returningRows}
	if len(insertedIDs) > 0 {
		res.Inserted = []MutationSummary{{Type: tableName, IDs: insertedIDs}}
	}
	if len(updatedIDs) > 0 {
		res.Updated = []MutationSummary{{Type: tableName, IDs: updatedIDs}}
	}
	return res, nil
}

// resolveOnConflictSet evaluates an ON CONFLICT DO UPDATE SET clause into a
// partial fields map, validating each assigned value against the schema.
func (e *Engine) resolveOnConflictSet(qc *txstate.QueryContext, typ *schema.TypeDefinition, items []ast.SetItem, path string) (map[string]any, error) {
	partial := make(map[string]any, len(items))
	for i, item := range items {
		itemPath := fmt.Sprintf("%s.onConflict.update[%d].value", path, i)
		ce, err := expr.Compile(item.Value, itemPath)
		if err != nil {
			return nil, err
		}
		val := ce.Eval(qc.Context, record.SelectRecord{}, nil)
		if f, ok := typ.FieldByName(item.Column); ok {
			hint := fieldHint(f)
			if assignErr := val.WithField(hint).IsAssignableTo(hint); assignErr != nil {
				qc.Errors.Add(toValidationError(itemPath, assignErr))
				continue
			}
		}
		partial[strings.ToLower(item.Column)] = val.Raw
	}
	return partial, nil
}

// resolveInsertRows produces the ordered list of column->value maps this
// INSERT will stage, from either the VALUES list or an INSERT ... SELECT.
func (e *Engine) resolveInsertRows(qc *txstate.QueryContext, ins ast.Insert, path string) ([]map[string]any, error) {
	if ins.Select != nil {
		selRes, err := e.runStatement(qc, ins.Select, path+".select")
		if err != nil {
			return nil, err
		}
		order := projectionOrderOf(ins.Select)
		if len(order) != len(ins.Columns) {
			qc.Errors.Addf(path+".select", "select produces %d columns, expected %d matching insert columns", len(order), len(ins.Columns))
			return nil, nil
		}
		out := make([]map[string]any, 0, len(selRes.Rows))
		for _, row := range selRes.Rows {
			fields := make(map[string]any, len(ins.Columns))
			for i, col := range ins.Columns {
				fields[strings.ToLower(col)] = row[order[i]]
			}
			out = append(out, fields)
		}
		return out, nil
	}

	if len(ins.Values) != len(ins.Columns) {
		qc.Errors.Addf(path+".values", "column count (%d) does not match value count (%d)", len(ins.Columns), len(ins.Values))
		return nil, nil
	}
	fields := make(map[string]any, len(ins.Columns))
	for i, v := range ins.Values {
		ce, err := expr.Compile(v, fmt.Sprintf("%s.values[%d]", path, i))
		if err != nil {
			return nil, err
		}
		val := ce.Eval(qc.Context, record.SelectRecord{}, nil)
		fields[strings.ToLower(ins.Columns[i])] = val.Raw
	}
	return []map[string]any{fields}, nil
}

// validateFields runs spec.md §4.A's isAssignableTo check over every field
// of typ that the candidate row touches (plus every required field it
// omits), accumulating (not short-circuiting on) failures so a single
// INSERT surfaces every bad column in one pass (spec.md §8 scenario S4).
// fieldPath gives the error path for a field name. Returns false if any
// field failed.
func validateFields(qc *txstate.QueryContext, typ *schema.TypeDefinition, fields map[string]any, fieldPath func(column string) string) bool {
	ok := true
	for i := range typ.Fields {
		f := &typ.Fields[i]
		raw, present := fields[strings.ToLower(f.Name)]
		if !present && !f.Required {
			continue
		}
		hint := fieldHint(f)
		if assignErr := value.Of(raw).WithField(hint).IsAssignableTo(hint); assignErr != nil {
			qc.Errors.Add(toValidationError(fieldPath(f.Name), assignErr))
			ok = false
		}
	}
	return ok
}

// fieldHint adapts a schema.Field into the minimal value.FieldHint the
// assignability check needs.
func fieldHint(f *schema.Field) *value.FieldHint {
	return &value.FieldHint{Name: f.Name, Type: f.Type, Required: f.Required, EnumOptions: f.EnumOptions}
}

// toValidationError adapts a value.AssignabilityError into the richer
// queryerr.ValidationError the sink accumulates.
func toValidationError(path string, err *value.AssignabilityError) queryerr.ValidationError {
	return queryerr.ValidationError{
		Path:         path,
		Message:      err.Message,
		ExpectedType: err.ExpectedType,
		ActualType:   err.ActualType,
	}
}

// appendUnique appends id to ids if it is not already present, keeping
// RETURNING/mutation-summary output free of duplicates when a statement
// touches the same row more than once.
func appendUnique(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

// findConflict implements ON CONFLICT's match test: the candidate row
// conflicts with an existing row if every named conflict column compares
// equal (spec.md §4.E's "ON CONFLICT (columns)").
func findConflict(ts *txstate.TableState, columns []string, fields map[string]any) (*record.DataRecord, bool) {
	for _, rec := range ts.Current {
		match := true
		for _, col := range columns {
			lc := strings.ToLower(col)
			existing, _ := rec.Get(lc)
			candidate := fields[lc]
			if !value.Of(existing).Equal(value.Of(candidate)) {
				match = false
				break
			}
		}
		if match {
			return rec, true
		}
	}
	return nil, false
}
