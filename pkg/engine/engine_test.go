package engine_test

import (
	"strings"
	"testing"
	"time"

	"github.com/relionhq/queryengine/pkg/ast"
	"github.com/relionhq/queryengine/pkg/engine"
	"github.com/relionhq/queryengine/pkg/record"
	"github.com/relionhq/queryengine/pkg/schema"
	"github.com/relionhq/queryengine/pkg/store"
	"github.com/relionhq/queryengine/pkg/txstate"
)

// fixedNow pins the clock so staged created/updated timestamps are
// deterministic across a test run, matching spec.md §3 invariant 6.
func fixedNow() time.Time { return time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC) }

// newEngine builds a file-backed Engine under a fresh temp directory, one
// FileStore per table, and seeds each named table with the given rows
// before returning -- the same construction cmd/queryenginedemo uses, just
// pointed at t.TempDir() instead of a fixed working directory.
func newEngine(t *testing.T, src schema.Source, seed map[string][]map[string]any) *engine.Engine {
	t.Helper()
	dir := t.TempDir()
	provider := func(table string) (txstate.Store, error) {
		return store.NewFileStore(dir, table)
	}
	eng, err := engine.New(src, provider)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	eng.Now = fixedNow

	for table, rows := range seed {
		fs, err := store.NewFileStore(dir, table)
		if err != nil {
			t.Fatalf("seeding %s: NewFileStore: %v", table, err)
		}
		if err := fs.Load(); err != nil {
			t.Fatalf("seeding %s: Load: %v", table, err)
		}
		err = fs.Save(func(file *record.DataFile) {
			for i, fields := range rows {
				id := fields["id"].(string)
				clone := make(map[string]any, len(fields)-1)
				for k, v := range fields {
					if k != "id" {
						clone[k] = v
					}
				}
				ts := int64(i + 1)
				file.Data = append(file.Data, record.NewDataRecord(id, ts, ts, clone))
			}
		})
		if err != nil {
			t.Fatalf("seeding %s: Save: %v", table, err)
		}
	}
	return eng
}

func col(source, column string) ast.Node { return ast.Column{Source: source, Column: column} }

func cmp(left ast.Node, op string, right ast.Node) ast.Node {
	return ast.Comparison{Left: left, Cmp: op, Right: right}
}

func lit(v any) ast.Node { return ast.Constant{Raw: v} }

func proj(alias string, v ast.Node) ast.Projection { return ast.Projection{Alias: alias, Value: v} }

// ---- S1: DELETE with alias mismatch ----

func TestS1DeleteAliasMismatch(t *testing.T) {
	eng := newEngine(t, transactionSchema, map[string][]map[string]any{
		"transaction": {
			{"id": "1", "accountid": "OPENROUTER-acc-1", "description": "first"},
			{"id": "2", "accountid": "acc123", "description": "second"},
		},
	})

	del := ast.Delete{
		Table: "transaction",
		As:    "t",
		Where: []ast.Node{
			cmp(col("transaction", "accountid"), "=", lit("OPENROUTER-acc-1")),
		},
		Returning: []ast.Projection{proj("*", col("transaction", "*"))},
	}

	payload, err := eng.ExecuteQuery(del, engine.RepeatableRead)
	if err != nil {
		t.Fatalf("ExecuteQuery: %v", err)
	}
	if payload.Result.AffectedCount != 0 {
		t.Fatalf("affectedCount = %d, want 0", payload.Result.AffectedCount)
	}
	if len(payload.Result.Rows) != 0 {
		t.Fatalf("rows = %v, want none", payload.Result.Rows)
	}
	if len(payload.Result.ValidationErrors) == 0 {
		t.Fatalf("want at least one validation error, got none")
	}
	found := false
	for _, ve := range payload.Result.ValidationErrors {
		if strings.HasPrefix(ve.Message, "Source 'transaction' not found") &&
			strings.Contains(ve.Message, "available sources: t") &&
			strings.Contains(ve.Path, "where") {
			found = true
		}
	}
	if !found {
		t.Fatalf("validation errors = %+v, want one starting with \"Source 'transaction' not found\" naming source 't' on a where path", payload.Result.ValidationErrors)
	}

	if err := eng.Commit(payload); err == nil {
		t.Fatalf("Commit succeeded on a failed delete, want rejection")
	}
}

// ---- S2: DELETE with alias correct ----

func TestS2DeleteAliasCorrect(t *testing.T) {
	eng := newEngine(t, transactionSchema, map[string][]map[string]any{
		"transaction": {
			{"id": "1", "accountid": "acc123", "description": "first"},
			{"id": "2", "accountid": "acc999", "description": "second"},
		},
	})

	del := ast.Delete{
		Table: "transaction",
		As:    "t",
		Where: []ast.Node{
			cmp(col("t", "accountid"), "=", lit("acc123")),
		},
		Returning: []ast.Projection{
			{Alias: "id", Value: col("t", "id")},
		},
	}

	payload, err := eng.ExecuteQuery(del, engine.RepeatableRead)
	if err != nil {
		t.Fatalf("ExecuteQuery: %v", err)
	}
	if !payload.Result.CanCommit {
		t.Fatalf("canCommit = false, errors = %+v", payload.Result.ValidationErrors)
	}
	if payload.Result.AffectedCount != 1 {
		t.Fatalf("affectedCount = %d, want 1", payload.Result.AffectedCount)
	}
	if len(payload.Result.Deleted) != 1 || payload.Result.Deleted[0].Type != "transaction" ||
		len(payload.Result.Deleted[0].IDs) != 1 || payload.Result.Deleted[0].IDs[0] != "1" {
		t.Fatalf("deleted summary = %+v, want transaction:[1]", payload.Result.Deleted)
	}
	if len(payload.Result.Rows) != 1 {
		t.Fatalf("rows = %v, want one", payload.Result.Rows)
	}

	if err := eng.Commit(payload); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	after, err := eng.ExecuteQuery(ast.Select{
		Values: []ast.Projection{{Alias: "id", Value: col("transaction", "id")}},
		From:   &ast.DataSource{Table: "transaction"},
	}, engine.RepeatableRead)
	if err != nil {
		t.Fatalf("post-commit select: %v", err)
	}
	if len(after.Result.Rows) != 1 || after.Result.Rows[0]["id"] != "2" {
		t.Fatalf("remaining rows = %v, want only id=2", after.Result.Rows)
	}
}

// ---- S3: GROUP BY + HAVING ----

func TestS3GroupByHaving(t *testing.T) {
	eng := newEngine(t, ordersSchema, map[string][]map[string]any{
		"orders": {
			{"id": "1", "customer": "Alice", "amount": 100.0},
			{"id": "2", "customer": "Alice", "amount": 200.0},
			{"id": "3", "customer": "Bob", "amount": 50.0},
			{"id": "4", "customer": "Bob", "amount": 100.0},
			{"id": "5", "customer": "Charlie", "amount": 300.0},
			{"id": "6", "customer": "Charlie", "amount": 350.0},
			{"id": "7", "customer": "Dana", "amount": 10.0},
			{"id": "8", "customer": "Dana", "amount": 20.0},
		},
	})

	sel := ast.Select{
		Values: []ast.Projection{
			{Alias: "customer", Value: col("orders", "customer")},
			{Alias: "total_amount", Value: ast.Aggregate{Function: "sum", Value: col("orders", "amount")}},
		},
		From:    &ast.DataSource{Table: "orders"},
		GroupBy: []ast.Node{col("orders", "customer")},
		Having: []ast.Node{
			cmp(ast.Aggregate{Function: "sum", Value: col("orders", "amount")}, ">=", lit(300.0)),
		},
		OrderBy: []ast.OrderTerm{
			{Value: col("", "total_amount"), Desc: true},
		},
	}

	payload, err := eng.ExecuteQuery(sel, engine.RepeatableRead)
	if err != nil {
		t.Fatalf("ExecuteQuery: %v", err)
	}
	rows := payload.Result.Rows
	if len(rows) != 2 {
		t.Fatalf("rows = %v, want 2 (Charlie, Alice)", rows)
	}
	if rows[0]["customer"] != "Charlie" || rows[0]["total_amount"] != 650.0 {
		t.Fatalf("rows[0] = %v, want Charlie:650", rows[0])
	}
	if rows[1]["customer"] != "Alice" || rows[1]["total_amount"] != 300.0 {
		t.Fatalf("rows[1] = %v, want Alice:300", rows[1])
	}
}

// ---- S4: INSERT type mismatch ----

func TestS4InsertTypeMismatch(t *testing.T) {
	eng := newEngine(t, usersAgeActiveSchema, nil)

	ins := ast.Insert{
		Table:   "users",
		Columns: []string{"name", "age", "active"},
		Values: []ast.Node{
			lit("Alice"),
			lit("twenty-five"),
			lit(1.0),
		},
	}

	payload, err := eng.ExecuteQuery(ins, engine.RepeatableRead)
	if err != nil {
		t.Fatalf("ExecuteQuery: %v", err)
	}
	if payload.Result.CanCommit {
		t.Fatalf("canCommit = true, want false")
	}

	var sawAge, sawActive bool
	for _, ve := range payload.Result.ValidationErrors {
		if strings.Contains(ve.Path, "values[1]") && ve.ExpectedType == "number" && ve.ActualType == "string" {
			sawAge = true
		}
		if strings.Contains(ve.Path, "values[2]") && ve.ExpectedType == "boolean" && ve.ActualType == "number" {
			sawActive = true
		}
	}
	if !sawAge {
		t.Fatalf("errors = %+v, want a values[1] error (number expected, string actual)", payload.Result.ValidationErrors)
	}
	if !sawActive {
		t.Fatalf("errors = %+v, want a values[2] error (boolean expected, number actual)", payload.Result.ValidationErrors)
	}

	if err := eng.Commit(payload); err == nil {
		t.Fatalf("Commit succeeded despite validation errors")
	} else if !strings.Contains(err.Error(), "validation error") {
		t.Fatalf("Commit error = %v, want it to mention validation errors", err)
	}

	after, err := eng.ExecuteQuery(ast.Select{
		Values: []ast.Projection{{Alias: "id", Value: col("users", "id")}},
		From:   &ast.DataSource{Table: "users"},
	}, engine.RepeatableRead)
	if err != nil {
		t.Fatalf("post-reject select: %v", err)
	}
	if len(after.Result.Rows) != 0 {
		t.Fatalf("users table = %v rows, want empty after rejected insert", after.Result.Rows)
	}
}

// ---- S5: Recursive CTE ----

func TestS5RecursiveCTE(t *testing.T) {
	eng := newEngine(t, employeesSchema, map[string][]map[string]any{
		"employees": {
			{"id": "A", "name": "Alice", "manager_id": "B"},
			{"id": "B", "name": "Bob", "manager_id": "root"},
			{"id": "root", "name": "Root", "manager_id": nil},
		},
	})

	anchor := ast.Select{
		Values: []ast.Projection{
			{Alias: "id", Value: col("employees", "id")},
			{Alias: "name", Value: col("employees", "name")},
			{Alias: "manager_id", Value: col("employees", "manager_id")},
		},
		From:  &ast.DataSource{Table: "employees"},
		Where: []ast.Node{cmp(col("employees", "id"), "=", lit("A"))},
	}
	recursive := ast.Select{
		Values: []ast.Projection{
			{Alias: "id", Value: col("employees", "id")},
			{Alias: "name", Value: col("employees", "name")},
			{Alias: "manager_id", Value: col("employees", "manager_id")},
		},
		From: &ast.DataSource{Table: "employees"},
		Joins: []ast.Join{
			{
				Source: ast.DataSource{Table: "chain"},
				Type:   "inner",
				On:     []ast.Node{cmp(col("employees", "id"), "=", col("chain", "manager_id"))},
			},
		},
	}

	with := ast.WithStatement{
		Withs: []ast.CTEBinding{
			{
				Name:      "chain",
				Recursive: true,
				Query:     ast.SetOperation{SetKind: "union", Left: anchor, Right: recursive, All: true},
			},
		},
		Final: ast.Select{
			Values: []ast.Projection{
				{Alias: "id", Value: col("chain", "id")},
			},
			From: &ast.DataSource{Table: "chain"},
		},
	}

	payload, err := eng.ExecuteQuery(with, engine.RepeatableRead)
	if err != nil {
		t.Fatalf("ExecuteQuery: %v", err)
	}
	var ids []string
	for _, r := range payload.Result.Rows {
		ids = append(ids, r["id"].(string))
	}
	want := []string{"A", "B", "root"}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ids = %v, want %v", ids, want)
		}
	}
}

// ---- S6: ON CONFLICT DO UPDATE ----

func TestS6OnConflictDoUpdate(t *testing.T) {
	eng := newEngine(t, usersEmailSchema, map[string][]map[string]any{
		"users": {
			{"id": "u1", "email": "alice@x", "login_count": 5.0},
		},
	})

	ins := ast.Insert{
		Table:   "users",
		Columns: []string{"email", "login_count"},
		Values:  []ast.Node{lit("alice@x"), lit(10.0)},
		OnConflict: &ast.OnConflict{
			Columns: []string{"email"},
			UpdateSet: []ast.SetItem{
				{Column: "login_count", Value: lit(10.0)},
			},
		},
	}

	payload, err := eng.ExecuteQuery(ins, engine.RepeatableRead)
	if err != nil {
		t.Fatalf("ExecuteQuery: %v", err)
	}
	if !payload.Result.CanCommit {
		t.Fatalf("canCommit = false, errors = %+v", payload.Result.ValidationErrors)
	}
	if payload.Result.AffectedCount != 1 {
		t.Fatalf("affectedCount = %d, want 1", payload.Result.AffectedCount)
	}
	if len(payload.Result.Inserted) != 0 {
		t.Fatalf("inserted = %+v, want none (conflict should update, not insert)", payload.Result.Inserted)
	}

	if err := eng.Commit(payload); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	after, err := eng.ExecuteQuery(ast.Select{
		Values: []ast.Projection{
			{Alias: "id", Value: col("users", "id")},
			{Alias: "login_count", Value: col("users", "login_count")},
		},
		From: &ast.DataSource{Table: "users"},
	}, engine.RepeatableRead)
	if err != nil {
		t.Fatalf("post-commit select: %v", err)
	}
	if len(after.Result.Rows) != 1 {
		t.Fatalf("rows = %v, want exactly one user row", after.Result.Rows)
	}
	if after.Result.Rows[0]["login_count"] != 10.0 {
		t.Fatalf("login_count = %v, want 10.0", after.Result.Rows[0]["login_count"])
	}
}

// ---- S7: Cascade delete ----

func TestS7CascadeDelete(t *testing.T) {
	eng := newEngine(t, usersPostsCascadeSchema, map[string][]map[string]any{
		"users": {
			{"id": "u1", "name": "Alice"},
		},
		"posts": {
			{"id": "p1", "title": "hello", "author": "u1"},
		},
	})

	del := ast.Delete{
		Table: "users",
		Where: []ast.Node{cmp(col("users", "id"), "=", lit("u1"))},
	}

	payload, err := eng.ExecuteQuery(del, engine.RepeatableRead)
	if err != nil {
		t.Fatalf("ExecuteQuery: %v", err)
	}
	if !payload.Result.CanCommit {
		t.Fatalf("canCommit = false, errors = %+v", payload.Result.ValidationErrors)
	}
	if len(payload.Deltas) != 2 {
		t.Fatalf("deltas = %+v, want 2 (users + posts)", payload.Deltas)
	}

	if err := eng.Commit(payload); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	for _, table := range []string{"users", "posts"} {
		after, err := eng.ExecuteQuery(ast.Select{
			Values: []ast.Projection{{Alias: "id", Value: col(table, "id")}},
			From:   &ast.DataSource{Table: table},
		}, engine.RepeatableRead)
		if err != nil {
			t.Fatalf("post-commit select %s: %v", table, err)
		}
		if len(after.Result.Rows) != 0 {
			t.Fatalf("%s rows = %v, want empty after cascade", table, after.Result.Rows)
		}
	}
}

// ---- S8: Restrict soundness ----

func TestS8RestrictSoundness(t *testing.T) {
	eng := newEngine(t, usersPostsRestrictSchema, map[string][]map[string]any{
		"users": {
			{"id": "u1", "name": "Alice"},
		},
		"posts": {
			{"id": "p1", "title": "hello", "author": "u1"},
		},
	})

	del := ast.Delete{
		Table: "users",
		Where: []ast.Node{cmp(col("users", "id"), "=", lit("u1"))},
	}

	payload, err := eng.ExecuteQuery(del, engine.RepeatableRead)
	if err != nil {
		t.Fatalf("ExecuteQuery: %v", err)
	}
	if payload.Result.CanCommit {
		t.Fatalf("canCommit = true, want false (referencing post should restrict the delete)")
	}
	found := false
	for _, ve := range payload.Result.ValidationErrors {
		if strings.Contains(ve.Message, "referenced by posts") {
			found = true
		}
	}
	if !found {
		t.Fatalf("errors = %+v, want a referential error naming posts", payload.Result.ValidationErrors)
	}
	if err := eng.Commit(payload); err == nil {
		t.Fatalf("Commit succeeded despite a restrict violation")
	}
}

// ---- universal properties ----

// TestDeterminism exercises spec.md §8 property 1: running the same query
// against the same snapshot twice yields identical rows, in order.
func TestDeterminism(t *testing.T) {
	eng := newEngine(t, ordersSchema, map[string][]map[string]any{
		"orders": {
			{"id": "1", "customer": "Alice", "amount": 100.0},
			{"id": "2", "customer": "Bob", "amount": 50.0},
		},
	})
	sel := ast.Select{
		Values: []ast.Projection{
			{Alias: "customer", Value: col("orders", "customer")},
			{Alias: "amount", Value: col("orders", "amount")},
		},
		From:    &ast.DataSource{Table: "orders"},
		OrderBy: []ast.OrderTerm{{Value: col("orders", "customer")}},
	}

	first, err := eng.ExecuteQuery(sel, engine.RepeatableRead)
	if err != nil {
		t.Fatalf("first ExecuteQuery: %v", err)
	}
	second, err := eng.ExecuteQuery(sel, engine.RepeatableRead)
	if err != nil {
		t.Fatalf("second ExecuteQuery: %v", err)
	}
	if len(first.Result.Rows) != len(second.Result.Rows) {
		t.Fatalf("row counts differ: %d vs %d", len(first.Result.Rows), len(second.Result.Rows))
	}
	for i := range first.Result.Rows {
		if first.Result.Rows[i]["customer"] != second.Result.Rows[i]["customer"] ||
			first.Result.Rows[i]["amount"] != second.Result.Rows[i]["amount"] {
			t.Fatalf("row %d differs: %v vs %v", i, first.Result.Rows[i], second.Result.Rows[i])
		}
	}
}

// TestNullPropagation exercises spec.md §8 property 4: null op x = null for
// arithmetic, and a null-valued WHERE predicate excludes the row (property
// 5) rather than being treated as true.
func TestNullPropagation(t *testing.T) {
	eng := newEngine(t, ordersSchema, map[string][]map[string]any{
		"orders": {
			{"id": "1", "customer": "Alice", "amount": 100.0},
		},
	})

	sel := ast.Select{
		Values: []ast.Projection{
			{Alias: "doubled", Value: ast.Binary{Left: col("orders", "amount"), Op: "+", Right: lit(nil)}},
		},
		From: &ast.DataSource{Table: "orders"},
	}
	payload, err := eng.ExecuteQuery(sel, engine.RepeatableRead)
	if err != nil {
		t.Fatalf("ExecuteQuery: %v", err)
	}
	if len(payload.Result.Rows) != 1 || payload.Result.Rows[0]["doubled"] != nil {
		t.Fatalf("rows = %v, want one row with doubled=nil", payload.Result.Rows)
	}

	whereNull := ast.Select{
		Values: []ast.Projection{{Alias: "id", Value: col("orders", "id")}},
		From:   &ast.DataSource{Table: "orders"},
		Where:  []ast.Node{cmp(col("orders", "amount"), "=", lit(nil))},
	}
	payload2, err := eng.ExecuteQuery(whereNull, engine.RepeatableRead)
	if err != nil {
		t.Fatalf("ExecuteQuery: %v", err)
	}
	if len(payload2.Result.Rows) != 0 {
		t.Fatalf("rows = %v, want none: a null comparison must exclude the row", payload2.Result.Rows)
	}
}

// TestVersionIntegrityRejectsStaleCommit exercises spec.md §8 property 3:
// if a table changes between execute and commit, the commit is rejected
// and the modified table is named.
func TestVersionIntegrityRejectsStaleCommit(t *testing.T) {
	dir := t.TempDir()
	provider := func(table string) (txstate.Store, error) {
		return store.NewFileStore(dir, table)
	}
	eng, err := engine.New(ordersSchema, provider)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	eng.Now = fixedNow

	seedStore, err := store.NewFileStore(dir, "orders")
	if err != nil {
		t.Fatalf("seed NewFileStore: %v", err)
	}
	if err := seedStore.Load(); err != nil {
		t.Fatalf("seed Load: %v", err)
	}
	if err := seedStore.Save(func(file *record.DataFile) {
		file.Data = append(file.Data, record.NewDataRecord("1", 1, 1, map[string]any{"customer": "Alice", "amount": 100.0}))
	}); err != nil {
		t.Fatalf("seed Save: %v", err)
	}

	upd := ast.Update{
		Table: "orders",
		Set:   []ast.SetItem{{Column: "amount", Value: lit(500.0)}},
		Where: []ast.Node{cmp(col("orders", "id"), "=", lit("1"))},
	}
	payload, err := eng.ExecuteQuery(upd, engine.RepeatableRead)
	if err != nil {
		t.Fatalf("ExecuteQuery: %v", err)
	}
	if !payload.Result.CanCommit {
		t.Fatalf("canCommit = false, errors = %+v", payload.Result.ValidationErrors)
	}

	// Mutate the table out from under the staged payload via a second,
	// independent store handle before committing.
	otherStore, err := store.NewFileStore(dir, "orders")
	if err != nil {
		t.Fatalf("other NewFileStore: %v", err)
	}
	if err := otherStore.Load(); err != nil {
		t.Fatalf("other Load: %v", err)
	}
	if err := otherStore.Save(func(file *record.DataFile) {
		for i, r := range file.Data {
			if r.ID == "1" {
				file.Data[i] = r.Merge(map[string]any{"amount": 999.0}, 2)
			}
		}
	}); err != nil {
		t.Fatalf("other Save: %v", err)
	}

	ok, modified, err := eng.CanCommit(payload)
	if err != nil {
		t.Fatalf("CanCommit: %v", err)
	}
	if ok {
		t.Fatalf("CanCommit = true, want false after a concurrent modification")
	}
	if len(modified) != 1 || modified[0] != "orders" {
		t.Fatalf("modifiedTables = %v, want [orders]", modified)
	}
	if err := eng.Commit(payload); err == nil {
		t.Fatalf("Commit succeeded despite the version mismatch")
	}
}

// TestIdempotentCommitReplayCheck exercises spec.md §8 property 6: calling
// CanCommit twice on an unmodified store both yield true.
func TestIdempotentCommitReplayCheck(t *testing.T) {
	eng := newEngine(t, ordersSchema, map[string][]map[string]any{
		"orders": {{"id": "1", "customer": "Alice", "amount": 100.0}},
	})
	upd := ast.Update{
		Table: "orders",
		Set:   []ast.SetItem{{Column: "amount", Value: lit(150.0)}},
		Where: []ast.Node{cmp(col("orders", "id"), "=", lit("1"))},
	}
	payload, err := eng.ExecuteQuery(upd, engine.RepeatableRead)
	if err != nil {
		t.Fatalf("ExecuteQuery: %v", err)
	}
	ok1, _, err := eng.CanCommit(payload)
	if err != nil {
		t.Fatalf("CanCommit #1: %v", err)
	}
	ok2, _, err := eng.CanCommit(payload)
	if err != nil {
		t.Fatalf("CanCommit #2: %v", err)
	}
	if !ok1 || !ok2 {
		t.Fatalf("CanCommit = %v, %v, want true, true", ok1, ok2)
	}
}

// ---- schema fixtures, one per S1-S8 scenario's table shape ----

func transactionSchema() ([]schema.TypeDefinition, error) {
	return []schema.TypeDefinition{
		{
			Name: "transaction",
			Fields: []schema.Field{
				{Name: "accountid", Type: "string", Required: true},
				{Name: "description", Type: "string"},
			},
		},
	}, nil
}

func ordersSchema() ([]schema.TypeDefinition, error) {
	return []schema.TypeDefinition{
		{
			Name: "orders",
			Fields: []schema.Field{
				{Name: "customer", Type: "string", Required: true},
				{Name: "amount", Type: "number", Required: true},
			},
		},
	}, nil
}

func usersAgeActiveSchema() ([]schema.TypeDefinition, error) {
	return []schema.TypeDefinition{
		{
			Name: "users",
			Fields: []schema.Field{
				{Name: "name", Type: "string", Required: true},
				{Name: "age", Type: "number", Required: true},
				{Name: "active", Type: "boolean", Required: true},
			},
		},
	}, nil
}

func employeesSchema() ([]schema.TypeDefinition, error) {
	return []schema.TypeDefinition{
		{
			Name: "employees",
			Fields: []schema.Field{
				{Name: "name", Type: "string", Required: true},
				{Name: "manager_id", Type: "employees"},
			},
		},
	}, nil
}

func usersEmailSchema() ([]schema.TypeDefinition, error) {
	return []schema.TypeDefinition{
		{
			Name: "users",
			Fields: []schema.Field{
				{Name: "email", Type: "string", Required: true},
				{Name: "login_count", Type: "number", Required: true},
			},
		},
	}, nil
}

func usersPostsCascadeSchema() ([]schema.TypeDefinition, error) {
	return []schema.TypeDefinition{
		{
			Name: "users",
			Fields: []schema.Field{
				{Name: "name", Type: "string", Required: true},
			},
		},
		{
			Name: "posts",
			Fields: []schema.Field{
				{Name: "title", Type: "string", Required: true},
				{Name: "author", Type: "users", OnDelete: schema.OnDeleteCascade},
			},
		},
	}, nil
}

func usersPostsRestrictSchema() ([]schema.TypeDefinition, error) {
	return []schema.TypeDefinition{
		{
			Name: "users",
			Fields: []schema.Field{
				{Name: "name", Type: "string", Required: true},
			},
		},
		{
			Name: "posts",
			Fields: []schema.Field{
				{Name: "title", Type: "string", Required: true},
				{Name: "author", Type: "users"},
			},
		},
	}, nil
}
