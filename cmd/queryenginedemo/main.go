// Command queryenginedemo runs a handful of statements against a
// file-backed Engine, mirroring the teacher's own examples/*/main.go style:
// a single main(), status lines via fmt.Printf, cleanup of the working
// directory on exit.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/relionhq/queryengine/pkg/ast"
	"github.com/relionhq/queryengine/pkg/engine"
	"github.com/relionhq/queryengine/pkg/schema"
	"github.com/relionhq/queryengine/pkg/store"
	"github.com/relionhq/queryengine/pkg/txstate"
)

const dataDir = "queryenginedemo_data"

func main() {
	cleanup()
	defer cleanup()

	eng, err := engine.New(demoSchema, storeProvider())
	if err != nil {
		log.Fatalf("building engine: %v", err)
	}

	fmt.Println("=== INSERT ===")
	insertPayload, err := eng.ExecuteQuery(insertAccounts(), engine.RepeatableRead)
	if err != nil {
		log.Fatalf("insert: %v", err)
	}
	printResult("insert", insertPayload)
	if err := eng.Commit(insertPayload); err != nil {
		log.Fatalf("committing insert: %v", err)
	}

	fmt.Println("\n=== SELECT ===")
	selectPayload, err := eng.ExecuteQuery(selectAccounts(), engine.RepeatableRead)
	if err != nil {
		log.Fatalf("select: %v", err)
	}
	printResult("select", selectPayload)

	fmt.Println("\n=== UPDATE ===")
	updatePayload, err := eng.ExecuteQuery(updateBalance(), engine.RepeatableRead)
	if err != nil {
		log.Fatalf("update: %v", err)
	}
	printResult("update", updatePayload)
	if err := eng.Commit(updatePayload); err != nil {
		log.Fatalf("committing update: %v", err)
	}

	fmt.Println("\n=== Final state ===")
	finalPayload, err := eng.ExecuteQuery(selectAccounts(), engine.RepeatableRead)
	if err != nil {
		log.Fatalf("final select: %v", err)
	}
	for _, row := range finalPayload.Result.Rows {
		fmt.Printf("  %v\n", row)
	}
}

func storeProvider() txstate.StoreProvider {
	return func(table string) (txstate.Store, error) {
		return store.NewFileStore(dataDir, table)
	}
}

func demoSchema() ([]schema.TypeDefinition, error) {
	return []schema.TypeDefinition{
		{
			Name: "accounts",
			Fields: []schema.Field{
				{Name: "owner", Type: "string", Required: true},
				{Name: "balance", Type: "number", Required: true},
				{Name: "status", Type: "string", Required: true, EnumOptions: []string{"active", "frozen"}},
			},
		},
	}, nil
}

func insertAccounts() ast.Statement {
	return ast.Insert{
		Table:   "accounts",
		Columns: []string{"owner", "balance", "status"},
		Values: []ast.Node{
			ast.Constant{Raw: "ada"},
			ast.Constant{Raw: 1000.0},
			ast.Constant{Raw: "active"},
		},
		Returning: []ast.Projection{
			{Alias: "id", Value: ast.Column{Source: "accounts", Column: "id"}},
			{Alias: "owner", Value: ast.Column{Source: "accounts", Column: "owner"}},
		},
	}
}

func selectAccounts() ast.Statement {
	return ast.Select{
		Values: []ast.Projection{
			{Alias: "id", Value: ast.Column{Source: "accounts", Column: "id"}},
			{Alias: "owner", Value: ast.Column{Source: "accounts", Column: "owner"}},
			{Alias: "balance", Value: ast.Column{Source: "accounts", Column: "balance"}},
			{Alias: "status", Value: ast.Column{Source: "accounts", Column: "status"}},
		},
		From: &ast.DataSource{Table: "accounts"},
		OrderBy: []ast.OrderTerm{
			{Value: ast.Column{Source: "accounts", Column: "owner"}},
		},
	}
}

func updateBalance() ast.Statement {
	return ast.Update{
		Table: "accounts",
		Set: []ast.SetItem{
			{Column: "balance", Value: ast.Binary{
				Left:  ast.Column{Source: "accounts", Column: "balance"},
				Op:    "+",
				Right: ast.Constant{Raw: 250.0},
			}},
		},
		Where: []ast.Node{
			ast.Comparison{
				Left:  ast.Column{Source: "accounts", Column: "owner"},
				Cmp:   "=",
				Right: ast.Constant{Raw: "ada"},
			},
		},
		Returning: []ast.Projection{
			{Alias: "owner", Value: ast.Column{Source: "accounts", Column: "owner"}},
			{Alias: "balance", Value: ast.Column{Source: "accounts", Column: "balance"}},
		},
	}
}

func printResult(label string, payload *engine.QueryExecutionPayload) {
	fmt.Printf("%s: affected=%d canCommit=%v\n", label, payload.Result.AffectedCount, payload.Result.CanCommit)
	for _, row := range payload.Result.Rows {
		fmt.Printf("  %v\n", row)
	}
	for _, ve := range payload.Result.ValidationErrors {
		fmt.Printf("  validation error: %s\n", ve.Error())
	}
}

func cleanup() {
	os.RemoveAll(dataDir)
}
