package txstate

import (
	"sort"
	"strings"

	"github.com/relionhq/queryengine/pkg/expr"
	"github.com/relionhq/queryengine/pkg/queryerr"
	"github.com/relionhq/queryengine/pkg/record"
	"github.com/relionhq/queryengine/pkg/schema"
)

// Store is spec.md §6's data-manager interface, defined here (the
// consumer) rather than in pkg/store (the implementer) so pkg/store's
// reference implementations satisfy it structurally without importing
// this package.
type Store interface {
	Load() error
	Save(mutate func(*record.DataFile)) error
	GetAll() ([]*record.DataRecord, error)
}

// StoreProvider resolves a table name to its Store collaborator.
type StoreProvider func(table string) (Store, error)

// QueryContext is spec.md §3's per-query scratchpad: the expression
// evaluator's Context (types/aliases/ctes/errors) plus the table-loading
// machinery layered on top of it.
type QueryContext struct {
	*expr.Context

	Provider    StoreProvider
	TableStates map[string]*TableState
}

// NewQueryContext builds an empty QueryContext ready for a single query
// execution.
func NewQueryContext(types *schema.Registry, provider StoreProvider) *QueryContext {
	sink := queryerr.NewSink()
	return &QueryContext{
		Context:     expr.NewContext(types, sink),
		Provider:    provider,
		TableStates: make(map[string]*TableState),
	}
}

// LoadTable returns the TableState for tableName, loading it from the
// store on first reference (spec.md §5's snapshot-at-first-reference
// guarantee) and binding it into Aliases under both its canonical name and
// its TypeDefinition, if one is registered.
func (qc *QueryContext) LoadTable(tableName string) (*TableState, error) {
	name := strings.ToLower(tableName)
	if ts, ok := qc.TableStates[name]; ok {
		return ts, nil
	}
	store, err := qc.Provider(name)
	if err != nil {
		return nil, err
	}
	if err := store.Load(); err != nil {
		return nil, err
	}
	rows, err := store.GetAll()
	if err != nil {
		return nil, err
	}
	ts := Load(name, rows)
	qc.TableStates[name] = ts
	qc.Aliases[name] = ts.Current
	if t, ok := qc.Types.Get(name); ok {
		qc.SourceTypes[name] = t
	}
	return ts, nil
}

// BindSource binds an additional source name (typically an AS alias) to
// the same row set a table or CTE is already bound under.
func (qc *QueryContext) BindSource(alias, canonical string) {
	alias, canonical = strings.ToLower(alias), strings.ToLower(canonical)
	if rows, ok := qc.Aliases[canonical]; ok {
		qc.Aliases[alias] = rows
	}
	if t, ok := qc.SourceTypes[canonical]; ok {
		qc.SourceTypes[alias] = t
	}
}

// Deltas returns one Delta per dirty TableState, in a deterministic
// (table-name-sorted) order so repeated runs against the same staged
// mutations produce byte-identical payloads (spec.md §8 property 1).
func (qc *QueryContext) Deltas() []Delta {
	names := make([]string, 0, len(qc.TableStates))
	for name, ts := range qc.TableStates {
		if ts.Dirty() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	deltas := make([]Delta, 0, len(names))
	for _, name := range names {
		deltas = append(deltas, qc.TableStates[name].ToDelta())
	}
	return deltas
}
