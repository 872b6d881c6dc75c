// Package schema defines the type-definition side of the data model:
// TypeDefinition, Field, and the onDelete cascade policy (spec.md §3). It is
// deliberately separate from pkg/value and pkg/record so every other
// package can depend on it without a cycle.
package schema

import "strings"

// OnDelete enumerates what happens to referencing rows when the row a
// foreign key points at is deleted.
type OnDelete string

const (
	OnDeleteRestrict OnDelete = "restrict"
	OnDeleteCascade  OnDelete = "cascade"
	OnDeleteSetNull  OnDelete = "setNull"
)

// Field is one column of a TypeDefinition. Type is either a primitive tag
// (string|number|boolean|date) or the name of another TypeDefinition, which
// makes the field a foreign key.
type Field struct {
	Name        string
	Type        string
	Required    bool
	EnumOptions []string
	OnDelete    OnDelete // only meaningful when Type names another TypeDefinition
}

// IsForeignKey reports whether this field's Type names another table rather
// than a primitive.
func (f *Field) IsForeignKey() bool {
	switch f.Type {
	case "string", "number", "boolean", "date":
		return false
	default:
		return true
	}
}

// EffectiveOnDelete defaults an unset OnDelete to restrict, per spec.md §3.
func (f *Field) EffectiveOnDelete() OnDelete {
	if f.OnDelete == "" {
		return OnDeleteRestrict
	}
	return f.OnDelete
}

// TypeDefinition is one user-declared table shape. System columns
// id/created/updated are implicit and never appear in Fields.
type TypeDefinition struct {
	Name   string
	Fields []Field
}

// FieldByName performs the case-insensitive lookup spec.md §3 invariant 5
// requires of every column reference.
func (t *TypeDefinition) FieldByName(name string) (*Field, bool) {
	lname := strings.ToLower(name)
	for i := range t.Fields {
		if strings.ToLower(t.Fields[i].Name) == lname {
			return &t.Fields[i], true
		}
	}
	return nil, false
}

// Source is the schema-source collaborator: "a callable returning
// TypeDefinition[]" per spec.md §6. It is intentionally a plain function
// type so any schema storage (file, database, hardcoded) can satisfy it
// without an adapter type.
type Source func() ([]TypeDefinition, error)

// Registry indexes TypeDefinitions by lowercased name for O(1) lookup
// during planning and validation; it is built once per query from a
// Source.
type Registry struct {
	byName map[string]*TypeDefinition
	order  []string
}

// NewRegistry loads every TypeDefinition the Source returns and indexes it.
func NewRegistry(src Source) (*Registry, error) {
	defs, err := src()
	if err != nil {
		return nil, err
	}
	reg := &Registry{byName: make(map[string]*TypeDefinition, len(defs))}
	for i := range defs {
		d := defs[i]
		key := strings.ToLower(d.Name)
		reg.byName[key] = &d
		reg.order = append(reg.order, key)
	}
	return reg, nil
}

// Get returns the TypeDefinition for a case-insensitive table name.
func (r *Registry) Get(name string) (*TypeDefinition, bool) {
	t, ok := r.byName[strings.ToLower(name)]
	return t, ok
}

// Names returns every registered table name in declaration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// ReferencingFields returns, across every TypeDefinition, the fields whose
// Type names the given table — i.e. the foreign keys the cascade pass in
// pkg/integrity needs to walk on a delete.
func (r *Registry) ReferencingFields(tableName string) []ReferencingField {
	lname := strings.ToLower(tableName)
	var out []ReferencingField
	for _, key := range r.order {
		t := r.byName[key]
		for i := range t.Fields {
			if strings.ToLower(t.Fields[i].Type) == lname {
				out = append(out, ReferencingField{Table: t, Field: &t.Fields[i]})
			}
		}
	}
	return out
}

// ReferencingField pairs a table with the field on it that points at some
// other table.
type ReferencingField struct {
	Table *TypeDefinition
	Field *Field
}
