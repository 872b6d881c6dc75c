// Package value implements the dynamically-typed scalar wrapper the query
// engine evaluates expressions into. A Value is deliberately small: a raw
// scalar (or nil) plus optional schema hints used for assignability and
// type-classification checks. All three-valued (null-propagating) logic in
// the engine is centralized here, mirroring how the teacher's
// pkg/storekey.Comparable centralizes ordering for index keys.
package value

import (
	"fmt"
	"strconv"
	"time"
)

// Kind classifies a Value's runtime type.
type Kind int

const (
	KindNull Kind = iota
	KindNumber
	KindString
	KindBoolean
	KindDate
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindBoolean:
		return "boolean"
	case KindDate:
		return "date"
	default:
		return "unknown"
	}
}

// FieldHint is the minimal schema-field shape Value needs to classify and
// validate a scalar without importing pkg/schema (which itself depends on
// nothing from this package, avoiding an import cycle).
type FieldHint struct {
	Name        string
	Type        string // "string"|"number"|"boolean"|"date" or another TypeDefinition's name
	Required    bool
	EnumOptions []string
}

// Value wraps a raw scalar plus the schema context it was produced under.
type Value struct {
	Raw   any
	Field *FieldHint
}

// Of wraps a bare scalar with no schema hint.
func Of(raw any) Value { return Value{Raw: raw} }

// Null is the canonical null Value.
var Null = Value{Raw: nil}

// WithField attaches a field hint, used right before an assignability check.
func (v Value) WithField(f *FieldHint) Value {
	v.Field = f
	return v
}

// IsNull reports whether the value carries no data.
func (v Value) IsNull() bool { return v.Raw == nil }

// GetType classifies the value the way spec.md §4.A describes: null if
// absent, the ISO-8601 "date" tag if the raw value is a date-shaped string
// AND the hinting field says it's a date column, else the JS-like primitive
// classification of the underlying Go type.
func (v Value) GetType() Kind {
	if v.Raw == nil {
		return KindNull
	}
	if v.Field != nil && v.Field.Type == "date" {
		if s, ok := v.Raw.(string); ok {
			if _, err := time.Parse(time.RFC3339, s); err == nil {
				return KindDate
			}
			if _, err := time.Parse("2006-01-02", s); err == nil {
				return KindDate
			}
		}
	}
	switch v.Raw.(type) {
	case float64, float32, int, int32, int64:
		return KindNumber
	case string:
		return KindString
	case bool:
		return KindBoolean
	default:
		return KindUnknown
	}
}

// asFloat coerces a numeric-kind raw value to float64. Ok is false for
// non-numeric raws.
func (v Value) asFloat() (float64, bool) {
	switch n := v.Raw.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// String renders the value's textual representation, used for lexicographic
// fallback comparison and string concatenation.
func (v Value) String() string {
	if v.Raw == nil {
		return ""
	}
	switch r := v.Raw.(type) {
	case string:
		return r
	case bool:
		return strconv.FormatBool(r)
	case float64:
		return strconv.FormatFloat(r, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", r)
	}
}

// CompareTo implements the total order from spec.md §4.A: both null -> 0,
// null sorts below non-null, numeric values compare numerically, everything
// else compares as the textual representation.
func (v Value) CompareTo(other Value) int {
	if v.IsNull() && other.IsNull() {
		return 0
	}
	if v.IsNull() {
		return -1
	}
	if other.IsNull() {
		return 1
	}
	if af, aok := v.asFloat(); aok {
		if bf, bok := other.asFloat(); bok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}
	as, bs := v.String(), other.String()
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}

// Equal is CompareTo(other) == 0, with the one exception three-valued SQL
// semantics add at the expression layer (literal null = literal null), which
// the evaluator — not Value — is responsible for special-casing per
// spec.md §8 property 5.
func (v Value) Equal(other Value) bool { return v.CompareTo(other) == 0 }

// ComparisonOp is the small set of binary comparison operators Value knows
// how to validate operand types for.
type ComparisonOp string

const (
	OpEq       ComparisonOp = "="
	OpLt       ComparisonOp = "<"
	OpGt       ComparisonOp = ">"
	OpLe       ComparisonOp = "<="
	OpGe       ComparisonOp = ">="
	OpNe       ComparisonOp = "<>"
	OpLike     ComparisonOp = "like"
	OpNotLike  ComparisonOp = "notLike"
)

// IsComparableWith implements spec.md §4.A: null is always comparable (the
// caller decides what null-propagation means), like/notLike demand strings
// on both sides, everything else demands the same Kind.
func (v Value) IsComparableWith(other Value, op ComparisonOp) bool {
	if v.IsNull() || other.IsNull() {
		return true
	}
	if op == OpLike || op == OpNotLike {
		return v.GetType() == KindString && other.GetType() == KindString
	}
	return v.GetType() == other.GetType()
}

// AssignabilityError mirrors spec.md's ValidationError shape for the one
// check Value itself performs; callers embed it into the richer
// pkg/queryerr.ValidationError via its ExpectedType/ActualType
// fields.
type AssignabilityError struct {
	Message      string
	ExpectedType string
	ActualType   string
}

func (e *AssignabilityError) Error() string { return e.Message }

// IsAssignableTo implements spec.md §4.A's isAssignableTo: required-null
// check, enum membership, foreign-key string-id check, else primitive-type
// equality.
func (v Value) IsAssignableTo(field *FieldHint) *AssignabilityError {
	if field == nil {
		return nil
	}
	if v.IsNull() {
		if field.Required {
			return &AssignabilityError{
				Message:      fmt.Sprintf("field %q is required", field.Name),
				ExpectedType: field.Type,
				ActualType:   "null",
			}
		}
		return nil
	}
	if len(field.EnumOptions) > 0 {
		s := v.String()
		for _, opt := range field.EnumOptions {
			if opt == s {
				return nil
			}
		}
		return &AssignabilityError{
			Message:      fmt.Sprintf("value %q is not a valid option for field %q", s, field.Name),
			ExpectedType: "enum(" + field.Type + ")",
			ActualType:   v.GetType().String(),
		}
	}
	if !isPrimitiveType(field.Type) {
		// Foreign key: must be a string id.
		if _, ok := v.Raw.(string); !ok {
			return &AssignabilityError{
				Message:      fmt.Sprintf("field %q must be a string id referencing %q", field.Name, field.Type),
				ExpectedType: "string",
				ActualType:   v.GetType().String(),
			}
		}
		return nil
	}
	withHint := v.WithField(field)
	got := withHint.GetType()
	if got.String() != field.Type {
		return &AssignabilityError{
			Message:      fmt.Sprintf("field %q expects type %q, got %q", field.Name, field.Type, got.String()),
			ExpectedType: field.Type,
			ActualType:   got.String(),
		}
	}
	return nil
}

func isPrimitiveType(t string) bool {
	switch t {
	case "string", "number", "boolean", "date":
		return true
	default:
		return false
	}
}
