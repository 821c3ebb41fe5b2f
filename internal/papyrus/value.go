package papyrus

import (
	"strings"
)

// ValueKind discriminates the Value union.
type ValueKind int

// Value kinds.
const (
	StringKind ValueKind = iota
	NumberKind
	BoolKind
	WildcardKind
	IdentKind
	ArrayKind
	MapKind
	ObjectKind
	CallKind
	ConcatKind
	TupleKind
)

var kindNames = map[ValueKind]string{
	StringKind:   "string",
	NumberKind:   "number",
	BoolKind:     "bool",
	WildcardKind: "_",
	IdentKind:    "identifier",
	ArrayKind:    "array",
	MapKind:      "map",
	ObjectKind:   "object",
	CallKind:     "call",
	ConcatKind:   "concat",
	TupleKind:    "tuple",
}

func (k ValueKind) String() string { return kindNames[k] }

// Value is the Papyrus value tree. It is a tagged union: Kind selects which
// payload fields are meaningful. Maps and objects keep declaration order
// because select entries match in order and concatenation is positional.
type Value struct {
	Kind ValueKind

	Str  string  // StringKind text, IdentKind name, ObjectKind type name, CallKind function name
	Num  float64 // NumberKind
	Bool bool    // BoolKind

	Elems   []*Value   // ArrayKind, TupleKind elements; CallKind positional args
	Entries []MapEntry // MapKind
	Fields  []Field    // ObjectKind fields; CallKind named args

	Left  *Value // ConcatKind
	Right *Value // ConcatKind

	Pos Pos
}

// Field is one named entry of an object or call.
type Field struct {
	Name  string
	Value *Value
}

// MapEntry is one key/value pair of a map literal.
type MapEntry struct {
	Key   MapKey
	Value *Value
}

// MapKey is a tuple of identifier terms, or the default sentinel.
type MapKey struct {
	Default bool
	Terms   []KeyTerm
	Pos     Pos
}

// KeyTerm is one position of a map key tuple: a wildcard or a disjunction
// of identifiers.
type KeyTerm struct {
	Any  bool
	Alts []string
}

// String renders the key in source form; used for collision detection and
// diagnostics.
func (k MapKey) String() string {
	if k.Default {
		return "default"
	}
	parts := make([]string, len(k.Terms))
	for i, t := range k.Terms {
		if t.Any {
			parts[i] = "_"
		} else {
			parts[i] = strings.Join(t.Alts, " | ")
		}
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// NewString returns a string value.
func NewString(s string) *Value { return &Value{Kind: StringKind, Str: s} }

// NewNumber returns a number value.
func NewNumber(n float64) *Value { return &Value{Kind: NumberKind, Num: n} }

// NewBool returns one of the boolean constants.
func NewBool(b bool) *Value { return &Value{Kind: BoolKind, Bool: b} }

// NewArray returns an array value over elems.
func NewArray(elems ...*Value) *Value { return &Value{Kind: ArrayKind, Elems: elems} }

// Field returns the named field of an object, or nil.
func (v *Value) Field(name string) *Value {
	if v == nil || v.Kind != ObjectKind {
		return nil
	}
	for _, f := range v.Fields {
		if f.Name == name {
			return f.Value
		}
	}
	return nil
}

// Strings converts an array of strings into a Go slice. It returns false
// if the value is not an array or any element is not a string.
func (v *Value) Strings() ([]string, bool) {
	if v == nil || v.Kind != ArrayKind {
		return nil, false
	}
	out := make([]string, 0, len(v.Elems))
	for _, e := range v.Elems {
		if e.Kind != StringKind {
			return nil, false
		}
		out = append(out, e.Str)
	}
	return out, true
}

// Equal reports deep structural equality, ignoring positions.
func Equal(a, b *Value) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case StringKind, IdentKind:
		return a.Str == b.Str
	case NumberKind:
		return a.Num == b.Num
	case BoolKind:
		return a.Bool == b.Bool
	case WildcardKind:
		return true
	case ArrayKind, TupleKind:
		return equalElems(a.Elems, b.Elems)
	case MapKind:
		if len(a.Entries) != len(b.Entries) {
			return false
		}
		for i := range a.Entries {
			if a.Entries[i].Key.String() != b.Entries[i].Key.String() {
				return false
			}
			if !Equal(a.Entries[i].Value, b.Entries[i].Value) {
				return false
			}
		}
		return true
	case ObjectKind, CallKind:
		if a.Str != b.Str || len(a.Fields) != len(b.Fields) {
			return false
		}
		if !equalElems(a.Elems, b.Elems) {
			return false
		}
		for i := range a.Fields {
			if a.Fields[i].Name != b.Fields[i].Name || !Equal(a.Fields[i].Value, b.Fields[i].Value) {
				return false
			}
		}
		return true
	case ConcatKind:
		return Equal(a.Left, b.Left) && Equal(a.Right, b.Right)
	}
	return false
}

func equalElems(a, b []*Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}
