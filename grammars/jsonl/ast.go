package jsonl

import (
	"strconv"

	"github.com/alecthomas/streamparse/lexer"
)

// Kind of a JSON value.
type Kind int

const (
	NullKind Kind = iota
	BoolKind
	NumberKind
	StringKind
	ArrayKind
	ObjectKind
)

func (k Kind) String() string {
	switch k {
	case NullKind:
		return "null"
	case BoolKind:
		return "bool"
	case NumberKind:
		return "number"
	case StringKind:
		return "string"
	case ArrayKind:
		return "array"
	case ObjectKind:
		return "object"
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Line is one JSON Lines record.
type Line struct {
	Value *Value
	Span  lexer.Span
}

// Value is a JSON value.
type Value struct {
	Kind Kind
	Bool bool
	// Number is the literal text of a number, so no precision is lost.
	Number string
	String string
	Array  []*Value
	Object []*Member
	Span   lexer.Span
}

// Member of an object. Duplicate keys are preserved in source order.
type Member struct {
	Key     string
	KeySpan lexer.Span
	Value   *Value
}

// Float returns the value of a number as a float64.
func (v *Value) Float() (float64, error) {
	return strconv.ParseFloat(v.Number, 64)
}

// Get returns the value of the last member with key, or nil.
func (v *Value) Get(key string) *Value {
	var out *Value
	for _, m := range v.Object {
		if m.Key == key {
			out = m.Value
		}
	}
	return out
}

// Interface converts the value to the types encoding/json decodes into:
// nil, bool, float64, string, []any and map[string]any.
func (v *Value) Interface() any {
	switch v.Kind {
	case BoolKind:
		return v.Bool
	case NumberKind:
		f, _ := v.Float()
		return f
	case StringKind:
		return v.String
	case ArrayKind:
		out := make([]any, len(v.Array))
		for i, e := range v.Array {
			out[i] = e.Interface()
		}
		return out
	case ObjectKind:
		out := make(map[string]any, len(v.Object))
		for _, m := range v.Object {
			out[m.Key] = m.Value.Interface()
		}
		return out
	}
	return nil
}
