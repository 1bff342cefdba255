// Package symbol implements the constant pool and symbol table shared by the
// compiler and the virtual machine, together with the tagged Value type that
// both compile-time constants and runtime stack cells use.
package symbol

import (
	"errors"
	"fmt"
	"image"
	"strconv"
)

// ValueKind tags the variant held by a Value.
type ValueKind int

const (
	// NumberValue holds an integer in Num.
	NumberValue ValueKind = iota
	// StringValue holds a string in Str.
	StringValue
	// RectValue holds an axis-aligned rectangle in Rect.
	RectValue
	// NameValue holds a reference to a named symbol in Sym.
	NameValue
)

func (k ValueKind) String() string {
	switch k {
	case NumberValue:
		return "number"
	case StringValue:
		return "string"
	case RectValue:
		return "rect"
	case NameValue:
		return "name"
	default:
		return "unknown"
	}
}

// ErrInvalidRect is returned when a rectangle does not satisfy x1<x2 and y1<y2.
var ErrInvalidRect = errors.New("invalid rectangle")

// Value is a tagged union. Only the field selected by Kind is meaningful.
type Value struct {
	Kind ValueKind
	Num  int64
	Str  string
	Rect image.Rectangle
	Sym  *Symbol
}

// Number returns a number value.
func Number(n int64) Value { return Value{Kind: NumberValue, Num: n} }

// String returns a string value.
func String(s string) Value { return Value{Kind: StringValue, Str: s} }

// Name returns a reference to sym.
func Name(sym *Symbol) Value { return Value{Kind: NameValue, Sym: sym} }

// Bool folds a Go boolean into the numeric 0/1 encoding scripts use.
func Bool(b bool) Value {
	if b {
		return Number(1)
	}
	return Number(0)
}

// NewRect builds a rectangle value from its corners.
func NewRect(x1, y1, x2, y2 int) (Value, error) {
	if x1 >= x2 || y1 >= y2 {
		return Value{}, fmt.Errorf("%w: (%d, %d, %d, %d)", ErrInvalidRect, x1, y1, x2, y2)
	}
	return Value{Kind: RectValue, Rect: image.Rect(x1, y1, x2, y2)}, nil
}

// Deref resolves a name reference to the value its symbol currently holds.
// Flags resolve to their number and settings to their name as a string.
// Non-reference values are returned unchanged.
func (v Value) Deref() Value {
	if v.Kind != NameValue || v.Sym == nil {
		return v
	}
	switch v.Sym.Kind {
	case SettingSymbol:
		return String(v.Sym.Name)
	default:
		return v.Sym.Value
	}
}

// Truthy reports whether the value counts as true in a condition.
func (v Value) Truthy() bool {
	d := v.Deref()
	switch d.Kind {
	case NumberValue:
		return d.Num != 0
	case StringValue:
		return d.Str != ""
	case RectValue:
		return !d.Rect.Empty()
	default:
		return false
	}
}

// Equal compares two values of the same kind after dereferencing.
// ok is false when the kinds differ.
func (v Value) Equal(o Value) (equal, ok bool) {
	a, b := v.Deref(), o.Deref()
	if a.Kind != b.Kind {
		return false, false
	}
	switch a.Kind {
	case NumberValue:
		return a.Num == b.Num, true
	case StringValue:
		return a.Str == b.Str, true
	case RectValue:
		return a.Rect == b.Rect, true
	case NameValue:
		return a.Sym == b.Sym, true
	}
	return false, false
}

// String formats the value the way the disassembler and logs show it.
func (v Value) String() string {
	switch v.Kind {
	case NumberValue:
		return strconv.FormatInt(v.Num, 10)
	case StringValue:
		return strconv.Quote(v.Str)
	case RectValue:
		r := v.Rect
		return fmt.Sprintf("rect(%d, %d, %d, %d)", r.Min.X, r.Min.Y, r.Max.X, r.Max.Y)
	case NameValue:
		if v.Sym == nil {
			return "<nil>"
		}
		return v.Sym.Name
	}
	return "?"
}
