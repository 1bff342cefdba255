package builtin

import (
	"fmt"
	"image"
	"strings"

	"github.com/zurustar/scenevm/pkg/symbol"
)

// Args is the ordered argument list of one builtin call.
type Args []symbol.Value

// ArgError reports an argument a builtin cannot accept. Index is -1 when
// the problem is the number of arguments.
type ArgError struct {
	Func  string
	Index int
	Want  string
	Got   string
}

func (e *ArgError) Error() string {
	name := e.Func
	if name == "" {
		name = "builtin"
	}
	if e.Index < 0 {
		return fmt.Sprintf("%s: want %s, got %s", name, e.Want, e.Got)
	}
	return fmt.Sprintf("%s: argument %d: want %s, got %s", name, e.Index+1, e.Want, e.Got)
}

func (a Args) arg(i int, want string) (symbol.Value, error) {
	if i < 0 || i >= len(a) {
		return symbol.Value{}, &ArgError{Index: i, Want: want, Got: "nothing"}
	}
	return a[i], nil
}

func describe(v symbol.Value) string {
	return fmt.Sprintf("%s %s", v.Kind, v)
}

// Number returns argument i as a number.
func (a Args) Number(i int) (int64, error) {
	v, err := a.arg(i, "number")
	if err != nil {
		return 0, err
	}
	d := v.Deref()
	if d.Kind != symbol.NumberValue {
		return 0, &ArgError{Index: i, Want: "number", Got: describe(d)}
	}
	return d.Num, nil
}

// String returns argument i as a string.
func (a Args) String(i int) (string, error) {
	v, err := a.arg(i, "string")
	if err != nil {
		return "", err
	}
	d := v.Deref()
	if d.Kind != symbol.StringValue {
		return "", &ArgError{Index: i, Want: "string", Got: describe(d)}
	}
	return d.Str, nil
}

// Rect returns argument i as a rectangle.
func (a Args) Rect(i int) (image.Rectangle, error) {
	v, err := a.arg(i, "rect")
	if err != nil {
		return image.Rectangle{}, err
	}
	d := v.Deref()
	if d.Kind != symbol.RectValue {
		return image.Rectangle{}, &ArgError{Index: i, Want: "rect", Got: describe(d)}
	}
	return d.Rect, nil
}

// Flag returns the flag symbol argument i refers to.
func (a Args) Flag(i int) (*symbol.Symbol, error) {
	v, err := a.arg(i, "flag")
	if err != nil {
		return nil, err
	}
	if v.Kind != symbol.NameValue || v.Sym == nil || v.Sym.Kind != symbol.FlagSymbol {
		return nil, &ArgError{Index: i, Want: "flag", Got: describe(v)}
	}
	return v.Sym, nil
}

// Setting returns argument i as a setting name. Both a string and a
// reference to a setting are accepted.
func (a Args) Setting(i int) (string, error) {
	v, err := a.arg(i, "setting")
	if err != nil {
		return "", err
	}
	if v.Kind == symbol.NameValue && v.Sym != nil && v.Sym.Kind == symbol.SettingSymbol {
		return v.Sym.Name, nil
	}
	d := v.Deref()
	if d.Kind != symbol.StringValue || d.Str == "" {
		return "", &ArgError{Index: i, Want: "setting", Got: describe(d)}
	}
	return d.Str, nil
}

// Describe formats the list the way logs show a call's arguments.
func (a Args) Describe() string {
	parts := make([]string, len(a))
	for i, v := range a {
		parts[i] = v.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
