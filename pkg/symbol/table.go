package symbol

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/zurustar/scenevm/pkg/logger"
)

// Handle identifies a symbol inside a Table. Handles are stable for the
// lifetime of the table and are what instructions carry as operands.
type Handle int

// NoHandle is the zero reference; it never names a symbol.
const NoHandle Handle = -1

// Kind classifies a symbol.
type Kind int

const (
	// NumberConstant is an anonymous numeric literal.
	NumberConstant Kind = iota
	// StringConstant is an anonymous string literal.
	StringConstant
	// RectConstant is a rectangle, named by a define block or anonymous.
	RectConstant
	// FlagSymbol is a mutable named value declared in a define block.
	FlagSymbol
	// SettingSymbol names a setting so scripts can refer to it.
	SettingSymbol
)

func (k Kind) String() string {
	switch k {
	case NumberConstant:
		return "number"
	case StringConstant:
		return "string"
	case RectConstant:
		return "rect"
	case FlagSymbol:
		return "flag"
	case SettingSymbol:
		return "setting"
	default:
		return "unknown"
	}
}

// ErrUnknownName is returned by Lookup for identifiers that were never defined.
var ErrUnknownName = errors.New("unknown name")

// Symbol is a named or anonymous entity owned by a Table.
type Symbol struct {
	Name   string // empty for anonymous constants
	Kind   Kind
	Value  Value
	Group  string // define block the symbol came from
	Handle Handle
}

// Set stores a new value into a flag symbol.
func (s *Symbol) Set(v Value) error {
	if s.Kind != FlagSymbol {
		return fmt.Errorf("symbol %q is a %s, not a flag", s.Name, s.Kind)
	}
	s.Value = v.Deref()
	return nil
}

// Table owns every symbol referenced by compiled programs.
// It is not safe for concurrent mutation; the host serialises access.
type Table struct {
	symbols []*Symbol
	names   map[string]Handle
	log     *slog.Logger
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{
		names: make(map[string]Handle),
		log:   logger.GetLogger(),
	}
}

// SetLogger replaces the logger redefinitions are reported to.
func (t *Table) SetLogger(log *slog.Logger) {
	t.log = log
}

func (t *Table) alloc(sym *Symbol) Handle {
	sym.Handle = Handle(len(t.symbols))
	t.symbols = append(t.symbols, sym)
	return sym.Handle
}

// InternNumber allocates an anonymous number constant. Every call allocates.
func (t *Table) InternNumber(n int64) Handle {
	return t.alloc(&Symbol{Kind: NumberConstant, Value: Number(n)})
}

// InternString allocates an anonymous string constant. Every call allocates.
func (t *Table) InternString(s string) Handle {
	return t.alloc(&Symbol{Kind: StringConstant, Value: String(s)})
}

// InternRect allocates an anonymous rectangle constant.
func (t *Table) InternRect(x1, y1, x2, y2 int) (Handle, error) {
	v, err := NewRect(x1, y1, x2, y2)
	if err != nil {
		return NoHandle, err
	}
	return t.alloc(&Symbol{Kind: RectConstant, Value: v}), nil
}

// Define registers a named entity. A nil rect declares a flag (initially 0).
// Redefining a name rebinds it to the new symbol; the last definition wins.
func (t *Table) Define(group, name string, rect *Value) Handle {
	sym := &Symbol{Name: name, Group: group}
	if rect != nil {
		sym.Kind = RectConstant
		sym.Value = *rect
	} else {
		sym.Kind = FlagSymbol
		sym.Value = Number(0)
	}
	if h, exists := t.names[name]; exists {
		if prev := t.symbols[h]; prev.Kind == SettingSymbol {
			t.log.Warn("setting name redefined; last definition wins", "name", name, "group", group, "kind", sym.Kind)
		} else {
			t.log.Debug("symbol redefined", "name", name, "group", group)
		}
	}
	h := t.alloc(sym)
	t.names[name] = h
	return h
}

// DefineSetting registers name as a setting reference. A setting that is
// already registered is returned as is; any other symbol of that name is
// rebound.
func (t *Table) DefineSetting(name string) Handle {
	if h, ok := t.names[name]; ok {
		prev := t.symbols[h]
		if prev.Kind == SettingSymbol {
			return h
		}
		t.log.Warn("name redefined as a setting; last definition wins", "name", name, "kind", prev.Kind, "group", prev.Group)
	}
	h := t.alloc(&Symbol{Name: name, Kind: SettingSymbol, Value: String(name)})
	t.names[name] = h
	return h
}

// Lookup resolves an identifier.
func (t *Table) Lookup(name string) (Handle, error) {
	h, ok := t.names[name]
	if !ok {
		return NoHandle, fmt.Errorf("%w: %s", ErrUnknownName, name)
	}
	return h, nil
}

// Symbol returns the symbol for h, or nil when h is out of range.
func (t *Table) Symbol(h Handle) *Symbol {
	if h < 0 || int(h) >= len(t.symbols) {
		return nil
	}
	return t.symbols[h]
}

// Named returns the symbol currently bound to name.
func (t *Table) Named(name string) (*Symbol, bool) {
	h, ok := t.names[name]
	if !ok {
		return nil, false
	}
	return t.symbols[h], true
}

// Len returns the number of allocated symbols.
func (t *Table) Len() int {
	return len(t.symbols)
}

// Flags returns the currently bound flag symbols sorted by name.
func (t *Table) Flags() []*Symbol {
	var flags []*Symbol
	for _, h := range t.names {
		if s := t.symbols[h]; s.Kind == FlagSymbol {
			flags = append(flags, s)
		}
	}
	sort.Slice(flags, func(i, j int) bool { return flags[i].Name < flags[j].Name })
	return flags
}

// Group returns the named symbols currently bound from the given define block.
func (t *Table) Group(group string) []*Symbol {
	var out []*Symbol
	for _, h := range t.names {
		if s := t.symbols[h]; s.Group == group {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ResetFlags sets every flag back to 0.
func (t *Table) ResetFlags() {
	for _, s := range t.Flags() {
		s.Value = Number(0)
	}
}
