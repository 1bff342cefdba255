package parser

import (
	"reflect"
	"strings"
	"testing"

	"github.com/zurustar/scenevm/pkg/compiler/lexer"
	"github.com/zurustar/scenevm/pkg/opcode"
	"github.com/zurustar/scenevm/pkg/symbol"
)

func compile(t *testing.T, src string, opts ...Option) (*opcode.Image, []*ParserError) {
	t.Helper()
	toks, _ := lexer.Tokenize(src)
	img := opcode.NewImage(symbol.NewTable())
	p := New(toks, img, opts...)
	p.Prescan()
	return img, p.Parse()
}

func mustCompile(t *testing.T, src string, opts ...Option) *opcode.Image {
	t.Helper()
	img, errs := compile(t, src, opts...)
	for _, err := range errs {
		t.Errorf("unexpected error: %v", err)
	}
	if len(errs) > 0 {
		t.FailNow()
	}
	return img
}

func setting(t *testing.T, img *opcode.Image, name string) *opcode.Program {
	t.Helper()
	prog, ok := img.Setting(name)
	if !ok {
		t.Fatalf("setting %s not compiled", name)
	}
	return prog
}

func opsOf(prog *opcode.Program) []opcode.Opcode {
	out := make([]opcode.Opcode, len(prog.Instructions))
	for i, ins := range prog.Instructions {
		out[i] = ins.Op
	}
	return out
}

// pushed returns the constant value referenced by a push instruction.
func pushed(t *testing.T, img *opcode.Image, ins opcode.Instruction) symbol.Value {
	t.Helper()
	if len(ins.Operands) != 1 {
		t.Fatalf("%s has no symbol operand", ins.Op)
	}
	sym := img.Table.Symbol(symbol.Handle(ins.Operands[0]))
	if sym == nil {
		t.Fatalf("%s references unknown handle %d", ins.Op, ins.Operands[0])
	}
	return sym.Value
}

func TestCallEmission(t *testing.T) {
	img := mustCompile(t, `setting S { f(1, "a"); }`)
	prog := setting(t, img, "S")

	want := []opcode.Opcode{
		opcode.ConstPush, opcode.StrPush,
		opcode.ConstPush, opcode.StrPush, opcode.FuncPush, opcode.Pop,
		opcode.Stop,
	}
	if got := opsOf(prog); !reflect.DeepEqual(got, want) {
		t.Fatalf("ops = %v, want %v", got, want)
	}
	if v := pushed(t, img, prog.Instructions[0]); v.Num != 1 {
		t.Errorf("first arg = %v", v)
	}
	if v := pushed(t, img, prog.Instructions[1]); v.Str != "a" {
		t.Errorf("second arg = %v", v)
	}
	if v := pushed(t, img, prog.Instructions[2]); v.Num != 2 {
		t.Errorf("argc = %v, want 2", v)
	}
	if v := pushed(t, img, prog.Instructions[3]); v.Str != "f" {
		t.Errorf("callee = %v, want f", v)
	}
}

func TestNestedCallsEmitInnerFirst(t *testing.T) {
	img := mustCompile(t, `setting S { f(1, 2, g(3)); }`)
	prog := setting(t, img, "S")

	var callees []string
	var argcs []int64
	for i, ins := range prog.Instructions {
		if ins.Op != opcode.FuncPush {
			continue
		}
		callees = append(callees, pushed(t, img, prog.Instructions[i-1]).Str)
		argcs = append(argcs, pushed(t, img, prog.Instructions[i-2]).Num)
	}
	if !reflect.DeepEqual(callees, []string{"g", "f"}) {
		t.Errorf("callees = %v, want [g f]", callees)
	}
	if !reflect.DeepEqual(argcs, []int64{1, 3}) {
		t.Errorf("argcs = %v, want [1 3]", argcs)
	}
}

func TestGotoDesugaring(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"statement with name", `setting S { goto X; } setting X { }`},
		{"statement with string", `setting S { goto "X"; }`},
		{"call form", `setting S { goto(X); } setting X { }`},
		{"upper case keyword", `setting S { GOTO X; } setting X { }`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := mustCompile(t, tt.src)
			prog := setting(t, img, "S")
			want := []opcode.Opcode{opcode.StrPush, opcode.ConstPush, opcode.StrPush, opcode.FuncPush, opcode.Pop, opcode.Stop}
			if got := opsOf(prog); !reflect.DeepEqual(got, want) {
				t.Fatalf("ops = %v, want %v", got, want)
			}
			if v := pushed(t, img, prog.Instructions[0]); v.Kind != symbol.StringValue || v.Str != "X" {
				t.Errorf("target = %v, want \"X\"", v)
			}
			if v := pushed(t, img, prog.Instructions[1]); v.Num != 1 {
				t.Errorf("argc = %v, want 1", v)
			}
			if v := pushed(t, img, prog.Instructions[2]); v.Str != GotoFunction {
				t.Errorf("callee = %v, want goto", v)
			}
		})
	}
}

func TestBooleanLiteralFolding(t *testing.T) {
	img := mustCompile(t, `setting S { f(true, false, null); }`)
	prog := setting(t, img, "S")

	want := []int64{1, 0, 0}
	for i, w := range want {
		ins := prog.Instructions[i]
		if ins.Op != opcode.ConstPush {
			t.Fatalf("instruction %d = %s, want ConstPush", i, ins.Op)
		}
		if v := pushed(t, img, ins); v.Kind != symbol.NumberValue || v.Num != w {
			t.Errorf("literal %d = %v, want %d", i, v, w)
		}
	}
}

func TestIfElseLayout(t *testing.T) {
	img := mustCompile(t, `
define flags { flagA }
setting S { if (flagA) { take(1,2); } else { leave(3); } }`)
	prog := setting(t, img, "S")

	want := []opcode.Opcode{
		opcode.IfCode,
		opcode.VarPush, opcode.Eval, opcode.Stop,
		opcode.ConstPush, opcode.ConstPush, opcode.ConstPush, opcode.StrPush, opcode.FuncPush, opcode.Pop, opcode.Stop,
		opcode.ConstPush, opcode.ConstPush, opcode.StrPush, opcode.FuncPush, opcode.Pop, opcode.Stop,
		opcode.Stop,
	}
	if got := opsOf(prog); !reflect.DeepEqual(got, want) {
		t.Fatalf("ops = %v, want %v", got, want)
	}
	if got := prog.Instructions[0].Operands; !reflect.DeepEqual(got, []int{4, 11, 17}) {
		t.Errorf("IfCode targets = %v, want [4 11 17]", got)
	}
}

func TestIfWithoutElse(t *testing.T) {
	img := mustCompile(t, `setting S { if (1 == 1) f(); g(); }`)
	prog := setting(t, img, "S")

	ifc := prog.Instructions[0]
	if ifc.Op != opcode.IfCode {
		t.Fatalf("first instruction = %s", ifc.Op)
	}
	then, els, next := ifc.Operands[0], ifc.Operands[1], ifc.Operands[2]
	if els != opcode.NoTarget {
		t.Errorf("else target = %d, want NoTarget", els)
	}
	if prog.Instructions[then-1].Op != opcode.Stop {
		t.Errorf("condition does not end with Stop before then target %d", then)
	}
	if prog.Instructions[next-1].Op != opcode.Stop {
		t.Errorf("then body does not end with Stop before next target %d", next)
	}
	// g() follows the construct.
	if v := pushed(t, img, prog.Instructions[next+1]); v.Str != "g" {
		t.Errorf("instruction after join = %v, want callee g", v)
	}
}

func TestNestedIfTargetsArePatched(t *testing.T) {
	img := mustCompile(t, `setting S {
		if (a() == 1) {
			if (b()) c(); else { d(); }
			e();
		}
	}`)
	prog := setting(t, img, "S")
	n := prog.Len()
	count := 0
	for pc, ins := range prog.Instructions {
		if ins.Op != opcode.IfCode {
			continue
		}
		count++
		then, next := ins.Operands[0], ins.Operands[2]
		if then <= pc || then >= n || next <= then || next > n {
			t.Errorf("IfCode at %d has targets %v", pc, ins.Operands)
		}
	}
	if count != 2 {
		t.Errorf("found %d IfCode instructions, want 2", count)
	}
}

func TestExpressionEmission(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want []opcode.Opcode
	}{
		{"add binds tighter than compare", "1 + 2 == 3",
			[]opcode.Opcode{opcode.ConstPush, opcode.ConstPush, opcode.Add, opcode.ConstPush, opcode.Eq}},
		{"left associative compare", "1 < 2 != 0",
			[]opcode.Opcode{opcode.ConstPush, opcode.ConstPush, opcode.Lt, opcode.ConstPush, opcode.Ne}},
		{"trailing plus is a no-op", "1 +",
			[]opcode.Opcode{opcode.ConstPush}},
		{"negate", "!x",
			[]opcode.Opcode{opcode.VarPush, opcode.Eval, opcode.Negate}},
		{"double negate", "!!x",
			[]opcode.Opcode{opcode.VarPush, opcode.Eval, opcode.Negate, opcode.Negate}},
		{"random", "random(30%)",
			[]opcode.Opcode{opcode.ConstPush, opcode.RandBool}},
		{"parentheses", "(1 + 2) >= 3",
			[]opcode.Opcode{opcode.ConstPush, opcode.ConstPush, opcode.Add, opcode.ConstPush, opcode.Ge}},
		{"string concatenation", `"a" + "b" <= "c"`,
			[]opcode.Opcode{opcode.StrPush, opcode.StrPush, opcode.Add, opcode.StrPush, opcode.Le}},
		{"greater than", "x > -1",
			[]opcode.Opcode{opcode.VarPush, opcode.Eval, opcode.ConstPush, opcode.Gt}},
		{"rect argument", "rect(0, 0, 10, 10)",
			[]opcode.Opcode{opcode.ConstPush}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := mustCompile(t, "define d { x } setting S { f("+tt.expr+"); }")
			prog := setting(t, img, "S")
			ops := opsOf(prog)
			// Strip the ConstPush/StrPush/FuncPush/Pop/Stop tail of the call.
			got := ops[:len(ops)-5]
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ops = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRectArgumentValue(t *testing.T) {
	img := mustCompile(t, `setting S { Exit(S, 1, rect(0, 5, 10, 20)); rect(1, 1, 2, 2); }`)
	prog := setting(t, img, "S")

	var rects []symbol.Value
	for _, ins := range prog.Instructions {
		if ins.Op == opcode.ConstPush {
			if v := pushed(t, img, ins); v.Kind == symbol.RectValue {
				rects = append(rects, v)
			}
		}
	}
	if len(rects) != 1 {
		t.Fatalf("got %d rect constants, want 1 (bare rect statements emit nothing)", len(rects))
	}
	r := rects[0].Rect
	if r.Min.X != 0 || r.Min.Y != 5 || r.Max.X != 10 || r.Max.Y != 20 {
		t.Errorf("rect = %v", r)
	}
}

func TestSettingReferencesResolveInAnyOrder(t *testing.T) {
	img := mustCompile(t, `setting A { f(B); } setting B { f(A); }`)
	prog := setting(t, img, "A")
	ins := prog.Instructions[0]
	if ins.Op != opcode.VarPush {
		t.Fatalf("first instruction = %s, want VarPush", ins.Op)
	}
	sym := img.Table.Symbol(symbol.Handle(ins.Operands[0]))
	if sym.Kind != symbol.SettingSymbol || sym.Name != "B" {
		t.Errorf("referenced symbol = %+v", sym)
	}
	if !reflect.DeepEqual(img.Order, []string{"A", "B"}) {
		t.Errorf("Order = %v", img.Order)
	}
}

func TestDefineBlocks(t *testing.T) {
	img := mustCompile(t, `
define room {
	door, rect(10, 10, 50, 80),
	lampOn,
	window, RECT(100, 0, 120, 40)
}
debug { door, lampOn }`)

	door, ok := img.Table.Named("door")
	if !ok || door.Kind != symbol.RectConstant || door.Group != "room" {
		t.Fatalf("door = %+v", door)
	}
	lamp, ok := img.Table.Named("lampOn")
	if !ok || lamp.Kind != symbol.FlagSymbol || lamp.Value.Truthy() {
		t.Errorf("lampOn = %+v", lamp)
	}
	if got := len(img.Table.Group("room")); got != 3 {
		t.Errorf("group room has %d symbols, want 3", got)
	}
	if !reflect.DeepEqual(img.Debug, []string{"door", "lampOn"}) {
		t.Errorf("Debug = %v", img.Debug)
	}
}

func TestDefineBlockIsTransactional(t *testing.T) {
	img, errs := compile(t, `define bad { a, b, rect(5, 5, 1, 1), c }`)
	if len(errs) != 1 || errs[0].Kind != SemanticError {
		t.Fatalf("errors = %v, want one semantic error", errs)
	}
	for _, name := range []string{"a", "b", "c"} {
		if _, ok := img.Table.Named(name); ok {
			t.Errorf("%s installed from a failed define block", name)
		}
	}
}

func TestDuplicateSettingLastWins(t *testing.T) {
	img := mustCompile(t, `setting S { first(); } setting S { second(); }`)
	prog := setting(t, img, "S")
	if v := pushed(t, img, prog.Instructions[1]); v.Str != "second" {
		t.Errorf("callee = %v, want second", v)
	}
	if len(img.Order) != 1 {
		t.Errorf("Order = %v", img.Order)
	}
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name       string
		src        string
		kind       ErrorKind
		message    string
		line       int
		compiled   []string
		notCompile []string
	}{
		{
			name:       "unknown identifier",
			src:        "setting A { f(nowhere); }\nsetting B { g(); }",
			kind:       SemanticError,
			message:    `unknown identifier "nowhere"`,
			line:       1,
			compiled:   []string{"B"},
			notCompile: []string{"A"},
		},
		{
			name:       "missing semicolon",
			src:        "setting A {\n f()\n}\nsetting B { g(); }",
			kind:       SyntaxError,
			message:    `expected ";"`,
			line:       3,
			compiled:   []string{"B"},
			notCompile: []string{"A"},
		},
		{
			name:       "malformed argument list",
			src:        "setting A { f( ; }\nsetting B { g(); }",
			kind:       SyntaxError,
			message:    "unexpected",
			line:       1,
			compiled:   []string{"B"},
			notCompile: []string{"A"},
		},
		{
			name:       "empty rectangle",
			src:        "setting A { f(rect(0, 0, 0, 10)); }",
			kind:       SemanticError,
			message:    "invalid rectangle",
			line:       1,
			notCompile: []string{"A"},
		},
		{
			name:       "random out of range",
			src:        "setting A { f(random(150%)); }",
			kind:       SemanticError,
			message:    "not in 0..100",
			line:       1,
			notCompile: []string{"A"},
		},
		{
			name:       "illegal character",
			src:        "setting A { f(&); }\nsetting B { }",
			kind:       LexicalError,
			message:    "illegal character",
			line:       1,
			compiled:   []string{"B"},
			notCompile: []string{"A"},
		},
		{
			name:     "junk at top level",
			src:      "oops;\nsetting B { }",
			kind:     SyntaxError,
			message:  "expected setting, define or debug",
			line:     1,
			compiled: []string{"B"},
		},
		{
			name:       "unterminated setting",
			src:        "setting A { f();",
			kind:       SyntaxError,
			message:    "unterminated setting A",
			line:       1,
			notCompile: []string{"A"},
		},
		{
			name:       "goto unknown setting",
			src:        "setting A { goto Nowhere; }\nsetting B { g(); }",
			kind:       SemanticError,
			message:    `unknown setting "Nowhere"`,
			line:       1,
			compiled:   []string{"B"},
			notCompile: []string{"A"},
		},
		{
			name:       "goto call form with unknown setting",
			src:        "setting A {\n f(goto(Nowhere)); }",
			kind:       SemanticError,
			message:    `unknown setting "Nowhere"`,
			line:       2,
			notCompile: []string{"A"},
		},
		{
			name:       "goto a flag",
			src:        "define d { lamp } setting A { goto lamp; }",
			kind:       SemanticError,
			message:    `"lamp" is a flag, not a setting`,
			line:       1,
			notCompile: []string{"A"},
		},
		{
			name:       "bare name statement",
			src:        "define d { x } setting A { x; }",
			kind:       SyntaxError,
			message:    "expected ( after x",
			line:       1,
			notCompile: []string{"A"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, errs := compile(t, tt.src)
			if len(errs) != 1 {
				t.Fatalf("got %d errors %v, want 1", len(errs), errs)
			}
			err := errs[0]
			if err.Kind != tt.kind {
				t.Errorf("kind = %s, want %s", err.Kind, tt.kind)
			}
			if !strings.Contains(err.Message, tt.message) {
				t.Errorf("message %q does not contain %q", err.Message, tt.message)
			}
			if err.Line != tt.line {
				t.Errorf("line = %d, want %d", err.Line, tt.line)
			}
			for _, name := range tt.compiled {
				if _, ok := img.Setting(name); !ok {
					t.Errorf("setting %s should have compiled", name)
				}
			}
			for _, name := range tt.notCompile {
				if _, ok := img.Setting(name); ok {
					t.Errorf("setting %s should have been dropped", name)
				}
			}
		})
	}
}

func TestErrorsAreCollectedAcrossSettings(t *testing.T) {
	_, errs := compile(t, `
setting A { f( }
setting B { g(missing); }
setting C { h(); }`)
	if len(errs) != 2 {
		t.Fatalf("got %d errors %v, want 2", len(errs), errs)
	}
	if errs[0].Unit != "setting A" || errs[1].Unit != "setting B" {
		t.Errorf("units = %q, %q", errs[0].Unit, errs[1].Unit)
	}
}

func TestParserErrorString(t *testing.T) {
	err := &ParserError{Kind: SyntaxError, Unit: "setting hall", Message: "boom", Line: 3, Column: 7}
	want := "syntax error in setting hall at line 3, column 7: boom"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	err.Unit = ""
	if got := err.Error(); got != "syntax error at line 3, column 7: boom" {
		t.Errorf("Error() = %q", got)
	}
}

type arityTable map[string][2]int

func (a arityTable) Arity(name string) (int, int, bool) {
	r, ok := a[name]
	return r[0], r[1], ok
}

func TestStaticArityCheck(t *testing.T) {
	arity := WithArity(arityTable{
		"Sound":    {1, 1},
		"Exit":     {3, 3},
		"Flexible": {1, -1},
		"Range":    {1, 2},
	})

	tests := []struct {
		name    string
		call    string
		wantErr string
	}{
		{"exact ok", `Sound("a")`, ""},
		{"exact too many", `Sound("a", "b")`, "Sound takes 1 arguments, got 2"},
		{"variadic ok", `Flexible(1, 2, 3, 4)`, ""},
		{"variadic too few", `Flexible()`, "Flexible takes at least 1 arguments, got 0"},
		{"range too many", `Range(1, 2, 3)`, "Range takes 1 to 2 arguments, got 3"},
		{"unregistered is left to run time", `Other(1)`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errs := compile(t, "setting S { "+tt.call+"; }", arity)
			if tt.wantErr == "" {
				if len(errs) != 0 {
					t.Errorf("unexpected errors: %v", errs)
				}
				return
			}
			if len(errs) != 1 || errs[0].Message != tt.wantErr {
				t.Errorf("errors = %v, want %q", errs, tt.wantErr)
			}
		})
	}
}

func TestProgramsRecordFileAndLines(t *testing.T) {
	img := mustCompile(t, "setting S {\n  f();\n  g();\n}", WithFile("hall.txt"))
	prog := setting(t, img, "S")
	if prog.File != "hall.txt" {
		t.Errorf("File = %q", prog.File)
	}
	if prog.Instructions[0].Line != 2 || prog.Instructions[4].Line != 3 {
		t.Errorf("lines = %d, %d", prog.Instructions[0].Line, prog.Instructions[4].Line)
	}
}
