// Package opcode defines the instruction set for the setting virtual machine.
// This package is the foundation that both the compiler and VM depend on.
// The compiler appends Instructions to a Program, and the VM executes them.
package opcode

import (
	"fmt"

	"github.com/zurustar/scenevm/pkg/symbol"
)

// Opcode identifies the operation an Instruction performs.
type Opcode byte

// Instruction set. Operand layout is given by Definitions.
const (
	// ConstPush pushes the value of a number or rect constant.
	// Operands: [symbol handle]
	ConstPush Opcode = iota

	// StrPush pushes the value of a string constant.
	// Operands: [symbol handle]
	StrPush

	// VarPush pushes a reference to a named symbol. Always followed by Eval.
	// Operands: [symbol handle]
	VarPush

	// Eval replaces the reference on top of the stack with what it names.
	Eval

	// Eq, Ne, Lt, Gt, Le, Ge pop right then left and push 0 or 1.
	Eq
	Ne
	Lt
	Gt
	Le
	Ge

	// Add pops right then left and pushes their sum or concatenation.
	Add

	// Negate pops a value and pushes 1 when it is falsy, 0 otherwise.
	Negate

	// RandBool pops a percentage and pushes 1 with that probability.
	RandBool

	// IfCode runs the condition that follows it up to its Stop, then the
	// then or else branch, and continues at next.
	// Operands: [then, else, next]
	IfCode

	// FuncPush pops the callee name and argument count, then the arguments,
	// and dispatches to the builtin registry.
	FuncPush

	// Pop discards the value on top of the stack. It follows every call made
	// as a statement.
	Pop

	// Stop ends the current run or sub-run.
	Stop
)

// NoTarget marks a jump slot that has not been patched.
const NoTarget = -1

// Definition describes the operand layout of an opcode.
type Definition struct {
	Name     string
	Operands int
}

// Definitions is indexed by Opcode.
var Definitions = map[Opcode]*Definition{
	ConstPush: {"ConstPush", 1},
	StrPush:   {"StrPush", 1},
	VarPush:   {"VarPush", 1},
	Eval:      {"Eval", 0},
	Eq:        {"Eq", 0},
	Ne:        {"Ne", 0},
	Lt:        {"Lt", 0},
	Gt:        {"Gt", 0},
	Le:        {"Le", 0},
	Ge:        {"Ge", 0},
	Add:       {"Add", 0},
	Negate:    {"Negate", 0},
	RandBool:  {"RandBool", 0},
	IfCode:    {"IfCode", 3},
	FuncPush:  {"FuncPush", 0},
	Pop:       {"Pop", 0},
	Stop:      {"Stop", 0},
}

// Lookup returns the definition for op.
func Lookup(op Opcode) (*Definition, error) {
	def, ok := Definitions[op]
	if !ok {
		return nil, fmt.Errorf("opcode %d undefined", op)
	}
	return def, nil
}

func (op Opcode) String() string {
	if def, ok := Definitions[op]; ok {
		return def.Name
	}
	return fmt.Sprintf("Opcode(%d)", byte(op))
}

// IfCode operand slots.
const (
	SlotThen = iota
	SlotElse
	SlotNext
)

// Instruction is one decoded step. Line is the source line it came from.
type Instruction struct {
	Op       Opcode
	Operands []int
	Line     int
}

// Make builds an instruction, checking the operand count against Definitions.
func Make(op Opcode, operands ...int) (Instruction, error) {
	def, err := Lookup(op)
	if err != nil {
		return Instruction{}, err
	}
	if len(operands) != def.Operands {
		return Instruction{}, fmt.Errorf("%s wants %d operands, got %d", def.Name, def.Operands, len(operands))
	}
	ops := make([]int, len(operands))
	copy(ops, operands)
	return Instruction{Op: op, Operands: ops}, nil
}

// Program is the compiled code of one setting. It is not modified after
// compilation.
type Program struct {
	Name         string
	File         string
	Instructions []Instruction
}

// Len returns the instruction count.
func (p *Program) Len() int {
	return len(p.Instructions)
}

// Image is the result of compiling a set of script files: the shared symbol
// table and one Program per setting.
type Image struct {
	Table    *symbol.Table
	Settings map[string]*Program
	// Order lists setting names in the order they were first defined.
	Order []string
	// Debug holds the names listed in debug blocks.
	Debug []string
}

// NewImage returns an empty image over table.
func NewImage(table *symbol.Table) *Image {
	return &Image{
		Table:    table,
		Settings: make(map[string]*Program),
	}
}

// Add stores prog, replacing any previous setting with the same name.
// It reports whether a previous setting was replaced.
func (img *Image) Add(prog *Program) bool {
	_, replaced := img.Settings[prog.Name]
	if !replaced {
		img.Order = append(img.Order, prog.Name)
	}
	img.Settings[prog.Name] = prog
	return replaced
}

// Setting returns the named program.
func (img *Image) Setting(name string) (*Program, bool) {
	p, ok := img.Settings[name]
	return p, ok
}
