// Package vm executes compiled settings. A run walks one Program with a
// program counter and an operand stack; conditions and branches are
// evaluated as bounded sub-runs that return at their Stop.
package vm

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/zurustar/scenevm/pkg/builtin"
	"github.com/zurustar/scenevm/pkg/logger"
	"github.com/zurustar/scenevm/pkg/opcode"
	"github.com/zurustar/scenevm/pkg/symbol"
)

const (
	// DefaultMaxStack bounds the operand stack.
	DefaultMaxStack = 1024
	// DefaultMaxDepth bounds the nesting of sub-runs.
	DefaultMaxDepth = 256
)

// Caller dispatches builtin calls. *builtin.Registry implements it.
type Caller interface {
	Call(name string, args builtin.Args) (symbol.Value, error)
}

// VM runs programs against a symbol table and a set of builtins.
type VM struct {
	table   *symbol.Table
	natives Caller
	rand    RandSource
	log     *slog.Logger

	maxStack int
	maxDepth int

	// Run state, reset at the start of every run.
	stack []symbol.Value
	prog  *opcode.Program
	depth int

	mu sync.Mutex
}

// Option is a functional option for configuring the VM.
type Option func(*VM)

// WithLogger sets a custom logger.
func WithLogger(log *slog.Logger) Option {
	return func(vm *VM) {
		vm.log = log
	}
}

// WithRandSource sets the source random(N%) draws from.
func WithRandSource(src RandSource) Option {
	return func(vm *VM) {
		vm.rand = src
	}
}

// WithSeed seeds the VM's random source. 0 seeds from the clock.
func WithSeed(seed int64) Option {
	return func(vm *VM) {
		vm.rand = NewRandSource(seed)
	}
}

// WithMaxStack sets the operand stack limit.
func WithMaxStack(n int) Option {
	return func(vm *VM) {
		vm.maxStack = n
	}
}

// WithMaxDepth sets the sub-run nesting limit.
func WithMaxDepth(n int) Option {
	return func(vm *VM) {
		vm.maxDepth = n
	}
}

// New creates a VM over table that dispatches calls to natives.
func New(table *symbol.Table, natives Caller, opts ...Option) *VM {
	vm := &VM{
		table:    table,
		natives:  natives,
		log:      logger.GetLogger(),
		maxStack: DefaultMaxStack,
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(vm)
	}
	if vm.rand == nil {
		vm.rand = NewRandSource(0)
	}
	return vm
}

// Table returns the symbol table the VM reads.
func (vm *VM) Table() *symbol.Table {
	return vm.table
}

// Run executes prog from its first instruction to its final Stop. Runs are
// serialised; a builtin must not call Run on the VM that is calling it.
// The returned error, if any, is a *RuntimeError.
func (vm *VM) Run(prog *opcode.Program) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	vm.stack = vm.stack[:0]
	vm.prog = prog
	vm.depth = 0
	defer func() {
		vm.stack = vm.stack[:0]
		vm.prog = nil
	}()

	vm.log.Debug("running setting", "setting", prog.Name, "instructions", prog.Len())
	if err := vm.execute(0); err != nil {
		vm.log.Error("setting failed", "setting", prog.Name, "error", err)
		return err
	}
	return nil
}

// execute runs from pc until it reaches a Stop.
func (vm *VM) execute(pc int) error {
	vm.depth++
	defer func() { vm.depth-- }()
	if vm.depth > vm.maxDepth {
		return vm.fail(ErrorStackOverflow, pc, "sub-runs nested deeper than %d", vm.maxDepth)
	}

	code := vm.prog.Instructions
	for {
		if pc < 0 || pc >= len(code) {
			return vm.fail(ErrorCorruptProgram, pc, "program counter outside program of %d instructions", len(code))
		}
		ins := code[pc]
		if def, ok := opcode.Definitions[ins.Op]; !ok || len(ins.Operands) != def.Operands {
			return vm.fail(ErrorCorruptProgram, pc, "malformed instruction %s %v", ins.Op, ins.Operands)
		}

		switch ins.Op {
		case opcode.ConstPush, opcode.StrPush:
			sym, err := vm.symbolAt(pc, ins.Operands[0])
			if err != nil {
				return err
			}
			if err := vm.push(pc, sym.Value); err != nil {
				return err
			}

		case opcode.VarPush:
			sym, err := vm.symbolAt(pc, ins.Operands[0])
			if err != nil {
				return err
			}
			if err := vm.push(pc, symbol.Name(sym)); err != nil {
				return err
			}

		case opcode.Eval:
			ref, err := vm.pop(pc)
			if err != nil {
				return err
			}
			if ref.Kind != symbol.NameValue || ref.Sym == nil {
				return vm.fail(ErrorCorruptProgram, pc, "Eval of %s, want a reference", ref.Kind)
			}
			// Flags and settings stay references so builtins can see which
			// symbol they were given; readers dereference them.
			v := ref
			switch ref.Sym.Kind {
			case symbol.FlagSymbol, symbol.SettingSymbol:
			default:
				v = ref.Sym.Value
			}
			if err := vm.push(pc, v); err != nil {
				return err
			}

		case opcode.Eq, opcode.Ne:
			l, r, err := vm.pop2(pc)
			if err != nil {
				return err
			}
			eq, ok := l.Equal(r)
			if !ok {
				return vm.mismatch(pc, ins.Op, l, r)
			}
			if ins.Op == opcode.Ne {
				eq = !eq
			}
			if err := vm.push(pc, symbol.Bool(eq)); err != nil {
				return err
			}

		case opcode.Lt, opcode.Gt, opcode.Le, opcode.Ge:
			l, r, err := vm.pop2(pc)
			if err != nil {
				return err
			}
			ld, rd := l.Deref(), r.Deref()
			if ld.Kind != symbol.NumberValue || rd.Kind != symbol.NumberValue {
				return vm.mismatch(pc, ins.Op, l, r)
			}
			if err := vm.push(pc, symbol.Bool(compare(ins.Op, ld.Num, rd.Num))); err != nil {
				return err
			}

		case opcode.Add:
			l, r, err := vm.pop2(pc)
			if err != nil {
				return err
			}
			ld, rd := l.Deref(), r.Deref()
			var sum symbol.Value
			switch {
			case ld.Kind == symbol.NumberValue && rd.Kind == symbol.NumberValue:
				sum = symbol.Number(ld.Num + rd.Num)
			case ld.Kind == symbol.StringValue && rd.Kind == symbol.StringValue:
				sum = symbol.String(ld.Str + rd.Str)
			default:
				return vm.mismatch(pc, ins.Op, l, r)
			}
			if err := vm.push(pc, sum); err != nil {
				return err
			}

		case opcode.Negate:
			v, err := vm.pop(pc)
			if err != nil {
				return err
			}
			if err := vm.push(pc, symbol.Bool(!v.Truthy())); err != nil {
				return err
			}

		case opcode.RandBool:
			v, err := vm.pop(pc)
			if err != nil {
				return err
			}
			d := v.Deref()
			if d.Kind != symbol.NumberValue {
				return vm.fail(ErrorTypeMismatch, pc, "random percentage is a %s", d.Kind)
			}
			if err := vm.push(pc, symbol.Bool(chance(vm.rand, d.Num))); err != nil {
				return err
			}

		case opcode.IfCode:
			next, err := vm.branch(pc, ins)
			if err != nil {
				return err
			}
			pc = next
			continue

		case opcode.FuncPush:
			if err := vm.call(pc); err != nil {
				return err
			}

		case opcode.Pop:
			if _, err := vm.pop(pc); err != nil {
				return err
			}

		case opcode.Stop:
			return nil
		}
		pc++
	}
}

// branch evaluates the condition after an IfCode, runs the selected branch
// and returns the join address.
func (vm *VM) branch(pc int, ins opcode.Instruction) (int, error) {
	then := ins.Operands[opcode.SlotThen]
	els := ins.Operands[opcode.SlotElse]
	next := ins.Operands[opcode.SlotNext]
	if then == opcode.NoTarget || next == opcode.NoTarget {
		return 0, vm.fail(ErrorCorruptProgram, pc, "IfCode with unpatched target %v", ins.Operands)
	}

	if err := vm.execute(pc + 1); err != nil {
		return 0, err
	}
	cond, err := vm.pop(pc)
	if err != nil {
		return 0, err
	}

	base := len(vm.stack)
	switch {
	case cond.Truthy():
		err = vm.execute(then)
	case els != opcode.NoTarget:
		err = vm.execute(els)
	}
	if err != nil {
		return 0, err
	}
	// A branch leaves the stack as it found it.
	vm.stack = vm.stack[:base]
	return next, nil
}

// call pops the callee name, the argument count and the arguments, and
// dispatches to the builtins. The result is pushed.
func (vm *VM) call(pc int) error {
	nameV, err := vm.pop(pc)
	if err != nil {
		return err
	}
	name := nameV.Deref()
	if name.Kind != symbol.StringValue {
		return vm.fail(ErrorCorruptProgram, pc, "callee name is a %s", name.Kind)
	}
	countV, err := vm.pop(pc)
	if err != nil {
		return err
	}
	count := countV.Deref()
	if count.Kind != symbol.NumberValue || count.Num < 0 {
		return vm.fail(ErrorCorruptProgram, pc, "bad argument count %s for %s", count, name.Str)
	}
	n := int(count.Num)
	if n > len(vm.stack) {
		return vm.fail(ErrorStackUnderflow, pc, "%s wants %d arguments, stack holds %d", name.Str, n, len(vm.stack))
	}

	args := make(builtin.Args, n)
	copy(args, vm.stack[len(vm.stack)-n:])
	vm.stack = vm.stack[:len(vm.stack)-n]

	result, err := vm.natives.Call(name.Str, args)
	if err != nil {
		e := vm.fail(ErrorNativeFailure, pc, "%v", err)
		if errors.Is(err, builtin.ErrUnknownFunction) {
			e.Type = ErrorUndefinedFunc
			e.Message = fmt.Sprintf("undefined function: %s", name.Str)
		}
		e.Err = err
		return e
	}
	return vm.push(pc, result)
}

func compare(op opcode.Opcode, l, r int64) bool {
	switch op {
	case opcode.Lt:
		return l < r
	case opcode.Gt:
		return l > r
	case opcode.Le:
		return l <= r
	default:
		return l >= r
	}
}

func (vm *VM) symbolAt(pc, operand int) (*symbol.Symbol, error) {
	sym := vm.table.Symbol(symbol.Handle(operand))
	if sym == nil {
		return nil, vm.fail(ErrorCorruptProgram, pc, "no symbol with handle %d", operand)
	}
	return sym, nil
}

func (vm *VM) push(pc int, v symbol.Value) error {
	if len(vm.stack) >= vm.maxStack {
		return vm.fail(ErrorStackOverflow, pc, "operand stack exceeds %d values", vm.maxStack)
	}
	vm.stack = append(vm.stack, v)
	return nil
}

func (vm *VM) pop(pc int) (symbol.Value, error) {
	if len(vm.stack) == 0 {
		return symbol.Value{}, vm.fail(ErrorStackUnderflow, pc, "pop from empty stack")
	}
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v, nil
}

// pop2 pops the right operand and then the left one.
func (vm *VM) pop2(pc int) (l, r symbol.Value, err error) {
	if r, err = vm.pop(pc); err != nil {
		return
	}
	l, err = vm.pop(pc)
	return
}

func (vm *VM) mismatch(pc int, op opcode.Opcode, l, r symbol.Value) *RuntimeError {
	return vm.fail(ErrorTypeMismatch, pc, "%s of %s and %s", op, l.Deref().Kind, r.Deref().Kind)
}

func (vm *VM) fail(t ErrorType, pc int, format string, args ...any) *RuntimeError {
	e := &RuntimeError{
		Type:    t,
		Message: fmt.Sprintf(format, args...),
		PC:      pc,
	}
	if vm.prog != nil {
		e.Setting = vm.prog.Name
		e.File = vm.prog.File
		if pc >= 0 && pc < len(vm.prog.Instructions) {
			e.Line = vm.prog.Instructions[pc].Line
		}
	}
	return e
}
