// Package codegen provides the append-only instruction buffer the parser
// emits into while it reads a setting.
package codegen

import (
	"fmt"

	"github.com/zurustar/scenevm/pkg/opcode"
)

// Builder accumulates the instructions of one setting. Addresses are indices
// into the buffer, so a placeholder can be patched once its target is known.
type Builder struct {
	name         string
	file         string
	instructions []opcode.Instruction
	line         int
}

// New creates a builder for the setting called name.
func New(name, file string) *Builder {
	return &Builder{name: name, file: file}
}

// SetLine records the source line attached to instructions emitted next.
func (b *Builder) SetLine(line int) {
	b.line = line
}

// Emit appends an instruction and returns its address.
func (b *Builder) Emit(op opcode.Opcode, operands ...int) int {
	ins, err := opcode.Make(op, operands...)
	if err != nil {
		// Operand counts are fixed by the parser; a mismatch is a bug there.
		panic(err)
	}
	ins.Line = b.line
	b.instructions = append(b.instructions, ins)
	return len(b.instructions) - 1
}

// Placeholder appends an IfCode whose three slots are still unpatched.
func (b *Builder) Placeholder() int {
	return b.Emit(opcode.IfCode, opcode.NoTarget, opcode.NoTarget, opcode.NoTarget)
}

// Pos returns the address the next instruction will occupy.
func (b *Builder) Pos() int {
	return len(b.instructions)
}

// Patch fills slot of the IfCode at addr with target.
func (b *Builder) Patch(addr, slot, target int) error {
	if addr < 0 || addr >= len(b.instructions) {
		return fmt.Errorf("patch address %d out of range", addr)
	}
	ins := &b.instructions[addr]
	if ins.Op != opcode.IfCode {
		return fmt.Errorf("patch address %d holds %s, not IfCode", addr, ins.Op)
	}
	if slot < opcode.SlotThen || slot > opcode.SlotNext {
		return fmt.Errorf("invalid patch slot %d", slot)
	}
	ins.Operands[slot] = target
	return nil
}

// Finish checks that every jump slot was resolved and returns the program.
// The else slot may legitimately stay unpatched.
func (b *Builder) Finish() (*opcode.Program, error) {
	n := len(b.instructions)
	for pc, ins := range b.instructions {
		if ins.Op != opcode.IfCode {
			continue
		}
		for _, slot := range []int{opcode.SlotThen, opcode.SlotNext} {
			t := ins.Operands[slot]
			if t == opcode.NoTarget || t < 0 || t > n {
				return nil, fmt.Errorf("setting %s: IfCode at %d has unresolved target %d", b.name, pc, t)
			}
		}
		if t := ins.Operands[opcode.SlotElse]; t != opcode.NoTarget && (t < 0 || t > n) {
			return nil, fmt.Errorf("setting %s: IfCode at %d has invalid else target %d", b.name, pc, t)
		}
	}
	if n == 0 || b.instructions[n-1].Op != opcode.Stop {
		return nil, fmt.Errorf("setting %s: program does not end with Stop", b.name)
	}
	return &opcode.Program{
		Name:         b.name,
		File:         b.file,
		Instructions: b.instructions,
	}, nil
}
