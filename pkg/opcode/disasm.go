package opcode

import (
	"fmt"
	"io"
	"strings"

	"github.com/zurustar/scenevm/pkg/symbol"
)

// Disassemble writes a readable listing of prog. Symbol operands are shown
// with their value when table is not nil.
func Disassemble(w io.Writer, prog *Program, table *symbol.Table) error {
	if _, err := fmt.Fprintf(w, "setting %s (%d instructions)\n", prog.Name, prog.Len()); err != nil {
		return err
	}
	for pc, ins := range prog.Instructions {
		if _, err := fmt.Fprintf(w, "%04d %s\n", pc, FormatInstruction(ins, table)); err != nil {
			return err
		}
	}
	return nil
}

// FormatInstruction renders one instruction.
func FormatInstruction(ins Instruction, table *symbol.Table) string {
	var b strings.Builder
	b.WriteString(ins.Op.String())
	switch ins.Op {
	case ConstPush, StrPush, VarPush:
		h := ins.Operands[0]
		fmt.Fprintf(&b, " #%d", h)
		if table != nil {
			if sym := table.Symbol(symbol.Handle(h)); sym != nil {
				if sym.Name != "" {
					fmt.Fprintf(&b, " (%s)", sym.Name)
				} else {
					fmt.Fprintf(&b, " (%s)", sym.Value)
				}
			}
		}
	case IfCode:
		fmt.Fprintf(&b, " then=%s else=%s next=%s",
			target(ins.Operands[SlotThen]), target(ins.Operands[SlotElse]), target(ins.Operands[SlotNext]))
	}
	return b.String()
}

func target(t int) string {
	if t == NoTarget {
		return "-"
	}
	return fmt.Sprintf("%04d", t)
}

// DisassembleImage lists every setting in definition order.
func DisassembleImage(w io.Writer, img *Image) error {
	for i, name := range img.Order {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if err := Disassemble(w, img.Settings[name], img.Table); err != nil {
			return err
		}
	}
	return nil
}
