package compiler

import (
	"fmt"
	"strings"

	"github.com/zurustar/scenevm/pkg/compiler/parser"
)

// CompileError represents a structured compilation error with location information.
// It implements the error interface and provides detailed context about where
// the error occurred in the source code.
type CompileError struct {
	// Phase indicates which compilation phase generated the error.
	// Valid values: "lexer", "parser", "compiler"
	Phase string

	// File is the script file the error was found in, if known.
	File string

	// Unit names the script unit, e.g. "setting hall" or "define rooms".
	Unit string

	// Message is the human-readable error description.
	Message string

	// Line is the 1-indexed line number where the error occurred.
	Line int

	// Column is the 1-indexed column number where the error occurred.
	Column int

	// Context contains the source code around the error location.
	// This includes 2 lines before and after the error line,
	// with a pointer (^) indicating the error column.
	Context string
}

// Error implements the error interface.
// It returns a formatted error message including phase, location, message, and context.
func (e *CompileError) Error() string {
	var b strings.Builder
	if e.File != "" {
		b.WriteString(e.File)
		b.WriteString(": ")
	}
	b.WriteString(e.Phase)
	b.WriteString(" error")
	if e.Unit != "" {
		b.WriteString(" in ")
		b.WriteString(e.Unit)
	}
	fmt.Fprintf(&b, " at line %d, column %d: %s", e.Line, e.Column, e.Message)
	if e.Context != "" {
		b.WriteString("\n")
		b.WriteString(e.Context)
	}
	return b.String()
}

// phaseOf maps a parser diagnostic onto the phase reported to users.
func phaseOf(kind parser.ErrorKind) string {
	switch kind {
	case parser.LexicalError:
		return "lexer"
	case parser.SemanticError:
		return "compiler"
	default:
		return "parser"
	}
}

// newCompileError converts a parser diagnostic, attaching source context.
func newCompileError(pe *parser.ParserError, file, source string) *CompileError {
	return &CompileError{
		Phase:   phaseOf(pe.Kind),
		File:    file,
		Unit:    pe.Unit,
		Message: pe.Message,
		Line:    pe.Line,
		Column:  pe.Column,
		Context: GenerateErrorContext(source, pe.Line, pe.Column),
	}
}

// GenerateErrorContext generates source code context around an error location.
// It includes 2 lines before and 2 lines after the error line, with line numbers
// and a pointer (^) indicating the error column.
//
// Example output:
//
//	  2 | setting hall {
//	  3 |   Background("hall.bmp");
//	> 4 |   Sound("door.wav")
//	    |                    ^
//	  5 | }
func GenerateErrorContext(source string, line, column int) string {
	if source == "" || line <= 0 {
		return ""
	}

	lines := strings.Split(source, "\n")
	if line > len(lines) {
		return ""
	}

	// Calculate the range of lines to show (2 before and 2 after)
	start := line - 3
	if start < 0 {
		start = 0
	}
	end := line + 2
	if end > len(lines) {
		end = len(lines)
	}

	var buf strings.Builder

	lineNumWidth := len(fmt.Sprintf("%d", end))

	for i := start; i < end; i++ {
		lineNum := i + 1
		lineContent := strings.TrimRight(lines[i], "\r")

		if lineNum == line {
			fmt.Fprintf(&buf, "> %*d | %s\n", lineNumWidth, lineNum, lineContent)
			// "> " + lineNumWidth + " | "
			pointerIndent := 2 + lineNumWidth + 3
			if column > 0 {
				fmt.Fprintf(&buf, "%s%s^\n", strings.Repeat(" ", pointerIndent), strings.Repeat(" ", column-1))
			} else {
				fmt.Fprintf(&buf, "%s^\n", strings.Repeat(" ", pointerIndent))
			}
		} else {
			fmt.Fprintf(&buf, "  %*d | %s\n", lineNumWidth, lineNum, lineContent)
		}
	}

	return buf.String()
}
