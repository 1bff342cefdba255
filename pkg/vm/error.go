package vm

import (
	"fmt"
)

// ErrorType represents the type of runtime error.
type ErrorType string

const (
	ErrorStackUnderflow ErrorType = "STACK_UNDERFLOW"
	ErrorStackOverflow  ErrorType = "STACK_OVERFLOW"
	ErrorTypeMismatch   ErrorType = "TYPE_MISMATCH"
	ErrorUndefinedFunc  ErrorType = "UNDEFINED_FUNCTION"
	ErrorCorruptProgram ErrorType = "CORRUPT_PROGRAM"
	ErrorNativeFailure  ErrorType = "NATIVE_FAILURE"
)

// RuntimeError describes why a setting run stopped. Every runtime error
// ends the run; nothing is retried.
type RuntimeError struct {
	Type    ErrorType
	Message string
	Setting string
	File    string
	PC      int
	Line    int   // source line, 0 if unknown
	Err     error // underlying builtin error, if any
}

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	where := fmt.Sprintf("setting %s pc %d", e.Setting, e.PC)
	if e.Line > 0 {
		if e.File != "" {
			where += fmt.Sprintf(" (%s:%d)", e.File, e.Line)
		} else {
			where += fmt.Sprintf(" (line %d)", e.Line)
		}
	}
	return fmt.Sprintf("[%s] %s at %s", e.Type, e.Message, where)
}

// Unwrap returns the builtin error that caused a native failure.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether the host must stop. A script that reaches a
// runtime error no longer matches the engine it runs on, so all are fatal.
func (e *RuntimeError) IsFatal() bool {
	return true
}
