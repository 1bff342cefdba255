package parser

import "fmt"

// ErrorKind classifies a ParserError.
type ErrorKind int

const (
	// SyntaxError is a malformed token sequence. The unit it occurs in is dropped.
	SyntaxError ErrorKind = iota
	// SemanticError is well-formed input that cannot be compiled, such as an
	// unknown identifier or an empty rectangle.
	SemanticError
	// LexicalError is an ILLEGAL token reported by the lexer.
	LexicalError
)

func (k ErrorKind) String() string {
	switch k {
	case SyntaxError:
		return "syntax"
	case SemanticError:
		return "semantic"
	case LexicalError:
		return "lexical"
	default:
		return "unknown"
	}
}

// ParserError is a diagnostic tied to a script unit and a source position.
type ParserError struct {
	Kind    ErrorKind
	Unit    string // e.g. "setting hall"; empty outside any unit
	Message string
	Line    int
	Column  int
}

// Error implements the error interface.
func (e *ParserError) Error() string {
	if e.Unit != "" {
		return fmt.Sprintf("%s error in %s at line %d, column %d: %s", e.Kind, e.Unit, e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("%s error at line %d, column %d: %s", e.Kind, e.Line, e.Column, e.Message)
}
