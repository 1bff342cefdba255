// Package token defines the lexical tokens of the setting-script language.
package token

import "strings"

// TokenType represents the type of a token.
type TokenType int

// Token types
const (
	// Special tokens
	ILLEGAL TokenType = iota
	EOF

	// Literals
	NAME   // identifier
	NUMBER // integer literal, optionally signed
	STRING // string literal (quotes stripped)

	// Operators
	PLUS    // +
	BANG    // !
	EQ      // ==
	NOT_EQ  // !=
	LT      // <
	GT      // >
	LTE     // <=
	GTE     // >=
	PERCENT // %

	// Delimiters
	LPAREN    // (
	RPAREN    // )
	LBRACE    // {
	RBRACE    // }
	COMMA     // ,
	SEMICOLON // ;

	// Keywords
	SETTING // setting
	DEFINE  // define
	DEBUG   // debug
	IF      // if
	ELSE    // else
	GOTO    // goto
	TRUE    // true
	FALSE   // false
	NULL    // null
	RECT    // rect
	RANDOM  // random
)

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string
	Line    int
	Column  int
}

var typeNames = map[TokenType]string{
	ILLEGAL: "ILLEGAL",
	EOF:     "EOF",

	NAME:   "NAME",
	NUMBER: "NUMBER",
	STRING: "STRING",

	PLUS:    "+",
	BANG:    "!",
	EQ:      "==",
	NOT_EQ:  "!=",
	LT:      "<",
	GT:      ">",
	LTE:     "<=",
	GTE:     ">=",
	PERCENT: "%",

	LPAREN:    "(",
	RPAREN:    ")",
	LBRACE:    "{",
	RBRACE:    "}",
	COMMA:     ",",
	SEMICOLON: ";",

	SETTING: "setting",
	DEFINE:  "define",
	DEBUG:   "debug",
	IF:      "if",
	ELSE:    "else",
	GOTO:    "goto",
	TRUE:    "true",
	FALSE:   "false",
	NULL:    "null",
	RECT:    "rect",
	RANDOM:  "random",
}

// String returns a string representation of the token type.
func (t TokenType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

// IsKeyword returns true if the token type is a keyword.
func (t TokenType) IsKeyword() bool {
	return t >= SETTING && t <= RANDOM
}

// IsComparison reports whether t is one of the comparison operators.
func (t TokenType) IsComparison() bool {
	return t >= EQ && t <= GTE
}

// keywords is keyed by the lowercase spelling; lookup is case-insensitive.
var keywords = map[string]TokenType{
	"setting": SETTING,
	"define":  DEFINE,
	"debug":   DEBUG,
	"if":      IF,
	"else":    ELSE,
	"goto":    GOTO,
	"true":    TRUE,
	"false":   FALSE,
	"null":    NULL,
	"rect":    RECT,
	"random":  RANDOM,
}

// LookupIdent returns the keyword type for ident, or NAME when ident is not a
// keyword. Setting, SETTING and Setting all map to SETTING.
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[strings.ToLower(ident)]; ok {
		return tok
	}
	return NAME
}
