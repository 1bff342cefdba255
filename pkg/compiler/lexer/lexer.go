// Package lexer provides lexical analysis for setting scripts.
package lexer

import (
	"fmt"

	"github.com/zurustar/scenevm/pkg/compiler/token"
)

// LexerError reports a character sequence the lexer could not turn into a token.
type LexerError struct {
	Message string
	Line    int
	Column  int
}

// Error implements the error interface.
func (e *LexerError) Error() string {
	return fmt.Sprintf("lexer error at line %d, column %d: %s", e.Line, e.Column, e.Message)
}

// Lexer tokenizes setting-script source code.
type Lexer struct {
	input        string
	position     int  // current position in input
	readPosition int  // current reading position (after current char)
	ch           byte // current char
	line         int  // current line number
	column       int  // current column number
	errors       []*LexerError
}

// New creates a new Lexer.
func New(input string) *Lexer {
	l := &Lexer{
		input:  input,
		line:   1,
		column: 0,
	}
	l.readChar()
	return l
}

// NextToken returns the next token. Comments are skipped.
func (l *Lexer) NextToken() token.Token {
	var tok token.Token

	for {
		l.skipWhitespace()
		if l.ch == '/' && l.peekChar() == '/' {
			l.skipComment()
			continue
		}
		if l.ch == '/' && l.peekChar() == '*' {
			l.skipMultiLineComment()
			continue
		}
		break
	}

	tok.Line = l.line
	tok.Column = l.column

	switch l.ch {
	case '=':
		if l.peekChar() == '=' {
			l.readChar()
			tok = token.Token{Type: token.EQ, Literal: "==", Line: tok.Line, Column: tok.Column}
		} else {
			tok = l.illegal(tok, "unexpected '=' (did you mean '=='?)")
		}
	case '+':
		tok = l.newToken(token.PLUS, tok)
	case '%':
		tok = l.newToken(token.PERCENT, tok)
	case '!':
		if l.peekChar() == '=' {
			l.readChar()
			tok = token.Token{Type: token.NOT_EQ, Literal: "!=", Line: tok.Line, Column: tok.Column}
		} else {
			tok = l.newToken(token.BANG, tok)
		}
	case '<':
		if l.peekChar() == '=' {
			l.readChar()
			tok = token.Token{Type: token.LTE, Literal: "<=", Line: tok.Line, Column: tok.Column}
		} else {
			tok = l.newToken(token.LT, tok)
		}
	case '>':
		if l.peekChar() == '=' {
			l.readChar()
			tok = token.Token{Type: token.GTE, Literal: ">=", Line: tok.Line, Column: tok.Column}
		} else {
			tok = l.newToken(token.GT, tok)
		}
	case '(':
		tok = l.newToken(token.LPAREN, tok)
	case ')':
		tok = l.newToken(token.RPAREN, tok)
	case '{':
		tok = l.newToken(token.LBRACE, tok)
	case '}':
		tok = l.newToken(token.RBRACE, tok)
	case ',':
		tok = l.newToken(token.COMMA, tok)
	case ';':
		tok = l.newToken(token.SEMICOLON, tok)
	case '"':
		return l.readString(tok.Line, tok.Column)
	case '-':
		if isDigit(l.peekChar()) {
			return l.readNumber(tok.Line, tok.Column)
		}
		tok = l.illegal(tok, "unexpected '-'")
	case 0:
		tok.Literal = ""
		tok.Type = token.EOF
		return tok
	default:
		if isLetter(l.ch) {
			tok.Literal = l.readIdentifier()
			tok.Type = token.LookupIdent(tok.Literal)
			return tok
		} else if isDigit(l.ch) {
			return l.readNumber(tok.Line, tok.Column)
		}
		tok = l.illegal(tok, fmt.Sprintf("illegal character %q", l.ch))
	}

	l.readChar()
	return tok
}

// Errors returns the errors recorded for ILLEGAL tokens so far.
func (l *Lexer) Errors() []*LexerError {
	return l.errors
}

// Tokenize scans the whole input. The returned slice always ends with an EOF token.
func Tokenize(input string) ([]token.Token, []*LexerError) {
	l := New(input)
	var toks []token.Token
	for {
		tok := l.NextToken()
		toks = append(toks, tok)
		if tok.Type == token.EOF {
			break
		}
	}
	return toks, l.Errors()
}

// readChar reads the next character.
func (l *Lexer) readChar() {
	if l.readPosition >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPosition]
	}
	l.position = l.readPosition
	l.readPosition++
	l.column++

	if l.ch == '\n' {
		l.line++
		l.column = 0
	}
}

// peekChar returns the next character without advancing.
func (l *Lexer) peekChar() byte {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

func (l *Lexer) readIdentifier() string {
	position := l.position
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return l.input[position:l.position]
}

// readNumber reads an integer literal with an optional leading minus sign.
func (l *Lexer) readNumber(line, column int) token.Token {
	position := l.position
	if l.ch == '-' {
		l.readChar()
	}
	for isDigit(l.ch) {
		l.readChar()
	}
	return token.Token{Type: token.NUMBER, Literal: l.input[position:l.position], Line: line, Column: column}
}

// readString reads a string literal. Strings may not span lines.
func (l *Lexer) readString(line, column int) token.Token {
	position := l.position + 1
	for {
		l.readChar()
		if l.ch == '"' {
			break
		}
		if l.ch == 0 || l.ch == '\n' {
			tok := token.Token{Line: line, Column: column}
			return l.illegal(tok, "unterminated string literal")
		}
	}
	literal := l.input[position:l.position]
	l.readChar() // closing quote
	return token.Token{Type: token.STRING, Literal: literal, Line: line, Column: column}
}

func (l *Lexer) skipComment() {
	for l.ch != '\n' && l.ch != 0 {
		l.readChar()
	}
}

func (l *Lexer) skipMultiLineComment() {
	l.readChar() // consume /
	l.readChar() // consume *
	for l.ch != 0 {
		if l.ch == '*' && l.peekChar() == '/' {
			l.readChar()
			l.readChar()
			return
		}
		l.readChar()
	}
}

func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		l.readChar()
	}
}

func (l *Lexer) newToken(tokenType token.TokenType, at token.Token) token.Token {
	return token.Token{Type: tokenType, Literal: string(l.ch), Line: at.Line, Column: at.Column}
}

func (l *Lexer) illegal(at token.Token, msg string) token.Token {
	l.errors = append(l.errors, &LexerError{Message: msg, Line: at.Line, Column: at.Column})
	return token.Token{Type: token.ILLEGAL, Literal: msg, Line: at.Line, Column: at.Column}
}

func isLetter(ch byte) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z' || ch == '_'
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

// GetSource returns the source code as a string
func (l *Lexer) GetSource() string {
	return l.input
}
