// Package parser translates setting scripts into instructions in a single
// pass. There is no syntax tree: each production emits code into the current
// setting's builder as soon as it is recognised, and if/else targets are
// backpatched once the addresses are known.
package parser

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/zurustar/scenevm/pkg/compiler/codegen"
	"github.com/zurustar/scenevm/pkg/compiler/token"
	"github.com/zurustar/scenevm/pkg/logger"
	"github.com/zurustar/scenevm/pkg/opcode"
	"github.com/zurustar/scenevm/pkg/symbol"
)

// GotoFunction is the builtin that goto statements are rewritten into.
const GotoFunction = "goto"

// ArityChecker reports the accepted argument counts of a builtin.
// max < 0 means there is no upper bound.
type ArityChecker interface {
	Arity(name string) (min, max int, ok bool)
}

// Option configures a Parser.
type Option func(*Parser)

// WithArity enables static argument-count checks against a.
func WithArity(a ArityChecker) Option {
	return func(p *Parser) {
		p.arity = a
	}
}

// WithLogger sets the logger used for compile diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(p *Parser) {
		p.log = l
	}
}

// WithFile records the file name on every program the parser produces.
func WithFile(name string) Option {
	return func(p *Parser) {
		p.file = name
	}
}

// bailout unwinds the parser to the enclosing unit after a syntax error.
type bailout struct{}

// Parser compiles one token stream into an Image.
type Parser struct {
	toks []token.Token
	pos  int

	img   *opcode.Image
	table *symbol.Table
	arity ArityChecker
	log   *slog.Logger
	file  string

	b         *codegen.Builder // current setting
	unit      string
	unitOpen  int  // index of the unit's '{', or -1
	unitError bool // a semantic error was reported in the current unit

	errors []*ParserError
}

// New creates a parser over toks that compiles into img. toks must end with
// an EOF token, as lexer.Tokenize guarantees.
func New(toks []token.Token, img *opcode.Image, opts ...Option) *Parser {
	if len(toks) == 0 || toks[len(toks)-1].Type != token.EOF {
		toks = append(toks, token.Token{Type: token.EOF})
	}
	p := &Parser{
		toks:     toks,
		img:      img,
		table:    img.Table,
		log:      logger.GetLogger(),
		unitOpen: -1,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Prescan registers every setting name in the stream so settings can refer
// to each other regardless of order. Call it for all files of an image
// before parsing any of them.
func (p *Parser) Prescan() {
	for i := 0; i+1 < len(p.toks); i++ {
		if p.toks[i].Type == token.SETTING && p.toks[i+1].Type == token.NAME {
			p.table.DefineSetting(p.toks[i+1].Literal)
		}
	}
}

// Parse compiles every unit in the stream. Settings that fail to compile are
// left out of the image; all diagnostics are returned.
func (p *Parser) Parse() []*ParserError {
	for !p.curIs(token.EOF) {
		p.parseUnit()
	}
	return p.errors
}

// Errors returns the diagnostics collected so far.
func (p *Parser) Errors() []*ParserError {
	return p.errors
}

func (p *Parser) parseUnit() {
	p.unit = ""
	p.unitOpen = -1
	p.unitError = false
	p.b = nil

	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(bailout); !ok {
				panic(r)
			}
			p.skipUnit()
		}
	}()

	switch p.cur().Type {
	case token.SETTING:
		p.parseSetting()
	case token.DEFINE:
		p.parseDefine()
	case token.DEBUG:
		p.parseDebug()
	default:
		p.fail(p.cur(), "expected setting, define or debug, got %s", describe(p.cur()))
	}
}

// skipUnit moves past the unit that failed: to the brace matching its
// opening one, or to the next unit keyword when the body never opened.
func (p *Parser) skipUnit() {
	if p.unitOpen >= 0 {
		depth := 0
		for i := p.unitOpen; i < len(p.toks); i++ {
			switch p.toks[i].Type {
			case token.LBRACE:
				depth++
			case token.RBRACE:
				depth--
			case token.EOF:
				p.pos = i
				return
			}
			if depth == 0 {
				p.pos = i + 1
				return
			}
		}
		p.pos = len(p.toks) - 1
		return
	}
	p.advance()
	for !p.curIs(token.EOF) && !isUnitKeyword(p.cur().Type) {
		p.advance()
	}
}

func isUnitKeyword(t token.TokenType) bool {
	return t == token.SETTING || t == token.DEFINE || t == token.DEBUG
}

// setting NAME '{' { statement } '}'
func (p *Parser) parseSetting() {
	p.expect(token.SETTING)
	name := p.expect(token.NAME)
	p.unit = "setting " + name.Literal
	open := p.pos
	p.expect(token.LBRACE)
	p.unitOpen = open

	p.b = codegen.New(name.Literal, p.file)
	p.b.SetLine(name.Line)
	for !p.curIs(token.RBRACE) {
		if p.curIs(token.EOF) {
			p.fail(p.cur(), "unterminated setting %s", name.Literal)
		}
		p.parseStatement()
	}
	end := p.expect(token.RBRACE)
	p.b.SetLine(end.Line)
	p.b.Emit(opcode.Stop)

	if p.unitError {
		return
	}
	prog, err := p.b.Finish()
	if err != nil {
		p.semantic(name, "%v", err)
		return
	}
	if p.img.Add(prog) {
		p.log.Warn("setting redefined; last definition wins", "setting", name.Literal, "file", p.file, "line", name.Line)
	}
	p.log.Debug("compiled setting", "setting", prog.Name, "instructions", prog.Len())
}

type defineEntry struct {
	name string
	rect *symbol.Value
}

// define NAME '{' [ NAME [',' rect] { ',' NAME [',' rect] } ] '}'
// Entries are installed together when the block closes.
func (p *Parser) parseDefine() {
	p.expect(token.DEFINE)
	block := p.expect(token.NAME)
	p.unit = "define " + block.Literal
	open := p.pos
	p.expect(token.LBRACE)
	p.unitOpen = open

	var entries []defineEntry
	for !p.curIs(token.RBRACE) {
		name := p.expect(token.NAME)
		entry := defineEntry{name: name.Literal}
		if p.curIs(token.COMMA) && p.peekIs(token.RECT) {
			p.advance()
			at := p.cur()
			x1, y1, x2, y2 := p.parseRect()
			v, err := symbol.NewRect(x1, y1, x2, y2)
			if err != nil {
				p.semantic(at, "%s: %v", name.Literal, err)
			} else {
				entry.rect = &v
			}
		}
		entries = append(entries, entry)
		if !p.curIs(token.COMMA) {
			break
		}
		p.advance()
	}
	p.expect(token.RBRACE)

	if p.unitError {
		return
	}
	for _, e := range entries {
		p.table.Define(block.Literal, e.name, e.rect)
	}
	p.log.Debug("installed define block", "block", block.Literal, "entries", len(entries))
}

// debug '{' [ NAME { ',' NAME } ] '}'
func (p *Parser) parseDebug() {
	p.expect(token.DEBUG)
	p.unit = "debug block"
	open := p.pos
	p.expect(token.LBRACE)
	p.unitOpen = open
	var names []string
	for !p.curIs(token.RBRACE) {
		names = append(names, p.expect(token.NAME).Literal)
		if !p.curIs(token.COMMA) {
			break
		}
		p.advance()
	}
	p.expect(token.RBRACE)
	p.img.Debug = append(p.img.Debug, names...)
}

func (p *Parser) parseStatement() {
	tok := p.cur()
	p.b.SetLine(tok.Line)

	switch tok.Type {
	case token.IF:
		p.parseIf()
	case token.GOTO:
		if p.peekIs(token.LPAREN) {
			p.parseCall()
		} else {
			p.advance()
			p.emitGoto(p.gotoTarget())
		}
		p.b.Emit(opcode.Pop)
		p.expect(token.SEMICOLON)
	case token.RECT:
		// A rectangle on its own has no effect; it is still validated.
		x1, y1, x2, y2 := p.parseRect()
		if _, err := symbol.NewRect(x1, y1, x2, y2); err != nil {
			p.semantic(tok, "%v", err)
		}
		p.expect(token.SEMICOLON)
	case token.NAME:
		if !p.peekIs(token.LPAREN) {
			p.fail(p.peek(), "expected ( after %s, got %s", tok.Literal, describe(p.peek()))
		}
		p.parseCall()
		p.b.Emit(opcode.Pop)
		p.expect(token.SEMICOLON)
	default:
		p.fail(tok, "expected statement, got %s", describe(tok))
	}
}

// if '(' expr ')' body [ else body ]
//
// Layout:
//
//	IfCode then else next
//	<condition> Stop
//	then: <body> Stop
//	else: <body> Stop      (only with else)
//	next:
func (p *Parser) parseIf() {
	p.expect(token.IF)
	at := p.b.Placeholder()

	p.expect(token.LPAREN)
	p.parseExpression()
	p.expect(token.RPAREN)
	p.b.Emit(opcode.Stop)

	p.patch(at, opcode.SlotThen, p.b.Pos())
	p.parseBody()
	p.b.Emit(opcode.Stop)

	if p.curIs(token.ELSE) {
		p.advance()
		p.patch(at, opcode.SlotElse, p.b.Pos())
		p.parseBody()
		p.b.Emit(opcode.Stop)
	}
	p.patch(at, opcode.SlotNext, p.b.Pos())
}

func (p *Parser) patch(at, slot, target int) {
	if err := p.b.Patch(at, slot, target); err != nil {
		panic(fmt.Sprintf("parser: %v", err))
	}
}

func (p *Parser) parseBody() {
	if !p.curIs(token.LBRACE) {
		p.parseStatement()
		return
	}
	p.advance()
	for !p.curIs(token.RBRACE) {
		if p.curIs(token.EOF) {
			p.fail(p.cur(), "unterminated block")
		}
		p.parseStatement()
	}
	p.advance()
}

// parseCall handles every fcall form: goto(NAME), rect(...) and NAME(args).
func (p *Parser) parseCall() {
	tok := p.cur()
	switch tok.Type {
	case token.GOTO:
		p.advance()
		p.expect(token.LPAREN)
		target := p.gotoTarget()
		p.expect(token.RPAREN)
		p.emitGoto(target)
		return
	case token.RECT:
		p.emitRect()
		return
	}

	name := p.expect(token.NAME)
	p.expect(token.LPAREN)
	argc := 0
	if !p.curIs(token.RPAREN) {
		for {
			p.parseExpression()
			argc++
			if !p.curIs(token.COMMA) {
				break
			}
			p.advance()
		}
	}
	p.expect(token.RPAREN)

	p.checkArity(name, argc)
	p.b.SetLine(name.Line)
	p.b.Emit(opcode.ConstPush, int(p.table.InternNumber(int64(argc))))
	p.b.Emit(opcode.StrPush, int(p.table.InternString(name.Literal)))
	p.b.Emit(opcode.FuncPush)
}

func (p *Parser) checkArity(name token.Token, argc int) {
	if p.arity == nil {
		return
	}
	lo, hi, ok := p.arity.Arity(name.Literal)
	if !ok {
		p.log.Debug("call to unregistered function", "function", name.Literal, "unit", p.unit, "line", name.Line)
		return
	}
	if argc < lo || (hi >= 0 && argc > hi) {
		switch {
		case hi < 0:
			p.semantic(name, "%s takes at least %d arguments, got %d", name.Literal, lo, argc)
		case lo == hi:
			p.semantic(name, "%s takes %d arguments, got %d", name.Literal, lo, argc)
		default:
			p.semantic(name, "%s takes %d to %d arguments, got %d", name.Literal, lo, hi, argc)
		}
	}
}

// gotoTarget reads the target of a goto. A bare name must be a setting; a
// string is only checked when the transfer runs.
func (p *Parser) gotoTarget() string {
	tok := p.cur()
	if tok.Type != token.NAME && tok.Type != token.STRING {
		p.fail(tok, "expected setting name after goto, got %s", describe(tok))
	}
	p.advance()
	if tok.Type == token.NAME {
		sym, ok := p.table.Named(tok.Literal)
		switch {
		case !ok:
			p.semantic(tok, "unknown setting %q", tok.Literal)
		case sym.Kind != symbol.SettingSymbol:
			p.semantic(tok, "%q is a %s, not a setting", tok.Literal, sym.Kind)
		}
	}
	return tok.Literal
}

// emitGoto compiles a transfer as the call goto("target").
func (p *Parser) emitGoto(target string) {
	p.b.Emit(opcode.StrPush, int(p.table.InternString(target)))
	p.b.Emit(opcode.ConstPush, int(p.table.InternNumber(1)))
	p.b.Emit(opcode.StrPush, int(p.table.InternString(GotoFunction)))
	p.b.Emit(opcode.FuncPush)
}

// emitRect pushes a rectangle literal as a constant.
func (p *Parser) emitRect() {
	tok := p.cur()
	x1, y1, x2, y2 := p.parseRect()
	h, err := p.table.InternRect(x1, y1, x2, y2)
	if err != nil {
		p.semantic(tok, "%v", err)
		return
	}
	p.b.Emit(opcode.ConstPush, int(h))
}

// rect '(' NUM ',' NUM ',' NUM ',' NUM ')'
func (p *Parser) parseRect() (x1, y1, x2, y2 int) {
	p.expect(token.RECT)
	p.expect(token.LPAREN)
	x1 = p.parseInt()
	p.expect(token.COMMA)
	y1 = p.parseInt()
	p.expect(token.COMMA)
	x2 = p.parseInt()
	p.expect(token.COMMA)
	y2 = p.parseInt()
	p.expect(token.RPAREN)
	return
}

func (p *Parser) parseInt() int {
	tok := p.expect(token.NUMBER)
	n, err := strconv.Atoi(tok.Literal)
	if err != nil {
		p.semantic(tok, "number %s out of range", tok.Literal)
		return 0
	}
	return n
}

func (p *Parser) parseExpression() {
	p.parseComparison()
}

// additive { cmpop additive }
func (p *Parser) parseComparison() {
	p.parseAdditive()
	for p.cur().Type.IsComparison() {
		op := p.cur()
		p.advance()
		p.parseAdditive()
		p.b.Emit(comparisonOps[op.Type])
	}
}

var comparisonOps = map[token.TokenType]opcode.Opcode{
	token.EQ:     opcode.Eq,
	token.NOT_EQ: opcode.Ne,
	token.LT:     opcode.Lt,
	token.GT:     opcode.Gt,
	token.LTE:    opcode.Le,
	token.GTE:    opcode.Ge,
}

// unary { '+' [unary] }
// A '+' with nothing after it is accepted and emits nothing.
func (p *Parser) parseAdditive() {
	p.parseUnary()
	for p.curIs(token.PLUS) {
		p.advance()
		if !startsOperand(p.cur().Type) {
			continue
		}
		p.parseUnary()
		p.b.Emit(opcode.Add)
	}
}

func startsOperand(t token.TokenType) bool {
	switch t {
	case token.NUMBER, token.STRING, token.TRUE, token.FALSE, token.NULL,
		token.NAME, token.GOTO, token.RECT, token.RANDOM, token.LPAREN, token.BANG:
		return true
	}
	return false
}

func (p *Parser) parseUnary() {
	if p.curIs(token.BANG) {
		p.advance()
		p.parseUnary()
		p.b.Emit(opcode.Negate)
		return
	}
	p.parsePrimary()
}

func (p *Parser) parsePrimary() {
	tok := p.cur()
	switch tok.Type {
	case token.NUMBER:
		p.advance()
		n, err := strconv.ParseInt(tok.Literal, 10, 64)
		if err != nil {
			p.semantic(tok, "number %s out of range", tok.Literal)
			return
		}
		p.b.Emit(opcode.ConstPush, int(p.table.InternNumber(n)))
	case token.STRING:
		p.advance()
		p.b.Emit(opcode.StrPush, int(p.table.InternString(tok.Literal)))
	case token.TRUE:
		p.advance()
		p.b.Emit(opcode.ConstPush, int(p.table.InternNumber(1)))
	case token.FALSE, token.NULL:
		// null and false are the same constant.
		p.advance()
		p.b.Emit(opcode.ConstPush, int(p.table.InternNumber(0)))
	case token.NAME:
		if p.peekIs(token.LPAREN) {
			p.parseCall()
			return
		}
		p.advance()
		h, err := p.table.Lookup(tok.Literal)
		if err != nil {
			p.semantic(tok, "unknown identifier %q", tok.Literal)
			return
		}
		p.b.Emit(opcode.VarPush, int(h))
		p.b.Emit(opcode.Eval)
	case token.GOTO, token.RECT:
		p.parseCall()
	case token.RANDOM:
		p.parseRandom()
	case token.LPAREN:
		p.advance()
		p.parseExpression()
		p.expect(token.RPAREN)
	default:
		p.fail(tok, "unexpected %s in expression", describe(tok))
	}
}

// random '(' NUM '%' ')'
func (p *Parser) parseRandom() {
	p.expect(token.RANDOM)
	p.expect(token.LPAREN)
	tok := p.expect(token.NUMBER)
	p.expect(token.PERCENT)
	p.expect(token.RPAREN)

	n, err := strconv.ParseInt(tok.Literal, 10, 64)
	if err != nil || n < 0 || n > 100 {
		p.semantic(tok, "random percentage %s not in 0..100", tok.Literal)
		return
	}
	p.b.Emit(opcode.ConstPush, int(p.table.InternNumber(n)))
	p.b.Emit(opcode.RandBool)
}

func (p *Parser) cur() token.Token {
	return p.toks[p.pos]
}

func (p *Parser) peek() token.Token {
	if p.pos+1 < len(p.toks) {
		return p.toks[p.pos+1]
	}
	return p.toks[len(p.toks)-1]
}

func (p *Parser) curIs(t token.TokenType) bool {
	return p.cur().Type == t
}

func (p *Parser) peekIs(t token.TokenType) bool {
	return p.peek().Type == t
}

func (p *Parser) advance() {
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
}

// expect consumes the current token if it has type t and bails out otherwise.
func (p *Parser) expect(t token.TokenType) token.Token {
	tok := p.cur()
	if tok.Type != t {
		p.fail(tok, "expected %s, got %s", describeType(t), describe(tok))
	}
	p.advance()
	return tok
}

// fail records a syntax error and abandons the current unit.
func (p *Parser) fail(tok token.Token, format string, args ...any) {
	err := &ParserError{
		Kind:    SyntaxError,
		Unit:    p.unit,
		Message: fmt.Sprintf(format, args...),
		Line:    tok.Line,
		Column:  tok.Column,
	}
	if tok.Type == token.ILLEGAL {
		err.Kind = LexicalError
		err.Message = tok.Literal
	}
	p.errors = append(p.errors, err)
	panic(bailout{})
}

// semantic records an error that keeps the parser going but drops the unit.
func (p *Parser) semantic(tok token.Token, format string, args ...any) {
	p.unitError = true
	p.errors = append(p.errors, &ParserError{
		Kind:    SemanticError,
		Unit:    p.unit,
		Message: fmt.Sprintf(format, args...),
		Line:    tok.Line,
		Column:  tok.Column,
	})
}

func describeType(t token.TokenType) string {
	switch t {
	case token.NAME:
		return "identifier"
	case token.NUMBER:
		return "number"
	case token.STRING:
		return "string"
	case token.EOF:
		return "end of file"
	}
	return strconv.Quote(t.String())
}

func describe(tok token.Token) string {
	switch tok.Type {
	case token.NAME, token.NUMBER:
		return fmt.Sprintf("%s %s", describeType(tok.Type), tok.Literal)
	case token.STRING:
		return fmt.Sprintf("string %q", tok.Literal)
	case token.ILLEGAL:
		return tok.Literal
	}
	return describeType(tok.Type)
}
