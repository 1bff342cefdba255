package lexer

import (
	"testing"

	"github.com/zurustar/scenevm/pkg/compiler/token"
)

func TestNextToken(t *testing.T) {
	input := `
	define rects { kDoor, RECT(10, 20, 110, 220), kSeen }
	// line comment
	setting kHall {
		if (kSeen == -1) { Sound("door.wav"); } else goto kStreet;
		/* block
		   comment */
		Timer(5, kStreet) ;
		if (!kSeen + ) SetFlag(kSeen, true);
		if (random(40%) <= 3 && x) { }
	}
	`

	tests := []struct {
		expectedType    token.TokenType
		expectedLiteral string
	}{
		{token.DEFINE, "define"},
		{token.NAME, "rects"},
		{token.LBRACE, "{"},
		{token.NAME, "kDoor"},
		{token.COMMA, ","},
		{token.RECT, "RECT"},
		{token.LPAREN, "("},
		{token.NUMBER, "10"},
		{token.COMMA, ","},
		{token.NUMBER, "20"},
		{token.COMMA, ","},
		{token.NUMBER, "110"},
		{token.COMMA, ","},
		{token.NUMBER, "220"},
		{token.RPAREN, ")"},
		{token.COMMA, ","},
		{token.NAME, "kSeen"},
		{token.RBRACE, "}"},

		{token.SETTING, "setting"},
		{token.NAME, "kHall"},
		{token.LBRACE, "{"},

		{token.IF, "if"},
		{token.LPAREN, "("},
		{token.NAME, "kSeen"},
		{token.EQ, "=="},
		{token.NUMBER, "-1"},
		{token.RPAREN, ")"},
		{token.LBRACE, "{"},
		{token.NAME, "Sound"},
		{token.LPAREN, "("},
		{token.STRING, "door.wav"},
		{token.RPAREN, ")"},
		{token.SEMICOLON, ";"},
		{token.RBRACE, "}"},
		{token.ELSE, "else"},
		{token.GOTO, "goto"},
		{token.NAME, "kStreet"},
		{token.SEMICOLON, ";"},

		{token.NAME, "Timer"},
		{token.LPAREN, "("},
		{token.NUMBER, "5"},
		{token.COMMA, ","},
		{token.NAME, "kStreet"},
		{token.RPAREN, ")"},
		{token.SEMICOLON, ";"},

		{token.IF, "if"},
		{token.LPAREN, "("},
		{token.BANG, "!"},
		{token.NAME, "kSeen"},
		{token.PLUS, "+"},
		{token.RPAREN, ")"},
		{token.NAME, "SetFlag"},
		{token.LPAREN, "("},
		{token.NAME, "kSeen"},
		{token.COMMA, ","},
		{token.TRUE, "true"},
		{token.RPAREN, ")"},
		{token.SEMICOLON, ";"},

		{token.IF, "if"},
		{token.LPAREN, "("},
		{token.RANDOM, "random"},
		{token.LPAREN, "("},
		{token.NUMBER, "40"},
		{token.PERCENT, "%"},
		{token.RPAREN, ")"},
		{token.LTE, "<="},
		{token.NUMBER, "3"},
		{token.ILLEGAL, "illegal character '&'"},
		{token.ILLEGAL, "illegal character '&'"},
		{token.NAME, "x"},
		{token.RPAREN, ")"},
		{token.LBRACE, "{"},
		{token.RBRACE, "}"},
		{token.RBRACE, "}"},
		{token.EOF, ""},
	}

	l := New(input)

	for i, tt := range tests {
		tok := l.NextToken()

		if tok.Type != tt.expectedType {
			t.Fatalf("tests[%d] - tokentype wrong. expected=%q, got=%q (%q)",
				i, tt.expectedType, tok.Type, tok.Literal)
		}

		if tok.Literal != tt.expectedLiteral {
			t.Fatalf("tests[%d] - literal wrong. expected=%q, got=%q",
				i, tt.expectedLiteral, tok.Literal)
		}
	}

	if len(l.Errors()) != 2 {
		t.Errorf("expected 2 lexer errors, got %d", len(l.Errors()))
	}
}

func TestTokenPositions(t *testing.T) {
	toks, errs := Tokenize("setting A {\n  goto B;\n}")
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	want := []struct {
		typ          token.TokenType
		line, column int
	}{
		{token.SETTING, 1, 1},
		{token.NAME, 1, 9},
		{token.LBRACE, 1, 11},
		{token.GOTO, 2, 3},
		{token.NAME, 2, 8},
		{token.SEMICOLON, 2, 9},
		{token.RBRACE, 3, 1},
		{token.EOF, 3, 2},
	}
	if len(toks) != len(want) {
		t.Fatalf("expected %d tokens, got %d", len(want), len(toks))
	}
	for i, w := range want {
		if toks[i].Type != w.typ || toks[i].Line != w.line || toks[i].Column != w.column {
			t.Errorf("token %d: got %s at %d:%d, want %s at %d:%d",
				i, toks[i].Type, toks[i].Line, toks[i].Column, w.typ, w.line, w.column)
		}
	}
}

func TestUnterminatedString(t *testing.T) {
	toks, errs := Tokenize("Sound(\"door.wav);\nx")
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %d", len(errs))
	}
	if errs[0].Line != 1 || errs[0].Column != 7 {
		t.Errorf("error position = %d:%d, want 1:7", errs[0].Line, errs[0].Column)
	}
	if toks[2].Type != token.ILLEGAL {
		t.Errorf("expected ILLEGAL token, got %s", toks[2].Type)
	}
}

func TestKeywordsAreCaseInsensitive(t *testing.T) {
	for _, src := range []string{"setting", "SETTING", "Setting"} {
		toks, _ := Tokenize(src)
		if toks[0].Type != token.SETTING {
			t.Errorf("%q: expected SETTING, got %s", src, toks[0].Type)
		}
	}
}

func TestMinusWithoutDigitIsIllegal(t *testing.T) {
	_, errs := Tokenize("x - 1")
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %d", len(errs))
	}
}
