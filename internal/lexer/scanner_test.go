package lexer

import "testing"

func scanAll(t *testing.T, src string) []Token {
	t.Helper()
	toks, err := NewScanner(src).ScanTokens()
	if err != nil {
		t.Fatalf("unexpected scan error: %v", err)
	}
	return toks
}

func typesOf(toks []Token) []TokenType {
	var out []TokenType
	for _, tok := range toks {
		out = append(out, tok.Type)
	}
	return out
}

func TestKeywordClosure(t *testing.T) {
	for word, want := range keywords {
		toks := scanAll(t, word)
		if len(toks) < 1 || toks[0].Type != want {
			t.Errorf("keyword %q: expected %s, got %v", word, want, toks)
		}
	}
}

func TestIdentifierNotKeywordPrefixed(t *testing.T) {
	// "forever" starts with the keyword "for" but must scan as one WORD.
	toks := scanAll(t, "forever")
	if len(toks) != 2 || toks[0].Type != TokenWord || toks[0].Lexeme != "forever" {
		t.Fatalf("expected single WORD token, got %v", toks)
	}
}

func TestLongestMatchOperators(t *testing.T) {
	cases := []struct {
		src  string
		want TokenType
	}{
		{"+", TokenPlus}, {"++", TokenPlusPlus}, {"+=", TokenPlusEq},
		{"-", TokenMinus}, {"--", TokenMinusMinus}, {"-=", TokenMinusEq}, {"->", TokenArrow},
		{"=", TokenEqual}, {"==", TokenEqEq}, {"=>", TokenFatArrow},
		{"!", TokenBang}, {"!=", TokenBangEq},
		{">", TokenGT}, {">=", TokenGE}, {"<", TokenLT}, {"<=", TokenLE},
		{"&", TokenAmp}, {"&&", TokenAndAnd}, {"|", TokenPipe}, {"||", TokenOrOr},
		{".", TokenDot}, {"..", TokenDotDot}, {".^", TokenDotCaret},
	}
	for _, c := range cases {
		toks := scanAll(t, c.src)
		if len(toks) < 1 || toks[0].Type != c.want {
			t.Errorf("scanning %q: expected %s, got %v", c.src, c.want, toks)
		}
	}
}

func TestNumberLiterals(t *testing.T) {
	toks := scanAll(t, "42 3.14")
	if len(toks) < 2 || toks[0].Lexeme != "42" || toks[1].Lexeme != "3.14" {
		t.Fatalf("unexpected number tokens: %v", toks)
	}

	_, err := NewScanner("1.2.3").ScanTokens()
	if err == nil {
		t.Fatal("expected error on malformed number with two dots")
	}
}

func TestRangeNotConsumedByNumber(t *testing.T) {
	toks := scanAll(t, "1..3")
	want := []TokenType{TokenNumber, TokenDotDot, TokenNumber, TokenEOF}
	got := typesOf(toks)
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestStringEscaping(t *testing.T) {
	toks := scanAll(t, `"hello \"world\""`)
	if toks[0].Type != TokenString || toks[0].Lexeme != `hello "world"` {
		t.Fatalf("unexpected escaped string token: %+v", toks[0])
	}

	_, err := NewScanner(`"unterminated`).ScanTokens()
	if err == nil {
		t.Fatal("expected error on unterminated string")
	}
}

func TestNewlineConventions(t *testing.T) {
	for _, src := range []string{"a\nb", "a\r\nb", "a\rb"} {
		toks := scanAll(t, src)
		var newlines int
		for _, tok := range toks {
			if tok.Type == TokenNewline {
				newlines++
			}
		}
		if newlines != 1 {
			t.Errorf("source %q: expected exactly 1 newline token, got %d (%v)", src, newlines, toks)
		}
	}
}

func TestIllegalCharacter(t *testing.T) {
	_, err := NewScanner("$").ScanTokens()
	if err == nil {
		t.Fatal("expected error on illegal character")
	}
}
