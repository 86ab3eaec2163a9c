package scanner_test

import (
	"testing"

	"github.com/buzzcut-s/clocks/lang/scanner"
	"github.com/buzzcut-s/clocks/lang/token"
	"github.com/stretchr/testify/require"
)

func kinds(toks []token.Token) []token.Kind {
	out := make([]token.Kind, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}
	return out
}

func TestScanPunctuationAndOperators(t *testing.T) {
	s := scanner.New("test", []byte("(){},.-+;*!= == <= >= < >"))
	toks := s.ScanTokens()
	require.Equal(t, []token.Kind{
		token.LPAREN, token.RPAREN, token.LBRACE, token.RBRACE, token.COMMA,
		token.DOT, token.MINUS, token.PLUS, token.SEMI, token.STAR,
		token.BANG_EQ, token.EQ_EQ, token.LT_EQ, token.GT_EQ, token.LT, token.GT,
		token.EOF,
	}, kinds(toks))
}

func TestScanKeywordsAndIdentifiers(t *testing.T) {
	s := scanner.New("test", []byte("class fun var orchid"))
	toks := s.ScanTokens()
	require.Equal(t, []token.Kind{token.CLASS, token.FUN, token.VAR, token.IDENT, token.EOF}, kinds(toks))
	require.Equal(t, "orchid", toks[3].Lexeme)
}

func TestScanNumbers(t *testing.T) {
	s := scanner.New("test", []byte("123 45.67 89."))
	toks := s.ScanTokens()
	require.Equal(t, "123", toks[0].Lexeme)
	require.Equal(t, token.NUMBER, toks[0].Kind)
	require.Equal(t, "45.67", toks[1].Lexeme)
	require.Equal(t, token.NUMBER, toks[2].Kind)
	require.Equal(t, "89", toks[2].Lexeme)
	require.Equal(t, token.DOT, toks[3].Kind)
}

func TestScanString(t *testing.T) {
	s := scanner.New("test", []byte(`"hello world"`))
	toks := s.ScanTokens()
	require.Equal(t, token.STRING, toks[0].Kind)
	require.Equal(t, "hello world", toks[0].Lexeme)
}

func TestScanUnterminatedStringYieldsIllegalToken(t *testing.T) {
	s := scanner.New("test", []byte(`"hello`))
	toks := s.ScanTokens()
	require.Equal(t, token.ILLEGAL, toks[0].Kind)
	require.Equal(t, "Unterminated string.", toks[0].Lexeme)
	require.Equal(t, token.EOF, toks[1].Kind)
}

func TestScanSkipsLineComments(t *testing.T) {
	s := scanner.New("test", []byte("var x = 1; // a comment\nvar y = 2;"))
	toks := s.ScanTokens()
	require.Equal(t, []token.Kind{
		token.VAR, token.IDENT, token.EQ, token.NUMBER, token.SEMI,
		token.VAR, token.IDENT, token.EQ, token.NUMBER, token.SEMI,
		token.EOF,
	}, kinds(toks))
}

func TestScanTracksLineNumbers(t *testing.T) {
	s := scanner.New("test", []byte("var x = 1;\nvar y = 2;"))
	toks := s.ScanTokens()
	require.Equal(t, 1, toks[0].Line)
	require.Equal(t, 2, toks[5].Line)
}

func TestScanIllegalCharacterYieldsIllegalToken(t *testing.T) {
	s := scanner.New("test", []byte("var x = @;"))
	toks := s.ScanTokens()
	require.Equal(t, []token.Kind{token.VAR, token.IDENT, token.EQ, token.ILLEGAL, token.SEMI, token.EOF}, kinds(toks))
	require.Equal(t, "Unexpected character.", toks[3].Lexeme)
}

func TestScanDoesNotStopAtIllegalTokens(t *testing.T) {
	s := scanner.New("test", []byte("@ # var x = 1;"))
	toks := s.ScanTokens()
	require.Equal(t, token.ILLEGAL, toks[0].Kind)
	require.Equal(t, token.ILLEGAL, toks[1].Kind)
	require.Equal(t, []token.Kind{token.VAR, token.IDENT, token.EQ, token.NUMBER, token.SEMI, token.EOF}, kinds(toks[2:]))
}
