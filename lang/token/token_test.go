package token_test

import (
	"testing"

	"github.com/buzzcut-s/clocks/lang/token"
	"github.com/stretchr/testify/require"
)

func TestLookupIdent(t *testing.T) {
	cases := []struct {
		lexeme string
		want   token.Kind
	}{
		{"and", token.AND},
		{"class", token.CLASS},
		{"while", token.WHILE},
		{"this", token.THIS},
		{"a", token.IDENT},
		{"classy", token.IDENT},
		{"", token.IDENT},
	}
	for _, c := range cases {
		require.Equal(t, c.want, token.LookupIdent(c.lexeme), "lexeme %q", c.lexeme)
	}
}

func TestKindString(t *testing.T) {
	require.Equal(t, "and", token.AND.String())
	require.Equal(t, "(", token.LPAREN.String())
	require.Equal(t, "illegal token", token.ILLEGAL.String())
}

func TestKindGoString(t *testing.T) {
	require.Equal(t, "'and'", token.AND.GoString())
	require.Equal(t, "'('", token.LPAREN.GoString())
	require.Equal(t, "identifier", token.IDENT.GoString())
}
