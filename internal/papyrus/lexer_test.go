package papyrus_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anubis-build/anubis/internal/core/domain"
	"github.com/anubis-build/anubis/internal/papyrus"
)

func kinds(toks []papyrus.Token) []papyrus.TokenKind {
	out := make([]papyrus.TokenKind, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}
	return out
}

func TestLex_Punctuation(t *testing.T) {
	toks, err := papyrus.Lex("( ) [ ] { } , = + | => _", "test")
	require.NoError(t, err)
	assert.Equal(t, []papyrus.TokenKind{
		papyrus.LParen, papyrus.RParen,
		papyrus.LBracket, papyrus.RBracket,
		papyrus.LBrace, papyrus.RBrace,
		papyrus.Comma, papyrus.Equals, papyrus.Plus, papyrus.Pipe,
		papyrus.Arrow, papyrus.Underscore,
	}, kinds(toks))
}

func TestLex_IdentifiersAndConstants(t *testing.T) {
	toks, err := papyrus.Lex("cpp_binary true false _ name2 with-dash.dot", "test")
	require.NoError(t, err)
	assert.Equal(t, []papyrus.TokenKind{
		papyrus.Ident, papyrus.True, papyrus.False, papyrus.Underscore,
		papyrus.Ident, papyrus.Ident,
	}, kinds(toks))
	assert.Equal(t, "cpp_binary", toks[0].Text)
	assert.Equal(t, "with-dash.dot", toks[5].Text)
}

func TestLex_Strings(t *testing.T) {
	toks, err := papyrus.Lex(`"plain" "with \"quotes\"" "tab\there" "line\nbreak" "back\\slash"`, "test")
	require.NoError(t, err)
	require.Len(t, toks, 5)
	assert.Equal(t, "plain", toks[0].Text)
	assert.Equal(t, `with "quotes"`, toks[1].Text)
	assert.Equal(t, "tab\there", toks[2].Text)
	assert.Equal(t, "line\nbreak", toks[3].Text)
	assert.Equal(t, `back\slash`, toks[4].Text)
}

func TestLex_Numbers(t *testing.T) {
	toks, err := papyrus.Lex("0 42 -7 3.25 -0.5 1e3 2.5e-2", "test")
	require.NoError(t, err)
	require.Len(t, toks, 7)
	want := []float64{0, 42, -7, 3.25, -0.5, 1000, 0.025}
	for i, w := range want {
		assert.Equal(t, papyrus.Number, toks[i].Kind)
		assert.InDelta(t, w, toks[i].Num, 1e-12)
	}
}

func TestLex_CommentsDiscarded(t *testing.T) {
	src := "alpha # rest of line ignored\nbeta # another\n"
	toks, err := papyrus.Lex(src, "test")
	require.NoError(t, err)
	require.Len(t, toks, 2)
	assert.Equal(t, "alpha", toks[0].Text)
	assert.Equal(t, "beta", toks[1].Text)
}

func TestLex_Positions(t *testing.T) {
	toks, err := papyrus.Lex("a\n  b", "test")
	require.NoError(t, err)
	require.Len(t, toks, 2)
	assert.Equal(t, 1, toks[0].Pos.Line)
	assert.Equal(t, 1, toks[0].Pos.Col)
	assert.Equal(t, 2, toks[1].Pos.Line)
	assert.Equal(t, 3, toks[1].Pos.Col)
	assert.Equal(t, 4, toks[1].Pos.Offset)
}

func TestLex_Errors(t *testing.T) {
	cases := []struct {
		name string
		src  string
	}{
		{"unterminated string", `"no end`},
		{"string broken by newline", "\"split\nhere\""},
		{"invalid escape", `"bad \q escape"`},
		{"lone minus", "-"},
		{"missing fraction digits", "1."},
		{"missing exponent digits", "2e"},
		{"illegal character", "a @ b"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := papyrus.Lex(tc.src, "test")
			assert.ErrorIs(t, err, domain.ErrLex)
		})
	}
}
