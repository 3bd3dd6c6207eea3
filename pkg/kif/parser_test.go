package kif

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kifreason/kifreason/pkg/term"
)

func mustParseOne(t *testing.T, s string) term.Term {
	t.Helper()
	tm, err := ParseOne(s)
	require.NoError(t, err)
	return tm
}

func TestParseAtom(t *testing.T) {
	tm := mustParseOne(t, "Dog")
	a, ok := tm.(*term.Atom)
	require.True(t, ok)
	assert.Equal(t, "Dog", a.Value())
}

func TestParseQuotedAtom(t *testing.T) {
	tm := mustParseOne(t, `"hello world"`)
	a, ok := tm.(*term.Atom)
	require.True(t, ok)
	assert.Equal(t, "hello world", a.Value())
}

func TestParseEscapes(t *testing.T) {
	tm := mustParseOne(t, `"a\nb\tc\\d\"e"`)
	a := tm.(*term.Atom)
	assert.Equal(t, "a\nb\tc\\d\"e", a.Value())
}

func TestParseVariable(t *testing.T) {
	tm := mustParseOne(t, "?x")
	v, ok := tm.(*term.Var)
	require.True(t, ok)
	assert.Equal(t, "?x", v.Name())
}

func TestParseEmptyVariableFails(t *testing.T) {
	_, err := ParseOne("(p ? q)")
	require.Error(t, err)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
}

func TestParseList(t *testing.T) {
	tm := mustParseOne(t, "(instance Dog Mammal)")
	l, ok := tm.(*term.List)
	require.True(t, ok)
	assert.Equal(t, 3, l.Len())
	op, _ := l.Operator()
	assert.Equal(t, "instance", op)
}

func TestParseComment(t *testing.T) {
	terms, err := ParseAll(strings.NewReader("; a comment\n(p A)\n"))
	require.NoError(t, err)
	require.Len(t, terms, 1)
}

func TestParseUnterminatedListFails(t *testing.T) {
	_, err := ParseOne("(p A")
	require.Error(t, err)
}

func TestParseUnterminatedStringFails(t *testing.T) {
	_, err := ParseOne(`(p "A)`)
	require.Error(t, err)
}

func TestParseMultipleTopLevelTerms(t *testing.T) {
	terms, err := ParseAll(strings.NewReader("(p A) (q B) ?x"))
	require.NoError(t, err)
	require.Len(t, terms, 3)
}

func TestParseAllEOF(t *testing.T) {
	_, err := ParseAll(strings.NewReader(""))
	require.NoError(t, err)
}

func TestRoundTrip(t *testing.T) {
	cases := []term.Term{
		term.NewAtom("Dog"),
		term.NewAtom("has space"),
		term.NewAtom(""),
		term.NewVar("?x"),
		term.NewList(term.NewAtom("instance"), term.NewAtom("Dog"), term.NewAtom("Mammal")),
		term.NewList(term.NewAtom("p"), term.NewVar("?x"), term.NewAtom("a b")),
	}
	for _, want := range cases {
		printed := want.String()
		got, err := ParseOne(printed)
		require.NoError(t, err, "printed form: %s", printed)
		assert.True(t, want.Equal(got), "roundtrip mismatch: %s != %s", want, got)
	}
}

func TestNextReturnsEOFAtEnd(t *testing.T) {
	p := NewParser(strings.NewReader("A"))
	_, err := p.Next()
	require.NoError(t, err)
	_, err = p.Next()
	require.ErrorIs(t, err, io.EOF)
}
