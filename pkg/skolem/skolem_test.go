package skolem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kifreason/kifreason/pkg/term"
	"github.com/kifreason/kifreason/pkg/unify"
)

func TestSkolemizeConstantWhenNoFreeVars(t *testing.T) {
	s := New()
	k := term.NewVar("?k")
	body := term.NewList(
		term.NewAtom("and"),
		term.NewList(term.NewAtom("instance"), k, term.NewAtom("Kitten")),
		term.NewList(term.NewAtom("owner"), k, term.NewAtom("Alice")),
	)
	form := term.NewList(term.NewAtom("exists"), k, body)

	result, err := s.Skolemize(form, unify.Empty())
	require.NoError(t, err)

	l, ok := result.(*term.List)
	require.True(t, ok)
	require.Equal(t, 3, l.Len())

	clause1 := l.Get(1).(*term.List)
	clause2 := l.Get(2).(*term.List)
	skolemConst1 := clause1.Get(1)
	skolemConst2 := clause2.Get(1)

	assert.True(t, skolemConst1.Equal(skolemConst2), "both occurrences of ?k should become the same Skolem constant")
	a, ok := skolemConst1.(*term.Atom)
	require.True(t, ok)
	assert.Contains(t, a.Value(), "skc_k_")
	assert.True(t, result.ContainsSkolemTerm())
}

func TestSkolemizeFunctionWithFreeVars(t *testing.T) {
	s := New()
	x := term.NewVar("?x")
	y := term.NewVar("?y")
	body := term.NewList(term.NewAtom("related"), x, y)
	form := term.NewList(term.NewAtom("exists"), y, body)

	result, err := s.Skolemize(form, unify.Empty())
	require.NoError(t, err)

	l := result.(*term.List)
	skolemFunc, ok := l.Get(2).(*term.List)
	require.True(t, ok)
	head, ok := skolemFunc.OperatorAtom()
	require.True(t, ok)
	assert.Contains(t, head.Value(), "skf_y_")
	assert.Equal(t, 2, skolemFunc.Len())
	assert.True(t, skolemFunc.Get(1).Equal(x))
}

func TestSkolemizeListOfVars(t *testing.T) {
	s := New()
	x := term.NewVar("?x")
	y := term.NewVar("?y")
	body := term.NewList(term.NewAtom("p"), x, y)
	form := term.NewList(term.NewAtom("exists"), term.NewList(x, y), body)

	result, err := s.Skolemize(form, unify.Empty())
	require.NoError(t, err)
	assert.False(t, result.ContainsVariable())
}

func TestSkolemizeRejectsWrongOperator(t *testing.T) {
	s := New()
	form := term.NewList(term.NewAtom("forall"), term.NewVar("?x"), term.NewAtom("A"))
	_, err := s.Skolemize(form, unify.Empty())
	assert.Error(t, err)
}

func TestSkolemizeProducesFreshNamesAcrossCalls(t *testing.T) {
	s := New()
	k := term.NewVar("?k")
	form := func() *term.List {
		return term.NewList(term.NewAtom("exists"), k, term.NewList(term.NewAtom("p"), k))
	}
	r1, err := s.Skolemize(form(), unify.Empty())
	require.NoError(t, err)
	r2, err := s.Skolemize(form(), unify.Empty())
	require.NoError(t, err)
	assert.False(t, r1.Equal(r2))
}
