package unify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kifreason/kifreason/pkg/term"
)

func TestUnifyReflexive(t *testing.T) {
	x := term.NewAtom("A")
	b, ok := Unify(x, x, Empty())
	require.True(t, ok)
	assert.Empty(t, b)
}

func TestUnifySymmetric(t *testing.T) {
	x := term.NewVar("?x")
	y := term.NewAtom("A")
	b1, ok1 := Unify(x, y, Empty())
	b2, ok2 := Unify(y, x, Empty())
	require.True(t, ok1)
	require.True(t, ok2)
	assert.Equal(t, b1.Walk(x), b2.Walk(x))
}

func TestUnifyBindsBothSidesEqual(t *testing.T) {
	x := term.NewVar("?x")
	y := term.NewAtom("A")
	b, ok := Unify(x, y, Empty())
	require.True(t, ok)
	assert.True(t, Substitute(x, b, true).Equal(Substitute(y, b, true)))
}

func TestOccursCheckFails(t *testing.T) {
	x := term.NewVar("?x")
	fx := term.NewList(term.NewAtom("f"), x)
	_, ok := Unify(x, fx, Empty())
	assert.False(t, ok)
}

func TestUnifyLists(t *testing.T) {
	x := term.NewVar("?x")
	pattern := term.NewList(term.NewAtom("p"), x, term.NewAtom("B"))
	target := term.NewList(term.NewAtom("p"), term.NewAtom("A"), term.NewAtom("B"))
	b, ok := Unify(pattern, target, Empty())
	require.True(t, ok)
	assert.True(t, b.Walk(x).Equal(term.NewAtom("A")))
}

func TestUnifyArityMismatchFails(t *testing.T) {
	a := term.NewList(term.NewAtom("p"), term.NewAtom("A"))
	bTerm := term.NewList(term.NewAtom("p"), term.NewAtom("A"), term.NewAtom("B"))
	_, ok := Unify(a, bTerm, Empty())
	assert.False(t, ok)
}

func TestMatchOnlyPatternVarsBind(t *testing.T) {
	x := term.NewVar("?x")
	y := term.NewVar("?y")
	pattern := term.NewList(term.NewAtom("p"), x)
	target := term.NewList(term.NewAtom("p"), y)
	b, ok := Match(pattern, target, Empty())
	require.True(t, ok)
	assert.True(t, b.Walk(x).Equal(y))
	assert.Nil(t, b.Lookup(y))
}

func TestRewrite(t *testing.T) {
	x := term.NewVar("?x")
	lhs := term.NewList(term.NewAtom("f"), x)
	rhs := x
	target := term.NewList(term.NewAtom("g"), term.NewList(term.NewAtom("f"), term.NewAtom("A")))
	rewritten, ok := Rewrite(target, lhs, rhs)
	require.True(t, ok)
	want := term.NewList(term.NewAtom("g"), term.NewAtom("A"))
	assert.True(t, rewritten.Equal(want))
}

func TestRewriteNoMatch(t *testing.T) {
	x := term.NewVar("?x")
	lhs := term.NewList(term.NewAtom("f"), x)
	rhs := x
	target := term.NewList(term.NewAtom("g"), term.NewAtom("A"))
	_, ok := Rewrite(target, lhs, rhs)
	assert.False(t, ok)
}
