package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kifreason/kifreason/pkg/term"
)

func list(elems ...term.Term) *term.List { return term.NewList(elems...) }
func atom(v string) *term.Atom           { return term.NewAtom(v) }

func TestNewRuleSingleClause(t *testing.T) {
	form := list(atom("=>"),
		list(atom("dog"), term.NewVar("?x")),
		list(atom("mammal"), term.NewVar("?x")),
	)
	r, err := NewRule("rule_1", form, 1.0)
	require.NoError(t, err)
	require.Len(t, r.Antecedents, 1)
	assert.False(t, r.Antecedents[0].Negated)
}

func TestNewRuleConjunction(t *testing.T) {
	form := list(atom("=>"),
		list(atom("and"),
			list(atom("subclass"), term.NewVar("?x"), term.NewVar("?y")),
			list(atom("subclass"), term.NewVar("?y"), term.NewVar("?z")),
		),
		list(atom("subclass"), term.NewVar("?x"), term.NewVar("?z")),
	)
	r, err := NewRule("rule_2", form, 1.0)
	require.NoError(t, err)
	assert.Len(t, r.Antecedents, 2)
}

func TestNewRuleTrueAntecedent(t *testing.T) {
	form := list(atom("=>"), atom("true"), list(atom("fact"), atom("A")))
	r, err := NewRule("rule_3", form, 1.0)
	require.NoError(t, err)
	assert.Empty(t, r.Antecedents)
}

func TestNewRuleNegatedClause(t *testing.T) {
	form := list(atom("=>"),
		list(atom("not"), list(atom("p"), term.NewVar("?x"))),
		list(atom("q"), term.NewVar("?x")),
	)
	r, err := NewRule("rule_4", form, 1.0)
	require.NoError(t, err)
	require.Len(t, r.Antecedents, 1)
	assert.True(t, r.Antecedents[0].Negated)
}

func TestNewRuleRejectsWrongOperator(t *testing.T) {
	form := list(atom("and"), list(atom("p"), atom("A")), list(atom("q"), atom("A")))
	_, err := NewRule("rule_5", form, 1.0)
	assert.Error(t, err)
}

func TestNewRuleRejectsBadArity(t *testing.T) {
	form := list(atom("=>"), list(atom("p"), atom("A")))
	_, err := NewRule("rule_6", form, 1.0)
	assert.Error(t, err)
}

func TestRuleEqualByFormOnly(t *testing.T) {
	form1 := list(atom("=>"), list(atom("p"), term.NewVar("?x")), list(atom("q"), term.NewVar("?x")))
	form2 := list(atom("=>"), list(atom("p"), term.NewVar("?x")), list(atom("q"), term.NewVar("?x")))
	r1, _ := NewRule("rule_a", form1, 1.0)
	r2, _ := NewRule("rule_b", form2, 5.0)
	assert.True(t, r1.Equal(r2))
	assert.Equal(t, r1.FormKey(), r2.FormKey())
}

func TestAssertionOrdering(t *testing.T) {
	active := &Assertion{IsActive: true, Priority: 0.5, DerivationDepth: 2, Timestamp: 1}
	inactive := &Assertion{IsActive: false, Priority: 0.9, DerivationDepth: 1, Timestamp: 2}
	assert.True(t, Less(active, inactive))

	higherPriority := &Assertion{IsActive: true, Priority: 0.9, DerivationDepth: 3, Timestamp: 1}
	lowerPriority := &Assertion{IsActive: true, Priority: 0.2, DerivationDepth: 1, Timestamp: 5}
	assert.True(t, Less(higherPriority, lowerPriority))

	shallower := &Assertion{IsActive: true, Priority: 0.5, DerivationDepth: 1, Timestamp: 1}
	deeper := &Assertion{IsActive: true, Priority: 0.5, DerivationDepth: 4, Timestamp: 9}
	assert.True(t, Less(shallower, deeper))

	newer := &Assertion{IsActive: true, Priority: 0.5, DerivationDepth: 1, Timestamp: 99}
	older := &Assertion{IsActive: true, Priority: 0.5, DerivationDepth: 1, Timestamp: 1}
	assert.True(t, Less(newer, older))
}

func TestPotentialAssertionKeyAndOrientation(t *testing.T) {
	kif := list(atom("="), list(atom("f"), term.NewVar("?x")), term.NewVar("?x"))
	p := &PotentialAssertion{Kif: kif, IsEquality: true}
	assert.Equal(t, kif.String(), p.Key())
	assert.True(t, p.IsOrientedEquality())
}

func TestAssertionEffectiveTermUnwrapsNegation(t *testing.T) {
	inner := list(atom("p"), atom("A"))
	a := &Assertion{Kif: list(atom("not"), inner), IsNegated: true}
	assert.True(t, a.EffectiveTerm().Equal(inner))
}

func TestNewIDIsUniqueAndPrefixed(t *testing.T) {
	id1 := NewID("fact")
	id2 := NewID("fact")
	assert.NotEqual(t, id1, id2)
	assert.Contains(t, id1, "fact_")
}
