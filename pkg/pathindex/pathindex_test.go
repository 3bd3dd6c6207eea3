package pathindex

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kifreason/kifreason/pkg/term"
)

func TestAddFindUnifiableExactMatch(t *testing.T) {
	idx := New()
	fact := term.NewList(term.NewAtom("instance"), term.NewAtom("Dog"), term.NewAtom("Mammal"))
	idx.Add("fact_1", fact)

	query := term.NewList(term.NewAtom("instance"), term.NewAtom("Dog"), term.NewAtom("Mammal"))
	got := idx.FindUnifiable(query)
	assert.True(t, got["fact_1"])
}

func TestFindUnifiableWithQueryVariable(t *testing.T) {
	idx := New()
	fact := term.NewList(term.NewAtom("instance"), term.NewAtom("Dog"), term.NewAtom("Mammal"))
	idx.Add("fact_1", fact)

	query := term.NewList(term.NewAtom("instance"), term.NewVar("?x"), term.NewAtom("Mammal"))
	got := idx.FindUnifiable(query)
	assert.True(t, got["fact_1"])
}

func TestFindUnifiableDifferentOperatorExcluded(t *testing.T) {
	idx := New()
	fact := term.NewList(term.NewAtom("instance"), term.NewAtom("Dog"), term.NewAtom("Mammal"))
	idx.Add("fact_1", fact)

	query := term.NewList(term.NewAtom("subclass"), term.NewAtom("Dog"), term.NewAtom("Mammal"))
	got := idx.FindUnifiable(query)
	assert.False(t, got["fact_1"])
}

func TestFindInstancesVariablePatternMatchesAll(t *testing.T) {
	idx := New()
	fact := term.NewList(term.NewAtom("instance"), term.NewAtom("Dog"), term.NewAtom("Mammal"))
	idx.Add("fact_1", fact)

	got := idx.FindInstances(term.NewVar("?q"))
	assert.True(t, got["fact_1"])
}

func TestFindGeneralizationsMatchesStoredVariable(t *testing.T) {
	idx := New()
	rule := term.NewList(term.NewAtom("instance"), term.NewVar("?x"), term.NewAtom("Mammal"))
	idx.Add("rule_1", rule)

	query := term.NewList(term.NewAtom("instance"), term.NewAtom("Dog"), term.NewAtom("Mammal"))
	got := idx.FindGeneralizations(query)
	assert.True(t, got["rule_1"])
}

func TestRemovePrunesEmptyNodes(t *testing.T) {
	idx := New()
	fact := term.NewList(term.NewAtom("instance"), term.NewAtom("Dog"), term.NewAtom("Mammal"))
	idx.Add("fact_1", fact)
	idx.Remove("fact_1", fact)

	got := idx.FindUnifiable(fact)
	assert.False(t, got["fact_1"])
	assert.Empty(t, idx.root.children)
}

func TestMultipleFactsShareTrie(t *testing.T) {
	idx := New()
	f1 := term.NewList(term.NewAtom("instance"), term.NewAtom("Dog"), term.NewAtom("Mammal"))
	f2 := term.NewList(term.NewAtom("instance"), term.NewAtom("Cat"), term.NewAtom("Mammal"))
	idx.Add("fact_1", f1)
	idx.Add("fact_2", f2)

	query := term.NewList(term.NewAtom("instance"), term.NewVar("?x"), term.NewAtom("Mammal"))
	got := idx.FindUnifiable(query)
	assert.True(t, got["fact_1"])
	assert.True(t, got["fact_2"])

	idx.Remove("fact_1", f1)
	got2 := idx.FindUnifiable(query)
	assert.False(t, got2["fact_1"])
	assert.True(t, got2["fact_2"])
}

func TestFindUnifiableAtomQuery(t *testing.T) {
	idx := New()
	idx.Add("fact_1", term.NewAtom("Dog"))
	got := idx.FindUnifiable(term.NewAtom("Dog"))
	assert.True(t, got["fact_1"])
	got2 := idx.FindUnifiable(term.NewAtom("Cat"))
	assert.False(t, got2["fact_1"])
}
