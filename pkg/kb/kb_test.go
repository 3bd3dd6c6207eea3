package kb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kifreason/kifreason/pkg/eventbus"
	"github.com/kifreason/kifreason/pkg/rules"
	"github.com/kifreason/kifreason/pkg/term"
	"github.com/kifreason/kifreason/pkg/tms"
)

func newTestKB(capacity int) (*KB, *eventbus.Bus) {
	bus := eventbus.New(2, nil)
	t := tms.New(bus, nil)
	return New("global", capacity, t, bus, nil), bus
}

func groundPotential(pred, arg string, priority float64) *rules.PotentialAssertion {
	return &rules.PotentialAssertion{
		Kif:      term.NewList(term.NewAtom(pred), term.NewAtom(arg)),
		Priority: priority,
		Kind:     rules.Ground,
	}
}

func TestCommitRejectsTrivialAssertion(t *testing.T) {
	k, bus := newTestKB(10)
	defer bus.Shutdown()

	p := &rules.PotentialAssertion{
		Kif:  term.NewList(term.NewAtom("="), term.NewAtom("A"), term.NewAtom("A")),
		Kind: rules.Ground,
	}
	a, ok := k.CommitAssertion(p, "test")
	assert.False(t, ok)
	assert.Nil(t, a)
	assert.Equal(t, 0, k.Size())
}

func TestCommitRejectsDuplicateKif(t *testing.T) {
	k, bus := newTestKB(10)
	defer bus.Shutdown()

	p := groundPotential("likes", "A", 0.5)
	_, ok := k.CommitAssertion(p, "test")
	require.True(t, ok)

	_, ok2 := k.CommitAssertion(groundPotential("likes", "A", 0.9), "test")
	assert.False(t, ok2)
	assert.Equal(t, 1, k.Size())
}

func TestCommitRejectsSubsumedBySameShapeGeneralization(t *testing.T) {
	k, bus := newTestKB(10)
	defer bus.Shutdown()

	general := &rules.PotentialAssertion{
		Kif:  term.NewList(term.NewAtom("likes"), term.NewVar("?x")),
		Kind: rules.Universal,
	}
	_, ok := k.CommitAssertion(general, "test")
	require.True(t, ok)

	specific := groundPotential("likes", "A", 0.5)
	_, ok2 := k.CommitAssertion(specific, "test")
	assert.False(t, ok2)
}

func TestCommitCoercesGroundWithSkolemTermToSkolemized(t *testing.T) {
	k, bus := newTestKB(10)
	defer bus.Shutdown()

	skolemConst := term.NewAtom("skc_x_1")
	p := &rules.PotentialAssertion{
		Kif:  term.NewList(term.NewAtom("parent"), skolemConst),
		Kind: rules.Ground,
	}
	a, ok := k.CommitAssertion(p, "test")
	require.True(t, ok)
	assert.Equal(t, rules.Skolemized, a.Kind)
}

func TestCapacityTriggersEvictionOfLowestPriority(t *testing.T) {
	k, bus := newTestKB(3)
	defer bus.Shutdown()

	low, ok := k.CommitAssertion(groundPotential("p", "low", 0.1), "test")
	require.True(t, ok)
	_, ok = k.CommitAssertion(groundPotential("p", "mid", 0.5), "test")
	require.True(t, ok)
	_, ok = k.CommitAssertion(groundPotential("p", "high", 0.9), "test")
	require.True(t, ok)
	require.Equal(t, 3, k.Size())

	_, ok = k.CommitAssertion(groundPotential("p", "new", 0.7), "test")
	require.True(t, ok)

	assert.Equal(t, 3, k.Size())
	_, stillThere := k.t.Get(low.ID)
	assert.False(t, stillThere)
}

func TestRetractionRemovesFromPathIndex(t *testing.T) {
	k, bus := newTestKB(10)
	defer bus.Shutdown()

	a, ok := k.CommitAssertion(groundPotential("likes", "A", 0.5), "test")
	require.True(t, ok)

	query := term.NewList(term.NewAtom("likes"), term.NewVar("?x"))
	assert.Contains(t, k.FindUnifiable(query), a.ID)

	k.RetractAssertion(a.ID, "test")
	assert.NotContains(t, k.FindUnifiable(query), a.ID)
	assert.Equal(t, 0, k.Size())
}

func TestUniversalAssertionIndexedUnderEveryReferencedPredicate(t *testing.T) {
	k, bus := newTestKB(10)
	defer bus.Shutdown()

	body := term.NewList(
		term.NewAtom("=>"),
		term.NewList(term.NewAtom("subclass"), term.NewVar("?x"), term.NewVar("?y")),
		term.NewList(term.NewAtom("isa"), term.NewVar("?z"), term.NewVar("?y")),
	)
	p := &rules.PotentialAssertion{Kif: body, Kind: rules.Universal}
	a, ok := k.CommitAssertion(p, "test")
	require.True(t, ok)

	assert.Contains(t, k.FindRelevantUniversals("subclass"), a.ID)
	assert.Contains(t, k.FindRelevantUniversals("isa"), a.ID)
	assert.NotContains(t, k.FindRelevantUniversals("unrelated"), a.ID)
}
