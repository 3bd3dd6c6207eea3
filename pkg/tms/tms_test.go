package tms

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kifreason/kifreason/pkg/eventbus"
	"github.com/kifreason/kifreason/pkg/events"
	"github.com/kifreason/kifreason/pkg/rules"
	"github.com/kifreason/kifreason/pkg/term"
)

func groundAssertion(id, kbID string, kif term.Term) *rules.Assertion {
	return &rules.Assertion{ID: id, Kif: kif, KBID: kbID, Kind: rules.Ground, IsActive: true}
}

func newTestTMS() (*TMS, *eventbus.Bus) {
	bus := eventbus.New(2, nil)
	return New(bus, nil), bus
}

func TestAddAssertionWithoutSupportPublishesAdded(t *testing.T) {
	tm, bus := newTestTMS()
	defer bus.Shutdown()

	var wg sync.WaitGroup
	wg.Add(1)
	bus.Subscribe(events.AssertionAdded{}, func(e interface{}) { wg.Done() })

	a := groundAssertion("fact_1", "global", term.NewList(term.NewAtom("p"), term.NewAtom("A")))
	ok := tm.AddAssertion(a, nil)
	require.True(t, ok)
	waitFor(t, &wg)

	got, found := tm.Get("fact_1")
	require.True(t, found)
	assert.True(t, got.IsActive)
}

func TestAddAssertionRejectsDuplicateID(t *testing.T) {
	tm, bus := newTestTMS()
	defer bus.Shutdown()

	a := groundAssertion("fact_1", "global", term.NewAtom("A"))
	require.True(t, tm.AddAssertion(a, nil))
	assert.False(t, tm.AddAssertion(a, nil))
}

func TestAddAssertionRejectsMissingSupporter(t *testing.T) {
	tm, bus := newTestTMS()
	defer bus.Shutdown()

	a := groundAssertion("fact_1", "global", term.NewAtom("A"))
	ok := tm.AddAssertion(a, map[string]bool{"does-not-exist": true})
	assert.False(t, ok)
}

func TestRetractCascadesInactivation(t *testing.T) {
	tm, bus := newTestTMS()
	defer bus.Shutdown()

	var mu sync.Mutex
	statusChanges := map[string]bool{}
	var wg sync.WaitGroup
	wg.Add(2)
	bus.SubscribePattern(func(e interface{}) bool {
		_, ok := e.(events.AssertionStatusChanged)
		return ok
	}, func(e interface{}) {
		sc := e.(events.AssertionStatusChanged)
		mu.Lock()
		statusChanges[sc.ID] = sc.IsActive
		mu.Unlock()
		wg.Done()
	})

	p := groundAssertion("p_1", "global", term.NewList(term.NewAtom("p"), term.NewAtom("A")))
	require.True(t, tm.AddAssertion(p, nil))

	q := groundAssertion("q_1", "global", term.NewList(term.NewAtom("q"), term.NewAtom("A")))
	require.True(t, tm.AddAssertion(q, map[string]bool{"p_1": true}))

	r := groundAssertion("r_1", "global", term.NewList(term.NewAtom("r"), term.NewAtom("A")))
	require.True(t, tm.AddAssertion(r, map[string]bool{"q_1": true}))

	tm.RetractAssertion("p_1", "test")
	waitFor(t, &wg)

	mu.Lock()
	defer mu.Unlock()
	assert.False(t, statusChanges["q_1"])
	assert.False(t, statusChanges["r_1"])

	qStored, _ := tm.Get("q_1")
	assert.False(t, qStored.IsActive)
	rStored, _ := tm.Get("r_1")
	assert.False(t, rStored.IsActive)
}

func TestUpdateStatusReactivatesWhenSupportersReturn(t *testing.T) {
	tm, bus := newTestTMS()
	defer bus.Shutdown()

	p := groundAssertion("p_2", "global", term.NewAtom("P"))
	require.True(t, tm.AddAssertion(p, nil))
	q := groundAssertion("q_2", "global", term.NewAtom("Q"))
	require.True(t, tm.AddAssertion(q, map[string]bool{"p_2": true}))

	tm.mu.Lock()
	p.IsActive = false
	tm.assertions["p_2"] = p
	visited := map[string]bool{}
	tm.updateStatus("q_2", visited)
	tm.mu.Unlock()

	got, _ := tm.Get("q_2")
	assert.False(t, got.IsActive)

	tm.mu.Lock()
	p.IsActive = true
	tm.assertions["p_2"] = p
	visited2 := map[string]bool{}
	tm.updateStatus("q_2", visited2)
	tm.mu.Unlock()

	got2, _ := tm.Get("q_2")
	assert.True(t, got2.IsActive)
}

func TestContradictionDetectedOnOppositeAssertions(t *testing.T) {
	tm, bus := newTestTMS()
	defer bus.Shutdown()

	var wg sync.WaitGroup
	wg.Add(1)
	var seen events.ContradictionDetected
	bus.Subscribe(events.ContradictionDetected{}, func(e interface{}) {
		seen = e.(events.ContradictionDetected)
		wg.Done()
	})

	alive := groundAssertion("alive_1", "global", term.NewList(term.NewAtom("alive"), term.NewAtom("Socrates")))
	require.True(t, tm.AddAssertion(alive, nil))

	notAlive := &rules.Assertion{
		ID:        "not_alive_1",
		Kif:       term.NewList(term.NewAtom("not"), term.NewList(term.NewAtom("alive"), term.NewAtom("Socrates"))),
		KBID:      "global",
		IsNegated: true,
		IsActive:  true,
	}
	require.True(t, tm.AddAssertion(notAlive, nil))
	waitFor(t, &wg)

	assert.ElementsMatch(t, []string{seen.AssertionID, seen.OppositeID}, []string{"alive_1", "not_alive_1"})
}

func waitFor(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event dispatch")
	}
}
