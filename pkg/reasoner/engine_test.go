package reasoner

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kifreason/kifreason/pkg/eventbus"
	"github.com/kifreason/kifreason/pkg/events"
	"github.com/kifreason/kifreason/pkg/kif"
	"github.com/kifreason/kifreason/pkg/rules"
	"github.com/kifreason/kifreason/pkg/term"
)

func newTestEngine(t *testing.T) (*Engine, *eventbus.Bus) {
	t.Helper()
	bus := eventbus.New(4, nil)
	cfg := DefaultConfig()
	cfg.KBSize = 1000
	return NewEngine(cfg, bus, nil), bus
}

func parseOne(t *testing.T, src string) term.Term {
	t.Helper()
	parsed, err := kif.ParseOne(src)
	require.NoError(t, err)
	return parsed
}

// awaitAssertion blocks until an active AssertionAdded matching kif is
// seen on bus, or the test times out.
func awaitAssertion(t *testing.T, bus *eventbus.Bus, kif string, timeout time.Duration) *rules.Assertion {
	t.Helper()
	found := make(chan *rules.Assertion, 1)
	bus.Subscribe(events.AssertionAdded{}, func(event interface{}) {
		e := event.(events.AssertionAdded)
		if e.Assertion.Kif.String() == kif {
			select {
			case found <- e.Assertion:
			default:
			}
		}
	})
	select {
	case a := <-found:
		return a
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for assertion %q", kif)
		return nil
	}
}

func TestEndToEndTransitiveSubclass(t *testing.T) {
	eng, bus := newTestEngine(t)
	defer bus.Shutdown()

	eng.Submit(parseOne(t, "(=> (and (subclass ?x ?y) (subclass ?y ?z)) (subclass ?x ?z))"), "test", "")
	eng.Submit(parseOne(t, "(subclass Dog Mammal)"), "test", "")
	eng.Submit(parseOne(t, "(subclass Mammal Animal)"), "test", "")

	derived := awaitAssertion(t, bus, "(subclass Dog Animal)", 2*time.Second)
	assert.True(t, derived.IsActive)
	assert.Equal(t, 1, derived.DerivationDepth)
}

func TestEndToEndExistentialSkolemization(t *testing.T) {
	eng, bus := newTestEngine(t)
	defer bus.Shutdown()

	var wg sync.WaitGroup
	wg.Add(2)
	var mu sync.Mutex
	var instanceClause, ownerClause *term.List
	bus.Subscribe(events.AssertionAdded{}, func(event interface{}) {
		e := event.(events.AssertionAdded)
		l, ok := e.Assertion.Kif.(*term.List)
		if !ok {
			return
		}
		op, has := l.Operator()
		if !has {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		switch op {
		case "instance":
			if instanceClause == nil {
				instanceClause = l
				wg.Done()
			}
		case "owner":
			if ownerClause == nil {
				ownerClause = l
				wg.Done()
			}
		}
	})

	eng.Submit(parseOne(t, "(exists (?k) (and (instance ?k Kitten) (owner ?k Alice)))"), "test", "")
	waitGroupTimeout(t, &wg, 2*time.Second)

	mu.Lock()
	defer mu.Unlock()
	require.NotNil(t, instanceClause)
	require.NotNil(t, ownerClause)
	assert.False(t, instanceClause.ContainsVariable())
	assert.False(t, ownerClause.ContainsVariable())
	assert.Equal(t, instanceClause.Get(1).String(), ownerClause.Get(1).String())
}

func TestEndToEndContradictionDetected(t *testing.T) {
	eng, bus := newTestEngine(t)
	defer bus.Shutdown()

	var wg sync.WaitGroup
	wg.Add(1)
	bus.Subscribe(events.ContradictionDetected{}, func(event interface{}) { wg.Done() })

	eng.Submit(parseOne(t, "(alive Socrates)"), "test", "")
	eng.Submit(parseOne(t, "(not (alive Socrates))"), "test", "")

	waitGroupTimeout(t, &wg, 2*time.Second)
}

func TestEndToEndRetractionCascade(t *testing.T) {
	eng, bus := newTestEngine(t)
	defer bus.Shutdown()

	eng.Submit(parseOne(t, "(=> (p ?x) (q ?x))"), "test", "")
	eng.Submit(parseOne(t, "(p A)"), "test", "")

	derived := awaitAssertion(t, bus, "(q A)", 2*time.Second)

	var wg sync.WaitGroup
	wg.Add(1)
	bus.Subscribe(events.AssertionStatusChanged{}, func(event interface{}) {
		e := event.(events.AssertionStatusChanged)
		if e.ID == derived.ID && !e.IsActive {
			wg.Done()
		}
	})

	eng.Retract(events.RetractRequest{Kind: events.RetractByID, ID: findIDForKif(eng, "(p A)"), Source: "test"})
	waitGroupTimeout(t, &wg, 2*time.Second)
}

func TestEndToEndBackwardChainingArithmeticAndFacts(t *testing.T) {
	eng, bus := newTestEngine(t)
	defer bus.Shutdown()

	eng.Submit(parseOne(t, "(foo A)"), "test", "")
	time.Sleep(50 * time.Millisecond)

	results := make(chan events.QueryResult, 2)
	bus.Subscribe(events.QueryResult{}, func(event interface{}) {
		results <- event.(events.QueryResult)
	})

	eng.Query(events.QueryRequest{QueryID: "q1", Kind: events.AskBindings, Goal: parseOne(t, "(foo ?x)"), KBID: ""})
	r1 := waitResult(t, results, 2*time.Second)
	assert.Equal(t, events.StatusSuccess, r1.Status)
	require.Len(t, r1.Bindings, 1)
	assert.Equal(t, "A", r1.Bindings[0]["?x"])

	eng.Query(events.QueryRequest{QueryID: "q2", Kind: events.AskBindings, Goal: parseOne(t, "(foo B)"), KBID: ""})
	r2 := waitResult(t, results, 2*time.Second)
	assert.Equal(t, events.StatusFailure, r2.Status)
}

func TestEndToEndBackwardChainingEqualityEvaluatesNestedOperator(t *testing.T) {
	eng, bus := newTestEngine(t)
	defer bus.Shutdown()

	results := make(chan events.QueryResult, 1)
	bus.Subscribe(events.QueryResult{}, func(event interface{}) {
		results <- event.(events.QueryResult)
	})

	eng.Query(events.QueryRequest{QueryID: "q1", Kind: events.AskBindings, Goal: parseOne(t, "(= ?y (+ 2 3))"), KBID: ""})
	r := waitResult(t, results, 2*time.Second)
	assert.Equal(t, events.StatusSuccess, r.Status)
	require.Len(t, r.Bindings, 1)
	assert.Equal(t, "5", r.Bindings[0]["?y"])
}

func waitResult(t *testing.T, ch chan events.QueryResult, timeout time.Duration) events.QueryResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(timeout):
		t.Fatal("timed out waiting for query result")
		return events.QueryResult{}
	}
}

func waitGroupTimeout(t *testing.T, wg *sync.WaitGroup, timeout time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		t.Fatal("timed out waiting for event")
	}
}

// findIDForKif is a test-only helper that scans the global KB's active
// assertions for one whose printed kif equals want.
func findIDForKif(eng *Engine, want string) string {
	for id := range eng.Context.global.FindUnifiable(term.NewVar("?__scan")) {
		if a, ok := eng.Context.tms.Get(id); ok && a.Kif.String() == want {
			return id
		}
	}
	return ""
}
