// Package tms implements the justification-based truth maintenance system:
// the single store of record for every assertion, propagating
// (in)activation through a dependents graph and detecting contradictions
// between an assertion and its negation (spec §4.4).
package tms

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/kifreason/kifreason/pkg/eventbus"
	"github.com/kifreason/kifreason/pkg/events"
	"github.com/kifreason/kifreason/pkg/rules"
	"github.com/kifreason/kifreason/pkg/term"
)

// TMS holds every assertion across every KB. KBs hold only ids; the
// assertion data itself lives here (spec §3 "Knowledge Base").
type TMS struct {
	mu sync.Mutex // exclusive lock held across addAssertion/retractAssertion/updateStatus (spec §5)

	assertions     map[string]*rules.Assertion
	justifications map[string]map[string]bool // id -> supporter ids
	dependents     map[string]map[string]bool // supporter id -> dependent ids

	bus *eventbus.Bus
	log logrus.FieldLogger
}

// New returns an empty TMS publishing status events on bus.
func New(bus *eventbus.Bus, log logrus.FieldLogger) *TMS {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &TMS{
		assertions:     make(map[string]*rules.Assertion),
		justifications: make(map[string]map[string]bool),
		dependents:     make(map[string]map[string]bool),
		bus:            bus,
		log:            log,
	}
}

// Get returns the assertion stored under id, if any.
func (t *TMS) Get(id string) (*rules.Assertion, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	a, ok := t.assertions[id]
	return a, ok
}

// AddAssertion stores a under an exclusive lock, rejecting id collisions
// and missing supporters (spec §4.4). support is the literal set of
// supporter ids a was built with; a.IsActive is overwritten with the
// computed initial status (active iff support is empty or every supporter
// is currently active). Returns false if a was rejected.
func (t *TMS) AddAssertion(a *rules.Assertion, support map[string]bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.assertions[a.ID]; exists {
		t.log.WithField("id", a.ID).Warn("tms: rejected assertion, id already exists")
		return false
	}
	for s := range support {
		if _, ok := t.assertions[s]; !ok {
			t.log.WithFields(logrus.Fields{"id": a.ID, "missing_supporter": s}).Warn("tms: rejected assertion, supporter missing")
			return false
		}
	}

	supportCopy := make(map[string]bool, len(support))
	active := true
	for s := range support {
		supportCopy[s] = true
		if t.dependents[s] == nil {
			t.dependents[s] = make(map[string]bool)
		}
		t.dependents[s][a.ID] = true
		if sup := t.assertions[s]; !sup.IsActive {
			active = false
		}
	}
	a.IsActive = active
	a.JustificationIDs = supportCopy
	t.assertions[a.ID] = a
	t.justifications[a.ID] = supportCopy

	if a.IsActive {
		t.bus.Publish(events.AssertionAdded{Assertion: a})
		t.checkContradiction(a)
	} else {
		t.bus.Publish(events.AssertionStatusChanged{ID: a.ID, IsActive: false})
	}
	return true
}

// RetractAssertion removes id from the store, cascading (in)activation
// updates to every assertion that cited it as a supporter (spec §4.4). A
// visited set guards the cascade against cyclic support graphs (spec §5
// "Cyclic graphs").
func (t *TMS) RetractAssertion(id, source string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	visited := make(map[string]bool)
	t.retractOne(id, source, visited)
}

func (t *TMS) retractOne(id, source string, visited map[string]bool) {
	if visited[id] {
		return
	}
	visited[id] = true

	a, ok := t.assertions[id]
	if !ok {
		return
	}
	wasActive := a.IsActive

	for s := range t.justifications[id] {
		delete(t.dependents[s], id)
	}
	delete(t.justifications, id)
	deps := t.dependents[id]
	delete(t.dependents, id)
	delete(t.assertions, id)

	if wasActive {
		t.bus.Publish(events.AssertionRetracted{ID: id, Source: source})
	} else {
		t.bus.Publish(events.AssertionStatusChanged{ID: id, IsActive: false})
	}

	for depID := range deps {
		t.updateStatus(depID, visited)
	}
}

// updateStatus recomputes whether id is active: it requires a non-empty
// justification set and every supporter to still be active (spec §4.4).
// Must be called with t.mu held.
func (t *TMS) updateStatus(id string, visited map[string]bool) {
	if visited[id] {
		return
	}
	visited[id] = true

	a, ok := t.assertions[id]
	if !ok {
		return
	}
	support := t.justifications[id]
	newActive := len(support) > 0
	if newActive {
		for s := range support {
			sup, ok := t.assertions[s]
			if !ok || !sup.IsActive {
				newActive = false
				break
			}
		}
	}
	if newActive == a.IsActive {
		return
	}
	a.IsActive = newActive
	t.assertions[id] = a
	t.bus.Publish(events.AssertionStatusChanged{ID: id, IsActive: newActive})
	if newActive {
		t.checkContradiction(a)
	}

	for depID := range t.dependents[id] {
		t.updateStatus(depID, visited)
	}
}

// checkContradiction looks for an active assertion with the opposite
// polarity of a in the same KB and, if found, publishes
// ContradictionDetected. Must be called with t.mu held.
func (t *TMS) checkContradiction(a *rules.Assertion) {
	var opposite term.Term
	if a.IsNegated {
		opposite = a.EffectiveTerm()
	} else {
		opposite = term.NewList(term.NewAtom("not"), a.Kif)
	}
	for _, other := range t.assertions {
		if other.ID == a.ID || other.KBID != a.KBID || !other.IsActive {
			continue
		}
		if other.Kif.Equal(opposite) {
			t.bus.Publish(events.ContradictionDetected{AssertionID: a.ID, OppositeID: other.ID, KBID: a.KBID})
			return
		}
	}
}
