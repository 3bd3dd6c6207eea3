package reasoner

import (
	"github.com/kifreason/kifreason/pkg/events"
	"github.com/kifreason/kifreason/pkg/rules"
	"github.com/kifreason/kifreason/pkg/term"
	"github.com/kifreason/kifreason/pkg/unify"
)

// UniversalInstantiator fires a Universal assertion's body against
// matching ground facts in both directions: a new fact triggers every
// relevant stored Universal, and a new Universal triggers every relevant
// stored fact (spec §4.8).
type UniversalInstantiator struct {
	ctx *Context
}

// NewUniversalInstantiator subscribes a UniversalInstantiator to ctx's
// event bus.
func NewUniversalInstantiator(ctx *Context) *UniversalInstantiator {
	ui := &UniversalInstantiator{ctx: ctx}
	ctx.bus.Subscribe(events.AssertionAdded{}, ui.onAssertionAdded)
	return ui
}

func (ui *UniversalInstantiator) onAssertionAdded(event interface{}) {
	defer func() {
		if r := recover(); r != nil {
			ui.ctx.log.WithField("recover", r).Error("universal instantiator: recovered from panic")
		}
	}()
	e := event.(events.AssertionAdded)
	a := e.Assertion
	if !a.IsActive {
		return
	}
	if a.Kind == rules.Universal {
		ui.instantiateFromUniversal(a)
		return
	}
	ui.instantiateFromFact(a)
}

func (ui *UniversalInstantiator) instantiateFromFact(fact *rules.Assertion) {
	l, ok := fact.Kif.(*term.List)
	if !ok {
		return
	}
	pred, ok := l.Operator()
	if !ok {
		return
	}
	seen := make(map[string]bool)
	for _, k := range ui.ctx.kbsFor(fact.KBID) {
		for id := range k.FindRelevantUniversals(pred) {
			if seen[id] {
				continue
			}
			seen[id] = true
			if u, ok := ui.ctx.tms.Get(id); ok && u.IsActive && u.DerivationDepth < ui.ctx.config.MaxDerivationDepth {
				ui.tryInstantiate(u, fact)
			}
		}
	}
}

func (ui *UniversalInstantiator) instantiateFromUniversal(u *rules.Assertion) {
	if u.DerivationDepth >= ui.ctx.config.MaxDerivationDepth {
		return
	}
	seen := make(map[string]bool)
	for _, pred := range collectPredicates(u.EffectiveTerm()) {
		for _, k := range ui.ctx.kbsFor(u.KBID) {
			for id := range k.FindFactsByPredicate(pred) {
				if seen[id] {
					continue
				}
				seen[id] = true
				if g, ok := ui.ctx.tms.Get(id); ok && g.IsActive {
					ui.tryInstantiate(u, g)
				}
			}
		}
	}
}

// tryInstantiate walks every sub-expression of u's body, one-way-matching
// it against fact; the first sub-expression whose match binds exactly all
// of u's quantified variables substitutes into the full body, which is
// then emitted as a potential assertion if ground and non-trivial (spec
// §4.8).
func (ui *UniversalInstantiator) tryInstantiate(u, fact *rules.Assertion) {
	qvSet := make(map[*term.Var]bool, len(u.QuantifiedVars))
	for _, v := range u.QuantifiedVars {
		qvSet[v] = true
	}
	body := u.EffectiveTerm()
	bound, ok := matchAnySubexpr(body, fact.EffectiveTerm(), qvSet)
	if !ok {
		return
	}
	substituted := unify.Substitute(body, bound, true)
	if substituted.ContainsVariable() || term.IsTrivial(substituted) {
		return
	}
	l, ok := substituted.(*term.List)
	if !ok {
		return
	}
	// Direct supporters only: fact.IsActive and u.IsActive already reflect
	// whether their own supporters are active, and the TMS cascades
	// retraction through its dependents graph, so there is no need to
	// flatten their justification sets into this one (matches
	// forward.go's and rewrite.go's support sets).
	support := map[string]bool{fact.ID: true, u.ID: true}
	depth := ui.ctx.DerivedDepth(support)
	if depth > ui.ctx.config.MaxDerivationDepth || l.Weight() > ui.ctx.config.MaxDerivedWeight {
		return
	}
	kind := rules.Ground
	if l.ContainsSkolemTerm() {
		kind = rules.Skolemized
	}
	p := &rules.PotentialAssertion{
		Kif:             l,
		Kind:            kind,
		Support:         support,
		DerivationDepth: depth,
		Priority:        ui.ctx.DerivedPriority(support),
		SourceNoteID:    ui.ctx.FindCommonSourceNoteID(support),
	}
	ui.ctx.bus.Publish(events.PotentialAssertionEvent{Candidate: p, TargetNoteID: p.SourceNoteID})
}

func matchAnySubexpr(body, target term.Term, qvSet map[*term.Var]bool) (unify.Bindings, bool) {
	var subs []term.Term
	collectSubexpressions(body, &subs)
	for _, sub := range subs {
		b, ok := unify.Match(sub, target, unify.Empty())
		if !ok {
			continue
		}
		if bindsExactly(b, qvSet) {
			return b, true
		}
	}
	return nil, false
}

func collectSubexpressions(t term.Term, out *[]term.Term) {
	*out = append(*out, t)
	if l, ok := t.(*term.List); ok {
		for _, e := range l.Elems() {
			collectSubexpressions(e, out)
		}
	}
}

func bindsExactly(b unify.Bindings, qvSet map[*term.Var]bool) bool {
	if len(b) != len(qvSet) {
		return false
	}
	for v := range qvSet {
		if _, ok := b[v]; !ok {
			return false
		}
	}
	return true
}
