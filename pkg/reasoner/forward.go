package reasoner

import (
	"github.com/kifreason/kifreason/pkg/events"
	"github.com/kifreason/kifreason/pkg/rules"
	"github.com/kifreason/kifreason/pkg/term"
	"github.com/kifreason/kifreason/pkg/unify"
)

// ForwardChainer derives new potential assertions by matching every
// rule's antecedent clauses against newly added ground/Skolemized
// assertions (spec §4.6).
type ForwardChainer struct {
	ctx *Context
}

// NewForwardChainer subscribes a ForwardChainer to ctx's event bus.
func NewForwardChainer(ctx *Context) *ForwardChainer {
	fc := &ForwardChainer{ctx: ctx}
	ctx.bus.Subscribe(events.AssertionAdded{}, fc.onAssertionAdded)
	return fc
}

func (fc *ForwardChainer) onAssertionAdded(event interface{}) {
	defer func() {
		if r := recover(); r != nil {
			fc.ctx.log.WithField("recover", r).Error("forward chainer: recovered from panic")
		}
	}()
	e := event.(events.AssertionAdded)
	a := e.Assertion
	if a.Kind == rules.Universal || !a.IsActive {
		return
	}
	for _, r := range fc.ctx.Rules() {
		fc.tryRule(r, a)
	}
}

func (fc *ForwardChainer) tryRule(r *rules.Rule, trigger *rules.Assertion) {
	for i, clause := range r.Antecedents {
		if clause.Negated != trigger.IsNegated {
			continue
		}
		b, ok := unify.Unify(clause.Pattern, trigger.EffectiveTerm(), unify.Empty())
		if !ok {
			continue
		}
		support := map[string]bool{trigger.ID: true}
		fc.matchRemaining(r, remainingIndices(len(r.Antecedents), i), b, support, trigger.KBID)
	}
}

func remainingIndices(n, exclude int) []int {
	out := make([]int, 0, n-1)
	for i := 0; i < n; i++ {
		if i != exclude {
			out = append(out, i)
		}
	}
	return out
}

// matchRemaining recursively satisfies the clauses named by remaining,
// searching K ∪ global for each candidate in turn and threading bindings
// and the accumulated support set (spec §4.6).
func (fc *ForwardChainer) matchRemaining(r *rules.Rule, remaining []int, b unify.Bindings, support map[string]bool, kbID string) {
	if len(remaining) == 0 {
		fc.processConsequent(r, b, support)
		return
	}
	idx := remaining[0]
	rest := remaining[1:]
	clause := r.Antecedents[idx]
	pattern := unify.Substitute(clause.Pattern, b, true)

	for id, a := range fc.candidatesFor(pattern, kbID) {
		if a.IsNegated != clause.Negated {
			continue
		}
		nb, ok := unify.Unify(pattern, a.EffectiveTerm(), b)
		if !ok {
			continue
		}
		nsupport := copySupport(support)
		nsupport[id] = true
		fc.matchRemaining(r, rest, nb, nsupport, kbID)
	}
}

func (fc *ForwardChainer) candidatesFor(pattern term.Term, kbID string) map[string]*rules.Assertion {
	out := make(map[string]*rules.Assertion)
	for _, k := range fc.ctx.kbsFor(kbID) {
		for id := range k.FindUnifiable(pattern) {
			if a, ok := fc.ctx.tms.Get(id); ok && a.IsActive {
				out[id] = a
			}
		}
	}
	return out
}

func copySupport(s map[string]bool) map[string]bool {
	out := make(map[string]bool, len(s)+1)
	for k := range s {
		out[k] = true
	}
	return out
}

// processConsequent substitutes bindings into r.Consequent and dispatches
// the result per spec §4.6.
func (fc *ForwardChainer) processConsequent(r *rules.Rule, b unify.Bindings, support map[string]bool) {
	fc.emit(unify.Substitute(r.Consequent, b, true), support)
}

func (fc *ForwardChainer) emit(t term.Term, support map[string]bool) {
	t = simplifyDoubleNegation(t)
	if l, ok := t.(*term.List); ok {
		if op, has := l.Operator(); has {
			switch op {
			case "and":
				for _, c := range l.Elems()[1:] {
					fc.emit(c, support)
				}
				return
			case "forall":
				fc.emitForall(l, support)
				return
			case "exists":
				body, err := fc.ctx.skolemizer.Skolemize(l, unify.Empty())
				if err != nil {
					fc.ctx.log.WithError(err).Warn("forward chainer: malformed exists in consequent")
					return
				}
				fc.commitDerived(body, support)
				return
			}
		}
	}
	fc.commitDerived(t, support)
}

func (fc *ForwardChainer) emitForall(l *term.List, support map[string]bool) {
	if l.Len() != 3 {
		return
	}
	if bl, ok := l.Get(2).(*term.List); ok {
		if op, has := bl.Operator(); has && (op == "=>" || op == "<=>") {
			addRuleFromForm(fc.ctx, bl, "forward-chainer")
			return
		}
	}
	qv, ok := quantifiedVarsFromSpec(l.Get(1))
	if !ok {
		return
	}
	fc.commitPotential(&rules.PotentialAssertion{
		Kif:            l,
		Kind:           rules.Universal,
		QuantifiedVars: qv,
		Support:        support,
	})
}

// commitDerived builds a Ground/Skolemized PotentialAssertion from a
// fully substituted consequent term, rejecting it per the budgets of
// spec §4.6 ("reject if ... non-ground or trivial").
func (fc *ForwardChainer) commitDerived(t term.Term, support map[string]bool) {
	if t.ContainsVariable() || term.IsTrivial(t) {
		return
	}
	l, ok := t.(*term.List)
	if !ok {
		return
	}
	negated := false
	effective := l
	if op, has := l.Operator(); has && op == "not" && l.Len() == 2 {
		if inner, ok := l.Get(1).(*term.List); ok {
			negated = true
			effective = inner
		}
	}
	isEquality := false
	if op, has := effective.Operator(); has && op == "=" && effective.Len() == 3 {
		isEquality = true
	}
	kind := rules.Ground
	if l.ContainsSkolemTerm() {
		kind = rules.Skolemized
	}
	fc.commitPotential(&rules.PotentialAssertion{
		Kif:        l,
		Kind:       kind,
		IsNegated:  negated,
		IsEquality: isEquality,
		Support:    support,
	})
}

// commitPotential applies the depth/weight budgets, fills in derived
// priority/depth/source, and publishes p for the CommitPlugin to pick up.
func (fc *ForwardChainer) commitPotential(p *rules.PotentialAssertion) {
	ctx := fc.ctx
	depth := ctx.DerivedDepth(p.Support)
	if depth > ctx.config.MaxDerivationDepth {
		return
	}
	if p.Kif.Weight() > ctx.config.MaxDerivedWeight {
		return
	}
	p.DerivationDepth = depth
	p.Priority = ctx.DerivedPriority(p.Support)
	p.SourceNoteID = ctx.FindCommonSourceNoteID(p.Support)
	ctx.bus.Publish(events.PotentialAssertionEvent{Candidate: p, TargetNoteID: p.SourceNoteID})
}
