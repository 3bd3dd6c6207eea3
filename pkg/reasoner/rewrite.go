package reasoner

import (
	"github.com/kifreason/kifreason/pkg/events"
	"github.com/kifreason/kifreason/pkg/rules"
	"github.com/kifreason/kifreason/pkg/term"
	"github.com/kifreason/kifreason/pkg/unify"
)

// RewriteEngine applies oriented equalities as left-to-right rewrite
// rules, in both directions: a newly added oriented equality rewrites
// existing facts, and a newly added fact is rewritten by existing
// oriented equalities (spec §4.7).
type RewriteEngine struct {
	ctx *Context
}

// NewRewriteEngine subscribes a RewriteEngine to ctx's event bus.
func NewRewriteEngine(ctx *Context) *RewriteEngine {
	re := &RewriteEngine{ctx: ctx}
	ctx.bus.Subscribe(events.AssertionAdded{}, re.onAssertionAdded)
	return re
}

func (re *RewriteEngine) onAssertionAdded(event interface{}) {
	defer func() {
		if r := recover(); r != nil {
			re.ctx.log.WithField("recover", r).Error("rewrite engine: recovered from panic")
		}
	}()
	e := event.(events.AssertionAdded)
	n := e.Assertion
	if n.Kind == rules.Universal || !n.IsActive {
		return
	}
	if n.IsOrientedEquality {
		re.applyAsRule(n)
	}
	re.applyExistingRulesTo(n)
}

func (re *RewriteEngine) applyAsRule(n *rules.Assertion) {
	lhs, rhs, ok := equalityParts(n.Kif)
	if !ok {
		return
	}
	for id, target := range re.candidates(lhs, n.KBID) {
		if id == n.ID {
			continue
		}
		re.tryRewrite(target, lhs, rhs, n)
	}
}

func (re *RewriteEngine) applyExistingRulesTo(n *rules.Assertion) {
	equalities := term.NewList(term.NewAtom("="), term.NewVar("?lhs"), term.NewVar("?rhs"))
	for id, candidate := range re.candidates(equalities, n.KBID) {
		if id == n.ID || !candidate.IsOrientedEquality {
			continue
		}
		lhs, rhs, ok := equalityParts(candidate.Kif)
		if !ok {
			continue
		}
		re.tryRewrite(n, lhs, rhs, candidate)
	}
}

func (re *RewriteEngine) candidates(pattern term.Term, kbID string) map[string]*rules.Assertion {
	out := make(map[string]*rules.Assertion)
	for _, k := range re.ctx.kbsFor(kbID) {
		for id := range k.FindUnifiable(pattern) {
			if a, ok := re.ctx.tms.Get(id); ok && a.IsActive {
				out[id] = a
			}
		}
	}
	return out
}

func (re *RewriteEngine) tryRewrite(target *rules.Assertion, lhs, rhs term.Term, equality *rules.Assertion) {
	result, changed := unify.Rewrite(target.EffectiveTerm(), lhs, rhs)
	if !changed || result.ContainsVariable() || term.IsTrivial(result) {
		return
	}
	l, ok := result.(*term.List)
	if !ok {
		return
	}
	support := map[string]bool{equality.ID: true, target.ID: true}
	depth := re.ctx.DerivedDepth(support)
	if depth > re.ctx.config.MaxDerivationDepth || l.Weight() > re.ctx.config.MaxDerivedWeight {
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
		Priority:        re.ctx.DerivedPriority(support),
		SourceNoteID:    re.ctx.FindCommonSourceNoteID(support),
	}
	re.ctx.bus.Publish(events.PotentialAssertionEvent{Candidate: p, TargetNoteID: p.SourceNoteID})
}
