package reasoner

import (
	"github.com/kifreason/kifreason/pkg/events"
	"github.com/kifreason/kifreason/pkg/rules"
	"github.com/kifreason/kifreason/pkg/term"
	"github.com/kifreason/kifreason/pkg/unify"
)

// InputPlugin routes externally submitted terms per spec §4.10.
type InputPlugin struct {
	ctx *Context
}

// NewInputPlugin subscribes an InputPlugin to ctx's event bus.
func NewInputPlugin(ctx *Context) *InputPlugin {
	p := &InputPlugin{ctx: ctx}
	ctx.bus.Subscribe(events.InputSubmitted{}, p.onInput)
	return p
}

func (p *InputPlugin) onInput(event interface{}) {
	e := event.(events.InputSubmitted)
	RouteInput(p.ctx, e.Term, e.SourceID, e.TargetNoteID)
}

// RouteInput dispatches one externally supplied term (spec §4.10):
//   - `=>`/`<=>`: parsed and registered as a rule (and its reverse, for
//     `<=>`).
//   - `and`: split, and each conjunct routed on its own.
//   - `exists`: Skolemized with empty outer bindings and resubmitted.
//   - `forall`: registered as a rule if its body is an implication or
//     equivalence, otherwise emitted as a Universal potential assertion.
//   - anything else: emitted as a Ground potential assertion, rejected if
//     it contains variables.
func RouteInput(ctx *Context, t term.Term, sourceID, targetNoteID string) {
	if l, ok := t.(*term.List); ok {
		if op, has := l.Operator(); has {
			switch op {
			case "=>", "<=>":
				addRuleFromForm(ctx, l, sourceID)
				return
			case "and":
				// Split into independent potential assertions, one per
				// conjunct, the same way the forward chainer's emit does
				// for a rule consequent (forward.go): an existential's
				// Skolemized body is a conjunction of separate facts
				// sharing a Skolem constant, not one compound fact.
				for _, c := range l.Elems()[1:] {
					RouteInput(ctx, c, sourceID, targetNoteID)
				}
				return
			case "exists":
				body, err := ctx.skolemizer.Skolemize(l, unify.Empty())
				if err != nil {
					ctx.log.WithError(err).Warn("reasoner: malformed exists in input")
					return
				}
				RouteInput(ctx, body, sourceID, targetNoteID)
				return
			case "forall":
				handleForallInput(ctx, l, sourceID, targetNoteID)
				return
			}
		}
	}
	emitGroundInput(ctx, t, sourceID, targetNoteID)
}

func addRuleFromForm(ctx *Context, form *term.List, sourceID string) {
	op, _ := form.Operator()
	r, err := rules.NewRule(rules.NewID("rule"), form, InputBasePriority)
	if err != nil {
		ctx.log.WithError(err).Warn("reasoner: invalid rule form")
		return
	}
	ctx.AddRule(r)
	if op == "<=>" {
		reversed := term.NewList(term.NewAtom("=>"), form.Get(2), form.Get(1))
		if rr, err := rules.NewRule(rules.NewID("rule"), reversed, InputBasePriority); err == nil {
			ctx.AddRule(rr)
		}
	}
}

func handleForallInput(ctx *Context, form *term.List, sourceID, targetNoteID string) {
	if form.Len() != 3 {
		ctx.log.Warn("reasoner: malformed forall input")
		return
	}
	body := form.Get(2)
	if bl, ok := body.(*term.List); ok {
		if op, has := bl.Operator(); has && (op == "=>" || op == "<=>") {
			addRuleFromForm(ctx, bl, sourceID)
			return
		}
	}
	qv, ok := quantifiedVarsFromSpec(form.Get(1))
	if !ok {
		ctx.log.Warn("reasoner: malformed forall varsSpec in input")
		return
	}
	potential := &rules.PotentialAssertion{
		Kif:            form,
		Priority:       PriorityFor(targetNoteID, form),
		Kind:           rules.Universal,
		QuantifiedVars: qv,
		SourceID:       sourceID,
		SourceNoteID:   targetNoteID,
	}
	ctx.bus.Publish(events.PotentialAssertionEvent{Candidate: potential, TargetNoteID: targetNoteID})
}

func emitGroundInput(ctx *Context, t term.Term, sourceID, targetNoteID string) {
	l, ok := t.(*term.List)
	if !ok {
		ctx.log.Warn("reasoner: plain input must be a list")
		return
	}
	negated := false
	effective := l
	if op, has := l.Operator(); has && op == "not" {
		if l.Len() != 2 {
			ctx.log.Warn("reasoner: `not` input must have arity 2")
			return
		}
		inner, ok := l.Get(1).(*term.List)
		if !ok {
			ctx.log.Warn("reasoner: `not` input body must be a list")
			return
		}
		negated = true
		effective = inner
	}
	if effective.ContainsVariable() {
		ctx.log.Warn("reasoner: plain input must be ground")
		return
	}
	isEquality := false
	if op, has := effective.Operator(); has && op == "=" && effective.Len() == 3 {
		isEquality = true
	}
	kind := rules.Ground
	if l.ContainsSkolemTerm() {
		kind = rules.Skolemized
	}
	potential := &rules.PotentialAssertion{
		Kif:          l,
		Priority:     PriorityFor(targetNoteID, l),
		Kind:         kind,
		IsNegated:    negated,
		IsEquality:   isEquality,
		SourceID:     sourceID,
		SourceNoteID: targetNoteID,
	}
	ctx.bus.Publish(events.PotentialAssertionEvent{Candidate: potential, TargetNoteID: targetNoteID})
}
