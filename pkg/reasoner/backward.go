package reasoner

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/kifreason/kifreason/pkg/events"
	"github.com/kifreason/kifreason/pkg/rules"
	"github.com/kifreason/kifreason/pkg/term"
	"github.com/kifreason/kifreason/pkg/unify"
)

// BackwardChainer answers QueryRequest events by proving a goal against
// facts, rules, and registered operators (spec §4.9).
type BackwardChainer struct {
	ctx *Context
}

// NewBackwardChainer subscribes a BackwardChainer to ctx's event bus.
func NewBackwardChainer(ctx *Context) *BackwardChainer {
	bc := &BackwardChainer{ctx: ctx}
	ctx.bus.Subscribe(events.QueryRequest{}, bc.onQueryRequest)
	return bc
}

func (bc *BackwardChainer) onQueryRequest(event interface{}) {
	e := event.(events.QueryRequest)
	var solutions []unify.Bindings
	defer func() {
		if r := recover(); r != nil {
			bc.ctx.log.WithField("recover", r).Error("backward chainer: recovered from panic")
			bc.ctx.bus.Publish(events.QueryResult{QueryID: e.QueryID, Status: events.StatusError})
		}
	}()

	stack := make(map[string]bool)
	bc.proveGoal(e.Goal, e.KBID, unify.Empty(), 0, stack, func(b unify.Bindings) bool {
		solutions = append(solutions, b)
		return e.Kind == events.AskTrueFalse
	})

	status := events.StatusFailure
	if len(solutions) > 0 {
		status = events.StatusSuccess
	}
	bc.ctx.bus.Publish(events.QueryResult{
		QueryID:  e.QueryID,
		Status:   status,
		Bindings: printBindingSets(dedupeBindings(solutions), e.Goal),
	})
}

// proveGoal implements spec §4.9's proveGoal: substitute, guard against
// proof-stack cycles, try a registered operator, then facts, then rules.
// yield is called once per solution and may return true to stop the
// search early (used for ASK_TRUE_FALSE).
func (bc *BackwardChainer) proveGoal(goal term.Term, kbID string, b unify.Bindings, depth int, stack map[string]bool, yield func(unify.Bindings) bool) bool {
	if depth > bc.ctx.config.MaxBackwardDepth {
		return false
	}
	gPrime := unify.Substitute(goal, b, true)
	key := gPrime.String()
	if stack[key] {
		return false
	}
	stack[key] = true
	defer delete(stack, key)

	if l, ok := gPrime.(*term.List); ok {
		if op, has := l.Operator(); has {
			if op == "=" && l.Len() == 3 {
				// Equality binds an unresolved variable rather than
				// evaluating to a value, so it cannot go through the
				// generic operator+unify-against-gPrime path below: both
				// sides are evaluated (recursively resolving any nested
				// operator application, e.g. `(+ 2 3)`) and unified with
				// each other directly.
				lhs := bc.evalTerm(l.Get(1))
				rhs := bc.evalTerm(l.Get(2))
				if nb, ok := unify.Unify(lhs, rhs, b); ok {
					if yield(nb) {
						return true
					}
				}
			} else if operator, ok := bc.ctx.operators.Lookup(op); ok {
				args := l.Elems()[1:]
				evaluated := make([]term.Term, len(args))
				for i, a := range args {
					evaluated[i] = bc.evalTerm(a)
				}
				result, err := operator(bc.ctx, evaluated)
				if err != nil {
					bc.ctx.log.WithError(err).WithField("operator", op).Warn("backward chainer: operator failed")
				} else if result != nil {
					if atom, ok := result.(*term.Atom); ok && atom.Value() == "true" {
						if yield(b) {
							return true
						}
					} else if nb, ok := unify.Unify(gPrime, result, b); ok {
						if yield(nb) {
							return true
						}
					}
				}
			}
		}
	}

	for _, k := range bc.ctx.kbsFor(kbID) {
		for id := range k.FindUnifiable(gPrime) {
			a, ok := bc.ctx.tms.Get(id)
			if !ok || !a.IsActive {
				continue
			}
			nb, ok := unify.Unify(gPrime, a.EffectiveTerm(), b)
			if !ok {
				continue
			}
			if yield(nb) {
				return true
			}
		}
	}

	for _, r := range bc.ctx.Rules() {
		renamed := renameApart(r, depth)
		nb, ok := unify.Unify(renamed.Consequent, gPrime, b)
		if !ok {
			continue
		}
		if bc.proveClauses(renamed.Antecedents, 0, kbID, nb, depth+1, stack, yield) {
			return true
		}
	}
	return false
}

// evalTerm recursively evaluates any operator application within t,
// innermost first, so an argument like `(+ 2 3)` nested inside another
// goal (e.g. `(= ?y (+ 2 3))`) is reduced to its value before that outer
// goal is proved. A term that is not a registered operator application
// (an atom, a var, or a plain list) is returned unchanged.
func (bc *BackwardChainer) evalTerm(t term.Term) term.Term {
	l, ok := t.(*term.List)
	if !ok {
		return t
	}
	op, has := l.Operator()
	if !has {
		return t
	}
	operator, ok := bc.ctx.operators.Lookup(op)
	if !ok {
		return t
	}
	args := l.Elems()[1:]
	evaluated := make([]term.Term, len(args))
	for i, a := range args {
		evaluated[i] = bc.evalTerm(a)
	}
	result, err := operator(bc.ctx, evaluated)
	if err != nil || result == nil {
		return t
	}
	return result
}

func (bc *BackwardChainer) proveClauses(clauses []rules.Clause, i int, kbID string, b unify.Bindings, depth int, stack map[string]bool, yield func(unify.Bindings) bool) bool {
	if i >= len(clauses) {
		return yield(b)
	}
	clause := clauses[i]
	goal := clause.Pattern
	if clause.Negated {
		goal = term.NewList(term.NewAtom("not"), clause.Pattern)
	}
	return bc.proveGoal(goal, kbID, b, depth, stack, func(nb unify.Bindings) bool {
		return bc.proveClauses(clauses, i+1, kbID, nb, depth, stack, yield)
	})
}

var renameCounter int64

// renameApart renames every variable in r's form with a fresh
// `_d<depth>_<counter>` suffix to avoid capture across proof branches
// (spec §4.9 "Rename-apart uses a fresh suffix per call").
func renameApart(r *rules.Rule, depth int) *rules.Rule {
	n := atomic.AddInt64(&renameCounter, 1)
	suffix := fmt.Sprintf("_d%d_%d", depth, n)
	mapping := make(map[*term.Var]term.Term)
	newForm := renameVars(r.Form, suffix, mapping).(*term.List)
	newAntecedent := newForm.Get(1)
	newConsequent := newForm.Get(2)
	clauses, _ := rules.DecomposeAntecedent(newAntecedent)
	return &rules.Rule{
		ID:          r.ID,
		Form:        newForm,
		Antecedent:  newAntecedent,
		Consequent:  newConsequent,
		Priority:    r.Priority,
		Antecedents: clauses,
	}
}

func renameVars(t term.Term, suffix string, mapping map[*term.Var]term.Term) term.Term {
	switch v := t.(type) {
	case *term.Var:
		if nv, ok := mapping[v]; ok {
			return nv
		}
		nv := term.NewVar(v.Name() + suffix)
		mapping[v] = nv
		return nv
	case *term.List:
		elems := v.Elems()
		newElems := make([]term.Term, len(elems))
		for i, e := range elems {
			newElems[i] = renameVars(e, suffix, mapping)
		}
		return term.NewList(newElems...)
	default:
		return t
	}
}

func printBindingSets(bindingsList []unify.Bindings, goal term.Term) []map[string]string {
	goalVars := goal.VarSet()
	out := make([]map[string]string, 0, len(bindingsList))
	for _, b := range bindingsList {
		m := make(map[string]string, len(goalVars))
		for name, v := range goalVars {
			m[name] = unify.Substitute(v, b, true).String()
		}
		out = append(out, m)
	}
	return out
}

func dedupeBindings(list []unify.Bindings) []unify.Bindings {
	seen := make(map[string]bool)
	out := make([]unify.Bindings, 0, len(list))
	for _, b := range list {
		key := bindingsKey(b)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, b)
	}
	return out
}

func bindingsKey(b unify.Bindings) string {
	keys := make([]string, 0, len(b))
	names := make(map[string]*term.Var, len(b))
	for v := range b {
		keys = append(keys, v.Name())
		names[v.Name()] = v
	}
	sort.Strings(keys)
	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(b[names[k]].String())
		sb.WriteByte(';')
	}
	return sb.String()
}
