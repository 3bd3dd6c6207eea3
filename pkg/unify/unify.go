// Package unify implements unification, one-way matching, substitution, and
// term rewriting over the kif/term language (spec §4.1).
package unify

import (
	"github.com/kifreason/kifreason/pkg/term"
)

// DefaultDepthCap bounds recursion in unify/match/substitute so a single
// pathological term cannot hang the reasoner (spec §4.1, §7 "UnificationBudget").
const DefaultDepthCap = 50

// Bindings is a substitution mapping variables to terms. The zero value is
// an empty substitution. Bindings are treated as persistent: Bind returns a
// new map sharing the old one's entries plus one more, never mutating the
// receiver in place, so callers can backtrack by discarding the returned
// value.
type Bindings map[*term.Var]term.Term

// Empty returns a fresh, empty substitution.
func Empty() Bindings { return Bindings{} }

// Lookup returns the term bound to v, or nil if v is unbound.
func (b Bindings) Lookup(v *term.Var) term.Term {
	return b[v]
}

// Bind returns a new substitution extending b with v -> t.
func (b Bindings) Bind(v *term.Var, t term.Term) Bindings {
	out := make(Bindings, len(b)+1)
	for k, val := range b {
		out[k] = val
	}
	out[v] = t
	return out
}

// Walk follows a variable's binding chain one hop at a time until it reaches
// an unbound variable or a non-variable term (shallow dereference).
func (b Bindings) Walk(t term.Term) term.Term {
	for {
		v, ok := t.(*term.Var)
		if !ok {
			return t
		}
		bound := b[v]
		if bound == nil {
			return t
		}
		t = bound
	}
}

// Substitute applies a substitution mode to t:
//   - shallow: one level of variable lookup (see Walk)
//   - deep: recursively chase bindings through the entire term, rebuilding
//     lists with substituted subterms
func Substitute(t term.Term, b Bindings, deep bool) term.Term {
	return substitute(t, b, deep, 0)
}

func substitute(t term.Term, b Bindings, deep bool, depth int) term.Term {
	if depth > DefaultDepthCap {
		return t
	}
	walked := b.Walk(t)
	if !deep {
		return walked
	}
	l, ok := walked.(*term.List)
	if !ok {
		return walked
	}
	elems := l.Elems()
	newElems := make([]term.Term, len(elems))
	changed := false
	for i, e := range elems {
		ne := substitute(e, b, true, depth+1)
		newElems[i] = ne
		if ne != e {
			changed = true
		}
	}
	if !changed {
		return l
	}
	return term.NewList(newElems...)
}

// occursCheck reports whether v occurs anywhere within t under b.
func occursCheck(v *term.Var, t term.Term, b Bindings, depth int) bool {
	if depth > DefaultDepthCap {
		return true // safe over-approximation: treat as occurring (reject)
	}
	walked := b.Walk(t)
	switch w := walked.(type) {
	case *term.Var:
		return w == v
	case *term.List:
		for _, e := range w.Elems() {
			if occursCheck(v, e, b, depth+1) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func bindVar(v *term.Var, t term.Term, b Bindings, occursChecked bool, depth int) (Bindings, bool) {
	if existing := b.Lookup(v); existing != nil {
		return unify(existing, t, b, occursChecked, depth+1)
	}
	if occursChecked && occursCheck(v, t, b, depth) {
		return nil, false
	}
	return b.Bind(v, t), true
}

// Unify computes a most-general unifier of x and y given existing bindings
// b, or reports failure. Unification is symmetric and performs an occurs
// check when binding a variable.
func Unify(x, y term.Term, b Bindings) (Bindings, bool) {
	return unify(x, y, b, true, 0)
}

// Match is one-way: only variables occurring in pattern may bind; variables
// in target never bind, and no occurs check is required since pattern
// variables cannot appear inside their own bindings from target (target is
// assumed ground with respect to pattern's variables).
func Match(pattern, target term.Term, b Bindings) (Bindings, bool) {
	return matchTerm(pattern, target, b, 0)
}

func unify(x, y term.Term, b Bindings, occursChecked bool, depth int) (Bindings, bool) {
	if depth > DefaultDepthCap {
		return nil, false
	}
	x = b.Walk(x)
	y = b.Walk(y)

	if xv, ok := x.(*term.Var); ok {
		if yv, ok2 := y.(*term.Var); ok2 && yv == xv {
			return b, true
		}
		return bindVar(xv, y, b, occursChecked, depth)
	}
	if yv, ok := y.(*term.Var); ok {
		return bindVar(yv, x, b, occursChecked, depth)
	}

	switch xt := x.(type) {
	case *term.Atom:
		yt, ok := y.(*term.Atom)
		return b, ok && yt == xt
	case *term.List:
		yt, ok := y.(*term.List)
		if !ok || xt.Len() != yt.Len() {
			return nil, false
		}
		cur := b
		for i := 0; i < xt.Len(); i++ {
			var ok2 bool
			cur, ok2 = unify(xt.Get(i), yt.Get(i), cur, occursChecked, depth+1)
			if !ok2 {
				return nil, false
			}
		}
		return cur, true
	default:
		return nil, false
	}
}

func matchTerm(pattern, target term.Term, b Bindings, depth int) (Bindings, bool) {
	if depth > DefaultDepthCap {
		return nil, false
	}
	// Only pattern side dereferences through b; target is taken as-is
	// except for following pattern-introduced bindings when pattern is a
	// variable already bound earlier in this match.
	if pv, ok := pattern.(*term.Var); ok {
		if bound := b.Lookup(pv); bound != nil {
			return matchTerm(bound, target, b, depth+1)
		}
		return b.Bind(pv, target), true
	}

	switch pt := pattern.(type) {
	case *term.Atom:
		tt, ok := target.(*term.Atom)
		return b, ok && tt == pt
	case *term.List:
		tt, ok := target.(*term.List)
		if !ok || pt.Len() != tt.Len() {
			return nil, false
		}
		cur := b
		for i := 0; i < pt.Len(); i++ {
			var ok2 bool
			cur, ok2 = matchTerm(pt.Get(i), tt.Get(i), cur, depth+1)
			if !ok2 {
				return nil, false
			}
		}
		return cur, true
	default:
		return nil, false
	}
}
