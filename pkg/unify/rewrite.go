package unify

import "github.com/kifreason/kifreason/pkg/term"

// Rewrite attempts to rewrite target using the oriented equality lhs -> rhs
// (spec §4.1, §4.7). It first tries to match lhs against target as a whole;
// on success it substitutes rhs with the resulting bindings. If that fails
// and target is a list, it recurses into each subterm, rewriting the first
// one that changes. Returns the rewritten term and true iff at least one
// rewrite occurred anywhere in target.
func Rewrite(target, lhs, rhs term.Term) (term.Term, bool) {
	if b, ok := Match(lhs, target, Empty()); ok {
		return Substitute(rhs, b, true), true
	}
	l, ok := target.(*term.List)
	if !ok {
		return target, false
	}
	elems := l.Elems()
	for i, e := range elems {
		if rewritten, ok := Rewrite(e, lhs, rhs); ok {
			newElems := append([]term.Term(nil), elems...)
			newElems[i] = rewritten
			return term.NewList(newElems...), true
		}
	}
	return target, false
}
