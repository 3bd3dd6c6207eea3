package reasoner

import "github.com/kifreason/kifreason/pkg/term"

// quantifiedVarsFromSpec parses a `forall`/`exists` varsSpec position: a
// single Var, or a List of Vars (spec §4.5, §4.10).
func quantifiedVarsFromSpec(spec term.Term) ([]*term.Var, bool) {
	if v, ok := spec.(*term.Var); ok {
		return []*term.Var{v}, true
	}
	l, ok := spec.(*term.List)
	if !ok {
		return nil, false
	}
	vars := make([]*term.Var, 0, l.Len())
	for _, e := range l.Elems() {
		v, ok := e.(*term.Var)
		if !ok {
			return nil, false
		}
		vars = append(vars, v)
	}
	if len(vars) == 0 {
		return nil, false
	}
	return vars, true
}

// collectPredicates walks t and every sub-list, returning the distinct
// operator atoms referenced anywhere, used by the universal instantiator
// to find facts relevant to a freshly added Universal assertion (spec
// §4.8).
func collectPredicates(t term.Term) []string {
	seen := make(map[string]bool)
	collectPredicatesInto(t, seen)
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	return out
}

func collectPredicatesInto(t term.Term, seen map[string]bool) {
	l, ok := t.(*term.List)
	if !ok {
		return
	}
	if op, ok := l.Operator(); ok {
		seen[op] = true
	}
	for _, e := range l.Elems() {
		collectPredicatesInto(e, seen)
	}
}

// equalityParts returns the two sides of `(= lhs rhs)`, if kif has that
// shape.
func equalityParts(kif term.Term) (term.Term, term.Term, bool) {
	l, ok := kif.(*term.List)
	if !ok || l.Len() != 3 {
		return nil, nil, false
	}
	if op, ok := l.Operator(); !ok || op != "=" {
		return nil, nil, false
	}
	return l.Get(1), l.Get(2), true
}

// simplifyDoubleNegation collapses `(not (not X))` to X, repeating while
// the result is still a double negation at the top of t; subterms are not
// simplified (spec §4.6, rule consequents).
func simplifyDoubleNegation(t term.Term) term.Term {
	l, ok := t.(*term.List)
	if !ok {
		return t
	}
	if op, has := l.Operator(); has && op == "not" && l.Len() == 2 {
		if inner, ok := l.Get(1).(*term.List); ok {
			if iop, ihas := inner.Operator(); ihas && iop == "not" && inner.Len() == 2 {
				return simplifyDoubleNegation(inner.Get(1))
			}
		}
	}
	return t
}
