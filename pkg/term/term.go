// Package term implements the immutable term model for the KIF-like
// S-expression language: atoms, variables, and lists. Terms are built once
// and never mutated; structural properties (weight, free variables, Skolem
// provenance, string form) are computed once and cached on construction.
package term

import (
	"strings"
)

// Kind distinguishes the three term shapes.
type Kind int

const (
	// KindAtom is a ground symbol or quoted string.
	KindAtom Kind = iota
	// KindVar is a logic variable, written "?name".
	KindVar
	// KindList is an ordered sequence of subterms.
	KindList
)

// skolemConstPrefix and skolemFuncPrefix mark constants/functions minted by
// the skolemizer. Any atom or list operator beginning with these prefixes
// makes the enclosing term a Skolem term.
const (
	skolemConstPrefix = "skc_"
	skolemFuncPrefix  = "skf_"
)

// Term is the sum type for the S-expression language. All three concrete
// kinds (Atom, Var, List) implement it. Terms are immutable and safe for
// concurrent reads once constructed.
type Term interface {
	Kind() Kind
	// String returns the canonical printed form of the term.
	String() string
	// Weight is 1 for atoms/variables, 1 + sum(subterm weights) for lists.
	Weight() int
	// ContainsVariable reports whether the term or any subterm is a variable.
	ContainsVariable() bool
	// ContainsSkolemTerm reports whether the term or any subterm is a Skolem
	// constant/function application.
	ContainsSkolemTerm() bool
	// Equal reports structural equality (not unification).
	Equal(other Term) bool
	// VarSet returns the set of distinct variables occurring in the term,
	// keyed by variable name.
	VarSet() map[string]*Var
}

// Atom is a ground symbol or quoted string. Atoms are interned: two atoms
// constructed from the same value string share the same pointer.
type Atom struct {
	value string
}

// Var is a logic variable. Names always start with "?" and are interned.
type Var struct {
	name string
}

// List is an ordered, possibly empty sequence of subterms. A List whose
// first element is an Atom has an "operator" in the sense used throughout
// the reasoning engine (spec §3).
type List struct {
	elems     []Term
	weight    int
	hasVar    bool
	hasSkolem bool
	str       string
	varSet    map[string]*Var
}

// ---- Atom ----

// NewAtom returns the interned Atom for value.
func NewAtom(value string) *Atom {
	return internAtom(value)
}

func (a *Atom) Kind() Kind   { return KindAtom }
func (a *Atom) String() string { return printAtom(a.value) }

// Value returns the raw (unquoted) atom text.
func (a *Atom) Value() string  { return a.value }
func (a *Atom) Weight() int    { return 1 }
func (a *Atom) ContainsVariable() bool { return false }

// ContainsSkolemTerm is true for an atom whose value begins with "skc_".
func (a *Atom) ContainsSkolemTerm() bool {
	return strings.HasPrefix(a.value, skolemConstPrefix)
}

func (a *Atom) Equal(other Term) bool {
	o, ok := other.(*Atom)
	return ok && o == a // interned: pointer equality suffices
}

func (a *Atom) VarSet() map[string]*Var { return nil }

// IsReservedOperator reports whether the atom names one of the logical
// connectives or quantifiers reserved by the language (spec §3).
func (a *Atom) IsReservedOperator() bool {
	switch a.value {
	case "=>", "<=>", "and", "or", "not", "=", "exists", "forall":
		return true
	}
	return false
}

// ReflexivePredicates lists the predicates for which (p x x) is trivial.
var ReflexivePredicates = map[string]bool{
	"instance": true, "subclass": true, "subrelation": true,
	"equivalent": true, "same": true, "equal": true,
	"domain": true, "range": true,
}

// ---- Var ----

// NewVar returns the interned Var for name, which must start with "?" and
// have length >= 2. The KIF parser checks this when it reads a variable;
// NewVar itself does not re-validate, matching the parser's responsibility
// for syntax.
func NewVar(name string) *Var {
	return internVar(name)
}

func (v *Var) Kind() Kind              { return KindVar }
func (v *Var) String() string          { return v.name }
func (v *Var) Name() string            { return v.name }
func (v *Var) Weight() int             { return 1 }
func (v *Var) ContainsVariable() bool  { return true }
func (v *Var) ContainsSkolemTerm() bool { return false }

func (v *Var) Equal(other Term) bool {
	o, ok := other.(*Var)
	return ok && o == v
}

func (v *Var) VarSet() map[string]*Var {
	return map[string]*Var{v.name: v}
}

// ---- List ----

// NewList builds a List from elems, computing and caching weight, variable
// set, Skolem provenance, and string form.
func NewList(elems ...Term) *List {
	l := &List{elems: append([]Term(nil), elems...)}
	weight := 1
	hasVar := false
	hasSkolem := false
	vs := make(map[string]*Var)
	for _, e := range l.elems {
		weight += e.Weight()
		if e.ContainsVariable() {
			hasVar = true
		}
		if e.ContainsSkolemTerm() {
			hasSkolem = true
		}
		for k, v := range e.VarSet() {
			vs[k] = v
		}
	}
	l.weight = weight
	l.hasVar = hasVar
	l.varSet = vs
	if op, ok := l.OperatorAtom(); ok && strings.HasPrefix(op.value, skolemFuncPrefix) {
		hasSkolem = true
	}
	l.hasSkolem = hasSkolem
	l.str = buildListString(l.elems)
	return l
}

func (l *List) Kind() Kind     { return KindList }
func (l *List) String() string { return l.str }
func (l *List) Weight() int    { return l.weight }

func (l *List) ContainsVariable() bool  { return l.hasVar }
func (l *List) ContainsSkolemTerm() bool { return l.hasSkolem }

func (l *List) VarSet() map[string]*Var { return l.varSet }

// Len returns the number of direct elements.
func (l *List) Len() int { return len(l.elems) }

// Elems returns the direct elements, in order. The slice must not be
// mutated by callers.
func (l *List) Elems() []Term { return l.elems }

// Get returns the i-th element, or nil if out of range.
func (l *List) Get(i int) Term {
	if i < 0 || i >= len(l.elems) {
		return nil
	}
	return l.elems[i]
}

// OperatorAtom returns the first element as an Atom and true, iff the list
// is non-empty and its first element is an Atom.
func (l *List) OperatorAtom() (*Atom, bool) {
	if len(l.elems) == 0 {
		return nil, false
	}
	a, ok := l.elems[0].(*Atom)
	return a, ok
}

// Operator returns the operator string ("" if none) and whether one exists.
func (l *List) Operator() (string, bool) {
	a, ok := l.OperatorAtom()
	if !ok {
		return "", false
	}
	return a.value, true
}

func (l *List) Equal(other Term) bool {
	o, ok := other.(*List)
	if !ok || len(o.elems) != len(l.elems) {
		return false
	}
	for i, e := range l.elems {
		if !e.Equal(o.elems[i]) {
			return false
		}
	}
	return true
}

func buildListString(elems []Term) string {
	var sb strings.Builder
	sb.WriteByte('(')
	for i, e := range elems {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(e.String())
	}
	sb.WriteByte(')')
	return sb.String()
}

// IsTrivial reports whether l is a trivial reflexive assertion: (op x x)
// where op is a reflexive predicate or "=", or (not L) where L is trivial
// (spec §3).
func IsTrivial(t Term) bool {
	l, ok := t.(*List)
	if !ok {
		return false
	}
	op, hasOp := l.Operator()
	if hasOp && op == "not" && l.Len() == 2 {
		return IsTrivial(l.Get(1))
	}
	if !hasOp || l.Len() != 3 {
		return false
	}
	if op != "=" && !ReflexivePredicates[op] {
		return false
	}
	return l.Get(1).Equal(l.Get(2))
}
