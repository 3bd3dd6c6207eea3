package rules

import (
	"github.com/pkg/errors"

	"github.com/kifreason/kifreason/pkg/term"
)

// ErrInvalidRuleForm is returned by NewRule when form is not a well-formed
// rule (spec §3 "Rule", §7 "ValidationError").
var ErrInvalidRuleForm = errors.New("invalid rule form")

// Clause is one conjunct of a rule's antecedent decomposition. Negated is
// true when the clause was written as `(not L)`, in which case Pattern is L
// itself.
type Clause struct {
	Pattern term.Term
	Negated bool
}

// Rule is an implication or equivalence whose free variables are
// universally quantified (spec §3 "Rule"). Rule identity/equality/hash are
// by Form alone, so structurally identical rule text submitted twice
// dedupes to one rule.
type Rule struct {
	ID          string
	Form        *term.List
	Antecedent  term.Term
	Consequent  term.Term
	Priority    float64
	Antecedents []Clause
}

// NewRule validates form (must be `(=> antecedent consequent)` or
// `(<=> antecedent consequent)`) and builds a Rule, decomposing the
// antecedent per spec §3: a single clause, a conjunction `(and c1 ... cn)`
// of clauses, or the atom `true` denoting no antecedent.
func NewRule(id string, form *term.List, priority float64) (*Rule, error) {
	if form.Len() != 3 {
		return nil, errors.Wrap(ErrInvalidRuleForm, "form must have arity 3")
	}
	op, ok := form.Operator()
	if !ok || (op != "=>" && op != "<=>") {
		return nil, errors.Wrap(ErrInvalidRuleForm, "operator must be => or <=>")
	}
	antecedent := form.Get(1)
	consequent := form.Get(2)
	clauses, err := DecomposeAntecedent(antecedent)
	if err != nil {
		return nil, err
	}
	return &Rule{
		ID:          id,
		Form:        form,
		Antecedent:  antecedent,
		Consequent:  consequent,
		Priority:    priority,
		Antecedents: clauses,
	}, nil
}

// DecomposeAntecedent splits a rule's antecedent term into clauses per
// spec §3: a bare List is a single clause; `(and c1 ... cn)` is a
// conjunction of clauses; the atom `true` decomposes to zero clauses. Every
// clause must itself be a List or `(not List)`.
func DecomposeAntecedent(antecedent term.Term) ([]Clause, error) {
	if a, ok := antecedent.(*term.Atom); ok {
		if a.Value() == "true" {
			return nil, nil
		}
		return nil, errors.Wrap(ErrInvalidRuleForm, "bare atom antecedent must be `true`")
	}
	l, ok := antecedent.(*term.List)
	if !ok {
		return nil, errors.Wrap(ErrInvalidRuleForm, "antecedent must be a list or `true`")
	}
	if op, ok := l.Operator(); ok && op == "and" {
		clauses := make([]Clause, 0, l.Len()-1)
		for _, e := range l.Elems()[1:] {
			c, err := toClause(e)
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, c)
		}
		return clauses, nil
	}
	c, err := toClause(l)
	if err != nil {
		return nil, err
	}
	return []Clause{c}, nil
}

func toClause(t term.Term) (Clause, error) {
	l, ok := t.(*term.List)
	if !ok {
		return Clause{}, errors.Wrap(ErrInvalidRuleForm, "clause must be a list")
	}
	if op, ok := l.Operator(); ok && op == "not" {
		if l.Len() != 2 {
			return Clause{}, errors.Wrap(ErrInvalidRuleForm, "`not` clause must have arity 2")
		}
		inner, ok := l.Get(1).(*term.List)
		if !ok {
			return Clause{}, errors.Wrap(ErrInvalidRuleForm, "`not` clause body must be a list")
		}
		return Clause{Pattern: inner, Negated: true}, nil
	}
	return Clause{Pattern: l, Negated: false}, nil
}

// Equal reports whether two rules have the same form (spec §3: "Rule
// equality and hash are by form only").
func (r *Rule) Equal(other *Rule) bool {
	if other == nil {
		return false
	}
	return r.Form.Equal(other.Form)
}

// FormKey returns a string suitable for deduplicating rules by form in a
// map, since *term.List values sharing structure are not necessarily the
// same pointer.
func (r *Rule) FormKey() string {
	return r.Form.String()
}
