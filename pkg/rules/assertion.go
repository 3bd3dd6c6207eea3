package rules

import (
	"github.com/kifreason/kifreason/pkg/term"
)

// Assertion is a committed term living inside the TMS, with identity,
// support (justifications), and an active/inactive status (spec §3).
type Assertion struct {
	ID                 string
	Kif                term.Term
	Priority           float64
	Timestamp          int64
	SourceNoteID       string // "" means no source note
	JustificationIDs   map[string]bool
	Kind               Kind
	IsEquality         bool
	IsOrientedEquality bool
	IsNegated          bool
	QuantifiedVars     []*term.Var // non-nil only for Kind == Universal
	DerivationDepth    int
	IsActive           bool
	KBID               string
}

// HasSourceNote reports whether this assertion originated from a specific
// note's input rather than the global scope.
func (a *Assertion) HasSourceNote() bool { return a.SourceNoteID != "" }

// EffectiveTerm returns the term used for unification/matching purposes:
// kif.get(1) when negated (`(not L)` unwraps to L), kif.get(2) (the body)
// when Universal (`(forall vars body)` unwraps to body), else kif itself
// (spec §3 "Assertion").
func (a *Assertion) EffectiveTerm() term.Term {
	if a.IsNegated {
		if l, ok := a.Kif.(*term.List); ok && l.Len() == 2 {
			if op, ok := l.Operator(); ok && op == "not" {
				return l.Get(1)
			}
		}
		return a.Kif
	}
	if a.Kind == Universal {
		if l, ok := a.Kif.(*term.List); ok && l.Len() == 3 {
			return l.Get(2)
		}
	}
	return a.Kif
}

// Less implements the desirability ordering from spec §3: active before
// inactive, then higher priority, then lower depth, then newer timestamp.
// It returns true iff a ranks strictly before b.
func Less(a, b *Assertion) bool {
	if a.IsActive != b.IsActive {
		return a.IsActive
	}
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if a.DerivationDepth != b.DerivationDepth {
		return a.DerivationDepth < b.DerivationDepth
	}
	return a.Timestamp > b.Timestamp
}
