package rules

import "github.com/kifreason/kifreason/pkg/term"

// PotentialAssertion is a candidate for commit into a knowledge base,
// produced by the input router or by a reasoner plugin's derivation (spec
// §3). Equality and hash are by Kif alone, which is what lets the commit
// path deduplicate candidates before they reach the TMS.
type PotentialAssertion struct {
	Kif             term.Term
	Priority        float64
	Support         map[string]bool // justification ids this candidate rests on
	SourceID        string          // id of the rule/plugin/input event that produced it
	IsNegated       bool
	IsEquality      bool
	SourceNoteID    string
	Kind            Kind
	QuantifiedVars  []*term.Var
	DerivationDepth int
}

// Key returns the deduplication key for this candidate: its printed kif.
func (p *PotentialAssertion) Key() string {
	return p.Kif.String()
}

// IsOrientedEquality reports whether Kif is `(= lhs rhs)` with
// weight(lhs) > weight(rhs), the orientation that licenses rewriting
// (spec §4.1, §4.7).
func (p *PotentialAssertion) IsOrientedEquality() bool {
	if !p.IsEquality {
		return false
	}
	l, ok := p.Kif.(*term.List)
	if !ok || l.Len() != 3 {
		return false
	}
	return l.Get(1).Weight() > l.Get(2).Weight()
}
