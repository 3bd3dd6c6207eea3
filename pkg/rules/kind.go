package rules

// Kind classifies an Assertion or PotentialAssertion by how it came to be
// ground (spec §3).
type Kind int

const (
	// Ground assertions contain no variables and no Skolem terms.
	Ground Kind = iota
	// Universal assertions retain quantified variables (the body of a
	// forall that has not yet been instantiated away).
	Universal
	// Skolemized assertions were produced by eliminating existential
	// quantifiers, and contain skc_/skf_ terms.
	Skolemized
)

func (k Kind) String() string {
	switch k {
	case Ground:
		return "Ground"
	case Universal:
		return "Universal"
	case Skolemized:
		return "Skolemized"
	default:
		return "Unknown"
	}
}
