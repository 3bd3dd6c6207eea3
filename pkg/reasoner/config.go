package reasoner

// Config holds the tunables enumerated in spec.md §9 "Configuration".
type Config struct {
	Port                 int
	KBSize               int
	RulesFile            string
	LLMURL               string
	LLMModel             string
	BroadcastInput       bool
	MaxDerivationDepth   int
	MaxBackwardDepth     int
	MaxDerivedWeight     int
	DerivedPriorityDecay float64
	KBWarnPct            int
	KBHaltPct            int
}

// Priority bases for the input routing heuristic (spec §4.10): input
// attributed to a note (i.e. LLM-sourced) is discounted relative to
// directly submitted input.
const (
	InputBasePriority = 1.0
	LLMBasePriority   = 0.7
)

// DefaultConfig returns the recommended values from spec.md §9.
func DefaultConfig() Config {
	return Config{
		Port:                 8080,
		KBSize:               10000,
		MaxDerivationDepth:   6,
		MaxBackwardDepth:     8,
		MaxDerivedWeight:     150,
		DerivedPriorityDecay: 0.95,
		KBWarnPct:            90,
		KBHaltPct:            98,
	}
}
