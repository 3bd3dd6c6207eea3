// Package events defines the event payloads published across the
// reasoning engine's event bus (spec §4.10, §5, §6). Reasoner plugins,
// the TMS, and transport adapters all communicate by publishing and
// subscribing to these types rather than calling each other directly.
package events

import (
	"github.com/kifreason/kifreason/pkg/rules"
	"github.com/kifreason/kifreason/pkg/term"
)

// AssertionAdded is published when a new assertion that is initially
// active becomes known to the TMS. A new assertion that starts inactive
// is announced with AssertionStatusChanged (IsActive false) instead.
type AssertionAdded struct {
	Assertion *rules.Assertion
}

// AssertionStatusChanged is published whenever updateStatus flips an
// assertion's active flag, for a new assertion that starts inactive, and
// for an inactive assertion that is retracted.
type AssertionStatusChanged struct {
	ID       string
	IsActive bool
}

// AssertionRetracted is published for every assertion removed by a
// retraction cascade.
type AssertionRetracted struct {
	ID     string
	Source string
}

// AssertionEvicted is published when a KB evicts its lowest-priority
// assertion to make room under capacity (spec §4.3).
type AssertionEvicted struct {
	ID   string
	KBID string
}

// ContradictionDetected is published when an assertion and its negation
// are both active in the same KB (spec §4.4).
type ContradictionDetected struct {
	AssertionID string
	OppositeID  string
	KBID        string
}

// RuleAdded is published when a new rule is registered with the context.
type RuleAdded struct {
	Rule *rules.Rule
}

// RuleRemoved is published when a rule is retracted by form (spec §4.11).
type RuleRemoved struct {
	RuleID string
}

// PotentialAssertionEvent carries a candidate produced by input routing or
// a reasoner plugin's derivation, awaiting commit (spec §4.10).
type PotentialAssertionEvent struct {
	Candidate    *rules.PotentialAssertion
	TargetNoteID string
}

// QueryStatus is the outcome of a backward-chaining query (spec §4.9).
type QueryStatus int

const (
	StatusSuccess QueryStatus = iota
	StatusFailure
	StatusTimeout
	StatusError
)

func (s QueryStatus) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusFailure:
		return "FAILURE"
	case StatusTimeout:
		return "TIMEOUT"
	case StatusError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// QueryKind distinguishes the two supported query shapes (spec §4.9).
type QueryKind int

const (
	AskBindings QueryKind = iota
	AskTrueFalse
)

// QueryRequest asks the backward chainer to prove Goal within KBID.
type QueryRequest struct {
	QueryID string
	Kind    QueryKind
	Goal    term.Term
	KBID    string
}

// QueryResult answers a QueryRequest, correlated by QueryID.
type QueryResult struct {
	QueryID     string
	Status      QueryStatus
	Bindings    []map[string]string // printed var -> printed term, one map per solution
	Explanation string
}

// LLMResponse carries a display item produced by the (stubbed) note
// interpreter, destined for a websocket broadcast (spec §6).
type LLMResponse struct {
	NoteID  string
	ItemID  string
	Kind    string
	Content string
}

// InputSubmitted carries one externally supplied term through input
// routing (spec §4.10). TargetNoteID is "" for the global KB.
type InputSubmitted struct {
	Term         term.Term
	SourceID     string
	TargetNoteID string
}

// RetractKind distinguishes the three retraction routes of spec §4.11.
type RetractKind int

const (
	RetractByID RetractKind = iota
	RetractByNote
	RetractByRuleForm
)

// RetractRequest asks the retraction router to remove an assertion, an
// entire note KB, or a rule matching RuleForm (spec §4.11).
type RetractRequest struct {
	Kind     RetractKind
	ID       string
	NoteID   string
	RuleForm term.Term
	Source   string
}
