package reasoner

import (
	"github.com/sirupsen/logrus"

	"github.com/kifreason/kifreason/pkg/eventbus"
	"github.com/kifreason/kifreason/pkg/events"
	"github.com/kifreason/kifreason/pkg/term"
)

// Engine wires every reasoner plugin onto a shared Context (spec §4):
// commit, input routing, retraction routing, forward chaining, the
// rewriting engine, universal instantiation, and backward chaining.
type Engine struct {
	Context      *Context
	Commit       *CommitPlugin
	Input        *InputPlugin
	Retract      *RetractPlugin
	Forward      *ForwardChainer
	Rewrite      *RewriteEngine
	Instantiator *UniversalInstantiator
	Backward     *BackwardChainer
}

// NewEngine builds a Context from config and subscribes every reasoner
// plugin to bus.
func NewEngine(config Config, bus *eventbus.Bus, log logrus.FieldLogger) *Engine {
	ctx := NewContext(config, bus, log)
	return &Engine{
		Context:      ctx,
		Commit:       NewCommitPlugin(ctx),
		Input:        NewInputPlugin(ctx),
		Retract:      NewRetractPlugin(ctx),
		Forward:      NewForwardChainer(ctx),
		Rewrite:      NewRewriteEngine(ctx),
		Instantiator: NewUniversalInstantiator(ctx),
		Backward:     NewBackwardChainer(ctx),
	}
}

// Submit publishes an InputSubmitted event, the entry point for external
// input (spec §4.10).
func (e *Engine) Submit(t term.Term, sourceID, targetNoteID string) {
	e.Context.bus.Publish(events.InputSubmitted{Term: t, SourceID: sourceID, TargetNoteID: targetNoteID})
}

// Query publishes a QueryRequest. Callers that want the answer subscribe
// to QueryResult on the same bus, correlating by QueryID.
func (e *Engine) Query(req events.QueryRequest) {
	e.Context.bus.Publish(req)
}

// Retract publishes a RetractRequest.
func (e *Engine) Retract(req events.RetractRequest) {
	e.Context.bus.Publish(req)
}
