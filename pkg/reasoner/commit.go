package reasoner

import (
	"github.com/kifreason/kifreason/pkg/events"
	"github.com/kifreason/kifreason/pkg/term"
)

// PriorityFor implements the input priority heuristic of spec §4.10:
// basePri / (1 + weight(kif)); base is LLMBasePriority when sourceNoteID
// is present, else InputBasePriority.
func PriorityFor(sourceNoteID string, kif term.Term) float64 {
	base := InputBasePriority
	if sourceNoteID != "" {
		base = LLMBasePriority
	}
	return base / (1 + float64(kif.Weight()))
}

// CommitPlugin routes every produced PotentialAssertion to its target
// KB's commit path (spec §4.10 "CommitPlugin").
type CommitPlugin struct {
	ctx *Context
}

// NewCommitPlugin subscribes a CommitPlugin to ctx's event bus.
func NewCommitPlugin(ctx *Context) *CommitPlugin {
	p := &CommitPlugin{ctx: ctx}
	ctx.bus.Subscribe(events.PotentialAssertionEvent{}, p.onPotential)
	return p
}

func (p *CommitPlugin) onPotential(event interface{}) {
	e := event.(events.PotentialAssertionEvent)
	target := p.ctx.GetKB(e.TargetNoteID)
	target.CommitAssertion(e.Candidate, e.Candidate.SourceID)
}
