package reasoner

import "github.com/kifreason/kifreason/pkg/events"

// RetractPlugin implements the three retraction routes of spec §4.11: by
// assertion id, by note (dropping its whole KB), and by rule form.
type RetractPlugin struct {
	ctx *Context
}

// NewRetractPlugin subscribes a RetractPlugin to ctx's event bus.
func NewRetractPlugin(ctx *Context) *RetractPlugin {
	p := &RetractPlugin{ctx: ctx}
	ctx.bus.Subscribe(events.RetractRequest{}, p.onRetract)
	return p
}

func (p *RetractPlugin) onRetract(event interface{}) {
	e := event.(events.RetractRequest)
	switch e.Kind {
	case events.RetractByID:
		p.ctx.tms.RetractAssertion(e.ID, e.Source)
	case events.RetractByNote:
		p.ctx.RetractNote(e.NoteID, e.Source)
	case events.RetractByRuleForm:
		if id, ok := p.ctx.RemoveRuleByForm(e.RuleForm); ok {
			p.ctx.bus.Publish(events.RuleRemoved{RuleID: id})
		}
	}
}
