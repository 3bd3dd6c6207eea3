// Package reasoner implements the probabilistic, incremental first-order
// reasoning kernel: the shared Context, the forward chainer, the rewriting
// engine, the universal instantiator, the backward chainer and operator
// registry, and the input/commit/retraction routing plugins (spec §3-§4).
package reasoner

import (
	"math"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/kifreason/kifreason/pkg/eventbus"
	"github.com/kifreason/kifreason/pkg/events"
	"github.com/kifreason/kifreason/pkg/kb"
	"github.com/kifreason/kifreason/pkg/rules"
	"github.com/kifreason/kifreason/pkg/skolem"
	"github.com/kifreason/kifreason/pkg/term"
	"github.com/kifreason/kifreason/pkg/tms"
)

// Context owns the global KB, the per-note KBs, the rule set, and the
// shared TMS/event bus/operator registry every reasoner plugin reads from
// (spec §3 "Context").
type Context struct {
	config Config
	log    logrus.FieldLogger
	bus    *eventbus.Bus
	tms    *tms.TMS

	skolemizer *skolem.Skolemizer
	operators  *OperatorRegistry

	global *kb.KB

	notesMu sync.RWMutex
	notes   map[string]*kb.KB

	rulesMu sync.RWMutex
	rules   map[string]*rules.Rule
	byForm  map[string]string // form key -> rule id
}

// NewContext wires a fresh reasoning context: the global KB, the TMS, the
// Skolemizer, and an operator registry with the baseline arithmetic and
// comparison operators installed (spec §4.9).
func NewContext(config Config, bus *eventbus.Bus, log logrus.FieldLogger) *Context {
	if log == nil {
		log = logrus.StandardLogger()
	}
	t := tms.New(bus, log)
	c := &Context{
		config:     config,
		log:        log,
		bus:        bus,
		tms:        t,
		skolemizer: skolem.New(),
		operators:  NewOperatorRegistry(),
		notes:      make(map[string]*kb.KB),
		rules:      make(map[string]*rules.Rule),
		byForm:     make(map[string]string),
	}
	RegisterBaselineOperators(c.operators)
	c.global = kb.New("global", config.KBSize, t, bus, log)
	return c
}

// GetKB returns the KB for noteID, creating it on first use. noteID == ""
// is the global KB.
func (c *Context) GetKB(noteID string) *kb.KB {
	if noteID == "" {
		return c.global
	}
	c.notesMu.RLock()
	k, ok := c.notes[noteID]
	c.notesMu.RUnlock()
	if ok {
		return k
	}
	c.notesMu.Lock()
	defer c.notesMu.Unlock()
	if k, ok := c.notes[noteID]; ok {
		return k
	}
	k = kb.New(noteID, c.config.KBSize, c.tms, c.bus, c.log)
	c.notes[noteID] = k
	return k
}

// kbsFor returns the KBs a lookup rooted at kbID should search: that KB
// alone when it is already the global KB, otherwise that KB plus the
// global KB (spec §4.6-§4.9, "K ∪ global").
func (c *Context) kbsFor(kbID string) []*kb.KB {
	if kbID == "" || kbID == c.global.ID() {
		return []*kb.KB{c.global}
	}
	return []*kb.KB{c.GetKB(kbID), c.global}
}

// RetractNote retracts every assertion in noteID's KB via the TMS, then
// drops the KB entirely (spec §4.11 "Retraction by note").
func (c *Context) RetractNote(noteID, source string) {
	c.notesMu.Lock()
	k, ok := c.notes[noteID]
	if ok {
		delete(c.notes, noteID)
	}
	c.notesMu.Unlock()
	if !ok {
		return
	}
	for id := range k.AllIDs() {
		c.tms.RetractAssertion(id, source)
	}
}

// AddRule registers r, deduplicating by form (spec §3: "Rule equality and
// hash are by form only"). Returns false if an equal-form rule already
// exists.
func (c *Context) AddRule(r *rules.Rule) bool {
	c.rulesMu.Lock()
	defer c.rulesMu.Unlock()
	key := r.FormKey()
	if _, exists := c.byForm[key]; exists {
		return false
	}
	c.rules[r.ID] = r
	c.byForm[key] = r.ID
	c.bus.Publish(events.RuleAdded{Rule: r})
	return true
}

// RemoveRuleByForm removes the rule whose form equals form, if any,
// returning its id (spec §4.11 "Retraction by rule form").
func (c *Context) RemoveRuleByForm(form term.Term) (string, bool) {
	c.rulesMu.Lock()
	defer c.rulesMu.Unlock()
	key := form.String()
	id, ok := c.byForm[key]
	if !ok {
		return "", false
	}
	delete(c.byForm, key)
	delete(c.rules, id)
	return id, true
}

// Rules returns a snapshot of every registered rule.
func (c *Context) Rules() []*rules.Rule {
	c.rulesMu.RLock()
	defer c.rulesMu.RUnlock()
	out := make([]*rules.Rule, 0, len(c.rules))
	for _, r := range c.rules {
		out = append(out, r)
	}
	return out
}

// DerivedDepth computes 1 + the maximum derivation depth over support's
// assertions (spec §3 "Context").
func (c *Context) DerivedDepth(support map[string]bool) int {
	max := -1
	for id := range support {
		if a, ok := c.tms.Get(id); ok && a.DerivationDepth > max {
			max = a.DerivationDepth
		}
	}
	return max + 1
}

// DerivedPriority computes the minimum priority over support's assertions
// times the configured decay, or InputBasePriority when support is empty
// or none of its ids resolve (spec §3 "Context").
func (c *Context) DerivedPriority(support map[string]bool) float64 {
	min := math.MaxFloat64
	found := false
	for id := range support {
		if a, ok := c.tms.Get(id); ok {
			found = true
			if a.Priority < min {
				min = a.Priority
			}
		}
	}
	if !found {
		return InputBasePriority
	}
	return min * c.config.DerivedPriorityDecay
}

// FindCommonSourceNoteID returns the single sourceNoteId shared by every
// resolvable assertion in support, or "" if support is empty or the note
// ids differ (spec §3 "Context").
func (c *Context) FindCommonSourceNoteID(support map[string]bool) string {
	common := ""
	first := true
	for id := range support {
		a, ok := c.tms.Get(id)
		if !ok {
			continue
		}
		if first {
			common = a.SourceNoteID
			first = false
			continue
		}
		if a.SourceNoteID != common {
			return ""
		}
	}
	return common
}
