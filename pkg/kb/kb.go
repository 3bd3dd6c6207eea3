// Package kb implements the per-scope Knowledge Base: a bounded container
// wrapping a discrimination trie over ground/Skolemized assertions, a
// universal-predicate index, and a min-priority eviction queue (spec
// §4.3). Assertion data itself lives in the TMS; the KB holds only ids and
// enough local metadata to remove an id from its own indexes once the TMS
// reports it gone or inactive.
package kb

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kifreason/kifreason/pkg/eventbus"
	"github.com/kifreason/kifreason/pkg/events"
	"github.com/kifreason/kifreason/pkg/pathindex"
	"github.com/kifreason/kifreason/pkg/rules"
	"github.com/kifreason/kifreason/pkg/term"
	"github.com/kifreason/kifreason/pkg/tms"
	"github.com/kifreason/kifreason/pkg/unify"
)

// Capacity thresholds for the warning/critical backpressure logs (spec §5
// "Capacity & backpressure").
const (
	WarnCapacityFraction     = 0.90
	CriticalCapacityFraction = 0.98
)

type committedMeta struct {
	kind       rules.Kind
	kif        term.Term
	predicates []string
	indexed    bool // true once this id has live entries in pathIndex/universalIndex
}

// KB is one scope's knowledge base: either the global KB or a single
// note's KB (spec §3 "Knowledge Base").
type KB struct {
	id       string
	capacity int

	mu             sync.RWMutex // exclusive for commit/retract, shared for queries (spec §5)
	pathIndex      *pathindex.Index
	universalIndex map[string]map[string]bool // predicate -> universal assertion ids
	factIndex      map[string]map[string]bool // predicate -> ground/Skolem assertion ids, for universal instantiation (spec §4.8)
	eviction       *evictionQueue
	kifIndex       map[string]string // printed kif -> id, ground/Skolem only
	meta           map[string]committedMeta
	ids            map[string]bool // every committed id regardless of kind, for size accounting

	t   *tms.TMS
	bus *eventbus.Bus
	log logrus.FieldLogger
}

// New returns an empty KB named id with the given capacity, backed by t
// for assertion storage and bus for event publication.
func New(id string, capacity int, t *tms.TMS, bus *eventbus.Bus, log logrus.FieldLogger) *KB {
	if log == nil {
		log = logrus.StandardLogger()
	}
	k := &KB{
		id:             id,
		capacity:       capacity,
		pathIndex:      pathindex.New(),
		universalIndex: make(map[string]map[string]bool),
		factIndex:      make(map[string]map[string]bool),
		eviction:       newEvictionQueue(),
		kifIndex:       make(map[string]string),
		meta:           make(map[string]committedMeta),
		ids:            make(map[string]bool),
		t:              t,
		bus:            bus,
		log:            log,
	}
	bus.Subscribe(events.AssertionRetracted{}, k.onRetracted)
	bus.Subscribe(events.AssertionStatusChanged{}, k.onStatusChanged)
	return k
}

// ID returns this KB's scope id ("global" or a note id).
func (k *KB) ID() string { return k.id }

// Size returns the number of ids currently committed in this KB,
// regardless of active/inactive status or kind.
func (k *KB) Size() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.ids)
}

// CommitAssertion attempts to commit potential into this KB (spec §4.3).
// Returns the stored Assertion and true on success; returns (nil, false)
// for a trivial kif, a duplicate/subsumed kif, a TMS rejection, or a KB
// still at capacity after eviction.
func (k *KB) CommitAssertion(potential *rules.PotentialAssertion, source string) (*rules.Assertion, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if term.IsTrivial(potential.Kif) {
		return nil, false
	}

	kind := potential.Kind
	if kind == rules.Ground && potential.Kif.ContainsSkolemTerm() {
		kind = rules.Skolemized
	}

	kifKey := potential.Kif.String()
	if existingID, ok := k.kifIndex[kifKey]; ok {
		if existing, found := k.t.Get(existingID); found && existing.IsActive {
			return nil, false
		}
	}
	if k.subsumedByGeneralization(potential) {
		return nil, false
	}

	k.enforceCapacity()
	if len(k.ids) >= k.capacity {
		k.log.WithField("kb", k.id).Warn("kb: commit refused, at capacity after eviction")
		return nil, false
	}

	a := &rules.Assertion{
		ID:                 rules.NewID(roleFor(kind)),
		Kif:                potential.Kif,
		Priority:           potential.Priority,
		Timestamp:          time.Now().UnixMilli(),
		SourceNoteID:       potential.SourceNoteID,
		Kind:               kind,
		IsEquality:         potential.IsEquality,
		IsOrientedEquality: potential.IsOrientedEquality(),
		IsNegated:          potential.IsNegated,
		QuantifiedVars:     potential.QuantifiedVars,
		DerivationDepth:    potential.DerivationDepth,
		IsActive:           true,
		KBID:               k.id,
	}

	if !k.t.AddAssertion(a, potential.Support) {
		return nil, false
	}

	k.ids[a.ID] = true
	m := committedMeta{kind: kind, kif: a.Kif, predicates: collectPredicates(a.Kif)}
	k.meta[a.ID] = m
	if a.IsActive {
		k.indexLocked(a.ID)
	}
	k.warnIfNearCapacity()
	return a, true
}

// RetractAssertion delegates to the TMS and, like enforceCapacity, drops
// id from this KB's own indexes synchronously, so Size reflects the
// retraction on return. Dependents whose status the retraction changes
// are kept consistent by the AssertionRetracted/AssertionStatusChanged
// subscriptions registered in New (spec §4.3 "external status callbacks").
func (k *KB) RetractAssertion(id, source string) {
	k.t.RetractAssertion(id, source)
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.ids[id] {
		k.deindexLocked(id)
		delete(k.meta, id)
		delete(k.ids, id)
	}
}

func (k *KB) subsumedByGeneralization(potential *rules.PotentialAssertion) bool {
	for candID := range k.pathIndex.FindGeneralizations(potential.Kif) {
		existing, found := k.t.Get(candID)
		if !found || !existing.IsActive || existing.IsNegated != potential.IsNegated {
			continue
		}
		if _, ok := unify.Match(existing.Kif, potential.Kif, unify.Empty()); ok {
			return true
		}
	}
	return false
}

// enforceCapacity evicts the lowest-priority id(s) until this KB is back
// under capacity. The TMS retraction it triggers publishes
// AssertionRetracted asynchronously on the bus's pool, so k.ids/the
// indexes are updated synchronously here rather than waiting on
// onRetracted: otherwise len(k.ids) would still read at capacity for the
// remainder of this call and the loop would keep popping every remaining
// queued id (spec §4.3 step 4 evicts exactly enough to fit, not more).
func (k *KB) enforceCapacity() {
	for len(k.ids) >= k.capacity && k.eviction.Len() > 0 {
		id := k.eviction.PeekLowestID()
		if !k.ids[id] {
			k.eviction.PopLowest()
			continue
		}
		k.eviction.PopLowest()
		k.t.RetractAssertion(id, "eviction")
		k.deindexLocked(id)
		delete(k.meta, id)
		delete(k.ids, id)
		k.bus.Publish(events.AssertionEvicted{ID: id, KBID: k.id})
	}
}

func (k *KB) warnIfNearCapacity() {
	if k.capacity <= 0 {
		return
	}
	frac := float64(len(k.ids)) / float64(k.capacity)
	fields := logrus.Fields{"kb": k.id, "size": len(k.ids), "capacity": k.capacity}
	if frac >= CriticalCapacityFraction {
		k.log.WithFields(fields).Error("kb: at or above critical capacity threshold")
	} else if frac >= WarnCapacityFraction {
		k.log.WithFields(fields).Warn("kb: approaching capacity")
	}
}

// indexLocked adds id to the appropriate index. Caller must hold k.mu.
func (k *KB) indexLocked(id string) {
	m, ok := k.meta[id]
	if !ok || m.indexed {
		return
	}
	switch m.kind {
	case rules.Ground, rules.Skolemized:
		k.pathIndex.Add(id, m.kif)
		k.kifIndex[m.kif.String()] = id
		k.eviction.Push(id, k.priorityOf(id))
		for _, pred := range m.predicates {
			if k.factIndex[pred] == nil {
				k.factIndex[pred] = make(map[string]bool)
			}
			k.factIndex[pred][id] = true
		}
	case rules.Universal:
		for _, pred := range m.predicates {
			if k.universalIndex[pred] == nil {
				k.universalIndex[pred] = make(map[string]bool)
			}
			k.universalIndex[pred][id] = true
		}
	}
	m.indexed = true
	k.meta[id] = m
}

// deindexLocked removes id's entries from every index without forgetting
// its metadata (used when status flips to inactive but the id might
// reactivate later). Caller must hold k.mu.
func (k *KB) deindexLocked(id string) {
	m, ok := k.meta[id]
	if !ok || !m.indexed {
		return
	}
	switch m.kind {
	case rules.Ground, rules.Skolemized:
		k.pathIndex.Remove(id, m.kif)
		delete(k.kifIndex, m.kif.String())
		k.eviction.Remove(id)
		for _, pred := range m.predicates {
			delete(k.factIndex[pred], id)
		}
	case rules.Universal:
		for _, pred := range m.predicates {
			delete(k.universalIndex[pred], id)
		}
	}
	m.indexed = false
	k.meta[id] = m
}

func (k *KB) priorityOf(id string) float64 {
	if a, ok := k.t.Get(id); ok {
		return a.Priority
	}
	return 0
}

func (k *KB) onRetracted(event interface{}) {
	e := event.(events.AssertionRetracted)
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.ids[e.ID] {
		return
	}
	k.deindexLocked(e.ID)
	delete(k.meta, e.ID)
	delete(k.ids, e.ID)
}

func (k *KB) onStatusChanged(event interface{}) {
	e := event.(events.AssertionStatusChanged)
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.ids[e.ID] {
		return
	}
	if e.IsActive {
		k.indexLocked(e.ID)
	} else {
		k.deindexLocked(e.ID)
	}
}

// FindUnifiable returns the ids of active ground/Skolem assertions in this
// KB whose kif might unify with query (spec §4.3 "Queries").
func (k *KB) FindUnifiable(query term.Term) map[string]bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.filterActive(k.pathIndex.FindUnifiable(query))
}

// FindInstances returns the ids of active ground/Skolem assertions that
// could be instances of pattern.
func (k *KB) FindInstances(pattern term.Term) map[string]bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.filterActive(k.pathIndex.FindInstances(pattern))
}

// FindRelevantUniversals returns the ids of active Universal assertions
// indexed under predicate (spec §4.8).
func (k *KB) FindRelevantUniversals(predicate string) map[string]bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.filterActive(k.universalIndex[predicate])
}

// FindFactsByPredicate returns the ids of active ground/Skolem assertions
// whose kif references predicate anywhere, used when instantiating a
// freshly added Universal against existing facts (spec §4.8 "for every
// active ground/Skolem fact G ... whose referenced predicates intersect").
func (k *KB) FindFactsByPredicate(predicate string) map[string]bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.filterActive(k.factIndex[predicate])
}

// AllIDs returns a snapshot of every id committed in this KB, regardless
// of kind or active status (spec §4.11 "Retraction by note").
func (k *KB) AllIDs() map[string]bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	out := make(map[string]bool, len(k.ids))
	for id := range k.ids {
		out[id] = true
	}
	return out
}

func (k *KB) filterActive(candidates map[string]bool) map[string]bool {
	out := make(map[string]bool, len(candidates))
	for id := range candidates {
		if a, ok := k.t.Get(id); ok && a.IsActive && a.KBID == k.id {
			out[id] = true
		}
	}
	return out
}

func roleFor(kind rules.Kind) string {
	switch kind {
	case rules.Skolemized:
		return "skfact"
	case rules.Universal:
		return "rule"
	default:
		return "fact"
	}
}

// collectPredicates walks t and every sub-list, returning the distinct
// operator atoms found, used to index a Universal assertion under every
// predicate its body references (spec §4.3 step 7, §4.8).
func collectPredicates(t term.Term) []string {
	seen := make(map[string]bool)
	collectPredicatesInto(t, seen)
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	return out
}

func collectPredicatesInto(t term.Term, seen map[string]bool) {
	l, ok := t.(*term.List)
	if !ok {
		return
	}
	if op, ok := l.Operator(); ok {
		seen[op] = true
	}
	for _, e := range l.Elems() {
		collectPredicatesInto(e, seen)
	}
}
