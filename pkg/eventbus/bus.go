// Package eventbus implements the typed + pattern publish/subscribe bus
// that decouples the TMS, the knowledge base, reasoner plugins, and
// transport adapters (spec §5). Publishers never block on listeners:
// every dispatch is submitted to a work-stealing Pool.
package eventbus

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Handler receives one published event.
type Handler func(event interface{})

// PatternHandler receives every event for which Predicate returns true,
// regardless of its concrete type.
type PatternHandler struct {
	Predicate func(event interface{}) bool
	Handle    Handler
}

// Bus dispatches events to type-keyed listeners and pattern listeners over
// a work-stealing Pool, so a slow listener cannot block a publisher (spec
// §5). Listener tables are replaced wholesale on every Subscribe call
// (copy-on-write), so reads never need to lock.
type Bus struct {
	pool *Pool
	log  logrus.FieldLogger

	mu       sync.Mutex   // guards writes to the two atomic.Value tables below
	typed    atomic.Value // map[reflect.Type][]Handler
	patterns atomic.Value // []PatternHandler
}

// New returns a Bus backed by a fresh work-stealing pool sized maxWorkers
// (0 defaults to runtime.NumCPU()). log may be nil, in which case
// logrus.StandardLogger() is used.
func New(maxWorkers int, log logrus.FieldLogger) *Bus {
	if log == nil {
		log = logrus.StandardLogger()
	}
	b := &Bus{pool: NewPool(maxWorkers, 1), log: log}
	b.typed.Store(map[reflect.Type][]Handler{})
	b.patterns.Store([]PatternHandler{})
	return b
}

// Subscribe registers handler for every event whose concrete type matches
// a sample value of the same type as sample (direct/typed subscription).
func (b *Bus) Subscribe(sample interface{}, handler Handler) {
	typ := reflect.TypeOf(sample)
	b.mu.Lock()
	defer b.mu.Unlock()
	old := b.typed.Load().(map[reflect.Type][]Handler)
	next := make(map[reflect.Type][]Handler, len(old)+1)
	for k, v := range old {
		next[k] = v
	}
	next[typ] = append(append([]Handler(nil), next[typ]...), handler)
	b.typed.Store(next)
}

// SubscribePattern registers handler for every event matching predicate,
// independent of concrete type.
func (b *Bus) SubscribePattern(predicate func(event interface{}) bool, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	old := b.patterns.Load().([]PatternHandler)
	next := append(append([]PatternHandler(nil), old...), PatternHandler{Predicate: predicate, Handle: handler})
	b.patterns.Store(next)
}

// Publish submits event for asynchronous dispatch to every matching
// listener. A listener panic is logged here and then recovered by the
// pool, which counts it in its Stats; Publish itself never blocks on
// listener execution (spec §5).
func (b *Bus) Publish(event interface{}) {
	typ := reflect.TypeOf(event)
	handlers := b.typed.Load().(map[reflect.Type][]Handler)[typ]
	patterns := b.patterns.Load().([]PatternHandler)
	guard := func(h Handler) func() {
		return func() {
			defer func() {
				if r := recover(); r != nil {
					b.log.WithField("event_type", typ).Errorf("eventbus: listener panicked: %v", r)
					panic(r)
				}
			}()
			h(event)
		}
	}

	for _, h := range handlers {
		if err := b.pool.Submit(context.Background(), guard(h)); err != nil {
			b.log.WithError(err).WithField("event_type", typ).Warn("eventbus: dropped dispatch to typed listener")
		}
	}
	for _, ph := range patterns {
		if !ph.Predicate(event) {
			continue
		}
		if err := b.pool.Submit(context.Background(), guard(ph.Handle)); err != nil {
			b.log.WithError(err).WithField("event_type", typ).Warn("eventbus: dropped dispatch to pattern listener")
		}
	}
}

// Pool exposes the underlying dispatch pool, e.g. for transport adapters
// that want to share it (spec §5: "The LLM and websocket workers are
// additional users of the same or a sibling pool").
func (b *Bus) Pool() *Pool { return b.pool }

// Shutdown stops the underlying dispatch pool. In-flight dispatches are
// abandoned.
func (b *Bus) Shutdown() { b.pool.Shutdown() }
