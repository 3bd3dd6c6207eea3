// Package pathindex implements the discrimination trie used to answer
// unifiable/instance/generalization queries over assertion kifs without
// scanning the whole knowledge base (spec §4.2). The index is an
// over-approximation: callers must still filter candidates with
// unify/match.
package pathindex

import (
	"sync"

	"github.com/kifreason/kifreason/pkg/term"
)

// key markers for non-atom term shapes.
const (
	varMarker  = "\x00VAR\x00"
	listMarker = "\x00LIST\x00"
)

// node is one level of the trie. ids holds assertion ids whose root path
// passes through this node (used to answer over-approximate queries without
// descending further); children is keyed by the term-shape key described in
// spec §4.2.
type node struct {
	children map[string]*node
	ids      map[string]bool
}

func newNode() *node {
	return &node{children: make(map[string]*node), ids: make(map[string]bool)}
}

func (n *node) child(key string) *node {
	c, ok := n.children[key]
	if !ok {
		c = newNode()
		n.children[key] = c
	}
	return c
}

// Index is a discrimination trie over term shape, keyed by an opaque id
// string supplied by the caller (normally an assertion id).
type Index struct {
	mu   sync.RWMutex
	root *node
}

// New returns an empty Index.
func New() *Index {
	return &Index{root: newNode()}
}

// keyOf returns the trie key for t: an atom's own value, the variable
// marker, or the list's operator atom value (falling back to the generic
// list marker when the list has no atom-headed operator).
func keyOf(t term.Term) string {
	switch v := t.(type) {
	case *term.Atom:
		return v.Value()
	case *term.Var:
		return varMarker
	case *term.List:
		if op, ok := v.Operator(); ok {
			return op
		}
		return listMarker
	default:
		return listMarker
	}
}

// Add indexes t under id: for every subterm visited top-down from the root,
// the id is recorded at the intermediate node and at the node keyed by that
// subterm's key; list elements are then visited recursively.
func (idx *Index) Add(id string, t term.Term) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.add(idx.root, id, t)
}

func (idx *Index) add(n *node, id string, t term.Term) {
	n.ids[id] = true
	child := n.child(keyOf(t))
	child.ids[id] = true
	if l, ok := t.(*term.List); ok {
		for _, e := range l.Elems() {
			idx.add(child, id, e)
		}
	}
}

// Remove undoes Add, pruning empty sub-nodes. It is a no-op if id was never
// added under t's path.
func (idx *Index) Remove(id string, t term.Term) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.remove(idx.root, id, t)
}

func (idx *Index) remove(n *node, id string, t term.Term) bool {
	delete(n.ids, id)
	key := keyOf(t)
	child, ok := n.children[key]
	if !ok {
		return len(n.ids) == 0 && len(n.children) == 0
	}
	delete(child.ids, id)
	if l, ok := t.(*term.List); ok {
		for _, e := range l.Elems() {
			idx.remove(child, id, e)
		}
	}
	if len(child.ids) == 0 && len(child.children) == 0 {
		delete(n.children, key)
	}
	return len(n.ids) == 0 && len(n.children) == 0
}

// FindUnifiable over-approximates the set of indexed ids that might unify
// with query: it visits the VAR subtree (matches anything), the LIST
// subtree when query is a list, the specific key's subtree, and — when
// query itself is a variable — every child (spec §4.2).
func (idx *Index) FindUnifiable(query term.Term) map[string]bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	result := make(map[string]bool)
	idx.collectUnifiable(idx.root, query, result)
	return result
}

func (idx *Index) collectUnifiable(n *node, query term.Term, out map[string]bool) {
	if n == nil {
		return
	}
	if c, ok := n.children[varMarker]; ok {
		addAll(out, c.ids)
	}
	if _, isList := query.(*term.List); isList {
		if c, ok := n.children[listMarker]; ok {
			addAll(out, c.ids)
		}
	}
	if _, isVar := query.(*term.Var); isVar {
		for _, c := range n.children {
			addAll(out, c.ids)
		}
		return
	}
	key := keyOf(query)
	child, ok := n.children[key]
	if !ok {
		return
	}
	addAll(out, child.ids)
	if l, ok := query.(*term.List); ok {
		for _, e := range l.Elems() {
			idx.collectUnifiable(child, e, out)
		}
	}
}

// FindInstances over-approximates the set of indexed ids whose term could be
// an instance of pattern (pattern more general, no bindings applied): if
// pattern is a variable, every indexed id qualifies; otherwise the query
// descends the specific key only (spec §4.2).
func (idx *Index) FindInstances(pattern term.Term) map[string]bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if _, ok := pattern.(*term.Var); ok {
		return idx.allIDs()
	}
	result := make(map[string]bool)
	idx.collectInstances(idx.root, pattern, result)
	return result
}

func (idx *Index) collectInstances(n *node, pattern term.Term, out map[string]bool) {
	if n == nil {
		return
	}
	key := keyOf(pattern)
	child, ok := n.children[key]
	if !ok {
		return
	}
	addAll(out, child.ids)
	if l, ok := pattern.(*term.List); ok {
		for _, e := range l.Elems() {
			idx.collectInstances(child, e, out)
		}
	}
}

// FindGeneralizations over-approximates the set of indexed ids that could be
// a generalization of query: the VAR subtree always matches (a bare
// variable generalizes anything), the LIST subtree matches when query is a
// list, and the specific key is visited and recursed into per subterm
// (spec §4.2).
func (idx *Index) FindGeneralizations(query term.Term) map[string]bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	result := make(map[string]bool)
	idx.collectGeneralizations(idx.root, query, result)
	return result
}

func (idx *Index) collectGeneralizations(n *node, query term.Term, out map[string]bool) {
	if n == nil {
		return
	}
	if c, ok := n.children[varMarker]; ok {
		addAll(out, c.ids)
	}
	if _, isList := query.(*term.List); isList {
		if c, ok := n.children[listMarker]; ok {
			addAll(out, c.ids)
		}
	}
	key := keyOf(query)
	child, ok := n.children[key]
	if !ok {
		return
	}
	addAll(out, child.ids)
	if l, ok := query.(*term.List); ok {
		for _, e := range l.Elems() {
			idx.collectGeneralizations(child, e, out)
		}
	}
}

func (idx *Index) allIDs() map[string]bool {
	out := make(map[string]bool)
	addAll(out, idx.root.ids)
	return out
}

func addAll(dst, src map[string]bool) {
	for id := range src {
		dst[id] = true
	}
}
