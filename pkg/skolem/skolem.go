// Package skolem implements existential elimination: replacing the
// existentially quantified variables of an `(exists varsSpec body)` form
// with fresh Skolem constants or functions of the enclosing free variables
// (spec §4.5).
package skolem

import (
	"sort"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/kifreason/kifreason/pkg/term"
	"github.com/kifreason/kifreason/pkg/unify"
)

// ErrMalformedExists is returned when a form is not a well-formed
// `(exists varsSpec body)` (spec §7 "ValidationError").
var ErrMalformedExists = errors.New("malformed exists form")

// Skolemizer mints fresh Skolem names. The counter is process-wide so two
// Skolemizer values never collide, matching the single-atomic-counter
// convention used for assertion/rule ids.
type Skolemizer struct{}

var skolemCounter int64

// New returns a Skolemizer.
func New() *Skolemizer {
	return &Skolemizer{}
}

// Skolemize processes `(exists varsSpec body)`: varsSpec is a single Var or
// a List of Vars. For each existential variable v, it collects the free
// variables of body (minus the existentials), applies outer to each to
// reflect bindings already in force, sorts the result by string form for a
// deterministic argument list A, and mints a fresh name — a Skolem
// constant `skc_<varname>_<n>` if A is empty, otherwise a list headed by
// `skf_<varname>_<n>` followed by A. v is substituted by this term
// throughout body, and the final body (with all existentials eliminated)
// is returned.
func (s *Skolemizer) Skolemize(form *term.List, outer unify.Bindings) (term.Term, error) {
	if form.Len() != 3 {
		return nil, errors.Wrap(ErrMalformedExists, "exists form must have arity 3")
	}
	if op, ok := form.Operator(); !ok || op != "exists" {
		return nil, errors.Wrap(ErrMalformedExists, "operator must be exists")
	}
	existentials, err := varsFromSpec(form.Get(1))
	if err != nil {
		return nil, err
	}
	body := form.Get(2)

	excluded := make(map[string]bool, len(existentials))
	for _, v := range existentials {
		excluded[v.Name()] = true
	}

	for _, v := range existentials {
		freeTerms := s.freeArgumentList(body, excluded, outer)
		skolemTerm := s.mintSkolemTerm(v, freeTerms)
		body = unify.Substitute(body, unify.Empty().Bind(v, skolemTerm), true)
	}
	return body, nil
}

func varsFromSpec(spec term.Term) ([]*term.Var, error) {
	if v, ok := spec.(*term.Var); ok {
		return []*term.Var{v}, nil
	}
	l, ok := spec.(*term.List)
	if !ok {
		return nil, errors.Wrap(ErrMalformedExists, "varsSpec must be a variable or a list of variables")
	}
	vars := make([]*term.Var, 0, l.Len())
	for _, e := range l.Elems() {
		v, ok := e.(*term.Var)
		if !ok {
			return nil, errors.Wrap(ErrMalformedExists, "varsSpec list must contain only variables")
		}
		vars = append(vars, v)
	}
	if len(vars) == 0 {
		return nil, errors.Wrap(ErrMalformedExists, "varsSpec must name at least one variable")
	}
	return vars, nil
}

// freeArgumentList computes the deterministic argument list A for minting a
// Skolem term: the free variables of body (those not in excluded), each
// walked through outer, sorted by printed form.
func (s *Skolemizer) freeArgumentList(body term.Term, excluded map[string]bool, outer unify.Bindings) []term.Term {
	varSet := body.VarSet()
	free := make([]term.Term, 0, len(varSet))
	for name, v := range varSet {
		if excluded[name] {
			continue
		}
		free = append(free, unify.Substitute(v, outer, true))
	}
	sort.Slice(free, func(i, j int) bool { return free[i].String() < free[j].String() })
	return free
}

func (s *Skolemizer) mintSkolemTerm(v *term.Var, args []term.Term) term.Term {
	n := atomic.AddInt64(&skolemCounter, 1)
	varName := strings.TrimPrefix(v.Name(), "?")
	if len(args) == 0 {
		return term.NewAtom(skolemName("skc_", varName, n))
	}
	head := term.NewAtom(skolemName("skf_", varName, n))
	elems := append([]term.Term{head}, args...)
	return term.NewList(elems...)
}

func skolemName(prefix, varName string, n int64) string {
	var sb strings.Builder
	sb.WriteString(prefix)
	sb.WriteString(varName)
	sb.WriteByte('_')
	sb.WriteString(strconv.FormatInt(n, 10))
	return sb.String()
}
