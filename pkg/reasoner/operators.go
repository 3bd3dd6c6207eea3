package reasoner

import (
	"strconv"
	"sync"

	"github.com/pkg/errors"

	"github.com/kifreason/kifreason/pkg/term"
)

// ErrOperatorArity is returned by a baseline operator given the wrong
// number of arguments (spec §7 "OperatorError").
var ErrOperatorArity = errors.New("operator: wrong argument count")

// ErrOperatorNotNumeric is returned when an argument is not a numeric atom.
var ErrOperatorNotNumeric = errors.New("operator: argument is not numeric")

// Operator implements a registered backward-chaining primitive (spec
// §4.9). It receives the already-substituted argument terms and the
// reasoner context, returning a result term (the atom `true` signals bare
// success) or an error.
type Operator func(ctx *Context, args []term.Term) (term.Term, error)

// OperatorRegistry maps predicate names to Operators, consulted by the
// backward chainer before falling back to facts and rules (spec §4.9).
type OperatorRegistry struct {
	mu  sync.RWMutex
	ops map[string]Operator
}

// NewOperatorRegistry returns an empty registry.
func NewOperatorRegistry() *OperatorRegistry {
	return &OperatorRegistry{ops: make(map[string]Operator)}
}

// Register installs op under name, replacing any existing operator of the
// same name. This is the extensibility point spec.md §9 asks for so a
// future LLM-backed or domain-specific operator can be added without
// touching the prover.
func (r *OperatorRegistry) Register(name string, op Operator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops[name] = op
}

// Lookup returns the operator registered under name, if any.
func (r *OperatorRegistry) Lookup(name string) (Operator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	op, ok := r.ops[name]
	return op, ok
}

// RegisterBaselineOperators installs the arithmetic (`+ - * /`) and
// comparison (`< > <= >=`) operators spec.md §4.9 calls out explicitly,
// over numeric atoms; comparisons return the atoms `true`/`false`.
func RegisterBaselineOperators(r *OperatorRegistry) {
	r.Register("+", arithmetic(func(a, b float64) float64 { return a + b }))
	r.Register("-", arithmetic(func(a, b float64) float64 { return a - b }))
	r.Register("*", arithmetic(func(a, b float64) float64 { return a * b }))
	r.Register("/", arithmetic(func(a, b float64) float64 { return a / b }))
	r.Register("<", comparison(func(a, b float64) bool { return a < b }))
	r.Register(">", comparison(func(a, b float64) bool { return a > b }))
	r.Register("<=", comparison(func(a, b float64) bool { return a <= b }))
	r.Register(">=", comparison(func(a, b float64) bool { return a >= b }))
}

func arithmetic(f func(a, b float64) float64) Operator {
	return func(ctx *Context, args []term.Term) (term.Term, error) {
		a, b, err := twoNumbers(args)
		if err != nil {
			return nil, err
		}
		return term.NewAtom(formatNumber(f(a, b))), nil
	}
}

func comparison(f func(a, b float64) bool) Operator {
	return func(ctx *Context, args []term.Term) (term.Term, error) {
		a, b, err := twoNumbers(args)
		if err != nil {
			return nil, err
		}
		if f(a, b) {
			return term.NewAtom("true"), nil
		}
		return term.NewAtom("false"), nil
	}
}

func twoNumbers(args []term.Term) (float64, float64, error) {
	if len(args) != 2 {
		return 0, 0, ErrOperatorArity
	}
	a, ok := numericValue(args[0])
	if !ok {
		return 0, 0, ErrOperatorNotNumeric
	}
	b, ok := numericValue(args[1])
	if !ok {
		return 0, 0, ErrOperatorNotNumeric
	}
	return a, b, nil
}

func numericValue(t term.Term) (float64, bool) {
	atom, ok := t.(*term.Atom)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(atom.Value(), 64)
	return v, err == nil
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
