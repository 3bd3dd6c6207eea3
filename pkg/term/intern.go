package term

import (
	"strings"
	"sync"
)

// atomTable and varTable are process-wide concurrent interning caches, akin
// to the global mutable interning maps described in spec §9: no teardown,
// acceptable process-scoped state.
var (
	atomTable sync.Map // string -> *Atom
	varTable  sync.Map // string -> *Var
)

func internAtom(value string) *Atom {
	if v, ok := atomTable.Load(value); ok {
		return v.(*Atom)
	}
	a := &Atom{value: value}
	actual, _ := atomTable.LoadOrStore(value, a)
	return actual.(*Atom)
}

func internVar(name string) *Var {
	if v, ok := varTable.Load(name); ok {
		return v.(*Var)
	}
	va := &Var{name: name}
	actual, _ := varTable.LoadOrStore(name, va)
	return actual.(*Var)
}

// needsQuoting reports whether value must be printed as a quoted string:
// empty, or containing whitespace or any of ()";?.
func needsQuoting(value string) bool {
	if value == "" {
		return true
	}
	return strings.ContainsAny(value, " \t\n\r()\";?")
}

// printAtom renders value the way the parser expects to read it back,
// quoting and escaping when necessary so that parse(print(t)) == t.
func printAtom(value string) string {
	if !needsQuoting(value) {
		return value
	}
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range value {
		switch r {
		case '\\':
			sb.WriteString(`\\`)
		case '"':
			sb.WriteString(`\"`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		case '\r':
			sb.WriteString(`\r`)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}
