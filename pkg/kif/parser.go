// Package kif implements the streaming S-expression reader/printer for the
// KIF-like assertion language: lists, quoted-string atoms, bare-word atoms,
// variables ("?name"), and line comments (";"). See spec §4.1.
package kif

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/kifreason/kifreason/pkg/term"
)

// ParseError reports a malformed S-expression with its source position.
// The surrounding loader is expected to skip past the offending block and
// continue (spec §7).
type ParseError struct {
	Line, Col int
	Message   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %d:%d: %s", e.Line, e.Col, e.Message)
}

// Parser reads terms from a rune stream, tracking line/column for
// diagnostics.
type Parser struct {
	r        *bufio.Reader
	line     int
	col      int
	lastRune rune
	lastSize int
}

// NewParser wraps r in a term-reading Parser.
func NewParser(r io.Reader) *Parser {
	return &Parser{r: bufio.NewReader(r), line: 1, col: 0}
}

// ParseAll reads every top-level term until EOF. A top-level form is either
// a list, a quoted-string atom, a variable, or a bare atom.
func ParseAll(r io.Reader) ([]term.Term, error) {
	p := NewParser(r)
	var out []term.Term
	for {
		t, err := p.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, t)
	}
}

// ParseOne reads and returns exactly one top-level term.
func ParseOne(s string) (term.Term, error) {
	p := NewParser(strings.NewReader(s))
	return p.Next()
}

func (p *Parser) readRune() (rune, error) {
	r, _, err := p.r.ReadRune()
	if err != nil {
		return 0, err
	}
	p.lastRune = r
	if r == '\n' {
		p.line++
		p.col = 0
	} else {
		p.col++
	}
	return r, nil
}

func (p *Parser) unreadRune() {
	_ = p.r.UnreadRune()
	if p.lastRune == '\n' {
		p.line--
	} else {
		p.col--
	}
}

func (p *Parser) peekRune() (rune, error) {
	r, _, err := p.r.ReadRune()
	if err != nil {
		return 0, err
	}
	_ = p.r.UnreadRune()
	return r, nil
}

func isDelimiter(r rune) bool {
	switch r {
	case '(', ')', '"', ';':
		return true
	}
	return isSpace(r)
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r':
		return true
	}
	return false
}

func (p *Parser) errf(format string, args ...interface{}) error {
	return &ParseError{Line: p.line, Col: p.col, Message: fmt.Sprintf(format, args...)}
}

// skipWhitespaceAndComments advances past whitespace and ";"-line-comments.
// Returns io.EOF if the stream ends while doing so.
func (p *Parser) skipWhitespaceAndComments() error {
	for {
		r, err := p.readRune()
		if err != nil {
			return err
		}
		if isSpace(r) {
			continue
		}
		if r == ';' {
			for {
				r2, err := p.readRune()
				if err != nil {
					return err
				}
				if r2 == '\n' {
					break
				}
			}
			continue
		}
		p.unreadRune()
		return nil
	}
}

// Next reads and returns the next top-level term, or io.EOF when the
// stream is exhausted (possibly after trailing whitespace/comments).
func (p *Parser) Next() (term.Term, error) {
	if err := p.skipWhitespaceAndComments(); err != nil {
		return nil, err
	}
	return p.readTerm()
}

func (p *Parser) readTerm() (term.Term, error) {
	r, err := p.readRune()
	if err != nil {
		return nil, io.EOF
	}
	switch {
	case r == '(':
		return p.readList()
	case r == ')':
		return nil, p.errf("unexpected ')'")
	case r == '"':
		return p.readQuotedAtom()
	case r == '?':
		return p.readVariable()
	default:
		p.unreadRune()
		return p.readBareAtom()
	}
}

func (p *Parser) readList() (term.Term, error) {
	var elems []term.Term
	for {
		if err := p.skipWhitespaceAndComments(); err != nil {
			if err == io.EOF {
				return nil, p.errf("unterminated list: EOF inside '('")
			}
			return nil, err
		}
		r, err := p.peekRune()
		if err != nil {
			return nil, p.errf("unterminated list: EOF inside '('")
		}
		if r == ')' {
			_, _ = p.readRune()
			return term.NewList(elems...), nil
		}
		t, err := p.readTerm()
		if err != nil {
			return nil, err
		}
		elems = append(elems, t)
	}
}

func (p *Parser) readQuotedAtom() (term.Term, error) {
	var sb strings.Builder
	for {
		r, err := p.readRune()
		if err != nil {
			return nil, p.errf("unterminated string: EOF inside '\"'")
		}
		if r == '"' {
			return term.NewAtom(sb.String()), nil
		}
		if r == '\\' {
			esc, err := p.readRune()
			if err != nil {
				return nil, p.errf("unterminated escape at end of string")
			}
			switch esc {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '\\':
				sb.WriteByte('\\')
			case '"':
				sb.WriteByte('"')
			default:
				return nil, p.errf("invalid escape sequence '\\%c'", esc)
			}
			continue
		}
		sb.WriteRune(r)
	}
}

func (p *Parser) readVariable() (term.Term, error) {
	var sb strings.Builder
	sb.WriteByte('?')
	for {
		r, err := p.peekRune()
		if err != nil || isDelimiter(r) {
			break
		}
		_, _ = p.readRune()
		sb.WriteRune(r)
	}
	name := sb.String()
	if len(name) < 2 {
		return nil, p.errf("empty variable name")
	}
	return term.NewVar(name), nil
}

func (p *Parser) readBareAtom() (term.Term, error) {
	var sb strings.Builder
	for {
		r, err := p.peekRune()
		if err != nil || isDelimiter(r) {
			break
		}
		_, _ = p.readRune()
		sb.WriteRune(r)
	}
	if sb.Len() == 0 {
		r, _ := p.peekRune()
		return nil, p.errf("invalid character %q", r)
	}
	return term.NewAtom(sb.String()), nil
}
