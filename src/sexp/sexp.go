// Package sexp implements the minimal S-expression subset quill needs:
// atoms and parenthesised lists of atoms/lists, enough to render
// Action.Sexp() for hashing and to serialise the trace file
// ("(list (pair path hex-digest))", per the trace file format).
//
// No pack example or ecosystem library was found that implements this
// exact tiny grammar (searched for "sexp"/"lisp" across every example
// repo's go.mod and go.sum; nothing turned up), so this is a
// deliberately hand-written component — see DESIGN.md for the
// justification required for standard-library-only parts.
package sexp

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Value is either an Atom or a List.
type Value interface {
	String() string
	isValue()
}

// Atom is an unquoted token, rendered verbatim. Only atoms free of
// whitespace and parentheses survive a round trip through Parse; the
// trace file stores only paths and hex digests in atoms, while
// Action.Sexp forms, which are rendered for hashing and never parsed,
// may hold other text (a Shell action's command, for one).
type Atom string

func (a Atom) String() string { return string(a) }
func (Atom) isValue()         {}

// List is an ordered sequence of sub-values rendered as "(v1 v2 ...)".
type List []Value

func (l List) String() string {
	parts := make([]string, len(l))
	for i, v := range l {
		parts[i] = v.String()
	}
	return "(" + strings.Join(parts, " ") + ")"
}
func (List) isValue() {}

// Pair renders a 2-element list, matching the trace format's
// "(pair path hex-digest)" entries.
func Pair(a, b Value) Value { return List{Atom("pair"), a, b} }

// Of wraps a tagged list, e.g. Of("list", entries...) renders
// "(list entries...)".
func Of(tag string, items ...Value) Value {
	l := make(List, 0, len(items)+1)
	l = append(l, Atom(tag))
	l = append(l, items...)
	return l
}

// Parse reads exactly one S-expression from r. It is a small recursive
// descent parser sufficient for the grammar this package writes: atoms
// are maximal runs of non-whitespace, non-paren characters, lists are
// parenthesised and whitespace-separated.
func Parse(r io.Reader) (Value, error) {
	br := bufio.NewReader(r)
	v, err := parseValue(br)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func skipSpace(br *bufio.Reader) error {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return err
		}
		if b != ' ' && b != '\t' && b != '\n' && b != '\r' {
			return br.UnreadByte()
		}
	}
}

func parseValue(br *bufio.Reader) (Value, error) {
	if err := skipSpace(br); err != nil {
		return nil, err
	}
	b, err := br.ReadByte()
	if err != nil {
		return nil, err
	}
	if b == '(' {
		var items List
		for {
			if err := skipSpace(br); err != nil {
				return nil, fmt.Errorf("sexp: unterminated list: %w", err)
			}
			peek, err := br.Peek(1)
			if err != nil {
				return nil, fmt.Errorf("sexp: unterminated list: %w", err)
			}
			if peek[0] == ')' {
				br.ReadByte()
				return items, nil
			}
			v, err := parseValue(br)
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
	}
	if b == ')' {
		return nil, fmt.Errorf("sexp: unexpected ')'")
	}
	var sb strings.Builder
	sb.WriteByte(b)
	for {
		peek, err := br.Peek(1)
		if err != nil {
			break // EOF ends the atom
		}
		c := peek[0]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '(' || c == ')' {
			break
		}
		br.ReadByte()
		sb.WriteByte(c)
	}
	return Atom(sb.String()), nil
}
