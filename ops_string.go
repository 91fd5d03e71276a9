package rethinkdb

import "github.com/rethinkdb/rethinkdb-go/pkg/proto"

// Match tests a string against an RE2 regular expression, returning the
// match object or null.
func (t Term) Match(pattern any) Term {
	return opTerm(proto.TermMatch, "match", styleMethod, t, pattern)
}

// Split cuts a string on whitespace, a separator, or a separator with a
// maximum number of splits.
func (t Term) Split(args ...any) Term {
	return opTerm(proto.TermSplit, "split", styleMethod, prepend(t, args)...)
}

// Upcase uppercases a string.
func (t Term) Upcase() Term {
	return opTerm(proto.TermUpcase, "upcase", styleMethod, t)
}

// Downcase lowercases a string.
func (t Term) Downcase() Term {
	return opTerm(proto.TermDowncase, "downcase", styleMethod, t)
}
