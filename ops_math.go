package rethinkdb

import "github.com/rethinkdb/rethinkdb-go/pkg/proto"

// Add sums numbers, concatenates strings or arrays, or shifts times.
func (t Term) Add(args ...any) Term {
	return opTerm(proto.TermAdd, "+", styleInfix, prepend(t, args)...)
}

// Sub subtracts numbers or computes time differences.
func (t Term) Sub(args ...any) Term {
	return opTerm(proto.TermSub, "-", styleInfix, prepend(t, args)...)
}

// Mul multiplies numbers or repeats arrays.
func (t Term) Mul(args ...any) Term {
	return opTerm(proto.TermMul, "*", styleInfix, prepend(t, args)...)
}

// Div divides numbers.
func (t Term) Div(args ...any) Term {
	return opTerm(proto.TermDiv, "/", styleInfix, prepend(t, args)...)
}

// Mod computes the remainder of integer division.
func (t Term) Mod(args ...any) Term {
	return opTerm(proto.TermMod, "%", styleInfix, prepend(t, args)...)
}

// Eq tests values for equality.
func (t Term) Eq(args ...any) Term {
	return opTerm(proto.TermEq, "==", styleInfix, prepend(t, args)...)
}

// Ne tests values for inequality.
func (t Term) Ne(args ...any) Term {
	return opTerm(proto.TermNe, "!=", styleInfix, prepend(t, args)...)
}

// Lt tests whether the receiver orders before the arguments.
func (t Term) Lt(args ...any) Term {
	return opTerm(proto.TermLt, "<", styleInfix, prepend(t, args)...)
}

// Le tests whether the receiver orders before or equal to the arguments.
func (t Term) Le(args ...any) Term {
	return opTerm(proto.TermLe, "<=", styleInfix, prepend(t, args)...)
}

// Gt tests whether the receiver orders after the arguments.
func (t Term) Gt(args ...any) Term {
	return opTerm(proto.TermGt, ">", styleInfix, prepend(t, args)...)
}

// Ge tests whether the receiver orders after or equal to the arguments.
func (t Term) Ge(args ...any) Term {
	return opTerm(proto.TermGe, ">=", styleInfix, prepend(t, args)...)
}

// And is the logical conjunction of the receiver and the arguments.
func (t Term) And(args ...any) Term {
	return opTerm(proto.TermAnd, "and", styleMethod, prepend(t, args)...)
}

// Or is the logical disjunction of the receiver and the arguments.
func (t Term) Or(args ...any) Term {
	return opTerm(proto.TermOr, "or", styleMethod, prepend(t, args)...)
}

// Not is the logical negation of the receiver.
func (t Term) Not() Term {
	return opTerm(proto.TermNot, "not", styleMethod, t)
}

// Floor rounds toward negative infinity.
func (t Term) Floor() Term {
	return opTerm(proto.TermFloor, "floor", styleMethod, t)
}

// Ceil rounds toward positive infinity.
func (t Term) Ceil() Term {
	return opTerm(proto.TermCeil, "ceil", styleMethod, t)
}

// Round rounds to the nearest integer.
func (t Term) Round() Term {
	return opTerm(proto.TermRound, "round", styleMethod, t)
}

func prepend(t Term, args []any) []any {
	all := make([]any, 0, len(args)+1)
	all = append(all, t)
	return append(all, args...)
}
