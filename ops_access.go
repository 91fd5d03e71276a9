package rethinkdb

import "github.com/rethinkdb/rethinkdb-go/pkg/proto"

// Bracket indexes the receiver by position or key, the general form of the
// bracket operator.
func (t Term) Bracket(key any) Term {
	return opTerm(proto.TermBracket, "", styleBracket, t, key)
}

// Field navigates to an object attribute.
func (t Term) Field(name any) Term {
	return opTerm(proto.TermGetField, "get_field", styleMethod, t, name)
}

// Nth returns the element at the given position, negative positions
// counting from the end.
func (t Term) Nth(index any) Term {
	return opTerm(proto.TermNth, "nth", styleMethod, t, index)
}

// HasFields keeps documents that have all the named fields.
func (t Term) HasFields(fields ...any) Term {
	return opTerm(proto.TermHasFields, "has_fields", styleMethod, prepend(t, fields)...)
}

// Pluck keeps only the named fields of each document.
func (t Term) Pluck(fields ...any) Term {
	return opTerm(proto.TermPluck, "pluck", styleMethod, prepend(t, fields)...)
}

// Without drops the named fields of each document.
func (t Term) Without(fields ...any) Term {
	return opTerm(proto.TermWithout, "without", styleMethod, prepend(t, fields)...)
}

// Merge deep-merges objects, later arguments winning.
func (t Term) Merge(args ...any) Term {
	return opTerm(proto.TermMerge, "merge", styleMethod, prepend(t, funcWrapAll(args))...)
}

// Keys lists the keys of an object.
func (t Term) Keys() Term {
	return opTerm(proto.TermKeys, "keys", styleMethod, t)
}

// Values lists the values of an object.
func (t Term) Values() Term {
	return opTerm(proto.TermValues, "values", styleMethod, t)
}

// WithFields is the composition of HasFields and Pluck.
func (t Term) WithFields(fields ...any) Term {
	return opTerm(proto.TermWithFields, "with_fields", styleMethod, prepend(t, fields)...)
}

// Append adds a value at the end of an array.
func (t Term) Append(value any) Term {
	return opTerm(proto.TermAppend, "append", styleMethod, t, value)
}

// Prepend adds a value at the start of an array.
func (t Term) Prepend(value any) Term {
	return opTerm(proto.TermPrepend, "prepend", styleMethod, t, value)
}

// Difference removes the given values from an array.
func (t Term) Difference(value any) Term {
	return opTerm(proto.TermDifference, "difference", styleMethod, t, value)
}

// SetInsert adds a value to an array treated as a set.
func (t Term) SetInsert(value any) Term {
	return opTerm(proto.TermSetInsert, "set_insert", styleMethod, t, value)
}

// SetUnion unions two arrays treated as sets.
func (t Term) SetUnion(value any) Term {
	return opTerm(proto.TermSetUnion, "set_union", styleMethod, t, value)
}

// SetIntersection intersects two arrays treated as sets.
func (t Term) SetIntersection(value any) Term {
	return opTerm(proto.TermSetIntersection, "set_intersection", styleMethod, t, value)
}

// SetDifference subtracts two arrays treated as sets.
func (t Term) SetDifference(value any) Term {
	return opTerm(proto.TermSetDifference, "set_difference", styleMethod, t, value)
}

// InsertAt inserts a value at the given array position.
func (t Term) InsertAt(index, value any) Term {
	return opTerm(proto.TermInsertAt, "insert_at", styleMethod, t, index, value)
}

// SpliceAt inserts an array at the given array position.
func (t Term) SpliceAt(index, value any) Term {
	return opTerm(proto.TermSpliceAt, "splice_at", styleMethod, t, index, value)
}

// DeleteAt removes one element, or the [start, end) range, of an array.
func (t Term) DeleteAt(index any, end ...any) Term {
	return opTerm(proto.TermDeleteAt, "delete_at", styleMethod, prepend(t, append([]any{index}, end...))...)
}

// ChangeAt replaces the element at the given array position.
func (t Term) ChangeAt(index, value any) Term {
	return opTerm(proto.TermChangeAt, "change_at", styleMethod, t, index, value)
}

// Slice keeps the [start, end) range of a sequence.
func (t Term) Slice(start any, rest ...any) Term {
	args, opts := splitTrailingOpts(rest)
	return opTermOpts(proto.TermSlice, "slice", styleMethod, opts, prepend(t, append([]any{start}, args...))...)
}

// Skip drops the first n elements of a sequence.
func (t Term) Skip(n any) Term {
	return opTerm(proto.TermSkip, "skip", styleMethod, t, n)
}

// Limit keeps the first n elements of a sequence.
func (t Term) Limit(n any) Term {
	return opTerm(proto.TermLimit, "limit", styleMethod, t, n)
}

// OffsetsOf returns the positions where the value or predicate matches.
func (t Term) OffsetsOf(args ...any) Term {
	return opTerm(proto.TermOffsetsOf, "offsets_of", styleMethod, prepend(t, funcWrapAll(args))...)
}

// Contains tests whether the sequence contains all values or satisfies all
// predicates.
func (t Term) Contains(args ...any) Term {
	return opTerm(proto.TermContains, "contains", styleMethod, prepend(t, funcWrapAll(args))...)
}

// IsEmpty tests whether a sequence has no elements.
func (t Term) IsEmpty() Term {
	return opTerm(proto.TermIsEmpty, "is_empty", styleMethod, t)
}

// splitTrailingOpts separates a trailing OptArgs value from positional
// arguments, for methods whose option object follows variadic operands.
func splitTrailingOpts(args []any) ([]any, OptArgs) {
	if len(args) == 0 {
		return args, nil
	}
	if opts, ok := args[len(args)-1].(OptArgs); ok {
		return args[:len(args)-1], opts
	}
	return args, nil
}
