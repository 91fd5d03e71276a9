package rethinkdb

import "github.com/rethinkdb/rethinkdb-go/pkg/proto"

// Filter keeps the elements matching a predicate function, an example
// object, or a Row expression.
func (t Term) Filter(predicate any, opts ...OptArgs) Term {
	return opTermOpts(proto.TermFilter, "filter", styleMethod, mergeOptArgs(opts), t, funcWrap(predicate))
}

// Map transforms each element of one or more sequences; the last argument
// is the mapping function.
func (t Term) Map(args ...any) Term {
	if len(args) == 0 {
		return errTerm(newDriverCompileError("Expected 1 or more arguments but found 0."))
	}
	args[len(args)-1] = funcWrap(args[len(args)-1])
	return opTerm(proto.TermMap, "map", styleMethod, prepend(t, args)...)
}

// ConcatMap maps and flattens one level.
func (t Term) ConcatMap(fn any) Term {
	return opTerm(proto.TermConcatMap, "concat_map", styleMethod, t, funcWrap(fn))
}

// OrderBy sorts a sequence by keys, functions, or Asc/Desc wrappers; an
// index is named through the optional arguments.
func (t Term) OrderBy(args ...any) Term {
	rest, opts := splitTrailingOpts(args)
	for i, arg := range rest {
		if term, ok := arg.(Term); ok && (term.termType == proto.TermAsc || term.termType == proto.TermDesc) {
			continue
		}
		rest[i] = funcWrap(arg)
	}
	return opTermOpts(proto.TermOrderBy, "order_by", styleMethod, opts, prepend(t, rest)...)
}

// Asc marks an OrderBy key as ascending.
func Asc(key any) Term {
	return opTerm(proto.TermAsc, "asc", styleTopLevel, funcWrap(key))
}

// Desc marks an OrderBy key as descending.
func Desc(key any) Term {
	return opTerm(proto.TermDesc, "desc", styleTopLevel, funcWrap(key))
}

// Group partitions a sequence by keys or functions.
func (t Term) Group(args ...any) Term {
	rest, opts := splitTrailingOpts(args)
	return opTermOpts(proto.TermGroup, "group", styleMethod, opts, prepend(t, funcWrapAll(rest))...)
}

// Ungroup turns grouped data back into a plain sequence of group/reduction
// objects.
func (t Term) Ungroup() Term {
	return opTerm(proto.TermUngroup, "ungroup", styleMethod, t)
}

// Count counts elements, optionally only those equal to a value or
// matching a predicate.
func (t Term) Count(args ...any) Term {
	return opTerm(proto.TermCount, "count", styleMethod, prepend(t, funcWrapAll(args))...)
}

// Sum adds the elements, or a field/function of each element.
func (t Term) Sum(args ...any) Term {
	return opTerm(proto.TermSum, "sum", styleMethod, prepend(t, funcWrapAll(args))...)
}

// Avg averages the elements, or a field/function of each element.
func (t Term) Avg(args ...any) Term {
	return opTerm(proto.TermAvg, "avg", styleMethod, prepend(t, funcWrapAll(args))...)
}

// Min returns the smallest element, optionally by field, function or
// index.
func (t Term) Min(args ...any) Term {
	rest, opts := splitTrailingOpts(args)
	return opTermOpts(proto.TermMin, "min", styleMethod, opts, prepend(t, funcWrapAll(rest))...)
}

// Max returns the largest element, optionally by field, function or index.
func (t Term) Max(args ...any) Term {
	rest, opts := splitTrailingOpts(args)
	return opTermOpts(proto.TermMax, "max", styleMethod, opts, prepend(t, funcWrapAll(rest))...)
}

// Reduce folds the sequence pairwise with a two-argument function.
func (t Term) Reduce(fn any) Term {
	return opTerm(proto.TermReduce, "reduce", styleMethod, t, funcWrap(fn))
}

// Fold folds the sequence left-to-right from a base value; emit and
// final_emit go through the optional arguments.
func (t Term) Fold(base, fn any, opts ...OptArgs) Term {
	merged := mergeOptArgs(opts)
	wrapped := make(OptArgs, len(merged))
	for k, v := range merged {
		wrapped[k] = funcWrap(v)
	}
	return opTermOpts(proto.TermFold, "fold", styleMethod, wrapped, t, base, funcWrap(fn))
}

// Distinct removes duplicate elements.
func (t Term) Distinct(opts ...OptArgs) Term {
	return opTermOpts(proto.TermDistinct, "distinct", styleMethod, mergeOptArgs(opts), t)
}

// Union concatenates sequences, interleaving by default.
func (t Term) Union(args ...any) Term {
	rest, opts := splitTrailingOpts(args)
	return opTermOpts(proto.TermUnion, "union", styleMethod, opts, prepend(t, rest)...)
}

// InnerJoin joins two sequences on a two-argument predicate.
func (t Term) InnerJoin(other, fn any) Term {
	return opTerm(proto.TermInnerJoin, "inner_join", styleMethod, t, other, funcWrap(fn))
}

// OuterJoin left-joins two sequences on a two-argument predicate.
func (t Term) OuterJoin(other, fn any) Term {
	return opTerm(proto.TermOuterJoin, "outer_join", styleMethod, t, other, funcWrap(fn))
}

// EqJoin joins against a table's index by key equality.
func (t Term) EqJoin(left any, right Term, opts ...OptArgs) Term {
	return opTermOpts(proto.TermEqJoin, "eq_join", styleMethod, mergeOptArgs(opts), t, funcWrap(left), right)
}

// Zip merges the left and right halves of a join result.
func (t Term) Zip() Term {
	return opTerm(proto.TermZip, "zip", styleMethod, t)
}

// Sample picks n elements uniformly at random.
func (t Term) Sample(n any) Term {
	return opTerm(proto.TermSample, "sample", styleMethod, t, n)
}
