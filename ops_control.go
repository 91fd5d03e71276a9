package rethinkdb

import "github.com/rethinkdb/rethinkdb-go/pkg/proto"

// Row references the implicit document inside single-argument functions;
// ops that accept functions wrap expressions containing Row automatically.
var Row = newTerm(proto.TermImplicitVar, "", styleImplicitVar, nil, nil)

// Branch evaluates tests in order and returns the matching branch, the
// protocol's if/then/else.
func Branch(args ...any) Term {
	return opTerm(proto.TermBranch, "branch", styleTopLevel, args...)
}

// Branch uses the receiver as the first test.
func (t Term) Branch(args ...any) Term {
	return opTerm(proto.TermBranch, "branch", styleTopLevel, prepend(t, args)...)
}

// Do evaluates a function with the given arguments; the function comes
// last in the builder but first on the wire.
func Do(args ...any) Term {
	if len(args) == 0 {
		return errTerm(newDriverCompileError("Expected 1 or more arguments but found 0."))
	}
	flipped := make([]any, 0, len(args))
	flipped = append(flipped, funcWrap(args[len(args)-1]))
	flipped = append(flipped, args[:len(args)-1]...)
	return opTerm(proto.TermFunCall, "do", styleFunCall, flipped...)
}

// Do evaluates a function with the receiver as its argument.
func (t Term) Do(fn any) Term {
	return opTerm(proto.TermFunCall, "do", styleFunCall, funcWrap(fn), t)
}

// ForEach runs a write function for every element of a sequence.
func (t Term) ForEach(fn any) Term {
	return opTerm(proto.TermForEach, "for_each", styleMethod, t, funcWrap(fn))
}

// Error raises a runtime error with the given message.
func Error(message any) Term {
	return opTerm(proto.TermError, "error", styleTopLevel, message)
}

// Default substitutes a value when the receiver is null or raises a
// non-existence error.
func (t Term) Default(value any) Term {
	return opTerm(proto.TermDefault, "default", styleMethod, t, value)
}

// CoerceTo converts between types by name.
func (t Term) CoerceTo(typeName any) Term {
	return opTerm(proto.TermCoerceTo, "coerce_to", styleMethod, t, typeName)
}

// TypeOf names the type of the receiver.
func (t Term) TypeOf() Term {
	return opTerm(proto.TermTypeOf, "type_of", styleMethod, t)
}

// Info describes the receiver object.
func (t Term) Info() Term {
	return opTerm(proto.TermInfo, "info", styleMethod, t)
}

// Changes streams modifications to the receiver as an infinite feed.
func (t Term) Changes(opts ...OptArgs) Term {
	return opTermOpts(proto.TermChanges, "changes", styleMethod, mergeOptArgs(opts), t)
}

// JSON parses a JSON string server-side.
func JSON(s any) Term {
	return opTerm(proto.TermJSON, "json", styleTopLevel, s)
}

// ToJSONString renders the receiver as a JSON string server-side.
func (t Term) ToJSONString() Term {
	return opTerm(proto.TermToJSONString, "to_json_string", styleMethod, t)
}

// Args splices an array into a call's positional arguments.
func Args(array any) Term {
	return opTerm(proto.TermArgs, "args", styleTopLevel, array)
}

// Binary wraps a term producing binary data; plain []byte values convert
// through Expr directly.
func Binary(data any) Term {
	if b, ok := data.([]byte); ok {
		return Expr(b)
	}
	return opTerm(proto.TermBinary, "binary", styleTopLevel, data)
}

// Object builds an object from alternating key/value arguments.
func Object(args ...any) Term {
	return opTerm(proto.TermObject, "object", styleTopLevel, args...)
}

// Literal protects an object from merge semantics in Update and Merge.
func Literal(args ...any) Term {
	return opTerm(proto.TermLiteral, "literal", styleTopLevel, args...)
}

// Range produces a sequence of integers: infinite, [0, end), or
// [start, end).
func Range(args ...any) Term {
	return opTerm(proto.TermRange, "range", styleTopLevel, args...)
}

// Random produces random numbers; bounds and the float option follow the
// protocol.
func Random(args ...any) Term {
	rest, opts := splitTrailingOpts(args)
	return opTermOpts(proto.TermRandom, "random", styleTopLevel, opts, rest...)
}

// UUID generates a random UUID, or a name-derived UUID when given an
// argument.
func UUID(args ...any) Term {
	return opTerm(proto.TermUUID, "uuid", styleTopLevel, args...)
}

// Minval orders before every value.
func Minval() Term {
	return opTerm(proto.TermMinval, "minval", styleTopLevel)
}

// Maxval orders after every value.
func Maxval() Term {
	return opTerm(proto.TermMaxval, "maxval", styleTopLevel)
}
