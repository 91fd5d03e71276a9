package rethinkdb

import (
	"fmt"
	"reflect"
	"sync/atomic"

	"github.com/rethinkdb/rethinkdb-go/pkg/proto"
)

// nextVarID allocates variable identifiers for FUNC terms. The counter is
// process-wide: variable IDs only need to be unique within one query, but
// a shared counter keeps nested and composed functions disjoint for free.
var nextVarID int64

var termType = reflect.TypeOf(Term{})

// makeFunc converts a Go function literal into a FUNC term. The function
// must take only Term parameters; the result is converted with Expr, so
// any expressible value works as a body.
func makeFunc(fn any) Term {
	rv := reflect.ValueOf(fn)
	rt := rv.Type()

	if rt.NumOut() != 1 || rt.IsVariadic() {
		return errTerm(newDriverCompileError(fmt.Sprintf("Cannot use %s as a query function.", rt)))
	}
	for i := 0; i < rt.NumIn(); i++ {
		if rt.In(i) != termType {
			return errTerm(newDriverCompileError(fmt.Sprintf("Query function parameters must be terms, got %s.", rt.In(i))))
		}
	}

	ids := make([]Term, rt.NumIn())
	vars := make([]reflect.Value, rt.NumIn())
	for i := range vars {
		id := atomic.AddInt64(&nextVarID, 1)
		ids[i] = datumTerm(id)
		vars[i] = reflect.ValueOf(newTerm(proto.TermVar, "", styleVar, []Term{datumTerm(id)}, nil))
	}

	body := Expr(rv.Call(vars)[0].Interface())
	params := newTerm(proto.TermMakeArray, "", styleMakeArray, ids, nil)
	return newTerm(proto.TermFunc, "", styleFunc, []Term{params, body}, nil)
}

// funcWrap converts val to a term and, when the result references Row,
// wraps it into a one-parameter FUNC so the server has a variable to bind
// the row to.
func funcWrap(val any) Term {
	t := Expr(val)
	if !implicitVarScan(t) {
		return t
	}
	id := atomic.AddInt64(&nextVarID, 1)
	params := newTerm(proto.TermMakeArray, "", styleMakeArray, []Term{datumTerm(id)}, nil)
	return newTerm(proto.TermFunc, "", styleFunc, []Term{params, t}, nil)
}

func funcWrapAll(args []any) []any {
	wrapped := make([]any, len(args))
	for i, arg := range args {
		wrapped[i] = funcWrap(arg)
	}
	return wrapped
}

// implicitVarScan reports whether the term tree contains Row.
func implicitVarScan(t Term) bool {
	if t.termType == proto.TermImplicitVar {
		return true
	}
	for _, arg := range t.args {
		if implicitVarScan(arg) {
			return true
		}
	}
	for _, arg := range t.optArgs {
		if implicitVarScan(arg) {
			return true
		}
	}
	return false
}
