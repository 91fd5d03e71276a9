package rethinkdb

import (
	"encoding/json"
	"sort"

	"github.com/rethinkdb/rethinkdb-go/pkg/proto"
)

// Term is one node of the query tree. Terms are immutable: every builder
// method returns a new Term and never mutates its receiver or arguments.
//
// A Term is either a datum leaf (a JSON scalar or a pseudo-type object) or
// an operator node holding a protocol type code, positional arguments and
// optional named arguments.
type Term struct {
	termType proto.TermType
	name     string

	isDatum bool
	datum   any

	args    []Term
	optArgs map[string]Term

	style composeStyle

	// lastErr records a builder-side conversion failure; it surfaces when
	// the term is serialized, so expression chains stay fluent.
	lastErr error
}

func newTerm(tt proto.TermType, name string, style composeStyle, args []Term, optArgs map[string]Term) Term {
	t := Term{termType: tt, name: name, style: style, args: args, optArgs: optArgs}
	for _, arg := range args {
		if arg.lastErr != nil {
			t.lastErr = arg.lastErr
			break
		}
	}
	if t.lastErr == nil {
		for _, arg := range optArgs {
			if arg.lastErr != nil {
				t.lastErr = arg.lastErr
				break
			}
		}
	}
	return t
}

func datumTerm(val any) Term {
	return Term{termType: proto.TermDatum, isDatum: true, datum: val, style: styleDatum}
}

func errTerm(err error) Term {
	return Term{termType: proto.TermDatum, isDatum: true, style: styleDatum, lastErr: err}
}

// Build returns the canonical JSON-ready representation of the term:
// scalars for datum leaves, [code, args] or [code, args, opts] arrays for
// operators, and plain objects for MAKE_OBJ.
func (t Term) Build() (any, error) {
	if t.lastErr != nil {
		return nil, t.lastErr
	}

	if t.isDatum {
		return t.datum, nil
	}

	if t.termType == proto.TermMakeObj {
		obj := make(map[string]any, len(t.optArgs))
		for k, v := range t.optArgs {
			built, err := v.Build()
			if err != nil {
				return nil, err
			}
			obj[k] = built
		}
		return obj, nil
	}

	args := make([]any, len(t.args))
	for i, arg := range t.args {
		built, err := arg.Build()
		if err != nil {
			return nil, err
		}
		args[i] = built
	}

	if len(t.optArgs) == 0 {
		return []any{int(t.termType), args}, nil
	}

	opts := make(map[string]any, len(t.optArgs))
	for k, v := range t.optArgs {
		built, err := v.Build()
		if err != nil {
			return nil, err
		}
		opts[k] = built
	}
	return []any{int(t.termType), args, opts}, nil
}

// MarshalJSON serializes the term in its wire form.
func (t Term) MarshalJSON() ([]byte, error) {
	built, err := t.Build()
	if err != nil {
		return nil, err
	}
	return json.Marshal(built)
}

// String renders the term as a builder expression, the same rendering the
// caret diagnostics align against.
func (t Term) String() string {
	return newQueryPrinter(&t, nil).Query()
}

// Type returns the protocol type code of the term; datum leaves report
// the DATUM code.
func (t Term) Type() proto.TermType { return t.termType }

// sortedOptArgKeys gives printers and builders a deterministic order.
func (t Term) sortedOptArgKeys() []string {
	keys := make([]string, 0, len(t.optArgs))
	for k := range t.optArgs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// opTerm is the general operator constructor used by the builder methods.
// Arguments run through Expr, so plain Go values and function literals are
// accepted anywhere a term is.
func opTerm(tt proto.TermType, name string, style composeStyle, args ...any) Term {
	terms := make([]Term, len(args))
	for i, arg := range args {
		terms[i] = Expr(arg)
	}
	return newTerm(tt, name, style, terms, nil)
}

// opTermOpts is opTerm plus named optional arguments.
func opTermOpts(tt proto.TermType, name string, style composeStyle, opts OptArgs, args ...any) Term {
	terms := make([]Term, len(args))
	for i, arg := range args {
		terms[i] = Expr(arg)
	}
	return newTerm(tt, name, style, terms, opts.toTerms())
}

// OptArgs carries optional named arguments for builder methods that accept
// them, e.g. Table(name, OptArgs{"read_mode": "outdated"}).
type OptArgs map[string]any

func (o OptArgs) toTerms() map[string]Term {
	if len(o) == 0 {
		return nil
	}
	terms := make(map[string]Term, len(o))
	for k, v := range o {
		terms[k] = Expr(v)
	}
	return terms
}

func mergeOptArgs(opts []OptArgs) OptArgs {
	switch len(opts) {
	case 0:
		return nil
	case 1:
		return opts[0]
	}
	merged := make(OptArgs)
	for _, o := range opts {
		for k, v := range o {
			merged[k] = v
		}
	}
	return merged
}
