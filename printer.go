package rethinkdb

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rethinkdb/rethinkdb-go/internal/wire"
	"github.com/rethinkdb/rethinkdb-go/pkg/proto"
)

// composeStyle selects how an operator renders in diagnostics: method
// call, infix, bracket index, function application or top-level call.
type composeStyle int

const (
	styleUnknown composeStyle = iota
	styleDatum
	styleMakeArray
	styleMakeObj
	styleVar
	styleImplicitVar
	styleMethod
	styleTopLevel
	styleInfix
	styleBracket
	styleFunCall
	styleFunc
)

// queryPrinter renders a term as a builder expression together with a
// caret line marking the sub-term a server backtrace blames.
//
// The caret line is built by rendering the same tree a second time: on
// each backtrace step only the indexed child is descended into, every
// character outside the blamed region is blanked to a space, and a fully
// blamed sub-term renders as carets spanning its printed width.
type queryPrinter struct {
	root   *Term
	frames []wire.Frame
}

func newQueryPrinter(root *Term, frames []wire.Frame) *queryPrinter {
	return &queryPrinter{root: root, frames: frames}
}

// Query returns the pretty-printed term.
func (p *queryPrinter) Query() string {
	return renderTerm(p.root)
}

// Carets returns the caret line aligned with Query.
func (p *queryPrinter) Carets() string {
	return renderMarked(p.root, p.frames)
}

func renderTerm(t *Term) string {
	args := make([]string, len(t.args))
	for i := range t.args {
		args[i] = renderTerm(&t.args[i])
	}
	optArgs := make(map[string]string, len(t.optArgs))
	for _, k := range t.sortedOptArgKeys() {
		v := t.optArgs[k]
		optArgs[k] = renderTerm(&v)
	}
	return composeWith(t, args, optArgs)
}

func renderMarked(t *Term, frames []wire.Frame) string {
	if len(frames) == 0 {
		return strings.Repeat("^", len([]rune(renderTerm(t))))
	}

	frame := frames[0]
	args := make([]string, len(t.args))
	for i := range t.args {
		if !frame.IsOpt && frame.Pos == int64(i) {
			args[i] = renderMarked(&t.args[i], frames[1:])
		} else {
			args[i] = renderTerm(&t.args[i])
		}
	}
	optArgs := make(map[string]string, len(t.optArgs))
	for _, k := range t.sortedOptArgKeys() {
		v := t.optArgs[k]
		if frame.IsOpt && frame.Opt == k {
			optArgs[k] = renderMarked(&v, frames[1:])
		} else {
			optArgs[k] = renderTerm(&v)
		}
	}

	return blankNonCarets(composeWith(t, args, optArgs))
}

func blankNonCarets(s string) string {
	runes := []rune(s)
	for i, r := range runes {
		if r != '^' {
			runes[i] = ' '
		}
	}
	return string(runes)
}

// needsWrap reports whether a child renders as a bare value and must be
// wrapped in r.expr(...) when it appears as a method receiver.
func needsWrap(t *Term) bool {
	if t.isDatum {
		return true
	}
	switch t.termType {
	case proto.TermMakeArray, proto.TermMakeObj:
		return true
	}
	return false
}

func wrapExpr(t *Term, rendered string) string {
	if needsWrap(t) {
		return "r.expr(" + rendered + ")"
	}
	return rendered
}

func composeWith(t *Term, args []string, optArgs map[string]string) string {
	switch t.style {
	case styleDatum:
		return formatDatum(t.datum)

	case styleMakeArray:
		return "[" + strings.Join(args, ", ") + "]"

	case styleMakeObj:
		parts := make([]string, 0, len(optArgs))
		for _, k := range t.sortedOptArgKeys() {
			parts = append(parts, fmt.Sprintf("%q: %s", k, optArgs[k]))
		}
		return "r.expr({" + strings.Join(parts, ", ") + "})"

	case styleVar:
		return "var_" + args[0]

	case styleImplicitVar:
		return "r.row"

	case styleFunc:
		return "func(" + varParams(t) + " r.Term) r.Term { return " + args[1] + " }"

	case styleMethod:
		if len(args) == 0 {
			return "r." + t.name + "()"
		}
		rest := make([]string, 0, len(args)-1+len(optArgs))
		rest = append(rest, args[1:]...)
		for _, k := range t.sortedOptArgKeys() {
			rest = append(rest, k+"="+optArgs[k])
		}
		return wrapExpr(&t.args[0], args[0]) + "." + t.name + "(" + strings.Join(rest, ", ") + ")"

	case styleBracket:
		return wrapExpr(&t.args[0], args[0]) + "[" + strings.Join(args[1:], ",") + "]"

	case styleInfix:
		wrapped := make([]string, len(args))
		for i := range args {
			wrapped[i] = wrapExpr(&t.args[i], args[i])
		}
		return "(" + strings.Join(wrapped, " "+t.name+" ") + ")"

	case styleFunCall:
		// The wire order is function first, arguments last; the rendering
		// flips them back.
		if len(args) != 2 {
			return "r.do(" + strings.Join(append(append([]string{}, args[1:]...), args[0]), ", ") + ")"
		}
		return wrapExpr(&t.args[1], args[1]) + ".do(" + args[0] + ")"

	case styleTopLevel:
		parts := make([]string, 0, len(args)+len(optArgs))
		parts = append(parts, args...)
		for _, k := range t.sortedOptArgKeys() {
			parts = append(parts, k+"="+optArgs[k])
		}
		return "r." + t.name + "(" + strings.Join(parts, ", ") + ")"
	}

	parts := make([]string, 0, len(args)+len(optArgs))
	parts = append(parts, args...)
	for _, k := range t.sortedOptArgKeys() {
		parts = append(parts, k+"="+optArgs[k])
	}
	return fmt.Sprintf("r.term_%d(%s)", t.termType, strings.Join(parts, ", "))
}

// varParams renders the parameter list of a FUNC term from its bound
// variable IDs.
func varParams(t *Term) string {
	if len(t.args) == 0 {
		return ""
	}
	ids := t.args[0]
	names := make([]string, len(ids.args))
	for i, id := range ids.args {
		names[i] = "var_" + formatDatum(id.datum)
	}
	return strings.Join(names, ", ")
}

func formatDatum(val any) string {
	data, err := json.Marshal(val)
	if err != nil {
		return fmt.Sprintf("%v", val)
	}
	return string(data)
}
