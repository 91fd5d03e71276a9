package rethinkdb

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/rethinkdb/rethinkdb-go/pkg/proto"
)

// maxNestingDepth bounds the recursion of Expr over nested containers.
const maxNestingDepth = 20

// Expr converts a Go value into a term. Scalars become datum leaves,
// slices become MAKE_ARRAY, string-keyed maps become MAKE_OBJ, []byte
// becomes a BINARY pseudo-type, time.Time becomes a TIME pseudo-type,
// functions become FUNC terms, and any other struct goes through its JSON
// form. Terms pass through unchanged.
func Expr(val any) Term {
	return expr(val, maxNestingDepth)
}

func expr(val any, depth int) Term {
	if depth <= 0 {
		return errTerm(newDriverCompileError("Nesting depth limit exceeded."))
	}

	switch v := val.(type) {
	case nil:
		return datumTerm(nil)
	case Term:
		return v
	case *Term:
		return *v
	case bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, json.Number:
		return datumTerm(v)
	case []byte:
		return datumTerm(binaryObject(v))
	case time.Time:
		obj, err := timeObject(v)
		if err != nil {
			return errTerm(err)
		}
		return datumTerm(obj)
	case []any:
		elems := make([]Term, len(v))
		for i, e := range v {
			elems[i] = expr(e, depth-1)
		}
		return newTerm(proto.TermMakeArray, "", styleMakeArray, elems, nil)
	case map[string]any:
		obj := make(map[string]Term, len(v))
		for k, e := range v {
			obj[k] = expr(e, depth-1)
		}
		return newTerm(proto.TermMakeObj, "", styleMakeObj, nil, obj)
	case json.RawMessage:
		var decoded any
		if err := jsonUnmarshal(v, &decoded); err != nil {
			return errTerm(newDriverCompileError(fmt.Sprintf("Cannot convert raw JSON to a term: %v.", err)))
		}
		return expr(decoded, depth-1)
	}

	rv := reflect.ValueOf(val)
	switch rv.Kind() {
	case reflect.Func:
		return makeFunc(val)
	case reflect.Slice, reflect.Array:
		elems := make([]Term, rv.Len())
		for i := range elems {
			elems[i] = expr(rv.Index(i).Interface(), depth-1)
		}
		return newTerm(proto.TermMakeArray, "", styleMakeArray, elems, nil)
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return errTerm(newDriverCompileError("Object keys must be strings."))
		}
		obj := make(map[string]Term, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			obj[iter.Key().String()] = expr(iter.Value().Interface(), depth-1)
		}
		return newTerm(proto.TermMakeObj, "", styleMakeObj, nil, obj)
	case reflect.Ptr:
		if rv.IsNil() {
			return datumTerm(nil)
		}
		return expr(rv.Elem().Interface(), depth)
	case reflect.Struct:
		// Arbitrary structs round-trip through their JSON form, so json
		// tags decide the stored field names.
		data, err := json.Marshal(val)
		if err != nil {
			return errTerm(newDriverCompileError(fmt.Sprintf("Cannot convert %T to a term: %v.", val, err)))
		}
		var decoded any
		if err := jsonUnmarshal(data, &decoded); err != nil {
			return errTerm(newDriverCompileError(fmt.Sprintf("Cannot convert %T to a term: %v.", val, err)))
		}
		return expr(decoded, depth-1)
	}

	return errTerm(newDriverCompileError(fmt.Sprintf("Cannot convert %T to a term.", val)))
}

// binaryObject renders the BINARY pseudo-type object for raw bytes.
func binaryObject(data []byte) map[string]any {
	return map[string]any{
		proto.PseudoTypeKey: proto.PseudoTypeBinary,
		"data":              base64.StdEncoding.EncodeToString(data),
	}
}

// timeObject renders the TIME pseudo-type object for a time value. The
// zone offset must be a whole number of minutes to be expressible in the
// ±HH:MM wire format.
func timeObject(t time.Time) (map[string]any, error) {
	_, offset := t.Zone()
	if offset%60 != 0 {
		return nil, newDriverCompileError(fmt.Sprintf("Time zone offset %ds is not a whole number of minutes.", offset))
	}
	epoch := float64(t.UnixNano()) / float64(time.Second)
	return map[string]any{
		proto.PseudoTypeKey: proto.PseudoTypeTime,
		"epoch_time":        epoch,
		"timezone":          formatOffset(offset),
	}, nil
}

func formatOffset(offsetSeconds int) string {
	sign := "+"
	if offsetSeconds < 0 {
		sign = "-"
		offsetSeconds = -offsetSeconds
	}
	return fmt.Sprintf("%s%02d:%02d", sign, offsetSeconds/3600, (offsetSeconds%3600)/60)
}
