package rethinkdb

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rethinkdb/rethinkdb-go/pkg/proto"
)

// formatOpts captures the run options that steer pseudo-type decoding.
// Empty values mean "native".
type formatOpts struct {
	timeFormat   string
	binaryFormat string
	groupFormat  string
}

// jsonUnmarshal decodes JSON keeping numbers as json.Number, so 64-bit
// integers survive the language boundary with full precision.
func jsonUnmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

// decodeDatum decodes one result datum, converting tagged pseudo-type
// objects according to the format options.
func decodeDatum(raw json.RawMessage, opts formatOpts) (any, error) {
	var val any
	if err := jsonUnmarshal(raw, &val); err != nil {
		return nil, newDriverError(fmt.Sprintf("Malformed response datum: %v.", err))
	}
	return convertPseudoTypes(val, opts)
}

func convertPseudoTypes(val any, opts formatOpts) (any, error) {
	switch v := val.(type) {
	case []any:
		for i, e := range v {
			converted, err := convertPseudoTypes(e, opts)
			if err != nil {
				return nil, err
			}
			v[i] = converted
		}
		return v, nil

	case map[string]any:
		tag, _ := v[proto.PseudoTypeKey].(string)
		switch tag {
		case proto.PseudoTypeTime:
			if selectFormat(opts.timeFormat) == "raw" {
				return v, nil
			}
			return convertTime(v)
		case proto.PseudoTypeBinary:
			if selectFormat(opts.binaryFormat) == "raw" {
				return v, nil
			}
			return convertBinary(v)
		case proto.PseudoTypeGroupedData:
			if selectFormat(opts.groupFormat) == "raw" {
				return v, nil
			}
			return convertGroupedData(v, opts)
		case proto.PseudoTypeGeometry:
			return v, nil
		case "":
			for k, e := range v {
				converted, err := convertPseudoTypes(e, opts)
				if err != nil {
					return nil, err
				}
				v[k] = converted
			}
			return v, nil
		default:
			return nil, newDriverError(fmt.Sprintf("Unknown pseudo-type %q.", tag))
		}
	}
	return val, nil
}

func selectFormat(format string) string {
	if format == "" {
		return "native"
	}
	return format
}

// convertTime decodes a TIME pseudo-type object into a time.Time carrying
// a fixed zone with the wire offset.
func convertTime(obj map[string]any) (time.Time, error) {
	epoch, ok := obj["epoch_time"].(json.Number)
	if !ok {
		return time.Time{}, newDriverError(fmt.Sprintf(`pseudo-type TIME object %v does not have expected field "epoch_time".`, obj))
	}

	secs, nanos, err := splitEpoch(epoch.String())
	if err != nil {
		return time.Time{}, err
	}

	loc := time.UTC
	if tz, ok := obj["timezone"].(string); ok {
		offset, err := parseOffset(tz)
		if err != nil {
			return time.Time{}, err
		}
		loc = time.FixedZone(tz, offset)
	}
	return time.Unix(secs, nanos).In(loc), nil
}

// splitEpoch parses a decimal epoch timestamp into integer seconds and
// nanoseconds without going through a float64, so whole second counts
// beyond 2^53 stay exact.
func splitEpoch(s string) (secs int64, nanos int64, err error) {
	intPart, fracPart, _ := strings.Cut(s, ".")
	secs, err = strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, 0, newDriverError(fmt.Sprintf("Invalid epoch_time value %q.", s))
	}
	if fracPart == "" {
		return secs, 0, nil
	}
	if len(fracPart) > 9 {
		fracPart = fracPart[:9]
	}
	frac, err := strconv.ParseInt(fracPart+strings.Repeat("0", 9-len(fracPart)), 10, 64)
	if err != nil {
		return 0, 0, newDriverError(fmt.Sprintf("Invalid epoch_time value %q.", s))
	}
	if secs < 0 || strings.HasPrefix(intPart, "-") {
		frac = -frac
	}
	return secs, frac, nil
}

// parseOffset validates a ±HH:MM timezone and returns its offset in
// seconds.
func parseOffset(tz string) (int, error) {
	valid := len(tz) == 6 && (tz[0] == '+' || tz[0] == '-') && tz[3] == ':'
	if !valid {
		return 0, newDriverError(fmt.Sprintf("Invalid timezone offset %q.", tz))
	}
	hours, err1 := strconv.Atoi(tz[1:3])
	minutes, err2 := strconv.Atoi(tz[4:6])
	if err1 != nil || err2 != nil || hours > 23 || minutes > 59 {
		return 0, newDriverError(fmt.Sprintf("Invalid timezone offset %q.", tz))
	}
	offset := hours*3600 + minutes*60
	if tz[0] == '-' {
		offset = -offset
	}
	return offset, nil
}

// convertBinary decodes a BINARY pseudo-type object into raw bytes.
func convertBinary(obj map[string]any) ([]byte, error) {
	encoded, ok := obj["data"].(string)
	if !ok {
		return nil, newDriverError(fmt.Sprintf(`pseudo-type BINARY object %v does not have the expected field "data".`, obj))
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, newDriverError(fmt.Sprintf("Invalid base64 in BINARY object: %v.", err))
	}
	return data, nil
}

// GroupedPair is one group with its reduction.
type GroupedPair struct {
	Group     any
	Reduction any
}

// GroupedData is the decoded form of a GROUPED_DATA pseudo-type: the
// groups in server order, with a map view keyed by the canonical rendering
// of each group key. Group keys can be arrays or objects, which no Go map
// accepts as keys directly; the canonical rendering (compact JSON with
// sorted object keys) is the stable hashable equivalent.
type GroupedData struct {
	Pairs []GroupedPair
}

// Map returns the groups keyed by canonical key.
func (g GroupedData) Map() map[string]any {
	m := make(map[string]any, len(g.Pairs))
	for _, pair := range g.Pairs {
		m[CanonicalKey(pair.Group)] = pair.Reduction
	}
	return m
}

// Get looks up the reduction for a group key, converting it to canonical
// form first.
func (g GroupedData) Get(key any) (any, bool) {
	want := CanonicalKey(key)
	for _, pair := range g.Pairs {
		if CanonicalKey(pair.Group) == want {
			return pair.Reduction, true
		}
	}
	return nil, false
}

// CanonicalKey renders a decoded value as a stable string: bare strings
// stay as-is, everything else becomes compact JSON with recursively
// sorted object keys.
func CanonicalKey(key any) string {
	if s, ok := key.(string); ok {
		return s
	}
	var b strings.Builder
	writeCanonical(&b, key)
	return b.String()
}

func writeCanonical(b *strings.Builder, val any) {
	switch v := val.(type) {
	case []any:
		b.WriteByte('[')
		for i, e := range v {
			if i > 0 {
				b.WriteByte(',')
			}
			writeCanonical(b, e)
		}
		b.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			fmt.Fprintf(b, "%q:", k)
			writeCanonical(b, v[k])
		}
		b.WriteByte('}')
	default:
		data, err := json.Marshal(v)
		if err != nil {
			fmt.Fprintf(b, "%v", v)
			return
		}
		b.Write(data)
	}
}

func convertGroupedData(obj map[string]any, opts formatOpts) (GroupedData, error) {
	data, ok := obj["data"].([]any)
	if !ok {
		return GroupedData{}, newDriverError(fmt.Sprintf(`pseudo-type GROUPED_DATA object %v does not have the expected field "data".`, obj))
	}
	grouped := GroupedData{Pairs: make([]GroupedPair, 0, len(data))}
	for _, entry := range data {
		pair, ok := entry.([]any)
		if !ok || len(pair) != 2 {
			return GroupedData{}, newDriverError("Malformed GROUPED_DATA entry.")
		}
		group, err := convertPseudoTypes(pair[0], opts)
		if err != nil {
			return GroupedData{}, err
		}
		reduction, err := convertPseudoTypes(pair[1], opts)
		if err != nil {
			return GroupedData{}, err
		}
		grouped.Pairs = append(grouped.Pairs, GroupedPair{Group: group, Reduction: reduction})
	}
	return grouped, nil
}
