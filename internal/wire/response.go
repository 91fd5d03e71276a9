package wire

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/buger/jsonparser"

	"github.com/rethinkdb/rethinkdb-go/pkg/proto"
)

// Frame is one step of a server backtrace: either a positional argument
// index or an optional-argument name.
type Frame struct {
	Pos   int64
	Opt   string
	IsOpt bool
}

func (f *Frame) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		f.IsOpt = true
		return json.Unmarshal(data, &f.Opt)
	}
	return json.Unmarshal(data, &f.Pos)
}

func (f Frame) MarshalJSON() ([]byte, error) {
	if f.IsOpt {
		return json.Marshal(f.Opt)
	}
	return json.Marshal(f.Pos)
}

// Response is the fully decoded response envelope.
type Response struct {
	Type      proto.ResponseType   `json:"t"`
	Results   []json.RawMessage    `json:"r"`
	Backtrace []Frame              `json:"b,omitempty"`
	Profile   json.RawMessage      `json:"p,omitempty"`
	Notes     []proto.ResponseNote `json:"n,omitempty"`
	ErrorType proto.ErrorType      `json:"e,omitempty"`
}

// RawResponse is a framed response body that has not been decoded yet.
//
// The reader loop routes responses by token only, so the body stays raw
// until the consumer needs it. Type peeks the response type out of the raw
// bytes and caches it; the full envelope decode happens once, on the
// goroutine that consumes the response.
type RawResponse struct {
	Token uint64
	Data  []byte

	peekedType  proto.ResponseType
	typeDecoded bool

	envelope *Response
}

// Type extracts the `t` field without decoding the rest of the body.
func (r *RawResponse) Type() (proto.ResponseType, error) {
	if r.typeDecoded {
		return r.peekedType, nil
	}
	t, err := jsonparser.GetInt(r.Data, "t")
	if err != nil {
		return 0, fmt.Errorf("response for token %d has no response type: %w", r.Token, err)
	}
	r.peekedType = proto.ResponseType(t)
	r.typeDecoded = true
	return r.peekedType, nil
}

// IsFeed peeks the `n` notes array for a changefeed marker.
func (r *RawResponse) IsFeed() bool {
	feed := false
	_, _ = jsonparser.ArrayEach(r.Data, func(value []byte, dataType jsonparser.ValueType, _ int, _ error) {
		if dataType != jsonparser.Number {
			return
		}
		var n int64
		if err := json.Unmarshal(value, &n); err == nil && proto.ResponseNote(n).IsFeed() {
			feed = true
		}
	}, "n")
	return feed
}

// Envelope decodes the full response body. Numbers inside results are kept
// as json.Number downstream; here they stay raw.
func (r *RawResponse) Envelope() (*Response, error) {
	if r.envelope != nil {
		return r.envelope, nil
	}
	dec := json.NewDecoder(bytes.NewReader(r.Data))
	dec.UseNumber()
	var env Response
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("malformed response for token %d: %w", r.Token, err)
	}
	r.envelope = &env
	return r.envelope, nil
}
