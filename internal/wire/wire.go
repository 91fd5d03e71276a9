// Package wire implements the post-handshake frame codec: every message is
// a little-endian u64 query token, a little-endian u32 body length, and a
// UTF-8 JSON body. The package performs no I/O beyond the supplied
// reader/writer and never interprets term semantics.
package wire

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rethinkdb/rethinkdb-go/pkg/proto"
)

// HeaderSize is the fixed frame header length: token plus body length.
const HeaderSize = 12

// Query is an outgoing query envelope.
type Query struct {
	Type  proto.QueryType
	Token uint64

	// Term is the serialized term tree. Only START queries carry one.
	Term json.RawMessage
	// GlobalOpts is the serialized global options object accompanying a
	// START query. Ignored when Term is nil.
	GlobalOpts json.RawMessage
}

// Encode renders the JSON body of the query array.
// START encodes as [1,<term>,<opts>]; every other query type is the bare
// [<type>] array.
func (q *Query) Encode() ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "[%d", q.Type)
	if q.Term != nil {
		buf.WriteByte(',')
		buf.Write(q.Term)
		buf.WriteByte(',')
		if q.GlobalOpts != nil {
			buf.Write(q.GlobalOpts)
		} else {
			buf.WriteString("{}")
		}
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// WriteFrame encodes the query and writes a single frame to w.
func WriteFrame(w io.Writer, q *Query) error {
	body, err := q.Encode()
	if err != nil {
		return err
	}
	frame := make([]byte, HeaderSize+len(body))
	binary.LittleEndian.PutUint64(frame[0:8], q.Token)
	binary.LittleEndian.PutUint32(frame[8:12], uint32(len(body)))
	copy(frame[HeaderSize:], body)
	_, err = w.Write(frame)
	return err
}

// ReadFrame reads one framed response from r and returns it undecoded.
func ReadFrame(r io.Reader) (*RawResponse, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	token := binary.LittleEndian.Uint64(header[0:8])
	length := binary.LittleEndian.Uint32(header[8:12])
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return &RawResponse{Token: token, Data: body}, nil
}
