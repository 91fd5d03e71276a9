package rethinkdb

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rethinkdb/rethinkdb-go/internal/wire"
	"github.com/rethinkdb/rethinkdb-go/pkg/proto"
)

// RunOpts are the global options recognized on Run. Zero values are
// omitted from the wire envelope.
type RunOpts struct {
	// DB overrides the connection's default database. String or Term.
	DB any
	// UseOutdated allows stale reads. Deprecated alias of ReadMode
	// "outdated".
	UseOutdated bool
	// Noreply submits fire-and-forget; Run returns nil immediately.
	Noreply bool
	// TimeFormat is "native" (default, decoded to time.Time) or "raw".
	TimeFormat string
	// BinaryFormat is "native" (default, decoded to []byte) or "raw".
	BinaryFormat string
	// GroupFormat is "native" (default, decoded to GroupedData) or "raw".
	GroupFormat string
	// Profile attaches query profiling data to the response.
	Profile bool
	// Durability is "hard" or "soft".
	Durability string
	// ReadMode is "single", "majority" or "outdated".
	ReadMode string
	// ArrayLimit caps the array sizes the server will return.
	ArrayLimit int

	// Batch shaping.
	MinBatchRows              int
	MaxBatchRows              int
	MaxBatchBytes             int
	MaxBatchSeconds           float64
	FirstBatchScaledownFactor int
}

func (o RunOpts) toMap(defaultDB string) map[string]any {
	opts := make(map[string]any)

	switch db := o.DB.(type) {
	case nil:
		if defaultDB != "" {
			opts["db"] = DB(defaultDB)
		}
	case string:
		opts["db"] = DB(db)
	case Term:
		opts["db"] = db
	}

	if o.UseOutdated {
		opts["use_outdated"] = true
	}
	if o.Noreply {
		opts["noreply"] = true
	}
	if o.TimeFormat != "" {
		opts["time_format"] = o.TimeFormat
	}
	if o.BinaryFormat != "" {
		opts["binary_format"] = o.BinaryFormat
	}
	if o.GroupFormat != "" {
		opts["group_format"] = o.GroupFormat
	}
	if o.Profile {
		opts["profile"] = true
	}
	if o.Durability != "" {
		opts["durability"] = o.Durability
	}
	if o.ReadMode != "" {
		opts["read_mode"] = o.ReadMode
	}
	if o.ArrayLimit > 0 {
		opts["array_limit"] = o.ArrayLimit
	}
	if o.MinBatchRows > 0 {
		opts["min_batch_rows"] = o.MinBatchRows
	}
	if o.MaxBatchRows > 0 {
		opts["max_batch_rows"] = o.MaxBatchRows
	}
	if o.MaxBatchBytes > 0 {
		opts["max_batch_bytes"] = o.MaxBatchBytes
	}
	if o.MaxBatchSeconds > 0 {
		opts["max_batch_seconds"] = o.MaxBatchSeconds
	}
	if o.FirstBatchScaledownFactor > 0 {
		opts["first_batch_scaledown_factor"] = o.FirstBatchScaledownFactor
	}
	return opts
}

func (o RunOpts) formatOpts() formatOpts {
	return formatOpts{
		timeFormat:   o.TimeFormat,
		binaryFormat: o.BinaryFormat,
		groupFormat:  o.GroupFormat,
	}
}

// Run submits the term on the connection and returns the decoded result: a
// scalar (or map/slice) for single responses, a *Cursor for sequences, the
// ServerInfo-style payloads as maps, or nil for noreply and WAIT_COMPLETE.
//
// A nil connection falls back to the REPL default registered with
// Connection.Repl.
func (t Term) Run(ctx context.Context, conn *Connection, opts ...RunOpts) (any, error) {
	if conn == nil {
		conn = replConnection()
		if conn == nil {
			return nil, newDriverError("Run must be given a connection to run on.")
		}
	}

	var runOpts RunOpts
	if len(opts) > 0 {
		runOpts = opts[0]
	}

	built, err := t.Build()
	if err != nil {
		return nil, err
	}
	termJSON, err := json.Marshal(built)
	if err != nil {
		return nil, newDriverCompileError(fmt.Sprintf("Cannot serialize query: %v.", err))
	}

	optsMap := runOpts.toMap(conn.Database())
	optsJSON, err := json.Marshal(optsMap)
	if err != nil {
		return nil, newDriverCompileError(fmt.Sprintf("Cannot serialize global options: %v.", err))
	}

	if runOpts.Noreply {
		token, err := conn.newToken()
		if err != nil {
			return nil, err
		}
		q := &wire.Query{Type: proto.QueryStart, Token: token, Term: termJSON, GlobalOpts: optsJSON}
		return nil, conn.writeQuery(q)
	}

	token, ch, err := conn.startQuery()
	if err != nil {
		return nil, err
	}
	q := &wire.Query{Type: proto.QueryStart, Token: token, Term: termJSON, GlobalOpts: optsJSON}
	if err := conn.writeQuery(q); err != nil {
		conn.deregister(token)
		return nil, err
	}

	resp, err := conn.awaitResponse(ctx, token, ch)
	if err != nil {
		return nil, err
	}
	return t.handleFirstResponse(conn, token, ch, resp, runOpts.formatOpts())
}

func (t Term) handleFirstResponse(conn *Connection, token uint64, ch chan *wire.RawResponse, resp *wire.RawResponse, fo formatOpts) (any, error) {
	env, err := resp.Envelope()
	if err != nil {
		conn.deregister(token)
		return nil, newDriverError(err.Error())
	}

	switch env.Type {
	case proto.ResponseSuccessAtom:
		conn.deregister(token)
		if len(env.Results) == 0 {
			return nil, newDriverError("SUCCESS_ATOM response carried no datum.")
		}
		val, err := decodeDatum(env.Results[0], fo)
		if err != nil {
			return nil, err
		}
		return maybeProfile(val, env, fo)

	case proto.ResponseSuccessPartial, proto.ResponseSuccessSequence:
		cur := newCursor(conn, token, ch, &t, fo)
		cur.extend(resp)
		if cur.err != nil && !isCursorEmpty(cur.err) {
			return nil, cur.err
		}
		return cur, nil

	case proto.ResponseWaitComplete:
		conn.deregister(token)
		return nil, nil

	case proto.ResponseServerInfo:
		conn.deregister(token)
		if len(env.Results) == 0 {
			return nil, newDriverError("SERVER_INFO response carried no payload.")
		}
		return decodeDatum(env.Results[0], fo)
	}

	conn.deregister(token)
	return nil, responseError(env, &t)
}

// maybeProfile wraps a value with its profile data when profiling was
// requested, mirroring the shape the server documents.
func maybeProfile(val any, env *wire.Response, fo formatOpts) (any, error) {
	if env.Profile == nil {
		return val, nil
	}
	profile, err := decodeDatum(env.Profile, fo)
	if err != nil {
		return nil, err
	}
	return map[string]any{"value": val, "profile": profile}, nil
}
