package rethinkdb

import (
	"context"
	"encoding/json"

	"github.com/rethinkdb/rethinkdb-go/internal/wire"
	"github.com/rethinkdb/rethinkdb-go/pkg/proto"
)

// Cursor streams a multi-batch result sequence for one query token. Values
// come out in server-sent order; a CONTINUE is requested when the buffered
// queue drains to the threshold, and at most one CONTINUE is outstanding
// at a time.
//
// A cursor is safe for use from one goroutine at a time.
type Cursor struct {
	conn  *Connection
	token uint64
	term  *Term
	opts  formatOpts

	// responses carries the batches the connection reader demultiplexes
	// for this token. The channel stays registered until the sequence
	// ends, errors, or the cursor is closed.
	responses chan *wire.RawResponse

	buffer      []json.RawMessage
	threshold   int
	outstanding bool
	finished    bool
	feed        bool
	closed      bool
	err         error
	profile     json.RawMessage
}

func newCursor(conn *Connection, token uint64, responses chan *wire.RawResponse, term *Term, opts formatOpts) *Cursor {
	return &Cursor{
		conn:      conn,
		token:     token,
		term:      term,
		opts:      opts,
		responses: responses,
		threshold: 1,
	}
}

// extend folds one response envelope into the cursor state.
func (cur *Cursor) extend(resp *wire.RawResponse) {
	cur.outstanding = false

	env, err := resp.Envelope()
	if err != nil {
		cur.fail(newDriverError(err.Error()))
		return
	}
	if resp.IsFeed() {
		cur.feed = true
	}
	if env.Profile != nil && cur.profile == nil {
		cur.profile = env.Profile
	}

	switch env.Type {
	case proto.ResponseSuccessPartial:
		cur.buffer = append(cur.buffer, env.Results...)
		cur.threshold = max(1, len(env.Results)/2)
	case proto.ResponseSuccessSequence:
		cur.buffer = append(cur.buffer, env.Results...)
		cur.finished = true
		cur.conn.deregister(cur.token)
	default:
		cur.fail(responseError(env, cur.term))
	}
}

// fail records a terminal error and detaches from the waiter registry. No
// further CONTINUE is issued after an error.
func (cur *Cursor) fail(err error) {
	if cur.err == nil {
		cur.err = err
	}
	cur.finished = true
	cur.conn.deregister(cur.token)
}

// maybeContinue requests the next batch when the queue has drained to the
// threshold and nothing is outstanding.
func (cur *Cursor) maybeContinue() {
	if cur.finished || cur.closed || cur.outstanding || cur.err != nil {
		return
	}
	if len(cur.buffer) > cur.threshold {
		return
	}
	cur.outstanding = true
	if err := cur.conn.continueQuery(cur.token); err != nil {
		cur.outstanding = false
		cur.fail(err)
	}
}

// Next returns the next value of the sequence, blocking for a batch when
// the queue is empty. At the end of a finite sequence every subsequent
// call returns ErrCursorEmpty; a mid-stream server error is returned once
// the values before it are drained.
func (cur *Cursor) Next(ctx context.Context) (any, error) {
	for {
		if len(cur.buffer) > 0 {
			item := cur.buffer[0]
			cur.buffer = cur.buffer[1:]
			cur.maybeContinue()
			return decodeDatum(item, cur.opts)
		}

		if cur.err != nil {
			return nil, cur.err
		}
		if cur.finished || cur.closed {
			return nil, ErrCursorEmpty
		}

		cur.maybeContinue()
		if cur.err != nil {
			return nil, cur.err
		}

		select {
		case resp, ok := <-cur.responses:
			if !ok {
				cur.fail(newDriverError("Connection is closed."))
				return nil, cur.err
			}
			cur.extend(resp)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// NextInto decodes the next value into dest via its JSON form.
func (cur *Cursor) NextInto(ctx context.Context, dest any) error {
	val, err := cur.Next(ctx)
	if err != nil {
		return err
	}
	data, err := json.Marshal(val)
	if err != nil {
		return newDriverError(err.Error())
	}
	return json.Unmarshal(data, dest)
}

// All drains the remainder of a finite sequence. Calling All on a
// changefeed never returns until the feed errors or the context fires.
func (cur *Cursor) All(ctx context.Context) ([]any, error) {
	var values []any
	for {
		val, err := cur.Next(ctx)
		if err != nil {
			if isCursorEmpty(err) {
				return values, nil
			}
			return values, err
		}
		values = append(values, val)
	}
}

// Close terminates the stream. A still-partial sequence gets a STOP; the
// server's acknowledgement is discarded by the reader after the cursor
// detaches.
func (cur *Cursor) Close() error {
	if cur.closed {
		return nil
	}
	cur.closed = true

	var err error
	if !cur.finished && cur.err == nil {
		err = cur.conn.stopQuery(cur.token)
	}
	cur.conn.deregister(cur.token)
	if cur.err == nil {
		cur.err = ErrCursorEmpty
	}
	return err
}

// Err returns the terminal error of the cursor, if any. ErrCursorEmpty
// marks normal completion.
func (cur *Cursor) Err() error { return cur.err }

// IsFeed reports whether the sequence is a changefeed, which never
// completes on its own.
func (cur *Cursor) IsFeed() bool { return cur.feed }

// Profile returns the decoded profile data attached to the response, if
// profiling was requested.
func (cur *Cursor) Profile() (any, error) {
	if cur.profile == nil {
		return nil, nil
	}
	return decodeDatum(cur.profile, cur.opts)
}

func isCursorEmpty(err error) bool {
	_, ok := err.(*ReqlCursorEmpty)
	return ok
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
