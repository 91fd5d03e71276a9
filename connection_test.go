package rethinkdb

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/rethinkdb/rethinkdb-go/internal/fakerdb"
	"github.com/rethinkdb/rethinkdb-go/pkg/proto"
)

const testPassword = "sliding-window"

// ConnectionTestSuite runs the driver against an in-process fake server
// speaking the real handshake and frame protocol.
type ConnectionTestSuite struct {
	suite.Suite

	server *fakerdb.Server
	conn   *Connection
	ctx    context.Context
	cancel context.CancelFunc

	handlerMu sync.Mutex
	handler   fakerdb.Handler
}

func TestConnectionTestSuite(t *testing.T) {
	suite.Run(t, new(ConnectionTestSuite))
}

func (s *ConnectionTestSuite) SetupTest() {
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 10*time.Second)

	s.handler = nil
	server, err := fakerdb.Listen(fakerdb.Options{
		Username: "admin",
		Password: testPassword,
		Handler: func(q *fakerdb.Query) *fakerdb.Reply {
			s.handlerMu.Lock()
			h := s.handler
			s.handlerMu.Unlock()
			if h == nil {
				return nil
			}
			return h(q)
		},
	})
	s.Require().NoError(err)
	s.server = server

	host, port := server.Addr()
	conn, err := Connect(s.ctx, ConnectOpts{
		Host:     host,
		Port:     port,
		Username: "admin",
		Password: testPassword,
	})
	s.Require().NoError(err)
	s.conn = conn
}

func (s *ConnectionTestSuite) TearDownTest() {
	if s.conn != nil {
		s.conn.Close(s.ctx, CloseOpts{SkipNoreplyWait: true})
	}
	if s.server != nil {
		s.server.Close()
	}
	s.cancel()
}

func (s *ConnectionTestSuite) setHandler(h fakerdb.Handler) {
	s.handlerMu.Lock()
	s.handler = h
	s.handlerMu.Unlock()
}

// queriesOfType filters the captured queries down to envelopes of one query
// type.
func (s *ConnectionTestSuite) queriesOfType(qt proto.QueryType) []fakerdb.Query {
	var out []fakerdb.Query
	for _, q := range s.server.Queries() {
		if q.Type == qt {
			out = append(out, q)
		}
	}
	return out
}

func (s *ConnectionTestSuite) TestRunAtom() {
	s.setHandler(func(q *fakerdb.Query) *fakerdb.Reply {
		if q.Type == proto.QueryStart {
			return fakerdb.Atom(3)
		}
		return nil
	})

	res, err := Expr(1).Add(2).Run(s.ctx, s.conn)
	s.Require().NoError(err)
	s.Equal(json.Number("3"), res)

	starts := s.queriesOfType(proto.QueryStart)
	s.Require().Len(starts, 1)
	s.Equal(`[24,[1,2]]`, string(starts[0].Term))
	s.Equal(`{}`, string(starts[0].GlobalOpts))
}

func (s *ConnectionTestSuite) TestGetMissingRowReturnsNil() {
	s.setHandler(func(q *fakerdb.Query) *fakerdb.Reply {
		if q.Type == proto.QueryStart {
			return fakerdb.Atom(nil)
		}
		return nil
	})

	res, err := Table("m").Get(1).Run(s.ctx, s.conn)
	s.Require().NoError(err)
	s.Nil(res)
}

func (s *ConnectionTestSuite) TestCursorDeliversEveryBatch() {
	batches := [][]any{{1, 2, 3}, {4, 5}, {6}}
	next := 0
	s.setHandler(func(q *fakerdb.Query) *fakerdb.Reply {
		switch q.Type {
		case proto.QueryStart, proto.QueryContinue:
			batch := batches[next]
			next++
			if next == len(batches) {
				return fakerdb.Sequence(batch...)
			}
			return fakerdb.Partial(batch...)
		}
		return nil
	})

	res, err := Table("m").Run(s.ctx, s.conn)
	s.Require().NoError(err)
	cur, ok := res.(*Cursor)
	s.Require().True(ok)

	values, err := cur.All(s.ctx)
	s.Require().NoError(err)

	want := []any{
		json.Number("1"), json.Number("2"), json.Number("3"),
		json.Number("4"), json.Number("5"), json.Number("6"),
	}
	s.Equal(want, values)

	// Exhausted cursors keep reporting end of stream.
	_, err = cur.Next(s.ctx)
	s.ErrorIs(err, &ReqlCursorEmpty{})

	s.Len(s.queriesOfType(proto.QueryContinue), 2)
	s.Empty(s.queriesOfType(proto.QueryStop))
}

func (s *ConnectionTestSuite) TestContinueIssuedAtThreshold() {
	s.setHandler(func(q *fakerdb.Query) *fakerdb.Reply {
		switch q.Type {
		case proto.QueryStart:
			return fakerdb.Partial(1, 2, 3, 4)
		case proto.QueryContinue:
			return fakerdb.Sequence(5)
		}
		return nil
	})

	res, err := Table("m").Run(s.ctx, s.conn)
	s.Require().NoError(err)
	cur := res.(*Cursor)

	// Four buffered items, threshold two: the first pop leaves three,
	// still above threshold, so no CONTINUE may be in flight yet.
	_, err = cur.Next(s.ctx)
	s.Require().NoError(err)
	time.Sleep(50 * time.Millisecond)
	s.Empty(s.queriesOfType(proto.QueryContinue))

	// The second pop hits the threshold and triggers exactly one.
	_, err = cur.Next(s.ctx)
	s.Require().NoError(err)
	time.Sleep(50 * time.Millisecond)
	s.Len(s.queriesOfType(proto.QueryContinue), 1)

	values, err := cur.All(s.ctx)
	s.Require().NoError(err)
	s.Len(values, 3)
	s.Len(s.queriesOfType(proto.QueryContinue), 1)
}

func (s *ConnectionTestSuite) TestChangefeed() {
	var deliveredContinue bool
	s.setHandler(func(q *fakerdb.Query) *fakerdb.Reply {
		switch q.Type {
		case proto.QueryStart:
			reply := fakerdb.Partial(map[string]any{"new_val": 1})
			reply.Notes = []proto.ResponseNote{proto.NoteSequenceFeed}
			return reply
		case proto.QueryContinue:
			if !deliveredContinue {
				deliveredContinue = true
				reply := fakerdb.Partial(map[string]any{"new_val": 2})
				reply.Notes = []proto.ResponseNote{proto.NoteSequenceFeed}
				return reply
			}
			// A quiet feed: no events, so no response yet.
			return &fakerdb.Reply{Action: fakerdb.ActionNone}
		}
		return nil
	})

	res, err := Table("m").Changes().Run(s.ctx, s.conn)
	s.Require().NoError(err)
	cur := res.(*Cursor)
	s.True(cur.IsFeed())

	first, err := cur.Next(s.ctx)
	s.Require().NoError(err)
	s.Equal(map[string]any{"new_val": json.Number("1")}, first)

	second, err := cur.Next(s.ctx)
	s.Require().NoError(err)
	s.Equal(map[string]any{"new_val": json.Number("2")}, second)

	s.Require().NoError(cur.Close())

	// Close on a still-open feed sends STOP; afterwards the cursor only
	// reports end of stream.
	s.Eventually(func() bool {
		return len(s.queriesOfType(proto.QueryStop)) == 1
	}, time.Second, 10*time.Millisecond)

	_, err = cur.Next(s.ctx)
	s.ErrorIs(err, &ReqlCursorEmpty{})
}

func (s *ConnectionTestSuite) TestRunOnClosedConnection() {
	s.Require().NoError(s.conn.Close(s.ctx, CloseOpts{SkipNoreplyWait: true}))

	_, err := Expr(1).Run(s.ctx, s.conn)
	s.Require().Error(err)
	s.ErrorIs(err, &ReqlDriverError{})
	s.Contains(err.Error(), "Connection is closed")
}

func (s *ConnectionTestSuite) TestWrongPassword() {
	host, port := s.server.Addr()
	_, err := Connect(s.ctx, ConnectOpts{
		Host:     host,
		Port:     port,
		Username: "admin",
		Password: "not-the-password",
	})
	s.Require().Error(err)
	s.ErrorIs(err, &ReqlAuthError{})
	s.Contains(err.Error(), "Wrong password")
}

func (s *ConnectionTestSuite) TestUnknownUser() {
	host, port := s.server.Addr()
	_, err := Connect(s.ctx, ConnectOpts{
		Host:     host,
		Port:     port,
		Username: "nobody",
		Password: testPassword,
	})
	s.Require().Error(err)
	s.ErrorIs(err, &ReqlAuthError{})
}

func (s *ConnectionTestSuite) TestNoreplySubmission() {
	res, err := Table("m").Insert(map[string]any{"id": 1}).Run(s.ctx, s.conn, RunOpts{Noreply: true})
	s.Require().NoError(err)
	s.Nil(res)

	s.Require().NoError(s.conn.NoreplyWait(s.ctx))

	starts := s.queriesOfType(proto.QueryStart)
	s.Require().Len(starts, 1)
	s.Contains(string(starts[0].GlobalOpts), `"noreply":true`)
	s.Len(s.queriesOfType(proto.QueryNoreplyWait), 1)
}

func (s *ConnectionTestSuite) TestServerInfo() {
	info, err := s.conn.Server(s.ctx)
	s.Require().NoError(err)
	s.Equal("fakerdb", info.Name)
	s.False(info.Proxy)
}

func (s *ConnectionTestSuite) TestTokensAreUniqueAndIncreasing() {
	for i := 0; i < 3; i++ {
		_, err := Expr(i).Run(s.ctx, s.conn)
		s.Require().NoError(err)
	}

	starts := s.queriesOfType(proto.QueryStart)
	s.Require().Len(starts, 3)
	seen := map[uint64]bool{}
	var last uint64
	for _, q := range starts {
		s.False(seen[q.Token], "token %d reused", q.Token)
		seen[q.Token] = true
		s.Greater(q.Token, last)
		last = q.Token
	}
}

func (s *ConnectionTestSuite) TestCloseFailsPendingCursor() {
	s.setHandler(func(q *fakerdb.Query) *fakerdb.Reply {
		switch q.Type {
		case proto.QueryStart:
			return fakerdb.Partial(1)
		case proto.QueryContinue:
			// Never answer: the close must fail the waiter.
			return &fakerdb.Reply{Action: fakerdb.ActionNone}
		}
		return nil
	})

	res, err := Table("m").Run(s.ctx, s.conn)
	s.Require().NoError(err)
	cur := res.(*Cursor)

	first, err := cur.Next(s.ctx)
	s.Require().NoError(err)
	s.Equal(json.Number("1"), first)

	errCh := make(chan error, 1)
	go func() {
		_, err := cur.Next(s.ctx)
		errCh <- err
	}()

	time.Sleep(50 * time.Millisecond)
	s.Require().NoError(s.conn.Close(s.ctx, CloseOpts{SkipNoreplyWait: true}))

	select {
	case err := <-errCh:
		s.Require().Error(err)
		s.ErrorIs(err, &ReqlDriverError{})
	case <-time.After(2 * time.Second):
		s.Fail("pending cursor fetch was not failed by close")
	}

	_, err = Expr(1).Run(s.ctx, s.conn)
	s.ErrorIs(err, &ReqlDriverError{})
}

func (s *ConnectionTestSuite) TestRuntimeErrorCarriesBacktrace() {
	s.setHandler(func(q *fakerdb.Query) *fakerdb.Reply {
		if q.Type == proto.QueryStart {
			return fakerdb.RuntimeError(proto.ErrorNonExistence, "No attribute `age` in object", 1)
		}
		return nil
	})

	_, err := Expr(1).Add(2).Run(s.ctx, s.conn)
	s.Require().Error(err)
	s.ErrorIs(err, &ReqlNonExistenceError{})
	s.ErrorIs(err, &ReqlRuntimeError{})
	s.Contains(err.Error(), "No attribute")
	s.Contains(err.Error(), "^")

	// The connection stays usable after a per-query error.
	s.setHandler(nil)
	res, err := Expr(1).Run(s.ctx, s.conn)
	s.Require().NoError(err)
	s.Nil(res)
}

func (s *ConnectionTestSuite) TestErrorMidStream() {
	s.setHandler(func(q *fakerdb.Query) *fakerdb.Reply {
		switch q.Type {
		case proto.QueryStart:
			return fakerdb.Partial(1)
		case proto.QueryContinue:
			return fakerdb.RuntimeError(proto.ErrorOpFailed, "shard unavailable")
		}
		return nil
	})

	res, err := Table("m").Run(s.ctx, s.conn)
	s.Require().NoError(err)
	cur := res.(*Cursor)

	first, err := cur.Next(s.ctx)
	s.Require().NoError(err)
	s.Equal(json.Number("1"), first)

	_, err = cur.Next(s.ctx)
	s.Require().Error(err)
	s.ErrorIs(err, &ReqlOpFailedError{})

	// Errors are terminal: no further CONTINUE goes out.
	continues := len(s.queriesOfType(proto.QueryContinue))
	_, err = cur.Next(s.ctx)
	s.ErrorIs(err, &ReqlOpFailedError{})
	s.Len(s.queriesOfType(proto.QueryContinue), continues)
}

func (s *ConnectionTestSuite) TestDefaultDatabaseInGlobalOpts() {
	s.conn.Use("blog")
	_, err := Table("posts").Run(s.ctx, s.conn)
	s.Require().NoError(err)

	starts := s.queriesOfType(proto.QueryStart)
	s.Require().Len(starts, 1)
	s.JSONEq(`{"db":[14,["blog"]]}`, string(starts[0].GlobalOpts))
}

func (s *ConnectionTestSuite) TestRunOptsOverrideDatabase() {
	s.conn.Use("blog")
	_, err := Table("posts").Run(s.ctx, s.conn, RunOpts{DB: "other", Durability: "soft"})
	s.Require().NoError(err)

	starts := s.queriesOfType(proto.QueryStart)
	s.Require().Len(starts, 1)
	s.JSONEq(`{"db":[14,["other"]],"durability":"soft"}`, string(starts[0].GlobalOpts))
}

func (s *ConnectionTestSuite) TestReconnect() {
	s.Require().NoError(s.conn.Reconnect(s.ctx, CloseOpts{SkipNoreplyWait: true}))

	res, err := Expr(1).Run(s.ctx, s.conn)
	s.Require().NoError(err)
	s.Nil(res)
	s.True(s.conn.IsOpen())
}

func (s *ConnectionTestSuite) TestProfileAttached() {
	s.setHandler(func(q *fakerdb.Query) *fakerdb.Reply {
		if q.Type == proto.QueryStart {
			reply := fakerdb.Atom(7)
			reply.Profile = []any{map[string]any{"description": "evaluating"}}
			return reply
		}
		return nil
	})

	res, err := Expr(7).Run(s.ctx, s.conn, RunOpts{Profile: true})
	s.Require().NoError(err)

	wrapped, ok := res.(map[string]any)
	s.Require().True(ok)
	s.Equal(json.Number("7"), wrapped["value"])
	s.NotNil(wrapped["profile"])
}

func (s *ConnectionTestSuite) TestGarbageFrameFailsQuery() {
	s.setHandler(func(q *fakerdb.Query) *fakerdb.Reply {
		if q.Type == proto.QueryStart {
			return &fakerdb.Reply{Action: fakerdb.ActionGarbageFrame}
		}
		return nil
	})

	_, err := Expr(1).Run(s.ctx, s.conn)
	s.Require().Error(err)
	s.ErrorIs(err, &ReqlDriverError{})
}

func (s *ConnectionTestSuite) TestDroppedConnectionFailsWaiters() {
	s.setHandler(func(q *fakerdb.Query) *fakerdb.Reply {
		if q.Type == proto.QueryStart {
			return &fakerdb.Reply{Action: fakerdb.ActionDropConnection}
		}
		return nil
	})

	_, err := Expr(1).Run(s.ctx, s.conn)
	s.Require().Error(err)
	s.ErrorIs(err, &ReqlDriverError{})
	s.False(s.conn.IsOpen())
}

func (s *ConnectionTestSuite) TestConcurrentRuns() {
	s.setHandler(func(q *fakerdb.Query) *fakerdb.Reply {
		if q.Type == proto.QueryStart {
			// Echo the datum term back.
			var datum any
			if err := json.Unmarshal(q.Term, &datum); err == nil {
				return fakerdb.Atom(datum)
			}
		}
		return nil
	})

	var wg sync.WaitGroup
	results := make([]any, 16)
	errs := make([]error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = Expr(i).Run(s.ctx, s.conn)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 16; i++ {
		s.Require().NoError(errs[i])
		s.Equal(json.Number(strconv.Itoa(i)), results[i], "result %d", i)
	}
}

func TestRunWithoutConnection(t *testing.T) {
	replMu.Lock()
	replConn = nil
	replMu.Unlock()

	_, err := Expr(1).Run(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, &ReqlDriverError{})
}

func TestConnectTimeout(t *testing.T) {
	// The nanosecond deadline expires before the dial can complete.
	server, err := fakerdb.Listen(fakerdb.Options{})
	require.NoError(t, err)
	defer server.Close()

	host, port := server.Addr()
	_, err = Connect(context.Background(), ConnectOpts{
		Host:     host,
		Port:     port,
		Username: "admin",
		Password: "wrong-here-but-timeout-first",
		Timeout:  time.Nanosecond,
	})
	require.Error(t, err)
}
