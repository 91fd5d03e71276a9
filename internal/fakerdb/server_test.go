package fakerdb

import (
	"bufio"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rethinkdb/rethinkdb-go/internal/handshake"
	"github.com/rethinkdb/rethinkdb-go/internal/wire"
	"github.com/rethinkdb/rethinkdb-go/pkg/proto"
)

// dialAndAuthenticate performs the client half of the handshake using the
// driver's own state machine.
func dialAndAuthenticate(t *testing.T, s *Server, username, password string) net.Conn {
	t.Helper()

	host, port := s.Addr()
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("%s:%d", host, port), 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	reader := bufio.NewReader(conn)
	hs := handshake.New(host, port, username, password)

	var response []byte
	for {
		msg, err := hs.NextMessage(response)
		require.NoError(t, err)
		if msg == nil {
			return conn
		}
		if len(msg) > 0 {
			_, err = conn.Write(msg)
			require.NoError(t, err)
		}
		line, err := reader.ReadBytes(0)
		require.NoError(t, err)
		response = line[:len(line)-1]
	}
}

func TestServerAnswersStart(t *testing.T) {
	s, err := Listen(Options{Username: "admin", Password: "pw", Handler: func(q *Query) *Reply {
		if q.Type == proto.QueryStart {
			return Atom("hi")
		}
		return nil
	}})
	require.NoError(t, err)
	defer s.Close()

	conn := dialAndAuthenticate(t, s, "admin", "pw")

	q := &wire.Query{Type: proto.QueryStart, Token: 1, Term: []byte(`[59,[]]`)}
	require.NoError(t, wire.WriteFrame(conn, q))

	resp, err := wire.ReadFrame(conn)
	require.NoError(t, err)
	assert.EqualValues(t, 1, resp.Token)

	env, err := resp.Envelope()
	require.NoError(t, err)
	assert.Equal(t, proto.ResponseSuccessAtom, env.Type)
	require.Len(t, env.Results, 1)
	assert.Equal(t, `"hi"`, string(env.Results[0]))

	queries := s.Queries()
	require.Len(t, queries, 1)
	assert.Equal(t, proto.QueryStart, queries[0].Type)
	assert.Equal(t, `[59,[]]`, string(queries[0].Term))
}

func TestServerRejectsWrongPassword(t *testing.T) {
	s, err := Listen(Options{Username: "admin", Password: "right"})
	require.NoError(t, err)
	defer s.Close()

	host, port := s.Addr()
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("%s:%d", host, port), 5*time.Second)
	require.NoError(t, err)
	defer conn.Close()

	reader := bufio.NewReader(conn)
	hs := handshake.New(host, port, "admin", "wrong")

	var response []byte
	var authErr error
	for {
		msg, err := hs.NextMessage(response)
		if err != nil {
			authErr = err
			break
		}
		require.NotNil(t, msg, "handshake must not succeed with the wrong password")
		if len(msg) > 0 {
			_, err = conn.Write(msg)
			require.NoError(t, err)
		}
		line, err := reader.ReadBytes(0)
		require.NoError(t, err)
		response = line[:len(line)-1]
	}

	var scramErr *handshake.AuthError
	require.ErrorAs(t, authErr, &scramErr)
	assert.Contains(t, scramErr.Error(), "Wrong password")
}

func TestNoreplyQueriesGetNoResponse(t *testing.T) {
	s, err := Listen(Options{Username: "admin", Password: "pw"})
	require.NoError(t, err)
	defer s.Close()

	conn := dialAndAuthenticate(t, s, "admin", "pw")

	noreply := &wire.Query{Type: proto.QueryStart, Token: 1, Term: []byte(`[59,[]]`), GlobalOpts: []byte(`{"noreply":true}`)}
	require.NoError(t, wire.WriteFrame(conn, noreply))
	waited := &wire.Query{Type: proto.QueryNoreplyWait, Token: 2}
	require.NoError(t, wire.WriteFrame(conn, waited))

	// The first frame back must answer the NOREPLY_WAIT, not the start.
	resp, err := wire.ReadFrame(conn)
	require.NoError(t, err)
	assert.EqualValues(t, 2, resp.Token)

	env, err := resp.Envelope()
	require.NoError(t, err)
	assert.Equal(t, proto.ResponseWaitComplete, env.Type)
}
