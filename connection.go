package rethinkdb

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/rethinkdb/rethinkdb-go/internal/handshake"
	"github.com/rethinkdb/rethinkdb-go/internal/wire"
	"github.com/rethinkdb/rethinkdb-go/pkg/logger"
	"github.com/rethinkdb/rethinkdb-go/pkg/proto"
)

const (
	// DefaultHost is used when ConnectOpts.Host is empty.
	DefaultHost = "localhost"
	// DefaultPort is the server's client driver port.
	DefaultPort = 28015
	// DefaultUsername is used when ConnectOpts.Username is empty.
	DefaultUsername = "admin"
	// DefaultTimeout bounds dial, TLS and handshake together.
	DefaultTimeout = 20 * time.Second
)

// DialFunc opens the byte stream a connection runs over. The default uses
// a plain TCP dialer; WebSocketDialer tunnels through a proxy instead.
type DialFunc func(ctx context.Context, address string) (net.Conn, error)

// ConnectOpts configures Connect. Everything is explicit; the driver reads
// no environment.
type ConnectOpts struct {
	// Host of the server, DefaultHost when empty.
	Host string
	// Port of the client driver interface, DefaultPort when zero.
	Port int
	// Database used for unqualified Table references. Changeable later
	// with Use.
	Database string
	// Username for the handshake, DefaultUsername when empty.
	Username string
	// Password for the handshake; empty is valid for the default admin
	// account.
	Password string
	// Timeout bounds the whole connect: dial, TLS and handshake. Zero
	// means DefaultTimeout; negative disables the bound.
	Timeout time.Duration
	// TLSConfig enables TLS when non-nil. ServerName defaults to Host.
	TLSConfig *tls.Config
	// Dial overrides the transport; see WebSocketDialer.
	Dial DialFunc
	// Logger receives reader-loop anomalies. Defaults to slog text on
	// stdout.
	Logger logger.Logger
}

func (o ConnectOpts) withDefaults() ConnectOpts {
	if o.Host == "" {
		o.Host = DefaultHost
	}
	if o.Port == 0 {
		o.Port = DefaultPort
	}
	if o.Username == "" {
		o.Username = DefaultUsername
	}
	if o.Timeout == 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Logger == nil {
		o.Logger = logger.New(slog.NewTextHandler(os.Stdout, nil))
	}
	return o
}

// ServerInfo describes the server behind a connection.
type ServerInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Proxy bool   `json:"proxy"`
}

// Connection owns one socket. Many goroutines may submit queries
// concurrently; one reader goroutine demultiplexes responses by token and
// hands each to the waiter registered for it.
type Connection struct {
	opts ConnectOpts
	log  logger.Logger

	// mu guards the fields below: the token allocator, the waiter
	// registry and the closed flag. It is held briefly; never across I/O.
	mu         sync.Mutex
	conn       net.Conn
	database   string
	nextToken  uint64
	waiters    map[uint64]chan *wire.RawResponse
	closed     bool
	readerDone chan struct{}

	// writeMu serializes frame emission so concurrent submissions cannot
	// interleave bytes.
	writeMu sync.Mutex
}

// Connect opens a TCP (or tunneled) stream, optionally wraps TLS, drives
// the handshake to completion and spawns the reader.
func Connect(ctx context.Context, opts ConnectOpts) (*Connection, error) {
	opts = opts.withDefaults()
	c := &Connection{
		opts:     opts,
		log:      opts.Logger,
		database: opts.Database,
	}
	if err := c.dial(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Connection) dial(ctx context.Context) error {
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	address := net.JoinHostPort(c.opts.Host, strconv.Itoa(c.opts.Port))

	var conn net.Conn
	var err error
	if c.opts.Dial != nil {
		conn, err = c.opts.Dial(ctx, address)
	} else {
		var dialer net.Dialer
		conn, err = dialer.DialContext(ctx, "tcp", address)
	}
	if err != nil {
		if ctx.Err() != nil {
			return newTimeoutError(c.opts.Host, c.opts.Port)
		}
		return newDriverError(fmt.Sprintf("Could not connect to %s: %v.", address, err))
	}

	if c.opts.TLSConfig != nil {
		cfg := c.opts.TLSConfig.Clone()
		if cfg.ServerName == "" {
			cfg.ServerName = c.opts.Host
		}
		tlsConn := tls.Client(conn, cfg)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			if ctx.Err() != nil {
				return newTimeoutError(c.opts.Host, c.opts.Port)
			}
			return newDriverError(fmt.Sprintf("TLS handshake with %s failed: %v.", address, err))
		}
		conn = tlsConn
	}

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	reader := bufio.NewReader(conn)
	if err := c.runHandshake(conn, reader); err != nil {
		conn.Close()
		return err
	}

	conn.SetDeadline(time.Time{})

	c.mu.Lock()
	c.conn = conn
	c.closed = false
	c.waiters = make(map[uint64]chan *wire.RawResponse)
	c.readerDone = make(chan struct{})
	c.mu.Unlock()

	go c.readLoop(reader, c.readerDone)
	return nil
}

func (c *Connection) runHandshake(conn net.Conn, reader *bufio.Reader) error {
	hs := handshake.New(c.opts.Host, c.opts.Port, c.opts.Username, c.opts.Password)

	var response []byte
	for {
		msg, err := hs.NextMessage(response)
		if err != nil {
			return c.mapHandshakeError(err)
		}
		if msg == nil {
			return nil
		}
		if len(msg) > 0 {
			if _, err := conn.Write(msg); err != nil {
				return c.wrapNetError("sending to", err)
			}
		}
		line, err := reader.ReadBytes(0)
		if err != nil {
			return c.wrapNetError("receiving from", err)
		}
		response = line[:len(line)-1]
	}
}

func (c *Connection) mapHandshakeError(err error) error {
	var authErr *handshake.AuthError
	if errors.As(err, &authErr) {
		return newAuthError(authErr.Error())
	}
	var stateErr *handshake.StateError
	if errors.As(err, &stateErr) {
		return &InvalidHandshakeStateError{ReqlDriverError{ReqlError{msg: stateErr.Error()}}}
	}
	return newDriverError(fmt.Sprintf("Handshake with %s:%d failed: %v.", c.opts.Host, c.opts.Port, err))
}

func (c *Connection) wrapNetError(direction string, err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newTimeoutError(c.opts.Host, c.opts.Port)
	}
	return newDriverError(fmt.Sprintf("Connection interrupted during handshake with %s:%d - %v.", c.opts.Host, c.opts.Port, err))
}

// readLoop drains the socket, matching each framed response to its waiter.
// A socket error or EOF closes the connection and fails everything
// outstanding.
func (c *Connection) readLoop(reader *bufio.Reader, done chan struct{}) {
	defer close(done)

	for {
		resp, err := wire.ReadFrame(reader)
		if err != nil {
			c.failAll(err)
			return
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		ch, ok := c.waiters[resp.Token]
		c.mu.Unlock()

		if !ok {
			// Late batch for a deregistered token: a cancelled run or a
			// closed cursor. Dropped by design of the cancellation
			// protocol.
			c.log.Debug("discarding response for unknown token", "token", resp.Token)
			continue
		}
		ch <- resp
	}
}

// failAll transitions to closed and fails every outstanding waiter by
// closing its channel. Receivers translate the closed channel into a
// connection-closed error.
func (c *Connection) failAll(cause error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	waiters := c.waiters
	c.waiters = make(map[uint64]chan *wire.RawResponse)
	conn := c.conn
	c.mu.Unlock()

	c.log.Error("connection failed", "error", cause)
	for _, ch := range waiters {
		close(ch)
	}
	if conn != nil {
		conn.Close()
	}
}

// IsOpen reports whether the connection can still submit queries.
func (c *Connection) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && c.conn != nil
}

// Use changes the default database applied to subsequent runs.
func (c *Connection) Use(database string) {
	c.mu.Lock()
	c.database = database
	c.mu.Unlock()
}

// Database returns the current default database.
func (c *Connection) Database() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.database
}

// startQuery atomically allocates the next token and registers a waiter
// for it. Tokens increase monotonically and are never reused, even after
// a cursor closes; exhausting the 64-bit space is fatal.
func (c *Connection) startQuery() (uint64, chan *wire.RawResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.conn == nil {
		return 0, nil, newDriverError("Connection is closed.")
	}
	if c.nextToken == math.MaxUint64 {
		return 0, nil, newDriverError("Token space exhausted on this connection.")
	}
	c.nextToken++
	token := c.nextToken

	// Capacity two: a cursor can have one outstanding CONTINUE plus the
	// acknowledgement of a STOP in flight at once, and the reader must
	// never block on a waiter.
	ch := make(chan *wire.RawResponse, 2)
	c.waiters[token] = ch
	return token, ch, nil
}

// newToken allocates a token without registering a waiter, for noreply
// submissions.
func (c *Connection) newToken() (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.conn == nil {
		return 0, newDriverError("Connection is closed.")
	}
	if c.nextToken == math.MaxUint64 {
		return 0, newDriverError("Token space exhausted on this connection.")
	}
	c.nextToken++
	return c.nextToken, nil
}

func (c *Connection) deregister(token uint64) {
	c.mu.Lock()
	delete(c.waiters, token)
	c.mu.Unlock()
}

// writeQuery emits one frame under the writer lock. A failed write is
// connection-fatal.
func (c *Connection) writeQuery(q *wire.Query) error {
	c.mu.Lock()
	conn := c.conn
	closed := c.closed
	c.mu.Unlock()
	if closed || conn == nil {
		return newDriverError("Connection is closed.")
	}

	c.writeMu.Lock()
	err := wire.WriteFrame(conn, q)
	c.writeMu.Unlock()
	if err != nil {
		c.failAll(err)
		return newDriverError("Connection is closed.")
	}
	return nil
}

func (c *Connection) continueQuery(token uint64) error {
	return c.writeQuery(&wire.Query{Type: proto.QueryContinue, Token: token})
}

func (c *Connection) stopQuery(token uint64) error {
	return c.writeQuery(&wire.Query{Type: proto.QueryStop, Token: token})
}

// awaitResponse blocks for the next response on ch, honoring ctx. When ctx
// fires first the waiter is deregistered so the reader silently discards
// whatever arrives later.
func (c *Connection) awaitResponse(ctx context.Context, token uint64, ch chan *wire.RawResponse) (*wire.RawResponse, error) {
	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, newDriverError("Connection is closed.")
		}
		return resp, nil
	case <-ctx.Done():
		c.deregister(token)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, newTimeoutError("", 0)
		}
		return nil, ctx.Err()
	}
}

// NoreplyWait blocks until the server has processed every noreply write
// submitted on this connection so far.
func (c *Connection) NoreplyWait(ctx context.Context) error {
	token, ch, err := c.startQuery()
	if err != nil {
		return err
	}
	if err := c.writeQuery(&wire.Query{Type: proto.QueryNoreplyWait, Token: token}); err != nil {
		c.deregister(token)
		return err
	}
	resp, err := c.awaitResponse(ctx, token, ch)
	if err != nil {
		return err
	}
	c.deregister(token)

	env, err := resp.Envelope()
	if err != nil {
		return newDriverError(err.Error())
	}
	if env.Type.IsError() {
		return responseError(env, nil)
	}
	if env.Type != proto.ResponseWaitComplete {
		return newDriverError(fmt.Sprintf("Unexpected response type %d to NOREPLY_WAIT.", env.Type))
	}
	return nil
}

// Server returns the identity of the server behind the connection.
func (c *Connection) Server(ctx context.Context) (ServerInfo, error) {
	var info ServerInfo

	token, ch, err := c.startQuery()
	if err != nil {
		return info, err
	}
	if err := c.writeQuery(&wire.Query{Type: proto.QueryServerInfo, Token: token}); err != nil {
		c.deregister(token)
		return info, err
	}
	resp, err := c.awaitResponse(ctx, token, ch)
	if err != nil {
		return info, err
	}
	c.deregister(token)

	env, err := resp.Envelope()
	if err != nil {
		return info, newDriverError(err.Error())
	}
	if env.Type.IsError() {
		return info, responseError(env, nil)
	}
	if env.Type != proto.ResponseServerInfo || len(env.Results) == 0 {
		return info, newDriverError(fmt.Sprintf("Unexpected response type %d to SERVER_INFO.", env.Type))
	}
	if err := jsonUnmarshal(env.Results[0], &info); err != nil {
		return info, newDriverError(fmt.Sprintf("Malformed SERVER_INFO payload: %v.", err))
	}
	return info, nil
}

// CloseOpts tunes Close.
type CloseOpts struct {
	// SkipNoreplyWait closes without flushing outstanding noreply writes.
	SkipNoreplyWait bool
}

// Close cancels every outstanding waiter with a connection-closed error,
// shuts the socket down and joins the reader. Unless told otherwise it
// first submits NOREPLY_WAIT so fire-and-forget writes are flushed
// server-side.
func (c *Connection) Close(ctx context.Context, opts ...CloseOpts) error {
	var skipWait bool
	if len(opts) > 0 {
		skipWait = opts[0].SkipNoreplyWait
	}

	var waitErr error
	if !skipWait && c.IsOpen() {
		waitErr = c.NoreplyWait(ctx)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	waiters := c.waiters
	c.waiters = make(map[uint64]chan *wire.RawResponse)
	conn := c.conn
	done := c.readerDone
	c.nextToken = 0
	c.mu.Unlock()

	for _, ch := range waiters {
		close(ch)
	}

	var closeErr error
	if conn != nil {
		closeErr = conn.Close()
	}

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if waitErr != nil {
		return waitErr
	}
	return closeErr
}

// Reconnect closes the connection and dials again with the saved
// parameters.
func (c *Connection) Reconnect(ctx context.Context, opts ...CloseOpts) error {
	if err := c.Close(ctx, opts...); err != nil {
		return err
	}
	return c.dial(ctx)
}
