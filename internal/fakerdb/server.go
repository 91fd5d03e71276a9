// Package fakerdb provides a fake RethinkDB server for testing. It speaks
// the real wire contract over TCP: the SCRAM-SHA-256 handshake against
// configured credentials, then framed JSON queries answered by a
// configurable handler.
//
// There is no executable for this package; tests embed a Server, register
// stub handlers per query shape, and make assertions on the captured
// query envelopes. Failure injection covers the interesting transport
// breakages: dropping the connection mid-stream and emitting a garbage
// frame.
package fakerdb

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rethinkdb/rethinkdb-go/internal/scram"
	"github.com/rethinkdb/rethinkdb-go/pkg/logger"
	"github.com/rethinkdb/rethinkdb-go/pkg/proto"
)

// Query is one decoded incoming query envelope.
type Query struct {
	Token      uint64
	Type       proto.QueryType
	Term       json.RawMessage
	GlobalOpts json.RawMessage
}

// Noreply reports whether the query's global options request no response.
func (q *Query) Noreply() bool {
	if q.GlobalOpts == nil {
		return false
	}
	var opts struct {
		Noreply bool `json:"noreply"`
	}
	if err := json.Unmarshal(q.GlobalOpts, &opts); err != nil {
		return false
	}
	return opts.Noreply
}

// Action tells the serving loop to do something other than answer.
type Action int

const (
	// ActionReply writes the reply envelope.
	ActionReply Action = iota
	// ActionNone writes nothing, as for noreply queries.
	ActionNone
	// ActionDropConnection closes the TCP connection immediately.
	ActionDropConnection
	// ActionGarbageFrame writes an unparseable frame body.
	ActionGarbageFrame
)

// Reply is the scripted answer to one query.
type Reply struct {
	Action    Action
	Type      proto.ResponseType
	Results   []any
	ErrorType proto.ErrorType
	Backtrace []any
	Notes     []proto.ResponseNote
	Profile   any
}

// Atom builds a single-value success reply.
func Atom(value any) *Reply {
	return &Reply{Type: proto.ResponseSuccessAtom, Results: []any{value}}
}

// Partial builds a partial-sequence reply.
func Partial(values ...any) *Reply {
	return &Reply{Type: proto.ResponseSuccessPartial, Results: values}
}

// Sequence builds a final-sequence reply.
func Sequence(values ...any) *Reply {
	return &Reply{Type: proto.ResponseSuccessSequence, Results: values}
}

// RuntimeError builds a runtime error reply of the given kind.
func RuntimeError(kind proto.ErrorType, message string, backtrace ...any) *Reply {
	return &Reply{
		Type:      proto.ResponseRuntimeError,
		Results:   []any{message},
		ErrorType: kind,
		Backtrace: backtrace,
	}
}

// CompileError builds a compile error reply.
func CompileError(message string, backtrace ...any) *Reply {
	return &Reply{Type: proto.ResponseCompileError, Results: []any{message}, Backtrace: backtrace}
}

// Handler scripts the server: it receives every decoded query in arrival
// order and returns the reply. Returning nil falls back to the protocol
// default for the query type: a null atom for START, WAIT_COMPLETE for
// NOREPLY_WAIT, a server identity for SERVER_INFO, and an empty final
// sequence for CONTINUE and STOP. Handlers run one at a time per
// connection.
type Handler func(q *Query) *Reply

func defaultReply(q *Query) *Reply {
	switch q.Type {
	case proto.QueryNoreplyWait:
		return &Reply{Type: proto.ResponseWaitComplete}
	case proto.QueryServerInfo:
		return &Reply{Type: proto.ResponseServerInfo, Results: []any{map[string]any{
			"id":    "00000000-0000-0000-0000-000000000000",
			"name":  "fakerdb",
			"proxy": false,
		}}}
	case proto.QueryContinue, proto.QueryStop:
		return Sequence()
	}
	return Atom(nil)
}

// Options configures a Server.
type Options struct {
	// Username and Password the handshake verifies against. Defaults:
	// "admin" with an empty password.
	Username string
	Password string
	// Handler answers queries. Defaults to answering every START with a
	// null atom.
	Handler Handler
	// Logger defaults to zerolog on stderr at the error level.
	Logger logger.Logger
}

// Server is the fake database. Start it with Listen, point a connection at
// Addr, and inspect Queries afterwards.
type Server struct {
	listener net.Listener
	opts     Options
	log      logger.Logger

	group  *errgroup.Group
	cancel context.CancelFunc

	mu      sync.Mutex
	queries []Query
}

// Listen starts the server on a loopback port.
func Listen(opts Options) (*Server, error) {
	if opts.Username == "" {
		opts.Username = "admin"
	}
	if opts.Handler == nil {
		opts.Handler = func(q *Query) *Reply { return nil }
	}
	if opts.Logger == nil {
		zl := zerolog.New(os.Stderr).Level(zerolog.ErrorLevel).With().Timestamp().Logger()
		opts.Logger = logger.NewZerolog(zl)
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(ctx)

	s := &Server{
		listener: listener,
		opts:     opts,
		log:      opts.Logger,
		group:    group,
		cancel:   cancel,
	}

	group.Go(func() error {
		for {
			conn, err := listener.Accept()
			if err != nil {
				// Accept fails when Close tears the listener down.
				return nil
			}
			group.Go(func() error {
				defer conn.Close()
				s.serve(ctx, conn)
				return nil
			})
		}
	})
	return s, nil
}

// Addr returns the host:port the server listens on.
func (s *Server) Addr() (host string, port int) {
	addr := s.listener.Addr().(*net.TCPAddr)
	return "127.0.0.1", addr.Port
}

// Close stops accepting, disconnects clients and waits for the serving
// goroutines.
func (s *Server) Close() error {
	s.cancel()
	err := s.listener.Close()
	s.group.Wait()
	return err
}

// Queries returns a snapshot of every decoded query received so far,
// across connections, in arrival order.
func (s *Server) Queries() []Query {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Query(nil), s.queries...)
}

func (s *Server) record(q Query) {
	s.mu.Lock()
	s.queries = append(s.queries, q)
	s.mu.Unlock()
}

func (s *Server) serve(ctx context.Context, conn net.Conn) {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := s.handshake(conn); err != nil {
		s.log.Error("handshake failed", "error", err)
		return
	}

	for {
		q, err := readQuery(conn)
		if err != nil {
			if err != io.EOF && ctx.Err() == nil {
				s.log.Error("read failed", "error", err)
			}
			return
		}
		s.record(*q)

		reply := s.opts.Handler(q)
		if reply == nil {
			reply = defaultReply(q)
		}
		if q.Noreply() {
			continue
		}

		switch reply.Action {
		case ActionNone:
			continue
		case ActionDropConnection:
			return
		case ActionGarbageFrame:
			frame := make([]byte, 20)
			binary.LittleEndian.PutUint64(frame[0:8], q.Token)
			binary.LittleEndian.PutUint32(frame[8:12], 8)
			copy(frame[12:], "not-json")
			conn.Write(frame)
			continue
		}

		if err := writeReply(conn, q.Token, reply); err != nil {
			s.log.Error("write failed", "error", err)
			return
		}
	}
}

func readQuery(conn net.Conn) (*Query, error) {
	var header [12]byte
	if _, err := io.ReadFull(conn, header[:]); err != nil {
		return nil, err
	}
	token := binary.LittleEndian.Uint64(header[0:8])
	length := binary.LittleEndian.Uint32(header[8:12])
	body := make([]byte, length)
	if _, err := io.ReadFull(conn, body); err != nil {
		return nil, err
	}

	var parts []json.RawMessage
	if err := json.Unmarshal(body, &parts); err != nil {
		return nil, fmt.Errorf("malformed query body %q: %w", body, err)
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty query array")
	}
	var queryType proto.QueryType
	if err := json.Unmarshal(parts[0], &queryType); err != nil {
		return nil, fmt.Errorf("malformed query type: %w", err)
	}

	q := &Query{Token: token, Type: queryType}
	if len(parts) > 1 {
		q.Term = parts[1]
	}
	if len(parts) > 2 {
		q.GlobalOpts = parts[2]
	}
	return q, nil
}

func writeReply(conn net.Conn, token uint64, reply *Reply) error {
	envelope := map[string]any{
		"t": int(reply.Type),
		"r": reply.Results,
	}
	if reply.Results == nil {
		envelope["r"] = []any{}
	}
	if reply.ErrorType != 0 {
		envelope["e"] = int(reply.ErrorType)
	}
	if reply.Backtrace != nil {
		envelope["b"] = reply.Backtrace
	}
	if reply.Notes != nil {
		envelope["n"] = reply.Notes
	}
	if reply.Profile != nil {
		envelope["p"] = reply.Profile
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	frame := make([]byte, 12+len(body))
	binary.LittleEndian.PutUint64(frame[0:8], token)
	binary.LittleEndian.PutUint32(frame[8:12], uint32(len(body)))
	copy(frame[12:], body)
	_, err = conn.Write(frame)
	return err
}

// handshake runs the server side of the SCRAM exchange against the
// configured credentials.
func (s *Server) handshake(conn net.Conn) error {
	var magic [4]byte
	if _, err := io.ReadFull(conn, magic[:]); err != nil {
		return err
	}
	if binary.LittleEndian.Uint32(magic[:]) != proto.Version {
		writeHandshakeError(conn, 2, "Received an unsupported protocol version.")
		return fmt.Errorf("bad protocol magic %x", magic)
	}

	clientFirst, err := readNulMessage(conn)
	if err != nil {
		return err
	}
	var opening struct {
		ProtocolVersion      int    `json:"protocol_version"`
		AuthenticationMethod string `json:"authentication_method"`
		Authentication       string `json:"authentication"`
	}
	if err := json.Unmarshal(clientFirst, &opening); err != nil {
		return fmt.Errorf("malformed client-first message: %w", err)
	}
	if opening.AuthenticationMethod != "SCRAM-SHA-256" {
		writeHandshakeError(conn, 10, "Unsupported authentication method.")
		return fmt.Errorf("unsupported auth method %q", opening.AuthenticationMethod)
	}

	clientFirstBare, ok := strings.CutPrefix(opening.Authentication, "n,,")
	if !ok {
		writeHandshakeError(conn, 10, "Unsupported channel binding request.")
		return fmt.Errorf("unexpected gs2 header in %q", opening.Authentication)
	}
	attrs := parseScramPairs(clientFirstBare)
	clientNonce := attrs["r"]
	username := attrs["n"]
	if username != scram.EscapeUsername(s.opts.Username) {
		writeHandshakeError(conn, 17, "Unknown user")
		return fmt.Errorf("unknown user %q", username)
	}

	if err := writeNulJSON(conn, map[string]any{
		"success":              true,
		"min_protocol_version": proto.SubProtocolVersion,
		"max_protocol_version": proto.SubProtocolVersion,
		"server_version":       "fakerdb",
	}); err != nil {
		return err
	}

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return err
	}
	serverNonce := clientNonce + newNonceSuffix()
	const iterations = 256
	serverFirst := fmt.Sprintf("r=%s,s=%s,i=%d", serverNonce, base64.StdEncoding.EncodeToString(salt), iterations)
	if err := writeNulJSON(conn, map[string]any{
		"success":        true,
		"authentication": serverFirst,
	}); err != nil {
		return err
	}

	clientFinalRaw, err := readNulMessage(conn)
	if err != nil {
		return err
	}
	var final struct {
		Authentication string `json:"authentication"`
	}
	if err := json.Unmarshal(clientFinalRaw, &final); err != nil {
		return fmt.Errorf("malformed client-final message: %w", err)
	}
	finalAttrs := parseScramPairs(final.Authentication)
	proof, err := base64.StdEncoding.DecodeString(finalAttrs["p"])
	if err != nil || len(proof) != scram.KeySize {
		writeHandshakeError(conn, 12, "Wrong password")
		return fmt.Errorf("malformed client proof")
	}
	clientFinalNoProof, _, _ := strings.Cut(final.Authentication, ",p=")

	salted := scram.SaltedPassword(s.opts.Password, salt, iterations)
	storedKey := scram.StoredKey(scram.ClientKey(salted))
	authMessage := scram.AuthMessage(clientFirstBare, serverFirst, clientFinalNoProof)
	clientSignature := scram.ClientSignature(storedKey, authMessage)

	// Recover the client key from the proof; its hash must equal the
	// stored key for the password to match.
	recoveredKey := scram.ClientProof(proof, clientSignature)
	if subtle.ConstantTimeCompare(scram.StoredKey(recoveredKey), storedKey) != 1 {
		writeHandshakeError(conn, 12, "Wrong password")
		return fmt.Errorf("wrong password for user %q", username)
	}

	serverSignature := scram.ServerSignature(scram.ServerKey(salted), authMessage)
	return writeNulJSON(conn, map[string]any{
		"success":        true,
		"authentication": "v=" + base64.StdEncoding.EncodeToString(serverSignature),
	})
}

func parseScramPairs(message string) map[string]string {
	attrs := make(map[string]string)
	for _, part := range strings.Split(message, ",") {
		if key, value, found := strings.Cut(part, "="); found {
			attrs[key] = value
		}
	}
	return attrs
}

func newNonceSuffix() string {
	buf := make([]byte, 18)
	if _, err := rand.Read(buf); err != nil {
		panic("unreachable")
	}
	return base64.StdEncoding.EncodeToString(buf)
}

func readNulMessage(conn net.Conn) ([]byte, error) {
	var msg []byte
	buf := make([]byte, 1)
	for {
		if _, err := io.ReadFull(conn, buf); err != nil {
			return nil, err
		}
		if buf[0] == 0 {
			return msg, nil
		}
		msg = append(msg, buf[0])
	}
}

func writeNulJSON(conn net.Conn, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = conn.Write(append(data, 0))
	return err
}

func writeHandshakeError(conn net.Conn, code int, message string) {
	writeNulJSON(conn, map[string]any{
		"success":    false,
		"error":      message,
		"error_code": code,
	})
}
