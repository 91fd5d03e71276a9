// Package handshake implements the client side of the version-negotiated,
// SCRAM-SHA-256-authenticated connection handshake.
//
// The exchange consists of NUL-terminated JSON messages. The client opens
// with the protocol magic and its client-first message in one packet; the
// server answers with a version advertisement, then a SCRAM challenge, and
// finally its signature over the exchange. NextMessage drives the machine
// one server message at a time.
package handshake

import (
	"crypto/subtle"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/rethinkdb/rethinkdb-go/internal/rand"
	"github.com/rethinkdb/rethinkdb-go/internal/scram"
	"github.com/rethinkdb/rethinkdb-go/pkg/proto"
)

// State enumerates the positions of the handshake machine.
type State int

const (
	// StateInitial expects no server input and produces the opening packet.
	StateInitial State = iota
	// StateVersionResponse consumes the server's protocol-version message.
	StateVersionResponse
	// StateAuthChallenge consumes the SCRAM challenge and produces the
	// client-final message.
	StateAuthChallenge
	// StateServerSignature consumes and verifies the server signature.
	StateServerSignature
	// StateDone is terminal; driving the machine further is an error.
	StateDone
)

// AuthError reports an authentication failure: bad credentials, an
// unsupported protocol version range, a nonce the client did not issue, or
// a server signature mismatch.
type AuthError struct {
	Msg  string
	Host string
	Port int
}

func (e *AuthError) Error() string {
	if e.Host != "" {
		return fmt.Sprintf("could not connect to %s:%d, %s", e.Host, e.Port, e.Msg)
	}
	return e.Msg
}

// ProtocolError reports a malformed or unexpected server message.
type ProtocolError struct {
	Msg string
}

func (e *ProtocolError) Error() string { return e.Msg }

// StateError reports that the machine was driven in a state with no valid
// transition, including any call after StateDone.
type StateError struct {
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("handshake already complete or in invalid state %d", e.State)
}

// Handshake is the per-connection handshake machine. It is not safe for
// concurrent use; a connection drives it from a single goroutine.
type Handshake struct {
	host     string
	port     int
	username string
	password string

	state           State
	clientNonce     string
	clientFirstBare string
	serverSignature []byte
}

// New creates a handshake machine for one connection attempt. The host and
// port are only used to contextualize errors.
func New(host string, port int, username, password string) *Handshake {
	return &Handshake{
		host:        host,
		port:        port,
		username:    username,
		password:    password,
		clientNonce: rand.Nonce(),
	}
}

// serverMessage is the union of fields across all three server messages.
type serverMessage struct {
	Success            bool            `json:"success"`
	Error              string          `json:"error"`
	ErrorCode          int             `json:"error_code"`
	MinProtocolVersion *int            `json:"min_protocol_version"`
	MaxProtocolVersion *int            `json:"max_protocol_version"`
	ServerVersion      string          `json:"server_version"`
	Authentication     json.RawMessage `json:"authentication"`
}

// State returns the current machine state.
func (h *Handshake) State() State { return h.state }

// Done reports whether the handshake has completed successfully.
func (h *Handshake) Done() bool { return h.state == StateDone }

// NextMessage consumes one server message (nil for the very first call) and
// returns the bytes to send next. A nil message with nil error means the
// handshake completed; an empty non-nil message means nothing needs to be
// sent and the caller should read the next server message.
func (h *Handshake) NextMessage(response []byte) ([]byte, error) {
	switch h.state {
	case StateInitial:
		if response != nil {
			return nil, &ProtocolError{Msg: "unexpected server message before the opening packet"}
		}
		h.state = StateVersionResponse
		return h.opening(), nil

	case StateVersionResponse:
		msg, err := h.decode(response)
		if err != nil {
			return nil, err
		}
		if err := h.checkVersion(msg); err != nil {
			return nil, err
		}
		h.state = StateAuthChallenge
		return []byte{}, nil

	case StateAuthChallenge:
		msg, err := h.decode(response)
		if err != nil {
			return nil, err
		}
		reply, err := h.answerChallenge(msg)
		if err != nil {
			return nil, err
		}
		h.state = StateServerSignature
		return reply, nil

	case StateServerSignature:
		msg, err := h.decode(response)
		if err != nil {
			return nil, err
		}
		if err := h.verifyServer(msg); err != nil {
			return nil, err
		}
		h.state = StateDone
		return nil, nil

	default:
		return nil, &StateError{State: h.state}
	}
}

// opening builds the single packet sent before any server response: the
// little-endian protocol magic followed by the NUL-terminated client-first
// JSON. Both go out together as an optimization; the server answers each
// part separately.
func (h *Handshake) opening() []byte {
	h.clientFirstBare = scram.ClientFirstBare(h.username, h.clientNonce)

	payload, _ := json.Marshal(map[string]any{
		"protocol_version":      proto.SubProtocolVersion,
		"authentication_method": "SCRAM-SHA-256",
		"authentication":        "n,," + h.clientFirstBare,
	})

	msg := make([]byte, 4, 4+len(payload)+1)
	binary.LittleEndian.PutUint32(msg, proto.Version)
	msg = append(msg, payload...)
	return append(msg, 0)
}

func (h *Handshake) decode(response []byte) (*serverMessage, error) {
	if response == nil {
		return nil, &ProtocolError{Msg: "expected a server message"}
	}
	var msg serverMessage
	if err := json.Unmarshal(response, &msg); err != nil {
		// The server answers a bad magic with a plain-text error rather
		// than JSON.
		return nil, &ProtocolError{Msg: fmt.Sprintf("unparseable handshake response %q: %v", response, err)}
	}
	if !msg.Success {
		// Error codes 10..20 designate authentication failures; everything
		// else is a driver-level failure.
		if msg.ErrorCode >= 10 && msg.ErrorCode <= 20 {
			return nil, &AuthError{Msg: msg.Error, Host: h.host, Port: h.port}
		}
		return nil, &ProtocolError{Msg: msg.Error}
	}
	return &msg, nil
}

func (h *Handshake) checkVersion(msg *serverMessage) error {
	if msg.MinProtocolVersion == nil || msg.MaxProtocolVersion == nil {
		return &ProtocolError{Msg: "server did not advertise a protocol version range"}
	}
	if *msg.MinProtocolVersion > proto.SubProtocolVersion || proto.SubProtocolVersion > *msg.MaxProtocolVersion {
		return &AuthError{Msg: fmt.Sprintf(
			"unsupported protocol version %d, expected between %d and %d",
			proto.SubProtocolVersion, *msg.MinProtocolVersion, *msg.MaxProtocolVersion),
			Host: h.host, Port: h.port}
	}
	return nil
}

func (h *Handshake) answerChallenge(msg *serverMessage) ([]byte, error) {
	var serverFirst string
	if err := json.Unmarshal(msg.Authentication, &serverFirst); err != nil {
		return nil, &ProtocolError{Msg: "challenge authentication field is not a string"}
	}
	challenge, err := scram.ParseChallenge(serverFirst)
	if err != nil {
		return nil, &ProtocolError{Msg: err.Error()}
	}
	if len(challenge.Nonce) < len(h.clientNonce) || challenge.Nonce[:len(h.clientNonce)] != h.clientNonce {
		return nil, &AuthError{Msg: "invalid nonce from server", Host: h.host, Port: h.port}
	}

	clientFinalNoProof := scram.ClientFinalNoProof(challenge.Nonce)
	authMessage := scram.AuthMessage(h.clientFirstBare, serverFirst, clientFinalNoProof)

	salted := scram.SaltedPassword(h.password, challenge.Salt, challenge.IterationCount)
	clientKey := scram.ClientKey(salted)
	clientSignature := scram.ClientSignature(scram.StoredKey(clientKey), authMessage)
	proof := scram.ClientProof(clientKey, clientSignature)

	// The server signature is derivable now; cache it for the final
	// verification step.
	h.serverSignature = scram.ServerSignature(scram.ServerKey(salted), authMessage)

	payload, _ := json.Marshal(map[string]string{
		"authentication": clientFinalNoProof + ",p=" + base64.StdEncoding.EncodeToString(proof),
	})
	return append(payload, 0), nil
}

func (h *Handshake) verifyServer(msg *serverMessage) error {
	var serverFinal string
	if err := json.Unmarshal(msg.Authentication, &serverFinal); err != nil {
		return &ProtocolError{Msg: "server-final authentication field is not a string"}
	}
	signature, err := scram.ParseServerFinal(serverFinal)
	if err != nil {
		return &ProtocolError{Msg: err.Error()}
	}
	if subtle.ConstantTimeCompare(signature, h.serverSignature) != 1 {
		return &AuthError{Msg: "invalid server signature", Host: h.host, Port: h.port}
	}
	return nil
}
