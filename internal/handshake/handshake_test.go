package handshake

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rethinkdb/rethinkdb-go/internal/scram"
	"github.com/rethinkdb/rethinkdb-go/pkg/proto"
)

const (
	testNonce    = "c2x1Z2dpc2huZXNzMTIzNDU2"
	testPassword = "secret"
)

func newTestHandshake(t *testing.T) *Handshake {
	t.Helper()
	h := New("localhost", 28015, "admin", testPassword)
	h.clientNonce = testNonce
	return h
}

func successJSON(t *testing.T, fields map[string]any) []byte {
	t.Helper()
	fields["success"] = true
	data, err := json.Marshal(fields)
	require.NoError(t, err)
	return data
}

// scriptedServer computes the server half of the exchange for the
// configured password, the way a real server with the right stored keys
// would.
type scriptedServer struct {
	salt        []byte
	iterations  int
	serverFirst string
	serverNonce string
}

func newScriptedServer(clientNonce string) *scriptedServer {
	s := &scriptedServer{
		salt:        []byte("0123456789abcdef"),
		iterations:  256,
		serverNonce: clientNonce + "serversuffix",
	}
	s.serverFirst = fmt.Sprintf("r=%s,s=%s,i=%d",
		s.serverNonce, base64.StdEncoding.EncodeToString(s.salt), s.iterations)
	return s
}

func (s *scriptedServer) signature(password, clientFirstBare string) []byte {
	authMessage := scram.AuthMessage(clientFirstBare, s.serverFirst, scram.ClientFinalNoProof(s.serverNonce))
	salted := scram.SaltedPassword(password, s.salt, s.iterations)
	return scram.ServerSignature(scram.ServerKey(salted), authMessage)
}

func TestOpeningMessage(t *testing.T) {
	h := newTestHandshake(t)

	msg, err := h.NextMessage(nil)
	require.NoError(t, err)
	require.Greater(t, len(msg), 5)

	assert.Equal(t, proto.Version, binary.LittleEndian.Uint32(msg[:4]))
	assert.EqualValues(t, 0, msg[len(msg)-1])

	var payload struct {
		ProtocolVersion      int    `json:"protocol_version"`
		AuthenticationMethod string `json:"authentication_method"`
		Authentication       string `json:"authentication"`
	}
	require.NoError(t, json.Unmarshal(msg[4:len(msg)-1], &payload))
	assert.Equal(t, 0, payload.ProtocolVersion)
	assert.Equal(t, "SCRAM-SHA-256", payload.AuthenticationMethod)
	assert.Equal(t, "n,,n=admin,r="+testNonce, payload.Authentication)
}

func TestFullExchange(t *testing.T) {
	h := newTestHandshake(t)
	server := newScriptedServer(testNonce)

	_, err := h.NextMessage(nil)
	require.NoError(t, err)

	// Version advertisement: nothing to send back.
	msg, err := h.NextMessage(successJSON(t, map[string]any{
		"min_protocol_version": 0,
		"max_protocol_version": 0,
		"server_version":       "test",
	}))
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Empty(t, msg)

	// Challenge: produces the NUL-terminated client-final message.
	msg, err = h.NextMessage(successJSON(t, map[string]any{
		"authentication": server.serverFirst,
	}))
	require.NoError(t, err)
	require.EqualValues(t, 0, msg[len(msg)-1])

	var final struct {
		Authentication string `json:"authentication"`
	}
	require.NoError(t, json.Unmarshal(msg[:len(msg)-1], &final))

	wantPrefix := "c=biws,r=" + server.serverNonce + ",p="
	require.Contains(t, final.Authentication, wantPrefix)

	// Verify the proof server-side.
	proofB64 := final.Authentication[len(wantPrefix):]
	proof, err := base64.StdEncoding.DecodeString(proofB64)
	require.NoError(t, err)

	clientFirstBare := "n=admin,r=" + testNonce
	authMessage := scram.AuthMessage(clientFirstBare, server.serverFirst, scram.ClientFinalNoProof(server.serverNonce))
	salted := scram.SaltedPassword(testPassword, server.salt, server.iterations)
	storedKey := scram.StoredKey(scram.ClientKey(salted))
	recovered := scram.ClientProof(proof, scram.ClientSignature(storedKey, authMessage))
	assert.Equal(t, storedKey, scram.StoredKey(recovered))

	// Server signature: completes the handshake.
	sig := server.signature(testPassword, clientFirstBare)
	msg, err = h.NextMessage(successJSON(t, map[string]any{
		"authentication": "v=" + base64.StdEncoding.EncodeToString(sig),
	}))
	require.NoError(t, err)
	assert.Nil(t, msg)
	assert.True(t, h.Done())
}

func TestNextMessageAfterDone(t *testing.T) {
	h := newTestHandshake(t)
	h.state = StateDone

	_, err := h.NextMessage(nil)
	var stateErr *StateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, StateDone, stateErr.State)
}

func TestAuthErrorCodeMapping(t *testing.T) {
	for _, code := range []int{10, 12, 20} {
		h := newTestHandshake(t)
		_, err := h.NextMessage(nil)
		require.NoError(t, err)

		_, err = h.NextMessage([]byte(fmt.Sprintf(`{"success":false,"error":"nope","error_code":%d}`, code)))
		var authErr *AuthError
		require.ErrorAs(t, err, &authErr, "code %d", code)
		assert.Contains(t, authErr.Error(), "nope")
		assert.Contains(t, authErr.Error(), "localhost:28015")
	}

	// Codes outside 10..20 are driver-level failures.
	h := newTestHandshake(t)
	_, err := h.NextMessage(nil)
	require.NoError(t, err)
	_, err = h.NextMessage([]byte(`{"success":false,"error":"boom","error_code":2}`))
	var protoErr *ProtocolError
	require.ErrorAs(t, err, &protoErr)
}

func TestUnsupportedVersionRange(t *testing.T) {
	h := newTestHandshake(t)
	_, err := h.NextMessage(nil)
	require.NoError(t, err)

	_, err = h.NextMessage(successJSON(t, map[string]any{
		"min_protocol_version": 1,
		"max_protocol_version": 2,
	}))
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Contains(t, authErr.Error(), "unsupported protocol version")
}

func TestRejectsForeignNonce(t *testing.T) {
	h := newTestHandshake(t)
	_, err := h.NextMessage(nil)
	require.NoError(t, err)
	_, err = h.NextMessage(successJSON(t, map[string]any{
		"min_protocol_version": 0,
		"max_protocol_version": 0,
	}))
	require.NoError(t, err)

	_, err = h.NextMessage(successJSON(t, map[string]any{
		"authentication": "r=somebodyelse,s=c2FsdA==,i=256",
	}))
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Contains(t, authErr.Error(), "invalid nonce")
}

func TestRejectsBadServerSignature(t *testing.T) {
	h := newTestHandshake(t)
	server := newScriptedServer(testNonce)

	_, err := h.NextMessage(nil)
	require.NoError(t, err)
	_, err = h.NextMessage(successJSON(t, map[string]any{
		"min_protocol_version": 0,
		"max_protocol_version": 0,
	}))
	require.NoError(t, err)
	_, err = h.NextMessage(successJSON(t, map[string]any{
		"authentication": server.serverFirst,
	}))
	require.NoError(t, err)

	forged := server.signature("wrong password", "n=admin,r="+testNonce)
	_, err = h.NextMessage(successJSON(t, map[string]any{
		"authentication": "v=" + base64.StdEncoding.EncodeToString(forged),
	}))
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Contains(t, authErr.Error(), "invalid server signature")
	assert.False(t, h.Done())
}
