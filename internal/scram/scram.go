// Package scram implements the SCRAM-SHA-256 computations (RFC 7677 /
// RFC 5802) shared by the client handshake and the fake server used in
// tests. It is pure math: no I/O, no state.
//
// The server reports failures through its own JSON error field rather than
// the RFC's e= attribute, so no error attribute handling appears here.
package scram

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// KeySize is the octet length of SHA-256 output and therefore of every
// derived key in the exchange.
const KeySize = sha256.Size

// EscapeUsername applies the SASLprep-lite escaping required before a
// username is embedded in the client-first message.
func EscapeUsername(username string) string {
	username = strings.ReplaceAll(username, "=", "=3D")
	return strings.ReplaceAll(username, ",", "=2C")
}

// ClientFirstBare renders "n=<user>,r=<nonce>" with the username escaped.
func ClientFirstBare(username, nonce string) string {
	return fmt.Sprintf("n=%s,r=%s", EscapeUsername(username), nonce)
}

// Challenge is the parsed server-first message.
type Challenge struct {
	Nonce          string
	Salt           []byte
	IterationCount int
}

// ParseChallenge parses "r=<nonce>,s=<salt_b64>,i=<count>".
func ParseChallenge(serverFirst string) (*Challenge, error) {
	attrs, err := parseAttributes(serverFirst)
	if err != nil {
		return nil, err
	}
	nonce, ok := attrs["r"]
	if !ok {
		return nil, fmt.Errorf("challenge is missing the nonce attribute: %q", serverFirst)
	}
	saltB64, ok := attrs["s"]
	if !ok {
		return nil, fmt.Errorf("challenge is missing the salt attribute: %q", serverFirst)
	}
	salt, err := base64.StdEncoding.DecodeString(saltB64)
	if err != nil {
		return nil, fmt.Errorf("challenge salt is not valid base64: %w", err)
	}
	iterStr, ok := attrs["i"]
	if !ok {
		return nil, fmt.Errorf("challenge is missing the iteration count: %q", serverFirst)
	}
	iterations, err := strconv.Atoi(iterStr)
	if err != nil || iterations <= 0 {
		return nil, fmt.Errorf("challenge iteration count %q is not a positive integer", iterStr)
	}
	return &Challenge{Nonce: nonce, Salt: salt, IterationCount: iterations}, nil
}

// ParseServerFinal extracts the v= attribute of the server-final message.
func ParseServerFinal(serverFinal string) ([]byte, error) {
	attrs, err := parseAttributes(serverFinal)
	if err != nil {
		return nil, err
	}
	sigB64, ok := attrs["v"]
	if !ok {
		return nil, fmt.Errorf("server-final message is missing the verifier: %q", serverFinal)
	}
	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return nil, fmt.Errorf("server signature is not valid base64: %w", err)
	}
	return sig, nil
}

func parseAttributes(message string) (map[string]string, error) {
	attrs := make(map[string]string)
	for _, part := range strings.Split(message, ",") {
		key, value, found := strings.Cut(part, "=")
		if !found {
			return nil, fmt.Errorf("malformed SCRAM attribute %q", part)
		}
		attrs[key] = value
	}
	return attrs, nil
}

// ClientFinalNoProof renders "c=biws,r=<server_nonce>". The channel binding
// attribute is the fixed "n,," in base64: the server does not support
// channel binding and clients must not request it.
func ClientFinalNoProof(serverNonce string) string {
	return "c=biws,r=" + serverNonce
}

// AuthMessage joins the three exchange halves that both sides sign.
func AuthMessage(clientFirstBare, serverFirst, clientFinalNoProof string) string {
	return clientFirstBare + "," + serverFirst + "," + clientFinalNoProof
}

// SaltedPassword derives the PBKDF2-HMAC-SHA256 salted password.
func SaltedPassword(password string, salt []byte, iterationCount int) []byte {
	return pbkdf2.Key([]byte(password), salt, iterationCount, KeySize, sha256.New)
}

// ClientKey derives the client key from the salted password.
func ClientKey(saltedPassword []byte) []byte {
	return hmacSHA256(saltedPassword, "Client Key")
}

// StoredKey hashes a client key into the form the server stores.
func StoredKey(clientKey []byte) []byte {
	sum := sha256.Sum256(clientKey)
	return sum[:]
}

// ServerKey derives the server key from the salted password.
func ServerKey(saltedPassword []byte) []byte {
	return hmacSHA256(saltedPassword, "Server Key")
}

// ClientSignature signs the auth message with the stored key.
func ClientSignature(storedKey []byte, authMessage string) []byte {
	return hmacSHA256(storedKey, authMessage)
}

// ServerSignature signs the auth message with the server key.
func ServerSignature(serverKey []byte, authMessage string) []byte {
	return hmacSHA256(serverKey, authMessage)
}

// ClientProof XORs the client key with the client signature. The same XOR
// recovers the client key from a proof, which is how the verifying side
// checks it.
func ClientProof(clientKey, clientSignature []byte) []byte {
	proof := make([]byte, KeySize)
	for i := range proof {
		proof[i] = clientKey[i] ^ clientSignature[i]
	}
	return proof
}

func hmacSHA256(key []byte, message string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(message))
	return mac.Sum(nil)
}
