package scram

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The RFC 7677 example exchange: user "user", password "pencil".
const (
	rfcClientNonce = "rOprNGfwEbeRWgbNEkqO"
	rfcServerFirst = "r=rOprNGfwEbeRWgbNEkqO%hvYDpWUa2RaTCAfuxFIlj)hNlF$k0,s=W22ZaJ0SNY7soEsUEjb6gQ==,i=4096"
	rfcServerNonce = "rOprNGfwEbeRWgbNEkqO%hvYDpWUa2RaTCAfuxFIlj)hNlF$k0"
	rfcProof       = "dHzbZapWIk4jUhN+Ute9ytag9zjfMHgsqmmiz7AndVQ="
	rfcServerSig   = "6rriTRBi23WpRR/wtup+mMhUZUn/dB5nLTJRsjl95G4="
)

func TestClientProofMatchesReferenceVector(t *testing.T) {
	clientFirstBare := ClientFirstBare("user", rfcClientNonce)
	require.Equal(t, "n=user,r="+rfcClientNonce, clientFirstBare)

	challenge, err := ParseChallenge(rfcServerFirst)
	require.NoError(t, err)
	assert.Equal(t, rfcServerNonce, challenge.Nonce)
	assert.Equal(t, 4096, challenge.IterationCount)

	clientFinalNoProof := ClientFinalNoProof(challenge.Nonce)
	authMessage := AuthMessage(clientFirstBare, rfcServerFirst, clientFinalNoProof)

	salted := SaltedPassword("pencil", challenge.Salt, challenge.IterationCount)
	clientKey := ClientKey(salted)
	proof := ClientProof(clientKey, ClientSignature(StoredKey(clientKey), authMessage))
	assert.Equal(t, rfcProof, base64.StdEncoding.EncodeToString(proof))

	serverSig := ServerSignature(ServerKey(salted), authMessage)
	assert.Equal(t, rfcServerSig, base64.StdEncoding.EncodeToString(serverSig))
}

func TestClientProofIsDeterministic(t *testing.T) {
	challenge, err := ParseChallenge(rfcServerFirst)
	require.NoError(t, err)

	build := func() []byte {
		authMessage := AuthMessage(
			ClientFirstBare("user", rfcClientNonce),
			rfcServerFirst,
			ClientFinalNoProof(challenge.Nonce),
		)
		salted := SaltedPassword("pencil", challenge.Salt, challenge.IterationCount)
		clientKey := ClientKey(salted)
		return ClientProof(clientKey, ClientSignature(StoredKey(clientKey), authMessage))
	}
	assert.Equal(t, build(), build())
}

func TestProofXORRecoversClientKey(t *testing.T) {
	salted := SaltedPassword("pencil", []byte("salt"), 128)
	clientKey := ClientKey(salted)
	signature := ClientSignature(StoredKey(clientKey), "auth message")

	proof := ClientProof(clientKey, signature)
	assert.Equal(t, clientKey, ClientProof(proof, signature))
}

func TestEscapeUsername(t *testing.T) {
	assert.Equal(t, "admin", EscapeUsername("admin"))
	assert.Equal(t, "a=3Db", EscapeUsername("a=b"))
	assert.Equal(t, "a=2Cb=3D", EscapeUsername("a,b="))
}

func TestParseChallengeRejectsMalformedInput(t *testing.T) {
	cases := []string{
		"",
		"r=nonce",
		"r=nonce,s=!!!,i=4096",
		"r=nonce,s=c2FsdA==,i=zero",
		"r=nonce,s=c2FsdA==,i=-1",
		"s=c2FsdA==,i=4096",
	}
	for _, in := range cases {
		_, err := ParseChallenge(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestParseServerFinal(t *testing.T) {
	sig, err := ParseServerFinal("v=" + rfcServerSig)
	require.NoError(t, err)
	assert.Equal(t, rfcServerSig, base64.StdEncoding.EncodeToString(sig))

	_, err = ParseServerFinal("x=123")
	assert.Error(t, err)
}
