// Package rand produces the random material used by the connection
// handshake.
package rand

import (
	cryptorand "crypto/rand"
	"encoding/base64"
)

// NonceSize is the number of random bytes in a SCRAM client nonce before
// base64 encoding.
const NonceSize = 18

// Nonce returns a base64-encoded nonce of NonceSize random bytes.
//
// The nonce is part of the authentication exchange, so it must come from
// the system CSPRNG; a seeded PRNG is not acceptable here.
func Nonce() string {
	buf := make([]byte, NonceSize)
	if _, err := cryptorand.Read(buf); err != nil {
		panic("unreachable")
	}
	return base64.StdEncoding.EncodeToString(buf)
}
