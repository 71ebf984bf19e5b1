package services

import (
	"crypto/rand"
	"encoding/base64"
)

// tokenBytes gives 144 bits of entropy per token, comfortably beyond the
// point where collisions or guessing matter for any realistic object count.
const tokenBytes = 18

// TokenIssuer mints download tokens. Tokens are opaque: nothing anywhere in
// the system parses structure out of them.
type TokenIssuer interface {
	Issue() string
}

type randomTokenIssuer struct{}

func NewTokenIssuer() TokenIssuer {
	return randomTokenIssuer{}
}

// Issue returns a URL-safe random token. A failing entropy source leaves no
// safe way to mint credentials, so it panics and takes the process down.
func (randomTokenIssuer) Issue() string {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		panic("token issuer: entropy source failed: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
