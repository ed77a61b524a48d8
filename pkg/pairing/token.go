package pairing

import (
	"crypto/rand"
	"math/big"
	"time"

	"github.com/Abraxas-365/identity/pkg/kernel"
)

const (
	tokenKeyPrefix = "pairing:token:"
	connKeyPrefix  = "pairing:conn:"
)

// tokenAlphabet is URL-path safe so a token can be embedded in the
// registration route as is.
const tokenAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-_"

// Token is the current registration token of one operator connection.
type Token struct {
	Value        string
	ConnectionID kernel.ConnectionID
	IssuedAt     time.Time
}

// TokenKey maps a token to the connection that issued it.
func TokenKey(token string) string { return tokenKeyPrefix + token }

// ConnKey maps a connection to its current token.
func ConnKey(connID kernel.ConnectionID) string { return connKeyPrefix + connID.String() }

// TokenSource produces a fresh random token value.
type TokenSource func() (string, error)

// RandomTokens draws length characters from tokenAlphabet using crypto/rand.
func RandomTokens(length int) TokenSource {
	max := big.NewInt(int64(len(tokenAlphabet)))
	return func() (string, error) {
		b := make([]byte, length)
		for i := range b {
			n, err := rand.Int(rand.Reader, max)
			if err != nil {
				return "", err
			}
			b[i] = tokenAlphabet[n.Int64()]
		}
		return string(b), nil
	}
}
