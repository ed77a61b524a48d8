// Package signature checks client-credential proofs of key possession.
//
// A client signs the canonical assertion with its RSA private key using
// RSASSA-PKCS1-v1_5 over SHA-512. Every failure mode (bad key, bad encoding,
// bad signature) collapses to false so callers cannot leak which one hit.
package signature

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha512"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"strings"
)

// CanonicalAssertion returns the exact bytes a client signs. The layout is
// a wire contract: any change invalidates every issued key pair.
func CanonicalAssertion(clientID, clientSecret string) []byte {
	return []byte(`{"grant_type":"client_credentials","client_id":"` + clientID + `","client_secret":"` + clientSecret + `"}`)
}

// Verify reports whether sig is a valid signature of assertion under pub.
func Verify(assertion, sig []byte, pub *rsa.PublicKey) (ok bool) {
	if pub == nil || pub.N == nil || len(sig) == 0 {
		return false
	}
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	digest := sha512.Sum512(assertion)
	return rsa.VerifyPKCS1v15(pub, crypto.SHA512, digest[:], sig) == nil
}

var errNotRSA = errors.New("signature: key is not RSA")

// ParsePublicKey decodes a base64 DER public key. PKCS#1 is tried first,
// then PKIX.
func ParsePublicKey(encoded string) (*rsa.PublicKey, error) {
	der, err := decodeBase64(encoded)
	if err != nil {
		return nil, err
	}
	if pub, err := x509.ParsePKCS1PublicKey(der); err == nil {
		return pub, nil
	}
	key, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, err
	}
	pub, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, errNotRSA
	}
	return pub, nil
}

// VerifyEncoded decodes a base64 signature and public key and verifies.
func VerifyEncoded(assertion []byte, sigB64, keyB64 string) bool {
	sig, err := decodeBase64(sigB64)
	if err != nil {
		return false
	}
	pub, err := ParsePublicKey(keyB64)
	if err != nil {
		return false
	}
	return Verify(assertion, sig, pub)
}

// decodeBase64 accepts standard and URL-safe alphabets, padded or not.
// Form-encoded bodies often turn '+' into ' ', so spaces are restored.
func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "+")
	if s == "" {
		return nil, errors.New("signature: empty input")
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if b, err := enc.DecodeString(s); err == nil {
			return b, nil
		}
	}
	return nil, errors.New("signature: invalid base64")
}
