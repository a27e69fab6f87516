package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

const DefaultTokenBytes = 32

var ErrEmptyTokenSecret = errors.New("token secret must not be empty")

// IssuedToken pairs the plaintext that is mailed once with the digest that is stored.
type IssuedToken struct {
	Plaintext string
	Hash      string
}

// TokenCodec generates one-time tokens and derives keyed digests for storage.
type TokenCodec struct {
	secret []byte
}

func NewTokenCodec(secret string) (*TokenCodec, error) {
	if secret == "" {
		return nil, ErrEmptyTokenSecret
	}
	return &TokenCodec{secret: []byte(secret)}, nil
}

// Issue returns a hex token built from byteLength random bytes and its digest.
func (c *TokenCodec) Issue(byteLength int) (IssuedToken, error) {
	if byteLength <= 0 {
		byteLength = DefaultTokenBytes
	}

	buf := make([]byte, byteLength)
	if _, err := rand.Read(buf); err != nil {
		return IssuedToken{}, fmt.Errorf("generate token: %w", err)
	}

	plain := hex.EncodeToString(buf)

	return IssuedToken{Plaintext: plain, Hash: c.Hash(plain)}, nil
}

// Hash is a deterministic HMAC-SHA256 of the plaintext, hex encoded.
func (c *TokenCodec) Hash(plain string) string {
	h := hmac.New(sha256.New, c.secret)
	h.Write([]byte(plain))
	return hex.EncodeToString(h.Sum(nil))
}

// Verify recomputes the digest of candidate and compares in constant time.
func (c *TokenCodec) Verify(candidate, storedHash string) bool {
	if candidate == "" || storedHash == "" {
		return false
	}
	return hmac.Equal([]byte(c.Hash(candidate)), []byte(storedHash))
}
