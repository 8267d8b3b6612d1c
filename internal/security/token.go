package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

const verificationTokenBytes = 32

// NewVerificationToken returns the token mailed to the user and the digest
// stored in its place.
func NewVerificationToken() (plain, hash string, err error) {
	buf := make([]byte, verificationTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	plain = hex.EncodeToString(buf)
	return plain, HashVerificationToken(plain), nil
}

func HashVerificationToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}
