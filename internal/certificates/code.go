package certificates

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	// CodeLength is the number of characters in a verification code.
	CodeLength = 12
	// codeMaxLength bounds what the lookup will query for.
	codeMaxLength = 32
	codeAlphabet  = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// NewVerificationCode returns a random uppercase alphanumeric code of CodeLength characters.
func NewVerificationCode() (string, error) {
	max := big.NewInt(int64(len(codeAlphabet)))
	b := make([]byte, CodeLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate verification code: %w", err)
		}
		b[i] = codeAlphabet[n.Int64()]
	}
	return string(b), nil
}

// plausibleCode reports whether s could have been produced by NewVerificationCode or an earlier generator.
// Lookups skip the database for anything else.
func plausibleCode(s string) bool {
	if s == "" || len(s) > codeMaxLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'A' || c > 'Z') {
			return false
		}
	}
	return true
}
