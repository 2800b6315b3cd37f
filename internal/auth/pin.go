// Package auth guards the parent endpoints with a PIN.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// HashPrefix marks a PIN stored as a SHA-256 digest.
const HashPrefix = "sha256:"

const (
	minPINLength = 4
	maxPINLength = 12
	digits       = "0123456789"
)

// HashPIN returns the storable digest of a PIN.
func HashPIN(pin string) string {
	h := sha256.Sum256([]byte(pin))
	return HashPrefix + hex.EncodeToString(h[:])
}

// IsHashed reports whether a stored value is already a digest.
func IsHashed(stored string) bool {
	return strings.HasPrefix(stored, HashPrefix)
}

// VerifyPIN compares a provided PIN with the stored value in constant time.
// The stored value may be a digest or, for freshly seeded databases, the
// plain PIN.
func VerifyPIN(stored, provided string) bool {
	if stored == "" || provided == "" {
		return false
	}
	want := stored
	if !IsHashed(stored) {
		want = HashPIN(stored)
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(HashPIN(provided))) == 1
}

// ValidatePIN checks that pin is 4 to 12 digits.
func ValidatePIN(pin string) error {
	if len(pin) < minPINLength || len(pin) > maxPINLength {
		return fmt.Errorf("pin must be %d to %d digits", minPINLength, maxPINLength)
	}
	for _, c := range pin {
		if c < '0' || c > '9' {
			return fmt.Errorf("pin must contain digits only")
		}
	}
	return nil
}

// GeneratePIN returns a random numeric PIN of length n.
func GeneratePIN(n int) (string, error) {
	if n < minPINLength || n > maxPINLength {
		return "", fmt.Errorf("pin length %d out of range", n)
	}
	b := make([]byte, n)
	max := big.NewInt(int64(len(digits)))
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate random: %w", err)
		}
		b[i] = digits[idx.Int64()]
	}
	return string(b), nil
}
