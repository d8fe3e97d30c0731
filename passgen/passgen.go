// Package passgen produces candidate credential strings from a fixed
// alphabet using a cryptographically secure source.
package passgen

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

// Alphabet is the fixed character set candidates are drawn from.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789!@#$%^&*"

// String returns a string of the given length with each character drawn
// uniformly and independently from Alphabet. rand.Int avoids modulo bias.
func String(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("invalid length")
	}

	max := big.NewInt(int64(len(Alphabet)))
	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to draw random index: %w", err)
		}
		b[i] = Alphabet[n.Int64()]
	}

	return string(b), nil
}
