package coupon

import (
	"crypto/rand"
	"fmt"
)

// codeAlphabet excludes ambiguous characters (0/O, 1/I/L) so codes survive
// being read aloud or typed from a screenshot.
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// DefaultCodeLength is the generated code length when none is configured.
const DefaultCodeLength = 10

// RandomCode generates a random uppercase code of the given length drawn
// from the unambiguous alphabet.
func RandomCode(length int) (string, error) {
	if length <= 0 {
		length = DefaultCodeLength
	}

	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("coupon: generate code: %w", err)
	}

	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}

	return string(buf), nil
}
