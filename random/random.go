package random

import (
	crand "crypto/rand"
	"math/big"
	mrand "math/rand"
)

const charset = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// String returns a reference-grade random string. Falls back to math/rand
// when the system source is unavailable.
func String(length int) string {
	b := make([]byte, length)
	l := big.NewInt(int64(len(charset)))
	for i := range b {
		num, err := crand.Int(crand.Reader, l)
		if err != nil {
			b[i] = charset[mrand.Intn(len(charset))]
			continue
		}
		b[i] = charset[num.Int64()]
	}
	return string(b)
}
