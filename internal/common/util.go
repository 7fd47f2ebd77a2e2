package common

import "crypto/rand"

// GenerateRandByteArray returns size cryptographically random bytes.
// crypto/rand.Read is documented to never fail on supported platforms.
func GenerateRandByteArray(size int) []byte {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return b
}

// WipeByteArray overwrites the contents of b with zeros. Useful for
// removing key material from memory after use. Does nothing for nil.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
