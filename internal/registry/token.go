package registry

import "crypto/rand"

const tokenAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// TokenLength is the fixed length of a bearer token, per SPEC_FULL.md §4.2.
const TokenLength = 32

// GenerateToken returns a fresh 32-character alphanumeric bearer token.
// Grounded on original_source/CodeNamesServer/src/DatabaseManager.cpp's
// GenerateToken, reimplemented with crypto/rand instead of a
// wall-clock-seeded mt19937 (the original's RNG has no security role here
// either, but crypto/rand is the stdlib's only unbiased source and needs
// no third-party library to get right).
func GenerateToken() (string, error) {
	b := make([]byte, TokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i, v := range b {
		b[i] = tokenAlphabet[int(v)%len(tokenAlphabet)]
	}
	return string(b), nil
}
