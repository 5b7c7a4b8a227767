package utils

import (
	"math/rand/v2"
)

const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

var mock = ""

// MockRandomString makes GenerateRandomString return s. An empty s restores
// random generation.
func MockRandomString(s string) {
	mock = s
}

// GenerateRandomString generates a random string of length n.
func GenerateRandomString(n int) string {
	if mock != "" {
		return mock
	}
	b := make([]byte, n)
	for i := range b {
		b[i] = letters[rand.IntN(len(letters))]
	}
	return string(b)
}
