package test

import (
	"fmt"
	"math/rand/v2"
)

const lowerAlnum = "abcdefghijklmnopqrstuvwxyz0123456789"

// RandomToken returns a lowercase alphanumeric string of length n.
func RandomToken(n int) string {
	if n <= 0 {
		n = 1
	}
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = lowerAlnum[rand.IntN(len(lowerAlnum))]
	}
	return string(buf)
}

// RandomOrderID returns a positive order identifier.
func RandomOrderID() int64 {
	return rand.Int64N(1_000_000) + 1
}

// RandomEmail returns a syntactically valid address on example.com.
func RandomEmail() string {
	return fmt.Sprintf("%s@example.com", RandomToken(8+rand.IntN(8)))
}
