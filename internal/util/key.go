package util

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
)

const keyAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandomKey returns an alphanumeric string of the given length. Project and
// invite keys are 32 characters long.
func RandomKey(length int) string {
	out := make([]byte, length)
	max := big.NewInt(int64(len(keyAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(err)
		}
		out[i] = keyAlphabet[n.Int64()]
	}
	return string(out)
}

func NewRequestID() string {
	bytes := make([]byte, 8)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
