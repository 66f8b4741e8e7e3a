package util

import (
	"crypto/rand"
	"encoding/hex"
)

const vidSize = 16

func GenerateToken(n int) (string, error) {
	b := make([]byte, n)

	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(b), nil
}

// NewVID generates a 128-bit verification session ID. The ID doubles as
// a capability token for the realtime channel so it has to be unguessable
func NewVID() (string, error) {
	return GenerateToken(vidSize)
}
