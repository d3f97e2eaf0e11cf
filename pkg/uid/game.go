package uid

import (
	"crypto/rand"
	"encoding/hex"
)

// GenerateGameID returns a 32-char hex id, unique enough that two games
// never collide in practice.
func GenerateGameID() string {
	bytes := make([]byte, 16)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
