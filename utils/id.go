package utils

import (
	"crypto/rand"
	"encoding/hex"
)

// GenerateFileID returns a 16 hex character public file identifier drawn
// from 8 bytes of crypto/rand. It does not check for collisions; the
// registry's unique index rejects the insert on the rare collision and the
// upload flow regenerates.
func GenerateFileID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand reading from the OS never fails on supported platforms
		panic(err)
	}
	return hex.EncodeToString(b)
}
