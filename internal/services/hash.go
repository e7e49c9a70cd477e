package services

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashImage returns the lowercase hex SHA-256 of the raw image bytes
func HashImage(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
