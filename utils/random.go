package utils

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

func GenerateCode(n int) (string, error) {
	// Make a slice of nBytes random bytes.
	byt := make([]byte, n)

	// Read into the slice.
	if _, err := rand.Read(byt); err != nil {
		return "", err
	}

	// Return the hexadecimal string.
	return strings.ToUpper(hex.EncodeToString(byt)), nil
}

// NewSessionID returns an opaque id for a payment session.
func NewSessionID() (string, error) {
	code, err := GenerateCode(12)
	if err != nil {
		return "", err
	}
	return "ps_" + strings.ToLower(code), nil
}
