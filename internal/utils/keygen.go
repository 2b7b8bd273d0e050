package utils

import (
	"crypto/rand"
	"math/big"
	"regexp"
)

const (
	keyAlphabet  = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	keyBodyLen   = 32
	secretLength = 48
)

// Key modes accepted by GenerateAPIKey.
const (
	KeyModeLive = "live"
	KeyModeTest = "test"
)

var apiKeyPattern = regexp.MustCompile(`^pk_(live|test)_[A-Za-z0-9]{32}$`)

// ValidateAPIKeyFormat checks the structure of a presented key without any I/O.
// Format: pk_{live|test}_ followed by exactly 32 alphanumeric characters.
func ValidateAPIKeyFormat(key string) error {
	if !apiKeyPattern.MatchString(key) {
		return ErrInvalidAPIKeyFormat
	}
	return nil
}

// GenerateAPIKey generates a public key for the given mode.
// Example: pk_live_3fKq9... (32 alphanumeric chars after the prefix)
func GenerateAPIKey(mode string) (string, error) {
	var prefix string
	switch mode {
	case KeyModeLive:
		prefix = "pk_live_"
	case KeyModeTest:
		prefix = "pk_test_"
	default:
		return "", ErrInvalidKeyMode
	}
	body, err := randomString(keyBodyLen)
	if err != nil {
		return "", err
	}
	return prefix + body, nil
}

// GenerateSecretKey generates a shared secret: sk_xxx
func GenerateSecretKey() (string, error) {
	body, err := randomString(secretLength)
	if err != nil {
		return "", err
	}
	return "sk_" + body, nil
}

func randomString(n int) (string, error) {
	max := big.NewInt(int64(len(keyAlphabet)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = keyAlphabet[idx.Int64()]
	}
	return string(b), nil
}
