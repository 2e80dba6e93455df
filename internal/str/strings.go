package str

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// MaskKey keeps the first four characters of an api key for log lines.
func MaskKey(key string) string {
	key = strings.TrimSpace(key)
	if len(key) <= 4 {
		return "****"
	}
	return key[:4] + "****"
}

// KeyFingerprint identifies an api key without revealing it.
func KeyFingerprint(key string) string {
	h := sha256.Sum256([]byte(key))
	hash := fmt.Sprintf("%x", h)
	return fmt.Sprintf("0x%s", hash[:16])
}

func IsBlank(s string) bool {
	return len(strings.TrimSpace(s)) == 0
}
