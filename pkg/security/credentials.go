package security

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Credential problems reported by CheckCredential.
var (
	ErrCredentialMissing   = errors.New("credential is missing")
	ErrCredentialTooShort  = errors.New("credential is too short")
	ErrCredentialMalformed = errors.New("credential is malformed")
)

// CheckCredential rejects keys that are empty, shorter than minLen runes,
// or that contain whitespace, control characters or an ellipsis (a sign
// of a copied, truncated value).
func CheckCredential(key string, minLen int) error {
	if key == "" {
		return ErrCredentialMissing
	}
	if minLen > 0 && utf8.RuneCountInString(key) < minLen {
		return fmt.Errorf("%w: minimum %d characters", ErrCredentialTooShort, minLen)
	}
	if strings.Contains(key, "...") || strings.ContainsRune(key, '…') {
		return fmt.Errorf("%w: contains an ellipsis", ErrCredentialMalformed)
	}
	for _, r := range key {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return fmt.Errorf("%w: contains whitespace or control characters", ErrCredentialMalformed)
		}
	}
	return nil
}

// MaskSecret masks a secret for display, showing only first and last 4 characters
func MaskSecret(secret string) string {
	if secret == "" {
		return ""
	}

	if len(secret) <= 8 {
		return "****"
	}

	return secret[:4] + "****" + secret[len(secret)-4:]
}

// RedactSecrets replaces every occurrence of the given secrets in msg.
// Transport errors embed the request URL, which carries query credentials.
func RedactSecrets(msg string, secrets ...string) string {
	for _, s := range secrets {
		if s == "" {
			continue
		}
		msg = strings.ReplaceAll(msg, s, "[REDACTED]")
	}
	return msg
}
