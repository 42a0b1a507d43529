package contact

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// NormalizeEmail lower-cases and trims an email address for use as the
// contact unique key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone converts a US phone number to E.164. Ten digits get a +1
// prefix; eleven digits starting with 1 are treated the same. Anything else
// is returned as + followed by whatever digits were present, so an unusual
// international entry still hashes consistently.
func NormalizePhone(phone string) string {
	digits := digitsOnly(phone)
	switch {
	case digits == "":
		return ""
	case len(digits) == 10:
		return "+1" + digits
	case len(digits) == 11 && digits[0] == '1':
		return "+" + digits
	default:
		return "+" + digits
	}
}

// HashPhone derives the one-way lookup key for a phone number. The raw
// number is stored on the contact for outbound payloads, but all secondary
// matching goes through this hash.
func HashPhone(e164 string) string {
	if e164 == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(e164))
	return hex.EncodeToString(sum[:])
}

// LastFour returns the trailing four digits of a phone number, or "" when
// fewer than four digits are present.
func LastFour(phone string) string {
	digits := digitsOnly(phone)
	if len(digits) < 4 {
		return ""
	}
	return digits[len(digits)-4:]
}

// FormatUS renders an E.164 US number as (XXX) XXX-XXXX for the outbound
// payload. Non-US shapes pass through unchanged.
func FormatUS(e164 string) string {
	digits := digitsOnly(e164)
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	if len(digits) != 10 {
		return e164
	}
	return fmt.Sprintf("(%s) %s-%s", digits[:3], digits[3:6], digits[6:])
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
