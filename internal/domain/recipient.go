package domain

import "strings"

// DefaultDialCode is prepended to bare 10-digit numbers when no country is selected.
const DefaultDialCode = "91"

// MinRecipientLength is the shortest canonical address: "+" and 11 digits.
const MinRecipientLength = 12

// CountryProfile describes how raw numbers are qualified with a dial code.
// IsWildcard marks the "all countries" selection, which uses length heuristics
// instead of a fixed prefix.
type CountryProfile struct {
	DialCode   string
	IsWildcard bool
}

// WildcardProfile returns the "all countries" profile.
func WildcardProfile() CountryProfile {
	return CountryProfile{IsWildcard: true}
}

// Normalizer converts raw user input into canonical recipient addresses.
// The zero value uses DefaultDialCode for wildcard 10-digit numbers.
type Normalizer struct {
	DefaultDialCode string
}

// NewNormalizer returns a Normalizer using dialCode for bare 10-digit numbers.
func NewNormalizer(dialCode string) Normalizer {
	return Normalizer{DefaultDialCode: digitsOnly(dialCode)}
}

// Normalize returns the canonical "+digits" form of raw, or false when the
// result cannot be a valid recipient.
func (n Normalizer) Normalize(raw string, profile CountryProfile) (string, bool) {
	digits := digitsOnly(raw)

	var out string
	switch {
	case profile.IsWildcard && len(digits) == 10:
		out = "+" + n.dialCode() + digits
	case profile.IsWildcard && len(digits) >= 11:
		out = "+" + digits
	case profile.IsWildcard:
		out = digits
	case strings.HasPrefix(digits, profile.DialCode):
		out = "+" + digits
	default:
		out = "+" + profile.DialCode + digits
	}

	if !IsCanonical(out) {
		return "", false
	}
	return out, true
}

func (n Normalizer) dialCode() string {
	if n.DefaultDialCode == "" {
		return DefaultDialCode
	}
	return n.DefaultDialCode
}

// IsCanonical reports whether s is "+" followed by at least 11 ASCII digits.
func IsCanonical(s string) bool {
	if len(s) < MinRecipientLength || s[0] != '+' {
		return false
	}
	for i := 1; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// DigitKey strips everything but ASCII digits. Gateways echo numbers in
// several shapes ("+91...", "91...@c.us"); the digit key compares them.
func DigitKey(s string) string {
	return digitsOnly(s)
}

func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}
