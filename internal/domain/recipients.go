package domain

import "strings"

// RecipientSet is an ordered, duplicate-free list of canonical addresses.
type RecipientSet []string

// SplitTokens splits comma separated free text into trimmed, non-empty tokens.
func SplitTokens(input string) []string {
	parts := strings.Split(input, ",")
	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// BuildRecipientSet normalizes tokens in order, silently dropping rejects and
// duplicates, and keeps at most maxCount entries. Tokens may themselves hold
// comma separated lists. A maxCount of zero or less disables the cap.
func (n Normalizer) BuildRecipientSet(tokens []string, profile CountryProfile, maxCount int) RecipientSet {
	set := make(RecipientSet, 0, len(tokens))
	seen := make(map[string]struct{}, len(tokens))

	for _, raw := range tokens {
		for _, tok := range SplitTokens(raw) {
			if maxCount > 0 && len(set) >= maxCount {
				return set
			}
			rcpt, ok := n.Normalize(tok, profile)
			if !ok {
				continue
			}
			if _, dup := seen[rcpt]; dup {
				continue
			}
			seen[rcpt] = struct{}{}
			set = append(set, rcpt)
		}
	}
	return set
}
