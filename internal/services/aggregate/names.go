// Package aggregate converts merged mining candidates into canonical
// person and affiliation rows.
package aggregate

import (
	"regexp"
	"strings"

	"github.com/ternarybob/prospector/internal/services/miners"
)

// Title prefixes and name suffixes stripped during parsing, lowered
var (
	titlePrefixes = map[string]bool{
		"mr": true, "mrs": true, "ms": true, "miss": true, "dr": true,
		"prof": true, "herr": true, "frau": true, "mme": true, "mlle": true,
		"sr": true, "sra": true, "bay": true, "bayan": true, "ing": true,
	}
	nameSuffixes = map[string]bool{
		"jr": true, "sr": true, "ii": true, "iii": true, "iv": true,
		"phd": true, "md": true, "mba": true, "esq": true, "dds": true,
	}
)

var (
	pipeNamePattern    = regexp.MustCompile(`^([^|]+)\|`)
	parenEmailPattern  = regexp.MustCompile(`^(.*?)\s*\([^)]*@[^)]*\)`)
	contactPattern     = regexp.MustCompile(`(?i)\bcontact\s*:\s*(.+)`)
	byFromPattern      = regexp.MustCompile(`(?i)\b(?:by|from)\s+([A-Z][a-zA-Z'\-]+(?:\s+[A-Z][a-zA-Z'\-]+)+)`)
	nonLetterOnly      = regexp.MustCompile(`^[^a-zA-Z]+$`)
)

// ParseName extracts (first, last) from a context string, falling back
// to the email prefix. Returns empty strings when nothing plausible is
// found or the email prefix is a generic mailbox.
func ParseName(context, email string) (string, string) {
	if miners.GenericEmailPrefixes[miners.EmailPrefix(email)] {
		return "", ""
	}

	if context != "" {
		for _, candidate := range contextCandidates(context) {
			if first, last, ok := tokensToName(candidate); ok {
				return first, last
			}
		}
	}
	return nameFromEmailPrefix(email)
}

// contextCandidates applies the context patterns in priority order
func contextCandidates(context string) []string {
	context = strings.TrimSpace(context)
	var out []string

	if m := pipeNamePattern.FindStringSubmatch(context); m != nil {
		out = append(out, m[1])
	}
	if m := parenEmailPattern.FindStringSubmatch(context); m != nil {
		out = append(out, m[1])
	}
	if m := contactPattern.FindStringSubmatch(context); m != nil {
		out = append(out, m[1])
	}
	if m := byFromPattern.FindStringSubmatch(context); m != nil {
		out = append(out, m[1])
	}
	out = append(out, context)
	return out
}

// tokensToName validates and splits a candidate into first/last
func tokensToName(candidate string) (string, string, bool) {
	fields := strings.Fields(strings.TrimSpace(candidate))

	var tokens []string
	for i, f := range fields {
		cleaned := strings.Trim(f, ".,;:")
		lower := strings.ToLower(cleaned)
		if i == 0 && titlePrefixes[lower] {
			continue
		}
		if nameSuffixes[lower] {
			continue
		}
		tokens = append(tokens, cleaned)
	}
	if len(tokens) < 2 || len(tokens) > 4 {
		return "", "", false
	}

	for _, tok := range tokens {
		if len(tok) < 2 || len(tok) > 50 {
			return "", "", false
		}
		if nonLetterOnly.MatchString(tok) {
			return "", "", false
		}
		if strings.Contains(tok, "@") || strings.Contains(tok, "/") {
			return "", "", false
		}
	}
	return tokens[0], strings.Join(tokens[1:], " "), true
}

// nameFromEmailPrefix handles first.last@ and first_last@ prefixes
func nameFromEmailPrefix(email string) (string, string) {
	prefix := miners.EmailPrefix(email)
	if prefix == "" || miners.GenericEmailPrefixes[prefix] {
		return "", ""
	}

	var parts []string
	for _, sep := range []string{".", "_"} {
		if strings.Contains(prefix, sep) {
			parts = strings.Split(prefix, sep)
			break
		}
	}
	if len(parts) != 2 {
		return "", ""
	}
	for _, p := range parts {
		if len(p) < 2 || nonLetterOnly.MatchString(p) {
			return "", ""
		}
	}
	return capitalize(parts[0]), capitalize(parts[1])
}

func capitalize(s string) string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
