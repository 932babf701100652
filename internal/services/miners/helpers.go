package miners

import (
	"net/url"
	"regexp"
	"strings"
)

// Shared pure helpers used across the miner family.

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// ExtractEmails finds addresses in text, lower-cases them, strips trailing
// punctuation, filters junk domains, and deduplicates preserving order.
func ExtractEmails(text string) []string {
	matches := emailPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(matches))
	var out []string
	for _, m := range matches {
		email := strings.ToLower(strings.TrimRight(m, ".,;:!?"))
		if email == "" || seen[email] {
			continue
		}
		if isJunkEmail(email) {
			continue
		}
		seen[email] = true
		out = append(out, email)
	}
	return out
}

func isJunkEmail(email string) bool {
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return true
	}
	domain := email[at+1:]
	for _, junk := range junkEmailDomains {
		if domain == junk || strings.HasSuffix(domain, "."+junk) {
			return true
		}
	}
	for _, suffix := range junkEmailSuffixes {
		if strings.HasSuffix(email, suffix) {
			return true
		}
	}
	return false
}

// EmailDomain returns the domain part of an address, lowered
func EmailDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return strings.ToLower(email[at+1:])
}

// EmailPrefix returns the local part of an address, lowered
func EmailPrefix(email string) string {
	at := strings.Index(email, "@")
	if at <= 0 {
		return ""
	}
	return strings.ToLower(email[:at])
}

// GuessWebsiteFromEmail derives a company site from the first address
// whose domain is not a consumer mailbox host.
func GuessWebsiteFromEmail(emails []string) string {
	for _, email := range emails {
		domain := EmailDomain(email)
		if domain == "" || genericEmailProviders[domain] {
			continue
		}
		return "https://" + domain
	}
	return ""
}

// IsBlacklistedWebsite reports whether the URL's host is a URL shortener
// or social network, by exact or suffix match.
func IsBlacklistedWebsite(rawURL string) bool {
	host := hostOf(rawURL)
	if host == "" {
		return false
	}
	for _, banned := range urlShorteners {
		if host == banned || strings.HasSuffix(host, "."+banned) {
			return true
		}
	}
	for _, banned := range socialDomains {
		if host == banned || strings.HasSuffix(host, "."+banned) {
			return true
		}
	}
	return false
}

var (
	phoneLabelPattern = regexp.MustCompile(`(?i)\b(tel|telephone|phone|mobile|cell|fax|gsm|whatsapp)\b[.:]?\s*`)
	phoneCharPattern  = regexp.MustCompile(`[^0-9+()\-.\s]`)
	digitPattern      = regexp.MustCompile(`[0-9]`)
)

// CleanPhone strips labels and junk from a phone candidate and validates
// the digit count (7-16). Returns empty string when invalid.
func CleanPhone(raw string) string {
	s := phoneLabelPattern.ReplaceAllString(strings.TrimSpace(raw), "")
	s = phoneCharPattern.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)

	digits := len(digitPattern.FindAllString(s, -1))
	if digits < 7 || digits > 16 {
		return ""
	}
	// Collapse internal runs of whitespace
	s = strings.Join(strings.Fields(s), " ")
	return s
}

// IsDetailLink reports whether a same-host anchor URL looks like a
// contact detail page: contains a detail token and is longer than the
// base listing URL.
func IsDetailLink(linkURL, baseURL string) bool {
	if len(linkURL) <= len(baseURL) {
		return false
	}
	link, err := url.Parse(linkURL)
	if err != nil {
		return false
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return false
	}
	if !strings.EqualFold(link.Host, base.Host) {
		return false
	}
	lower := strings.ToLower(link.Path + "?" + link.RawQuery)
	for _, token := range detailLinkTokens {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}

// MatchesDetailLink applies the job's detail link filter: a configured
// pattern narrows to same-host URLs containing it as a substring, an
// empty pattern falls back to the generic token heuristics.
func MatchesDetailLink(linkURL, baseURL, pattern string) bool {
	if pattern == "" {
		return IsDetailLink(linkURL, baseURL)
	}
	link, err := url.Parse(linkURL)
	if err != nil {
		return false
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return false
	}
	if !strings.EqualFold(link.Host, base.Host) {
		return false
	}
	return strings.Contains(linkURL, pattern)
}

// ReverseString undoes the reversed-text email obfuscation trick some
// directories use (direction:rtl rendering over reversed source text)
func ReverseString(s string) string {
	runes := []rune(s)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes)
}

func hostOf(rawURL string) string {
	s := strings.TrimSpace(rawURL)
	if s == "" {
		return ""
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(u.Host, "www."))
}
