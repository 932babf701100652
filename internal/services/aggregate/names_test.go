package aggregate

import (
	"testing"
)

func TestParseNameContextPatterns(t *testing.T) {
	tests := []struct {
		name    string
		context string
		email   string
		first   string
		last    string
	}{
		{"plain name", "Alice Smith", "alice@acme.de", "Alice", "Smith"},
		{"pipe separated", "Alice Smith | Head of Sales", "alice@acme.de", "Alice", "Smith"},
		{"paren email", "Alice Smith (alice@acme.de)", "alice@acme.de", "Alice", "Smith"},
		{"contact label", "Contact: Alice Smith", "alice@acme.de", "Alice", "Smith"},
		{"by pattern", "posted by Alice Smith yesterday", "alice@acme.de", "Alice", "Smith"},
		{"title stripped", "Dr. Alice Smith", "alice@acme.de", "Alice", "Smith"},
		{"suffix stripped", "Alice Smith PhD", "alice@acme.de", "Alice", "Smith"},
		{"three tokens", "Alice Maria Smith", "alice@acme.de", "Alice", "Maria Smith"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, last := ParseName(tt.context, tt.email)
			if first != tt.first || last != tt.last {
				t.Errorf("ParseName(%q, %q) = (%q, %q), want (%q, %q)",
					tt.context, tt.email, first, last, tt.first, tt.last)
			}
		})
	}
}

func TestParseNameEmailPrefixFallback(t *testing.T) {
	first, last := ParseName("", "alice.smith@acme.de")
	if first != "Alice" || last != "Smith" {
		t.Errorf("got (%q, %q)", first, last)
	}
	first, last = ParseName("", "bob_jones@acme.de")
	if first != "Bob" || last != "Jones" {
		t.Errorf("got (%q, %q)", first, last)
	}
}

func TestParseNameRejections(t *testing.T) {
	tests := []struct {
		name    string
		context string
		email   string
	}{
		{"generic prefix", "Alice Smith", "info@acme.de"},
		{"single token no prefix split", "", "alice@acme.de"},
		{"numeric context", "12345 67890", "alice99@acme.de"},
		{"single word context", "Acme", "hello99@acme.de"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, last := ParseName(tt.context, tt.email)
			if first != "" || last != "" {
				t.Errorf("got (%q, %q), want empty", first, last)
			}
		})
	}
}
