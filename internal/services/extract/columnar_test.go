package extract

import (
	"testing"
)

func TestParseColumnarDirectory(t *testing.T) {
	text := `  1  Acme Industrial GmbH        info@acme.de
     Hamburg, Germany
  2  Beta Makina
     Sanayi                       sales@beta.com.tr
     Istanbul, Turkey
  3  No Contact Listed Co
  4  Gamma Trading                gamma@trade.it    export@trade.it
     Milano, Italy`

	cards := ParseColumnarDirectory(text)
	if len(cards) != 3 {
		t.Fatalf("got %d cards, want 3 (entry without email is dropped)", len(cards))
	}

	if cards[0].CompanyName != "Acme Industrial GmbH" {
		t.Errorf("company = %q", cards[0].CompanyName)
	}
	if cards[0].PrimaryEmail() != "info@acme.de" {
		t.Errorf("email = %q", cards[0].PrimaryEmail())
	}
	if cards[0].Country != "Germany" {
		t.Errorf("country = %q, want Germany", cards[0].Country)
	}

	// Continuation line extends a wrapped company name
	if cards[1].CompanyName != "Beta Makina Sanayi" {
		t.Errorf("company = %q, want continuation applied", cards[1].CompanyName)
	}
	if cards[1].Country != "Turkey" {
		t.Errorf("country = %q, want Turkey", cards[1].Country)
	}

	// Multiple emails in a block are all kept
	if len(cards[2].Emails) != 2 {
		t.Errorf("got %d emails, want 2", len(cards[2].Emails))
	}
}

func TestParseColumnarDirectoryIgnoresPreamble(t *testing.T) {
	text := `EXHIBITOR DIRECTORY 2025
Hall 4, Stand Listing

  1  Acme GmbH    info@acme.de`

	cards := ParseColumnarDirectory(text)
	if len(cards) != 1 {
		t.Fatalf("got %d cards, want 1", len(cards))
	}
}

func TestParseColumnarDirectoryEmpty(t *testing.T) {
	if cards := ParseColumnarDirectory("just prose, no numbered rows"); cards != nil {
		t.Errorf("got %v, want nil", cards)
	}
}
