package extract

import (
	"testing"
)

func TestDetectHeaderRow(t *testing.T) {
	rows := [][]string{
		{"Exhibitor List 2025", ""},
		{"Name", "Email", "Company", "Lead Source", "Country"},
		{"Alice Smith", "alice@acme.com", "Acme GmbH", "Web", "Germany"},
	}

	idx, colMap := DetectHeaderRow(rows)
	if idx != 1 {
		t.Fatalf("header index = %d, want 1", idx)
	}

	want := map[int]string{
		0: fieldName,
		1: fieldEmail,
		2: fieldCompany,
		3: fieldSource,
		4: fieldCountry,
	}
	for col, field := range want {
		if colMap[col] != field {
			t.Errorf("column %d = %q, want %q", col, colMap[col], field)
		}
	}
}

func TestLeadSourceDoesNotBindAsName(t *testing.T) {
	// "Lead Source" must bind to source before the name keywords run
	_, colMap := DetectHeaderRow([][]string{
		{"Lead Source", "Email"},
		{"Referral", "a@b.com"},
	})
	if colMap[0] != fieldSource {
		t.Errorf("column 0 = %q, want %q", colMap[0], fieldSource)
	}
}

func TestDetectHeaderRowNoHeader(t *testing.T) {
	idx, colMap := DetectHeaderRow([][]string{
		{"Acme GmbH", "alice@acme.com"},
		{"Beta Ltd", "bob@beta.co"},
	})
	if idx != -1 || colMap != nil {
		t.Errorf("got (%d, %v), want (-1, nil)", idx, colMap)
	}
}

func TestCardsFromRowsMapped(t *testing.T) {
	rows := [][]string{
		{"Name", "Email", "Company", "Lead Source", "Country"},
		{"Alice Smith", "alice@acme.com", "Acme GmbH", "Web", "Germany"},
		{"Bob Jones", "bob@beta.co", "Beta Ltd", "Fair", "Turkey"},
		{"Carol King", "carol@gamma.io", "Gamma Inc", "", "France"},
		{"Dave Hill", "dave@delta.de", "Delta AG", "Referral", "Germany"},
		{"No Email Here", "", "Empty Co", "Web", "Spain"},
	}

	cards := CardsFromRows(rows)
	if len(cards) != 4 {
		t.Fatalf("got %d cards, want 4", len(cards))
	}

	first := cards[0]
	if first.PrimaryEmail() != "alice@acme.com" {
		t.Errorf("email = %q", first.PrimaryEmail())
	}
	if first.ContactName != "Alice Smith" {
		t.Errorf("contact name = %q, want Alice Smith", first.ContactName)
	}
	if first.CompanyName != "Acme GmbH" {
		t.Errorf("company = %q", first.CompanyName)
	}
	if first.Country != "Germany" {
		t.Errorf("country = %q", first.Country)
	}
}

func TestCardsFromRowsScansCellsWhenMappedEmailEmpty(t *testing.T) {
	rows := [][]string{
		{"Name", "Email", "Notes"},
		{"Alice Smith", "", "reach her at alice@acme.com"},
	}
	cards := CardsFromRows(rows)
	if len(cards) != 1 {
		t.Fatalf("got %d cards, want 1", len(cards))
	}
	if cards[0].PrimaryEmail() != "alice@acme.com" {
		t.Errorf("email = %q", cards[0].PrimaryEmail())
	}
}

func TestCardsFromRowsHeaderless(t *testing.T) {
	rows := [][]string{
		{"Acme Industrial Machines GmbH", "Alice Smith", "alice@acme.com"},
		{"Beta Ltd", "", "bob@beta.co"},
		{"", "", ""},
	}
	cards := CardsFromRows(rows)
	if len(cards) != 2 {
		t.Fatalf("got %d cards, want 2", len(cards))
	}
	if cards[0].CompanyName != "Acme Industrial Machines GmbH" {
		t.Errorf("company = %q", cards[0].CompanyName)
	}
	if cards[0].ContactName != "Alice Smith" {
		t.Errorf("contact name = %q", cards[0].ContactName)
	}
	if cards[1].CompanyName != "Beta Ltd" {
		t.Errorf("company = %q", cards[1].CompanyName)
	}
}
