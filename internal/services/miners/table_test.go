package miners

import (
	"testing"
)

func TestMineTablesColumnMap(t *testing.T) {
	html := `<table>
		<tr><th>Company</th><th>Contact</th><th>Email</th><th>Country</th></tr>
		<tr><td>Acme GmbH</td><td>Alice Smith</td><td>alice@acme.de</td><td>Germany</td></tr>
		<tr><td>Beta Ltd</td><td>Bob Jones</td><td>bob@beta.co</td><td>Turkey</td></tr>
	</table>`

	cards := MineTables(html, "https://fair.example.com/list")
	if len(cards) != 2 {
		t.Fatalf("got %d cards, want 2", len(cards))
	}
	if cards[0].CompanyName != "Acme GmbH" {
		t.Errorf("company = %q", cards[0].CompanyName)
	}
	if cards[0].ContactName != "Alice Smith" {
		t.Errorf("contact = %q", cards[0].ContactName)
	}
	if cards[0].PrimaryEmail() != "alice@acme.de" {
		t.Errorf("email = %q", cards[0].PrimaryEmail())
	}
	if cards[0].Country != "Germany" {
		t.Errorf("country = %q", cards[0].Country)
	}
	if cards[0].Website != "https://acme.de" {
		t.Errorf("website guess = %q", cards[0].Website)
	}
}

func TestMineTablesDedupsByEmail(t *testing.T) {
	html := `<table>
		<tr><th>Company</th><th>Email</th></tr>
		<tr><td>Acme GmbH</td><td>info@acme.de</td></tr>
		<tr><td>Acme Deutschland</td><td>info@acme.de</td></tr>
	</table>`

	cards := MineTables(html, "https://x.com")
	if len(cards) != 1 {
		t.Fatalf("got %d cards, want 1", len(cards))
	}
}

func TestMineTablesRowScanWithoutEmailColumn(t *testing.T) {
	// No header keywords at all, email hidden in a free-text cell
	html := `<table>
		<tr><td>Acme GmbH</td><td>reach us at info@acme.de</td></tr>
		<tr><td>No Email Co</td><td>call us</td></tr>
	</table>`

	cards := MineTables(html, "https://x.com")
	if len(cards) != 1 {
		t.Fatalf("got %d cards, want 1", len(cards))
	}
	if cards[0].PrimaryEmail() != "info@acme.de" {
		t.Errorf("email = %q", cards[0].PrimaryEmail())
	}
}

func TestMineTablesSkipsTinyTables(t *testing.T) {
	html := `<table><tr><td>layout cell</td></tr></table>`
	if cards := MineTables(html, "https://x.com"); cards != nil {
		t.Errorf("got %v, want nil", cards)
	}
}
