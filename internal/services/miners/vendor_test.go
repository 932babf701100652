package miners

import (
	"strings"
	"testing"
)

func TestCardsFromPayloadsNestedObjects(t *testing.T) {
	payload := []byte(`{
		"meta": {"total": 2},
		"data": {
			"results": [
				{"companyName": "Acme GmbH", "email": "info@acme.de", "country": "Germany"},
				{"companyName": "Beta Ltd", "detailUrl": "/exhibitors/beta-ltd", "phone": "+90 212 1234567"}
			]
		}
	}`)

	cards := cardsFromPayloads([][]byte{payload}, "https://fair.example.com/search?page=1")
	if len(cards) != 2 {
		t.Fatalf("got %d cards, want 2", len(cards))
	}

	var withEmail, withoutEmail int
	for _, card := range cards {
		if card.PrimaryEmail() != "" {
			withEmail++
			if card.CompanyName != "Acme GmbH" {
				t.Errorf("company = %q", card.CompanyName)
			}
		} else {
			withoutEmail++
			if detailURLFromRaw(card.Raw) != "/exhibitors/beta-ltd" {
				t.Errorf("detail url = %q", detailURLFromRaw(card.Raw))
			}
		}
	}
	if withEmail != 1 || withoutEmail != 1 {
		t.Errorf("withEmail=%d withoutEmail=%d", withEmail, withoutEmail)
	}
}

func TestCardsFromPayloadsIgnoresGenericObjects(t *testing.T) {
	// Objects with a name but no second contact signal are not cards
	payload := []byte(`{"filters": [{"name": "Category"}, {"name": "Hall"}]}`)
	if cards := cardsFromPayloads([][]byte{payload}, "https://x.com"); len(cards) != 0 {
		t.Errorf("got %d cards, want 0", len(cards))
	}
}

func TestCardsFromPayloadsSkipsInvalidJSON(t *testing.T) {
	if cards := cardsFromPayloads([][]byte{[]byte("<html>not json</html>")}, "https://x.com"); len(cards) != 0 {
		t.Errorf("got %d cards, want 0", len(cards))
	}
}

func TestResolveAgainst(t *testing.T) {
	got := resolveAgainst("https://fair.example.com/search?page=1", "/exhibitors/beta-ltd")
	if got != "https://fair.example.com/exhibitors/beta-ltd" {
		t.Errorf("resolveAgainst = %q", got)
	}
	if resolveAgainst("https://x.com", "") != "" {
		t.Error("empty ref must resolve to empty")
	}
}

func TestLooksBlockedVendor(t *testing.T) {
	if !looksBlocked(`<html><body>Checking your browser before accessing</body></html>`) {
		t.Error("challenge marker must flag blocked")
	}
	if !looksBlocked(`<html><body><p>hi</p></body></html>`) {
		t.Error("near-empty anchorless page must flag blocked")
	}

	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < 5; i++ {
		b.WriteString(`<a href="/x">link text here</a> plenty of surrounding copy to make the page real. `)
	}
	b.WriteString(strings.Repeat("More content. ", 30))
	b.WriteString("</body></html>")
	if looksBlocked(b.String()) {
		t.Error("ordinary page must not flag blocked")
	}
}
