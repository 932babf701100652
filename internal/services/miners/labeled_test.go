package miners

import (
	"testing"
)

func TestParseLabeledText(t *testing.T) {
	text := `Company: Acme GmbH
Contact: Alice Smith
Email: alice@acme.de
Phone: +49 40 123456

Company: Beta Ltd
E-Mail: bob@beta.co
Country: Turkey`

	cards := ParseLabeledText(text)
	if len(cards) != 2 {
		t.Fatalf("got %d cards, want 2", len(cards))
	}

	if cards[0].CompanyName != "Acme GmbH" || cards[0].ContactName != "Alice Smith" {
		t.Errorf("card 0 = %+v", cards[0])
	}
	if cards[0].Phone == "" {
		t.Error("phone should survive cleaning")
	}
	if cards[1].CompanyName != "Beta Ltd" || cards[1].PrimaryEmail() != "bob@beta.co" {
		t.Errorf("card 1 = %+v", cards[1])
	}
	if cards[1].Country != "Turkey" {
		t.Errorf("country = %q", cards[1].Country)
	}
}

func TestParseLabeledTextDropsEmaillessBlocks(t *testing.T) {
	text := `Company: Silent Co
Phone: 1234567

Company: Loud Co
Email: hello@loud.io`

	cards := ParseLabeledText(text)
	if len(cards) != 1 {
		t.Fatalf("got %d cards, want 1", len(cards))
	}
	if cards[0].CompanyName != "Loud Co" {
		t.Errorf("company = %q", cards[0].CompanyName)
	}
}

func TestParseLabeledTextEmpty(t *testing.T) {
	if cards := ParseLabeledText("free prose without labels"); cards != nil {
		t.Errorf("got %v, want nil", cards)
	}
}
